package trexport

import (
	"encoding/json"
	"time"
)

// Status is the execution status the feed reports for a transaction.
type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusCanceled Status = "CANCELED"
	StatusPending  Status = "PENDING"
)

// ActivityEventType identifies one member of the closed set of semantic
// events an activity record can represent.
type ActivityEventType string

const (
	// Portfolio-affecting activities.
	ActivityReceivedGift            ActivityEventType = "received-gift"
	ActivityWelcomeStockGift        ActivityEventType = "welcome-stock-gift"
	ActivityGiveAwayGift            ActivityEventType = "give-away-gift"
	ActivityWelcomeStockGiftExpired ActivityEventType = "welcome-stock-gift-expired"
	ActivityStockSplit              ActivityEventType = "stock-split"
	ActivityReverseSplit            ActivityEventType = "reverse-split"
	ActivityTitleExchange           ActivityEventType = "title-exchange"
	ActivityCashOrStock             ActivityEventType = "cash-or-stock"
	ActivityLimitOrderCanceled      ActivityEventType = "limit-order-canceled"
	ActivityOrderRejected           ActivityEventType = "order-rejected"
	ActivitySecurityChange          ActivityEventType = "security-change"
	ActivityCorporateNotice         ActivityEventType = "corporate-notice"

	// Account management.
	ActivityAddressChanged                ActivityEventType = "address-changed"
	ActivityCashAccountChanged            ActivityEventType = "cash-account-changed"
	ActivityCitizenshipUpdate             ActivityEventType = "citizenship-update"
	ActivityEmailVerified                 ActivityEventType = "email-verified"
	ActivityExemptionOrderChanged         ActivityEventType = "exemption-order-changed"
	ActivityExemptionOrderChangeRequested ActivityEventType = "exemption-order-change-requested"
	ActivityIdentityVerified              ActivityEventType = "identity-verified"
	ActivityLegalDocumentsAccepted        ActivityEventType = "legal-documents-accepted"
	ActivityLegalDocumentsAdded           ActivityEventType = "legal-documents-added"
	ActivityNewDevicePaired               ActivityEventType = "new-device-paired"
	ActivityPersonalDetailsConfirmed      ActivityEventType = "personal-details-confirmed"
	ActivityPhoneNumberChanged            ActivityEventType = "phone-number-changed"
	ActivityPINChanged                    ActivityEventType = "pin-changed"
	ActivityProofOfWealthAdded            ActivityEventType = "proof-of-wealth-added"
	ActivityReferenceAccountChanged       ActivityEventType = "reference-account-changed"
	ActivitySecuritiesAccountOpened       ActivityEventType = "securities-account-opened"
	ActivityNewIBAN                       ActivityEventType = "new-iban"
	ActivityCurrentAccount                ActivityEventType = "current-account"
	ActivityPUKSent                       ActivityEventType = "puk-sent"
	ActivityOpenAccountProvided           ActivityEventType = "open-account-provided"

	// Reports and compliance.
	ActivityAnnualTaxReport        ActivityEventType = "annual-tax-report"
	ActivityCryptoAnnualStatement  ActivityEventType = "crypto-annual-statement"
	ActivityExPostCostReport       ActivityEventType = "ex-post-cost-report"
	ActivityQuarterlyReport        ActivityEventType = "quarterly-report"
	ActivityKeyInformationReceived ActivityEventType = "key-information-received"
	ActivitySuitabilityAssessment  ActivityEventType = "suitability-assessment"
)

// TransactionEventType identifies one member of the closed set of
// semantic events a transaction record can represent.
type TransactionEventType string

const (
	// Portfolio-affecting transactions.
	TxTrade            TransactionEventType = "trade"
	TxSavingsPlan      TransactionEventType = "savings-plan"
	TxRoundup          TransactionEventType = "roundup"
	TxCashback         TransactionEventType = "cashback"
	TxInterest         TransactionEventType = "interest"
	TxDividend         TransactionEventType = "dividend"
	TxTaxCorrection    TransactionEventType = "tax-correction"
	TxReceivedGift     TransactionEventType = "received-gift"
	TxWelcomeStockGift TransactionEventType = "welcome-stock-gift"
	TxGiveAwayGift     TransactionEventType = "give-away-gift"
	TxSplit            TransactionEventType = "split"

	// Transactions with no portfolio effect.
	TxSentGift               TransactionEventType = "sent-gift"
	TxTransfer               TransactionEventType = "transfer"
	TxCardPayment            TransactionEventType = "card-payment"
	TxStatusIndicator        TransactionEventType = "status-indicator"
	TxSavingsPlanForChildren TransactionEventType = "savings-plan-for-children"
)

// Activity is a timeline record from the account's notification stream.
// It may or may not correspond to a financial transaction.
//
// An Activity is immutable once received, except for EventType which the
// classifier attaches; the feed itself never supplies it.
type Activity struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	Subtitle  *string   `json:"subtitle"`
	// EventCode is a machine-readable type code newer feed versions
	// attach to some records. Optional.
	EventCode string            `json:"eventCode,omitempty"`
	EventType ActivityEventType `json:"eventType,omitempty"`
}

// subtitle returns the subtitle text and whether one is present at all.
// A null subtitle is meaningful to classification (card payments have
// none) and distinct from an empty one.
func (a *Activity) subtitle() (string, bool) {
	if a.Subtitle == nil {
		return "", false
	}
	return *a.Subtitle, true
}

// Transaction is a timeline record representing a financial movement.
//
// Sections arrive later than the record itself, via a separate detail
// fetch keyed by ID. EventType is attached by the classifier. All other
// fields are immutable once received.
type Transaction struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Title     string         `json:"title"`
	Subtitle  *string        `json:"subtitle"`
	Icon      string         `json:"icon"`
	Status    Status         `json:"status"`
	Amount    *MonetaryValue `json:"amount"`
	Sections  []Section      `json:"sections,omitempty"`

	EventType TransactionEventType `json:"eventType,omitempty"`

	// SourceActivityID is set on synthetic transactions only and points
	// back at the activity they were derived from. The feed never
	// delivers it.
	SourceActivityID string `json:"sourceActivityId,omitempty"`
}

// Synthetic reports whether the transaction was derived from an activity
// rather than delivered by the transaction feed.
func (t *Transaction) Synthetic() bool { return t.SourceActivityID != "" }

func (t *Transaction) subtitle() (string, bool) {
	if t.Subtitle == nil {
		return "", false
	}
	return *t.Subtitle, true
}

// UnmarshalJSON decodes a transaction, dispatching the polymorphic
// sections array to the section decoder.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction // avoid recursion
	var temp struct {
		plain
		Sections json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	*t = Transaction(temp.plain)
	if len(temp.Sections) > 0 {
		sections, err := DecodeSections(temp.Sections)
		if err != nil {
			return err
		}
		t.Sections = sections
	}
	return nil
}

// MarshalJSON encodes a transaction, re-attaching the wire type
// discriminator to each section so the record can be decoded again. The
// wire fields come first; the fields this tool attaches (event type,
// provenance) follow and are omitted while unset, so a freshly received
// record persists exactly as the feed delivered it.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	shallow := *t
	shallow.Sections = nil
	shallow.EventType = ""
	shallow.SourceActivityID = ""
	var w jsonObjectWriter
	w.EmbedFrom((*plain)(&shallow))
	w.Optional("eventType", t.EventType)
	w.Optional("sourceActivityId", t.SourceActivityID)
	if len(t.Sections) > 0 {
		encoded, err := EncodeSections(t.Sections)
		if err != nil {
			return nil, err
		}
		w.Append("sections", json.RawMessage(encoded))
	}
	return w.MarshalJSON()
}

// AccountInformation is the cash-account summary returned by the CASH
// subscription: the account number that namespaces all persisted
// artifacts, plus the current cash balance.
type AccountInformation struct {
	AccountNumber string `json:"accountNumber"`
	CurrencyID    string `json:"currencyId"`
	Amount        string `json:"amount"`
}

// Balance returns the account's cash balance as a Money, formattable
// with the currency's own symbol and fraction rules.
func (a AccountInformation) Balance() Money {
	return M(ParseAmount(a.Amount), a.CurrencyID)
}
