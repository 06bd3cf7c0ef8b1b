package trexport

import (
	"regexp"
	"strings"
)

// Classification is a cascade of (predicate, result) rules evaluated
// top to bottom; the first match wins. Overlapping patterns are ordered
// most-specific-first, so the priority of every rule is visible in the
// table itself and testable as plain data.

// activityRule is one row of the activity decision table.
type activityRule struct {
	match func(a *Activity) bool
	event ActivityEventType
}

// Predicates operate on the (title, subtitle) pair; a null subtitle
// never matches a text test.

var quarterlyReportPattern = regexp.MustCompile(`^Q[1-4]/\d{4} Report$`)

// activityCodeTable maps machine-readable event codes, which newer feed
// versions attach to some activities, to their event type. Checked
// before any title matching because codes are unambiguous where titles
// drift with app localization.
var activityCodeTable = map[string]ActivityEventType{
	"GENERAL_MEETING":          ActivityCorporateNotice,
	"EXEMPTION_ORDER_CHANGED":  ActivityExemptionOrderChanged,
	"QUARTERLY_REPORT":         ActivityQuarterlyReport,
	"YEAR_END_TAX_REPORT":      ActivityAnnualTaxReport,
	"EX_POST_COST_REPORT":      ActivityExPostCostReport,
	"STOCK_PERK_REFUND_EXPIRY": ActivityWelcomeStockGiftExpired,
}

// activityTable is the ordered decision table for activities.
var activityTable = []activityRule{
	// Portfolio-affecting activities first.
	{pair("Stock Gift", "Accepted"), ActivityReceivedGift},
	{pair("Giveaway", "Redeemed"), ActivityGiveAwayGift},
	// Welcome gifts use the stock's own title, so every other redeemed
	// record is a welcome gift. Must stay below the Giveaway rule.
	{subtitleIs("Redeemed"), ActivityWelcomeStockGift},
	{subtitleIs("Expired"), ActivityWelcomeStockGiftExpired},
	{subtitleIs("Stock split"), ActivityStockSplit},
	// "Corporate action" is the legacy generic name for stock splits.
	{subtitleIs("Corporate action"), ActivityStockSplit},
	{subtitleIs("Reverse split"), ActivityReverseSplit},
	{subtitleIs("Title exchange"), ActivityTitleExchange},
	{subtitleIs("Cash or Stock"), ActivityCashOrStock},
	{subtitleIs(
		"Preliminary Lump Sum",
		"Stock Dividend Instruction",
		"General Meeting",
		"Annual general meeting",
		"Company Notice",
	), ActivityCorporateNotice},
	{subtitleHasAll("limit", "canceled"), ActivityLimitOrderCanceled},
	{subtitleHasAll("limit", "expired"), ActivityLimitOrderCanceled},
	{subtitleHasAll("order rejected"), ActivityOrderRejected},
	{subtitleIs("Change", "Bankruptcy"), ActivitySecurityChange},

	// Account management.
	{pair("Address", "Changed"), ActivityAddressChanged},
	{pair("Address", "Change requested"), ActivityAddressChanged},
	{pair("Cash account", "Changed"), ActivityCashAccountChanged},
	{pair("Citizenship update", "Updated"), ActivityCitizenshipUpdate},
	{pair("Email", "Verified"), ActivityEmailVerified},
	{pair("Exemption order", "Changed"), ActivityExemptionOrderChanged},
	{pair("Exemption order", "Change requested"), ActivityExemptionOrderChangeRequested},
	{pair("Identity Verification", "Successfully verified"), ActivityIdentityVerified},
	{pairs([]string{"Legal Documents", "Legal documents"}, []string{"Accepted"}), ActivityLegalDocumentsAccepted},
	{pairs([]string{"Legal Documents", "Legal documents"}, []string{"Added", "Changed"}), ActivityLegalDocumentsAdded},
	{title("New device"), ActivityNewDevicePaired},
	{pair("Personal details", "Confirmed"), ActivityPersonalDetailsConfirmed},
	{pair("Phone number", "Changed"), ActivityPhoneNumberChanged},
	{pair("PIN", "Changed"), ActivityPINChanged},
	{pair("Proof of Wealth", "Added"), ActivityProofOfWealthAdded},
	{pair("Reference account", "Changed"), ActivityReferenceAccountChanged},
	{pair("Securities account", "Opened"), ActivitySecuritiesAccountOpened},
	{title("New IBAN"), ActivityNewIBAN},
	{title("Current account"), ActivityCurrentAccount},
	{title("PUK sent"), ActivityPUKSent},
	// "Open <child name> account" style records.
	{func(a *Activity) bool {
		return strings.HasPrefix(a.Title, "Open ") && strings.HasSuffix(a.Title, " account")
	}, ActivityOpenAccountProvided},

	// Reports and compliance.
	{title("Annual Tax Report"), ActivityAnnualTaxReport},
	{title("Crypto Annual Statement"), ActivityCryptoAnnualStatement},
	{title("Ex-post cost report"), ActivityExPostCostReport},
	{title("Quarterly report"), ActivityQuarterlyReport},
	{func(a *Activity) bool { return quarterlyReportPattern.MatchString(a.Title) }, ActivityQuarterlyReport},
	{pair("Key Information", "Received"), ActivityKeyInformationReceived},
	{title("Suitability assessment"), ActivitySuitabilityAssessment},
}

// title matches on the activity title alone.
func title(want string) func(a *Activity) bool {
	return func(a *Activity) bool { return a.Title == want }
}

// pair matches an exact (title, subtitle) combination.
func pair(wantTitle, wantSubtitle string) func(a *Activity) bool {
	return func(a *Activity) bool {
		sub, ok := a.subtitle()
		return ok && a.Title == wantTitle && sub == wantSubtitle
	}
}

// pairs matches any of the titles combined with any of the subtitles.
func pairs(titles, subtitles []string) func(a *Activity) bool {
	return func(a *Activity) bool {
		sub, ok := a.subtitle()
		if !ok {
			return false
		}
		for _, t := range titles {
			if a.Title != t {
				continue
			}
			for _, s := range subtitles {
				if sub == s {
					return true
				}
			}
		}
		return false
	}
}

// subtitleIs matches any exact subtitle.
func subtitleIs(want ...string) func(a *Activity) bool {
	return func(a *Activity) bool {
		sub, ok := a.subtitle()
		if !ok {
			return false
		}
		for _, w := range want {
			if sub == w {
				return true
			}
		}
		return false
	}
}

// subtitleHasAll matches when the subtitle contains every fragment,
// case-insensitively.
func subtitleHasAll(fragments ...string) func(a *Activity) bool {
	return func(a *Activity) bool {
		sub, ok := a.subtitle()
		if !ok {
			return false
		}
		lower := strings.ToLower(sub)
		for _, f := range fragments {
			if !strings.Contains(lower, f) {
				return false
			}
		}
		return true
	}
}

// ClassifyActivity maps an activity to its event type. The second return
// is false when no rule matches; the caller decides whether that is
// fatal or merely logged.
func ClassifyActivity(a *Activity) (ActivityEventType, bool) {
	if a.EventCode != "" {
		if event, ok := activityCodeTable[a.EventCode]; ok {
			return event, true
		}
	}
	for _, rule := range activityTable {
		if rule.match(a) {
			return rule.event, true
		}
	}
	return "", false
}

// transactionRule is one row of the transaction decision table.
type transactionRule struct {
	match func(t *Transaction) bool
	event TransactionEventType
}

// transactionTable is the ordered decision table for transactions.
// Gift rows never occur here for received gifts: the feed omits those
// and the synthetic generator pre-classifies its output.
var transactionTable = []transactionRule{
	{txSubtitleIs("Cash dividend", "Dividend", "Cash dividend corrected"), TxDividend},
	{txSubtitleIs("Buy Order", "Sell Order", "Limit Buy", "Limit Sell"), TxTrade},
	{txSubtitleIs("Saving executed"), TxSavingsPlan},
	{txSubtitleIs("Round up"), TxRoundup},
	{txSubtitleIs("Saveback"), TxCashback},
	{func(t *Transaction) bool { return t.Title == "Interest" }, TxInterest},
	{func(t *Transaction) bool {
		_, hasSubtitle := t.subtitle()
		return t.Title == "Tax correction" && !hasSubtitle
	}, TxTaxCorrection},
	{txSubtitleIs("Pre-Determined Tax Base"), TxTaxCorrection},
	{txPair("Tax Settlement", "Tax booking"), TxTaxCorrection},
	// A "Stock Gift"/"Accepted" transaction is a gift the account SENT;
	// received gifts never appear in the transaction feed.
	{txPair("Stock Gift", "Accepted"), TxSentGift},
	{txPair("Stock Perk", "Redeemed"), TxWelcomeStockGift},
	{txPair("Give-away", "Redeemed"), TxGiveAwayGift},
	// Children's savings plans carry the child name after a separator.
	{func(t *Transaction) bool {
		sub, ok := t.subtitle()
		return ok && strings.Contains(sub, "Saving executed ·")
	}, TxSavingsPlanForChildren},
	{txSubtitleIs("Completed", "Sent"), TxTransfer},
	{txSubtitleIs("Declined", "Cancelled", "Card verification"), TxStatusIndicator},
	// Card payments are the only remaining records with a null subtitle.
	{func(t *Transaction) bool {
		_, hasSubtitle := t.subtitle()
		return !hasSubtitle && t.Title != "Interest" && t.Title != "Tax correction"
	}, TxCardPayment},
}

func txSubtitleIs(want ...string) func(t *Transaction) bool {
	return func(t *Transaction) bool {
		sub, ok := t.subtitle()
		if !ok {
			return false
		}
		for _, w := range want {
			if sub == w {
				return true
			}
		}
		return false
	}
}

func txPair(wantTitle, wantSubtitle string) func(t *Transaction) bool {
	return func(t *Transaction) bool {
		sub, ok := t.subtitle()
		return ok && t.Title == wantTitle && sub == wantSubtitle
	}
}

// ClassifyTransaction maps a transaction to its event type. The second
// return is false when no rule matches.
func ClassifyTransaction(t *Transaction) (TransactionEventType, bool) {
	for _, rule := range transactionTable {
		if rule.match(t) {
			return rule.event, true
		}
	}
	return "", false
}

// OrderDirection is the side of an order.
type OrderDirection string

const (
	Buy  OrderDirection = "BUY"
	Sell OrderDirection = "SELL"
)

// buySubtitles are the order subtitles the broker books as purchases.
// Savings plans, round-ups and cashback are always buys regardless of
// wording, as are gifts of any kind.
var buySubtitles = map[string]bool{
	"Buy Order":       true,
	"Limit Buy":       true,
	"Saving executed": true,
	"Round up":        true,
	"Saveback":        true,
}

var buyEventTypes = map[TransactionEventType]bool{
	TxSavingsPlan:      true,
	TxRoundup:          true,
	TxCashback:         true,
	TxReceivedGift:     true,
	TxWelcomeStockGift: true,
	TxGiveAwayGift:     true,
}

// ClassifyDirection decides whether an order-producing transaction is a
// buy or a sell.
func ClassifyDirection(t *Transaction) OrderDirection {
	if buyEventTypes[t.EventType] {
		return Buy
	}
	if sub, ok := t.subtitle(); ok && buySubtitles[sub] {
		return Buy
	}
	return Sell
}

// CashDirection is the polarity of a cash movement.
type CashDirection string

const (
	CashGain    CashDirection = "CASH_GAIN"
	CashExpense CashDirection = "CASH_EXPENSE"
)

// ClassifyCashDirection derives the polarity of a cash movement purely
// from the sign of its amount.
func ClassifyCashDirection(sign int) CashDirection {
	if sign < 0 {
		return CashExpense
	}
	return CashGain
}
