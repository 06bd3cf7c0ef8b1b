package trexport

import "testing"

func newActivity(title string, subtitle *string) *Activity {
	return &Activity{ID: "a1", Title: title, Subtitle: subtitle}
}

func sub(s string) *string { return &s }

func TestClassifyActivity(t *testing.T) {
	tests := []struct {
		title    string
		subtitle *string
		want     ActivityEventType
	}{
		{"Stock Gift", sub("Accepted"), ActivityReceivedGift},
		{"Giveaway", sub("Redeemed"), ActivityGiveAwayGift},
		// Any other redeemed record is a welcome gift under the stock's
		// own name; the Giveaway rule must win first.
		{"Apple", sub("Redeemed"), ActivityWelcomeStockGift},
		{"Apple", sub("Expired"), ActivityWelcomeStockGiftExpired},
		{"Nvidia", sub("Stock split"), ActivityStockSplit},
		{"Nvidia", sub("Corporate action"), ActivityStockSplit},
		{"Some ETF", sub("Reverse split"), ActivityReverseSplit},
		{"Some ETF", sub("Title exchange"), ActivityTitleExchange},
		{"Some Corp", sub("Cash or Stock"), ActivityCashOrStock},
		{"Some Corp", sub("General Meeting"), ActivityCorporateNotice},
		{"Apple", sub("Limit order canceled"), ActivityLimitOrderCanceled},
		{"Apple", sub("Your limit order has expired"), ActivityLimitOrderCanceled},
		{"Apple", sub("Order rejected"), ActivityOrderRejected},
		// "Accepted" alone must not trigger the gift rule.
		{"Legal Documents", sub("Accepted"), ActivityLegalDocumentsAccepted},
		{"Legal documents", sub("Changed"), ActivityLegalDocumentsAdded},
		{"Exemption order", sub("Changed"), ActivityExemptionOrderChanged},
		{"New device", sub("Paired"), ActivityNewDevicePaired},
		{"Open Max account", nil, ActivityOpenAccountProvided},
		{"Q3/2024 Report", nil, ActivityQuarterlyReport},
		{"Quarterly report", nil, ActivityQuarterlyReport},
		{"Annual Tax Report", nil, ActivityAnnualTaxReport},
	}
	for _, tc := range tests {
		got, ok := ClassifyActivity(newActivity(tc.title, tc.subtitle))
		if !ok {
			t.Errorf("ClassifyActivity(%q, %v): no match", tc.title, tc.subtitle)
			continue
		}
		if got != tc.want {
			t.Errorf("ClassifyActivity(%q, %v) = %s, want %s", tc.title, tc.subtitle, got, tc.want)
		}
	}
}

func TestClassifyActivityByEventCode(t *testing.T) {
	a := newActivity("Einladung zur Hauptversammlung", nil)
	a.EventCode = "GENERAL_MEETING"
	got, ok := ClassifyActivity(a)
	if !ok || got != ActivityCorporateNotice {
		t.Errorf("got %s, %v", got, ok)
	}
}

func TestClassifyActivityUnknown(t *testing.T) {
	if got, ok := ClassifyActivity(newActivity("Never seen", sub("Whatever"))); ok {
		t.Errorf("want no match, got %s", got)
	}
	// A null subtitle never matches a subtitle test.
	if got, ok := ClassifyActivity(newActivity("Apple", nil)); ok {
		t.Errorf("want no match, got %s", got)
	}
}

func newTransaction(title string, subtitle *string) *Transaction {
	return &Transaction{ID: "t1", Title: title, Subtitle: subtitle, Status: StatusExecuted}
}

func TestClassifyTransaction(t *testing.T) {
	tests := []struct {
		title    string
		subtitle *string
		want     TransactionEventType
	}{
		{"Apple", sub("Buy Order"), TxTrade},
		{"Apple", sub("Sell Order"), TxTrade},
		{"Apple", sub("Limit Buy"), TxTrade},
		{"Apple", sub("Limit Sell"), TxTrade},
		{"MSCI World", sub("Saving executed"), TxSavingsPlan},
		{"MSCI World", sub("Round up"), TxRoundup},
		{"MSCI World", sub("Saveback"), TxCashback},
		{"Realty Income", sub("Cash dividend"), TxDividend},
		{"Realty Income", sub("Dividend"), TxDividend},
		{"Realty Income", sub("Cash dividend corrected"), TxDividend},
		{"Interest", nil, TxInterest},
		{"Tax correction", nil, TxTaxCorrection},
		{"Some Fund", sub("Pre-Determined Tax Base"), TxTaxCorrection},
		{"Tax Settlement", sub("Tax booking"), TxTaxCorrection},
		// In the transaction feed a gift is one the account sent.
		{"Stock Gift", sub("Accepted"), TxSentGift},
		{"Stock Perk", sub("Redeemed"), TxWelcomeStockGift},
		{"Give-away", sub("Redeemed"), TxGiveAwayGift},
		{"MSCI World", sub("Saving executed · Max"), TxSavingsPlanForChildren},
		{"To John", sub("Sent"), TxTransfer},
		{"From bank", sub("Completed"), TxTransfer},
		{"Rewe", sub("Declined"), TxStatusIndicator},
		{"Card", sub("Card verification"), TxStatusIndicator},
		{"Rewe", nil, TxCardPayment},
	}
	for _, tc := range tests {
		got, ok := ClassifyTransaction(newTransaction(tc.title, tc.subtitle))
		if !ok {
			t.Errorf("ClassifyTransaction(%q, %v): no match", tc.title, tc.subtitle)
			continue
		}
		if got != tc.want {
			t.Errorf("ClassifyTransaction(%q, %v) = %s, want %s", tc.title, tc.subtitle, got, tc.want)
		}
	}
}

func TestClassifyTransactionUnknown(t *testing.T) {
	if got, ok := ClassifyTransaction(newTransaction("Mystery", sub("Never seen"))); ok {
		t.Errorf("want no match, got %s", got)
	}
}

func TestClassifyDirection(t *testing.T) {
	tests := []struct {
		subtitle *string
		event    TransactionEventType
		want     OrderDirection
	}{
		{sub("Buy Order"), TxTrade, Buy},
		{sub("Limit Buy"), TxTrade, Buy},
		{sub("Sell Order"), TxTrade, Sell},
		{sub("Limit Sell"), TxTrade, Sell},
		{sub("Saving executed"), TxSavingsPlan, Buy},
		{sub("Round up"), TxRoundup, Buy},
		{sub("Saveback"), TxCashback, Buy},
		{nil, TxReceivedGift, Buy},
		{nil, TxWelcomeStockGift, Buy},
		{nil, TxGiveAwayGift, Buy},
	}
	for _, tc := range tests {
		tx := newTransaction("Apple", tc.subtitle)
		tx.EventType = tc.event
		if got := ClassifyDirection(tx); got != tc.want {
			t.Errorf("ClassifyDirection(%v, %s) = %s, want %s", tc.subtitle, tc.event, got, tc.want)
		}
	}
}

func TestClassifyCashDirection(t *testing.T) {
	if got := ClassifyCashDirection(1); got != CashGain {
		t.Errorf("positive = %s", got)
	}
	if got := ClassifyCashDirection(0); got != CashGain {
		t.Errorf("zero = %s", got)
	}
	if got := ClassifyCashDirection(-1); got != CashExpense {
		t.Errorf("negative = %s", got)
	}
}
