package trexport

import "github.com/shopspring/decimal"

// The transaction feed omits two whole classes of portfolio-affecting
// events: stock gifts the account received (from a friend, as a welcome
// perk, or as a broker give-away) and corporate actions such as splits.
// Both do appear in the activity stream, and the detail endpoint answers
// for an activity id just like for a transaction id, so we fabricate
// transaction-shaped records from those activities and let the rest of
// the pipeline treat them uniformly.

// PlaceholderAmount is the sentinel carried by synthetic gift
// transactions. The real value only exists inside the detail sections;
// callers must never use the placeholder in arithmetic.
var PlaceholderAmount = decimal.NewFromInt(-1)

// giftEvents maps the gift activity types to the transaction event type
// their synthetic record is pre-classified with.
var giftEvents = map[ActivityEventType]TransactionEventType{
	ActivityReceivedGift:     TxReceivedGift,
	ActivityWelcomeStockGift: TxWelcomeStockGift,
	ActivityGiveAwayGift:     TxGiveAwayGift,
}

// splitEvents are the activity types synthesized into split transactions.
var splitEvents = map[ActivityEventType]bool{
	ActivityStockSplit:    true,
	ActivityReverseSplit:  true,
	ActivityTitleExchange: true,
}

// SyntheticTransactions derives the transactions missing from the feed
// out of the classified activities.
//
// Each synthetic record keeps the source activity's id and timestamp, so
// the detail fetch correlates and the merged chronological order stays
// stable, and carries a provenance reference back to the activity. Gift
// records get the placeholder amount; splits have no amount at all.
func SyntheticTransactions(activities []*Activity) []*Transaction {
	var derived []*Transaction
	for _, a := range activities {
		switch {
		case giftEvents[a.EventType] != "":
			derived = append(derived, &Transaction{
				ID:        a.ID,
				Timestamp: a.Timestamp,
				Title:     a.Title,
				Subtitle:  a.Subtitle,
				Icon:      a.Icon,
				Status:    StatusExecuted,
				Amount: &MonetaryValue{
					Currency:       "EUR",
					Value:          PlaceholderAmount,
					FractionDigits: 2,
				},
				EventType:        giftEvents[a.EventType],
				SourceActivityID: a.ID,
			})
		case splitEvents[a.EventType]:
			derived = append(derived, &Transaction{
				ID:               a.ID,
				Timestamp:        a.Timestamp,
				Title:            a.Title,
				Subtitle:         a.Subtitle,
				Icon:             a.Icon,
				Status:           StatusExecuted,
				EventType:        TxSplit,
				SourceActivityID: a.ID,
			})
		}
	}
	return derived
}
