package trexport

import (
	"iter"

	"github.com/shopspring/decimal"
)

// EntryKind is the discriminator of the canonical ledger entry union.
type EntryKind string

const (
	KindOrder           EntryKind = "order"
	KindDividend        EntryKind = "dividend"
	KindCash            EntryKind = "cash"
	KindCorporateAction EntryKind = "corporate-action"
)

// Entry is one canonical portfolio event, the system's sole externally
// meaningful output. Entries are immutable and each one traces back to
// exactly one source record.
type Entry interface {
	Kind() EntryKind
	When() Date
	Equal(Entry) bool
}

// Order is a purchase or sale of an instrument, including the gift
// transactions booked as zero-fee buys.
type Order struct {
	Title      string
	Event      TransactionEventType
	Direction  OrderDirection
	Date       Date
	Instrument string
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Currency   string
	Fee        decimal.Decimal
	Tax        decimal.Decimal
	// TaxCorrection is the refund attached to a sell order, if any. It
	// is also emitted as its own Cash entry; the field here only keeps
	// the order self-describing.
	TaxCorrection decimal.Decimal
	Exchange      string
}

func (e Order) Kind() EntryKind { return KindOrder }
func (e Order) When() Date      { return e.Date }
func (e Order) Equal(other Entry) bool {
	o, ok := other.(Order)
	return ok && e.Title == o.Title && e.Event == o.Event && e.Direction == o.Direction &&
		e.Date == o.Date && e.Instrument == o.Instrument && e.Currency == o.Currency &&
		e.Exchange == o.Exchange && e.Price.Equal(o.Price) && e.Quantity.Equal(o.Quantity) &&
		e.Fee.Equal(o.Fee) && e.Tax.Equal(o.Tax) && e.TaxCorrection.Equal(o.TaxCorrection)
}

// Dividend is a cash dividend payout. PerShare is back-computed from
// Total and Shares rather than read from the feed, because the displayed
// per-share figure may be rounded or quoted in a foreign currency.
type Dividend struct {
	Title      string
	Date       Date
	Instrument string
	Currency   string
	Tax        decimal.Decimal
	Exchange   string
	Shares     decimal.Decimal
	PerShare   decimal.Decimal
	Total      decimal.Decimal
}

func (e Dividend) Kind() EntryKind { return KindDividend }
func (e Dividend) When() Date      { return e.Date }
func (e Dividend) Equal(other Entry) bool {
	o, ok := other.(Dividend)
	return ok && e.Title == o.Title && e.Date == o.Date && e.Instrument == o.Instrument &&
		e.Currency == o.Currency && e.Exchange == o.Exchange && e.Tax.Equal(o.Tax) &&
		e.Shares.Equal(o.Shares) && e.PerShare.Equal(o.PerShare) && e.Total.Equal(o.Total)
}

// Cash is a cash movement with no instrument attached: interest payouts
// and tax corrections. Amount is always the absolute value; Direction
// carries the polarity.
type Cash struct {
	Title     string
	Event     TransactionEventType
	Direction CashDirection
	Date      Date
	Amount    decimal.Decimal
	Currency  string
	Tax       decimal.Decimal
}

func (e Cash) Kind() EntryKind { return KindCash }
func (e Cash) When() Date      { return e.Date }
func (e Cash) Equal(other Entry) bool {
	o, ok := other.(Cash)
	return ok && e.Title == o.Title && e.Event == o.Event && e.Direction == o.Direction &&
		e.Date == o.Date && e.Currency == o.Currency &&
		e.Amount.Equal(o.Amount) && e.Tax.Equal(o.Tax)
}

// CorporateAction records a split-like share count change: Credited
// shares replace Debited shares on the same instrument.
type CorporateAction struct {
	Title      string
	Date       Date
	Instrument string
	Credited   decimal.Decimal
	Debited    decimal.Decimal
}

func (e CorporateAction) Kind() EntryKind { return KindCorporateAction }
func (e CorporateAction) When() Date      { return e.Date }
func (e CorporateAction) Equal(other Entry) bool {
	o, ok := other.(CorporateAction)
	return ok && e.Title == o.Title && e.Date == o.Date && e.Instrument == o.Instrument &&
		e.Credited.Equal(o.Credited) && e.Debited.Equal(o.Debited)
}

// Ledger is the ordered list of canonical entries the mapper produced.
type Ledger struct {
	entries []Entry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make([]Entry, 0)}
}

// Append adds entries preserving their order.
func (l *Ledger) Append(entries ...Entry) { l.entries = append(l.entries, entries...) }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries iterates over the entries in order.
func (l *Ledger) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range l.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Equal reports whether two ledgers hold equal entries in the same order.
func (l *Ledger) Equal(other *Ledger) bool {
	if l.Len() != other.Len() {
		return false
	}
	for i := range l.entries {
		if !l.entries[i].Equal(other.entries[i]) {
			return false
		}
	}
	return true
}
