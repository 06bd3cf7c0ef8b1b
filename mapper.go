package trexport

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// Row titles of the detail tables. The set has been stable even while
// the sections carrying them changed shape.
const (
	rowShares         = "Shares"
	rowSharePrice     = "Share price"
	rowFee            = "Fee"
	rowTax            = "Tax"
	rowTaxCorrection  = "Tax Correction"
	rowTotal          = "Total"
	rowTransaction    = "Transaction"
	rowSharesAdded    = "Shares added"
	rowSharesRemoved  = "Shares removed"
	rowCreditedShares = "Credited shares"
	rowDebitedShares  = "Debited shares"
)

// Values the upstream never includes in a detail payload.
const (
	// DefaultCurrency is the broker's settlement currency; detail rows
	// display everything converted into it.
	DefaultCurrency = "EUR"
	// DefaultExchange is the broker's own venue. Exporters substitute a
	// tracker-supported exchange for it.
	DefaultExchange = "LS-X"
)

// DividendStatement is the position a broker statement document reports
// for one dividend payment, plus the withheld tax.
type DividendStatement struct {
	Shares   decimal.Decimal
	PerShare decimal.Decimal
	Total    decimal.Decimal
	Tax      decimal.Decimal
}

// StatementSource resolves the statement document behind a dividend
// whose detail sections do not carry a usable position. A source
// reports failures itself; the mapper only sees whether data exists.
type StatementSource interface {
	DividendStatement(documentURL string, date Date, isin string) (DividendStatement, bool)
}

// MapOption configures one mapping run.
type MapOption func(*mapper)

// WithStatements lets the mapper fall back to statement documents for
// dividends without a share count in their detail sections.
func WithStatements(source StatementSource) MapOption {
	return func(m *mapper) { m.statements = source }
}

type mapper struct {
	statements StatementSource
}

// MapTransactions derives the canonical ledger from a classified,
// detail-enriched transaction list.
//
// Each transaction dispatches on its event type to exactly one handler.
// A handler failure (missing section, malformed identifier) skips that
// single transaction with a log line and never aborts the batch.
// Canceled transactions and event types with no portfolio effect produce
// nothing. Mapping the same list twice yields identical ledgers, as long
// as a configured statement source answers consistently.
func MapTransactions(transactions []*Transaction, opts ...MapOption) *Ledger {
	var m mapper
	for _, opt := range opts {
		opt(&m)
	}
	ledger := NewLedger()
	for _, t := range transactions {
		if t.Status == StatusCanceled {
			continue
		}
		if t.EventType == "" {
			if t.Amount != nil {
				log.Printf("skipping unclassified transaction %s (%s, %s)", t.ID, t.Title, t.Amount.Money())
			} else {
				log.Printf("skipping unclassified transaction %s (%s)", t.ID, t.Title)
			}
			continue
		}
		entries, err := m.mapTransaction(t)
		if err != nil {
			log.Printf("skipping transaction %s (%s): %v", t.ID, t.Title, err)
			continue
		}
		ledger.Append(entries...)
	}
	return ledger
}

// mapTransaction dispatches a single transaction to its handler.
func (m *mapper) mapTransaction(t *Transaction) ([]Entry, error) {
	switch t.EventType {
	case TxDividend:
		return m.mapDividend(t)
	case TxWelcomeStockGift:
		// Welcome gifts already use the newer detail layout.
		return mapStockGift(t, SectionTransaction)
	case TxReceivedGift, TxGiveAwayGift:
		return mapStockGift(t, SectionOverview)
	case TxTrade, TxSavingsPlan, TxRoundup, TxCashback:
		return mapTrade(t)
	case TxInterest:
		return mapInterest(t)
	case TxTaxCorrection:
		return mapTaxCorrection(t)
	case TxSplit:
		return mapCorporateAction(t)
	default:
		// Event types with no portfolio effect.
		return nil, nil
	}
}

// mapDividend reads shares, tax and the pre-tax total from the
// "Transaction" table. The displayed total excludes tax and the
// displayed per-share figure may be rounded or in a foreign currency,
// so both are recomputed: total = displayed + tax, per-share = total /
// shares.
//
// When the detail sections carry no share count at all (old payloads
// only link the statement document), the figures come from the
// statement source instead, if one is configured.
func (m *mapper) mapDividend(t *Transaction) ([]Entry, error) {
	instrument, err := InstrumentFromIcon(t.Icon)
	if err != nil {
		return nil, err
	}

	var shares, perShare, total, tax decimal.Decimal
	if table := FindTable(t.Sections, SectionTransaction); table != nil {
		tax = ParseAmount(table.Row(rowTax).Text())
		total = ParseAmount(table.Row(rowTotal).Text()).Add(tax)
		shares = ParseAmount(table.Row(rowShares).Text())
	}
	if shares.IsZero() {
		if data, ok := m.statementFor(t, instrument); ok {
			shares, perShare, total, tax = data.Shares, data.PerShare, data.Total, data.Tax
		}
	}
	if shares.IsZero() {
		return nil, fmt.Errorf("dividend with zero shares")
	}
	if perShare.IsZero() {
		perShare = total.DivRound(shares, 2)
	}

	return []Entry{Dividend{
		Title:      t.Title,
		Date:       DateOf(t.Timestamp),
		Instrument: instrument,
		Currency:   DefaultCurrency,
		Tax:        tax,
		Exchange:   DefaultExchange,
		Shares:     shares,
		PerShare:   perShare,
		Total:      total,
	}}, nil
}

// statementFor resolves the first statement document linked from a
// dividend's documents section, when a source is configured and the
// record links one.
func (m *mapper) statementFor(t *Transaction, instrument string) (DividendStatement, bool) {
	if m.statements == nil {
		return DividendStatement{}, false
	}
	docs := FindDocuments(t.Sections)
	if docs == nil || len(docs.Documents) == 0 {
		return DividendStatement{}, false
	}
	url := docs.Documents[0].Action.Payload
	if url == "" {
		return DividendStatement{}, false
	}
	return m.statements.DividendStatement(url, DateOf(t.Timestamp), instrument)
}

// mapStockGift books a received gift as a zero-fee buy order. The
// transaction's own icon is the generic gift artwork, so the instrument
// comes from the detail header section instead.
func mapStockGift(t *Transaction, tableTitle string) ([]Entry, error) {
	instrument, err := InstrumentFromHeader(t.Sections)
	if err != nil {
		return nil, err
	}
	table := FindTable(t.Sections, tableTitle)
	if table == nil {
		return nil, fmt.Errorf("missing %q section", tableTitle)
	}

	quantity := ParseAmount(table.Row(rowShares).Text())
	price := ParseAmount(table.Row(rowSharePrice).Text())

	return []Entry{Order{
		Title:      t.Title,
		Event:      t.EventType,
		Direction:  ClassifyDirection(t),
		Date:       DateOf(t.Timestamp),
		Instrument: instrument,
		Price:      price,
		Quantity:   quantity,
		Currency:   DefaultCurrency,
		Fee:        decimal.Zero,
		Tax:        decimal.Zero,
		Exchange:   DefaultExchange,
	}}, nil
}

// mapTrade handles trades, savings plan executions, round-ups and
// cashback buys. It reads the newer "Transaction" table when present and
// falls back to the legacy "Overview" layout, where the nested
// "Transaction" row encodes the price as display text and the quantity
// as the display value's prefix fragment.
//
// A non-zero "Tax Correction" row (a refund on a sell) additionally
// yields a separate same-day cash gain entry, never merged into the
// order itself.
func mapTrade(t *Transaction) ([]Entry, error) {
	instrument, err := InstrumentFromIcon(t.Icon)
	if err != nil {
		return nil, err
	}

	var price, quantity, fee, tax, taxCorrection decimal.Decimal
	if table := FindTable(t.Sections, SectionTransaction); table != nil {
		quantity = ParseAmount(table.Row(rowShares).Text())
		price = ParseAmount(table.Row(rowSharePrice).Text())
		fee = ParseAmount(table.Row(rowFee).Text())
		tax = ParseAmount(table.Row(rowTax).Text())
		taxCorrection = ParseAmount(table.Row(rowTaxCorrection).Text())
	} else if overview := FindTable(t.Sections, SectionOverview); overview != nil {
		row := overview.Row(rowTransaction)
		if row == nil {
			return nil, fmt.Errorf("missing %q row in %q section", rowTransaction, SectionOverview)
		}
		price = ParseAmount(row.Text())
		quantity = ParseAmount(row.Prefix())
		fee = ParseAmount(overview.Row(rowFee).Text())
		tax = ParseAmount(overview.Row(rowTax).Text())
	} else {
		return nil, fmt.Errorf("missing %q or %q section", SectionTransaction, SectionOverview)
	}

	entries := []Entry{Order{
		Title:         t.Title,
		Event:         t.EventType,
		Direction:     ClassifyDirection(t),
		Date:          DateOf(t.Timestamp),
		Instrument:    instrument,
		Price:         price,
		Quantity:      quantity,
		Currency:      DefaultCurrency,
		Fee:           fee,
		Tax:           tax,
		TaxCorrection: taxCorrection,
		Exchange:      DefaultExchange,
	}}

	if taxCorrection.IsPositive() {
		entries = append(entries, Cash{
			Title:     t.Title + " - Tax Correction",
			Event:     TxTaxCorrection,
			Direction: CashGain,
			Date:      DateOf(t.Timestamp),
			Amount:    taxCorrection,
			Currency:  DefaultCurrency,
			Tax:       decimal.Zero,
		})
	}
	return entries, nil
}

// mapInterest books an interest payout. The amount comes from the
// transaction's own amount field; the tax, when the feed version carries
// one at all, from a "Tax" row and may legitimately be zero.
func mapInterest(t *Transaction) ([]Entry, error) {
	if t.Amount == nil {
		return nil, fmt.Errorf("interest without amount")
	}
	tax := decimal.Zero
	if table := FindTable(t.Sections, SectionTransaction); table != nil {
		tax = ParseAmount(table.Row(rowTax).Text())
	}
	return []Entry{Cash{
		Title:     t.Title,
		Event:     t.EventType,
		Direction: ClassifyCashDirection(t.Amount.Value.Sign()),
		Date:      DateOf(t.Timestamp),
		Amount:    t.Amount.Value.Abs(),
		Currency:  DefaultCurrency,
		Tax:       tax,
	}}, nil
}

// mapTaxCorrection books a standalone tax correction: polarity is the
// sign of the transaction's own amount, magnitude its absolute value.
func mapTaxCorrection(t *Transaction) ([]Entry, error) {
	if t.Amount == nil {
		return nil, fmt.Errorf("tax correction without amount")
	}
	return []Entry{Cash{
		Title:     t.Title,
		Event:     t.EventType,
		Direction: ClassifyCashDirection(t.Amount.Value.Sign()),
		Date:      DateOf(t.Timestamp),
		Amount:    t.Amount.Value.Abs(),
		Currency:  DefaultCurrency,
		Tax:       decimal.Zero,
	}}, nil
}

// mapCorporateAction reads the credited and debited share counts of a
// split. Newer payloads carry them in an "Overview" table as "Shares
// added"/"Shares removed"; older ones in a "Transaction" table as
// "Credited shares"/"Debited shares". Tried in that order.
func mapCorporateAction(t *Transaction) ([]Entry, error) {
	instrument, err := InstrumentFromIcon(t.Icon)
	if err != nil {
		return nil, err
	}

	var credited, debited decimal.Decimal
	if overview := FindTable(t.Sections, SectionOverview); overview != nil && overview.Row(rowSharesAdded) != nil {
		credited = ParseAmount(overview.Row(rowSharesAdded).Text())
		debited = ParseAmount(overview.Row(rowSharesRemoved).Text())
	} else if table := FindTable(t.Sections, SectionTransaction); table != nil && table.Row(rowCreditedShares) != nil {
		credited = ParseAmount(table.Row(rowCreditedShares).Text())
		debited = ParseAmount(table.Row(rowDebitedShares).Text())
	} else {
		return nil, fmt.Errorf("no share count rows in any known section layout")
	}

	return []Entry{CorporateAction{
		Title:      t.Title,
		Date:       DateOf(t.Timestamp),
		Instrument: instrument,
		Credited:   credited,
		Debited:    debited,
	}}, nil
}
