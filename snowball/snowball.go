// Package snowball exports the canonical ledger as a Snowball Analytics
// import CSV.
package snowball

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"

	trexport "github.com/DanielFerrariR/tr-exporter"
)

// Event names of the Snowball import format.
const (
	eventBuy         = "Buy"
	eventSell        = "Sell"
	eventDividend    = "Dividend"
	eventCashGain    = "Cash_Gain"
	eventCashExpense = "Cash_Expense"
	eventSplit       = "Split"
)

// cashPrice is the fixed unit price of a cash row.
const cashPrice = "1"

var headers = []string{
	"Event", "Date", "Symbol", "Price", "Quantity", "Currency",
	"FeeTax", "Exchange", "FeeCurrency", "DoNotAdjustCash", "Note",
}

// ExchangeResolver substitutes a tracker-supported exchange for the
// broker's own venue.
type ExchangeResolver interface {
	Resolve(isin string) (string, error)
}

// Export writes the ledger to w as Snowball CSV, one row per entry plus
// the header row. Instrument rows carry the entry's exchange, with the
// broker's own venue replaced through the resolver. An entry that cannot
// be converted is logged and skipped; the export never aborts halfway.
func Export(w io.Writer, ledger *trexport.Ledger, exchanges ExchangeResolver) error {
	out := csv.NewWriter(w)
	if err := out.Write(headers); err != nil {
		return err
	}
	for entry := range ledger.Entries() {
		row, err := convert(entry, exchanges)
		if err != nil {
			log.Printf("skipping %s entry of %s: %v", entry.Kind(), entry.When(), err)
			continue
		}
		if row == nil {
			continue
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func convert(entry trexport.Entry, exchanges ExchangeResolver) ([]string, error) {
	switch e := entry.(type) {
	case trexport.Order:
		return convertOrder(e, exchanges)
	case trexport.Dividend:
		return convertDividend(e, exchanges)
	case trexport.Cash:
		return convertCash(e), nil
	case trexport.CorporateAction:
		return convertSplit(e, exchanges)
	default:
		return nil, fmt.Errorf("no export rule for kind %q", entry.Kind())
	}
}

// venue maps the entry's exchange to a tracker-supported one. Only the
// broker's own venue needs substitution; anything else passes through.
func venue(exchange, isin string, exchanges ExchangeResolver) (string, error) {
	if exchange != trexport.DefaultExchange {
		return exchange, nil
	}
	return exchanges.Resolve(isin)
}

func convertOrder(e trexport.Order, exchanges ExchangeResolver) ([]string, error) {
	exchange, err := venue(e.Exchange, e.Instrument, exchanges)
	if err != nil {
		return nil, err
	}
	event := eventSell
	if e.Direction == trexport.Buy {
		event = eventBuy
	}
	return []string{
		event,
		e.Date.String(),
		e.Instrument,
		e.Price.String(),
		e.Quantity.String(),
		e.Currency,
		e.Fee.Add(e.Tax).String(),
		exchange,
		e.Currency,
		"",
		e.Title,
	}, nil
}

// convertDividend writes the payout total as the quantity and the
// per-share amount as the price, the way the import format expects.
func convertDividend(e trexport.Dividend, exchanges ExchangeResolver) ([]string, error) {
	exchange, err := venue(e.Exchange, e.Instrument, exchanges)
	if err != nil {
		return nil, err
	}
	return []string{
		eventDividend,
		e.Date.String(),
		e.Instrument,
		e.PerShare.String(),
		e.Total.String(),
		e.Currency,
		e.Tax.String(),
		exchange,
		e.Currency,
		"",
		e.Title,
	}, nil
}

func convertCash(e trexport.Cash) []string {
	event := eventCashExpense
	if e.Direction == trexport.CashGain {
		event = eventCashGain
	}
	return []string{
		event,
		e.Date.String(),
		"",
		cashPrice,
		e.Amount.String(),
		e.Currency,
		e.Tax.String(),
		"",
		e.Currency,
		"",
		e.Title,
	}
}

// convertSplit writes the share ratio as the row's price. A split moves
// no cash, hence DoNotAdjustCash.
func convertSplit(e trexport.CorporateAction, exchanges ExchangeResolver) ([]string, error) {
	if e.Debited.IsZero() {
		return nil, fmt.Errorf("split of %s with zero debited shares", e.Instrument)
	}
	exchange, err := venue(trexport.DefaultExchange, e.Instrument, exchanges)
	if err != nil {
		return nil, err
	}
	ratio := e.Credited.Div(e.Debited)
	return []string{
		eventSplit,
		e.Date.String(),
		e.Instrument,
		ratio.String(),
		"",
		"",
		"",
		exchange,
		"",
		"1",
		e.Title,
	}, nil
}
