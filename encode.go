package trexport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Every stage's output is persisted as JSONL, one record per line, so
// artifacts stay human-readable, diffable and independently reloadable:
// a convert or export run does not need the feed again.

const entryAttr = "entry" // discriminator property of ledger lines

// MarshalJSON implements the json.Marshaler interface for Order.
func (e Order) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append(entryAttr, KindOrder)
	w.Append("title", e.Title)
	w.Append("eventType", e.Event)
	w.Append("direction", e.Direction)
	w.Append("date", e.Date)
	w.Append("instrument", e.Instrument)
	w.Append("price", e.Price)
	w.Append("quantity", e.Quantity)
	w.Append("currency", e.Currency)
	w.Append("fee", e.Fee)
	w.Append("tax", e.Tax)
	w.Append("taxCorrection", e.TaxCorrection)
	w.Append("exchange", e.Exchange)
	return w.MarshalJSON()
}

// MarshalJSON implements the json.Marshaler interface for Dividend.
func (e Dividend) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append(entryAttr, KindDividend)
	w.Append("title", e.Title)
	w.Append("date", e.Date)
	w.Append("instrument", e.Instrument)
	w.Append("currency", e.Currency)
	w.Append("tax", e.Tax)
	w.Append("exchange", e.Exchange)
	w.Append("shares", e.Shares)
	w.Append("dividendPerShare", e.PerShare)
	w.Append("dividendTotal", e.Total)
	return w.MarshalJSON()
}

// MarshalJSON implements the json.Marshaler interface for Cash.
func (e Cash) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append(entryAttr, KindCash)
	w.Append("title", e.Title)
	w.Append("eventType", e.Event)
	w.Append("direction", e.Direction)
	w.Append("date", e.Date)
	w.Append("amount", e.Amount)
	w.Append("currency", e.Currency)
	w.Append("tax", e.Tax)
	return w.MarshalJSON()
}

// MarshalJSON implements the json.Marshaler interface for CorporateAction.
func (e CorporateAction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append(entryAttr, KindCorporateAction)
	w.Append("title", e.Title)
	w.Append("date", e.Date)
	w.Append("instrument", e.Instrument)
	w.Append("creditedShares", e.Credited)
	w.Append("debitedShares", e.Debited)
	return w.MarshalJSON()
}

// EncodeLedger writes the ledger to w in JSONL, one entry per line.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	enc := json.NewEncoder(w)
	for entry := range ledger.Entries() {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("cannot encode ledger entry: %w", err)
		}
	}
	return nil
}

// DecodeLedger reads a JSONL ledger back, dispatching each line on its
// entry discriminator.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	ledger := NewLedger()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var identifier struct {
			Entry EntryKind `json:"entry"`
		}
		if err := json.Unmarshal(line, &identifier); err != nil {
			return nil, fmt.Errorf("cannot identify entry in line %q: %w", string(line), err)
		}

		var decoded Entry
		var err error
		switch identifier.Entry {
		case KindOrder:
			var temp struct {
				Title         string               `json:"title"`
				Event         TransactionEventType `json:"eventType"`
				Direction     OrderDirection       `json:"direction"`
				Date          Date                 `json:"date"`
				Instrument    string               `json:"instrument"`
				Price         decimal.Decimal      `json:"price"`
				Quantity      decimal.Decimal      `json:"quantity"`
				Currency      string               `json:"currency"`
				Fee           decimal.Decimal      `json:"fee"`
				Tax           decimal.Decimal      `json:"tax"`
				TaxCorrection decimal.Decimal      `json:"taxCorrection"`
				Exchange      string               `json:"exchange"`
			}
			err = json.Unmarshal(line, &temp)
			decoded = Order(temp)
		case KindDividend:
			var temp struct {
				Title      string          `json:"title"`
				Date       Date            `json:"date"`
				Instrument string          `json:"instrument"`
				Currency   string          `json:"currency"`
				Tax        decimal.Decimal `json:"tax"`
				Exchange   string          `json:"exchange"`
				Shares     decimal.Decimal `json:"shares"`
				PerShare   decimal.Decimal `json:"dividendPerShare"`
				Total      decimal.Decimal `json:"dividendTotal"`
			}
			err = json.Unmarshal(line, &temp)
			decoded = Dividend(temp)
		case KindCash:
			var temp struct {
				Title     string               `json:"title"`
				Event     TransactionEventType `json:"eventType"`
				Direction CashDirection        `json:"direction"`
				Date      Date                 `json:"date"`
				Amount    decimal.Decimal      `json:"amount"`
				Currency  string               `json:"currency"`
				Tax       decimal.Decimal      `json:"tax"`
			}
			err = json.Unmarshal(line, &temp)
			decoded = Cash(temp)
		case KindCorporateAction:
			var temp struct {
				Title      string          `json:"title"`
				Date       Date            `json:"date"`
				Instrument string          `json:"instrument"`
				Credited   decimal.Decimal `json:"creditedShares"`
				Debited    decimal.Decimal `json:"debitedShares"`
			}
			err = json.Unmarshal(line, &temp)
			decoded = CorporateAction(temp)
		default:
			return nil, fmt.Errorf("unknown ledger entry kind %q in line %q", identifier.Entry, string(line))
		}
		if err != nil {
			return nil, fmt.Errorf("cannot decode %q entry: %w", identifier.Entry, err)
		}
		ledger.Append(decoded)
	}
	return ledger, scanner.Err()
}

// EncodeActivities writes activities to w in JSONL.
func EncodeActivities(w io.Writer, activities []*Activity) error {
	enc := json.NewEncoder(w)
	for _, a := range activities {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("cannot encode activity %s: %w", a.ID, err)
		}
	}
	return nil
}

// DecodeActivities reads a JSONL activity list.
func DecodeActivities(r io.Reader) ([]*Activity, error) {
	var activities []*Activity
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		a := new(Activity)
		if err := json.Unmarshal(line, a); err != nil {
			return nil, fmt.Errorf("cannot parse activity line %q: %w", string(line), err)
		}
		activities = append(activities, a)
	}
	return activities, scanner.Err()
}

// EncodeTransactions writes transactions, including their detail
// sections, to w in JSONL.
func EncodeTransactions(w io.Writer, transactions []*Transaction) error {
	enc := json.NewEncoder(w)
	for _, t := range transactions {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("cannot encode transaction %s: %w", t.ID, err)
		}
	}
	return nil
}

// DecodeTransactions reads a JSONL transaction list. Detail payloads can
// run long, so the line buffer is generous.
func DecodeTransactions(r io.Reader) ([]*Transaction, error) {
	var transactions []*Transaction
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t := new(Transaction)
		if err := json.Unmarshal(line, t); err != nil {
			return nil, fmt.Errorf("cannot parse transaction line %q: %w", string(line), err)
		}
		transactions = append(transactions, t)
	}
	return transactions, scanner.Err()
}
