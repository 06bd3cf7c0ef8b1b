package trexport

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger()
	ledger.Append(
		Order{
			Title:      "Apple",
			Event:      TxTrade,
			Direction:  Buy,
			Date:       NewDate(2024, 3, 1),
			Instrument: "US0378331005",
			Price:      decimal.RequireFromString("170.10"),
			Quantity:   decimal.RequireFromString("1.5"),
			Currency:   "EUR",
			Fee:        decimal.Zero,
			Tax:        decimal.Zero,
			Exchange:   "LS-X",
		},
		Dividend{
			Title:      "Realty Income",
			Date:       NewDate(2024, 3, 15),
			Instrument: "US7561091049",
			Currency:   "EUR",
			Tax:        decimal.RequireFromString("3.19"),
			Exchange:   "LS-X",
			Shares:     decimal.RequireFromString("78.897459"),
			PerShare:   decimal.RequireFromString("0.27"),
			Total:      decimal.RequireFromString("21.26"),
		},
		Cash{
			Title:     "Interest",
			Event:     TxInterest,
			Direction: CashGain,
			Date:      NewDate(2024, 4, 1),
			Amount:    decimal.RequireFromString("4.56"),
			Currency:  "EUR",
			Tax:       decimal.Zero,
		},
		CorporateAction{
			Title:      "Nvidia",
			Date:       NewDate(2024, 6, 10),
			Instrument: "US67066G1040",
			Credited:   decimal.RequireFromString("40"),
			Debited:    decimal.RequireFromString("4"),
		},
	)
	return ledger
}

func TestLedgerRoundTrip(t *testing.T) {
	ledger := sampleLedger(t)

	var buf bytes.Buffer
	if err := EncodeLedger(&buf, ledger); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != ledger.Len() {
		t.Fatalf("encoded %d lines for %d entries", len(lines), ledger.Len())
	}
	// The discriminator leads every line so readers can dispatch without
	// parsing the whole record.
	for i, line := range lines {
		if !strings.HasPrefix(line, `{"entry":`) {
			t.Errorf("line %d does not lead with the discriminator: %s", i, line)
		}
	}

	back, err := DecodeLedger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !ledger.Equal(back) {
		t.Error("round trip changed the ledger")
	}
}

func TestLedgerEncodingIsStable(t *testing.T) {
	ledger := sampleLedger(t)
	var a, b bytes.Buffer
	if err := EncodeLedger(&a, ledger); err != nil {
		t.Fatal(err)
	}
	if err := EncodeLedger(&b, ledger); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two encodings of the same ledger differ")
	}
}

func TestDecodeLedgerRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeLedger(strings.NewReader(`{"entry":"margin-call"}` + "\n")); err == nil {
		t.Fatal("want error for unknown entry kind")
	}
}

func TestDecodeLedgerSkipsBlankLines(t *testing.T) {
	ledger, err := DecodeLedger(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Len() != 0 {
		t.Errorf("got %d entries", ledger.Len())
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []*Transaction{
		{
			ID:        "t1",
			Timestamp: ts,
			Title:     "Apple",
			Subtitle:  sub("Buy Order"),
			Icon:      "logos/US0378331005/v2",
			Status:    StatusExecuted,
			Amount:    &MonetaryValue{Currency: "EUR", Value: decimal.RequireFromString("-255.15"), FractionDigits: 2},
			EventType: TxTrade,
			Sections: mustSections(t, `[
				{"type":"header","title":"Order","data":{"icon":"logos/US0378331005/v2"}},
				{"type":"table","title":"Transaction","data":[{"title":"Shares","detail":{"text":"1.5"}}]},
				{"type":"banner","title":"New","data":{"text":"future section"}}
			]`),
		},
		{
			ID:               "a1",
			Timestamp:        ts,
			Title:            "Stock Gift",
			Subtitle:         sub("Accepted"),
			Status:           StatusExecuted,
			EventType:        TxReceivedGift,
			SourceActivityID: "a1",
		},
	}

	var buf bytes.Buffer
	if err := EncodeTransactions(&buf, txs); err != nil {
		t.Fatal(err)
	}
	back, err := DecodeTransactions(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 {
		t.Fatalf("got %d transactions", len(back))
	}

	if back[0].ID != "t1" || back[0].EventType != TxTrade {
		t.Errorf("first = %+v", back[0])
	}
	if len(back[0].Sections) != 3 {
		t.Fatalf("sections lost: %d", len(back[0].Sections))
	}
	if FindTable(back[0].Sections, SectionTransaction).Row("Shares").Text() != "1.5" {
		t.Error("table row lost in round trip")
	}
	if back[0].Sections[2].SectionType() != "banner" {
		t.Error("unknown section type lost in round trip")
	}
	if !back[1].Synthetic() || back[1].EventType != TxReceivedGift {
		t.Errorf("second = %+v", back[1])
	}
}

func TestTransactionEncodingOmitsAttachedFields(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fresh := &Transaction{ID: "t1", Timestamp: ts, Title: "Rewe", Status: StatusExecuted}

	encoded, err := json.Marshal(fresh)
	if err != nil {
		t.Fatal(err)
	}
	// A record straight from the feed persists without the fields the
	// classifier and the synthesizer attach.
	for _, key := range []string{"eventType", "sourceActivityId"} {
		if strings.Contains(string(encoded), key) {
			t.Errorf("unclassified record carries %q: %s", key, encoded)
		}
	}

	fresh.EventType = TxCardPayment
	fresh.SourceActivityID = "a1"
	encoded, err = json.Marshal(fresh)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"eventType":"card-payment"`, `"sourceActivityId":"a1"`} {
		if !strings.Contains(string(encoded), key) {
			t.Errorf("missing %s in %s", key, encoded)
		}
	}
}

func TestActivitiesRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	activities := []*Activity{
		{ID: "a1", Timestamp: ts, Title: "Stock Gift", Subtitle: sub("Accepted"), Icon: "logos/US0378331005/v2", EventType: ActivityReceivedGift},
		{ID: "a2", Timestamp: ts, Title: "Rewe"},
	}
	var buf bytes.Buffer
	if err := EncodeActivities(&buf, activities); err != nil {
		t.Fatal(err)
	}
	back, err := DecodeActivities(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 {
		t.Fatalf("got %d activities", len(back))
	}
	if back[0].EventType != ActivityReceivedGift {
		t.Errorf("event type lost: %+v", back[0])
	}
	if back[1].Subtitle != nil {
		t.Errorf("null subtitle decoded as %q", *back[1].Subtitle)
	}
}
