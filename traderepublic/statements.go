package traderepublic

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	trexport "github.com/DanielFerrariR/tr-exporter"
)

// StatementData is the position and withholding tax information
// recovered from a dividend statement document. Figures are in the
// statement's own currency, which may differ from the settlement
// currency of the transaction.
type StatementData struct {
	Shares      decimal.Decimal `json:"shares"`
	PerShare    decimal.Decimal `json:"dividendPerShare"`
	Total       decimal.Decimal `json:"dividendTotal"`
	Currency    string          `json:"currency"`
	Tax         decimal.Decimal `json:"taxAmount"`
	TaxCurrency string          `json:"taxCurrency"`
}

// Statement text comes in two layouts. The older one puts the position
// on one line after the ISIN ("US7561091049 78.897459 Stücke 0.2695 USD
// 21.26 USD"), the newer one labels the ISIN separately and counts in
// "Stk." with comma decimals ("ISIN: US89832Q1094 ... 10 Stk. 0,52 USD
// 5,20 USD"). Withholding tax sits on a "Quellensteuer" line in both.
var (
	positionPattern    = regexp.MustCompile(`([A-Z0-9]{12})\s+([\d.,]+)\s+Stücke\s+([\d.,]+)\s+([A-Z]{3})\s+([\d.,]+)\s+([A-Z]{3})`)
	positionAltPattern = regexp.MustCompile(`(?s)ISIN:\s*([A-Z0-9]{12}).*?([\d.,]+)\s+Stk\.\s+([\d.,]+)\s+([A-Z]{3})\s+([\d.,]+)\s+([A-Z]{3})`)
	withholdingPattern = regexp.MustCompile(`Quellensteuer.*?-([\d.,]+)\s+([A-Z]{3})`)
)

// statementAmount parses a statement figure, which uses a comma as the
// decimal separator in the newer layout.
func statementAmount(text string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
}

// ParseStatement extracts the dividend position and withholding tax from
// a statement's text. Absence of a position line is an error; absence of
// a tax line is not, statements without foreign withholding simply have
// none.
func ParseStatement(text string) (StatementData, error) {
	var data StatementData

	match := positionPattern.FindStringSubmatch(text)
	if match == nil {
		match = positionAltPattern.FindStringSubmatch(text)
	}
	if match == nil {
		return data, errors.New("no position line in statement text")
	}
	var err error
	if data.Shares, err = statementAmount(match[2]); err != nil {
		return data, fmt.Errorf("bad share count %q: %w", match[2], err)
	}
	if data.PerShare, err = statementAmount(match[3]); err != nil {
		return data, fmt.Errorf("bad per-share amount %q: %w", match[3], err)
	}
	data.Currency = match[4]
	if data.Total, err = statementAmount(match[5]); err != nil {
		return data, fmt.Errorf("bad total amount %q: %w", match[5], err)
	}

	if tax := withholdingPattern.FindStringSubmatch(text); tax != nil {
		if data.Tax, err = statementAmount(tax[1]); err != nil {
			return data, fmt.Errorf("bad tax amount %q: %w", tax[1], err)
		}
		data.TaxCurrency = tax[2]
	}
	return data, nil
}

// StatementKey is the cache key of one statement: transaction date,
// instrument and a fingerprint of the document URL, so a re-issued
// document under a new URL is fetched again.
func StatementKey(documentURL string, date trexport.Date, isin string) string {
	hash := fmt.Sprintf("%x", md5.Sum([]byte(documentURL)))
	return fmt.Sprintf("%s_%s_%s", date, isin, hash[:8])
}

// TextExtractor recovers plain text from a downloaded statement
// document. Document decoding is the caller's concern; the zero
// Statements is unusable without one.
type TextExtractor func(raw []byte) (string, error)

// Statements fetches dividend statements and caches their parsed data on
// disk, one JSON file for the whole cache. Not safe for concurrent use.
type Statements struct {
	client  *http.Client
	extract TextExtractor
	path    string
	data    map[string]StatementData
}

// OpenStatements loads the statement cache at path, creating an empty
// one when the file does not exist yet.
func OpenStatements(path string, client *http.Client, extract TextExtractor) (*Statements, error) {
	s := &Statements{
		client:  client,
		extract: extract,
		path:    path,
		data:    make(map[string]StatementData),
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read statement cache %q: %w", path, err)
	}
	if err := json.Unmarshal(content, &s.data); err != nil {
		return nil, fmt.Errorf("corrupt statement cache %q: %w", path, err)
	}
	return s, nil
}

// Get returns the statement data for a document, downloading and parsing
// it on a cache miss.
func (s *Statements) Get(documentURL string, date trexport.Date, isin string) (StatementData, error) {
	key := StatementKey(documentURL, date, isin)
	if data, ok := s.data[key]; ok {
		return data, nil
	}

	resp, err := s.client.Get(documentURL)
	if err != nil {
		return StatementData{}, fmt.Errorf("cannot download statement for %s: %w", isin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatementData{}, fmt.Errorf("cannot download statement for %s: %s", isin, resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatementData{}, err
	}

	text, err := s.extract(raw)
	if err != nil {
		return StatementData{}, fmt.Errorf("cannot extract statement text for %s: %w", isin, err)
	}
	data, err := ParseStatement(text)
	if err != nil {
		return StatementData{}, fmt.Errorf("statement for %s: %w", isin, err)
	}

	s.data[key] = data
	return data, nil
}

// DividendStatement implements trexport.StatementSource. A document
// that cannot be fetched or parsed is logged and reported as absent;
// the mapper then skips that one dividend instead of aborting.
func (s *Statements) DividendStatement(documentURL string, date trexport.Date, isin string) (trexport.DividendStatement, bool) {
	data, err := s.Get(documentURL, date, isin)
	if err != nil {
		log.Printf("no statement data for %s: %v", isin, err)
		return trexport.DividendStatement{}, false
	}
	return trexport.DividendStatement{
		Shares:   data.Shares,
		PerShare: data.PerShare,
		Total:    data.Total,
		Tax:      data.Tax,
	}, true
}

// Flush writes the cache back to disk.
func (s *Statements) Flush() error {
	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path, content, 0644)
}
