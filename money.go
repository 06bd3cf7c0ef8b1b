package trexport

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a single currency.
type Money struct {
	value decimal.Decimal // in major units
	cur   string
}

// M creates a Money from a decimal value and an ISO currency code.
func M(value decimal.Decimal, currency string) Money {
	return Money{value: value, cur: currency}
}

// Amount returns the decimal value of the money in major units.
func (m Money) Amount() decimal.Decimal { return m.value }

// Currency returns the money's ISO currency code.
func (m Money) Currency() string { return m.cur }

// currency resolves the full currency definition; the Money constructor
// guarantees a non-nil currency even for unknown codes.
func (m Money) currency() money.Currency { return *money.New(0, m.cur).Currency() }

// String formats the value with the currency's own symbol and fraction rules.
func (m Money) String() string {
	cur := m.currency()
	minor := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

func (m Money) IsZero() bool     { return m.value.IsZero() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }
func (m Money) IsPositive() bool { return m.value.IsPositive() }
func (m Money) Sign() int        { return m.value.Sign() }
func (m Money) Neg() Money       { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Abs() Money       { return Money{value: m.value.Abs(), cur: m.cur} }
func (m Money) Equal(n Money) bool {
	return m.cur == n.cur && m.value.Equal(n.value)
}

// MonetaryValue is the wire shape of an amount as the feed delivers it:
// a currency code, a value in major units, and the number of fraction
// digits the upstream app would display.
type MonetaryValue struct {
	Currency       string          `json:"currency"`
	Value          decimal.Decimal `json:"value"`
	FractionDigits int             `json:"fractionDigits"`
}

// Money converts the wire value into a Money.
func (v MonetaryValue) Money() Money { return M(v.Value, v.Currency) }

// amountPattern matches the first run of digits and separators inside a
// currency-formatted text fragment ("€1,234.56", "10.53 EUR", "Free").
var amountPattern = regexp.MustCompile(`[\d.,]+`)

// ParseAmount extracts a decimal value from a currency-formatted or
// locale-formatted text fragment.
//
// It takes the first run of digits and separators, strips
// thousands-separator commas and parses the rest. Text without any digits
// (including the "Free" fee sentinel and the empty string) parses as
// zero; ParseAmount never fails. This is the single shared numeric
// primitive for every monetary computation downstream: historical
// versions of this tool carried divergent copies and disagreed on edge
// cases, so all callers must go through this one.
func ParseAmount(text string) decimal.Decimal {
	match := strings.TrimRight(amountPattern.FindString(text), ".,")
	if match == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}
