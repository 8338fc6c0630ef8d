package cleaning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimals kept for every amount.
const MoneyScale = 2

// maxMoney bounds DECIMAL(18,2): 16 integer digits.
var maxMoney = decimal.New(1, 16)

const (
	maxMoneyDigits = 16

	// maxFractionDigits bounds the scale accepted in a cell. Rounding a
	// value rescales its coefficient, which grows with the exponent.
	maxFractionDigits = 32
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01-02-06",
	"1/2/2006",
	"1/2/06",
}

// ParseDate coerces a raw date cell. Times of day are dropped.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q", s)
}

// ParseMoney coerces a raw amount cell to a decimal rounded to MoneyScale,
// half away from zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := checkMagnitude(d, maxMoneyDigits); err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	d = d.Round(MoneyScale)
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return decimal.Decimal{}, fmt.Errorf("amount %q exceeds DECIMAL(18,2)", s)
	}
	return d, nil
}

// ParseYear coerces a raw year cell. Spreadsheet exports may render integer
// years as "2024.0".
func ParseYear(s string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid year %q: %w", s, err)
	}
	if err := checkMagnitude(d, 4); err != nil {
		return 0, fmt.Errorf("invalid year %q: %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("invalid year %q: not an integer", s)
	}
	y := d.IntPart()
	if y < 1 || y > 9999 {
		return 0, errors.New("year out of range")
	}
	return int(y), nil
}

// checkMagnitude rejects values with more than intDigits integer digits or
// more than maxFractionDigits decimals. It only inspects the coefficient and
// the exponent, so it is safe on inputs such as "1e2000000000".
func checkMagnitude(d decimal.Decimal, intDigits int) error {
	exp := int64(d.Exponent())
	if exp < -maxFractionDigits {
		return fmt.Errorf("more than %d decimals", maxFractionDigits)
	}
	if int64(d.NumDigits())+exp > int64(intDigits) {
		return fmt.Errorf("exceeds %d integer digits", intDigits)
	}
	return nil
}
