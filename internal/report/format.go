package report

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const na = "n/a"

// money renders an amount with two decimals and thousands separators.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return money(d.Decimal)
}

func percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return d.Decimal.StringFixed(2) + "%"
}

func ratio(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return d.Decimal.StringFixed(4)
}

func date(d *civil.Date) string {
	if d == nil {
		return na
	}
	return d.String()
}
