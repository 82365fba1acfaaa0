package table

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountReplacer removes grouping characters and currency symbols that
// spreadsheet exports put into numeric cells.
var amountReplacer = strings.NewReplacer(
	",", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"'", "",
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
)

// ParseAmount parses a numeric cell.
//
// A blank cell yields an invalid NullDecimal and no error. A cell that is not
// a number yields an invalid NullDecimal and an error describing the value,
// so callers can surface it instead of treating it as zero.
//
// Accepted forms: "1234.5", "1,234.50", "-12", "(12.00)" for negatives,
// "1.2E+3", with optional currency symbols.
func ParseAmount(raw string) (decimal.NullDecimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = amountReplacer.Replace(s)
	if s == "" || s == "-" {
		return decimal.NullDecimal{}, fmt.Errorf("%q is not a number", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%q is not a number", raw)
	}

	if negative {
		d = d.Neg()
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// ParseAmountOrZero parses an optional numeric cell where blanks mean zero.
// Unparseable values also fall back to zero; the error is still returned so
// the caller can report it.
func ParseAmountOrZero(raw string) (decimal.Decimal, error) {
	v, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.Valid {
		return decimal.Zero, nil
	}
	return v.Decimal, nil
}
