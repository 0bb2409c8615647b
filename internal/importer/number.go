package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Cell is one spreadsheet value. Numeric is set when the workbook stored a
// number rather than text, in which case Raw is the unformatted value.
type Cell struct {
	Raw     string
	Numeric bool
}

func Text(s string) Cell {
	return Cell{Raw: s}
}

func Number(s string) Cell {
	return Cell{Raw: s, Numeric: true}
}

func (c Cell) String() string {
	return strings.TrimSpace(c.Raw)
}

func (c Cell) Empty() bool {
	return c.String() == ""
}

// Decimal reads the cell as money. Native numbers pass through, text goes
// through ParseLocaleNumber.
func (c Cell) Decimal() decimal.Decimal {
	if c.Numeric {
		if d, err := decimal.NewFromString(c.String()); err == nil {
			return d
		}
	}
	return ParseLocaleNumber(c.Raw)
}

// ParseLocaleNumber parses Indonesian formatted amounts such as
// "Rp 1.500.000" or "30.000,50". Anything unreadable is zero.
func ParseLocaleNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "rp") {
		s = s[2:]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Zero
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case commas > 1 && dots <= 1:
		// 1,500,000 or 1,500,000.50
		s = strings.ReplaceAll(s, ",", "")
	case dots > 0 && commas == 0:
		s = strings.ReplaceAll(s, ".", "")
	case dots > 0 && commas == 1:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
