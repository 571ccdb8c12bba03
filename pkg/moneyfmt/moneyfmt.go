// Package moneyfmt renders decimal amounts for people. Output is for display
// only and is never parsed back into a calculation.
package moneyfmt

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Amounts with more digits than this lose precision as float64 and are laid
// out from the exact decimal string instead.
const maxFloatDigits = 15

// Formatter formats amounts for one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
	symbols symbols
}

// symbols are the locale's digits and separators, read off a sample number.
type symbols struct {
	digits  [10]string
	group   string
	decimal string
}

// New returns a Formatter for a BCP 47 locale, falling back to English
// when the locale does not parse.
func New(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	printer := message.NewPrinter(tag)
	return &Formatter{tag: tag, printer: printer, symbols: readSymbols(printer)}
}

func readSymbols(p *message.Printer) symbols {
	const order = "98765432105"
	sym := symbols{group: ",", decimal: "."}
	for i := range sym.digits {
		sym.digits[i] = string(rune('0' + i))
	}

	sample := []rune(p.Sprint(number.Decimal(9876543210.5, number.Scale(1))))
	var runs []string
	var sep strings.Builder
	n := 0
	for _, r := range sample {
		if !unicode.IsDigit(r) {
			sep.WriteRune(r)
			continue
		}
		if n >= len(order) {
			return sym
		}
		if n > 0 && sep.Len() > 0 {
			runs = append(runs, sep.String())
		}
		sep.Reset()
		sym.digits[order[n]-'0'] = string(r)
		n++
	}
	if n != len(order) || len(runs) < 2 {
		return symbols{digits: sym.digits, group: ",", decimal: "."}
	}
	sym.group = runs[0]
	sym.decimal = runs[len(runs)-1]
	return sym
}

// Locale is the resolved locale tag.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Format renders amount with its ISO code, rounded to the currency's
// standard number of digits. Unknown codes get two digits and the raw code.
func (f *Formatter) Format(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " " + f.number(amount, 2)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return f.printer.Sprint(currency.ISO(unit)) + " " + f.number(amount, scale)
}

func (f *Formatter) number(amount decimal.Decimal, scale int) string {
	rounded := amount.Round(int32(scale))
	if digits(rounded, scale) <= maxFloatDigits {
		return f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(scale)))
	}
	return f.exact(rounded, scale)
}

func digits(d decimal.Decimal, scale int) int {
	return len(d.Abs().Truncate(0).String()) + scale
}

// exact lays out the rounded amount digit by digit in groups of three.
func (f *Formatter) exact(rounded decimal.Decimal, scale int) string {
	plain := rounded.Abs().StringFixed(int32(scale))
	whole, frac, _ := strings.Cut(plain, ".")

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteString("-")
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(f.symbols.group)
		}
		b.WriteString(f.symbols.digits[r-'0'])
	}
	if frac != "" {
		b.WriteString(f.symbols.decimal)
		for _, r := range frac {
			b.WriteString(f.symbols.digits[r-'0'])
		}
	}
	return b.String()
}
