package format

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var groupedPrinter = message.NewPrinter(language.English)

// fixed renders v with prec fractional digits, rounding half to even on the exact value.
func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// percent scales a fraction by 100 and renders it with two decimals and a % suffix.
func percent(fraction float64) string {
	return fixed(fraction*100, 2) + "%"
}

// billions renders a dollar magnitude as "$X.XXb".
func billions(v float64) string {
	return "$" + fixed(v/1e9, 2) + "b"
}

// grouped renders v with comma thousands separators and prec fractional digits.
func grouped(v float64, prec int) string {
	return groupedPrinter.Sprintf("%."+strconv.Itoa(prec)+"f", v)
}

// roundTo rounds v to n decimals using the correctly rounded decimal expansion.
func roundTo(v float64, n int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(fixed(v, n), 64)
	if err != nil {
		return v
	}
	return r
}

// shortFloat renders v in its shortest round-trip form. Integral values keep a
// trailing ".0" and very large or small magnitudes switch to exponent notation.
func shortFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(first)) + strings.ToLower(s[size:])
}
