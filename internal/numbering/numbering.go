// Package numbering formats counter values with numbering patterns such as
// "1.", "1.a)" or "I".
//
// A pattern is a sequence of counting symbols separated by literal text.
// Each counter level is rendered with the corresponding symbol; levels beyond
// the last symbol reuse it with its prefix. Text after the last symbol is a
// suffix printed once at the end.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a counting symbol.
type Kind rune

const (
	Arabic     Kind = '1'
	LowerLatin Kind = 'a'
	UpperLatin Kind = 'A'
	LowerRoman Kind = 'i'
	UpperRoman Kind = 'I'
	Symbol     Kind = '*'
)

var symbols = []string{"*", "†", "‡", "§", "¶", "‖"}

// Numbers above these limits are rendered in arabic numerals.
const (
	maxRoman   = 3999
	maxSymbols = 10 * 6
)

func isKind(r rune) bool {
	switch Kind(r) {
	case Arabic, LowerLatin, UpperLatin, LowerRoman, UpperRoman, Symbol:
		return true
	}
	return false
}

type piece struct {
	prefix string
	kind   Kind
}

// Pattern is a parsed numbering pattern.
type Pattern struct {
	pieces []piece
	suffix string
}

// Parse reads a numbering pattern. A pattern without any counting symbol is
// an error.
func Parse(pattern string) (Pattern, error) {
	var p Pattern
	var text strings.Builder
	for _, r := range pattern {
		if isKind(r) {
			p.pieces = append(p.pieces, piece{prefix: text.String(), kind: Kind(r)})
			text.Reset()
			continue
		}
		text.WriteRune(r)
	}
	if len(p.pieces) == 0 {
		return Pattern{}, fmt.Errorf("invalid numbering pattern %q: it contains no counting symbol", pattern)
	}
	p.suffix = text.String()
	return p, nil
}

// Apply formats numbers with the pattern.
func (p Pattern) Apply(numbers []int) string {
	var sb strings.Builder
	for i, n := range numbers {
		pc := p.pieces[min(i, len(p.pieces)-1)]
		if i >= len(p.pieces) && pc.prefix == "" {
			sb.WriteString(p.suffix)
		} else {
			sb.WriteString(pc.prefix)
		}
		sb.WriteString(pc.kind.Apply(n))
	}
	sb.WriteString(p.suffix)
	return sb.String()
}

// String returns the pattern text.
func (p Pattern) String() string {
	var sb strings.Builder
	for _, pc := range p.pieces {
		sb.WriteString(pc.prefix)
		sb.WriteRune(rune(pc.kind))
	}
	sb.WriteString(p.suffix)
	return sb.String()
}

// Format parses pattern and applies it to numbers.
func Format(pattern string, numbers []int) (string, error) {
	p, err := Parse(pattern)
	if err != nil {
		return "", err
	}
	return p.Apply(numbers), nil
}

// Apply renders a single number with the counting symbol.
func (k Kind) Apply(n int) string {
	if n < 0 {
		if -n < 0 {
			return strconv.Itoa(n)
		}
		return "-" + k.Apply(-n)
	}
	switch k {
	case Arabic:
		return strconv.Itoa(n)
	case LowerLatin:
		return latin(n, 'a')
	case UpperLatin:
		return latin(n, 'A')
	case LowerRoman:
		if n > maxRoman {
			return strconv.Itoa(n)
		}
		return strings.ToLower(roman(n))
	case UpperRoman:
		if n > maxRoman {
			return strconv.Itoa(n)
		}
		return roman(n)
	case Symbol:
		if n == 0 {
			return "-"
		}
		if n > maxSymbols {
			return strconv.Itoa(n)
		}
		sym := symbols[(n-1)%len(symbols)]
		return strings.Repeat(sym, (n-1)/len(symbols)+1)
	}
	panic(fmt.Sprintf("numbering: unknown kind %q", rune(k)))
}

// latin renders bijective base-26: 1 → a, 26 → z, 27 → aa.
func latin(n int, base rune) string {
	if n == 0 {
		return "-"
	}
	var out []rune
	for n > 0 {
		n--
		out = append([]rune{base + rune(n%26)}, out...)
		n /= 26
	}
	return string(out)
}

var romanTable = []struct {
	value int
	text  string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func roman(n int) string {
	if n == 0 {
		return "N"
	}
	var sb strings.Builder
	for _, entry := range romanTable {
		for n >= entry.value {
			sb.WriteString(entry.text)
			n -= entry.value
		}
	}
	return sb.String()
}
