package numbering

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	testCases := []struct {
		pattern  string
		numbers  []int
		expected string
	}{
		{pattern: "1", numbers: []int{3}, expected: "3"},
		{pattern: "1.", numbers: []int{1}, expected: "1."},
		{pattern: "1.1", numbers: []int{2}, expected: "2"},
		{pattern: "1.1", numbers: []int{1, 2}, expected: "1.2"},
		{pattern: "1.1", numbers: []int{1, 2, 3}, expected: "1.2.3"},
		{pattern: "1.a)", numbers: []int{4, 2}, expected: "4.b)"},
		{pattern: "(1)", numbers: []int{7}, expected: "(7)"},
		{pattern: "I", numbers: []int{14}, expected: "XIV"},
		{pattern: "i.", numbers: []int{1994}, expected: "mcmxciv."},
		{pattern: "A", numbers: []int{28}, expected: "AB"},
		{pattern: "a", numbers: []int{26}, expected: "z"},
		{pattern: "*", numbers: []int{8}, expected: "††"},
		{pattern: "Nr. 1", numbers: []int{5}, expected: "Nr. 5"},
		{pattern: "1", numbers: []int{0}, expected: "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern, func(t *testing.T) {
			got, err := Format(tc.pattern, tc.numbers)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParse_RequiresCountingSymbol(t *testing.T) {
	_, err := Parse("Nr.")
	require.Error(t, err)
}

func TestPattern_String(t *testing.T) {
	p, err := Parse("1.a)")
	require.NoError(t, err)
	assert.Equal(t, "1.a)", p.String())
}

func TestKind_ApplyLargeNumbers(t *testing.T) {
	testCases := []struct {
		name     string
		kind     Kind
		n        int
		expected string
	}{
		{name: "largest roman", kind: UpperRoman, n: 3999, expected: "MMMCMXCIX"},
		{name: "roman overflow", kind: UpperRoman, n: 2000000000, expected: "2000000000"},
		{name: "lower roman overflow", kind: LowerRoman, n: 4000, expected: "4000"},
		{name: "longest symbol", kind: Symbol, n: 60, expected: "‖‖‖‖‖‖‖‖‖‖"},
		{name: "symbol overflow", kind: Symbol, n: 2000000000, expected: "2000000000"},
		{name: "negative roman overflow", kind: UpperRoman, n: -5000, expected: "-5000"},
		{name: "min int", kind: Symbol, n: math.MinInt, expected: strconv.Itoa(math.MinInt)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.Apply(tc.n))
		})
	}
}
