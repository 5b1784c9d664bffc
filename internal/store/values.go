package store

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// CounterValue converts counter numbers to their document representation,
// a list of numbers.
func CounterValue(numbers []int) cty.Value {
	if len(numbers) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	vals := make([]cty.Value, len(numbers))
	for i, n := range numbers {
		vals[i] = cty.NumberIntVal(int64(n))
	}
	return cty.ListVal(vals)
}

// CounterNumbers converts a document value into counter numbers. A single
// number is accepted as a one-level counter.
func CounterNumbers(v cty.Value) ([]int, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("counter value must not be null")
	}
	if v.Type() == cty.Number {
		n, err := toNonNegativeInt(v)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}

	list, err := convert.Convert(v, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("counter value must be a number or a list of numbers: %w", err)
	}
	var numbers []int
	if err := gocty.FromCtyValue(list, &numbers); err != nil {
		return nil, fmt.Errorf("counter value must contain whole numbers: %w", err)
	}
	for _, n := range numbers {
		if n < 0 {
			return nil, fmt.Errorf("counter value must not be negative, got %d", n)
		}
	}
	return numbers, nil
}

func toNonNegativeInt(v cty.Value) (int, error) {
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, fmt.Errorf("counter value must be a whole number, got %s", bf.Text('f', -1))
	}
	if bf.Sign() < 0 {
		return 0, fmt.Errorf("counter value must not be negative, got %s", bf.Text('f', -1))
	}
	n, acc := bf.Int64()
	if acc != big.Exact {
		return 0, fmt.Errorf("counter value out of range")
	}
	return int(n), nil
}
