package store

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Kind separates the two families of accumulators.
type Kind uint8

const (
	Counter Kind = iota
	State
)

// Key names one accumulator.
type Key struct {
	Kind Kind
	Name string
}

// CounterKey returns the key of a counter.
func CounterKey(name string) Key {
	return Key{Kind: Counter, Name: name}
}

// StateKey returns the key of a state.
func StateKey(name string) Key {
	return Key{Kind: State, Name: name}
}

func (k Key) String() string {
	if k.Kind == State {
		return fmt.Sprintf("state(%q)", k.Name)
	}
	return fmt.Sprintf("counter(%q)", k.Name)
}

// OpKind enumerates the update operations.
type OpKind uint8

const (
	// OpSet replaces the value.
	OpSet OpKind = iota
	// OpStep increments a counter at a level.
	OpStep
	// OpFunc derives the new value from the previous one.
	OpFunc
	// OpDeferred stands for an update whose operand could not be resolved
	// in this pass. It leaves the value unchanged.
	OpDeferred
)

// Op is one update operation.
type Op struct {
	Kind    OpKind
	Numbers []int
	Level   int
	Value   cty.Value
	Fn      hcl.Expression
	Scope   *hcl.EvalContext
}

// SetCounter sets a counter to the given numbers.
func SetCounter(numbers ...int) Op {
	return Op{Kind: OpSet, Numbers: numbers}
}

// StepCounter increments a counter at a 1-based level.
func StepCounter(level int) Op {
	return Op{Kind: OpStep, Level: level}
}

// SetState sets a state to a value.
func SetState(v cty.Value) Op {
	return Op{Kind: OpSet, Value: v}
}

// Apply derives the new value by evaluating fn with `prev` bound to the
// previous value. scope supplies the variables and functions visible at the
// update site and may be nil.
func Apply(fn hcl.Expression, scope *hcl.EvalContext) Op {
	return Op{Kind: OpFunc, Fn: fn, Scope: scope}
}

// Deferred returns the placeholder operation for an unresolved update.
func Deferred() Op {
	return Op{Kind: OpDeferred}
}

// Update is an operation on one key.
type Update struct {
	Key Key
	Op  Op
}

// step applies counter step semantics: missing levels are filled with
// zeros, the level is incremented and deeper levels are dropped.
func step(numbers []int, level int) []int {
	if level < 1 {
		level = 1
	}
	out := make([]int, len(numbers), max(len(numbers), level))
	copy(out, numbers)
	for len(out) < level {
		out = append(out, 0)
	}
	out[level-1]++
	return out[:level]
}
