package store

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Snapshot is the immutable, folded view of one pass's counters and states.
type Snapshot struct {
	seqs     map[Key]*sequence
	initials map[string]cty.Value
	deferred int
	complete bool
}

// sequence holds the value of one key after each of its updates. Counter
// sequences fill counters, state sequences fill states; the other slice
// holds zero values so both stay index-aligned with ordinals.
type sequence struct {
	key         Key
	ordinals    []int
	counters    [][]int
	states      []cty.Value
	initCounter []int
	initState   cty.Value
}

// Empty returns the snapshot used before any pass has completed. Reads
// return initial values; Complete reports false.
func Empty() *Snapshot {
	s := newSnapshot(nil)
	s.complete = false
	return s
}

func newSnapshot(initials map[string]cty.Value) *Snapshot {
	if initials == nil {
		initials = map[string]cty.Value{}
	}
	return &Snapshot{
		seqs:     make(map[Key]*sequence),
		initials: initials,
		complete: true,
	}
}

func (s *Snapshot) sequence(key Key) *sequence {
	seq, ok := s.seqs[key]
	if !ok {
		seq = &sequence{
			key:         key,
			initCounter: []int{0},
			initState:   s.initialState(key.Name),
		}
		s.seqs[key] = seq
	}
	return seq
}

func (s *Snapshot) initialState(name string) cty.Value {
	if v, ok := s.initials[name]; ok {
		return v
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

func (seq *sequence) push(ordinal int, state cty.Value, counter []int) {
	seq.ordinals = append(seq.ordinals, ordinal)
	seq.states = append(seq.states, state)
	seq.counters = append(seq.counters, counter)
}

// at returns the index of the last update at or before ordinal, or -1.
func (seq *sequence) at(ordinal int) int {
	return sort.Search(len(seq.ordinals), func(i int) bool {
		return seq.ordinals[i] > ordinal
	}) - 1
}

// Complete reports whether the snapshot comes from a finished pass.
func (s *Snapshot) Complete() bool {
	return s.complete
}

// Deferred returns the number of updates that could not be applied because
// their operands were unresolved.
func (s *Snapshot) Deferred() int {
	return s.deferred
}

// CounterAt returns the counter value after every update at or before the
// ordinal. Keys without updates yield the initial value [0].
func (s *Snapshot) CounterAt(name string, ordinal int) []int {
	seq, ok := s.seqs[CounterKey(name)]
	if !ok {
		return []int{0}
	}
	i := seq.at(ordinal)
	if i < 0 {
		return clone(seq.initCounter)
	}
	return clone(seq.counters[i])
}

// CounterFinal returns the counter value after all updates.
func (s *Snapshot) CounterFinal(name string) []int {
	seq, ok := s.seqs[CounterKey(name)]
	if !ok || len(seq.counters) == 0 {
		return []int{0}
	}
	return clone(seq.counters[len(seq.counters)-1])
}

// StateAt returns the state value after every update at or before the
// ordinal. Keys without updates yield their declared initial value or null.
func (s *Snapshot) StateAt(name string, ordinal int) cty.Value {
	seq, ok := s.seqs[StateKey(name)]
	if !ok {
		return s.initialState(name)
	}
	i := seq.at(ordinal)
	if i < 0 {
		return seq.initState
	}
	return seq.states[i]
}

// StateFinal returns the state value after all updates.
func (s *Snapshot) StateFinal(name string) cty.Value {
	seq, ok := s.seqs[StateKey(name)]
	if !ok || len(seq.states) == 0 {
		return s.initialState(name)
	}
	return seq.states[len(seq.states)-1]
}

// Keys returns every key with at least one update, counters first, each
// group sorted by name.
func (s *Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(s.seqs))
	for k, seq := range s.seqs {
		if len(seq.ordinals) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Finals returns the canonical JSON form of every key's final value,
// keyed by Key.String().
func (s *Snapshot) Finals() map[string]string {
	out := make(map[string]string, len(s.seqs))
	for _, k := range s.Keys() {
		out[k.String()] = s.finalString(k)
	}
	return out
}

func (s *Snapshot) finalString(k Key) string {
	var v cty.Value
	if k.Kind == Counter {
		v = CounterValue(s.CounterFinal(k.Name))
	} else {
		v = s.StateFinal(k.Name)
	}
	return Serialize(v)
}

// Serialize renders a value as type-tagged JSON. Values that cannot be
// serialized, such as unknowns, render as their Go syntax.
func Serialize(v cty.Value) string {
	b, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// Equal reports whether two snapshots hold the same update sequences: the
// same keys, updated at the same ordinals, to the same values.
func (s *Snapshot) Equal(other *Snapshot) bool {
	a, b := s.Keys(), other.Keys()
	if len(a) != len(b) {
		return false
	}
	for i, k := range a {
		if k != b[i] {
			return false
		}
		x, y := s.seqs[k], other.seqs[k]
		if len(x.ordinals) != len(y.ordinals) {
			return false
		}
		for j := range x.ordinals {
			if x.ordinals[j] != y.ordinals[j] {
				return false
			}
			if k.Kind == Counter && !equalInts(x.counters[j], y.counters[j]) {
				return false
			}
			if k.Kind == State && Serialize(x.states[j]) != Serialize(y.states[j]) {
				return false
			}
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(numbers []int) []int {
	return append([]int(nil), numbers...)
}
