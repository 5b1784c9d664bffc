package store

import (
	"maps"

	"github.com/zclconf/go-cty/cty"
)

// Sequence is the exported form of one key's folded values, used to persist
// snapshots.
type Sequence struct {
	Key      Key
	Ordinals []int
	Counters [][]int
	States   []cty.Value
}

// Sequences exports every key with at least one update, in Keys order.
func (s *Snapshot) Sequences() []Sequence {
	keys := s.Keys()
	out := make([]Sequence, 0, len(keys))
	for _, k := range keys {
		seq := s.seqs[k]
		exp := Sequence{Key: k, Ordinals: append([]int(nil), seq.ordinals...)}
		if k.Kind == Counter {
			for _, c := range seq.counters {
				exp.Counters = append(exp.Counters, clone(c))
			}
		} else {
			exp.States = append([]cty.Value(nil), seq.states...)
		}
		out = append(out, exp)
	}
	return out
}

// Initials returns the declared initial state values.
func (s *Snapshot) Initials() map[string]cty.Value {
	return maps.Clone(s.initials)
}

// Restore rebuilds a complete snapshot from exported sequences.
func Restore(seqs []Sequence, initials map[string]cty.Value) *Snapshot {
	snap := newSnapshot(maps.Clone(initials))
	for _, exp := range seqs {
		seq := snap.sequence(exp.Key)
		for i, o := range exp.Ordinals {
			switch exp.Key.Kind {
			case Counter:
				if i < len(exp.Counters) {
					seq.push(o, cty.NilVal, clone(exp.Counters[i]))
				}
			case State:
				if i < len(exp.States) {
					seq.push(o, exp.States[i], nil)
				}
			}
		}
	}
	return snap
}
