package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/zclconf/go-cty/cty"
)

// Entry is an update tagged with the document position of the element that
// performs it.
type Entry struct {
	Update
	Ordinal  int
	Location location.Location
}

// Log collects the updates of one pass. Appends may arrive in any order and
// from any goroutine; Freeze restores document order.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records updates performed by the element at ordinal.
func (l *Log) Append(ordinal int, loc location.Location, updates ...Update) {
	if len(updates) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range updates {
		l.entries = append(l.entries, Entry{Update: u, Ordinal: ordinal, Location: loc})
	}
}

// Len returns the number of recorded updates.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Freeze orders the log by document position and folds every key into an
// immutable snapshot. initials supplies declared initial state values.
// Failing update functions are reported as diagnostics and leave the value
// unchanged.
func (l *Log) Freeze(ctx context.Context, initials map[string]cty.Value) (*Snapshot, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)

	l.mu.Lock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Ordinal < entries[j].Ordinal
	})

	snap := newSnapshot(initials)
	var diags hcl.Diagnostics
	for _, e := range entries {
		seq := snap.sequence(e.Key)
		if e.Op.Kind == OpDeferred {
			snap.deferred++
			continue
		}

		var applyDiags hcl.Diagnostics
		var applied bool
		switch e.Key.Kind {
		case Counter:
			applied, applyDiags = seq.applyCounter(e)
		case State:
			applied, applyDiags = seq.applyState(e)
		}
		diags = append(diags, applyDiags...)
		if !applied && !applyDiags.HasErrors() {
			snap.deferred++
		}
	}

	logger.Debug("Update log frozen.", "updates", len(entries), "keys", len(snap.seqs), "deferred", snap.deferred)
	return snap, diags
}

func (s *sequence) last() (cty.Value, []int) {
	if n := len(s.states); n > 0 {
		return s.states[n-1], s.counters[n-1]
	}
	return s.initState, s.initCounter
}

func (s *sequence) applyCounter(e Entry) (bool, hcl.Diagnostics) {
	_, prev := s.last()
	var next []int

	switch e.Op.Kind {
	case OpSet:
		next = append([]int(nil), e.Op.Numbers...)
	case OpStep:
		next = step(prev, e.Op.Level)
	case OpFunc:
		v, diags := evalFunc(e, CounterValue(prev))
		if diags.HasErrors() || !v.IsWhollyKnown() {
			return false, diags
		}
		numbers, err := CounterNumbers(v)
		if err != nil {
			return false, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid counter update",
				Detail:   fmt.Sprintf("The update function of %s returned an invalid value: %s.", e.Key, err),
				Subject:  e.Op.Fn.Range().Ptr(),
			}}
		}
		next = numbers
	default:
		return false, nil
	}

	s.push(e.Ordinal, cty.NilVal, next)
	return true, nil
}

func (s *sequence) applyState(e Entry) (bool, hcl.Diagnostics) {
	prev, _ := s.last()
	var next cty.Value

	switch e.Op.Kind {
	case OpSet:
		next = e.Op.Value
	case OpFunc:
		v, diags := evalFunc(e, prev)
		if diags.HasErrors() {
			return false, diags
		}
		next = v
	default:
		return false, nil
	}
	if !next.IsWhollyKnown() {
		return false, nil
	}

	s.push(e.Ordinal, next, nil)
	return true, nil
}

func evalFunc(e Entry, prev cty.Value) (cty.Value, hcl.Diagnostics) {
	var scope *hcl.EvalContext
	if e.Op.Scope != nil {
		scope = e.Op.Scope.NewChild()
	} else {
		scope = &hcl.EvalContext{}
	}
	scope.Variables = map[string]cty.Value{"prev": prev}
	return e.Op.Fn.Value(scope)
}
