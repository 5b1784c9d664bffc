package introspect

import (
	"errors"
	"fmt"
)

// ErrUnresolvedLocation is returned when the index has no physical position
// for a location, typically because the element was never laid out.
var ErrUnresolvedLocation = errors.New("unresolved location")

// MatchError is returned by QueryOne when a selector does not match exactly
// one element.
type MatchError struct {
	Selector string
	Count    int
}

// Error implements the error interface for MatchError.
func (e *MatchError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("element matching %s does not exist in the document", e.Selector)
	}
	return fmt.Sprintf("ambiguous match: selector %s matches %d elements", e.Selector, e.Count)
}

// Ambiguous reports whether the selector matched more than one element.
func (e *MatchError) Ambiguous() bool {
	return e.Count > 1
}

// LabelError is returned by QueryLabel when a label is missing or not unique.
type LabelError struct {
	Label string
	Count int
}

// Error implements the error interface for LabelError.
func (e *LabelError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("label `<%s>` does not exist in the document", e.Label)
	}
	return fmt.Sprintf("label `<%s>` occurs multiple times in the document", e.Label)
}
