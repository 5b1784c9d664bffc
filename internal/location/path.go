package location

import (
	"fmt"
	"slices"
	"strings"
)

// PathSegment is one construction site of a provenance path, e.g. `text[3]`.
type PathSegment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewPathSegment creates a new path segment without an index.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name, Index: -1}
}

// NewPathSegmentWithIndex creates a new path segment that includes an index.
func NewPathSegmentWithIndex(name string, index int) PathSegment {
	return PathSegment{Name: name, Index: index}
}

// HasIndex returns true if the path segment has an explicit index.
func (ps PathSegment) HasIndex() bool {
	return ps.Index != -1
}

// String renders the segment as `name` or `name[index]`.
func (ps PathSegment) String() string {
	if !ps.HasIndex() {
		return ps.Name
	}
	return fmt.Sprintf("%s[%d]", ps.Name, ps.Index)
}

// Path is the provenance of an element: every construction site from the
// document root down to the element itself.
type Path []PathSegment

// Child returns a new path extended by seg. The receiver is never modified,
// so sibling paths can safely share a parent.
func (p Path) Child(seg PathSegment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// String serializes the path into its canonical dotted representation.
func (p Path) String() string {
	var sb strings.Builder
	for i, segment := range p {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.String())
	}
	return sb.String()
}

// Equal reports whether both paths name the same construction sites.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}
