package selector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// Selector is a predicate over located elements.
type Selector interface {
	// String returns the canonical textual form of the selector.
	String() string
	isSelector()
}

// Field is one equality predicate of an element selector.
type Field struct {
	Name  string
	Value cty.Value
}

// Elem matches elements of one kind whose fields equal the given values.
type Elem struct {
	Kind  string
	Where []Field
}

// Label matches elements carrying a label.
type Label struct {
	Name string
}

// Loc matches the element at one location.
type Loc struct {
	Location location.Location
}

// And matches elements matched by every item.
type And struct {
	Items []Selector
}

// Or matches elements matched by any item.
type Or struct {
	Items []Selector
}

// Not matches elements the inner selector does not match.
type Not struct {
	Inner Selector
}

// Before matches elements of Inner that precede the first match of Target
// in document order.
type Before struct {
	Inner     Selector
	Target    Selector
	Inclusive bool
}

// After matches elements of Inner that follow the first match of Target in
// document order.
type After struct {
	Inner     Selector
	Target    Selector
	Inclusive bool
}

func (Elem) isSelector()   {}
func (Label) isSelector()  {}
func (Loc) isSelector()    {}
func (And) isSelector()    {}
func (Or) isSelector()     {}
func (Not) isSelector()    {}
func (Before) isSelector() {}
func (After) isSelector()  {}

// Kind creates an element selector with optional field predicates.
func Kind(kind string, where ...Field) Elem {
	return Elem{Kind: kind, Where: where}
}

// ByLabel creates a label selector.
func ByLabel(name string) Label {
	return Label{Name: name}
}

// At creates a location selector.
func At(loc location.Location) Loc {
	return Loc{Location: loc}
}

func (s Elem) String() string {
	if len(s.Where) == 0 {
		return s.Kind
	}
	fields := make([]Field, len(s.Where))
	copy(fields, s.Where)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + "=" + formatValue(f.Value)
	}
	return fmt.Sprintf("%s[%s]", s.Kind, strings.Join(parts, ", "))
}

func (s Label) String() string { return "<" + s.Name + ">" }
func (s Loc) String() string   { return s.Location.String() }
func (s And) String() string   { return joinItems(s.Items, " & ") }
func (s Or) String() string    { return joinItems(s.Items, " | ") }
func (s Not) String() string   { return "!" + s.Inner.String() }

func (s Before) String() string {
	return fmt.Sprintf("before(%s, %s, %s)", s.Inner, s.Target, inclusivity(s.Inclusive))
}

func (s After) String() string {
	return fmt.Sprintf("after(%s, %s, %s)", s.Inner, s.Target, inclusivity(s.Inclusive))
}

func inclusivity(inclusive bool) string {
	if inclusive {
		return "inclusive"
	}
	return "exclusive"
}

func joinItems(items []Selector, sep string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func formatValue(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return "null"
	}
	switch v.Type() {
	case cty.String:
		return strconv.Quote(v.AsString())
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		return strconv.FormatBool(v.True())
	}
	return strconv.Quote(v.GoString())
}

// Matches evaluates the order-independent part of a selector against one
// element. Before and After need document order and never match here; the
// introspection index evaluates them.
func Matches(s Selector, e *model.Element) bool {
	switch s := s.(type) {
	case Elem:
		if e.Kind != s.Kind {
			return false
		}
		for _, f := range s.Where {
			v, ok := e.Field(f.Name)
			if !ok || !valueEquals(v, f.Value) {
				return false
			}
		}
		return true
	case Label:
		return e.Label == s.Name
	case Loc:
		return e.Location == s.Location
	case And:
		for _, item := range s.Items {
			if !Matches(item, e) {
				return false
			}
		}
		return true
	case Or:
		for _, item := range s.Items {
			if Matches(item, e) {
				return true
			}
		}
		return false
	case Not:
		return !Matches(s.Inner, e)
	}
	return false
}

func valueEquals(v, want cty.Value) bool {
	if v.IsNull() || !v.IsWhollyKnown() || want.IsNull() || !want.IsWhollyKnown() {
		return false
	}
	if !v.Type().Equals(want.Type()) {
		return false
	}
	eq := v.Equals(want)
	return eq.IsKnown() && eq.True()
}
