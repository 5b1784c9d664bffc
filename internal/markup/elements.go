package markup

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/frame"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/numbering"
	"github.com/specialistvlad/quire/internal/selector"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Counter keys stepped implicitly by elements.
const (
	HeadingCounter = "heading"
	FigureCounter  = "figure"
)

// supplements are the words references put before a number.
var supplements = map[string]string{
	model.KindHeading: "section",
	model.KindFigure:  "figure",
}

// supplement returns the capitalised reference word for an element kind.
func supplement(kind string) string {
	// A Caser keeps state between calls and must not be shared across
	// the goroutines resolving closures.
	return cases.Title(language.English).String(supplements[kind])
}

func stringOrNull(s string) cty.Value {
	if s == "" {
		return cty.NullVal(cty.String)
	}
	return cty.StringVal(s)
}

// stringField returns a known string field of an element.
func stringField(e *model.Element, name string) string {
	v, ok := e.Field(name)
	if !ok || !v.IsKnown() || v.IsNull() || !v.Type().Equals(cty.String) {
		return ""
	}
	return v.AsString()
}

// displayCounter formats a counter read. Deferred reads become a
// placeholder.
func displayCounter(r frame.Result[[]int], pattern string, subject hcl.Range) (model.Text, hcl.Diagnostics) {
	switch r.Status {
	case frame.Deferred:
		return model.Text{Deferred: true}, nil
	case frame.Failed:
		return model.Text{Deferred: true}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Failed to read counter",
			Detail:   r.Err.Error(),
			Subject:  subject.Ptr(),
		}}
	}
	s, err := numbering.Format(pattern, r.Value)
	if err != nil {
		return model.Text{Deferred: true}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid numbering pattern",
			Detail:   err.Error(),
			Subject:  subject.Ptr(),
		}}
	}
	return model.Text{Value: s}, nil
}

// inline joins text runs into one line.
func inline(parts ...model.Text) []model.Content {
	out := make([]model.Content, len(parts))
	for i, p := range parts {
		p.Inline = i > 0
		out[i] = p
	}
	return out
}

func (e *evaluator) heading(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	body, present, _, d := s.typed(n, "body", cty.String)
	diags = append(diags, d...)
	level, _, d := s.intAttr(n, "level", 1)
	diags = append(diags, d...)
	label, _, d := s.stringAttr(n, "label", "")
	diags = append(diags, d...)
	pattern, _, d := s.stringAttr(n, "numbering", s.styles.String("heading.numbering", ""))
	diags = append(diags, d...)
	outlined, d := s.boolAttr(n, "outlined", true)
	diags = append(diags, d...)
	if diags.HasErrors() {
		return nil, diags
	}
	if level < 1 {
		return nil, append(diags, invalidAttr(n, "level", fmt.Errorf("must be at least 1, got %d", level)))
	}
	if !present {
		body = cty.StringVal("")
	}

	loc := e.locate(path)
	el := model.NewElement(model.KindHeading, loc, label, map[string]cty.Value{
		"body":      body,
		"level":     cty.NumberIntVal(int64(level)),
		"numbering": stringOrNull(pattern),
		"outlined":  cty.BoolVal(outlined),
	})
	updates := []store.Update{{Key: store.CounterKey(HeadingCounter), Op: store.StepCounter(level)}}
	bodyText, _ := textOf(body)

	if pattern == "" {
		return []model.Content{&model.Elem{Element: el, Body: []model.Content{bodyText}, Updates: updates}}, diags
	}
	return []model.Content{&model.Closure{
		Element: el,
		Updates: updates,
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			f := e.enter(s, loc).frame
			number, diags := displayCounter(f.Counter(HeadingCounter), pattern, n.Range)
			return inline(number, model.Text{Value: " "}, bodyText), diags
		},
	}}, diags
}

func (e *evaluator) figure(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	caption, present, _, d := s.typed(n, "caption", cty.String)
	diags = append(diags, d...)
	label, _, d := s.stringAttr(n, "label", "")
	diags = append(diags, d...)
	pattern, _, d := s.stringAttr(n, "numbering", s.styles.String("figure.numbering", "1"))
	diags = append(diags, d...)
	if diags.HasErrors() {
		return nil, diags
	}
	if !present {
		caption = cty.StringVal("")
	}

	loc := e.locate(path)
	el := model.NewElement(model.KindFigure, loc, label, map[string]cty.Value{
		"caption":   caption,
		"numbering": stringOrNull(pattern),
	})
	captionText, _ := textOf(caption)

	return []model.Content{&model.Closure{
		Element: el,
		Updates: []store.Update{{Key: store.CounterKey(FigureCounter), Op: store.StepCounter(1)}},
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			f := e.enter(s, loc).frame
			number, diags := displayCounter(f.Counter(FigureCounter), pattern, n.Range)
			return inline(
				model.Text{Value: supplement(model.KindFigure) + " "},
				number,
				model.Text{Value: ": "},
				captionText,
			), diags
		},
	}}, diags
}

func (e *evaluator) metadata(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	value, _, diags := s.value(n, "value")
	label, _, d := s.stringAttr(n, "label", "")
	diags = append(diags, d...)
	if diags.HasErrors() {
		return nil, diags
	}
	el := model.NewElement(model.KindMetadata, e.locate(path), label, map[string]cty.Value{
		"value": value,
	})
	return []model.Content{&model.Elem{Element: el}}, diags
}

func (e *evaluator) ref(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	target, targetKnown, d := s.stringAttr(n, "target", "")
	diags = append(diags, d...)
	word, _, d := s.stringAttr(n, "supplement", "")
	diags = append(diags, d...)
	if diags.HasErrors() {
		return nil, diags
	}
	if !targetKnown {
		return []model.Content{model.Text{Deferred: true}}, diags
	}

	loc := e.locate(path)
	el := model.NewElement(model.KindRef, loc, "", map[string]cty.Value{
		"target": cty.StringVal(target),
	})

	return []model.Content{&model.Closure{
		Element: el,
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			f := e.enter(s, loc).frame
			r := f.QueryLabel(target)
			switch r.Status {
			case frame.Deferred:
				return []model.Content{model.Text{Deferred: true}}, nil
			case frame.Failed:
				return []model.Content{model.Text{Deferred: true}}, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Invalid reference",
					Detail:   r.Err.Error() + ".",
					Subject:  n.Range.Ptr(),
				}}
			}

			elem := r.Value
			if _, ok := supplements[elem.Kind]; !ok {
				return []model.Content{model.Text{Deferred: true}}, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Invalid reference",
					Detail:   fmt.Sprintf("Cannot reference %s <%s>; only headings and figures can be referenced.", elem.Kind, target),
					Subject:  n.Range.Ptr(),
				}}
			}
			pattern := stringField(elem, "numbering")
			if pattern == "" {
				return []model.Content{model.Text{Deferred: true}}, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Invalid reference",
					Detail:   fmt.Sprintf("Cannot reference %s <%s> without numbering; set a numbering pattern on it.", elem.Kind, target),
					Subject:  n.Range.Ptr(),
				}}
			}
			prefix := word
			if prefix == "" {
				prefix = supplement(elem.Kind)
			}
			number, diags := displayCounter(f.CounterAt(elem.Kind, elem.Location), pattern, n.Range)
			return inline(model.Text{Value: prefix + " "}, number), diags
		},
	}}, diags
}

func (e *evaluator) outline(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	title, _, diags := s.stringAttr(n, "title", "Contents")
	if diags.HasErrors() {
		return nil, diags
	}

	loc := e.locate(path)
	el := model.NewElement(model.KindOutline, loc, "", map[string]cty.Value{
		"title": cty.StringVal(title),
	})
	pagePattern := s.styles.String("page.numbering", "1")

	return []model.Content{&model.Closure{
		Element: el,
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			f := e.enter(s, loc).frame
			out := []model.Content{model.Text{Value: title}}

			r := f.Query(selector.Kind(model.KindHeading))
			switch r.Status {
			case frame.Deferred:
				return append(out, model.Text{Deferred: true}), nil
			case frame.Failed:
				return out, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Failed to build outline",
					Detail:   r.Err.Error(),
					Subject:  n.Range.Ptr(),
				}}
			}

			var diags hcl.Diagnostics
			for _, h := range r.Value {
				if v, ok := h.Field("outlined"); ok && v.IsKnown() && v.False() {
					continue
				}
				entry, entryDiags := e.outlineEntry(f, h, pagePattern, n.Range)
				diags = append(diags, entryDiags...)
				out = append(out, entry)
			}
			return out, diags
		},
	}}, diags
}

// outlineEntry renders one heading as "number body ..... page".
func (e *evaluator) outlineEntry(f *frame.Frame, h *model.Element, pagePattern string, subject hcl.Range) (model.Text, hcl.Diagnostics) {
	body, ok := h.Field("body")
	if !ok || !body.IsKnown() {
		return model.Text{Deferred: true}, nil
	}

	level := 1
	if v, ok := h.Field("level"); ok && v.IsKnown() {
		bf := v.AsBigFloat()
		if i, _ := bf.Int64(); i > 1 {
			level = int(i)
		}
	}
	left := strings.Repeat("  ", level-1)

	if pattern := stringField(h, "numbering"); pattern != "" {
		number, diags := displayCounter(f.CounterAt(HeadingCounter, h.Location), pattern, subject)
		if number.Deferred || diags.HasErrors() {
			return number, diags
		}
		left += number.Value + " "
	}
	left += body.AsString()

	page, diags := displayCounter(frame.Map(f.PageOf(h.Location), func(p int) ([]int, error) {
		return []int{p}, nil
	}), pagePattern, subject)
	if page.Deferred || diags.HasErrors() {
		return page, diags
	}
	return model.Text{Value: leader(left, page.Value, e.pass.Env.Width)}, nil
}

// leader fills the space between left and right with dots to width.
func leader(left, right string, width int) string {
	dots := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right) - 2
	if dots < 1 {
		return left + " " + right
	}
	return left + " " + strings.Repeat(".", dots) + " " + right
}

func (e *evaluator) counterUpdate(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	var op store.Op
	var diags hcl.Diagnostics

	switch {
	case n.Attrs["set"] != nil:
		v, _, d := s.value(n, "set")
		diags = append(diags, d...)
		if diags.HasErrors() {
			return nil, diags
		}
		if !v.IsWhollyKnown() {
			op = store.Deferred()
			break
		}
		numbers, err := store.CounterNumbers(v)
		if err != nil {
			return nil, append(diags, invalidAttr(n, "set", err))
		}
		op = store.SetCounter(numbers...)
	case n.Attrs["step"] != nil:
		level, known, d := s.intAttr(n, "step", 1)
		diags = append(diags, d...)
		if diags.HasErrors() {
			return nil, diags
		}
		if !known {
			op = store.Deferred()
			break
		}
		if level < 1 {
			return nil, append(diags, invalidAttr(n, "step", fmt.Errorf("must be at least 1, got %d", level)))
		}
		op = store.StepCounter(level)
	default:
		op = store.Apply(n.Attrs["fn"].Expr, s.evalContext())
	}

	el := model.NewElement(model.KindCounterUpdate, e.locate(path), "", map[string]cty.Value{
		"key": cty.StringVal(n.Label),
	})
	return []model.Content{&model.Elem{
		Element: el,
		Updates: []store.Update{{Key: store.CounterKey(n.Label), Op: op}},
	}}, diags
}

func (e *evaluator) stateUpdate(s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	var op store.Op
	var diags hcl.Diagnostics

	if n.Attrs["value"] != nil {
		v, _, d := s.value(n, "value")
		diags = append(diags, d...)
		if diags.HasErrors() {
			return nil, diags
		}
		op = store.SetState(v)
	} else {
		op = store.Apply(n.Attrs["fn"].Expr, s.evalContext())
	}

	el := model.NewElement(model.KindStateUpdate, e.locate(path), "", map[string]cty.Value{
		"key": cty.StringVal(n.Label),
	})
	return []model.Content{&model.Elem{
		Element: el,
		Updates: []store.Update{{Key: store.StateKey(n.Label), Op: op}},
	}}, diags
}
