package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/engine"
	"github.com/specialistvlad/quire/internal/layout"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// pageSeparator is the line between two pages of text output.
const pageSeparator = "\f"

type outputView struct {
	Pages       []layout.Page    `json:"pages" yaml:"pages"`
	Passes      int              `json:"passes" yaml:"passes"`
	Converged   bool             `json:"converged" yaml:"converged"`
	Diagnostics []diagnosticView `json:"diagnostics" yaml:"diagnostics"`
}

type diagnosticView struct {
	Severity string `json:"severity" yaml:"severity"`
	Summary  string `json:"summary" yaml:"summary"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Range    string `json:"range,omitempty" yaml:"range,omitempty"`
}

type elementView struct {
	Kind      string           `json:"kind" yaml:"kind"`
	Label     string           `json:"label,omitempty" yaml:"label,omitempty"`
	Location  string           `json:"location" yaml:"location"`
	Positions []model.Position `json:"positions,omitempty" yaml:"positions,omitempty"`
	Fields    map[string]any   `json:"fields" yaml:"fields"`
}

func diagnosticViews(diags hcl.Diagnostics) []diagnosticView {
	out := make([]diagnosticView, 0, len(diags))
	for _, d := range diags {
		v := diagnosticView{Summary: d.Summary, Detail: d.Detail, Severity: "error"}
		if d.Severity == hcl.DiagWarning {
			v.Severity = "warning"
		}
		if d.Subject != nil {
			v.Range = d.Subject.String()
		}
		out = append(out, v)
	}
	return out
}

// renderOutput renders a compilation in the given format.
func renderOutput(format string, out *engine.Output) ([]byte, error) {
	if format == FormatText {
		return renderText(out.Pages), nil
	}
	view := outputView{
		Pages:       out.Pages,
		Passes:      len(out.Passes),
		Converged:   out.Converged(),
		Diagnostics: diagnosticViews(out.Diagnostics),
	}
	return encode(format, view)
}

// renderText prints pages separated by a form feed line. The footer is the
// last line of its page.
func renderText(pages []layout.Page) []byte {
	var b bytes.Buffer
	for i, p := range pages {
		if i > 0 {
			b.WriteString(pageSeparator + "\n")
		}
		for _, line := range p.Lines {
			b.WriteString(line + "\n")
		}
		if len(p.Footer) > 0 {
			b.WriteString("\n")
			for _, line := range p.Footer {
				b.WriteString(line + "\n")
			}
		}
	}
	return b.Bytes()
}

// renderElements renders the result of a query.
func renderElements(format string, elems []*model.Element) ([]byte, error) {
	views := make([]elementView, 0, len(elems))
	for _, e := range elems {
		fields := make(map[string]any, len(e.Fields))
		for _, name := range e.FieldNames() {
			v, err := plainValue(e.Fields[name])
			if err != nil {
				return nil, fmt.Errorf("element %s field %q: %w", e.Location, name, err)
			}
			fields[name] = v
		}
		views = append(views, elementView{
			Kind:      e.Kind,
			Label:     e.Label,
			Location:  e.Location.String(),
			Positions: e.Positions,
			Fields:    fields,
		})
	}

	if format != FormatText {
		return encode(format, views)
	}
	var b strings.Builder
	for _, v := range views {
		fmt.Fprintf(&b, "%s %s", v.Location, v.Kind)
		if v.Label != "" {
			fmt.Fprintf(&b, " <%s>", v.Label)
		}
		if len(v.Positions) > 0 {
			fmt.Fprintf(&b, " page %d", v.Positions[0].Page)
		}
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// plainValue converts a field value into plain Go data through its JSON
// form.
func plainValue(v cty.Value) (any, error) {
	if !v.IsWhollyKnown() {
		return nil, nil
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encode(format string, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
