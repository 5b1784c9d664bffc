package markup

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/frame"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/styles"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Pass carries the inputs shared by one evaluation pass.
type Pass struct {
	Env      *frame.Env
	Registry *location.Registry
}

type evaluator struct {
	doc  *Document
	pass *Pass
}

// scope is the evaluation state at one point of the document. It is a value:
// siblings see updated styles, children get a copy.
type scope struct {
	path   location.Path
	styles styles.Chain
	vars   map[string]cty.Value
	frame  *frame.Frame
	fns    map[string]function.Function
	// footer is set while evaluating a page footer. Footer content is
	// never laid out as elements, so frames inside it stay at the page
	// marker.
	footer bool
}

func (s scope) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Variables: s.vars, Functions: s.fns}
}

// Evaluate walks the document and produces the styled content tree of one
// pass. Context-dependent parts are left as closures. The returned
// diagnostics come from outside any frame and abort the pass.
func (d *Document) Evaluate(ctx context.Context, p *Pass) ([]model.Content, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	e := &evaluator{doc: d, pass: p}

	var out []model.Content
	var diags hcl.Diagnostics
	static := frame.Functions(nil)
	for i, src := range d.Sources {
		s := scope{
			path:   location.Path{location.NewPathSegmentWithIndex("doc", i)},
			styles: d.RootStyles(),
			fns:    static,
		}
		content, srcDiags := e.evalNodes(ctx, s, src.Nodes)
		diags = append(diags, srcDiags...)
		out = append(out, content...)
	}

	logger.Debug("Document evaluated.", "top_level_nodes", len(out), "errors", len(diags.Errs()))
	return out, diags
}

// Footer evaluates the page footer for one page inside a frame located at
// the page's marker.
func (d *Document) Footer(ctx context.Context, p *Pass, page int, at location.Location) ([]model.Content, hcl.Diagnostics) {
	if len(d.Page.Footer) == 0 {
		return nil, nil
	}
	e := &evaluator{doc: d, pass: p}
	f := frame.New(p.Env, d.RootStyles(), at)
	s := scope{
		path: location.Path{
			location.NewPathSegmentWithIndex("page", page),
			location.NewPathSegment("footer"),
		},
		styles: d.RootStyles(),
		frame:  f,
		fns:    frame.Functions(f),
		footer: true,
	}
	return e.evalNodes(ctx, s, d.Page.Footer)
}

// enter creates the frame of a context-establishing construct at loc.
func (e *evaluator) enter(s scope, loc location.Location) scope {
	var f *frame.Frame
	if s.frame != nil {
		f = s.frame.Nested(s.styles, loc)
	} else {
		f = frame.New(e.pass.Env, s.styles, loc)
	}
	s.frame = f
	s.fns = frame.Functions(f)
	return s
}

func (e *evaluator) locate(path location.Path) location.Location {
	return e.pass.Registry.Assign(path)
}

func (e *evaluator) evalNodes(ctx context.Context, s scope, nodes []*Node) ([]model.Content, hcl.Diagnostics) {
	var out []model.Content
	var diags hcl.Diagnostics
	counts := make(map[string]int)

	for _, n := range nodes {
		idx := counts[n.Type]
		counts[n.Type]++
		path := s.path.Child(location.NewPathSegmentWithIndex(n.Type, idx))

		if n.Type == BlockSet {
			chain, setDiags := e.set(s, n)
			diags = append(diags, setDiags...)
			s.styles = chain
			continue
		}

		content, nodeDiags := e.evalNode(ctx, s, path, n)
		diags = append(diags, nodeDiags...)
		out = append(out, content...)
	}
	return out, diags
}

func (e *evaluator) evalNode(ctx context.Context, s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	switch n.Type {
	case BlockText:
		return e.text(s, n)
	case BlockHeading:
		return e.heading(s, path, n)
	case BlockFigure:
		return e.figure(s, path, n)
	case BlockMetadata:
		return e.metadata(s, path, n)
	case BlockRef:
		return e.ref(s, path, n)
	case BlockOutline:
		return e.outline(s, path, n)
	case BlockPageBreak:
		return []model.Content{model.PageBreak{}}, nil
	case BlockContext:
		return e.context(s, path, n), nil
	case BlockCounterUpdate:
		return e.counterUpdate(s, path, n)
	case BlockStateUpdate:
		return e.stateUpdate(s, path, n)
	case BlockRepeat:
		return e.repeat(ctx, s, path, n)
	}
	return nil, hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unsupported block type",
		Detail:   fmt.Sprintf("Blocks of type %q are not expected here.", n.Type),
		Subject:  n.Range.Ptr(),
	}}
}

func (e *evaluator) set(s scope, n *Node) (styles.Chain, hcl.Diagnostics) {
	names := make([]string, 0, len(n.Attrs))
	for name := range n.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	chain := s.styles
	var diags hcl.Diagnostics
	for _, name := range names {
		v, valDiags := n.Attrs[name].Expr.Value(s.evalContext())
		diags = append(diags, valDiags...)
		chain = chain.Set(n.Label+"."+name, v)
	}
	return chain, diags
}

func (e *evaluator) text(s scope, n *Node) ([]model.Content, hcl.Diagnostics) {
	v, _, diags := s.value(n, "value")
	if diags.HasErrors() {
		return nil, diags
	}
	t, err := textOf(v)
	if err != nil {
		return nil, append(diags, invalidAttr(n, "value", err))
	}
	if !t.Deferred && t.Value == "" {
		return nil, diags
	}
	return []model.Content{t}, diags
}

func (e *evaluator) context(s scope, path location.Path, n *Node) []model.Content {
	var loc location.Location
	if s.footer {
		loc = s.frame.Here()
	} else {
		loc = e.locate(path)
	}
	return []model.Content{&model.Closure{
		Element: model.NewElement(model.KindContext, loc, "", nil),
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			inner := e.enter(s, loc)
			inner.path = path
			return e.evalNodes(ctx, inner, n.Children)
		},
	}}
}

func (e *evaluator) repeat(ctx context.Context, s scope, path location.Path, n *Node) ([]model.Content, hcl.Diagnostics) {
	count, known, diags := s.intAttr(n, "count", 0)
	if diags.HasErrors() {
		return nil, diags
	}
	if !known {
		return []model.Content{model.Text{Deferred: true}}, diags
	}
	if count < 0 {
		return nil, append(diags, invalidAttr(n, "count", fmt.Errorf("must not be negative, got %d", count)))
	}

	var out []model.Content
	for i := 0; i < count; i++ {
		iter := s
		iter.path = path.Child(location.NewPathSegmentWithIndex(n.Label, i))
		iter.vars = withCount(s.vars, i)
		content, iterDiags := e.evalNodes(ctx, iter, n.Children)
		diags = append(diags, iterDiags...)
		out = append(out, content...)
	}
	return out, diags
}

func withCount(vars map[string]cty.Value, index int) map[string]cty.Value {
	out := make(map[string]cty.Value, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out["count"] = cty.ObjectVal(map[string]cty.Value{
		"index": cty.NumberIntVal(int64(index)),
	})
	return out
}

// value evaluates an attribute. Absent attributes yield a null value.
func (s scope) value(n *Node, name string) (cty.Value, bool, hcl.Diagnostics) {
	expr, ok := n.Attr(name)
	if !ok {
		return cty.NullVal(cty.DynamicPseudoType), false, nil
	}
	v, diags := expr.Value(s.evalContext())
	return v, true, diags
}

// typed evaluates an attribute and converts it. known is false when the
// value depends on an unresolved contextual read.
func (s scope) typed(n *Node, name string, ty cty.Type) (v cty.Value, present, known bool, diags hcl.Diagnostics) {
	raw, _, diags := s.value(n, name)
	if diags.HasErrors() || raw.IsNull() {
		return cty.NilVal, false, true, diags
	}
	if !raw.IsWhollyKnown() {
		return cty.UnknownVal(ty), true, false, diags
	}
	v, err := convert.Convert(raw, ty)
	if err != nil {
		return cty.NilVal, false, true, append(diags, invalidAttr(n, name, err))
	}
	return v, true, true, diags
}

func (s scope) stringAttr(n *Node, name, fallback string) (string, bool, hcl.Diagnostics) {
	v, present, known, diags := s.typed(n, name, cty.String)
	if !present || !known {
		return fallback, known, diags
	}
	return v.AsString(), true, diags
}

func (s scope) intAttr(n *Node, name string, fallback int) (int, bool, hcl.Diagnostics) {
	v, present, known, diags := s.typed(n, name, cty.Number)
	if !present || !known {
		return fallback, known, diags
	}
	var out int
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return fallback, true, append(diags, invalidAttr(n, name, err))
	}
	return out, true, diags
}

func (s scope) boolAttr(n *Node, name string, fallback bool) (bool, hcl.Diagnostics) {
	v, present, known, diags := s.typed(n, name, cty.Bool)
	if !present || !known {
		return fallback, diags
	}
	return v.True(), diags
}

func invalidAttr(n *Node, name string, err error) *hcl.Diagnostic {
	d := &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Invalid %s attribute", name),
		Detail:   fmt.Sprintf("The %q attribute of a %s block is invalid: %s.", name, n.Type, err),
		Subject:  n.Range.Ptr(),
	}
	if expr, ok := n.Attr(name); ok {
		d.Subject = expr.Range().Ptr()
	}
	return d
}

// textOf turns a value into visible text. Unknown values are deferred.
func textOf(v cty.Value) (model.Text, error) {
	if !v.IsWhollyKnown() {
		return model.Text{Deferred: true}, nil
	}
	if v.IsNull() {
		return model.Text{}, nil
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return model.Text{}, err
	}
	return model.Text{Value: sv.AsString()}, nil
}
