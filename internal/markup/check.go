package markup

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/exprscan"
	"github.com/specialistvlad/quire/internal/frame"
	"github.com/specialistvlad/quire/internal/numbering"
)

// scanContext describes where an expression is evaluated.
type scanContext struct {
	inFrame   bool
	inRepeat  bool
	inFooter  bool
	allowPrev bool
}

// checkDocument statically validates a decoded document: contextual
// functions outside frames, unknown variables, blocks not allowed in footers
// and malformed numbering patterns.
func checkDocument(doc *Document) hcl.Diagnostics {
	var diags hcl.Diagnostics
	if doc.Page.Numbering != "" {
		if _, err := numbering.Parse(doc.Page.Numbering); err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid page numbering",
				Detail:   err.Error(),
			})
		}
	}
	for _, src := range doc.Sources {
		diags = append(diags, checkNodes(scanContext{}, src.Nodes)...)
	}
	diags = append(diags, checkNodes(scanContext{inFrame: true, inFooter: true}, doc.Page.Footer)...)
	return diags
}

func checkNodes(sc scanContext, nodes []*Node) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, n := range nodes {
		if sc.inFooter && !footerBlocks[n.Type] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported block in footer",
				Detail:   fmt.Sprintf("A %q block cannot be used in a page footer; footers may only contain text, set, context and repeat blocks.", n.Type),
				Subject:  n.Range.Ptr(),
			})
			continue
		}

		names := make([]string, 0, len(n.Attrs))
		for name := range n.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			asc := sc
			asc.allowPrev = name == "fn"
			diags = append(diags, checkExpressions(asc, n.Attrs[name].Expr)...)
		}

		child := sc
		switch n.Type {
		case BlockContext:
			child.inFrame = true
		case BlockRepeat:
			child.inRepeat = true
		}
		diags = append(diags, checkNodes(child, n.Children)...)
	}
	return diags
}

// checkExpressions reports contextual calls made without a frame and
// references to variables that are not in scope.
func checkExpressions(sc scanContext, exprs ...hcl.Expression) hcl.Diagnostics {
	c := exprscan.NewContainer()
	c.Add(exprs...)

	var diags hcl.Diagnostics
	if !sc.inFrame {
		for _, call := range c.Calls() {
			if !frame.IsContextual(call.Name) {
				continue
			}
			err := &frame.ContextRequiredError{Function: call.Name}
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Context required",
				Detail:   fmt.Sprintf("%s; %s.", err.Error(), err.Hint()),
				Subject:  call.Range.Ptr(),
			})
		}
	}

	for _, ref := range c.References() {
		root := ref.RootName()
		if root == "count" && sc.inRepeat || root == "prev" && sc.allowPrev {
			continue
		}
		detail := fmt.Sprintf("There is no variable named %q.", root)
		switch root {
		case "count":
			detail += " count.index is only available inside a repeat block."
		case "prev":
			detail += " prev is only available in the fn attribute of an update."
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unknown variable",
			Detail:   detail,
			Subject:  ref.SourceRange().Ptr(),
		})
	}
	return diags
}
