// Package exprscan statically inspects HCL expressions for the function
// calls and variable references they contain.
package exprscan

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// Call is one function call site.
type Call struct {
	Name  string
	Range hcl.Range
}

// TraversalKey generates a stable, canonical string representation for an
// hcl.Traversal, suitable for use as a map key.
func TraversalKey(t hcl.Traversal) string {
	// e.g., count.index
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// Container gathers HCL expressions for analysis. It is not safe for
// concurrent use.
type Container struct {
	expressions []hcl.Expression
}

// NewContainer creates a new, empty expression container.
func NewContainer() *Container {
	return &Container{}
}

// Add adds expressions to the container. Nil expressions are ignored.
func (c *Container) Add(exprs ...hcl.Expression) {
	for _, expr := range exprs {
		if expr != nil {
			c.expressions = append(c.expressions, expr)
		}
	}
}

// References returns all unique variable traversals, sorted by key.
func (c *Container) References() []hcl.Traversal {
	return References(c.expressions...)
}

// Calls returns every function call site in source order.
func (c *Container) Calls() []Call {
	return Calls(c.expressions...)
}

// References returns the unique variable traversals of exprs, sorted by key.
func References(exprs ...hcl.Expression) []hcl.Traversal {
	traversals := make(map[string]hcl.Traversal)
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			traversals[TraversalKey(traversal)] = traversal
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		out = append(out, traversals[k])
	}
	return out
}

// Calls returns every function call site of exprs, ordered by file and
// byte offset.
func Calls(exprs ...hcl.Expression) []Call {
	var calls []Call
	for _, expr := range exprs {
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, &calls)
		}
	}
	sort.SliceStable(calls, func(i, j int) bool {
		a, b := calls[i].Range, calls[j].Range
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Start.Byte < b.Start.Byte
	})
	return calls
}

// walkForFunctions recursively walks the AST, collecting function calls.
func walkForFunctions(expr hclsyntax.Expression, calls *[]Call) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		*calls = append(*calls, Call{Name: e.Name, Range: e.Range()})
		for _, arg := range e.Args {
			walkForFunctions(arg, calls)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, calls)
		walkForFunctions(e.RHS, calls)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, calls)
		walkForFunctions(e.TrueResult, calls)
		walkForFunctions(e.FalseResult, calls)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, calls)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, calls)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.TemplateJoinExpr:
		walkForFunctions(e.Tuple, calls)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, calls)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, calls)
			walkForFunctions(item.ValueExpr, calls)
		}
	case *hclsyntax.ObjectConsKeyExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, calls)
		walkForFunctions(e.KeyExpr, calls)
		walkForFunctions(e.ValExpr, calls)
		walkForFunctions(e.CondExpr, calls)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, calls)
		walkForFunctions(e.Key, calls)
	case *hclsyntax.RelativeTraversalExpr:
		walkForFunctions(e.Source, calls)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, calls)
		walkForFunctions(e.Each, calls)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, calls)
	}
}
