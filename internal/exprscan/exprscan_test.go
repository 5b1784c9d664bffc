package exprscan_test

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/quire/internal/exprscan"
	"github.com/stretchr/testify/require"
)

// parseExpr is a test helper to quickly get an hcl.Expression from a string.
func parseExpr(t *testing.T, exprStr string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(exprStr), "test.hcl", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	require.False(t, diags.HasErrors(), "Expression parsing failed: %s", diags.Error())
	return expr
}

func names(calls []exprscan.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Name
	}
	return out
}

func TestCalls_FindsNestedCalls(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		expected []string
	}{
		{name: "plain call", src: `here()`, expected: []string{"here"}},
		{name: "call in argument", src: `upper(counter_display("page"))`, expected: []string{"upper", "counter_display"}},
		{name: "template", src: `"Page ${counter_display("page")} of ${counter_final("page")[0]}"`, expected: []string{"counter_display", "counter_final"}},
		{name: "attribute access", src: `query_one("<intro>").fields.body`, expected: []string{"query_one"}},
		{name: "splat", src: `query("heading")[*].label`, expected: []string{"query"}},
		{name: "conditional", src: `true ? here() : "x"`, expected: []string{"here"}},
		{name: "for expression", src: `[for h in query("heading") : upper(h.label)]`, expected: []string{"query", "upper"}},
		{name: "object key", src: `{ (here()) = 1 }`, expected: []string{"here"}},
		{name: "no calls", src: `count.index + 1`, expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, names(exprscan.Calls(parseExpr(t, tc.src))))
		})
	}
}

func TestCalls_ReportRanges(t *testing.T) {
	calls := exprscan.Calls(parseExpr(t, `upper(here())`))
	require.Len(t, calls, 2)
	require.Equal(t, "here", calls[1].Name)
	require.Equal(t, 6, calls[1].Range.Start.Byte)
	require.Equal(t, 12, calls[1].Range.End.Byte)
}

func TestContainer_AddAndExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(
		parseExpr(t, `upper("hello")`),
		parseExpr(t, `count.index`),
		parseExpr(t, `lower(prev.label)`),
		parseExpr(t, `count.index`), // Duplicate reference
	)

	require.Equal(t, []string{"upper", "lower"}, names(c.Calls()))

	refs := c.References()
	require.Len(t, refs, 2)
	require.Equal(t, []string{"count.index", "prev.label"}, []string{
		exprscan.TraversalKey(refs[0]),
		exprscan.TraversalKey(refs[1]),
	})
}

func TestContainer_AddAfterExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(parseExpr(t, `count.index`))
	require.Len(t, c.References(), 1)

	c.Add(parseExpr(t, `prev`), parseExpr(t, `here()`))
	require.Equal(t, []string{"here"}, names(c.Calls()))
	require.Len(t, c.References(), 2)
}

func TestContainer_EdgeCases(t *testing.T) {
	t.Run("Empty Container", func(t *testing.T) {
		c := exprscan.NewContainer()
		require.Empty(t, c.References())
		require.Empty(t, c.Calls())
	})

	t.Run("Adding Nil Expressions", func(t *testing.T) {
		c := exprscan.NewContainer()
		c.Add(nil, parseExpr(t, `count.index`), nil)
		require.Len(t, c.References(), 1)
	})
}
