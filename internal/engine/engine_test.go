package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/engine"
	"github.com/specialistvlad/quire/internal/layout"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/markup"
	"github.com/specialistvlad/quire/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, src string) *markup.Document {
	t.Helper()
	doc, diags := markup.NewLoader().LoadSource(context.Background(), "doc.hcl", []byte(src))
	require.False(t, diags.HasErrors(), diags.Error())
	return doc
}

func compile(t *testing.T, doc *markup.Document, opts engine.Options) *engine.Output {
	t.Helper()
	ctx, _ := testutil.Context(t)
	out, err := engine.New(opts).Compile(ctx, doc)
	require.NoError(t, err)
	return out
}

// lines joins the body lines of all pages.
func lines(pages []layout.Page) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Lines...)
	}
	return out
}

func findDiag(diags hcl.Diagnostics, summary string) *hcl.Diagnostic {
	for _, d := range diags {
		if d.Summary == summary {
			return d
		}
	}
	return nil
}

const numberedDoc = `
heading {
  body      = "Intro"
  label     = "intro"
  numbering = "1"
}
ref {
  target = "intro"
}
heading {
  body      = "Next"
  numbering = "1"
}
figure {
  caption = "A chart"
  label   = "chart"
}
ref {
  target = "chart"
}
`

func TestCompile_NumberedHeadingsAndReferences(t *testing.T) {
	out := testutil.Compile(t, numberedDoc, engine.Options{})

	require.True(t, out.Converged())
	assert.Empty(t, out.Diagnostics)
	assert.Len(t, out.Passes, 2)

	expected := []string{"1 Intro", "Section 1", "2 Next", "Figure 1: A chart", "Figure 1"}
	if diff := cmp.Diff(expected, lines(out.Pages)); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{2}, out.Snapshot.Store.CounterFinal(markup.HeadingCounter))
	assert.Equal(t, []int{1}, out.Snapshot.Store.CounterFinal(markup.FigureCounter))
}

func TestCompile_StateTrace(t *testing.T) {
	out := compile(t, load(t, numberedDoc), engine.Options{})

	expected := []engine.Transition{
		{Pass: 1, State: engine.Evaluating},
		{Pass: 1, State: engine.LayingOut},
		{Pass: 1, State: engine.Comparing},
		{Pass: 2, State: engine.Evaluating},
		{Pass: 2, State: engine.LayingOut},
		{Pass: 2, State: engine.Comparing},
		{Pass: 2, State: engine.Converged},
	}
	assert.Equal(t, expected, out.Trace)
	assert.True(t, out.State.Terminal())

	// The first pass has nothing to read from.
	assert.Positive(t, out.Passes[0].Deferred)
	assert.Zero(t, out.Passes[1].Deferred)
	assert.Empty(t, out.Passes[1].Changes)
}

func TestCompile_Deterministic(t *testing.T) {
	doc := load(t, numberedDoc)

	single := compile(t, doc, engine.Options{Workers: 1})
	many := compile(t, doc, engine.Options{Workers: 8})

	if diff := cmp.Diff(single.Pages, many.Pages); diff != "" {
		t.Errorf("pages differ between worker counts (-1 +8):\n%s", diff)
	}
	assert.True(t, single.Snapshot.Equal(many.Snapshot))

	locs := func(out *engine.Output) []location.Location {
		var l []location.Location
		for _, e := range out.Snapshot.Index.Elements() {
			l = append(l, e.Location)
		}
		return l
	}
	assert.Equal(t, locs(single), locs(many))
}

func TestCompile_SeedIsAFixedPoint(t *testing.T) {
	doc := load(t, numberedDoc)
	first := compile(t, doc, engine.Options{})
	require.True(t, first.Converged())

	again := compile(t, doc, engine.Options{Seed: first.Snapshot})
	require.True(t, again.Converged())
	assert.Len(t, again.Passes, 1)
	assert.Equal(t, first.Pages, again.Pages)
	assert.True(t, first.Snapshot.Equal(again.Snapshot))
}

func TestCompile_ForeignSeedStillConverges(t *testing.T) {
	other := compile(t, load(t, `
heading {
  body      = "Elsewhere"
  numbering = "1"
}
`), engine.Options{})

	doc := load(t, numberedDoc)
	fresh := compile(t, doc, engine.Options{})
	seeded := compile(t, doc, engine.Options{Seed: other.Snapshot})

	require.True(t, seeded.Converged())
	assert.Equal(t, fresh.Pages, seeded.Pages)
}

func TestCompile_ContextIsImmutable(t *testing.T) {
	out := compile(t, load(t, `
counter_update "x" {
  set = [1]
}
context {
  text {
    value = counter_display("x", "1")
  }
  counter_update "x" {
    set = [2]
  }
  context {
    text {
      value = counter_display("x", "1")
    }
  }
}
`), engine.Options{})

	require.True(t, out.Converged())
	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, []string{"1", "2"}, lines(out.Pages))
}

func TestCompile_Diverges(t *testing.T) {
	out := compile(t, load(t, `
state "n" {
  init = 0
}
context {
  state_update "n" {
    value = state_final("n") + 1
  }
}
`), engine.Options{})

	assert.False(t, out.Converged())
	assert.Equal(t, engine.Diverged, out.State)
	assert.Len(t, out.Passes, engine.MaxIterations)

	d := findDiag(out.Diagnostics, "Layout did not converge within 5 attempts")
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagWarning, d.Severity)
	assert.Contains(t, d.Detail, "check if any states or queries are updating themselves")
	assert.Contains(t, d.Detail, `state("n") = `)
}

func TestCompile_MissingLabel(t *testing.T) {
	out := compile(t, load(t, `
ref {
  target = "nope"
}
`), engine.Options{})

	require.True(t, out.Converged())
	d := findDiag(out.Diagnostics, "Invalid reference")
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, "label `<nope>` does not exist in the document")
	assert.Nil(t, findDiag(out.Diagnostics, "Internal error"))
}

func TestCompile_AmbiguousQuery(t *testing.T) {
	out := compile(t, load(t, `
metadata {
  value = 1
}
metadata {
  value = 2
}
context {
  text {
    value = query_one("metadata")
  }
}
`), engine.Options{})

	require.True(t, out.Diagnostics.HasErrors())
	found := false
	for _, d := range out.Diagnostics.Errs() {
		if strings.Contains(d.Error(), "ambiguous match") {
			found = true
		}
	}
	assert.True(t, found, out.Diagnostics.Error())
}

func TestCompile_PageFooter(t *testing.T) {
	out := compile(t, load(t, `
page {
  width  = 20
  height = 4
  footer {
    text {
      value = format("Page %d of %d", counter_get("page")[0], page_count())
    }
  }
}
text {
  value = "one"
}
text {
  value = "two"
}
text {
  value = "three"
}
text {
  value = "four"
}
`), engine.Options{})

	require.True(t, out.Converged())
	assert.Empty(t, out.Diagnostics)

	expected := []layout.Page{
		{Number: 1, Lines: []string{"one", "two"}, Footer: []string{"Page 1 of 2"}},
		{Number: 2, Lines: []string{"three", "four"}, Footer: []string{"Page 2 of 2"}},
	}
	if diff := cmp.Diff(expected, out.Pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_EvaluationErrorsAbort(t *testing.T) {
	out := compile(t, load(t, `
text {
  value = tonumber("many")
}
`), engine.Options{})

	assert.Equal(t, engine.Aborted, out.State)
	assert.True(t, out.Diagnostics.HasErrors())
	assert.Empty(t, out.Pages)
	assert.Len(t, out.Trace, 2)
}

func TestCompile_CanceledContext(t *testing.T) {
	base, logs := testutil.Context(t)
	ctx, cancel := context.WithCancel(base)
	cancel()
	_, err := engine.New(engine.Options{}).Compile(ctx, load(t, numberedDoc))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, logs.String(), "Pass finished.")
}

func TestCompile_UnknownLocationFails(t *testing.T) {
	const dead = "@0000000000000000000000000000dead"
	testCases := []struct {
		name string
		expr string
	}{
		{name: "position", expr: `jsonencode(position("` + dead + `"))`},
		{name: "counter at", expr: `jsonencode(counter_at("heading", "` + dead + `"))`},
		{name: "before anchor", expr: `query_count(before("heading", "` + dead + `"))`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := testutil.Compile(t, `
heading {
  body = "Intro"
}
context {
  text {
    value = `+tc.expr+`
  }
}
`, engine.Options{})

			assert.Equal(t, engine.Converged, out.State)
			assert.Len(t, out.Passes, 3)
			assert.Positive(t, out.Passes[1].Deferred)
			assert.Zero(t, out.Passes[2].Deferred)
			assert.Nil(t, findDiag(out.Diagnostics, "Layout did not converge within 5 attempts"))
			assert.Nil(t, findDiag(out.Diagnostics, "Internal error"))

			found := false
			for _, d := range out.Diagnostics.Errs() {
				if strings.Contains(d.Error(), "unresolved location: "+dead) {
					found = true
				}
			}
			assert.True(t, found, out.Diagnostics.Error())
			assert.Equal(t, []string{"Intro"}, lines(out.Pages))
		})
	}
}

func TestCompile_HeadingCounterInContext(t *testing.T) {
	out := testutil.Compile(t, `
heading {
  body = "Introduction"
}
context {
  text {
    value = jsonencode(counter_get("heading"))
  }
}
heading {
  body = "Background"
}
context {
  text {
    value = jsonencode(counter_get("heading"))
  }
}
`, engine.Options{})

	require.True(t, out.Converged())
	assert.Empty(t, out.Diagnostics)

	expected := []string{"Introduction", "[1]", "Background", "[2]"}
	if diff := cmp.Diff(expected, lines(out.Pages)); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{2}, out.Snapshot.Store.CounterFinal(markup.HeadingCounter))
}

func TestCompile_CounterFeedingItselfDiverges(t *testing.T) {
	out := testutil.Compile(t, `
context {
  counter_update "x" {
    set = [counter_final("x")[0] + 1]
  }
}
`, engine.Options{})

	assert.Equal(t, engine.Diverged, out.State)
	assert.Len(t, out.Passes, engine.MaxIterations)

	d := findDiag(out.Diagnostics, "Layout did not converge within 5 attempts")
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagWarning, d.Severity)
	assert.Contains(t, d.Detail, `counter("x") = `)
}
