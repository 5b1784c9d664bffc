package layout

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func loc(name string) location.Location {
	return location.Assign(location.Path{location.NewPathSegment(name)})
}

func para(s string) model.Text {
	return model.Text{Value: s}
}

func TestWrap(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		width    int
		expected []string
	}{
		{name: "fits", text: "hello", width: 10, expected: []string{"hello"}},
		{name: "breaks at spaces", text: "aaa bbb ccc", width: 7, expected: []string{"aaa bbb", "ccc"}},
		{name: "splits long words", text: "abcdefghij", width: 4, expected: []string{"abcd", "efgh", "ij"}},
		{name: "empty", text: "", width: 4, expected: []string{""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Wrap(tc.text, tc.width))
		})
	}
}

func TestLayout_FlowsOntoPages(t *testing.T) {
	heading := model.NewElement(model.KindHeading, loc("h"), "", nil)
	content := []model.Content{
		para("one"),
		para("two"),
		para("three"),
		&model.Elem{
			Element: heading,
			Body:    []model.Content{para("Head")},
			Updates: []store.Update{{Key: store.CounterKey("heading"), Op: store.StepCounter(1)}},
		},
		model.PageBreak{},
		para("four"),
	}

	res, err := Layout(context.Background(), Config{Width: 10, Height: 3}, content, location.NewRegistry(), nil)
	require.NoError(t, err)

	expected := []Page{
		{Number: 1, Lines: []string{"one", "two", "three"}},
		{Number: 2, Lines: []string{"Head"}},
		{Number: 3, Lines: []string{"four"}},
	}
	if diff := cmp.Diff(expected, res.Pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 3, res.Index.Pages())
	pos, err := res.Index.PositionOf(loc("h"))
	require.NoError(t, err)
	assert.Equal(t, model.Position{Page: 2, Y: 0}, pos)

	snap, diags := res.Log.Freeze(context.Background(), nil)
	require.False(t, diags.HasErrors())
	assert.Equal(t, []int{3}, snap.CounterFinal(PageCounter))

	// The heading comes after the second page marker in document order.
	ord, ok := res.Index.Ordinal(loc("h"))
	require.True(t, ok)
	assert.Equal(t, []int{2}, snap.CounterAt(PageCounter, ord))
	assert.Equal(t, []int{1}, snap.CounterAt("heading", ord))
}

func TestLayout_ElementTagPrecedesBody(t *testing.T) {
	outer := model.NewElement(model.KindContext, loc("ctx"), "", nil)
	inner := model.NewElement(model.KindMetadata, loc("meta"), "", map[string]cty.Value{"value": cty.True})
	content := []model.Content{
		&model.Elem{Element: outer, Body: []model.Content{&model.Elem{Element: inner}}},
	}

	res, err := Layout(context.Background(), Config{Width: 10, Height: 5}, content, location.NewRegistry(), nil)
	require.NoError(t, err)

	outerOrd, _ := res.Index.Ordinal(loc("ctx"))
	innerOrd, _ := res.Index.Ordinal(loc("meta"))
	assert.Less(t, outerOrd, innerOrd)
}

func TestLayout_InlineTextAndPlaceholders(t *testing.T) {
	content := []model.Content{
		model.Text{Deferred: true},
		model.Text{Value: " Intro", Inline: true},
		para("next"),
	}

	res, err := Layout(context.Background(), Config{Width: 20, Height: 5}, content, location.NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, []string{"?? Intro", "next"}, res.Pages[0].Lines)
}

func TestLayout_Footers(t *testing.T) {
	content := []model.Content{para("a"), para("b"), para("c")}
	footer := func(ctx context.Context, page int, marker location.Location) ([]model.Content, hcl.Diagnostics) {
		assert.Equal(t, location.Assign(location.Path{location.NewPathSegmentWithIndex(model.KindPage, page)}), marker)
		return []model.Content{para(fmt.Sprintf("Page %d", page)), para("dropped")}, nil
	}

	// Height 4 leaves two body lines: one footer line and a separator.
	res, err := Layout(context.Background(), Config{Width: 10, Height: 4, FooterLines: 1}, content, location.NewRegistry(), footer)
	require.NoError(t, err)

	expected := []Page{
		{Number: 1, Lines: []string{"a", "b"}, Footer: []string{"Page 1"}},
		{Number: 2, Lines: []string{"c"}, Footer: []string{"Page 2"}},
	}
	if diff := cmp.Diff(expected, res.Pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_RejectsUnresolvedClosures(t *testing.T) {
	content := []model.Content{&model.Closure{Element: model.NewElement(model.KindContext, loc("c"), "", nil)}}
	_, err := Layout(context.Background(), Config{Width: 10, Height: 5}, content, location.NewRegistry(), nil)
	require.ErrorContains(t, err, "unresolved closure at "+loc("c").String())

	// Locations assigned in the pass are reported by their path.
	registry := location.NewRegistry()
	path := location.Path{location.NewPathSegmentWithIndex("doc", 0), location.NewPathSegmentWithIndex(model.KindContext, 3)}
	content = []model.Content{&model.Closure{Element: model.NewElement(model.KindContext, registry.Assign(path), "", nil)}}
	_, err = Layout(context.Background(), Config{Width: 10, Height: 5}, content, registry, nil)
	require.ErrorContains(t, err, "unresolved closure at doc[0].context[3]")
}

func TestRender(t *testing.T) {
	content := []model.Content{
		para("Page "),
		model.Text{Value: "1", Inline: true},
		&model.Elem{Element: model.NewElement(model.KindContext, loc("c"), "", nil), Body: []model.Content{model.Text{Deferred: true}}},
	}
	assert.Equal(t, []string{"Page 1", "??"}, Render(content, 20))
}
