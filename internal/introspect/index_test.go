package introspect

import (
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func loc(name string) location.Location {
	return location.Assign(location.Path{location.NewPathSegment(name)})
}

func heading(name string, level int, label string, page int) *model.Element {
	return model.NewElement(model.KindHeading, loc(name), label, map[string]cty.Value{
		"level": cty.NumberIntVal(int64(level)),
		"body":  cty.StringVal(name),
	}).WithPositions(model.Position{Page: page})
}

// buildSample returns: page1, h-intro(1), fig, h-sub(2), page2, h-back(1), meta.
func buildSample(t *testing.T) *Index {
	t.Helper()
	elems := []*model.Element{
		model.NewElement(model.KindPage, loc("page1"), "", nil).WithPositions(model.Position{Page: 1}),
		heading("intro", 1, "intro", 1),
		model.NewElement(model.KindFigure, loc("fig"), "fig", nil).WithPositions(model.Position{Page: 1, Y: 4}),
		heading("sub", 2, "", 1),
		model.NewElement(model.KindPage, loc("page2"), "", nil).WithPositions(model.Position{Page: 2}),
		heading("back", 1, "", 2),
		model.NewElement(model.KindMetadata, loc("meta"), "", map[string]cty.Value{"value": cty.StringVal("m")}),
	}
	ix, err := FromElements(elems)
	require.NoError(t, err)
	return ix
}

func bodies(elems []*model.Element) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if v, ok := e.Field("body"); ok {
			out = append(out, v.AsString())
		} else {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestIndex_Query(t *testing.T) {
	ix := buildSample(t)
	intro := loc("intro").String()
	back := loc("back").String()

	testCases := []struct {
		selector string
		expected []string
	}{
		{selector: "heading", expected: []string{"intro", "sub", "back"}},
		{selector: "heading[level=1]", expected: []string{"intro", "back"}},
		{selector: "<intro>", expected: []string{"intro"}},
		{selector: "heading | figure", expected: []string{"intro", "figure", "sub", "back"}},
		{selector: "heading & !<intro>", expected: []string{"sub", "back"}},
		{selector: "before(heading, " + back + ", exclusive)", expected: []string{"intro", "sub"}},
		{selector: "before(heading, " + back + ")", expected: []string{"intro", "sub", "back"}},
		{selector: "after(heading, " + intro + ", exclusive)", expected: []string{"sub", "back"}},
		{selector: "after(heading, <fig>)", expected: []string{"sub", "back"}},
		{selector: "before(heading, <missing>)", expected: []string{}},
		{selector: "table", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.selector, func(t *testing.T) {
			got := ix.Query(selector.MustParse(tc.selector))
			assert.Equal(t, tc.expected, bodies(got))
		})
	}
}

func TestIndex_QueryOne(t *testing.T) {
	ix := buildSample(t)

	e, err := ix.QueryOne(selector.MustParse("heading & <intro>"))
	require.NoError(t, err)
	assert.Equal(t, loc("intro"), e.Location)

	_, err = ix.QueryOne(selector.MustParse("heading[level=1]"))
	var matchErr *MatchError
	require.ErrorAs(t, err, &matchErr)
	assert.True(t, matchErr.Ambiguous())
	assert.Equal(t, 2, matchErr.Count)

	_, err = ix.QueryOne(selector.MustParse("heading & <nowhere>"))
	require.ErrorAs(t, err, &matchErr)
	assert.False(t, matchErr.Ambiguous())
	assert.Contains(t, err.Error(), "does not exist")
}

func TestIndex_QueryLabel(t *testing.T) {
	elems := []*model.Element{
		heading("a", 1, "dup", 1),
		heading("b", 1, "dup", 1),
		heading("c", 1, "once", 1),
	}
	ix, err := FromElements(elems)
	require.NoError(t, err)

	e, err := ix.QueryLabel("once")
	require.NoError(t, err)
	assert.Equal(t, loc("c"), e.Location)

	_, err = ix.QueryLabel("dup")
	assert.EqualError(t, err, "label `<dup>` occurs multiple times in the document")

	_, err = ix.QueryLabel("missing")
	assert.EqualError(t, err, "label `<missing>` does not exist in the document")
}

func TestIndex_QueryCountBefore(t *testing.T) {
	ix := buildSample(t)

	assert.Equal(t, 1, ix.QueryCountBefore(selector.Kind(model.KindHeading), loc("intro")))
	assert.Equal(t, 2, ix.QueryCountBefore(selector.Kind(model.KindHeading), loc("page2")))
	assert.Equal(t, 3, ix.QueryCountBefore(selector.Kind(model.KindHeading), loc("meta")))
}

func TestIndex_Positions(t *testing.T) {
	ix := buildSample(t)

	page, err := ix.Page(loc("back"))
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, 2, ix.Pages())

	_, err = ix.PositionOf(loc("meta"))
	assert.True(t, errors.Is(err, ErrUnresolvedLocation))

	_, err = ix.PositionOf(loc("never-laid-out"))
	assert.True(t, errors.Is(err, ErrUnresolvedLocation))
}

func TestIndex_OrdinalAndHas(t *testing.T) {
	ix := buildSample(t)

	o, ok := ix.Ordinal(loc("fig"))
	require.True(t, ok)
	assert.Equal(t, 2, o)
	assert.True(t, ix.Has(loc("meta")))
	assert.False(t, ix.Has(loc("nope")))
	assert.Equal(t, 7, ix.Len())
	assert.Equal(t, 0, Empty().Len())
}

func TestIndex_Equal(t *testing.T) {
	a := buildSample(t)
	b := buildSample(t)
	assert.True(t, a.Equal(b))
	assert.Empty(t, a.Diff(b))

	moved, err := FromElements([]*model.Element{heading("intro", 1, "intro", 2)})
	require.NoError(t, err)
	assert.False(t, a.Equal(moved))
	assert.Contains(t, a.Diff(moved), "element count changed")

	single, err := FromElements([]*model.Element{heading("intro", 1, "intro", 1)})
	require.NoError(t, err)
	assert.Contains(t, single.Diff(moved), "element 0 changed")
}

func TestBuilder_RejectsDuplicateLocations(t *testing.T) {
	b := NewBuilder()
	_, err := b.Add(heading("a", 1, "", 1))
	require.NoError(t, err)
	_, err = b.Add(heading("a", 2, "", 1))
	require.Error(t, err)
}

func TestIndex_ConcurrentQueriesShareCache(t *testing.T) {
	ix := buildSample(t)
	sel := selector.MustParse("heading[level=1] | figure")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, ix.Query(sel), 3)
		}()
	}
	wg.Wait()
}
