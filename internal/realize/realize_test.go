package realize

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(name string) *model.Element {
	loc := location.Assign(location.Path{location.NewPathSegment(name)})
	return model.NewElement(model.KindContext, loc, "", nil)
}

func textClosure(name, text string, calls *atomic.Int32) *model.Closure {
	return &model.Closure{
		Element: element(name),
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			calls.Add(1)
			return []model.Content{model.Text{Value: text}}, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  text,
			}}
		},
	}
}

// texts flattens the visible text of a resolved tree.
func texts(t *testing.T, content []model.Content) []string {
	t.Helper()
	var out []string
	for _, c := range content {
		switch n := c.(type) {
		case model.Text:
			out = append(out, n.Value)
		case *model.Elem:
			out = append(out, texts(t, n.Body)...)
		case *model.Closure:
			t.Fatalf("unresolved closure at %s", n.Element.Location)
		}
	}
	return out
}

func TestResolve_PreservesDocumentOrder(t *testing.T) {
	var calls atomic.Int32
	var content []model.Content
	var expected []string
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("c%02d", i)
		content = append(content, model.Text{Value: "t"}, textClosure(text, text, &calls))
		expected = append(expected, "t", text)
	}

	out, diags, err := New(8).Resolve(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, expected, texts(t, out))
	assert.EqualValues(t, 50, calls.Load())
	require.Len(t, diags, 50)
	for i, d := range diags {
		assert.Equal(t, fmt.Sprintf("c%02d", i), d.Summary)
	}
}

func TestResolve_NestedClosuresResolveInline(t *testing.T) {
	var calls atomic.Int32
	inner := textClosure("inner", "inner", &calls)
	outer := &model.Closure{
		Element: element("outer"),
		Resolve: func(ctx context.Context) ([]model.Content, hcl.Diagnostics) {
			calls.Add(1)
			return []model.Content{model.Text{Value: "outer"}, inner}, nil
		},
	}
	wrapped := &model.Elem{Element: element("heading"), Body: []model.Content{outer}}

	out, diags, err := New(2).Resolve(context.Background(), []model.Content{wrapped})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, texts(t, out))
	assert.EqualValues(t, 2, calls.Load())
	require.Len(t, diags, 1)
	assert.False(t, model.HasDeferred(out))

	// The input tree is left untouched.
	_, stillClosure := wrapped.Body[0].(*model.Closure)
	assert.True(t, stillClosure)
}

func TestResolve_NoClosures(t *testing.T) {
	content := []model.Content{model.Text{Value: "a"}, model.PageBreak{}}
	out, diags, err := New(0).Resolve(context.Background(), content)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, content, out)
}

func TestResolve_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(1).Resolve(ctx, []model.Content{textClosure("a", "a", &calls)})
	require.ErrorIs(t, err, context.Canceled)
}
