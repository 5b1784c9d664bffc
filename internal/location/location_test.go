package location

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, raw string) Path {
	t.Helper()
	p, err := ParsePath(raw)
	require.NoError(t, err)
	return p
}

func TestAssign_IsPureFunctionOfProvenance(t *testing.T) {
	a := Assign(mustPath(t, "doc[0].repeat[1].rows[2].text[0]"))
	b := Assign(mustPath(t, "doc[0].repeat[1].rows[2].text[0]"))
	c := Assign(mustPath(t, "doc[0].repeat[1].rows[3].text[0]"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsZero())
}

func TestAssign_NoCollisionsAcrossManyPaths(t *testing.T) {
	seen := make(map[Location]string)
	for i := 0; i < 50; i++ {
		for j := 0; j < 50; j++ {
			p := Path{NewPathSegmentWithIndex("doc", 0), NewPathSegmentWithIndex("rows", i), NewPathSegmentWithIndex("text", j)}
			loc := Assign(p)
			prev, dup := seen[loc]
			require.False(t, dup, "collision between %s and %s", prev, p)
			seen[loc] = p.String()
		}
	}
}

func TestLocation_StringRoundTrip(t *testing.T) {
	loc := Assign(mustPath(t, "doc[0].heading[4]"))

	parsed, err := Parse(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)
	assert.Len(t, loc.String(), 33)

	fromBytes, err := FromBytes(loc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, loc, fromBytes)
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{"", "1234", "@zz", "@" + fmt.Sprintf("%032d", 0)[:31] + "g"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestLocation_CompareIsTotal(t *testing.T) {
	a := Assign(mustPath(t, "doc[0].a"))
	b := Assign(mustPath(t, "doc[0].b"))

	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -a.Compare(b), b.Compare(a))
	assert.NotEqual(t, 0, a.Compare(b))
}

func TestLocation_Variant(t *testing.T) {
	base := Assign(mustPath(t, "doc[0].text[0]"))

	assert.NotEqual(t, base, base.Variant(1))
	assert.NotEqual(t, base.Variant(1), base.Variant(2))
	assert.Equal(t, base.Variant(1), base.Variant(1))
}

func TestRegistry_DisambiguatesRepeatedPaths(t *testing.T) {
	r := NewRegistry()
	p := mustPath(t, "page[1].footer.text[0]")

	first := r.Assign(p)
	second := r.Assign(p)

	assert.Equal(t, Assign(p), first)
	assert.Equal(t, Assign(p).Variant(1), second)
	assert.Equal(t, 1, r.Duplicates())
	assert.Equal(t, 2, r.Len())

	owner, ok := r.Lookup(second)
	require.True(t, ok)
	assert.Equal(t, p.String(), owner)
}

func TestRegistry_ConcurrentAssignmentIsDeterministic(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	results := make([]Location, 100)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Assign(Path{NewPathSegmentWithIndex("doc", 0), NewPathSegmentWithIndex("context", i)})
		}(i)
	}
	wg.Wait()

	for i, loc := range results {
		assert.Equal(t, Assign(Path{NewPathSegmentWithIndex("doc", 0), NewPathSegmentWithIndex("context", i)}), loc)
	}
	assert.Equal(t, 0, r.Duplicates())
}
