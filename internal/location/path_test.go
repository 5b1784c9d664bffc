package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath_String(t *testing.T) {
	testCases := []struct {
		name        string
		path        Path
		expectedStr string
	}{
		{
			name:        "simple path",
			path:        Path{NewPathSegment("doc"), NewPathSegment("footer")},
			expectedStr: "doc.footer",
		},
		{
			name:        "path with indices",
			path:        Path{NewPathSegmentWithIndex("doc", 0), NewPathSegmentWithIndex("repeat", 2), NewPathSegmentWithIndex("rows", 15)},
			expectedStr: "doc[0].repeat[2].rows[15]",
		},
		{
			name:        "empty path",
			path:        nil,
			expectedStr: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStr, tc.path.String())
		})
	}
}

func TestPath_RoundTrip(t *testing.T) {
	testPaths := []string{
		"doc[0].text[1]",
		"doc[0].repeat[2].rows[1].heading[0]",
		"page[3].footer.text[0]",
		"counter_update-x",
	}

	for _, raw := range testPaths {
		t.Run(raw, func(t *testing.T) {
			path, err := ParsePath(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, path.String())

			again, err := ParsePath(path.String())
			require.NoError(t, err)
			assert.True(t, path.Equal(again))
		})
	}
}

func TestParsePath_Errors(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty string", raw: ""},
		{name: "empty segment", raw: "doc..text"},
		{name: "non numeric index", raw: "doc[x]"},
		{name: "just hyphen", raw: "doc.-.text"},
		{name: "unclosed index", raw: "doc[1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePath(tc.raw)
			require.Error(t, err)
		})
	}
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	parent := make(Path, 1, 8)
	parent[0] = NewPathSegmentWithIndex("doc", 0)

	a := parent.Child(NewPathSegmentWithIndex("text", 0))
	b := parent.Child(NewPathSegmentWithIndex("text", 1))

	assert.Equal(t, "doc[0].text[0]", a.String())
	assert.Equal(t, "doc[0].text[1]", b.String())
	assert.Len(t, parent, 1)
}
