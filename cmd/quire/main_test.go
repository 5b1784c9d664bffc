package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/quire/internal/app"
	"github.com/specialistvlad/quire/internal/cli"
	"github.com/specialistvlad/quire/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_Compile(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{
		"main.hcl": `
heading {
  body      = "Intro"
  label     = "intro"
  numbering = "1"
}
ref {
  target = "intro"
}
`,
	})

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"compile", dir})
	require.NoError(t, err)
	assert.Equal(t, "1 Intro\nSection 1\n", out.String())
}

func TestRun_DocumentErrors(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{
		"main.hcl": `
ref {
  target = "missing"
}
`,
	})

	errW := &bytes.Buffer{}
	err := run(context.Background(), &bytes.Buffer{}, errW, []string{"compile", dir})

	var diagErr *app.DiagnosticsError
	require.ErrorAs(t, err, &diagErr)
	assert.Contains(t, errW.String(), "label `missing` does not exist in the document")
	assert.Equal(t, 1, exitCode(err, &bytes.Buffer{}))
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		code     int
		expected string
	}{
		{name: "success", err: nil, code: 0},
		{name: "usage", err: &cli.ExitError{Code: 2, Message: "bad flag"}, code: 2, expected: "bad flag\n"},
		{name: "diagnostics", err: &app.DiagnosticsError{Errors: 1}, code: 1},
		{name: "other", err: errors.New("boom"), code: 1, expected: "boom\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			errW := &bytes.Buffer{}
			assert.Equal(t, tc.code, exitCode(tc.err, errW))
			assert.Equal(t, tc.expected, errW.String())
		})
	}
}
