package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/quire/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected app.Config
	}{
		{
			name: "compile with defaults",
			args: []string{"compile", "doc.hcl"},
			expected: app.Config{
				Command:   app.CommandCompile,
				Paths:     []string{"doc.hcl"},
				Format:    app.FormatText,
				LogFormat: "text",
				LogLevel:  "warn",
			},
		},
		{
			name: "compile with every flag",
			args: []string{
				"compile", "--format", "JSON", "-o", "out.json", "-w", "4",
				"--cache", ":memory:", "--log-level", "debug", "--log-format", "json",
				"a.hcl", "dir",
			},
			expected: app.Config{
				Command:   app.CommandCompile,
				Paths:     []string{"a.hcl", "dir"},
				Format:    app.FormatJSON,
				OutPath:   "out.json",
				Workers:   4,
				CachePath: app.MemoryCache,
				LogFormat: "json",
				LogLevel:  "debug",
			},
		},
		{
			name: "query",
			args: []string{"query", "heading[level=1]", "doc.hcl", "-f", "yaml"},
			expected: app.Config{
				Command:   app.CommandQuery,
				Paths:     []string{"doc.hcl"},
				Selector:  "heading[level=1]",
				Format:    app.FormatYAML,
				LogFormat: "text",
				LogLevel:  "warn",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.False(t, shouldExit)
			assert.Equal(t, tc.expected, *cfg)
		})
	}
}

func TestParse_Help(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "no arguments", args: nil},
		{name: "help flag", args: []string{"-h"}},
		{name: "command help", args: []string{"compile", "--help"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cfg, shouldExit, err := Parse(tc.args, out)
			require.NoError(t, err)
			assert.True(t, shouldExit)
			assert.Nil(t, cfg)
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected string
	}{
		{name: "unknown flag", args: []string{"compile", "--nope", "a.hcl"}, expected: "unknown flag: --nope"},
		{name: "unknown command", args: []string{"render", "a.hcl"}, expected: `unknown command "render"`},
		{name: "no paths", args: []string{"compile", "--config", ""}, expected: "no document path given"},
		{name: "bad format", args: []string{"compile", "-f", "xml", "a.hcl"}, expected: `invalid format "xml"`},
		{name: "bad selector", args: []string{"query", "heading[level=1", "a.hcl"}, expected: "invalid selector"},
		{name: "query without selector", args: []string{"query"}, expected: "requires at least 1 arg(s)"},
		{name: "missing project file", args: []string{"compile", "--config", "/does/not/exist.yaml", "a.hcl"}, expected: "failed to read project file"},
		{name: "negative workers", args: []string{"compile", "-w", "-1", "a.hcl"}, expected: "workers must not be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.expected)
		})
	}
}

func TestParse_ProjectFile(t *testing.T) {
	path := writeProject(t, `
paths: [chapters, /abs/intro.hcl]
format: yaml
workers: 3
cache: .quire-cache.db
log:
  level: info
  format: json
`)
	dir := filepath.Dir(path)

	t.Run("supplies defaults", func(t *testing.T) {
		cfg, _, err := Parse([]string{"compile", "--config", path}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, app.Config{
			Command:   app.CommandCompile,
			Paths:     []string{filepath.Join(dir, "chapters"), "/abs/intro.hcl"},
			Format:    app.FormatYAML,
			Workers:   3,
			CachePath: ".quire-cache.db",
			LogFormat: "json",
			LogLevel:  "info",
		}, *cfg)
	})

	t.Run("flags win", func(t *testing.T) {
		cfg, _, err := Parse([]string{"compile", "--config", path, "-f", "text", "-w", "0", "--log-level", "error", "x.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, []string{"x.hcl"}, cfg.Paths)
		assert.Equal(t, app.FormatText, cfg.Format)
		assert.Equal(t, 0, cfg.Workers)
		assert.Equal(t, "error", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := writeProject(t, "workers: [1")
		_, _, err := Parse([]string{"compile", "--config", bad, "a.hcl"}, &bytes.Buffer{})
		require.ErrorContains(t, err, "failed to parse project file")
	})
}

func TestParse_DefaultProjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultProjectFile), []byte("paths: [book]\nformat: json\n"), 0o644))
	t.Chdir(dir)

	cfg, _, err := Parse([]string{"compile"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"book"}, cfg.Paths)
	assert.Equal(t, app.FormatJSON, cfg.Format)
}
