// Package testutil holds helpers shared by the tests of several packages.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/quire/internal/app"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/engine"
	"github.com/specialistvlad/quire/internal/markup"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// dumpLogs echoes captured logs at the end of a test when QUIRE_TEST_LOGS
// is set to true.
func dumpLogs(t *testing.T, logs *SafeBuffer) {
	t.Cleanup(func() {
		if os.Getenv("QUIRE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
}

// WriteFiles writes files, keyed by slash-separated relative path, into a
// fresh temporary directory and returns the directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// Context returns a context carrying a debug logger that writes into the
// returned buffer.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	logs := &SafeBuffer{}
	dumpLogs(t, logs)
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), logs
}

// Compile loads src as a single document file and compiles it. Loading
// errors fail the test.
func Compile(t *testing.T, src string, opts engine.Options) *engine.Output {
	t.Helper()
	ctx, _ := Context(t)

	doc, diags := markup.NewLoader().LoadSource(ctx, "main.hcl", []byte(src))
	require.False(t, diags.HasErrors(), "failed to load document: %s", diags.Error())

	out, err := engine.New(opts).Compile(ctx, doc)
	require.NoError(t, err)
	return out
}

// AppResult holds the outcome of an App run.
type AppResult struct {
	Output string
	Logs   string
	Err    error
}

// RunApp writes files into a temporary directory, points cfg at it and
// runs the app with debug logging.
func RunApp(t *testing.T, files map[string]string, cfg app.Config) *AppResult {
	t.Helper()
	dir := WriteFiles(t, files)
	cfg.Paths = []string{dir}
	if cfg.Command == "" {
		cfg.Command = app.CommandCompile
	}
	if cfg.Format == "" {
		cfg.Format = app.FormatText
	}
	cfg.LogFormat = "text"
	cfg.LogLevel = "debug"

	valid, err := app.NewConfig(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	logs := &SafeBuffer{}
	dumpLogs(t, logs)
	runErr := app.NewApp(&out, logs, valid).Run(context.Background())
	return &AppResult{Output: out.String(), Logs: logs.String(), Err: runErr}
}
