package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/engine"
	"github.com/specialistvlad/quire/internal/markup"
	"github.com/specialistvlad/quire/internal/selector"
	"github.com/specialistvlad/quire/internal/snapcache"
)

// DiagnosticsError reports that the document has errors. The diagnostics
// themselves have already been written.
type DiagnosticsError struct {
	Errors int
}

func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("document has %d error(s)", e.Errors)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	errW   io.Writer
	logger *slog.Logger
	config *Config
	cache  snapcache.Cache
}

// NewApp creates an App. Rendered output goes to outW unless the config
// names a file; logs and diagnostics go to errW.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg, errW)
	logger.Debug("Logger configured successfully.")
	return &App{outW: outW, errW: errW, logger: logger, config: cfg}
}

// WithCache makes the app use c instead of opening the configured cache.
func (a *App) WithCache(c snapcache.Cache) *App {
	a.cache = c
	return a
}

// Run compiles the configured document and renders the result.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command, "paths", a.config.Paths)

	loader := markup.NewLoader()
	doc, diags := loader.Load(ctx, a.config.Paths...)
	if diags.HasErrors() {
		return a.fail(loader, diags)
	}
	a.writeDiagnostics(loader, diags)

	cache, closeCache, err := a.openCache()
	if err != nil {
		return err
	}
	defer closeCache()

	opts := engine.Options{Workers: a.config.Workers}
	if cache != nil {
		seed, err := cache.Load(ctx, doc.Hash)
		if err != nil {
			a.logger.Warn("Snapshot cache unavailable.", "error", err)
		} else if seed != nil {
			a.logger.Debug("Using cached snapshot.", "hash", doc.Hash[:12])
			opts.Seed = seed
		}
	}

	a.logger.Info("🚀 Starting compilation...", "files", len(doc.Sources))
	out, err := engine.New(opts).Compile(ctx, doc)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	a.logger.Info("🏁 Compilation finished.", "passes", len(out.Passes), "pages", len(out.Pages), "state", out.State)

	if out.Diagnostics.HasErrors() {
		return a.fail(loader, out.Diagnostics)
	}
	a.writeDiagnostics(loader, out.Diagnostics)

	if cache != nil && out.Converged() {
		if err := cache.Store(ctx, doc.Hash, out.Snapshot); err != nil {
			a.logger.Warn("Failed to cache snapshot.", "error", err)
		}
	}

	var rendered []byte
	switch a.config.Command {
	case CommandQuery:
		sel, err := selector.Parse(a.config.Selector)
		if err != nil {
			return fmt.Errorf("invalid selector: %w", err)
		}
		elems := out.Snapshot.Index.Query(sel)
		a.logger.Debug("Query evaluated.", "selector", sel.String(), "matches", len(elems))
		rendered, err = renderElements(a.config.Format, elems)
		if err != nil {
			return err
		}
	default:
		rendered, err = renderOutput(a.config.Format, out)
		if err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return a.write(rendered)
}

func (a *App) openCache() (snapcache.Cache, func(), error) {
	if a.cache != nil {
		return a.cache, func() {}, nil
	}
	switch a.config.CachePath {
	case "":
		return nil, func() {}, nil
	case MemoryCache:
		return snapcache.NewMemory(), func() {}, nil
	}
	c, err := snapcache.NewSQLite(a.config.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot cache '%s': %w", a.config.CachePath, err)
	}
	return c, func() {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close snapshot cache.", "error", err)
		}
	}, nil
}

func (a *App) write(data []byte) error {
	if a.config.OutPath == "" {
		_, err := a.outW.Write(data)
		return err
	}
	if err := os.WriteFile(a.config.OutPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	a.logger.Info("Output written.", "path", a.config.OutPath, "bytes", len(data))
	return nil
}

func (a *App) writeDiagnostics(loader *markup.Loader, diags hcl.Diagnostics) {
	if len(diags) == 0 {
		return
	}
	wr := hcl.NewDiagnosticTextWriter(a.errW, loader.Files(), 78, false)
	if err := wr.WriteDiagnostics(diags); err != nil {
		a.logger.Error("Failed to write diagnostics.", "error", err)
	}
}

func (a *App) fail(loader *markup.Loader, diags hcl.Diagnostics) error {
	a.writeDiagnostics(loader, diags)
	return &DiagnosticsError{Errors: len(diags.Errs())}
}
