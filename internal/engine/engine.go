package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/frame"
	"github.com/specialistvlad/quire/internal/layout"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/markup"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/realize"
)

// MaxIterations is the number of passes after which a compilation gives up
// on reaching a fixed point.
const MaxIterations = 5

// Options configures an Engine.
type Options struct {
	// Workers bounds the closures resolved concurrently within a pass.
	// Zero selects one worker per CPU.
	Workers int
	// Seed is read by the first pass in place of the empty snapshot. A
	// stale or foreign seed costs extra passes but never changes the
	// result.
	Seed *frame.Snapshot
}

// PassReport summarizes one pass.
type PassReport struct {
	Number   int
	Reads    int64
	Deferred int64
	Elements int
	Pages    int
	// Changes lists what differs from the snapshot the pass read.
	Changes  []string
	Duration time.Duration
}

// Output is the result of a compilation.
type Output struct {
	Pages       []layout.Page
	Snapshot    *frame.Snapshot
	Passes      []PassReport
	Trace       []Transition
	State       State
	Diagnostics hcl.Diagnostics
}

// Converged reports whether the compilation reached a fixed point.
func (o *Output) Converged() bool {
	return o.State == Converged
}

// Engine compiles documents.
type Engine struct {
	opts     Options
	resolver *realize.Resolver
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts, resolver: realize.New(opts.Workers)}
}

// passResult is everything one pass produced.
type passResult struct {
	pages    []layout.Page
	snapshot *frame.Snapshot
	content  []model.Content
	delayed  hcl.Diagnostics
	tracker  *frame.Tracker
	// unresolved holds the locations read during the pass that its own
	// index does not hold either.
	unresolved map[location.Location]bool
}

// Compile runs passes until the document converges or MaxIterations is
// reached. The returned error is reserved for failures of the engine itself;
// problems in the document are reported as diagnostics.
func (e *Engine) Compile(ctx context.Context, doc *markup.Document) (*Output, error) {
	logger := ctxlog.FromContext(ctx)
	out := &Output{}
	transition := func(pass int, s State) {
		out.Trace = append(out.Trace, Transition{Pass: pass, State: s})
		out.State = s
		logger.Debug("Compilation state changed.", "pass", pass, "state", s)
	}

	prior := e.opts.Seed
	if prior == nil {
		prior = frame.EmptySnapshot()
	}
	logger.Debug("Compilation started.", "workers", e.resolver.Workers(), "seeded", e.opts.Seed != nil)

	var unresolved map[location.Location]bool
	var last *passResult
	for n := 1; n <= MaxIterations; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		res, hard, err := e.pass(ctx, doc, prior, unresolved, n, transition)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", n, err)
		}
		if hard.HasErrors() {
			transition(n, Aborted)
			out.Diagnostics = hard
			logger.Debug("Compilation aborted.", "pass", n, "errors", len(hard.Errs()))
			return out, nil
		}

		transition(n, Comparing)
		report := PassReport{
			Number:   n,
			Reads:    res.tracker.Reads(),
			Deferred: res.tracker.Deferred(),
			Elements: res.snapshot.Index.Len(),
			Pages:    len(res.pages),
			Changes:  changes(prior, res.snapshot),
			Duration: time.Since(start),
		}
		out.Passes = append(out.Passes, report)
		logger.Debug("Pass finished.", "pass", n, "reads", report.Reads, "deferred", report.Deferred,
			"elements", report.Elements, "pages", report.Pages, "changes", len(report.Changes))

		last = res
		if converged(res, prior) {
			transition(n, Converged)
			break
		}
		prior = res.snapshot
		unresolved = res.unresolved
	}

	out.Pages = last.pages
	out.Snapshot = last.snapshot
	out.Diagnostics = last.delayed

	if out.State != Converged {
		transition(len(out.Passes), Diverged)
		out.Diagnostics = append(out.Diagnostics, divergence(last.delayed.HasErrors(), out.Passes))
		logger.Warn("Layout did not converge.", "passes", len(out.Passes))
	} else if !out.Diagnostics.HasErrors() && model.HasDeferred(last.content) {
		out.Diagnostics = append(out.Diagnostics, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Internal error",
			Detail:   "The document converged but its output still contains unresolved values.",
		})
	}
	return out, nil
}

// pass runs the pipeline once against prior. hard holds the diagnostics that
// abort the compilation.
func (e *Engine) pass(ctx context.Context, doc *markup.Document, prior *frame.Snapshot, unresolved map[location.Location]bool, n int, transition func(int, State)) (res *passResult, hard hcl.Diagnostics, err error) {
	transition(n, Evaluating)
	ctx = ctxlog.With(ctx, "pass", n)
	tracker := &frame.Tracker{}
	p := &markup.Pass{
		Env:      &frame.Env{Prior: prior, Tracker: tracker, Width: doc.Page.Width, Unresolved: unresolved},
		Registry: location.NewRegistry(),
	}

	content, diags := doc.Evaluate(ctx, p)
	if diags.HasErrors() {
		return nil, diags, nil
	}
	delayed := diags

	resolved, closureDiags, err := e.resolver.Resolve(ctx, content)
	if err != nil {
		return nil, nil, err
	}
	delayed = append(delayed, closureDiags...)

	transition(n, LayingOut)
	cfg := layout.Config{Width: doc.Page.Width, Height: doc.Page.Height}
	var footer layout.FooterFunc
	if len(doc.Page.Footer) > 0 {
		cfg.FooterLines = 1
		footer = func(ctx context.Context, page int, marker location.Location) ([]model.Content, hcl.Diagnostics) {
			c, diags := doc.Footer(ctx, p, page, marker)
			c, more := realize.Flatten(ctx, c)
			return c, append(diags, more...)
		}
	}

	laid, err := layout.Layout(ctx, cfg, resolved, p.Registry, footer)
	if err != nil {
		return nil, nil, err
	}
	delayed = append(delayed, laid.Diagnostics...)

	snap, freezeDiags := laid.Log.Freeze(ctx, doc.Initials)
	delayed = append(delayed, freezeDiags...)

	if dup := p.Registry.Duplicates(); dup > 0 {
		ctxlog.FromContext(ctx).Debug("Paths constructed more than once.", "paths", dup)
	}

	// A location missing from two complete indexes in a row is not part of
	// the document.
	var absent map[location.Location]bool
	if prior.Complete() {
		for _, loc := range tracker.Missing() {
			if laid.Index.Has(loc) {
				continue
			}
			if absent == nil {
				absent = make(map[location.Location]bool)
			}
			absent[loc] = true
		}
		if len(absent) > 0 {
			ctxlog.FromContext(ctx).Debug("Locations confirmed absent.", "locations", len(absent))
		}
	}

	return &passResult{
		pages:      laid.Pages,
		snapshot:   &frame.Snapshot{Index: laid.Index, Store: snap},
		content:    resolved,
		delayed:    delayed,
		tracker:    tracker,
		unresolved: absent,
	}, nil, nil
}

// converged reports whether res is a fixed point. A pass that deferred any
// read cannot be one. A pass that read nothing from its predecessor is
// final as soon as it has nothing deferred.
func converged(res *passResult, prior *frame.Snapshot) bool {
	if res.tracker.Deferred() > 0 || res.snapshot.Store.Deferred() > 0 {
		return false
	}
	if res.tracker.Reads() == 0 {
		return true
	}
	return res.snapshot.Equal(prior)
}
