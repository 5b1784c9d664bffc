// Package realize resolves the context closures of a content tree.
//
// Closures at the outermost level are independent of each other: each reads
// only the immutable snapshot of the previous pass and writes only into its
// own slot of the output tree. They are therefore resolved concurrently by a
// bounded pool of workers. A closure nested in the body of another one is
// resolved inline by the worker that produced it. Diagnostics are collected
// per closure and returned in document order, so the result does not depend
// on scheduling.
package realize

import (
	"context"
	"runtime"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/model"
	"golang.org/x/sync/errgroup"
)

// Resolver resolves closures on a fixed number of workers.
type Resolver struct {
	workers int
}

// New creates a resolver. A non-positive worker count selects one worker per
// CPU.
func New(workers int) *Resolver {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Resolver{workers: workers}
}

// Workers returns the size of the worker pool.
func (r *Resolver) Workers() int {
	return r.workers
}

// job is one outermost closure and the element that receives its body.
type job struct {
	order   int
	closure *model.Closure
	target  *model.Elem
}

// Resolve returns a copy of content in which every closure is replaced by an
// element carrying the body the closure produced.
func (r *Resolver) Resolve(ctx context.Context, content []model.Content) ([]model.Content, hcl.Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)

	var jobs []job
	out := plan(content, &jobs)
	if len(jobs) == 0 {
		return out, nil, nil
	}

	results := make([]hcl.Diagnostics, len(jobs))
	queue := make(chan job)
	g, gctx := errgroup.WithContext(ctx)

	workers := min(r.workers, len(jobs))
	logger.Debug("Resolving closures.", "closures", len(jobs), "workers", workers)
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return worker(gctx, workerID, queue, results)
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var diags hcl.Diagnostics
	for _, d := range results {
		diags = append(diags, d...)
	}
	return out, diags, nil
}

// worker is the processing loop of one pool worker.
func worker(ctx context.Context, workerID int, queue <-chan job, results []hcl.Diagnostics) error {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for j := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, diags := ResolveInline(ctx, j.closure)
		j.target.Body = body
		results[j.order] = diags
		logger.Debug("Closure resolved.", "location", j.closure.Element.Location, "kind", j.closure.Element.Kind, "diagnostics", len(diags))
	}

	logger.Debug("Worker finished.")
	return nil
}

// ResolveInline resolves a closure and every closure nested in its body on
// the calling goroutine.
func ResolveInline(ctx context.Context, c *model.Closure) ([]model.Content, hcl.Diagnostics) {
	body, diags := c.Resolve(ctx)
	body, nested := Flatten(ctx, body)
	return body, append(diags, nested...)
}

// Flatten resolves every closure of a content tree on the calling goroutine.
func Flatten(ctx context.Context, content []model.Content) ([]model.Content, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	out := make([]model.Content, 0, len(content))
	for _, c := range content {
		switch n := c.(type) {
		case *model.Closure:
			body, d := ResolveInline(ctx, n)
			diags = append(diags, d...)
			out = append(out, &model.Elem{Element: n.Element, Body: body, Updates: n.Updates})
		case *model.Elem:
			body, d := Flatten(ctx, n.Body)
			diags = append(diags, d...)
			out = append(out, &model.Elem{Element: n.Element, Body: body, Updates: n.Updates})
		default:
			out = append(out, c)
		}
	}
	return out, diags
}

// plan copies the tree, replacing each outermost closure by an empty element
// and recording a job to fill it.
func plan(content []model.Content, jobs *[]job) []model.Content {
	out := make([]model.Content, 0, len(content))
	for _, c := range content {
		switch n := c.(type) {
		case *model.Closure:
			target := &model.Elem{Element: n.Element, Updates: n.Updates}
			*jobs = append(*jobs, job{order: len(*jobs), closure: n, target: target})
			out = append(out, target)
		case *model.Elem:
			out = append(out, &model.Elem{Element: n.Element, Body: plan(n.Body, jobs), Updates: n.Updates})
		default:
			out = append(out, c)
		}
	}
	return out
}
