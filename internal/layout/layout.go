// Package layout places a resolved content tree on a grid of fixed-size
// character pages.
//
// Layout is the stage that turns document order into physical positions. It
// walks the tree once, in order, and for every located element it records
// the element with its position in an introspect.Builder and its counter and
// state updates in a store.Log, both tagged with the element's ordinal. Each
// page starts with a page marker element that steps the `page` counter.
package layout

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/mitchellh/go-wordwrap"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/introspect"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// PageCounter is the counter stepped by every page marker.
const PageCounter = "page"

// Config is the page grid.
type Config struct {
	Width  int
	Height int
	// FooterLines reserves lines at the bottom of every page for the
	// footer, plus one separating blank line.
	FooterLines int
}

// bodyHeight returns the number of lines available for content.
func (c Config) bodyHeight() int {
	h := c.Height
	if c.FooterLines > 0 {
		h -= c.FooterLines + 1
	}
	return max(h, 1)
}

// FooterFunc evaluates the footer of a page. marker is the location of the
// page's marker element.
type FooterFunc func(ctx context.Context, page int, marker location.Location) ([]model.Content, hcl.Diagnostics)

// Page is one laid out page.
type Page struct {
	Number int      `json:"number" yaml:"number"`
	Lines  []string `json:"lines" yaml:"lines"`
	Footer []string `json:"footer,omitempty" yaml:"footer,omitempty"`
}

// Result is the output of one layout run.
type Result struct {
	Pages []Page
	Index *introspect.Index
	Log   *store.Log
	// Diagnostics come from footer evaluation and are delayed like any
	// other diagnostic produced inside a frame.
	Diagnostics hcl.Diagnostics
}

type engine struct {
	cfg      Config
	registry *location.Registry
	builder  *introspect.Builder
	log      *store.Log

	pages   []Page
	markers []location.Location
	y       int
	para    strings.Builder
	open    bool
}

// Layout places content on pages. registry assigns the locations of the page
// markers; footer may be nil.
func Layout(ctx context.Context, cfg Config, content []model.Content, registry *location.Registry, footer FooterFunc) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("invalid page size %dx%d", cfg.Width, cfg.Height)
	}

	e := &engine{
		cfg:      cfg,
		registry: registry,
		builder:  introspect.NewBuilder(),
		log:      store.NewLog(),
	}
	if err := e.startPage(); err != nil {
		return nil, err
	}
	if err := e.place(content); err != nil {
		return nil, err
	}
	if err := e.flush(); err != nil {
		return nil, err
	}

	res := &Result{Pages: e.pages, Index: e.builder.Build(), Log: e.log}
	if footer != nil && cfg.FooterLines > 0 {
		for i := range res.Pages {
			footerContent, diags := footer(ctx, i+1, e.markers[i])
			res.Diagnostics = append(res.Diagnostics, diags...)
			lines := Render(footerContent, cfg.Width)
			if len(lines) > cfg.FooterLines {
				lines = lines[:cfg.FooterLines]
			}
			res.Pages[i].Footer = lines
		}
	}

	logger.Debug("Layout finished.", "pages", len(res.Pages), "elements", res.Index.Len(), "updates", res.Log.Len())
	return res, nil
}

func (e *engine) startPage() error {
	n := len(e.pages) + 1
	loc := e.registry.Assign(location.Path{location.NewPathSegmentWithIndex(model.KindPage, n)})
	marker := model.NewElement(model.KindPage, loc, "", map[string]cty.Value{
		"number": cty.NumberIntVal(int64(n)),
	}).WithPositions(model.Position{Page: n})

	ord, err := e.builder.Add(marker)
	if err != nil {
		return err
	}
	e.log.Append(ord, loc, store.Update{Key: store.CounterKey(PageCounter), Op: store.StepCounter(1)})

	e.pages = append(e.pages, Page{Number: n})
	e.markers = append(e.markers, loc)
	e.y = 0
	return nil
}

// ensureRoom starts a new page when the current one is full.
func (e *engine) ensureRoom() error {
	if e.y >= e.cfg.bodyHeight() {
		return e.startPage()
	}
	return nil
}

func (e *engine) place(content []model.Content) error {
	for _, c := range content {
		switch n := c.(type) {
		case model.Text:
			if !n.Inline {
				if err := e.flush(); err != nil {
					return err
				}
			}
			e.write(n)
		case *model.Elem:
			if err := e.element(n); err != nil {
				return err
			}
		case model.PageBreak:
			if err := e.flush(); err != nil {
				return err
			}
			if e.y > 0 {
				if err := e.startPage(); err != nil {
					return err
				}
			}
		case *model.Closure:
			where := n.Element.Location.String()
			if path, ok := e.registry.Lookup(n.Element.Location); ok {
				where = path
			}
			return fmt.Errorf("unresolved closure at %s", where)
		}
	}
	return nil
}

// element records an element at the cursor, then places its body.
func (e *engine) element(n *model.Elem) error {
	if err := e.flush(); err != nil {
		return err
	}
	if err := e.ensureRoom(); err != nil {
		return err
	}
	pos := model.Position{Page: len(e.pages), Y: e.y}
	ord, err := e.builder.Add(n.Element.WithPositions(pos))
	if err != nil {
		return err
	}
	e.log.Append(ord, n.Element.Location, n.Updates...)

	if err := e.place(n.Body); err != nil {
		return err
	}
	return e.flush()
}

func (e *engine) write(t model.Text) {
	e.open = true
	if t.Deferred {
		e.para.WriteString(model.Placeholder)
		return
	}
	e.para.WriteString(t.Value)
}

// flush breaks the open paragraph into lines and places them.
func (e *engine) flush() error {
	if !e.open {
		return nil
	}
	text := e.para.String()
	e.para.Reset()
	e.open = false

	for _, line := range Wrap(text, e.cfg.Width) {
		if err := e.ensureRoom(); err != nil {
			return err
		}
		page := &e.pages[len(e.pages)-1]
		page.Lines = append(page.Lines, line)
		e.y++
	}
	return nil
}

// Wrap breaks text into lines of at most width runes. Words longer than a
// line are split.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, line := range strings.Split(wordwrap.WrapString(text, uint(width)), "\n") {
		for utf8.RuneCountInString(line) > width {
			runes := []rune(line)
			out = append(out, string(runes[:width]))
			line = string(runes[width:])
		}
		out = append(out, line)
	}
	return out
}

// Render lays out content as plain paragraphs without recording elements.
// Page footers use it.
func Render(content []model.Content, width int) []string {
	var lines []string
	var para strings.Builder
	open := false
	flush := func() {
		if open {
			lines = append(lines, Wrap(para.String(), width)...)
			para.Reset()
			open = false
		}
	}

	var walk func([]model.Content)
	walk = func(content []model.Content) {
		for _, c := range content {
			switch n := c.(type) {
			case model.Text:
				if !n.Inline {
					flush()
				}
				open = true
				if n.Deferred {
					para.WriteString(model.Placeholder)
				} else {
					para.WriteString(n.Value)
				}
			case *model.Elem:
				flush()
				walk(n.Body)
				flush()
			case *model.Closure:
				flush()
				open = true
				para.WriteString(model.Placeholder)
			}
		}
	}
	walk(content)
	flush()
	return lines
}
