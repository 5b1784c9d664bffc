// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the styled content tree exchanged between evaluation,
// realization and layout.
//
// Why a Closure node?
//
// A context block cannot be evaluated while the tree is being built: its
// result depends on a context frame that is only entered once the block's
// location is known. The evaluator records the block as a Closure, and the
// realization stage resolves every closure before layout sees the tree.
package model

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/store"
)

// Content is a node of the styled content tree.
type Content interface {
	isContent()
}

// Text is a run of visible text. A deferred text stands for a value that
// could not be resolved yet and renders as a placeholder.
type Text struct {
	Value    string
	Deferred bool
	// Inline text continues the current line instead of starting a block.
	Inline bool
}

// Elem is a located element together with its visible body and the
// counter/state updates it performs at its location.
type Elem struct {
	Element *Element
	Body    []Content
	Updates []store.Update
}

// PageBreak forces the following content onto a new page.
type PageBreak struct{}

// Closure is an element whose body needs a context frame: a context block,
// or an element that displays introspected values such as a numbered
// heading. Resolve produces the body; diagnostics it returns are delayed
// until the final pass.
type Closure struct {
	Element *Element
	Updates []store.Update
	Resolve func(ctx context.Context) ([]Content, hcl.Diagnostics)
}

func (Text) isContent()      {}
func (*Elem) isContent()     {}
func (PageBreak) isContent() {}
func (*Closure) isContent()  {}

// Placeholder is the text rendered for deferred values.
const Placeholder = "??"

// HasDeferred reports whether any text in the tree is still deferred.
func HasDeferred(content []Content) bool {
	for _, c := range content {
		switch n := c.(type) {
		case Text:
			if n.Deferred {
				return true
			}
		case *Elem:
			if HasDeferred(n.Body) {
				return true
			}
		case *Closure:
			return true
		}
	}
	return false
}
