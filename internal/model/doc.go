// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the in-memory representation of what one compilation
// pass produces: located elements and the styled content tree.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - Element: An immutable record of one located construct (a heading, a
//     figure, a counter update, a context block). It carries its kind, its
//     field values, its Location and, once laid out, its physical positions.
//
//   - Content: The styled content tree handed from evaluation to layout. It is
//     made of Text runs, Elem nodes wrapping an Element and its visible body,
//     PageBreak markers and Closure nodes that stand for context blocks whose
//     content can only be produced inside a context frame.
//
//   - Position: A physical position (page and character cell) attached to an
//     element by layout.
//
// Why a separate model package?
//
// Evaluation, layout and introspection all exchange these values. Keeping them
// in a leaf package lets each stage depend on the data without depending on
// the stage that produced it.
package model
