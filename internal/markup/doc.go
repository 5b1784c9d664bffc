// Package markup loads HCL documents and evaluates them into the styled
// content tree, once per compilation pass.
//
// # Document Structure
//
// A document is one `.hcl` file or a directory of them, read in lexical
// order. Root-only blocks configure the page (`page`) and declare states
// (`state`). Every other block is content: paragraphs, headings, figures,
// metadata, references, an outline, page breaks, style rules (`set`),
// counter and state updates, loops (`repeat`) and `context` blocks.
//
// # Locations
//
// Every locatable block receives a Location from its provenance path: the
// file index, then for each enclosing block its type and its index among
// the siblings of the same type, plus the iteration of every enclosing
// `repeat`. The path does not depend on evaluation order, so the same block
// receives the same Location on every pass.
//
// # Contextual Evaluation
//
// Blocks that need introspection do not evaluate eagerly. A `context` block
// becomes a model.Closure that enters a frame.Frame at its location when it
// is resolved; numbered headings, figures, references and the outline do
// the same for their own display. Contextual functions used anywhere else
// are rejected when the document is loaded.
package markup
