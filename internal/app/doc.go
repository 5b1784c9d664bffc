// Package app contains the core application logic. It wires the document
// loader, the compilation engine, the snapshot cache and the output
// renderers together, decoupled from any specific entrypoint like a CLI.
package app
