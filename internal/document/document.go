// Package document defines the editable units tracked for auto-save and the
// registry that holds them.
package document

import "context"

// Document is one open, potentially file-backed editable unit.
// Modified and existence state must be safe to read from the sweep goroutine
// while the editing side mutates the document.
type Document interface {
	// ID returns the stable handle for this document.
	ID() string
	// Path returns the backing storage path, empty for scratch documents.
	Path() string
	// Modified reports whether the document changed since its last flush.
	Modified() bool
	// ClearModified marks the document clean after a successful flush.
	ClearModified()
	// Exists reports whether the document is still open.
	Exists() bool
	// Flush writes the current content to the backing path.
	Flush(ctx context.Context) error
}
