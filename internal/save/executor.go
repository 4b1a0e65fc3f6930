// Package save performs the flush-to-storage step for a single document.
package save

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/logger"
)

// Result is the terminal state of one save attempt.
type Result string

const (
	// ResultSaved means the document was flushed and marked clean.
	ResultSaved Result = "saved"
	// ResultSkipped means no I/O was performed.
	ResultSkipped Result = "skipped"
)

// Outcome describes what a save attempt did. Evict signals the caller that
// the document vanished and should be dropped from the registry.
type Outcome struct {
	Result Result
	Evict  bool
}

// Executor flushes single documents to storage. All preconditions are
// checked here, not by callers: vanished documents are skipped and flagged
// for eviction, clean documents are skipped without I/O, and prompts are
// suppressed for the duration of the flush.
type Executor struct {
	suppressor WarningSuppressor
}

// NewExecutor creates an executor. A nil suppressor falls back to the no-op.
func NewExecutor(suppressor WarningSuppressor) *Executor {
	if suppressor == nil {
		suppressor = NopSuppressor{}
	}
	return &Executor{suppressor: suppressor}
}

// Save flushes doc if it is still open and modified.
// An I/O failure is returned as an error; the document keeps its modified
// flag and stays tracked, so the next sweep retries it.
func (e *Executor) Save(ctx context.Context, doc document.Document) (Outcome, error) {
	if doc == nil {
		return Outcome{Result: ResultSkipped}, fmt.Errorf("document is nil: %w", errdefs.ErrInvalidArgument)
	}

	if !doc.Exists() {
		logger.WithDocument("save", doc.ID()).Debug("document closed, evicting")
		return Outcome{Result: ResultSkipped, Evict: true}, nil
	}

	if !doc.Modified() {
		logger.WithDocument("save", doc.ID()).Trace("document clean, nothing to flush")
		return Outcome{Result: ResultSkipped}, nil
	}

	restore := e.suppressor.Silence()
	defer restore()

	if err := doc.Flush(ctx); err != nil {
		return Outcome{Result: ResultSkipped}, fmt.Errorf("flush %s: %w", doc.ID(), err)
	}

	doc.ClearModified()
	logger.WithDocument("save", doc.ID()).Infof("saved %s", doc.Path())
	return Outcome{Result: ResultSaved}, nil
}
