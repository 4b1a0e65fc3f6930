package document

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/containerd/errdefs"
	"github.com/spf13/afero"

	"github.com/bassista/docsweep/internal/logger"
)

// File is a Document whose content lives in memory and is flushed to a path
// on an afero filesystem. The modified and closed flags are atomics so the
// sweep goroutine can observe them without taking the content lock.
type File struct {
	id   string
	path string
	fs   afero.Fs

	mu      sync.RWMutex
	content []byte

	modified   atomic.Bool
	closed     atomic.Bool
	gen        atomic.Int64 // bumped on every content change
	flushedGen atomic.Int64 // gen captured by the last successful flush
}

// NewFile creates a document backed by path on fs. An empty id defaults to
// the path. If the backing file already exists its content is preloaded, so
// an open without edits flushes nothing new.
func NewFile(id, path string, fs afero.Fs) *File {
	if id == "" {
		id = path
	}
	f := &File{id: id, path: path, fs: fs}
	if path != "" && fs != nil {
		if data, err := afero.ReadFile(fs, path); err == nil {
			f.content = data
		}
	}
	return f
}

// NewScratch creates a document with no backing path.
// Scratch documents are never accepted by the registry.
func NewScratch(id string) *File {
	return &File{id: id}
}

func (f *File) ID() string   { return f.id }
func (f *File) Path() string { return f.path }

// Modified reports whether the document has unsaved changes.
func (f *File) Modified() bool {
	return f.modified.Load()
}

// ClearModified marks the document clean, unless the content changed again
// after the last successful flush. An edit landing between a flush and this
// call keeps the modified flag set so the next sweep picks it up.
func (f *File) ClearModified() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen.Load() == f.flushedGen.Load() {
		f.modified.Store(false)
	}
}

// Exists reports whether the document is still open.
func (f *File) Exists() bool {
	return !f.closed.Load()
}

// Close marks the document as no longer open. A closed document is evicted
// lazily by the next sweep rather than eagerly.
func (f *File) Close() {
	f.closed.Store(true)
}

// SetContent replaces the document content and marks it modified.
func (f *File) SetContent(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = append([]byte(nil), data...)
	f.gen.Add(1)
	f.modified.Store(true)
}

// Content returns a copy of the current content.
func (f *File) Content() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]byte(nil), f.content...)
}

// Flush writes the content atomically to the backing path: temp file in the
// same directory, sync, then rename over the target.
func (f *File) Flush(ctx context.Context) error {
	if f.path == "" {
		return fmt.Errorf("document %s has no backing path: %w", f.id, errdefs.ErrInvalidArgument)
	}
	if f.fs == nil {
		return fmt.Errorf("document %s has no filesystem: %w", f.id, errdefs.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.RLock()
	payload := append([]byte(nil), f.content...)
	gen := f.gen.Load()
	f.mu.RUnlock()

	dir := filepath.Dir(f.path)
	base := filepath.Base(f.path)
	if dir == "" {
		dir = "."
	}

	tmpFile, err := afero.TempFile(f.fs, dir, base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	// The temp name is captured before the rename: afero's MemMapFs updates
	// the handle's Name() on rename, so removing tmpFile.Name() afterwards
	// would delete the freshly written target.
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		tmpFile.Close()
		if !committed {
			f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := f.fs.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	committed = true
	f.flushedGen.Store(gen)

	logger.WithDocument("doc", f.id).Debugf("flushed %d bytes to %s", len(payload), f.path)
	return nil
}
