package document

import (
	"fmt"
	"sort"
	"sync"

	"github.com/containerd/errdefs"

	"github.com/bassista/docsweep/internal/logger"
	"github.com/bassista/docsweep/internal/repository"
)

// Factory materializes a Document from a persisted roster entry.
type Factory func(id, path string) Document

// Registry keeps the set of tracked documents, keyed by document ID.
// It also tracks membership revisions (dirty flag + lastUpdate) so the
// roster persistence loop knows when the tracked set changed on disk.
type Registry struct {
	mu         sync.RWMutex
	docs       map[string]Document
	factory    Factory
	dirty      bool  // true if membership changed since last roster flush
	lastUpdate int64 // roster metadata.lastUpdate
}

// NewRegistry creates an empty registry. The factory is only required when
// the registry is repopulated from a persisted roster.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		docs:    map[string]Document{},
		factory: factory,
	}
}

// Add inserts a document. Adding an already-tracked ID is a no-op. Documents
// without a backing path are rejected: there is nowhere to flush them.
func (r *Registry) Add(doc Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil: %w", errdefs.ErrInvalidArgument)
	}
	if doc.Path() == "" {
		return fmt.Errorf("document %s has no backing path: %w", doc.ID(), errdefs.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID()]; ok {
		return nil
	}
	r.docs[doc.ID()] = doc
	r.dirty = true
	logger.WithDocument("registry", doc.ID()).Debugf("tracking %s", doc.Path())
	return nil
}

// Remove drops a document by ID. Removing an unknown ID is a no-op; the
// return value reports whether anything was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return false
	}
	delete(r.docs, id)
	r.dirty = true
	logger.WithDocument("registry", id).Debug("untracked")
	return true
}

// Get returns the tracked document with the given ID.
func (r *Registry) Get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

// Snapshot returns the current members in no particular order. The copy is
// taken under the lock but iterated without it, so slow save calls never
// block lifecycle events; removals during iteration affect the live set only.
func (r *Registry) Snapshot() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc)
	}
	return out
}

// Len returns the number of tracked documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// DirtyCount returns how many tracked documents have unsaved changes.
func (r *Registry) DirtyCount() int {
	n := 0
	for _, doc := range r.Snapshot() {
		if doc.Modified() {
			n++
		}
	}
	return n
}

// IsDirty returns true if membership changed since the last roster flush.
func (r *Registry) IsDirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// ClearDirty resets the membership dirty flag.
func (r *Registry) ClearDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// GetLastUpdate returns the registry's roster revision timestamp.
func (r *Registry) GetLastUpdate() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdate
}

// SetLastUpdate sets the registry's roster revision timestamp.
func (r *Registry) SetLastUpdate(ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUpdate = ts
}

// Roster exports the current membership for persistence. Entries are sorted
// by ID so the roster file is stable across flushes.
func (r *Registry) Roster() (repository.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]repository.Entry, 0, len(r.docs))
	for _, doc := range r.docs {
		entries = append(entries, repository.Entry{ID: doc.ID(), Path: doc.Path()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return repository.Roster{
		Metadata:  repository.Metadata{LastUpdate: r.lastUpdate},
		Documents: entries,
	}, nil
}

// Replace swaps the tracked set with the persisted roster, materializing
// each entry through the factory. The registry comes out clean.
func (r *Registry) Replace(roster repository.Roster) error {
	if r.factory == nil {
		return fmt.Errorf("registry has no document factory: %w", errdefs.ErrFailedPrecondition)
	}

	docs := map[string]Document{}
	for _, e := range roster.Documents {
		if e.Path == "" {
			continue
		}
		doc := r.factory(e.ID, e.Path)
		docs[doc.ID()] = doc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = docs
	r.lastUpdate = roster.Metadata.LastUpdate
	r.dirty = false
	return nil
}
