package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/docsweep/internal/logger"
)

// RosterRepository handles disk persistence and watching of the roster file.
type RosterRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex
}

// NewRosterRepository creates a repository for the given JSON roster path.
func NewRosterRepository(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("roster file path is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	return &RosterRepository{path: path, dir: dir, base: base, validator: validator.New()}, nil
}

// Load reads the roster file, parses and validates it. A missing file is not
// an error: the sweeper starts with an empty roster on first run.
func (r *RosterRepository) Load(_ context.Context) (*Roster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("roster").Debugf("no roster file at %s, starting empty", r.path)
			roster := &Roster{}
			roster.ApplyDefaults()
			return roster, nil
		}
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer file.Close()

	var roster Roster
	if err := json.NewDecoder(file).Decode(&roster); err != nil {
		return nil, fmt.Errorf("decode roster file: %w", err)
	}

	roster.ApplyDefaults()

	if err := r.validator.Struct(&roster); err != nil {
		return nil, fmt.Errorf("validate roster file: %w", err)
	}

	return &roster, nil
}

// Save validates and writes the roster atomically: temp file in the same
// directory, sync, rename over the target.
func (r *RosterRepository) Save(ctx context.Context, roster *Roster) error {
	if roster == nil {
		return errors.New("roster is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.validator.Struct(roster); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.MarshalIndent(roster, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create roster dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
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

	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace roster file: %w", err)
	}

	return nil
}

// StartWatcher listens for changes to the roster file and reloads the
// registry after a debounce. The parent directory is watched (not the file)
// so atomic replace sequences are still observed. Cancel the context to stop
// the goroutine and close the watcher cleanly.
func (r *RosterRepository) StartWatcher(ctx context.Context, store RosterStore) error {
	if store == nil {
		return errors.New("roster store is required")
	}
	onChange := r.MakeWatcherCallback(store)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		// debounce coalesces bursty fsnotify events (write+chmod/rename)
		// into a single reload.
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
			}
			debounce = time.AfterFunc(200*time.Millisecond, onChange)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != r.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("roster").Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// MakeWatcherCallback returns a callback that reloads the registry from disk
// when the on-disk roster is newer and the in-memory membership is clean.
func (r *RosterRepository) MakeWatcherCallback(store RosterStore) func() {
	return func() {
		diskRoster, loadErr := r.Load(context.Background())
		if loadErr != nil {
			logger.WithComponent("roster").Errorf("watch reload failed: %v", loadErr)
			return
		}

		storeLastUpdate := store.GetLastUpdate()
		diskLastUpdate := diskRoster.Metadata.LastUpdate

		if diskLastUpdate < storeLastUpdate {
			logger.WithComponent("roster").Debugf("disk roster is older than registry (%d < %d), skipping reload", diskLastUpdate, storeLastUpdate)
			return
		}

		if store.IsDirty() {
			// Registry membership changed since the last flush; it will be
			// written to disk shortly anyway.
			logger.WithComponent("roster").Warn("disk roster is newer but registry is dirty, skipping reload")
			return
		}

		if diskLastUpdate == storeLastUpdate {
			snapshot, err := store.Roster()
			if err != nil {
				logger.WithComponent("roster").Errorf("reload error: failed to get roster snapshot: %v", err)
				return
			}
			if AreRostersEqual(&snapshot, diskRoster) {
				return
			}
		}

		if err := store.Replace(*diskRoster); err != nil {
			logger.WithComponent("roster").Errorf("reload error: %v", err)
			return
		}
		logger.WithComponent("roster").Info("registry reloaded from newer roster on disk")
	}
}
