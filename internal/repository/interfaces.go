package repository

import "context"

// Saver persists a Roster.
// Small interface used by background jobs like the roster persistence loop.
type Saver interface {
	Save(ctx context.Context, roster *Roster) error
}

// Repository abstracts persistence and watching of the roster file.
// RosterRepository implements this interface.
type Repository interface {
	Saver
	Load(ctx context.Context) (*Roster, error)
	StartWatcher(ctx context.Context, store RosterStore) error
}

// RosterStore is the registry surface the persistence loop and file watcher
// need: dirty tracking for membership changes plus roster import/export.
type RosterStore interface {
	GetLastUpdate() int64
	SetLastUpdate(ts int64)
	IsDirty() bool
	ClearDirty()
	Roster() (Roster, error)
	Replace(roster Roster) error
}
