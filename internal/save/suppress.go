package save

import "sync/atomic"

// WarningSuppressor silences host confirmation prompts for the duration of a
// flush, so a save can never block on user input. Hosts without interactive
// prompts can use the no-op implementation.
type WarningSuppressor interface {
	// Silence suppresses prompts and returns a restore function.
	Silence() (restore func())
}

// NopSuppressor is a WarningSuppressor for hosts without prompts.
type NopSuppressor struct{}

func (NopSuppressor) Silence() func() { return func() {} }

// Toggles is a WarningSuppressor with two independently configurable
// switches, matching the two host warnings a save may trip: file-mode
// conversion prompts and file-lock prompts. Hosts consult the toggle state
// and the Silencing window to decide whether to show a prompt.
type Toggles struct {
	fileModePrompts atomic.Bool // suppress file-mode conversion prompts
	lockPrompts     atomic.Bool // suppress file-lock prompts
	silencing       atomic.Int32
}

// NewToggles creates a suppressor with both switches set as given.
func NewToggles(suppressFileMode, suppressLock bool) *Toggles {
	t := &Toggles{}
	t.fileModePrompts.Store(suppressFileMode)
	t.lockPrompts.Store(suppressLock)
	return t
}

// Silence opens a suppression window; the returned restore closes it.
// Windows may nest when saves overlap with manual flushes.
func (t *Toggles) Silence() func() {
	t.silencing.Add(1)
	return func() { t.silencing.Add(-1) }
}

// Silencing reports whether a flush is currently in a suppression window.
func (t *Toggles) Silencing() bool {
	return t.silencing.Load() > 0
}

// SetFileModePrompts toggles suppression of file-mode conversion prompts.
func (t *Toggles) SetFileModePrompts(suppress bool) {
	t.fileModePrompts.Store(suppress)
}

// FileModePrompts reports whether file-mode prompts are suppressed.
func (t *Toggles) FileModePrompts() bool {
	return t.fileModePrompts.Load()
}

// SetLockPrompts toggles suppression of file-lock prompts.
func (t *Toggles) SetLockPrompts(suppress bool) {
	t.lockPrompts.Store(suppress)
}

// LockPrompts reports whether file-lock prompts are suppressed.
func (t *Toggles) LockPrompts() bool {
	return t.lockPrompts.Load()
}
