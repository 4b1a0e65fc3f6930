package sweeper

import "time"

// Timer is the subset of *time.Timer the sweeper needs.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock creates timers. Tests swap in a virtual clock so idle-window
// behavior is exercised without wall-clock sleeps.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
