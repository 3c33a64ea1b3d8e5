package interfaces

import "time"

// -----------------------------------------------------------------------------
// IScheduler abstracts delayed execution so reconnect logic is testable
// without wall-clock waits.
// -----------------------------------------------------------------------------

type ITimer interface {
	// Stop cancels the pending call; reports whether it was still pending.
	Stop() bool
}

type IScheduler interface {
	// AfterFunc runs fn on its own goroutine after d elapses.
	AfterFunc(d time.Duration, fn func()) ITimer
}
