package bot

import (
	"time"
)

// Scheduler converts a future timestamp into a deferred invocation.
// Scheduled work is purely in-memory: it does not survive a process
// restart.
type Scheduler interface {
	// Schedule runs fn at the given time and returns a cancel function.
	// Cancelling after the function has fired is a no-op.
	Schedule(at time.Time, fn func()) (cancel func())
}

// TimerScheduler defers execution with a process-local timer.
type TimerScheduler struct{}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (ts *TimerScheduler) Schedule(at time.Time, fn func()) func() {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, fn)
	return func() {
		timer.Stop()
	}
}
