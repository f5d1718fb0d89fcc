// Package blocking implements the polling coordinator that backs BLPOP,
// XREAD BLOCK, and WAIT: short-interval polling against an absolute
// deadline, never holding a data lock across the wait itself.
package blocking

import "time"

// PollInterval is the tick used while waiting for a condition to become
// true. 10ms is sufficient for BLPOP, XREAD BLOCK, and WAIT alike.
const PollInterval = 10 * time.Millisecond

// Coordinator has no shared mutable state of its own — callers own the
// resource being polled (a list key, a stream key, a replica registry) and
// pass an attempt closure. It exists as a named component so the blocking
// policy (tick interval, deadline handling, zero-timeout-is-forever) lives
// in one place rather than being copy-pasted into every blocking command
// handler.
type Coordinator struct{}

func New() *Coordinator {
	return &Coordinator{}
}

// Await polls attempt every PollInterval until it returns ok=true or the
// deadline elapses. hasDeadline=false means wait indefinitely (timeout 0).
// attempt is called synchronously on the calling goroutine; no lock may be
// held by the caller across this call, since each tick sleeps between
// attempts.
func Await[T any](c *Coordinator, hasDeadline bool, deadline time.Time, attempt func() (T, bool)) (T, bool) {
	if v, ok := attempt(); ok {
		return v, true
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if hasDeadline && !time.Now().Before(deadline) {
			var zero T
			return zero, false
		}

		remaining := time.Until(deadline)
		if hasDeadline && remaining < PollInterval {
			if remaining > 0 {
				time.Sleep(remaining)
			}
		} else {
			<-ticker.C
		}

		if v, ok := attempt(); ok {
			return v, true
		}
		if hasDeadline && !time.Now().Before(deadline) {
			var zero T
			return zero, false
		}
	}
}
