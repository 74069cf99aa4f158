// Package retry implements the exponential-backoff counter used by the
// reconnecting session.
package retry

import "time"

const maxDelay = 30 * time.Second

// Retry counts consecutive failed connect attempts and derives the sleep
// duration before the next one. It is not safe for concurrent use; the
// session owns exactly one and touches it only from its own goroutine.
type Retry struct {
	attempts uint64
}

// New returns a Retry starting at zero attempts.
func New() *Retry {
	return &Retry{}
}

// Attempts returns the current attempt count.
func (r *Retry) Attempts() uint64 {
	return r.attempts
}

// Increment records that a connect attempt is about to be scheduled.
func (r *Retry) Increment() {
	r.attempts++
}

// Reset zeroes the counter. The session calls it on every successful
// connect and on a forced reset of the connection; a Disconnected
// transition alone does not reset it.
func (r *Retry) Reset() {
	r.attempts = 0
}

// Delay returns min(2^attempts, 30s). After consecutive failed connect
// attempts (Increment called for each) the sequence is 2s, 4, 8, 16, 30,
// 30, …; with the counter at zero, as after a live connection drops, it is
// 1s. attempts >= 5 already saturates the cap (2^5s = 32s > 30s); attempts
// is clamped before shifting to avoid undefined behavior on pathologically
// long-lived sessions.
func (r *Retry) Delay() time.Duration {
	attempts := r.attempts
	if attempts >= 5 {
		return maxDelay
	}
	d := time.Duration(1<<attempts) * time.Second
	if d > maxDelay {
		return maxDelay
	}
	return d
}
