package internal

import "time"

const backoffMinWait = time.Microsecond

// NewBackoff returns a Backoff starting at the minimum wait and capping
// growth at maxWait. Used by the UDP transport's read loop to avoid
// busy-spinning on transient ReadFrom errors without adding a fixed sleep
// to the common, error-free path.
func NewBackoff(maxWait time.Duration) Backoff {
	return Backoff{
		wait:      uint32(backoffMinWait),
		maxWait:   uint32(maxWait),
		startWait: uint32(backoffMinWait),
	}
}

// A Backoff with a non-zero maxWait is ready for use.
type Backoff struct {
	// wait defines the amount of time that Miss will wait on next call.
	wait uint32
	// maxWait is the largest allowable value for wait.
	maxWait uint32
	// startWait is the wait value Hit resets to.
	startWait uint32
}

// Hit resets wait back to its starting value after a successful read.
func (eb *Backoff) Hit() {
	eb.wait = eb.startWait
}

// Miss sleeps for the current wait and doubles it, capped at maxWait.
func (eb *Backoff) Miss() {
	time.Sleep(time.Duration(eb.wait))
	eb.wait *= 2
	if eb.wait > eb.maxWait {
		eb.wait = eb.maxWait
	}
}
