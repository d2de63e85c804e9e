package fiber

import "sync/atomic"

// Status is the lifecycle state of a [Fiber].
//
// Admission (Queue, Cancel before start) and the hand-off into and out
// of Running are performed with a compare-and-swap on the fiber's
// status word, so that a concurrent Start/Cancel/Queue race is resolved
// the same way no matter which goroutine observes it first. The
// terminal status itself is written with an atomic store.
type Status uint32

const (
	// Created is the status of a Fiber that has not yet been started.
	Created Status = iota
	// WaitingForActivation is the status of a continuation Fiber that
	// is waiting for its antecedent to reach a terminal status.
	WaitingForActivation
	// WaitingToRun is the status of a Fiber that has been queued but
	// has not yet had its first step run.
	WaitingToRun
	// Running is the status of a Fiber whose step is currently
	// executing.
	Running
	// RanToCompletion is a terminal status: the Fiber ended by Stop or
	// ResultSet without being canceled or faulted.
	RanToCompletion
	// Canceled is a terminal status: the Fiber observed its
	// cancellation token.
	Canceled
	// Faulted is a terminal status: the Fiber's body raised an error
	// that was not a matching cancellation.
	Faulted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Created:
		return "Created"
	case WaitingForActivation:
		return "WaitingForActivation"
	case WaitingToRun:
		return "WaitingToRun"
	case Running:
		return "Running"
	case RanToCompletion:
		return "RanToCompletion"
	case Canceled:
		return "Canceled"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// IsCompleted reports whether s is one of the three terminal statuses.
func (s Status) IsCompleted() bool {
	return s == RanToCompletion || s == Canceled || s == Faulted
}

type statusWord struct {
	v atomic.Uint32
}

func (w *statusWord) load() Status {
	return Status(w.v.Load())
}

func (w *statusWord) store(s Status) {
	w.v.Store(uint32(s))
}

func (w *statusWord) cas(from, to Status) bool {
	return w.v.CompareAndSwap(uint32(from), uint32(to))
}

// casAny attempts a transition into to from any of the given acceptable
// "from" statuses, retrying against the latest observed value until it
// either succeeds or none of the candidates match anymore.
func (w *statusWord) casAny(to Status, from ...Status) bool {
	for {
		cur := w.load()
		ok := false
		for _, f := range from {
			if cur == f {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if w.cas(cur, to) {
			return true
		}
	}
}
