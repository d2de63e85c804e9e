package fiber

import "time"

// WhenAll returns a fiber that completes once every fiber in fibers has
// reached a terminal status, with result true. If timeout is positive
// and elapses first, the supervisor faults with a [TimeoutError]. If
// token is signaled first, the supervisor ends Canceled. If any member
// ended Faulted or Canceled, the supervisor faults with an
// [AggregateError] once every member has terminated, rather than as
// soon as the first failure is observed — so a caller always sees every
// member's final status.
//
// WhenAll is implemented the same way [WhenAny] and [Delay] are: an
// ordinary fiber, with no privileged access to scheduler internals,
// that checks its conditions once per YieldToAny cycle.
func WhenAll(s *Scheduler, fibers []*Fiber, timeout time.Duration, token CancellationToken) *Fiber {
	start := s.Now()
	hasTimeout := timeout > 0

	ff := Factory{Scheduler: s, Token: token}
	f, _ := ff.Start(func() Instruction {
		token.ThrowIfCanceled()

		if hasTimeout && !s.Now().Before(start.Add(timeout)) {
			panic(&TimeoutError{Awaited: "WhenAll"})
		}

		for _, m := range fibers {
			if !m.Status().IsCompleted() {
				return YieldToAny()
			}
		}

		var errs []error
		for _, m := range fibers {
			switch m.Status() {
			case Faulted:
				errs = append(errs, m.Err())
			case Canceled:
				errs = append(errs, ErrCanceled)
			}
		}
		if len(errs) != 0 {
			panic(&AggregateError{Errors: errs})
		}

		return ResultSet(true)
	})
	return f
}

// WhenAny returns a fiber that completes, with the first member fiber
// to reach a terminal status as its result, once any fiber in fibers
// does so. An empty fibers completes immediately with a nil result. If
// timeout is positive and elapses before any member completes, the
// supervisor ends RanToCompletion with a nil result rather than
// treating timeout as a fault the way [WhenAll] does — WhenAny has no
// member errors to aggregate, so there is nothing a fault would add.
// If token is signaled first, the supervisor ends Canceled.
func WhenAny(s *Scheduler, fibers []*Fiber, timeout time.Duration, token CancellationToken) *Fiber {
	start := s.Now()
	hasTimeout := timeout > 0

	ff := Factory{Scheduler: s, Token: token}
	f, _ := ff.Start(func() Instruction {
		if len(fibers) == 0 {
			return ResultSet(nil)
		}

		token.ThrowIfCanceled()

		if hasTimeout && !s.Now().Before(start.Add(timeout)) {
			return ResultSet(nil)
		}

		for _, m := range fibers {
			if m.Status().IsCompleted() {
				return ResultSet(m)
			}
		}

		return YieldToAny()
	})
	return f
}

// Delay returns a fiber that ends RanToCompletion once d has elapsed
// against the scheduler's current-time marker, or Canceled if token is
// signaled first. Delay(0, ...) completes on the first step after
// creation, since the elapsed check (now-start >= 0) is already true.
func Delay(s *Scheduler, d time.Duration, token CancellationToken) *Fiber {
	start := s.Now()

	ff := Factory{Scheduler: s, Token: token}
	f, _ := ff.Start(func() Instruction {
		token.ThrowIfCanceled()

		if !s.Now().Before(start.Add(d)) {
			return Stop()
		}
		return YieldToAny()
	})
	return f
}
