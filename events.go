package fiber

import "slices"

// Event is implemented by any type a fiber body can park on with
// [WaitFor]: [Signal], [State] and the internal waiter behind
// [Semaphore]. Anything embedding [Signal] (e.g. [State], [WaitGroup])
// implements Event for free.
type Event interface {
	addListener(f *Fiber)
	removeListener(f *Fiber)
}

// Signal is a zero-value-friendly broadcast event. Calling Notify
// resumes every fiber currently parked on it via [WaitFor].
//
// A Signal must not be shared by more than one [Scheduler]; like the
// rest of a scheduler's state, it is only ever touched from the
// scheduler's owner thread.
type Signal struct {
	listeners map[*Fiber]struct{}
}

func (s *Signal) addListener(f *Fiber) {
	if s.listeners == nil {
		s.listeners = make(map[*Fiber]struct{})
	}
	s.listeners[f] = struct{}{}
}

func (s *Signal) removeListener(f *Fiber) {
	delete(s.listeners, f)
}

// Notify resumes every fiber currently watching s. A fiber that still
// needs to wait after resuming must call [WaitFor] again; Notify clears
// every listener it wakes, it does not leave them subscribed.
func (s *Signal) Notify() {
	for f := range s.listeners {
		delete(s.listeners, f)
		f.clearWatches()
		if sch := f.scheduler; sch != nil {
			sch.wake(f)
		}
	}
}

// State is a [Signal] that also carries a value. Set and Update notify
// every fiber parked on the State after applying the change.
type State[T any] struct {
	Signal
	value T
}

// NewState returns a [State] with its initial value set to v.
func NewState[T any](v T) *State[T] {
	return &State[T]{value: v}
}

// Get retrieves the current value.
func (s *State[T]) Get() T { return s.value }

// Set updates the value and notifies every fiber watching s.
func (s *State[T]) Set(v T) {
	s.value = v
	s.Notify()
}

// Update sets the value to f(Get()) and notifies every fiber watching s.
func (s *State[T]) Update(f func(T) T) {
	s.Set(f(s.value))
}

// WaitGroup is a [Signal] with a counter, notifying watchers when the
// counter reaches zero. Unlike [sync.WaitGroup], it is not safe for
// concurrent use: it is scheduler state, touched only from fiber bodies
// on the owner thread.
type WaitGroup struct {
	Signal
	n int
}

// Add adds delta, which may be negative, to the counter. If the counter
// becomes zero, Add notifies every fiber watching wg. Add panics if the
// counter would go negative.
func (wg *WaitGroup) Add(delta int) {
	wg.n += delta
	if wg.n < 0 {
		panic("fiber: WaitGroup: negative counter")
	}
	if wg.n == 0 && delta != 0 {
		wg.Notify()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() { wg.Add(-1) }

// Wait returns an [Instruction] that parks the calling fiber until the
// counter reaches zero, for use as the final instruction of a thunk
// body: a thunk checks wg's counter on every resumption and returns
// either Wait() again or a terminal instruction once it is zero.
func (wg *WaitGroup) Wait() Instruction {
	if wg.n == 0 {
		return Stop()
	}
	return WaitFor(wg)
}

// Semaphore bounds concurrent access, across fibers sharing one
// scheduler, to a resource with an integer-weighted capacity.
type Semaphore struct {
	size, cur int64
	waiters   []*semaWaiter
}

// NewSemaphore returns a [Semaphore] with the given maximum combined
// weight.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{size: n}
}

type semaWaiter struct {
	Signal
	s *Semaphore
	n int64
}

// TryAcquire attempts to acquire a weight of n without waiting,
// reporting whether it succeeded. It never queues the caller.
func (s *Semaphore) TryAcquire(n int64) bool {
	if n < 0 {
		panic("fiber: Semaphore: negative weight")
	}
	if len(s.waiters) != 0 || s.size-s.cur < n {
		return false
	}
	s.cur += n
	return true
}

// Acquire returns a function that yields the [Instruction] parking f
// until a weight of n is acquired. A thunk body calls Acquire once,
// keeps the returned function, and calls it on every resumption,
// returning its result, until it returns a terminal instruction; each
// call to Acquire itself starts a fresh request.
//
// The returned function must be called from f's own body; the
// Instruction it returns is only meaningful as that body's yielded
// value, since the call both registers the waiter (on first need) and
// decides whether the fiber should still wait. f is used to register a
// [Fiber.Cleanup] that deregisters
// the waiter if f is canceled while parked, so a canceled fiber's
// weight request never lingers in the queue for [Semaphore.Release] to
// grant to a fiber that is no longer there to claim it.
func (s *Semaphore) Acquire(f *Fiber, n int64) func() Instruction {
	if n < 0 {
		panic("fiber: Semaphore: negative weight")
	}
	var w *semaWaiter
	return func() Instruction {
		if w != nil && w.n == 0 {
			return Stop()
		}
		if s.size-s.cur >= n && len(s.waiters) == 0 {
			s.cur += n
			return Stop()
		}
		if w == nil {
			w = &semaWaiter{s: s, n: n}
			s.waiters = append(s.waiters, w)
			f.Cleanup(func() { s.removeWaiter(w) })
		}
		return WaitFor(w)
	}
}

// removeWaiter deletes w from s.waiters if it is still queued; a no-op
// once w has already been granted and removed by [Semaphore.Release].
func (s *Semaphore) removeWaiter(w *semaWaiter) {
	for i, x := range s.waiters {
		if x == w {
			s.waiters = slices.Delete(s.waiters, i, i+1)
			return
		}
	}
}

// Release releases a weight of n back to the semaphore and wakes
// waiters, in FIFO order, whose requested weight now fits.
func (s *Semaphore) Release(n int64) {
	if n < 0 {
		panic("fiber: Semaphore: negative weight")
	}
	s.cur -= n
	if s.cur < 0 {
		panic("fiber: Semaphore: released more than held")
	}
	i := 0
	for ; i < len(s.waiters); i++ {
		w := s.waiters[i]
		if s.size-s.cur < w.n {
			break
		}
		s.cur += w.n
		w.n = 0
		w.Notify()
	}
	s.waiters = slices.Delete(s.waiters, 0, i)
}
