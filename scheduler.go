package fiber

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a [Scheduler].
type Options struct {
	// AllowInlining, when true, lets [Scheduler.Queue] step a newly
	// queued fiber immediately on the calling goroutine instead of
	// waiting for the next Update, as long as the current inline
	// recursion depth is below MaxInlineDepth. This is the same
	// mechanism YieldToFiber uses to hand control directly to another
	// fiber within one dispatch step.
	AllowInlining bool

	// MaxInlineDepth bounds inline recursion (Queue-triggered or
	// YieldToFiber-triggered). A chain deeper than this falls back to
	// normal queuing, which prevents a cycle of mutually yielding
	// fibers from overflowing the goroutine stack. Zero means no
	// inlining regardless of AllowInlining.
	MaxInlineDepth int

	// OnFault, if set, is called whenever a fiber transitions to
	// Faulted, instead of the default "log once and swallow" behavior.
	OnFault func(f *Fiber, err error)

	// Logger is used by the default OnFault. The zero value uses the
	// global zerolog logger.
	Logger *zerolog.Logger

	// HostAdapter, if set, receives every Foreign instruction a fiber
	// bound to this scheduler yields, instead of the fallback behavior
	// of simply requeuing the fiber with the payload discarded.
	HostAdapter HostAdapter

	// UpdatesPerSecond bounds how often [Scheduler.Run]'s blocking loop
	// calls Update, by imposing a minimum interval between calls. Zero
	// (the default) means unthrottled: Run calls Update back-to-back
	// whenever there is ready work, and otherwise sleeps until the
	// earliest of a wake-up signal or the next sleep-queue deadline.
	UpdatesPerSecond float64
}

// A Scheduler drives a set of fibers cooperatively on whichever
// goroutine calls [Scheduler.Update] or [Scheduler.Run]. A Scheduler is
// not safe for concurrent driving from two goroutines at once, by
// design: cooperative scheduling only works because exactly one
// goroutine is ever inside a fiber's body at a time.
//
// Queue, however, is safe to call from any goroutine, so that
// foreign/async completions (timers, I/O callbacks, other goroutines)
// can hand work back to the scheduler's single dispatch goroutine.
type Scheduler struct {
	opts Options

	mu    sync.Mutex
	ready []*Fiber
	sleep priorityqueue[*sleepEntry]
	seq   uint64

	disposed  bool
	wakeCh    chan struct{}
	disposeCh chan struct{}

	now time.Time

	inlineDepth int
	owner       atomic.Int64
}

// onOwnerThread reports whether the calling goroutine is (or becomes,
// if none has claimed the role yet) s's owner goroutine. The first
// goroutine to call Update (directly or through Run), Send on a
// [SynchronizationContext] bound to s, or Queue while inlining is
// permitted claims ownership, since
// constructing a Scheduler value does not happen "on" any particular
// goroutine the way binding a real OS thread would.
func (s *Scheduler) onOwnerThread() bool {
	id := goroutineID()
	if cur := s.owner.Load(); cur != 0 {
		return cur == id
	}
	s.owner.CompareAndSwap(0, id)
	return s.owner.Load() == id
}

type sleepEntry struct {
	fiber  *Fiber
	wakeAt time.Time
	seq    uint64
}

func (e *sleepEntry) less(o *sleepEntry) bool {
	if e.wakeAt.Equal(o.wakeAt) {
		return e.seq < o.seq
	}
	return e.wakeAt.Before(o.wakeAt)
}

// NewScheduler returns a Scheduler ready to drive fibers. The zero
// value of Options is a legal, if inert (no inlining), configuration.
func NewScheduler(opts Options) *Scheduler {
	return &Scheduler{
		opts:      opts,
		wakeCh:    make(chan struct{}, 1),
		disposeCh: make(chan struct{}),
		now:       time.Now(),
	}
}

// Now returns the time of the scheduler's most recent Update call, or
// the scheduler's creation time if Update has not yet run. Fiber
// bodies should prefer this over time.Now when computing deadlines
// relative to the scheduler's own notion of "now", so that a paused
// or slow-ticking scheduler behaves consistently with its own clock.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Disposed reports whether Dispose has been called.
func (s *Scheduler) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose permanently stops the scheduler from accepting further work.
// Fibers already on the ready or sleep queue are drained and
// transitioned to Faulted with [ErrResourceDisposed]; Queue after
// Dispose returns ErrResourceDisposed instead of queuing. Dispose is
// idempotent.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	close(s.disposeCh)
	ready := s.ready
	s.ready = nil
	var sleeping []*Fiber
	for !s.sleep.Empty() {
		sleeping = append(sleeping, s.sleep.Pop().fiber)
	}
	s.mu.Unlock()

	for _, f := range ready {
		f.finish(Faulted, nil, ErrResourceDisposed)
	}
	for _, f := range sleeping {
		f.finish(Faulted, nil, ErrResourceDisposed)
	}
}

// Queue admits f onto the ready queue (or steps it inline immediately,
// subject to Options.AllowInlining and MaxInlineDepth). f must be
// Created or WaitingForActivation; for any other status Queue leaves f
// untouched and returns [ErrInvalidState].
func (s *Scheduler) Queue(f *Fiber) error {
	if s.Disposed() {
		return ErrResourceDisposed
	}
	if !f.status.casAny(WaitingToRun, Created, WaitingForActivation) {
		return ErrInvalidState
	}
	f.scheduler = s

	if s.opts.AllowInlining && s.inlineDepth < s.opts.MaxInlineDepth && s.onOwnerThread() {
		s.inlineDepth++
		s.runOneInline(f)
		s.inlineDepth--
		return nil
	}

	s.mu.Lock()
	s.ready = append(s.ready, f)
	s.mu.Unlock()
	s.notify()
	return nil
}

// wake moves f directly onto the ready queue regardless of its current
// queue membership; used by Event listeners, YieldUntilComplete wakers
// and [Fiber.Cancel], all of which only ever wake a fiber that is parked
// off every queue.
func (s *Scheduler) wake(f *Fiber) {
	s.mu.Lock()
	s.ready = append(s.ready, f)
	s.mu.Unlock()
	s.notify()
}

func (s *Scheduler) notify() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// runOneInline steps f and dispatches its resulting instruction without
// going through the ready queue, used both for Queue-triggered inlining
// and YieldToFiber cascades.
func (s *Scheduler) runOneInline(f *Fiber) {
	ins := f.step()
	s.dispatch(f, ins)
}

// dispatch interprets the instruction a fiber's step produced and takes
// the corresponding scheduler action. It is the single place that
// understands every instrKind.
func (s *Scheduler) dispatch(f *Fiber, ins Instruction) {
	if f.status.load().IsCompleted() {
		return
	}

	switch ins.kind {
	case instrYieldToAny:
		s.mu.Lock()
		s.ready = append(s.ready, f)
		s.mu.Unlock()

	case instrYieldForDuration:
		s.mu.Lock()
		s.seq++
		s.sleep.Push(&sleepEntry{fiber: f, wakeAt: s.now.Add(ins.duration), seq: s.seq})
		s.mu.Unlock()

	case instrYieldUntilComplete:
		s.dispatchYieldUntilComplete(f, ins.target)

	case instrYieldToFiber:
		s.dispatchYieldToFiber(f, ins.target)

	case instrYieldUntilEvent:
		s.dispatchYieldUntilEvent(f, ins.events)

	case instrForeign:
		if s.opts.HostAdapter != nil {
			s.opts.HostAdapter.PushNativeYield(f, ins.value)
			return
		}
		// No HostAdapter registered: fall back to treating Foreign like
		// YieldToAny, since there is nothing else the core can do with
		// an opaque payload it was never told how to interpret.
		s.mu.Lock()
		s.ready = append(s.ready, f)
		s.mu.Unlock()

	default:
		// instrStop/instrResultSet are fully handled inside step()
		// before dispatch is ever reached.
	}
}

func (s *Scheduler) dispatchYieldUntilComplete(f, target *Fiber) {
	if target.scheduler != s {
		f.finish(Faulted, nil, ErrInvalidState)
		return
	}
	target.subscribe(func() { s.wake(f) })
}

// dispatchYieldUntilEvent parks f off every queue and registers it as a
// listener on each of events; it is re-enqueued, via [Scheduler.wake],
// the instant any one of them notifies. f.watches remembers the set so
// that the next call to [Fiber.step] can deregister it from the rest
// before deciding whether it needs to wait again.
func (s *Scheduler) dispatchYieldUntilEvent(f *Fiber, events []Event) {
	if len(events) == 0 {
		s.mu.Lock()
		s.ready = append(s.ready, f)
		s.mu.Unlock()
		return
	}
	f.watches = events
	for _, e := range events {
		e.addListener(f)
	}
}

func (s *Scheduler) dispatchYieldToFiber(f, target *Fiber) {
	if target.status.load().IsCompleted() || (target.scheduler != nil && target.scheduler != s) {
		f.finish(Faulted, nil, ErrInvalidState)
		return
	}

	s.mu.Lock()
	s.removeFromReadyLocked(target)
	s.mu.Unlock()

	target.scheduler = s
	target.status.casAny(WaitingToRun, Created, WaitingForActivation)

	if s.inlineDepth < s.opts.MaxInlineDepth {
		s.mu.Lock()
		s.ready = append(s.ready, f)
		s.mu.Unlock()
		s.inlineDepth++
		s.runOneInline(target)
		s.inlineDepth--
		return
	}

	// Past the inline cap, target is queued ahead of f, so it still runs
	// before f does.
	s.mu.Lock()
	s.ready = append(s.ready, target, f)
	s.mu.Unlock()
}

func (s *Scheduler) removeFromReadyLocked(target *Fiber) {
	for i, rf := range s.ready {
		if rf == target {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// Update runs exactly one dispatch cycle: it first promotes any sleep
// queue entries whose wake time is at or before now into the ready
// queue, then steps every fiber that was on the ready queue at the
// start of this call exactly once.
//
// The "exactly once per fiber per Update" guarantee is implemented by
// appending a sentinel entry to the ready queue before stepping
// anything and stopping when it is popped; a fiber that requeues itself
// (directly, or via a plain YieldToAny) lands after the sentinel and is
// not re-visited until the next Update call, even when a YieldToFiber
// has removed another entry from ahead of it.
func (s *Scheduler) Update(now time.Time) {
	s.onOwnerThread()

	sentinel := new(Fiber)
	s.mu.Lock()
	s.now = now
	for !s.sleep.Empty() && !s.sleep.Peek().wakeAt.After(now) {
		entry := s.sleep.Pop()
		s.ready = append(s.ready, entry.fiber)
	}
	s.ready = append(s.ready, sentinel)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if len(s.ready) == 0 {
			s.mu.Unlock()
			return
		}
		f := s.ready[0]
		s.ready = s.ready[1:]
		s.mu.Unlock()
		if f == sentinel {
			return
		}

		ins := f.step()
		s.dispatch(f, ins)
	}
}

// Run blocks, calling Update for as long as there is work, until root
// (if non-nil) reaches a terminal status, token is canceled, or the
// scheduler is disposed. It is the batteries-included way to drive a
// scheduler; embedding hosts that need to interleave their own event
// loop with the scheduler should call Queue and Update directly
// instead.
//
// A nil root runs the scheduler indefinitely on whatever fibers get
// queued, exiting only on cancellation or disposal — the shape a host
// wants when it is using Run as its entire program loop rather than to
// await one top-level fiber.
func (s *Scheduler) Run(root *Fiber, token CancellationToken) error {
	if root != nil {
		if err := s.Queue(root); err != nil {
			return err
		}
	}

	interval := s.tickInterval()
	var last time.Time

	for {
		if root != nil && root.Status().IsCompleted() {
			return root.Err()
		}
		if token.Canceled() {
			return ErrCanceled
		}
		if s.Disposed() {
			return ErrResourceDisposed
		}

		wait := interval
		if d := s.nextSleepDelay(); d >= 0 && d < wait {
			wait = d
		}
		s.mu.Lock()
		hasReady := len(s.ready) != 0
		s.mu.Unlock()
		if hasReady && s.opts.UpdatesPerSecond <= 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.wakeCh:
			timer.Stop()
		case <-timer.C:
		case <-token.Done():
			timer.Stop()
			return ErrCanceled
		case <-s.disposeCh:
			timer.Stop()
			return ErrResourceDisposed
		}

		if s.opts.UpdatesPerSecond > 0 {
			if d := interval - time.Since(last); d > 0 {
				time.Sleep(d)
			}
		}
		last = time.Now()
		s.Update(last)
	}
}

// tickInterval returns the minimum spacing Run enforces between Update
// calls. With Options.UpdatesPerSecond unset (unthrottled), Run still
// needs some upper bound on how long it can sleep with no ready work
// and no pending sleep-queue entry, so that a fiber queued from a
// foreign goroutine without a matching wake (there shouldn't be one,
// but defense in depth costs nothing here) is not stranded forever;
// a quarter-second idle ceiling is a reasonable, low-overhead choice.
func (s *Scheduler) tickInterval() time.Duration {
	if s.opts.UpdatesPerSecond > 0 {
		return time.Duration(float64(time.Second) / s.opts.UpdatesPerSecond)
	}
	return 250 * time.Millisecond
}

func (s *Scheduler) nextSleepDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sleep.Empty() {
		return -1
	}
	d := s.sleep.Peek().wakeAt.Sub(s.now)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) reportFault(f *Fiber, err error) {
	if s.opts.OnFault != nil {
		s.opts.OnFault(f, err)
		return
	}
	logger := log.Logger
	if s.opts.Logger != nil {
		logger = *s.opts.Logger
	}
	logger.Error().Uint64("fiber", f.id).Err(err).Msg("fiber faulted")
}
