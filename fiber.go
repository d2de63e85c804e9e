package fiber

import (
	"iter"
	"sync"
	"sync/atomic"
)

// A Fiber is the atomic unit of cooperative execution: code that runs
// until it explicitly yields, similar to a goroutine but cooperative
// and stackless.
//
// A Fiber is created through a [Factory] and is driven one step at a
// time by a [Scheduler]. Its body is exactly one of three shapes: a
// lazy step sequence, a thunk returning an [Instruction], or a plain
// action; see the Factory constructors for how each is built.
//
// Fiber values are always heap-allocated behind a pointer; a *Fiber
// must not be copied.
type Fiber struct {
	id        uint64
	scheduler *Scheduler
	status    statusWord
	token     CancellationToken

	canceled atomic.Bool

	kind       bodyKind
	seq        iter.Seq[any]
	thunk      func() Instruction
	action     func(state any)
	actionArg  any

	primaryNext    func() (any, bool)
	primaryStop    func()
	primaryStarted bool
	nested         []pulledSeq

	antecedent *Fiber
	result     any
	err        error

	pendingResult    any
	hasPendingResult bool

	mu            sync.Mutex
	continuations []*continuationLink
	wakers        []func()

	cleanups []func()
	watches  []Event

	props map[string]any
}

var fiberIDs atomic.Uint64

type bodyKind uint8

const (
	bodySequence bodyKind = iota
	bodyThunk
	bodyAction
)

type pulledSeq struct {
	next func() (any, bool)
	stop func()
}

func newFiber(s *Scheduler, token CancellationToken) *Fiber {
	f := &Fiber{
		id:        fiberIDs.Add(1),
		scheduler: s,
		token:     token,
	}
	f.status.store(Created)
	return f
}

// ID returns the fiber's monotonic identity, minted once at creation
// and never reused.
func (f *Fiber) ID() uint64 { return f.id }

// Scheduler returns the [Scheduler] this fiber is bound to. The
// binding is set once, at the first successful transition out of
// Created/WaitingForActivation, and is immutable thereafter. Before
// that, for a continuation fiber not yet activated, Scheduler returns
// the scheduler it will be bound to when activated.
func (f *Fiber) Scheduler() *Scheduler { return f.scheduler }

// Status returns the fiber's current lifecycle status.
func (f *Fiber) Status() Status { return f.status.load() }

// Token returns the cancellation token captured at construction.
func (f *Fiber) Token() CancellationToken { return f.token }

// Antecedent returns the fiber this one continues from, or nil if f
// was not created by [Fiber.ContinueWith]. The antecedent reference
// exists only to let a continuation's body inspect the prior result;
// it is not an ownership link and does not keep the antecedent fiber
// from being garbage collected once both are done with it.
func (f *Fiber) Antecedent() *Fiber { return f.antecedent }

// Result returns the fiber's result, valid once Status is
// RanToCompletion.
func (f *Fiber) Result() any { return f.result }

// Err returns the fiber's captured error, valid once Status is
// Canceled or Faulted. It is nil otherwise.
func (f *Fiber) Err() error { return f.err }

// SetProperty stores an opaque value in the fiber's per-fiber property
// map under key, for use by host adapters associating auxiliary
// handles (see [HostAdapter]). SetProperty must only be called on the
// scheduler's dispatch goroutine.
func (f *Fiber) SetProperty(key string, value any) {
	if f.props == nil {
		f.props = make(map[string]any)
	}
	f.props[key] = value
}

// Property retrieves a value previously stored with SetProperty.
func (f *Fiber) Property(key string) (any, bool) {
	v, ok := f.props[key]
	return v, ok
}

// Cleanup registers a function to run exactly once, when f resumes
// (i.e. completes its current parked wait and is about to execute a
// fresh step) or ends. [Semaphore.Acquire] uses Cleanup to deregister a
// waiter if the fiber that requested it is canceled while parked.
func (f *Fiber) Cleanup(c func()) {
	f.cleanups = append(f.cleanups, c)
}

// clearWatches removes f as a listener from every [Event] it registered
// with via [WaitFor] on its previous park, mirroring the way Cleanup is
// drained: a fiber that resumes and still needs to wait must re-issue
// WaitFor with freshly evaluated conditions.
func (f *Fiber) clearWatches() {
	watches := f.watches
	f.watches = nil
	for _, e := range watches {
		e.removeListener(f)
	}
}

func (f *Fiber) runCleanups() {
	cleanups := f.cleanups
	f.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Cancel requests cooperative cancellation of f directly, independent
// of whatever [CancellationToken] f was created with: it is safe to
// call even on a fiber built with the neutral token, and is itself a
// second, fiber-scoped cancellation signal that [Fiber.step] checks
// alongside the token.
//
// Canceling a fiber not yet started transitions it straight to
// Canceled before any body code runs. Canceling a running fiber takes
// effect at its next step. A fiber parked on [WaitFor] is removed from
// the events it watches and requeued, so that next step comes on the
// scheduler's next update and runs the fiber's cleanups; a fiber parked
// on [YieldUntilComplete] is not requeued and has no next step until
// its target completes. Canceling an already-terminated fiber is a
// silent no-op; Cancel is idempotent.
func (f *Fiber) Cancel() {
	f.canceled.Store(true)
	if f.status.casAny(Canceled, Created, WaitingForActivation) {
		f.clearWatches()
		f.finishTerminal(Canceled, nil, nil)
		return
	}
	if len(f.watches) != 0 && f.scheduler != nil {
		f.clearWatches()
		f.scheduler.wake(f)
	}
}

// finishTerminal performs the one-time terminal transition side
// effects: draining continuations and firing completion wakers. It is
// safe to call from any goroutine (used both by step()'s own terminal
// transitions and by direct resolution paths like cancel-before-start
// and continuations that their options filter out).
func (f *Fiber) finishTerminal(status Status, result any, err error) {
	f.result = result
	f.err = err
	f.status.store(status)

	f.mu.Lock()
	wakers := f.wakers
	f.wakers = nil
	continuations := f.continuations
	f.continuations = nil
	f.mu.Unlock()

	for _, w := range wakers {
		w()
	}
	for _, c := range continuations {
		c.activate(f)
	}
}

// subscribe registers fn to run exactly once when f reaches a terminal
// status. If f is already terminal, fn runs (synchronously, by the
// caller) immediately instead of being queued.
func (f *Fiber) subscribe(fn func()) {
	f.mu.Lock()
	if f.status.load().IsCompleted() {
		f.mu.Unlock()
		fn()
		return
	}
	f.wakers = append(f.wakers, fn)
	f.mu.Unlock()
}
