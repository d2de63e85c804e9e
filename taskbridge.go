package fiber

// FiberTaskScheduler binds task-bridge operations to exactly one
// [Scheduler]. It is the "task scheduler" a [YieldableTask] must be
// started on, and is also the collaborator foreign, non-yieldable work
// runs through inline.
type FiberTaskScheduler struct {
	scheduler *Scheduler
}

// NewFiberTaskScheduler returns a [FiberTaskScheduler] bound to s.
func NewFiberTaskScheduler(s *Scheduler) *FiberTaskScheduler {
	return &FiberTaskScheduler{scheduler: s}
}

// Scheduler returns the bound [Scheduler].
func (fts *FiberTaskScheduler) Scheduler() *Scheduler { return fts.scheduler }

// Submit runs action inline on whichever goroutine calls Submit,
// without going through the fiber state machine. Per the package's task
// bridge design, a plain action never needs to yield, so there is
// nothing for a fiber to buy it; inlining is always legal here, unlike
// for a [YieldableTask], which must reach the scheduler's owner thread
// through a real fiber step to be able to yield at all.
func (fts *FiberTaskScheduler) Submit(action func()) {
	action()
}

// YieldableTask wraps a fiber in a task-completion-source shape so
// foreign code can await its completion through Go's usual
// done-channel idiom instead of polling [Fiber.Status].
type YieldableTask struct {
	fiber *Fiber
	done  chan struct{}
}

// NewYieldableTask creates a [YieldableTask] from body (accepted shapes
// per [Factory.Start]) and token, without scheduling it. Call
// [YieldableTask.Start] to bind it to a [FiberTaskScheduler] and queue
// it.
func NewYieldableTask(body any, token CancellationToken) (*YieldableTask, error) {
	ff := Factory{Token: token}
	f, err := ff.build(body)
	if err != nil {
		return nil, err
	}

	t := &YieldableTask{fiber: f, done: make(chan struct{})}
	f.subscribe(func() { close(t.done) })
	return t, nil
}

// Start queues t's fiber on fts. Start fails with [ErrInvalidState] if
// t was already started on a different [FiberTaskScheduler]: a fiber's
// scheduler binding, once set, is immutable, and step-sequence bodies
// can only run on the owner thread they were first bound to.
func (t *YieldableTask) Start(fts *FiberTaskScheduler) error {
	if sch := t.fiber.scheduler; sch != nil && sch != fts.scheduler {
		return ErrInvalidState
	}
	return fts.scheduler.Queue(t.fiber)
}

// Fiber returns the underlying [Fiber], for callers that need direct
// access to Antecedent, SetProperty, or [Fiber.ContinueWith].
func (t *YieldableTask) Fiber() *Fiber { return t.fiber }

// Done returns a channel closed once the task's fiber reaches a
// terminal status, mirroring the <-chan struct{} shape Go code
// conventionally awaits on.
func (t *YieldableTask) Done() <-chan struct{} { return t.done }

// Status returns the underlying fiber's current lifecycle status.
func (t *YieldableTask) Status() Status { return t.fiber.Status() }

// Result returns the fiber's result and captured error, valid once
// Status is a terminal value.
func (t *YieldableTask) Result() (any, error) { return t.fiber.Result(), t.fiber.Err() }

// Cancel requests cooperative cancellation of the underlying fiber; see
// [Fiber.Cancel] for the mechanics.
func (t *YieldableTask) Cancel() {
	t.fiber.Cancel()
}
