package fiber

// SynchronizationContext lets foreign goroutines post callbacks back
// onto a [Scheduler]'s owner thread, the same role .NET's
// SynchronizationContext or a GUI toolkit's "run on UI thread" helper
// plays: code that must not run concurrently with fiber bodies gets a
// documented way back onto the one thread that is allowed to touch
// scheduler and fiber state.
type SynchronizationContext struct {
	scheduler *Scheduler
}

// NewSynchronizationContext returns a [SynchronizationContext] bound to
// s.
func NewSynchronizationContext(s *Scheduler) *SynchronizationContext {
	return &SynchronizationContext{scheduler: s}
}

// Post enqueues a fiber that runs callback(state) on the owner thread
// and returns immediately, without waiting for callback to run.
func (sc *SynchronizationContext) Post(callback func(state any), state any) error {
	ff := Factory{Scheduler: sc.scheduler}
	f := ff.FromActionWithState(callback, state)
	return sc.scheduler.Queue(f)
}

// Send invokes callback(state) inline if the caller is already on the
// owner thread (detected via [Scheduler.onOwnerThread]); otherwise it
// posts and blocks on a one-shot completion signal until callback has
// run.
//
// Callers must not Send against a scheduler whose lifetime they do not
// own: scheduler teardown ([Scheduler.Dispose]) signals no explicit
// completion to a pending Send, so a Send racing a Dispose can block
// forever.
func (sc *SynchronizationContext) Send(callback func(state any), state any) {
	if sc.scheduler.onOwnerThread() {
		callback(state)
		return
	}

	done := make(chan struct{})
	ff := Factory{Scheduler: sc.scheduler}
	_, _ = ff.Start(func() {
		callback(state)
		close(done)
	})
	<-done
}
