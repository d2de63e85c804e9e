// Package fiber is a cooperative fiber scheduler and task runtime.
//
// Many logical units of work (fibers) share a single goroutine by
// explicitly yielding control, rather than each getting its own
// goroutine. A [Fiber]'s body is one of three shapes: a lazy step
// sequence built from Go's range-over-func iterators, a thunk that
// returns an [Instruction] once per resumption, or a plain action that
// runs once to completion. Whichever shape it is, every resumption
// produces at most one [Instruction] telling the owning [Scheduler]
// what to do next: requeue, sleep for a duration, wait for another
// fiber to finish, switch straight to another fiber, or stop.
//
// # Single-Threaded, Owner-Goroutine Scheduling
//
// A [Scheduler] drives every fiber bound to it from exactly one
// goroutine at a time — not necessarily the same goroutine on every
// call, but never two goroutines concurrently. [Scheduler.Queue] is the
// one operation safe to call from any goroutine; it is how foreign
// completions (timers, I/O callbacks, other goroutines) hand work back
// to the scheduler.
//
// Blocking inside a fiber body blocks the entire scheduler. There is no
// implicit suspension: a body suspends only by yielding an
// [Instruction].
//
// # Composing Fibers Like Tasks
//
// A step sequence that yields another *[Fiber] parks until that fiber
// completes, the same as an explicit [YieldUntilComplete] — the
// sequence form of composing fibers the way a generator composes
// sub-generators.
//
// [Fiber.ContinueWith] attaches a continuation that activates once its
// antecedent reaches a terminal status, gated by [ContinuationOptions].
// [WhenAll], [WhenAny] and [Delay] are ordinary fibers, with no
// privileged scheduler access, that poll their conditions once per
// cycle — the same composition surface a task library offers, built
// entirely on the fiber primitive.
//
// For code that wants to await a fiber through Go's usual
// done-channel idiom instead of polling [Fiber.Status], wrap it in a
// [YieldableTask] and start it on a [FiberTaskScheduler].
//
// # Cancellation
//
// A [CancellationToken] is captured at fiber creation and checked
// before every step. [Fiber.Cancel] requests cancellation directly,
// independent of any token. A body that raises a cancellation whose
// token does not match the fiber's own token ends the fiber Faulted,
// not Canceled — see [CancellationError].
//
// # Embedding In A Host Loop
//
// [Scheduler.Run] is a complete, blocking run loop for programs whose
// only job is to run fibers. A host that already has its own frame
// loop (a game engine, a GUI event loop) instead calls
// [Scheduler.Queue] and [Scheduler.Update] directly, and implements
// [HostAdapter] to receive [Foreign] instructions — opaque values a
// step yielded that the core does not interpret.
package fiber
