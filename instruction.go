package fiber

import "time"

// An instrKind tags the closed set of instructions a step can produce.
//
// Instruction is represented as one struct carrying a kind tag plus the
// union of its possible payloads, rather than as an interface, so that
// interpreting a step's result never allocates beyond the Instruction
// value itself.
type instrKind uint8

const (
	instrYieldToAny instrKind = iota
	instrYieldForDuration
	instrYieldUntilComplete
	instrYieldToFiber
	instrYieldUntilEvent
	instrStop
	instrResultSet
	instrForeign
)

// Instruction describes what a Fiber's step asks of the Scheduler.
//
// Values are created exclusively through the package-level constructor
// functions: [YieldToAny], [YieldForDuration], [YieldUntilComplete],
// [YieldToFiber], [WaitFor], [Stop], [ResultSet] and [Foreign].
type Instruction struct {
	kind     instrKind
	duration time.Duration
	target   *Fiber
	value    any
	events   []Event
}

// YieldToAny returns an [Instruction] that requeues the fiber on the
// ready queue; it runs again no earlier than the next update.
//
// A nil, zero-valued Instruction (and a body step that returns nil) is
// equivalent to YieldToAny.
func YieldToAny() Instruction {
	return Instruction{kind: instrYieldToAny}
}

// YieldForDuration returns an [Instruction] that places the fiber on
// the sleep queue with a wake time of now+d.
func YieldForDuration(d time.Duration) Instruction {
	return Instruction{kind: instrYieldForDuration, duration: d}
}

// YieldUntilComplete returns an [Instruction] that parks the fiber off
// all queues until target reaches a terminal status, at which point the
// fiber is requeued. Both fibers must share a [Scheduler].
func YieldUntilComplete(target *Fiber) Instruction {
	return Instruction{kind: instrYieldUntilComplete, target: target}
}

// YieldToFiber returns an [Instruction] that removes target from its
// current queue and runs it next, within the same dispatch step bounded
// by the scheduler's inline-recursion cap. Both fibers must share a
// [Scheduler].
func YieldToFiber(target *Fiber) Instruction {
	return Instruction{kind: instrYieldToFiber, target: target}
}

// WaitFor returns an [Instruction] that parks the fiber off every queue
// and registers it as a listener on each of events. The fiber is
// requeued as soon as any one of them fires; the listener registration
// on every event (including the ones that did not fire) is cleared
// first, so a body that still needs to wait must call WaitFor again
// with freshly evaluated conditions. This is how the package's
// supplementary [Signal], [State], [WaitGroup] and [Semaphore] wake a
// waiting fiber without the fiber busy-polling every update.
func WaitFor(events ...Event) Instruction {
	return Instruction{kind: instrYieldUntilEvent, events: events}
}

// Stop returns an [Instruction] that ends the fiber, transitioning it
// to [RanToCompletion] (unless a cancellation or fault is in effect).
// Yielded from a nested step sequence, Stop ends only that nesting
// level and the enclosing sequence continues.
func Stop() Instruction {
	return Instruction{kind: instrStop}
}

// ResultSet returns an [Instruction] that sets the fiber's user-visible
// result to value and then ends the fiber, transitioning it to
// [RanToCompletion]. Yielded from a nested step sequence, ResultSet
// records value and ends only that nesting level; the recorded value
// becomes the result when the fiber itself ends with Stop or by running
// out of steps.
func ResultSet(value any) Instruction {
	return Instruction{kind: instrResultSet, value: value}
}

// Foreign returns an [Instruction] wrapping an opaque value the core
// does not interpret; it is surfaced unchanged to a [HostAdapter].
func Foreign(value any) Instruction {
	return Instruction{kind: instrForeign, value: value}
}

func (ins Instruction) isZero() bool {
	return ins.kind == instrYieldToAny && ins.duration == 0 && ins.target == nil && ins.value == nil
}
