package fiber

import "iter"

// Factory is the canonical construction surface for fibers: it
// captures the defaults (scheduler, cancellation token, continuation
// options) that would otherwise need repeating at every call site, the
// same role a bound logger or bound client plays elsewhere.
//
// The zero value is usable: fibers it creates are unbound to any
// scheduler until [Scheduler.Queue] is called on them, and use the
// neutral cancellation token.
type Factory struct {
	// Scheduler, if set, is the default passed to Start. Fibers created
	// by FromSeq/FromThunk/FromAction without going through Start are
	// not bound to a scheduler until queued.
	Scheduler *Scheduler

	// Token is the default cancellation token new fibers are created
	// with.
	Token CancellationToken

	// ContinuationOptions is carried with the factory's other defaults.
	// No Factory method reads it; [Fiber.ContinueWith] takes its options
	// as an explicit argument.
	ContinuationOptions ContinuationOptions
}

// FromSeq creates a fiber whose body is the lazily-pulled step
// sequence seq. Each value the sequence yields is interpreted per the
// package's value-interpretation rules: a nested iter.Seq[any] pushes
// a nesting level, an Instruction drives the scheduler directly, and
// any other value is wrapped as [Foreign].
func (ff *Factory) FromSeq(seq iter.Seq[any]) *Fiber {
	f := newFiber(ff.Scheduler, ff.Token)
	f.kind = bodySequence
	f.seq = seq
	return f
}

// FromThunk creates a fiber whose body is called once per step,
// returning the Instruction for that step directly; there is no nested
// sequence stack for a thunk body.
func (ff *Factory) FromThunk(thunk func() Instruction) *Fiber {
	f := newFiber(ff.Scheduler, ff.Token)
	f.kind = bodyThunk
	f.thunk = thunk
	return f
}

// FromAction creates a fiber that runs action exactly once to
// completion on its first (and only) step, then ends as
// RanToCompletion with a nil result. An action body never yields.
func (ff *Factory) FromAction(action func()) *Fiber {
	return ff.FromActionWithState(func(any) { action() }, nil)
}

// FromActionWithState is FromAction but passes state through to
// action, for callers that want to avoid a closure allocation per
// fiber when spawning many fibers from the same action.
func (ff *Factory) FromActionWithState(action func(state any), state any) *Fiber {
	f := newFiber(ff.Scheduler, ff.Token)
	f.kind = bodyAction
	f.action = action
	f.actionArg = state
	return f
}

// Start creates a fiber from body (an iter.Seq[any], a func() Instruction,
// a func(), or a func(any), which is called with a nil state) and
// immediately queues it on ff.Scheduler, which must be set.
//
// body's accepted shapes mirror the three Factory constructors above;
// passing anything else returns [ErrInvalidState].
func (ff *Factory) Start(body any) (*Fiber, error) {
	if ff.Scheduler == nil {
		return nil, ErrInvalidState
	}
	f, err := ff.build(body)
	if err != nil {
		return nil, err
	}
	if err := ff.Scheduler.Queue(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (ff *Factory) build(body any) (*Fiber, error) {
	switch b := body.(type) {
	case iter.Seq[any]:
		return ff.FromSeq(b), nil
	case func() Instruction:
		return ff.FromThunk(b), nil
	case func():
		return ff.FromAction(b), nil
	case func(any):
		return ff.FromActionWithState(b, nil), nil
	default:
		return nil, ErrInvalidState
	}
}
