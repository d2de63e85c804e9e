package fiber

import "iter"

// step runs f forward until it either yields an [Instruction] the
// scheduler must act on, or reaches a terminal status. It is called
// exclusively by the owning [Scheduler], one fiber at a time, never
// concurrently with another step of the same fiber.
//
// The cancellation token is checked before any body code runs. If it
// is already signaled, f ends as Canceled without the body seeing
// another chance to run; a body that wants to observe cancellation and
// react to it (e.g. release a resource) should call
// [CancellationToken.ThrowIfCanceled] itself at a point of its
// choosing instead of relying on this early check.
func (f *Fiber) step() Instruction {
	if f.canceled.Load() || f.token.Canceled() {
		f.clearWatches()
		f.runCleanups()
		f.finishTerminal(Canceled, nil, nil)
		return Instruction{}
	}

	if !f.status.cas(WaitingToRun, Running) {
		// Already terminal, or raced with another driver; nothing to do.
		return Instruction{}
	}

	f.clearWatches()
	f.runCleanups()

	var ins Instruction
	ok, recovered, stack := tryCatch(func() {
		ins = f.runBody()
	})

	if !ok {
		f.handlePanic(recovered, stack)
		return Instruction{}
	}

	switch ins.kind {
	case instrStop:
		f.finish(RanToCompletion, f.takePendingResult(), nil)
		return Instruction{}
	case instrResultSet:
		f.finish(RanToCompletion, ins.value, nil)
		return Instruction{}
	default:
		f.status.cas(Running, WaitingToRun)
		return ins
	}
}

func (f *Fiber) takePendingResult() any {
	if f.hasPendingResult {
		v := f.pendingResult
		f.pendingResult = nil
		f.hasPendingResult = false
		return v
	}
	return nil
}

func (f *Fiber) finish(status Status, result any, err error) {
	f.runCleanups()
	f.finishTerminal(status, result, err)
	if status == Faulted && f.scheduler != nil {
		f.scheduler.reportFault(f, err)
	}
}

func (f *Fiber) handlePanic(recovered any, stack []byte) {
	if ce, ok := recovered.(*cancellationError); ok {
		if ce.Token.Equal(f.token) {
			f.finish(Canceled, nil, nil)
			return
		}
		f.finish(Faulted, nil, &CancellationError{Token: ce.Token})
		return
	}
	f.finish(Faulted, nil, &FaultError{Value: recovered, Stack: stack})
}

// runBody advances the body by exactly one logical step and returns the
// instruction the scheduler should act on. For a sequence body this
// walks the nested step-sequence stack until it either produces a real
// yield instruction or the whole sequence unwinds.
func (f *Fiber) runBody() Instruction {
	switch f.kind {
	case bodyAction:
		f.action(f.actionArg)
		return Instruction{kind: instrStop}
	case bodyThunk:
		return f.thunk()
	default:
		return f.runSequence()
	}
}

func (f *Fiber) runSequence() Instruction {
	if !f.primaryStarted {
		f.primaryStarted = true
		next, stop := iter.Pull(f.seq)
		f.primaryNext, f.primaryStop = next, stop
	}

	for {
		next, _ := f.currentLevel()

		v, ok := next()
		if !ok {
			if f.popLevel() {
				// Popped a nested level; keep driving from the level
				// beneath it within this same step call.
				continue
			}
			// Primary level exhausted: the whole fiber ends.
			return Instruction{kind: instrStop}
		}

		switch t := v.(type) {
		case nil:
			return YieldToAny()
		case iter.Seq[any]:
			n, s := iter.Pull(t)
			f.nested = append(f.nested, pulledSeq{next: n, stop: s})
			continue
		case *Fiber:
			// Yielding another fiber means waiting for it, same as an
			// explicit YieldUntilComplete.
			return YieldUntilComplete(t)
		case Instruction:
			switch t.kind {
			case instrStop:
				if f.popLevel() {
					continue
				}
				return Instruction{kind: instrStop}
			case instrResultSet:
				f.pendingResult, f.hasPendingResult = t.value, true
				if f.popLevel() {
					continue
				}
				return Instruction{kind: instrStop}
			default:
				return t
			}
		default:
			return Instruction{kind: instrForeign, value: v}
		}
	}
}

// currentLevel returns the next/stop pair for whichever nesting level
// is active: the innermost pushed sequence, or the primary sequence if
// none is pushed.
func (f *Fiber) currentLevel() (next func() (any, bool), stop func()) {
	if n := len(f.nested); n > 0 {
		top := f.nested[n-1]
		return top.next, top.stop
	}
	return f.primaryNext, f.primaryStop
}

// popLevel pops the innermost nested level, if any, calling its stop
// func to release the underlying iterator's resources, and reports
// whether a level was actually popped (false means the primary level
// itself was exhausted/stopped).
func (f *Fiber) popLevel() bool {
	if n := len(f.nested); n > 0 {
		f.nested[n-1].stop()
		f.nested = f.nested[:n-1]
		return true
	}
	if f.primaryStop != nil {
		f.primaryStop()
	}
	return false
}
