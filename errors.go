package fiber

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned or captured when an operation is not
// legal for a fiber's or scheduler's current state: starting a fiber
// that is not Created/WaitingForActivation, handing control with
// [YieldToFiber] to a completed fiber, yielding to a cross-scheduler
// fiber, constructing contradictory continuation
// options, or running a [YieldableTask] on a [FiberTaskScheduler] bound
// to a different scheduler.
var ErrInvalidState = errors.New("fiber: invalid state")

// ErrResourceDisposed is returned when operating on a disposed
// [Scheduler].
var ErrResourceDisposed = errors.New("fiber: scheduler disposed")

// FaultError wraps the value a fiber's body raised (or panicked with)
// when it is not a matching cancellation. Fiber.Err and the task bridge
// both surface faults wrapped this way.
//
// Stack is the stack trace captured at the point of the panic, in the
// format of [runtime/debug.Stack]; it is empty when Value was raised
// through a means other than a recovered panic.
type FaultError struct {
	Value any
	Stack []byte
}

func (e *FaultError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("fiber: fault: %v\n%s", err, e.Stack)
	}
	return fmt.Sprintf("fiber: fault: %v\n%s", e.Value, e.Stack)
}

func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TimeoutError is raised by the [WhenAll] supervisor in waitset.go when
// its deadline, measured against the scheduler's current-time marker,
// elapses before the awaited condition is met. It is a Fault, distinct
// from cancellation. [WhenAny] ends with a nil result on timeout
// instead, and [Delay] has no timeout.
type TimeoutError struct {
	// Awaited names the operation that timed out, e.g. "WhenAll".
	Awaited string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fiber: %s: timed out", e.Awaited)
}

// AggregateError collects the faults and cancellations of the member
// fibers of a when_all supervisor that did not all run to completion.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("fiber: when_all: %v", e.Errors[0])
	}
	return fmt.Sprintf("fiber: when_all: %d member fibers did not run to completion (first: %v)", len(e.Errors), e.Errors[0])
}

func (e *AggregateError) Unwrap() []error { return e.Errors }
