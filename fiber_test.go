package fiber_test

import (
	"errors"
	"iter"
	"testing"
	"time"

	fiber "fiberflow"
)

func TestFiberRunsActionToCompletion(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})

	ran := false
	ff := fiber.Factory{Scheduler: s}
	f, err := ff.Start(func() { ran = true })
	if err != nil {
		t.Fatal(err)
	}

	s.Update(time.Now())

	if !ran {
		t.Fatal("action body did not run")
	}
	if got := f.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
}

// TestFiberSequenceNesting is the package's rendition of the
// fade-and-move-and-shoot nesting scenario: a step sequence that yields
// a value, then a nested sub-sequence, then another value, then a
// deeper nested sequence containing a sequence of its own, observing
// that the witness order matches the source order exactly regardless of
// how deep the nesting goes.
func TestFiberSequenceNesting(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})

	var witness []int
	record := func(n int) { witness = append(witness, n) }

	var inner iter.Seq[any] = func(yield func(any) bool) {
		record(7)
		if !yield(fiber.YieldForDuration(time.Second)) {
			return
		}
		record(8)
	}

	var middle iter.Seq[any] = func(yield func(any) bool) {
		record(5)
		if !yield(fiber.YieldForDuration(3 * time.Second)) {
			return
		}
		record(6)
		if !yield(any(inner)) {
			return
		}
		record(9)
	}

	var sub iter.Seq[any] = func(yield func(any) bool) {
		record(2)
		if !yield(fiber.YieldForDuration(2 * time.Second)) {
			return
		}
		record(3)
	}

	var outer iter.Seq[any] = func(yield func(any) bool) {
		record(1)
		if !yield(any(sub)) {
			return
		}
		record(4)
		if !yield(any(middle)) {
			return
		}
		record(10)
	}

	ff := fiber.Factory{Scheduler: s}
	f, err := ff.Start(outer)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	for i := 0; i < 80 && !f.Status().IsCompleted(); i++ {
		now = now.Add(100 * time.Millisecond)
		s.Update(now)
	}

	if !f.Status().IsCompleted() {
		t.Fatalf("fiber did not complete; witness so far: %v", witness)
	}

	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if len(witness) != len(want) {
		t.Fatalf("witness = %v, want %v", witness, want)
	}
	for i, v := range want {
		if witness[i] != v {
			t.Fatalf("witness = %v, want %v", witness, want)
		}
	}
}

func TestCancelBeforeStartIsImmediate(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ran := false
	ff := fiber.Factory{Scheduler: s}
	f := ff.FromAction(func() { ran = true })
	f.Cancel()

	if got := f.Status(); got != fiber.Canceled {
		t.Fatalf("status = %v, want Canceled", got)
	}
	if err := s.Queue(f); err == nil {
		t.Fatal("Queue on an already-terminal fiber should fail")
	}
	s.Update(time.Now())
	if ran {
		t.Fatal("body of a fiber canceled before start must never run")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}
	f := ff.FromAction(func() {})
	f.Cancel()
	f.Cancel()
	if got := f.Status(); got != fiber.Canceled {
		t.Fatalf("status = %v, want Canceled", got)
	}
}

func TestCancellationByMatchingToken(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	cts := fiber.NewCancellationTokenSource()
	tok := cts.Token()

	var seq iter.Seq[any] = func(yield func(any) bool) {
		for {
			tok.ThrowIfCanceled()
			if !yield(fiber.YieldToAny()) {
				return
			}
		}
	}

	ff := fiber.Factory{Scheduler: s, Token: tok}
	f, err := ff.Start(seq)
	if err != nil {
		t.Fatal(err)
	}

	s.Update(time.Now())
	cts.Cancel()
	s.Update(time.Now())

	if got := f.Status(); got != fiber.Canceled {
		t.Fatalf("status = %v, want Canceled", got)
	}
	if f.Err() != nil {
		t.Fatalf("Err() = %v, want nil", f.Err())
	}
}

func TestCancellationByForeignTokenFaults(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	cts1 := fiber.NewCancellationTokenSource()
	cts2 := fiber.NewCancellationTokenSource()
	tok1 := cts1.Token()

	var seq iter.Seq[any] = func(yield func(any) bool) {
		for {
			tok1.ThrowIfCanceled()
			if !yield(fiber.YieldToAny()) {
				return
			}
		}
	}

	ff := fiber.Factory{Scheduler: s, Token: cts2.Token()}
	f, err := ff.Start(seq)
	if err != nil {
		t.Fatal(err)
	}

	s.Update(time.Now())
	cts1.Cancel()
	s.Update(time.Now())

	if got := f.Status(); got != fiber.Faulted {
		t.Fatalf("status = %v, want Faulted", got)
	}

	var ce *fiber.CancellationError
	if !errors.As(f.Err(), &ce) {
		t.Fatalf("Err() = %v, want *CancellationError", f.Err())
	}
}

func TestContinueWithOnlyOnFaultedSkipsOnSuccess(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	ante, err := ff.Start(func() {})
	if err != nil {
		t.Fatal(err)
	}
	s.Update(time.Now())

	ran := false
	cont, err := ante.ContinueWith(func() { ran = true }, fiber.OnlyOnFaulted, fiber.CancellationToken{})
	if err != nil {
		t.Fatal(err)
	}

	s.Update(time.Now())

	if ran {
		t.Fatal("OnlyOnFaulted continuation body ran after a successful antecedent")
	}
	if got := cont.Status(); got != fiber.Canceled {
		t.Fatalf("status = %v, want Canceled", got)
	}
}

func TestContinueWithOnlyOnFaultedRunsOnFault(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	boom := errors.New("boom")
	ante, err := ff.Start(func() { panic(boom) })
	if err != nil {
		t.Fatal(err)
	}
	s.Update(time.Now())

	if got := ante.Status(); got != fiber.Faulted {
		t.Fatalf("antecedent status = %v, want Faulted", got)
	}

	var observed error
	cont, err := ante.ContinueWith(func() { observed = ante.Err() }, fiber.OnlyOnFaulted, fiber.CancellationToken{})
	if err != nil {
		t.Fatal(err)
	}
	s.Update(time.Now())

	if got := cont.Status(); got != fiber.RanToCompletion {
		t.Fatalf("continuation status = %v, want RanToCompletion", got)
	}
	var fe *fiber.FaultError
	if !errors.As(observed, &fe) {
		t.Fatalf("observed antecedent error = %v, want *FaultError", observed)
	}
	if len(fe.Stack) == 0 {
		t.Fatal("FaultError.Stack is empty for a recovered panic")
	}
}

func TestContinueWithRejectsContradictoryOptions(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	ante, err := ff.Start(func() {})
	if err != nil {
		t.Fatal(err)
	}
	s.Update(time.Now())

	_, err = ante.ContinueWith(func() {}, fiber.OnlyOnFaulted|fiber.OnlyOnCanceled, fiber.CancellationToken{})
	if err != fiber.ErrInvalidState {
		t.Fatalf("ContinueWith with contradictory options = %v, want ErrInvalidState", err)
	}
}

// TestSequenceYieldingFiberWaitsForIt exercises the value-interpretation
// rule that a step sequence yielding a *Fiber parks until that fiber
// completes, the same as an explicit YieldUntilComplete.
func TestSequenceYieldingFiberWaitsForIt(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	childSlept := false
	child, err := ff.Start(func() fiber.Instruction {
		if !childSlept {
			childSlept = true
			return fiber.YieldForDuration(50 * time.Millisecond)
		}
		return fiber.Stop()
	})
	if err != nil {
		t.Fatal(err)
	}

	var seq iter.Seq[any] = func(yield func(any) bool) {
		if !yield(any(child)) {
			return
		}
	}
	parent, err := ff.Start(seq)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.Update(now)
	if parent.Status().IsCompleted() {
		t.Fatal("parent completed before the yielded fiber did")
	}

	now = now.Add(100 * time.Millisecond)
	s.Update(now)
	s.Update(now)

	if got := child.Status(); got != fiber.RanToCompletion {
		t.Fatalf("child status = %v, want RanToCompletion", got)
	}
	if got := parent.Status(); got != fiber.RanToCompletion {
		t.Fatalf("parent status = %v, want RanToCompletion", got)
	}
}
