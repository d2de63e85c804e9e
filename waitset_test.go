package fiber_test

import (
	"errors"
	"testing"
	"time"

	fiber "fiberflow"
)

func TestWhenAllEmptySucceedsImmediately(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	f := fiber.WhenAll(s, nil, 0, fiber.CancellationToken{})

	s.Update(time.Now())

	if got := f.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
	if result, ok := f.Result().(bool); !ok || !result {
		t.Fatalf("result = %v, want true", f.Result())
	}
}

func TestWhenAllSucceedsOnceEveryMemberCompletes(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	a, err := ff.Start(func() {})
	if err != nil {
		t.Fatal(err)
	}
	bSlept := false
	b, err := ff.Start(func() fiber.Instruction {
		if !bSlept {
			bSlept = true
			return fiber.YieldForDuration(50 * time.Millisecond)
		}
		return fiber.Stop()
	})
	if err != nil {
		t.Fatal(err)
	}

	wa := fiber.WhenAll(s, []*fiber.Fiber{a, b}, 0, fiber.CancellationToken{})

	now := time.Now()
	s.Update(now)
	if wa.Status().IsCompleted() {
		t.Fatal("WhenAll completed before every member finished")
	}

	now = now.Add(100 * time.Millisecond)
	s.Update(now)
	s.Update(now)

	if got := wa.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
}

func TestWhenAllFaultsWithAggregateErrorOnMemberFailure(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	boom := errors.New("boom")
	a, err := ff.Start(func() { panic(boom) })
	if err != nil {
		t.Fatal(err)
	}
	b, err := ff.Start(func() {})
	if err != nil {
		t.Fatal(err)
	}

	wa := fiber.WhenAll(s, []*fiber.Fiber{a, b}, 0, fiber.CancellationToken{})

	s.Update(time.Now())
	s.Update(time.Now())

	if got := wa.Status(); got != fiber.Faulted {
		t.Fatalf("status = %v, want Faulted", got)
	}
	var ae *fiber.AggregateError
	if !errors.As(wa.Err(), &ae) {
		t.Fatalf("Err() = %v, want *AggregateError", wa.Err())
	}
}

func TestWhenAllTimesOutWhileMembersStillRunning(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	members := make([]*fiber.Fiber, 6)
	for i := range members {
		slept := false
		f, err := ff.Start(func() fiber.Instruction {
			if !slept {
				slept = true
				return fiber.YieldForDuration(3 * time.Second)
			}
			return fiber.Stop()
		})
		if err != nil {
			t.Fatal(err)
		}
		members[i] = f
	}

	wa := fiber.WhenAll(s, members, 2*time.Second, fiber.CancellationToken{})

	now := time.Now()
	s.Update(now)

	now = now.Add(2100 * time.Millisecond)
	s.Update(now)
	s.Update(now)

	if got := wa.Status(); got != fiber.Faulted {
		t.Fatalf("status = %v, want Faulted at the timeout instant", got)
	}
	var te *fiber.TimeoutError
	if !errors.As(wa.Err(), &te) {
		t.Fatalf("Err() = %v, want *TimeoutError", wa.Err())
	}
	for i, m := range members {
		if m.Status().IsCompleted() {
			t.Fatalf("member %d already completed at the timeout instant", i)
		}
	}

	now = now.Add(time.Second)
	s.Update(now)
	for i, m := range members {
		if got := m.Status(); got != fiber.RanToCompletion {
			t.Fatalf("member %d status = %v, want RanToCompletion once its own sleep elapses", i, got)
		}
	}
}

func TestWhenAnyEmptyCompletesWithNilResult(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	f := fiber.WhenAny(s, nil, 0, fiber.CancellationToken{})

	s.Update(time.Now())

	if got := f.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
	if f.Result() != nil {
		t.Fatalf("result = %v, want nil", f.Result())
	}
}

func TestWhenAnyCompletesWithFirstFinishedMember(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	fast, err := ff.Start(func() {})
	if err != nil {
		t.Fatal(err)
	}
	slow, err := ff.Start(func() fiber.Instruction { return fiber.YieldForDuration(time.Hour) })
	if err != nil {
		t.Fatal(err)
	}

	wa := fiber.WhenAny(s, []*fiber.Fiber{fast, slow}, 0, fiber.CancellationToken{})

	s.Update(time.Now())
	s.Update(time.Now())

	if got := wa.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
	if wa.Result() != fast {
		t.Fatalf("result = %v, want the fast member", wa.Result())
	}
}

func TestWhenAnyTimesOutWithNilResultNotFault(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	ff := fiber.Factory{Scheduler: s}

	slow, err := ff.Start(func() fiber.Instruction { return fiber.YieldForDuration(time.Hour) })
	if err != nil {
		t.Fatal(err)
	}

	wa := fiber.WhenAny(s, []*fiber.Fiber{slow}, 10*time.Millisecond, fiber.CancellationToken{})

	now := time.Now()
	s.Update(now)
	now = now.Add(20 * time.Millisecond)
	s.Update(now)

	if got := wa.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion (timeout is not a fault for WhenAny)", got)
	}
	if wa.Result() != nil {
		t.Fatalf("result = %v, want nil", wa.Result())
	}
}

func TestDelayZeroCompletesOnFirstStep(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	f := fiber.Delay(s, 0, fiber.CancellationToken{})

	s.Update(time.Now())

	if got := f.Status(); got != fiber.RanToCompletion {
		t.Fatalf("status = %v, want RanToCompletion", got)
	}
}

func TestDelayCancelsWithMatchingToken(t *testing.T) {
	s := fiber.NewScheduler(fiber.Options{})
	cts := fiber.NewCancellationTokenSource()

	f := fiber.Delay(s, time.Hour, cts.Token())

	s.Update(time.Now())
	cts.Cancel()
	s.Update(time.Now())

	if got := f.Status(); got != fiber.Canceled {
		t.Fatalf("status = %v, want Canceled", got)
	}
}
