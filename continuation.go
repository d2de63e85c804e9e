package fiber

// ContinuationOptions gates when a continuation fiber created by
// [Fiber.ContinueWith] actually runs, mirroring the antecedent's
// terminal status.
type ContinuationOptions uint8

const (
	// ContinueDefault runs the continuation regardless of how the
	// antecedent ended.
	ContinueDefault ContinuationOptions = 0

	// OnlyOnRanToCompletion runs the continuation only if the
	// antecedent reached RanToCompletion.
	OnlyOnRanToCompletion ContinuationOptions = 1 << iota

	// OnlyOnFaulted runs the continuation only if the antecedent
	// reached Faulted.
	OnlyOnFaulted

	// OnlyOnCanceled runs the continuation only if the antecedent
	// reached Canceled.
	OnlyOnCanceled
)

// validate reports ErrInvalidState if o sets more than one of the
// mutually exclusive OnlyOn* bits; a continuation can filter on at most
// one terminal status, since an antecedent can only end in exactly one
// of them.
func (o ContinuationOptions) validate() error {
	n := 0
	for _, bit := range [...]ContinuationOptions{OnlyOnRanToCompletion, OnlyOnFaulted, OnlyOnCanceled} {
		if o&bit != 0 {
			n++
		}
	}
	if n > 1 {
		return ErrInvalidState
	}
	return nil
}

func (o ContinuationOptions) admits(st Status) bool {
	switch st {
	case RanToCompletion:
		return o&(OnlyOnFaulted|OnlyOnCanceled) == 0
	case Faulted:
		return o&(OnlyOnRanToCompletion|OnlyOnCanceled) == 0
	case Canceled:
		return o&(OnlyOnRanToCompletion|OnlyOnFaulted) == 0
	default:
		return false
	}
}

// continuationLink is the record an antecedent fiber holds for a
// pending continuation, drained exactly once at the antecedent's
// terminal transition, in the order the continuations were attached.
type continuationLink struct {
	fiber *Fiber
	opts  ContinuationOptions
}

// activate runs when the antecedent reaches a terminal status: it
// either queues the continuation fiber on its scheduler, or, if opts
// filters it out, resolves the continuation directly to Canceled
// without ever running its body: a skipped continuation counts as
// canceled.
func (c *continuationLink) activate(antecedent *Fiber) {
	if !c.opts.admits(antecedent.Status()) {
		c.fiber.scheduler = antecedent.scheduler
		c.fiber.finishTerminal(Canceled, nil, nil)
		return
	}
	if c.fiber.scheduler == nil {
		c.fiber.scheduler = antecedent.scheduler
	}
	_ = c.fiber.scheduler.Queue(c.fiber)
}

// ContinueWith creates a new fiber from body (accepted shapes per
// [Factory.Start]) that activates once f reaches a terminal status.
// The continuation's Antecedent is f; inside its body it can inspect
// f.Result()/f.Err()/f.Status() to see how the antecedent ended.
//
// If f is already terminal when ContinueWith is called, the
// continuation activates synchronously, on the calling goroutine,
// before ContinueWith returns.
func (f *Fiber) ContinueWith(body any, opts ContinuationOptions, token CancellationToken) (*Fiber, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ff := Factory{Scheduler: f.scheduler, Token: token}
	cont, err := ff.build(body)
	if err != nil {
		return nil, err
	}
	cont.antecedent = f
	cont.status.store(WaitingForActivation)

	link := &continuationLink{fiber: cont, opts: opts}

	f.mu.Lock()
	if f.status.load().IsCompleted() {
		f.mu.Unlock()
		link.activate(f)
		return cont, nil
	}
	f.continuations = append(f.continuations, link)
	f.mu.Unlock()

	return cont, nil
}
