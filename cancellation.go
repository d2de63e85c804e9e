package fiber

import (
	"errors"
	"sync"
)

// CancellationToken is a shared, cooperative cancellation signal
// threaded through fiber creation sites and through when_all/when_any/
// delay and continuations.
//
// The zero value is the neutral token: a token that can never be
// canceled. Use [NewCancellationTokenSource] to obtain a token that can
// be canceled.
type CancellationToken struct {
	src *cancellationSource
}

type cancellationSource struct {
	mu       sync.Mutex
	canceled bool
	done     chan struct{}
}

// CancellationTokenSource owns a [CancellationToken] and is the only
// way to cancel it.
type CancellationTokenSource struct {
	src *cancellationSource
}

// NewCancellationTokenSource returns a new source along with the token
// it controls.
func NewCancellationTokenSource() *CancellationTokenSource {
	return &CancellationTokenSource{src: &cancellationSource{done: make(chan struct{})}}
}

// Token returns the [CancellationToken] controlled by cts.
func (cts *CancellationTokenSource) Token() CancellationToken {
	return CancellationToken{src: cts.src}
}

// Cancel signals cts's token. Cancel is idempotent and safe to call
// from any goroutine.
func (cts *CancellationTokenSource) Cancel() {
	cts.src.mu.Lock()
	defer cts.src.mu.Unlock()
	if !cts.src.canceled {
		cts.src.canceled = true
		close(cts.src.done)
	}
}

// Canceled reports whether t has been signaled. The neutral token never
// reports canceled.
func (t CancellationToken) Canceled() bool {
	if t.src == nil {
		return false
	}
	t.src.mu.Lock()
	defer t.src.mu.Unlock()
	return t.src.canceled
}

// Done returns a channel that is closed when t is signaled. For the
// neutral token, Done returns nil, which blocks forever in a select,
// the same way a nil context.Context's Done would.
func (t CancellationToken) Done() <-chan struct{} {
	if t.src == nil {
		return nil
	}
	return t.src.done
}

// Equal reports whether t and other are backed by the same source,
// i.e. whether a cancellation raised against one is "matching" for the
// other per the error taxonomy in the package documentation.
func (t CancellationToken) Equal(other CancellationToken) bool {
	return t.src == other.src
}

// ErrCanceled is the sentinel wrapped by a cancellation raised through
// [CancellationToken.ThrowIfCanceled].
var ErrCanceled = errors.New("fiber: operation canceled")

// cancellationError is raised by a body to request cooperative
// termination. step() treats it as Canceled only when its Token
// matches the fiber's own cancellation token; otherwise it is a Fault.
type cancellationError struct {
	Token CancellationToken
}

func (e *cancellationError) Error() string { return "fiber: canceled" }

func (e *cancellationError) Unwrap() error { return ErrCanceled }

// ThrowIfCanceled panics with a cancellation error carrying t if t has
// been signaled. A body is expected to call this (or check Canceled
// directly) at points where it is safe to unwind.
//
// Whether the panic terminates the running fiber as Canceled or as
// Faulted depends on whether t matches the fiber's own token; see
// [CancellationError].
func (t CancellationToken) ThrowIfCanceled() {
	if t.Canceled() {
		panic(&cancellationError{Token: t})
	}
}

// CancellationError is the error captured on a [Fiber] that transitions
// to [Faulted] because a body raised a cancellation whose token did not
// match the fiber's own token.
type CancellationError struct {
	Token CancellationToken
}

func (e *CancellationError) Error() string { return "fiber: cancellation with foreign token" }

func (e *CancellationError) Unwrap() error { return ErrCanceled }
