package fiber

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the header
// line of a single-goroutine stack trace. Go deliberately exposes no
// public goroutine-identity API; this is the same technique goroutine-
// local-storage shims in the wider ecosystem use, and it is the only
// way a single-threaded, owner-goroutine-affine type like [Scheduler]
// can tell, cheaply, whether [Scheduler.Queue] or
// [SynchronizationContext.Send] is being called from its own dispatch
// goroutine or from a foreign one.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseInt(string(b), 10, 64)
	return id
}
