package fiber

import "runtime/debug"

// tryCatch runs f, recovering any panic. It reports whether f returned
// normally. On a recovered panic it returns the recovered value and a
// stack trace captured at the point of recovery.
//
// A fiber's step must never let a body's panic escape past step() and
// take down the scheduler's dispatch loop, so every body invocation
// goes through this.
func tryCatch(f func()) (ok bool, recovered any, stack []byte) {
	defer func() {
		if !ok {
			if v := recover(); v != nil {
				recovered = v
				stack = debug.Stack()
			}
		}
	}()
	f()
	return true, nil, nil
}
