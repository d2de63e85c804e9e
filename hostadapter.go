package fiber

// HostAdapter is the shape an embedding host (e.g. a frame-driven game
// engine) implements to receive [Foreign] instructions and translate
// them into its own wait primitives, instead of driving the scheduler
// through [Scheduler.Run].
//
// The core never interprets a Foreign payload; it transports it
// opaquely to whichever HostAdapter is registered on the fiber's
// scheduler, via [Options.HostAdapter].
type HostAdapter interface {
	// PushNativeYield receives the opaque payload a fiber's step
	// yielded as a [Foreign] instruction. The host is responsible for
	// eventually resuming f (typically by calling [Scheduler.Queue] or
	// re-driving it through its own saved handle) once whatever the
	// payload represents is satisfied.
	PushNativeYield(f *Fiber, payload any)
}

// AssociateNativeHandle stores handle in f's per-fiber property map
// under a package-reserved key, so that other fibers (or the host
// itself) can retrieve it later, e.g. to let one fiber
// [YieldUntilComplete] on a fiber that is being driven entirely by a
// host-native coroutine handle rather than by this package's own
// step-sequence machinery.
func AssociateNativeHandle(f *Fiber, handle any) {
	f.SetProperty(nativeHandleKey, handle)
}

// NativeHandle retrieves the value last stored by
// [AssociateNativeHandle], if any.
func NativeHandle(f *Fiber) (any, bool) {
	return f.Property(nativeHandleKey)
}

const nativeHandleKey = "fiber.nativeHandle"
