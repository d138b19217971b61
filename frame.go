package cansil

// Frame is a standard (11-bit) CAN frame. Extended IDs and RTR frames are
// not modeled; the platform runs a single virtual CAN channel with
// standard frames only.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// CanSFFMask masks a raw identifier down to the 11-bit standard range.
const CanSFFMask uint32 = 0x7FF

// FrameListener receives frames pushed by a Bus subscription. Handle must
// not block; slow consumers should buffer internally (see
// internal/framequeue).
type FrameListener interface {
	Handle(frame Frame)
}

// FrameListenerFunc adapts a plain function to a FrameListener.
type FrameListenerFunc func(Frame)

func (f FrameListenerFunc) Handle(frame Frame) { f(frame) }

// Bus is the transport abstraction used by every component that talks to
// the virtual CAN channel: the Plant Simulator, Fault Injector scenarios,
// and the Verdict Checker's CAN listener.
type Bus interface {
	// Send transmits a single frame. Implementations never retry; the
	// caller's own periodic schedule is the retry mechanism.
	Send(frame Frame) error
	// Subscribe registers a listener for every frame received on the bus.
	// At most one listener is active at a time; a second call replaces
	// the first.
	Subscribe(listener FrameListener)
	// Connect opens the underlying transport. Implementation-specific
	// arguments (e.g. channel name) are passed positionally.
	Connect(args ...any) error
	// Close releases the underlying transport. Safe to call more than
	// once.
	Close() error
}
