package cansil

import (
	"github.com/brutella/can"
)

// SocketCANBus wraps a real Linux SocketCAN interface via brutella/can. It
// is the production Bus implementation; VirtualBus is used for tests and
// SIL runs without hardware.
type SocketCANBus struct {
	bus      *can.Bus
	listener FrameListener
}

// NewSocketCANBus opens (but does not yet activate) the named interface,
// e.g. "vcan0" or "can0".
func NewSocketCANBus(name string) (*SocketCANBus, error) {
	bus, err := can.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &SocketCANBus{bus: bus}, nil
}

// Send implements Bus.
func (s *SocketCANBus) Send(frame Frame) error {
	return s.bus.Publish(can.Frame{ID: frame.ID, Length: frame.DLC, Data: frame.Data})
}

// Subscribe implements Bus. SocketCANBus itself satisfies brutella/can's
// Handle-based frame handler interface and forwards to the registered
// listener.
func (s *SocketCANBus) Subscribe(listener FrameListener) {
	first := s.listener == nil
	s.listener = listener
	if first {
		s.bus.Subscribe(s)
	}
}

// Handle satisfies brutella/can's frame handler interface.
func (s *SocketCANBus) Handle(frame can.Frame) {
	if s.listener != nil {
		s.listener.Handle(Frame{ID: frame.ID, DLC: frame.Length, Data: frame.Data})
	}
}

// Connect starts the interface's read/write pump in the background.
func (s *SocketCANBus) Connect(args ...any) error {
	go func() {
		_ = s.bus.ConnectAndPublish()
	}()
	return nil
}

// Close disconnects the underlying SocketCAN interface.
func (s *SocketCANBus) Close() error {
	return s.bus.Disconnect()
}
