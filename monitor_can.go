package cansil

import (
	"context"
	"time"

	"github.com/vectorlane/cansil/internal/framequeue"
	"github.com/vectorlane/cansil/internal/ringbuffer"
)

// CANMonitor is the Verdict Checker's CAN-side observer: it subscribes to
// the bus, keeps a per-arbitration-ID capture ring, and a separate history
// of vehicle-state transitions, then offers blocking wait_for_* style
// condition checks for scenario verdicts.
type CANMonitor struct {
	bus   Bus
	queue *framequeue.Queue

	byID    map[uint32]*ringbuffer.Buffer[Frame]
	states  *ringbuffer.Buffer[VehicleState]
	lastFSM VehicleState
}

// NewCANMonitor creates a monitor bound to bus. Start must be called
// before any wait_for_* method is used.
func NewCANMonitor(bus Bus) *CANMonitor {
	return &CANMonitor{
		bus:    bus,
		queue:  framequeue.New(4096),
		byID:   make(map[uint32]*ringbuffer.Buffer[Frame]),
		states: ringbuffer.New[VehicleState](1000, 500),
	}
}

// Start subscribes to the bus and begins the background capture loop,
// running until ctx is cancelled.
func (m *CANMonitor) Start(ctx context.Context) {
	m.bus.Subscribe(FrameListenerFunc(func(f Frame) {
		m.queue.Push(framequeue.Frame(f))
	}))
	go m.captureLoop(ctx)
}

func (m *CANMonitor) captureLoop(ctx context.Context) {
	for {
		f, err := m.queue.RecvTimeout(100 * time.Millisecond)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		m.capture(Frame(f))
	}
}

func (m *CANMonitor) capture(f Frame) {
	now := time.Now()
	buf, ok := m.byID[f.ID]
	if !ok {
		buf = ringbuffer.New[Frame](1000, 500)
		m.byID[f.ID] = buf
	}
	buf.Append(now, f)

	if f.ID == IDVehicleState {
		if vs, err := DecodeVehicleState(f.Data[:f.DLC]); err == nil {
			state := VehicleState(vs.State)
			if state != m.lastFSM {
				m.states.Append(now, state)
				m.lastFSM = state
			}
		}
	}
}

// Reset clears all capture state, establishing a fresh observation window
// for the next scenario step.
func (m *CANMonitor) Reset() {
	m.byID = make(map[uint32]*ringbuffer.Buffer[Frame])
	m.states.Reset()
	m.lastFSM = 0
}

// FramesByID returns all captured frames for the given arbitration ID
// since the given timestamp.
func (m *CANMonitor) FramesByID(id uint32, since time.Time) []ringbuffer.Entry[Frame] {
	buf, ok := m.byID[id]
	if !ok {
		return nil
	}
	return buf.Since(since)
}

// StatesSince returns every distinct vehicle-state transition recorded
// since the given timestamp.
func (m *CANMonitor) StatesSince(since time.Time) []ringbuffer.Entry[VehicleState] {
	return m.states.Since(since)
}

// WaitForState blocks (polling every 20ms) until the vehicle reaches want,
// or timeout elapses. Returns false on timeout.
func (m *CANMonitor) WaitForState(want VehicleState, timeout time.Duration) bool {
	return m.waitUntil(timeout, func() bool {
		last, ok := m.states.Latest()
		return ok && last.Value == want
	})
}

// WaitForCANMessage blocks until at least one frame with the given
// arbitration ID arrives after since, or timeout elapses.
func (m *CANMonitor) WaitForCANMessage(id uint32, since time.Time, timeout time.Duration) (Frame, bool) {
	var found Frame
	ok := m.waitUntil(timeout, func() bool {
		entries := m.FramesByID(id, since)
		if len(entries) == 0 {
			return false
		}
		found = entries[len(entries)-1].Value
		return true
	})
	return found, ok
}

// WaitForMotorRPMZero blocks until the most recent Motor_Status frame
// reports RPM 0, or timeout elapses.
func (m *CANMonitor) WaitForMotorRPMZero(since time.Time, timeout time.Duration) bool {
	return m.waitUntil(timeout, func() bool {
		entries := m.FramesByID(IDMotorStatus, since)
		if len(entries) == 0 {
			return false
		}
		last := entries[len(entries)-1].Value
		status, err := DecodeMotorStatus(last.Data[:last.DLC])
		return err == nil && status.RPM == 0
	})
}

func (m *CANMonitor) waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return cond()
		}
		time.Sleep(20 * time.Millisecond)
	}
}
