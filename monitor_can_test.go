package cansil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is a minimal in-memory Bus: Send loops the frame straight back
// to the registered listener, letting tests drive a CANMonitor without a
// real transport.
type fakeBus struct {
	listener FrameListener
}

func (b *fakeBus) Send(f Frame) error {
	if b.listener != nil {
		b.listener.Handle(f)
	}
	return nil
}
func (b *fakeBus) Subscribe(l FrameListener) { b.listener = l }
func (b *fakeBus) Connect(args ...any) error { return nil }
func (b *fakeBus) Close() error              { return nil }

func TestCANMonitorCapturesFramesByID(t *testing.T) {
	bus := &fakeBus{}
	mon := NewCANMonitor(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)

	counters := NewAliveCounters()
	payload, err := EncodeMotorStatus(counters, MotorStatusFrame{RPM: 1234, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, bus.Send(Frame{ID: IDMotorStatus, DLC: 8, Data: payload}))

	frame, ok := mon.WaitForCANMessage(IDMotorStatus, time.Time{}, time.Second)
	require.True(t, ok)
	status, err := DecodeMotorStatus(frame.Data[:frame.DLC])
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), status.RPM)
}

func TestCANMonitorTracksStateTransitions(t *testing.T) {
	bus := &fakeBus{}
	mon := NewCANMonitor(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)

	counters := NewAliveCounters()
	send := func(state uint8) {
		payload, err := EncodeVehicleState(counters, VehicleStateFrame{State: state})
		require.NoError(t, err)
		require.NoError(t, bus.Send(Frame{ID: IDVehicleState, DLC: 8, Data: payload}))
	}

	send(uint8(StateRun))
	require.True(t, mon.WaitForState(StateRun, time.Second))

	send(uint8(StateDegraded))
	require.True(t, mon.WaitForState(StateDegraded, time.Second))

	transitions := mon.StatesSince(time.Time{})
	require.Len(t, transitions, 2)
	assert.Equal(t, StateRun, transitions[0].Value)
	assert.Equal(t, StateDegraded, transitions[1].Value)
}

func TestCANMonitorWaitForMotorRPMZero(t *testing.T) {
	bus := &fakeBus{}
	mon := NewCANMonitor(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)

	counters := NewAliveCounters()
	payload, err := EncodeMotorStatus(counters, MotorStatusFrame{RPM: 0})
	require.NoError(t, err)
	require.NoError(t, bus.Send(Frame{ID: IDMotorStatus, DLC: 8, Data: payload}))

	assert.True(t, mon.WaitForMotorRPMZero(time.Time{}, time.Second))
}

func TestCANMonitorResetClearsHistory(t *testing.T) {
	bus := &fakeBus{}
	mon := NewCANMonitor(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)

	counters := NewAliveCounters()
	payload, _ := EncodeMotorStatus(counters, MotorStatusFrame{RPM: 10})
	require.NoError(t, bus.Send(Frame{ID: IDMotorStatus, DLC: 8, Data: payload}))
	_, ok := mon.WaitForCANMessage(IDMotorStatus, time.Time{}, time.Second)
	require.True(t, ok)

	mon.Reset()
	assert.Empty(t, mon.FramesByID(IDMotorStatus, time.Time{}))
}
