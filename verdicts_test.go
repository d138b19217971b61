package cansil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCANMonitor(t *testing.T) (*CANMonitor, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	mon := NewCANMonitor(bus)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mon.Start(ctx)
	return mon, bus
}

func TestVerdictVehicleStatePasses(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	counters := NewAliveCounters()
	payload, err := EncodeVehicleState(counters, VehicleStateFrame{State: uint8(StateSafeStop)})
	require.NoError(t, err)
	require.NoError(t, bus.Send(Frame{ID: IDVehicleState, DLC: 8, Data: payload}))

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "vehicle_state", Expected: "SAFE_STOP", WithinMS: 200}, time.Time{})
	assert.True(t, ev.Passed)
}

func TestVerdictVehicleStateFailsOnWrongState(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	counters := NewAliveCounters()
	payload, err := EncodeVehicleState(counters, VehicleStateFrame{State: uint8(StateRun)})
	require.NoError(t, err)
	require.NoError(t, bus.Send(Frame{ID: IDVehicleState, DLC: 8, Data: payload}))

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "vehicle_state", Expected: "SAFE_STOP", WithinMS: 100}, time.Time{})
	assert.False(t, ev.Passed)
}

func TestVerdictCANMessageFieldChecks(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	data := EncodeBatteryStatus(BatteryStatusFrame{VoltageMV: 12000, SOCPct: 80, Status: 2})
	require.NoError(t, bus.Send(Frame{ID: IDBatteryStatus, DLC: 4, Data: [8]byte{data[0], data[1], data[2], data[3]}}))

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{
		Type:     "can_message",
		CANID:    "0x303",
		WithinMS: 200,
		FieldChecks: []FieldCheck{
			{Byte: 3, Mask: 0x0F, Expected: 2},
		},
	}, time.Time{})
	assert.True(t, ev.Passed)

	evFail := eval.Evaluate(VerdictDef{
		Type:     "can_message",
		CANID:    "0x303",
		WithinMS: 100,
		FieldChecks: []FieldCheck{
			{Byte: 3, Mask: 0x0F, Expected: 9},
		},
	}, time.Time{})
	assert.False(t, evFail.Passed)
}

func TestVerdictDTCBroadcast(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	data := EncodeDTC(DTC{Code: 0xE401, Status: 0x01, ECUSource: 1, OccurrenceCount: 1})
	require.NoError(t, bus.Send(Frame{ID: IDDTCBroadcast, DLC: 8, Data: data}))

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "dtc_broadcast", DTCCode: "0xE401"}, time.Time{})
	assert.True(t, ev.Passed)

	evMiss := eval.Evaluate(VerdictDef{Type: "dtc_broadcast", DTCCode: "0x1234"}, time.Time{})
	assert.False(t, evMiss.Passed)
}

func TestVerdictBatterySOCMonotonicDecreasing(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	for _, soc := range []uint8{90, 80, 70} {
		data := EncodeBatteryStatus(BatteryStatusFrame{VoltageMV: 12000, SOCPct: soc, Status: 2})
		require.NoError(t, bus.Send(Frame{ID: IDBatteryStatus, DLC: 4, Data: [8]byte{data[0], data[1], data[2], data[3]}}))
		time.Sleep(time.Millisecond)
	}

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "battery_soc_monotonic", Direction: "decreasing"}, time.Time{})
	assert.True(t, ev.Passed)
}

func TestVerdictAliveCounterWrap(t *testing.T) {
	mon, bus := newTestCANMonitor(t)
	counters := NewAliveCounters()
	for i := 0; i < 20; i++ {
		payload, err := EncodeVehicleState(counters, VehicleStateFrame{State: uint8(StateRun)})
		require.NoError(t, err)
		require.NoError(t, bus.Send(Frame{ID: IDVehicleState, DLC: 8, Data: payload}))
	}

	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "alive_counter_wrap", CANIDs: []string{"0x100"}, ExpectedWrapsMin: 1}, time.Time{})
	assert.True(t, ev.Passed)
}

func TestVerdictUnknownTypeFailsClosed(t *testing.T) {
	mon, _ := newTestCANMonitor(t)
	eval := &Evaluator{CAN: mon, Broker: NewBrokerMonitor(&fakeBrokerSub{})}
	ev := eval.Evaluate(VerdictDef{Type: "not_a_real_type"}, time.Time{})
	assert.False(t, ev.Passed)
}

func TestVerdictMQTTMessage(t *testing.T) {
	sub := &fakeBrokerSub{}
	brokerMon := NewBrokerMonitor(sub)
	require.NoError(t, brokerMon.Start("taktflow/#"))
	sub.fn("taktflow/anomaly/score", []byte(`{"score": 0.9}`))

	mon, _ := newTestCANMonitor(t)
	eval := &Evaluator{CAN: mon, Broker: brokerMon}
	ev := eval.Evaluate(VerdictDef{Type: "mqtt_message", Topic: "taktflow/anomaly/score", Field: "score", Expected: "0.9"}, time.Time{})
	assert.True(t, ev.Passed)
}
