package cansil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlant() *Plant {
	bus := NewVirtualBus("127.0.0.1:0")
	return NewPlant(bus, nil)
}

func TestPlantBootsToRunAfterStartupTicks(t *testing.T) {
	p := newTestPlant()
	now := time.Unix(0, 0)
	for i := 0; i < startupTicksToRun; i++ {
		p.runOneTick(now.Add(time.Duration(i) * tickPeriod))
	}
	assert.Equal(t, StateRun, p.FSM.State)
}

func TestPlantEStopForcesSafeStop(t *testing.T) {
	p := newTestPlant()
	now := time.Unix(0, 0)
	for i := 0; i < startupTicksToRun; i++ {
		p.runOneTick(now.Add(time.Duration(i) * tickPeriod))
	}
	p.handleEStop(true)
	p.runOneTick(now)
	assert.Equal(t, StateSafeStop, p.FSM.State)
	assert.Equal(t, 0.0, p.Steering.CommandedAngle)
}

func TestPlantDueSlotsScheduling(t *testing.T) {
	assert.Contains(t, dueSlots(0), slot1000ms)
	assert.NotContains(t, dueSlots(1), slot20ms)
	assert.Contains(t, dueSlots(10), slot100ms)
}

func TestPlantDTCFiresOnceUntilCleared(t *testing.T) {
	p := newTestPlant()
	p.Motor.Overcurrent = true
	p.checkAndSendDTCs()
	assert.True(t, p.dtcs.Active(DTCOvercurrent))
	_, fresh := p.dtcs.Raise(DTCOvercurrent, ECURZC)
	assert.False(t, fresh)
}

func TestPlantResetWhileAlreadyInactiveClearsFaults(t *testing.T) {
	p := newTestPlant()
	now := time.Unix(0, 0)
	for i := 0; i < startupTicksToRun; i++ {
		p.runOneTick(now.Add(time.Duration(i) * tickPeriod))
	}
	p.Motor.Overcurrent = true
	p.checkAndSendDTCs()
	require.True(t, p.dtcs.Active(DTCOvercurrent))

	p.handleEStop(false)

	assert.False(t, p.dtcs.Active(DTCOvercurrent))
}

func TestPlantBatteryDTCReclearsWhenVoltageRecovers(t *testing.T) {
	p := newTestPlant()
	p.Battery.VoltageMV = 8000
	p.checkAndSendDTCs()
	assert.True(t, p.dtcs.Active(DTCBatteryUV))

	p.Battery.VoltageMV = 12600
	p.checkAndSendDTCs()
	assert.False(t, p.dtcs.Active(DTCBatteryUV))

	p.Battery.VoltageMV = 8000
	_, fresh := p.dtcs.Raise(DTCBatteryUV, ECURZC)
	assert.True(t, fresh, "DTC must be able to re-fire after the battery recovers and drops again")
}
