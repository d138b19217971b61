package cansil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMotorApproachesTargetRPM(t *testing.T) {
	m := NewMotor()
	m.RecordCommand(50, 1)
	for i := 0; i < 300; i++ {
		m.Update(0.01)
	}
	assert.InDelta(t, 2000.0, m.RPM, 50)
	assert.False(t, m.Overcurrent)
}

func TestMotorOvercurrentWhenStalledAtHighDuty(t *testing.T) {
	m := NewMotor()
	m.InjectStall()
	m.RecordCommand(95, 1)
	for i := 0; i < 50; i++ {
		m.Update(0.01)
	}
	assert.True(t, m.CurrentMA > 20000 || m.Stall)
}

func TestMotorResetFaultsClearsLatches(t *testing.T) {
	m := NewMotor()
	m.InjectOvercurrent(28000)
	m.InjectStall()
	m.ResetFaults()
	assert.False(t, m.Overcurrent)
	assert.False(t, m.Stall)
}

func TestSteeringRateLimited(t *testing.T) {
	s := NewSteering()
	s.RecordCommand(45, time.Unix(0, 0))
	s.Update(0.01) // 10ms * 30deg/s = 0.3deg max step
	assert.InDelta(t, 0.3, s.ActualAngle, 0.01)
}

func TestSteeringFaultOnRapidReversals(t *testing.T) {
	s := NewSteering()
	base := time.Unix(0, 0)
	for i := 0; i < 6; i++ {
		angle := 40.0
		if i%2 == 1 {
			angle = -40.0
		}
		s.RecordCommand(angle, base.Add(time.Duration(i)*10*time.Millisecond))
	}
	assert.True(t, s.Fault)
}

func TestSteeringClearFault(t *testing.T) {
	s := NewSteering()
	s.Fault = true
	s.ClearFault()
	assert.False(t, s.Fault)
}

func TestBrakeFaultOnRapidSwings(t *testing.T) {
	b := NewBrake()
	base := time.Unix(0, 0)
	for i := 0; i < 8; i++ {
		pct := 100.0
		if i%2 == 1 {
			pct = 0.0
		}
		b.RecordCommand(pct, base.Add(time.Duration(i)*10*time.Millisecond))
	}
	assert.True(t, b.Fault)
}

func TestBrakeNoFaultOnSmallChanges(t *testing.T) {
	b := NewBrake()
	base := time.Unix(0, 0)
	for i := 0; i < 8; i++ {
		b.RecordCommand(float64(i), base.Add(time.Duration(i)*10*time.Millisecond))
	}
	assert.False(t, b.Fault)
}

func TestBatteryVoltageSagsUnderLoad(t *testing.T) {
	b := NewBattery()
	now := time.Unix(0, 0)
	b.Update(20000, 0.01, now)
	assert.Less(t, b.VoltageMV, 12600)
}

func TestBatteryOverrideHeldThenExpires(t *testing.T) {
	b := NewBattery()
	now := time.Unix(0, 0)
	b.RecordOverride(9500, 18, 1, now)
	b.Update(0, 0.01, now.Add(time.Second))
	assert.Equal(t, 9500, b.VoltageMV)
	assert.Equal(t, uint8(1), b.Status())
	b.Update(0, 0.01, now.Add(9*time.Second))
	assert.NotEqual(t, 9500, b.VoltageMV)
}

func TestLidarObstacleZones(t *testing.T) {
	l := NewLidar()
	l.RecordCommand(20)
	assert.Equal(t, uint8(0), l.ObstacleZone())
	l.RecordCommand(500)
	assert.Equal(t, uint8(3), l.ObstacleZone())
}

func TestClampIdempotence(t *testing.T) {
	once := clampFloat(150, 0, 100)
	twice := clampFloat(once, 0, 100)
	assert.Equal(t, once, twice)
}
