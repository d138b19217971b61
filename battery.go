package cansil

import "time"

// Battery is a simple internal-resistance voltage model: V = V_nom -
// I*R_int, with slow SOC drain. It also supports an externally-injected
// override (used by fault-injection scenarios that spoof Battery_Status
// directly) held for up to 8 seconds before reverting to normal physics.
type Battery struct {
	VNominalMV    int
	RInternalMOhm int

	VoltageMV int
	SOCPct    float64

	overrideActive  bool
	overrideExpires time.Time
	overrideVoltage int
	overrideSOC     uint8
	overrideStatus  uint8
}

const batteryOverrideHold = 8 * time.Second

// NewBattery returns a battery model starting at nominal full charge.
func NewBattery() *Battery {
	return &Battery{
		VNominalMV:    12600,
		RInternalMOhm: 50,
		VoltageMV:     12600,
		SOCPct:        100,
	}
}

// RecordOverride latches an externally-injected status for up to 8s.
func (b *Battery) RecordOverride(voltageMV int, socPct, status uint8, now time.Time) {
	b.overrideActive = true
	b.overrideExpires = now.Add(batteryOverrideHold)
	b.overrideVoltage = clampInt(voltageMV, 0, 20000)
	b.overrideSOC = uint8(clampInt(int(socPct), 0, 100))
	b.overrideStatus = status & 0x0F
}

// Update advances the battery model by dt seconds given the motor's
// current draw. If an override is active and unexpired, the injected
// values are held instead of being recomputed from physics.
func (b *Battery) Update(motorCurrentMA float64, dt float64, now time.Time) {
	if b.overrideActive {
		if now.Before(b.overrideExpires) {
			b.VoltageMV = b.overrideVoltage
			b.SOCPct = float64(b.overrideSOC)
			return
		}
		b.overrideActive = false
	}

	dropMV := (motorCurrentMA / 1000.0) * float64(b.RInternalMOhm)
	b.VoltageMV = clampInt(int(float64(b.VNominalMV)-dropMV), 0, 20000)

	energyUsedAh := motorCurrentMA * dt / 3600000.0
	b.SOCPct = clampFloat(b.SOCPct-energyUsedAh*10.0, 0, 100)
}

// Status classifies the current voltage: 0=critical_UV, 1=UV_warn,
// 2=normal, 3=OV_warn, 4=critical_OV.
func (b *Battery) Status() uint8 {
	if b.overrideActive {
		return b.overrideStatus
	}
	switch {
	case b.VoltageMV < 9000:
		return 0
	case b.VoltageMV < 10500:
		return 1
	case b.VoltageMV > 15000:
		return 4
	case b.VoltageMV > 14000:
		return 3
	default:
		return 2
	}
}
