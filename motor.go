package cansil

// Motor is a first-order DC motor model with thermal dynamics, fed by
// Torque_Request frames and advanced once per Plant tick.
//
//	dw/dt  ~= (target_rpm - rpm) / tau                  (rpm, Euler)
//	current = stall_current * duty * (1 - rpm/no_load)  (A)
//	dT/dt   = (I^2*R_thermal - (T-T_ambient)/R_cool)     (thermal, scaled 10x)
type Motor struct {
	NoLoadRPM     float64
	StallCurrentMA float64
	RThermal      float64
	RCool         float64
	TAmbient      float64

	RPM         float64
	CurrentMA   float64
	TempC       float64
	Direction   uint8 // 0=stop, 1=fwd, 2=rev
	Enabled     bool
	DutyPct     float64
	Overcurrent bool
	Overtemp    bool
	Stall       bool
	HWDisabled  bool
}

// NewMotor returns a motor initialized with the tuned default parameters.
func NewMotor() *Motor {
	return &Motor{
		NoLoadRPM:      4000.0,
		StallCurrentMA: 25000.0,
		RThermal:       0.008,
		RCool:          200.0,
		TAmbient:       25.0,
		TempC:          25.0,
	}
}

// RecordCommand applies a Torque_Request frame's duty/direction. Motor has
// no sliding-window fault detector (only steering and brake do); the
// command is simply latched for the next Update.
func (m *Motor) RecordCommand(dutyPct uint8, direction uint8) {
	m.DutyPct = clampFloat(float64(dutyPct), 0, 100)
	m.Direction = direction & 0x03
}

// Update advances motor physics by dt (already clamped to [1ms,1000ms] by
// the caller's tick loop; out-of-range dt here is replaced with 10ms as a
// defensive fallback matching the numeric-semantics rule).
func (m *Motor) Update(dt float64) {
	if dt < 0.001 || dt > 1.0 {
		dt = 0.01
	}

	if m.Direction == 0 || m.DutyPct < 1.0 {
		m.Enabled = false
	} else {
		m.Enabled = !m.HWDisabled
	}

	if m.Enabled && !m.Stall {
		targetRPM := m.NoLoadRPM * (m.DutyPct / 100.0)
		tau := 0.3
		m.RPM += (targetRPM - m.RPM) * (dt / tau)
	} else {
		tau := 0.5
		m.RPM *= clampFloat(1.0-dt/tau, 0, 1)
		if m.RPM < 1.0 {
			m.RPM = 0
		}
	}

	if m.Enabled {
		loadFactor := clampFloat(1.0-(m.RPM/m.NoLoadRPM), 0, 1)
		m.CurrentMA = m.StallCurrentMA * (m.DutyPct / 100.0) * loadFactor
	} else {
		tau := 0.1
		m.CurrentMA *= clampFloat(1.0-dt/tau, 0, 1)
	}

	heatInput := (m.CurrentMA/1000.0)*(m.CurrentMA/1000.0) * m.RThermal
	heatLoss := (m.TempC - m.TAmbient) / m.RCool
	m.TempC += (heatInput - heatLoss) * dt * 10.0

	if m.CurrentMA > 20000.0 {
		m.Overcurrent = true
	}
	if m.TempC > 100.0 {
		m.Overtemp = true
	}
}

// ApplyDutyCap reduces DutyPct to maxDuty if it currently exceeds it.
// Called by the Plant to enforce the DEGRADED/LIMP/SAFE_STOP duty caps
// ahead of the physics tick; the actuator itself has no notion of
// vehicle state.
func (m *Motor) ApplyDutyCap(maxDuty float64) {
	if m.DutyPct > maxDuty {
		m.DutyPct = maxDuty
	}
}

// InjectOvercurrent forces an overcurrent condition (used by fault
// injector scenarios driving the model directly, e.g. in tests).
func (m *Motor) InjectOvercurrent(currentMA float64) {
	m.CurrentMA = currentMA
	m.Overcurrent = true
}

// InjectStall latches a stall fault, zeroing RPM.
func (m *Motor) InjectStall() {
	m.Stall = true
	m.RPM = 0
}

// ResetFaults clears all latched motor fault flags. Only ever called on an
// explicit E-Stop-clear / reset command — never spontaneously.
func (m *Motor) ResetFaults() {
	m.Stall = false
	m.Overcurrent = false
	m.Overtemp = false
	m.HWDisabled = false
}

func (m *Motor) TempCInt() int {
	return clampInt(int(m.TempC), -40, 215)
}

func (m *Motor) RPMInt() int {
	return clampInt(int(m.RPM), 0, 10000)
}

func (m *Motor) CurrentMAInt() int {
	return clampInt(int(m.CurrentMA), 0, 30000)
}
