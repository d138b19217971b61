package cansil

// Vehicle operating states, in decreasing severity order: SAFE_STOP >
// LIMP > DEGRADED > RUN > INIT.
type VehicleState uint8

const (
	StateInit VehicleState = iota
	StateRun
	StateDegraded
	StateLimp
	StateSafeStop
	StateShutdown
)

func (s VehicleState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRun:
		return "RUN"
	case StateDegraded:
		return "DEGRADED"
	case StateLimp:
		return "LIMP"
	case StateSafeStop:
		return "SAFE_STOP"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Severity returns the state's position on the safety-priority order
// RUN < DEGRADED < LIMP < SAFE_STOP, used by the fault_priority verdict.
func (s VehicleState) Severity() int {
	switch s {
	case StateRun:
		return 0
	case StateDegraded:
		return 1
	case StateLimp:
		return 2
	case StateSafeStop:
		return 3
	default:
		return -1
	}
}

// startupTicksToRun is the number of 10ms ticks (3s) of uninterrupted
// INIT execution required before transitioning to RUN.
const startupTicksToRun = 300

// VehicleFSM is the hierarchical vehicle state machine. Process must be
// called exactly once per tick; it is a pure function of its inputs (spec
// §8's state-machine-determinism property).
type VehicleFSM struct {
	State        VehicleState
	startupTicks int
}

// NewVehicleFSM returns a machine starting in INIT.
func NewVehicleFSM() *VehicleFSM {
	return &VehicleFSM{State: StateInit}
}

// Inputs bundles every signal the state machine's transition rule
// depends on, so Process stays a pure function of (state, inputs) per the
// "plant passes scalars, not a reference" redesign guidance.
type Inputs struct {
	EStopActive    bool
	MotorFault     bool // overcurrent, hw_disabled, or stall
	SteerFault     bool
	BrakeFault     bool
	BatteryStatus  uint8
}

// Process advances the state machine by exactly one tick and returns the
// resulting state. The safety-priority order is evaluated top-down:
// SAFE_STOP > LIMP > DEGRADED > RUN.
func (f *VehicleFSM) Process(in Inputs) VehicleState {
	f.startupTicks++

	faulted := in.MotorFault || in.SteerFault || in.BrakeFault

	switch {
	case in.EStopActive:
		f.State = StateSafeStop

	case f.State == StateRun && faulted:
		f.State = StateSafeStop

	case f.State == StateRun && in.BatteryStatus == 0:
		f.State = StateLimp

	case f.State == StateRun && in.BatteryStatus == 1:
		f.State = StateDegraded

	case (f.State == StateDegraded || f.State == StateLimp) &&
		!faulted && in.BatteryStatus == 2:
		f.State = StateRun

	case f.State == StateSafeStop && !in.EStopActive && !faulted:
		f.State = StateInit
		f.startupTicks = 0

	case f.State == StateInit && f.startupTicks >= startupTicksToRun:
		f.State = StateRun
	}

	return f.State
}
