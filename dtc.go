package cansil

// DTC is a diagnostic trouble code record broadcast on the bus when a
// latched fault first becomes active.
type DTC struct {
	Code            uint16
	Status          uint8
	ECUSource       uint8
	OccurrenceCount uint8
	FreezeFrame     [3]uint8
}

// DTCTracker deduplicates DTC emission: a code fires at most once per
// activation, tracked via an active set, with a monotonically
// incrementing per-code occurrence counter that survives across
// activations (so repeated overcurrent events across a test run are
// distinguishable in the report).
type DTCTracker struct {
	active     map[uint16]bool
	occurrence map[uint16]uint8
}

// NewDTCTracker returns an empty tracker.
func NewDTCTracker() *DTCTracker {
	return &DTCTracker{active: make(map[uint16]bool), occurrence: make(map[uint16]uint8)}
}

// Raise reports code as currently active. It returns (dtc, true) the
// first time a code becomes active; subsequent calls while still active
// return (DTC{}, false).
func (t *DTCTracker) Raise(code uint16, ecuSource uint8) (DTC, bool) {
	if t.active[code] {
		return DTC{}, false
	}
	t.active[code] = true
	count := t.occurrence[code] + 1
	t.occurrence[code] = count
	return DTC{Code: code, Status: 0x01, ECUSource: ecuSource, OccurrenceCount: count}, true
}

// ClearAll clears every active DTC, allowing them to fire again on next
// activation. Called only on an explicit E-Stop-clear / reset.
func (t *DTCTracker) ClearAll() {
	t.active = make(map[uint16]bool)
}

// Clear clears one code, allowing it to fire again once its underlying
// fault recurs. Used for non-latched faults (e.g. battery undervoltage)
// that can clear on their own, without an E-Stop/reset cycle.
func (t *DTCTracker) Clear(code uint16) {
	delete(t.active, code)
}

// Active reports whether code is currently latched active.
func (t *DTCTracker) Active(code uint16) bool {
	return t.active[code]
}
