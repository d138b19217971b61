package cansil

import (
	"time"

	"github.com/vectorlane/cansil/internal/slidingwindow"
)

// Brake is a rate-limited servo model tracking a commanded percentage,
// with a sliding-window fault detector for large command swings.
type Brake struct {
	RateLimitPctS float64

	ActualPct      float64
	CommandedPct   float64
	ServoCurrentMA int
	Fault          bool

	swings      *slidingwindow.Counter
	lastCmd     float64
	haveLastCmd bool
}

// NewBrake returns a brake model with the tuned default parameters.
func NewBrake() *Brake {
	return &Brake{
		RateLimitPctS: 200.0,
		swings:        slidingwindow.New(500 * time.Millisecond),
	}
}

// RecordCommand latches a newly received commanded percentage (clamped)
// and drives the swing fault detector at sender cadence: any |delta| >=
// 50% counts as a swing.
func (b *Brake) RecordCommand(pct float64, now time.Time) {
	pct = clampFloat(pct, 0, 100)
	if b.haveLastCmd {
		if absFloat(pct-b.lastCmd) >= 50.0 {
			if b.swings.Record(now) >= 4 {
				b.Fault = true
			}
		}
	}
	b.lastCmd = pct
	b.haveLastCmd = true
	b.CommandedPct = pct
}

// ApplyFloor raises CommandedPct to minPct if it currently falls short.
// Used by the Plant to enforce the LIMP ">=30% brake" rule.
func (b *Brake) ApplyFloor(minPct float64) {
	if b.CommandedPct < minPct {
		b.CommandedPct = minPct
	}
}

// ForceCommand overrides the commanded percentage directly, bypassing
// the swing fault detector. Used by the Plant to force 100% brake in
// SAFE_STOP.
func (b *Brake) ForceCommand(pct float64) {
	b.CommandedPct = clampFloat(pct, 0, 100)
}

// Update advances the servo toward CommandedPct by dt seconds at the
// configured rate limit.
func (b *Brake) Update(dt float64) {
	if dt <= 0 || dt > 1.0 {
		dt = 0.01
	}
	error := b.CommandedPct - b.ActualPct
	maxStep := b.RateLimitPctS * dt
	switch {
	case absFloat(error) <= maxStep:
		b.ActualPct = b.CommandedPct
	case error > 0:
		b.ActualPct += maxStep
	default:
		b.ActualPct -= maxStep
	}
	b.ServoCurrentMA = clampInt(int(absFloat(error)*15.0), 0, 3000)
}

// ClearFault resets the latched swing fault. Only called on an explicit
// E-Stop-clear / reset command.
func (b *Brake) ClearFault() {
	b.Fault = false
	b.swings.Reset()
	b.haveLastCmd = false
}

// PositionInt returns the clamped integer actual position (0-100).
func (b *Brake) PositionInt() int { return clampInt(int(b.ActualPct), 0, 100) }
