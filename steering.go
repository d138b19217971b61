package cansil

import (
	"time"

	"github.com/vectorlane/cansil/internal/slidingwindow"
)

// Steering is a rate-limited servo model tracking a commanded angle, with
// a sliding-window fault detector for rapid direction reversals.
type Steering struct {
	RateLimitDegS float64
	MinAngle      float64
	MaxAngle      float64

	ActualAngle    float64
	CommandedAngle float64
	ServoCurrentMA int
	Fault          bool

	reversals   *slidingwindow.Counter
	lastCmd     float64
	lastDelta   float64
	haveLastCmd bool
}

// NewSteering returns a steering model with the tuned default parameters.
func NewSteering() *Steering {
	return &Steering{
		RateLimitDegS: 30.0,
		MinAngle:      -45.0,
		MaxAngle:      45.0,
		reversals:     slidingwindow.New(500 * time.Millisecond),
	}
}

// RecordCommand latches a newly received commanded angle (clamped) and
// drives the direction-reversal fault detector at sender cadence, so a
// fast injection burst (e.g. 5ms apart) is never lost to the 10ms tick.
func (s *Steering) RecordCommand(angleDeg float64, now time.Time) {
	angleDeg = clampFloat(angleDeg, s.MinAngle, s.MaxAngle)
	if s.haveLastCmd {
		delta := angleDeg - s.lastCmd
		if absFloat(delta) > 1.0 {
			if s.haveLastDelta() && signOf(delta) != signOf(s.lastDelta) {
				if s.reversals.Record(now) >= 4 {
					s.Fault = true
				}
			}
			s.lastDelta = delta
		}
	}
	s.lastCmd = angleDeg
	s.haveLastCmd = true
	s.CommandedAngle = angleDeg
}

func (s *Steering) haveLastDelta() bool { return s.lastDelta != 0 }

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func signOf(v float64) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

// ForceCommand overrides the commanded angle directly, bypassing the
// reversal fault detector. Used by the Plant to zero steering in
// SAFE_STOP.
func (s *Steering) ForceCommand(angleDeg float64) {
	s.CommandedAngle = clampFloat(angleDeg, s.MinAngle, s.MaxAngle)
}

// Update advances the servo toward CommandedAngle by dt seconds at the
// configured rate limit.
func (s *Steering) Update(dt float64) {
	if dt <= 0 || dt > 1.0 {
		dt = 0.01
	}
	error := s.CommandedAngle - s.ActualAngle
	maxStep := s.RateLimitDegS * dt
	switch {
	case absFloat(error) <= maxStep:
		s.ActualAngle = s.CommandedAngle
	case error > 0:
		s.ActualAngle += maxStep
	default:
		s.ActualAngle -= maxStep
	}
	s.ServoCurrentMA = clampInt(int(absFloat(error)*20.0), 0, 2550)
}

// ClearFault resets the latched reversal fault. Only called on an
// explicit E-Stop-clear / reset command.
func (s *Steering) ClearFault() {
	s.Fault = false
	s.reversals.Reset()
	s.haveLastCmd = false
	s.lastDelta = 0
}

// ActualRaw returns the wire-scaled actual angle: (angle+45)/0.01.
func (s *Steering) ActualRaw() int { return int((s.ActualAngle + 45.0) / 0.01) }

// CommandedRaw returns the wire-scaled commanded angle.
func (s *Steering) CommandedRaw() int { return int((s.CommandedAngle + 45.0) / 0.01) }
