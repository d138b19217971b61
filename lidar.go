package cansil

// Lidar is a steady-state distance sensor model: it holds its value
// between explicit injections rather than evolving under its own physics.
type Lidar struct {
	DistanceCM     int
	SignalStrength int
	Fault          bool
}

// NewLidar returns a lidar model with a clear, full-strength default
// reading.
func NewLidar() *Lidar {
	return &Lidar{DistanceCM: 500, SignalStrength: 8000}
}

// RecordCommand applies an externally-injected distance reading
// (clamped to [0, 1200]). Lidar has no RX frame of its own in the
// catalogue; this entry point exists for fault-injector scenarios and
// tests that drive the sensor model directly.
func (l *Lidar) RecordCommand(distanceCM int) {
	l.DistanceCM = clampInt(distanceCM, 0, 1200)
}

// InjectFault forces a sensor fault with zeroed signal strength.
func (l *Lidar) InjectFault() {
	l.Fault = true
	l.SignalStrength = 0
}

// Reset restores the default clear reading.
func (l *Lidar) Reset() {
	l.DistanceCM = 500
	l.SignalStrength = 8000
	l.Fault = false
}

// Update is a no-op: the lidar is steady-state and only changes via
// RecordCommand/InjectFault/Reset.
func (l *Lidar) Update(dt float64) {}

// ObstacleZone classifies the current reading: 0=emergency(<30cm),
// 1=braking(<100cm), 2=warning(<300cm), 3=clear.
func (l *Lidar) ObstacleZone() uint8 {
	switch {
	case l.DistanceCM < 30:
		return 0
	case l.DistanceCM < 100:
		return 1
	case l.DistanceCM < 300:
		return 2
	default:
		return 3
	}
}
