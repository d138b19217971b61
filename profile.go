package cansil

import "gopkg.in/ini.v1"

// Profile holds the tunable physical constants for every actuator model,
// loaded from an INI file so a test rig can retune the simulated plant
// (e.g. a weaker battery, a slower steering servo) without touching code.
type Profile struct {
	Motor struct {
		NoLoadRPM      float64
		StallCurrentMA float64
		RThermal       float64
		RCool          float64
		TAmbient       float64
	}
	Steering struct {
		RateLimitDegS float64
		MinAngle      float64
		MaxAngle      float64
	}
	Brake struct {
		RateLimitPctS float64
	}
	Battery struct {
		VNominalMV    int
		RInternalMOhm int
	}
	Lidar struct {
		DistanceCM     int
		SignalStrength int
	}
}

// DefaultProfile mirrors the tuned defaults baked into each actuator's
// New*() constructor.
func DefaultProfile() Profile {
	p := Profile{}
	p.Motor.NoLoadRPM = 4000.0
	p.Motor.StallCurrentMA = 25000.0
	p.Motor.RThermal = 0.008
	p.Motor.RCool = 200.0
	p.Motor.TAmbient = 25.0
	p.Steering.RateLimitDegS = 30.0
	p.Steering.MinAngle = -45.0
	p.Steering.MaxAngle = 45.0
	p.Brake.RateLimitPctS = 200.0
	p.Battery.VNominalMV = 12600
	p.Battery.RInternalMOhm = 50
	p.Lidar.DistanceCM = 500
	p.Lidar.SignalStrength = 8000
	return p
}

// LoadProfile reads an INI file and overlays any keys it sets on top of
// DefaultProfile; sections and keys absent from the file keep their
// default. An empty path returns the defaults unchanged; a non-empty path
// that cannot be loaded (including a missing file) is an error.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return p, err
	}

	motor := cfg.Section("motor")
	overlayFloat(motor, "no_load_rpm", &p.Motor.NoLoadRPM)
	overlayFloat(motor, "stall_current_ma", &p.Motor.StallCurrentMA)
	overlayFloat(motor, "r_thermal", &p.Motor.RThermal)
	overlayFloat(motor, "r_cool", &p.Motor.RCool)
	overlayFloat(motor, "t_ambient", &p.Motor.TAmbient)

	steering := cfg.Section("steering")
	overlayFloat(steering, "rate_limit_deg_s", &p.Steering.RateLimitDegS)
	overlayFloat(steering, "min_angle", &p.Steering.MinAngle)
	overlayFloat(steering, "max_angle", &p.Steering.MaxAngle)

	brake := cfg.Section("brake")
	overlayFloat(brake, "rate_limit_pct_s", &p.Brake.RateLimitPctS)

	battery := cfg.Section("battery")
	overlayInt(battery, "v_nominal_mv", &p.Battery.VNominalMV)
	overlayInt(battery, "r_internal_mohm", &p.Battery.RInternalMOhm)

	lidar := cfg.Section("lidar")
	overlayInt(lidar, "distance_cm", &p.Lidar.DistanceCM)
	overlayInt(lidar, "signal_strength", &p.Lidar.SignalStrength)

	return p, nil
}

func overlayFloat(sec *ini.Section, key string, dst *float64) {
	if !sec.HasKey(key) {
		return
	}
	if v, err := sec.Key(key).Float64(); err == nil {
		*dst = v
	}
}

func overlayInt(sec *ini.Section, key string, dst *int) {
	if !sec.HasKey(key) {
		return
	}
	if v, err := sec.Key(key).Int(); err == nil {
		*dst = v
	}
}

// ApplyMotor overwrites m's tunable fields with the profile's values, leaving
// runtime state (RPM, temperature, fault flags, ...) untouched.
func (p Profile) ApplyMotor(m *Motor) {
	m.NoLoadRPM = p.Motor.NoLoadRPM
	m.StallCurrentMA = p.Motor.StallCurrentMA
	m.RThermal = p.Motor.RThermal
	m.RCool = p.Motor.RCool
	m.TAmbient = p.Motor.TAmbient
}

// ApplySteering overwrites s's tunable fields from the profile.
func (p Profile) ApplySteering(s *Steering) {
	s.RateLimitDegS = p.Steering.RateLimitDegS
	s.MinAngle = p.Steering.MinAngle
	s.MaxAngle = p.Steering.MaxAngle
}

// ApplyBrake overwrites b's tunable fields from the profile.
func (p Profile) ApplyBrake(b *Brake) {
	b.RateLimitPctS = p.Brake.RateLimitPctS
}

// ApplyBattery overwrites bat's tunable fields from the profile.
func (p Profile) ApplyBattery(bat *Battery) {
	bat.VNominalMV = p.Battery.VNominalMV
	bat.RInternalMOhm = p.Battery.RInternalMOhm
}

// ApplyLidar overwrites l's tunable fields from the profile.
func (p Profile) ApplyLidar(l *Lidar) {
	l.DistanceCM = p.Lidar.DistanceCM
	l.SignalStrength = p.Lidar.SignalStrength
}
