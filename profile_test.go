package cansil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfileEmptyPathReturnsDefaults(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}

func TestLoadProfileOverlaysOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.ini")
	content := "[motor]\nno_load_rpm = 3000\n\n[battery]\nv_nominal_mv = 11000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, 3000.0, p.Motor.NoLoadRPM)
	assert.Equal(t, 11000, p.Battery.VNominalMV)

	def := DefaultProfile()
	assert.Equal(t, def.Motor.StallCurrentMA, p.Motor.StallCurrentMA)
	assert.Equal(t, def.Steering, p.Steering)
	assert.Equal(t, def.Brake, p.Brake)
	assert.Equal(t, def.Battery.RInternalMOhm, p.Battery.RInternalMOhm)
	assert.Equal(t, def.Lidar, p.Lidar)
}

func TestLoadProfileMissingFileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestProfileApplyMethodsOverwriteTunablesOnly(t *testing.T) {
	p := DefaultProfile()
	p.Motor.NoLoadRPM = 1000
	p.Steering.MaxAngle = 10
	p.Brake.RateLimitPctS = 50
	p.Battery.VNominalMV = 9000
	p.Lidar.DistanceCM = 100

	m := NewMotor()
	m.RPM = 500
	p.ApplyMotor(m)
	assert.Equal(t, 1000.0, m.NoLoadRPM)
	assert.Equal(t, 500.0, m.RPM)

	s := NewSteering()
	p.ApplySteering(s)
	assert.Equal(t, 10.0, s.MaxAngle)

	b := NewBrake()
	p.ApplyBrake(b)
	assert.Equal(t, 50.0, b.RateLimitPctS)

	bat := NewBattery()
	p.ApplyBattery(bat)
	assert.Equal(t, 9000, bat.VNominalMV)

	l := NewLidar()
	p.ApplyLidar(l)
	assert.Equal(t, 100, l.DistanceCM)
}
