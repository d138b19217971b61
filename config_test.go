package cansil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"CAN_CHANNEL", "MQTT_HOST", "MQTT_PORT", "FAULT_PORT", "WS_PORT", "LOCK_DURATION_SEC"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "vcan0", cfg.CANChannel)
	assert.Equal(t, "localhost", cfg.MQTTHost)
	assert.Equal(t, 1883, cfg.MQTTPort)
	assert.Equal(t, 8091, cfg.FaultPort)
	assert.Equal(t, 8080, cfg.WSPort)
	assert.Equal(t, 300, cfg.LockDurationSec)
	assert.Equal(t, 300*time.Second, cfg.LockDuration())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CAN_CHANNEL", "can1")
	t.Setenv("MQTT_PORT", "1884")
	t.Setenv("LOCK_DURATION_SEC", "60")

	cfg := LoadConfig()
	assert.Equal(t, "can1", cfg.CANChannel)
	assert.Equal(t, 1884, cfg.MQTTPort)
	assert.Equal(t, 60*time.Second, cfg.LockDuration())
}

func TestLoadConfigIgnoresUnparseableInt(t *testing.T) {
	t.Setenv("MQTT_PORT", "not-a-number")
	cfg := LoadConfig()
	assert.Equal(t, 1883, cfg.MQTTPort)
}
