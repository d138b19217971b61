package cansil

import (
	"os"
	"strconv"
	"time"
)

// Config is the environment-derived configuration shared by all three
// binaries, per spec §6.
type Config struct {
	CANChannel      string
	MQTTHost        string
	MQTTPort        int
	FaultPort       int
	WSPort          int
	LockDurationSec int
}

// LoadConfig reads Config from the process environment, applying the
// spec's defaults for anything unset.
func LoadConfig() Config {
	return Config{
		CANChannel:      envString("CAN_CHANNEL", "vcan0"),
		MQTTHost:        envString("MQTT_HOST", "localhost"),
		MQTTPort:        envInt("MQTT_PORT", 1883),
		FaultPort:       envInt("FAULT_PORT", 8091),
		WSPort:          envInt("WS_PORT", 8080),
		LockDurationSec: envInt("LOCK_DURATION_SEC", 300),
	}
}

// LockDuration returns LockDurationSec as a time.Duration.
func (c Config) LockDuration() time.Duration {
	return time.Duration(c.LockDurationSec) * time.Second
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
