package cansil

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FieldCheck is one byte/mask/expected triple within a can_message
// verdict's field_checks list.
type FieldCheck struct {
	Byte     int   `yaml:"byte"`
	Mask     uint8 `yaml:"mask"`
	Expected uint8 `yaml:"expected"`
}

// VerdictDef is one declarative verdict entry from a scenario file. Not
// every field applies to every Type; see verdicts.go for which fields
// each type reads.
type VerdictDef struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	WithinMS    int    `yaml:"within_ms"`

	CANID  string   `yaml:"can_id"`
	CANIDs []string `yaml:"can_ids"`

	FieldChecks []FieldCheck `yaml:"field_checks"`

	Expected      string `yaml:"expected"`
	ExpectedState string `yaml:"expected_state"`

	Topic string `yaml:"topic"`
	Field string `yaml:"field"`

	DTCCode   string `yaml:"dtc_code"`
	ECUSource *uint8 `yaml:"ecu_source"`

	Tolerance int `yaml:"tolerance"`
	MinErrors int `yaml:"min_errors"`

	CounterBits      int `yaml:"counter_bits"`
	ExpectedWrapsMin int `yaml:"expected_wraps_min"`

	IntervalMS        float64 `yaml:"interval_ms"`
	NominalIntervalMS float64 `yaml:"nominal_interval_ms"`
	MaxJitterMS       float64 `yaml:"max_jitter_ms"`

	Direction string `yaml:"direction"`

	MaxTempC           float64 `yaml:"max_temp_c"`
	MaxIdenticalFrames int     `yaml:"max_identical_frames"`
}

// Step is one scenario setup/steps/teardown entry.
type Step struct {
	Action    string  `yaml:"action"`
	Name      string  `yaml:"name"`
	Seconds   float64 `yaml:"seconds"`
	State     string  `yaml:"state"`
	Timeout   float64 `yaml:"timeout"`
	Container string  `yaml:"container"`
	CANID     string  `yaml:"can_id"`
	ECU       string  `yaml:"ecu"`
}

// Scenario is the declarative YAML scenario definition of spec §4.5.
type Scenario struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	Verifies   []string     `yaml:"verifies"`
	ASPICE     string       `yaml:"aspice"`
	Setup      []Step       `yaml:"setup"`
	Steps      []Step       `yaml:"steps"`
	Verdicts   []VerdictDef `yaml:"verdicts"`
	Teardown   []Step       `yaml:"teardown"`
	TimeoutSec int          `yaml:"timeout_sec"`
}

// LoadScenario parses a scenario definition from a YAML file on disk.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, err
	}
	if s.TimeoutSec == 0 {
		s.TimeoutSec = 60
	}
	if s.ASPICE == "" {
		s.ASPICE = "SWE.5"
	}
	return s, nil
}
