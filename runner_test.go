package cansil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFaultClient struct {
	triggered []string
	resets    int
	failNext  error
}

func (f *fakeFaultClient) TriggerScenario(name string) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.triggered = append(f.triggered, name)
	return nil
}

func (f *fakeFaultClient) Reset() error {
	f.resets++
	return nil
}

func TestScenarioExecutorRunsStepsAndVerdicts(t *testing.T) {
	canMon, bus := newTestCANMonitor(t)

	brokerMon := NewBrokerMonitor(&fakeBrokerSub{})
	fault := &fakeFaultClient{}

	exec := NewScenarioExecutor(canMon, brokerMon, fault)

	counters := NewAliveCounters()
	go func() {
		time.Sleep(10 * time.Millisecond)
		payload, _ := EncodeVehicleState(counters, VehicleStateFrame{State: uint8(StateSafeStop)})
		_ = bus.Send(Frame{ID: IDVehicleState, DLC: 8, Data: payload})
	}()

	s := Scenario{
		ID:   "test-scenario",
		Name: "test",
		Setup: []Step{
			{Action: "reset"},
		},
		Steps: []Step{
			{Action: "inject_scenario", Name: "overcurrent"},
			{Action: "wait_state", State: "SAFE_STOP", Timeout: 1},
		},
		Verdicts: []VerdictDef{
			{Type: "vehicle_state", Expected: "SAFE_STOP", WithinMS: 500},
		},
		TimeoutSec: 5,
	}

	result := exec.Execute(s)
	require.Empty(t, result.Error)
	assert.True(t, result.Passed)
	assert.Equal(t, 1, fault.resets)
	assert.Equal(t, []string{"overcurrent"}, fault.triggered)
	require.Len(t, result.Verdicts, 1)
	assert.True(t, result.Verdicts[0].Passed)
}

func TestScenarioExecutorSetupFailureShortCircuits(t *testing.T) {
	canMon, _ := newTestCANMonitor(t)
	brokerMon := NewBrokerMonitor(&fakeBrokerSub{})
	fault := &fakeFaultClient{failNext: errors.New("boom")}

	exec := NewScenarioExecutor(canMon, brokerMon, fault)
	s := Scenario{
		ID:    "broken",
		Name:  "broken setup",
		Setup: []Step{{Action: "inject_scenario", Name: "whatever"}},
	}
	result := exec.Execute(s)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "setup failed")
}

func TestRunStepDockerActionsWrapFailures(t *testing.T) {
	canMon, _ := newTestCANMonitor(t)
	brokerMon := NewBrokerMonitor(&fakeBrokerSub{})
	exec := NewScenarioExecutor(canMon, brokerMon, &fakeFaultClient{})

	err := exec.runStep(Step{Action: "docker_stop", Container: "cansil-test-nonexistent"}, time.Second)
	assert.Error(t, err)

	err = exec.runStep(Step{Action: "docker_start", Container: "cansil-test-nonexistent"}, time.Second)
	assert.Error(t, err)
}

func TestScenarioExecutorUnknownStepAction(t *testing.T) {
	canMon, _ := newTestCANMonitor(t)
	brokerMon := NewBrokerMonitor(&fakeBrokerSub{})
	fault := &fakeFaultClient{}

	exec := NewScenarioExecutor(canMon, brokerMon, fault)
	s := Scenario{
		ID:    "bogus",
		Name:  "bogus step",
		Steps: []Step{{Action: "not_a_real_action"}},
	}
	result := exec.Execute(s)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "step execution failed")
}
