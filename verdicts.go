package cansil

import (
	"fmt"
	"strconv"
	"time"
)

// VerdictEvidence is the outcome of evaluating one VerdictDef: a pass/fail
// boolean plus a human-readable explanation, per spec §4.5's "reduces to
// a boolean plus an evidence string".
type VerdictEvidence struct {
	Description string
	Expected    string
	Observed    string
	Passed      bool
	Timestamp   time.Time
	Details     string
}

func fail(desc, expected, observed, details string) VerdictEvidence {
	return VerdictEvidence{Description: desc, Expected: expected, Observed: observed, Passed: false, Timestamp: time.Now(), Details: details}
}

func pass(desc, expected, observed, details string) VerdictEvidence {
	return VerdictEvidence{Description: desc, Expected: expected, Observed: observed, Passed: true, Timestamp: time.Now(), Details: details}
}

func evidence(desc, expected, observed string, passed bool, details string) VerdictEvidence {
	return VerdictEvidence{Description: desc, Expected: expected, Observed: observed, Passed: passed, Timestamp: time.Now(), Details: details}
}

// parseCANID parses a hex or decimal arbitration ID string (e.g. "0x500").
func parseCANID(s string) uint32 {
	v, _ := strconv.ParseUint(s, 0, 32)
	return uint32(v)
}

func parseCANIDs(ss []string) []uint32 {
	out := make([]uint32, len(ss))
	for i, s := range ss {
		out[i] = parseCANID(s)
	}
	return out
}

func vehicleStateByName(name string) (VehicleState, bool) {
	switch name {
	case "INIT":
		return StateInit, true
	case "RUN":
		return StateRun, true
	case "DEGRADED":
		return StateDegraded, true
	case "LIMP":
		return StateLimp, true
	case "SAFE_STOP":
		return StateSafeStop, true
	case "SHUTDOWN":
		return StateShutdown, true
	default:
		return 0, false
	}
}

func withinDuration(ms int) time.Duration {
	if ms <= 0 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}

// Evaluator evaluates VerdictDefs against a CANMonitor and BrokerMonitor.
type Evaluator struct {
	CAN    *CANMonitor
	Broker *BrokerMonitor
}

// Evaluate dispatches on v.Type and returns evidence. Unknown types fail
// closed with an explanatory string, per spec §7: verdict evaluation
// never panics.
func (e *Evaluator) Evaluate(v VerdictDef, observationStart time.Time) VerdictEvidence {
	desc := v.Description
	switch v.Type {
	case "vehicle_state":
		return e.verdictVehicleState(v, desc, observationStart)
	case "can_message":
		return e.verdictCANMessage(v, desc, observationStart)
	case "can_message_absent":
		return e.verdictCANMessageAbsent(v, desc, observationStart)
	case "motor_shutdown":
		return e.verdictMotorShutdown(v, desc, observationStart)
	case "mqtt_message":
		return e.verdictMQTTMessage(v, desc)
	case "dtc_broadcast":
		return e.verdictDTCBroadcast(v, desc, observationStart)
	case "heartbeat_loss":
		return e.verdictHeartbeatLoss(v, desc, observationStart)
	case "motor_rpm_unchanged":
		return e.verdictMotorRPMUnchanged(v, desc, observationStart)
	case "motor_tracking":
		return e.verdictMotorTracking(v, desc, observationStart)
	case "e2e_error_count":
		return e.verdictE2EErrorCount(v, desc)
	case "steering_rate_limit":
		return e.verdictSteeringRateLimit(v, desc, observationStart)
	case "no_active_faults":
		return e.verdictNoActiveFaults(v, desc, observationStart)
	case "dtc_preserved":
		return e.verdictDTCPreserved(v, desc, observationStart)
	case "fault_priority":
		return e.verdictFaultPriority(v, desc, observationStart)
	case "power_derating":
		return e.verdictPowerDerating(v, desc, observationStart)
	case "alive_counter_wrap":
		return e.verdictAliveCounterWrap(v, desc, observationStart)
	case "all_heartbeats_active":
		return e.verdictAllHeartbeatsActive(v, desc, observationStart)
	case "battery_soc_monotonic":
		return e.verdictBatterySOCMonotonic(v, desc, observationStart)
	case "can_timing_jitter":
		return e.verdictCANTimingJitter(v, desc, observationStart)
	case "motor_temp_stable":
		return e.verdictMotorTempStable(v, desc, observationStart)
	case "no_stuck_signals":
		return e.verdictNoStuckSignals(v, desc, observationStart)
	default:
		return fail(fmt.Sprintf("unknown verdict type: %s", v.Type), "N/A", "N/A", fmt.Sprintf("verdict type %q is not supported", v.Type))
	}
}

func (e *Evaluator) verdictVehicleState(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	expected, ok := vehicleStateByName(v.Expected)
	if !ok {
		return fail(desc, v.Expected, "invalid expected state", "")
	}
	reached := e.CAN.WaitForState(expected, withinDuration(v.WithinMS))
	transitions := e.CAN.StatesSince(since)
	seen := false
	names := make([]string, 0, len(transitions))
	for _, t := range transitions {
		names = append(names, t.Value.String())
		if t.Value == expected {
			seen = true
		}
	}
	last, _ := e.CAN.states.Latest()
	passed := reached || seen || last.Value == expected
	return evidence(orDefault(desc, "vehicle state = "+v.Expected), v.Expected, last.Value.String(), passed,
		fmt.Sprintf("transitions observed: %v", names))
}

func (e *Evaluator) verdictCANMessage(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	id := parseCANID(v.CANID)
	frame, ok := e.CAN.WaitForCANMessage(id, since, withinDuration(v.WithinMS))
	if !ok {
		return fail(orDefault(desc, fmt.Sprintf("CAN message 0x%03X received", id)),
			fmt.Sprintf("0x%03X within %dms", id, v.WithinMS), "no message received", "")
	}
	allPass := true
	var details string
	for _, fc := range v.FieldChecks {
		if fc.Byte >= int(frame.DLC) {
			allPass = false
			details += fmt.Sprintf("byte[%d] out of range; ", fc.Byte)
			continue
		}
		actual := frame.Data[fc.Byte] & fc.Mask
		if actual != fc.Expected {
			allPass = false
			details += fmt.Sprintf("byte[%d]&0x%02X: expected=0x%02X got=0x%02X; ", fc.Byte, fc.Mask, fc.Expected, actual)
		}
	}
	return evidence(orDefault(desc, fmt.Sprintf("CAN message 0x%03X field checks", id)),
		"matching fields", fmt.Sprintf("data=% X", frame.Data[:frame.DLC]), allPass, details)
}

func (e *Evaluator) verdictCANMessageAbsent(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	id := parseCANID(v.CANID)
	time.Sleep(withinDuration(v.WithinMS))
	entries := e.CAN.FramesByID(id, since)
	seen := len(entries) > 0
	return evidence(orDefault(desc, fmt.Sprintf("CAN 0x%03X absent", id)),
		fmt.Sprintf("0x%03X not received", id), fmt.Sprintf("received=%v", seen), !seen, "")
}

func (e *Evaluator) verdictMotorShutdown(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	reached := e.CAN.WaitForMotorRPMZero(since, withinDuration(v.WithinMS))
	rpm := e.latestMotorRPM(since)
	return evidence(orDefault(desc, "motor RPM = 0"), "RPM = 0", fmt.Sprintf("RPM = %d", rpm), reached, "")
}

func (e *Evaluator) verdictMQTTMessage(v VerdictDef, desc string) VerdictEvidence {
	entries := e.Broker.Since(v.Topic, time.Time{})
	if len(entries) == 0 {
		return fail(orDefault(desc, fmt.Sprintf("MQTT %s.%s", v.Topic, v.Field)), fmt.Sprintf("%s=%s", v.Field, v.Expected), "no MQTT message received", "")
	}
	latest := entries[len(entries)-1].Value
	actual, ok := FieldPath(latest.Decoded, v.Field)
	passed := ok && fmt.Sprintf("%v", actual) == v.Expected
	return evidence(orDefault(desc, fmt.Sprintf("MQTT %s.%s = %s", v.Topic, v.Field, v.Expected)),
		fmt.Sprintf("%s=%s", v.Field, v.Expected), fmt.Sprintf("%s=%v", v.Field, actual), passed, "topic: "+v.Topic)
}

func (e *Evaluator) verdictDTCBroadcast(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	wantCode := parseCANID(v.DTCCode)
	entries := e.CAN.FramesByID(IDDTCBroadcast, since)
	for _, ent := range entries {
		f := ent.Value
		dtc, err := DecodeDTC(f.Data[:f.DLC])
		if err != nil {
			continue
		}
		if uint32(dtc.Code) != wantCode {
			continue
		}
		if v.ECUSource != nil && dtc.ECUSource != *v.ECUSource {
			continue
		}
		return pass(orDefault(desc, fmt.Sprintf("DTC 0x%04X broadcast", wantCode)),
			fmt.Sprintf("DTC=0x%04X", wantCode), fmt.Sprintf("DTC=0x%04X status=0x%02X source=%d", dtc.Code, dtc.Status, dtc.ECUSource),
			fmt.Sprintf("found in %d DTC frames", len(entries)))
	}
	return fail(orDefault(desc, fmt.Sprintf("DTC 0x%04X broadcast", wantCode)), fmt.Sprintf("DTC=0x%04X", wantCode),
		fmt.Sprintf("not found in %d DTC frames", len(entries)), "")
}

func (e *Evaluator) verdictHeartbeatLoss(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	id := parseCANID(v.CANID)
	initial := len(e.CAN.FramesByID(id, since))
	time.Sleep(withinDuration(v.WithinMS))
	after := len(e.CAN.FramesByID(id, since))
	newCount := after - initial
	return evidence(orDefault(desc, fmt.Sprintf("heartbeat loss on 0x%03X", id)),
		fmt.Sprintf("0 new messages on 0x%03X", id), fmt.Sprintf("%d new messages", newCount), newCount == 0, "")
}

func (e *Evaluator) verdictMotorRPMUnchanged(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	before := e.latestMotorRPM(since)
	time.Sleep(withinDuration(v.WithinMS))
	after := e.latestMotorRPM(since)
	delta := after - before
	if delta < 0 {
		delta = -delta
	}
	tolerance := v.Tolerance
	if tolerance == 0 {
		tolerance = 1
	}
	return evidence(orDefault(desc, "motor RPM unchanged"), fmt.Sprintf("RPM change <= %d", tolerance),
		fmt.Sprintf("RPM %d -> %d (delta=%d)", before, after, delta), delta <= tolerance, "")
}

func (e *Evaluator) verdictMotorTracking(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	deadline := time.Now().Add(withinDuration(v.WithinMS))
	for {
		rpm := e.latestMotorRPM(since)
		if rpm > 0 {
			return pass(orDefault(desc, "motor RPM tracking"), "RPM > 0", fmt.Sprintf("RPM = %d", rpm), "")
		}
		if time.Now().After(deadline) {
			return fail(orDefault(desc, "motor RPM tracking"), "RPM > 0", fmt.Sprintf("RPM = %d", rpm), "motor never showed nonzero RPM")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (e *Evaluator) verdictE2EErrorCount(v VerdictDef, desc string) VerdictEvidence {
	topic := v.Topic
	if topic == "" {
		topic = "cansil/telemetry/e2e"
	}
	field := v.Field
	if field == "" {
		field = "error_count"
	}
	minErrors := v.MinErrors
	if minErrors == 0 {
		minErrors = 1
	}
	entries := e.Broker.Since(topic, time.Time{})
	if len(entries) == 0 {
		return fail(orDefault(desc, "E2E error count"), fmt.Sprintf("%s >= %d", field, minErrors), "no MQTT message received", "topic: "+topic)
	}
	actual, ok := FieldPath(entries[len(entries)-1].Value.Decoded, field)
	num, numOK := actual.(float64)
	passed := ok && numOK && int(num) >= minErrors
	return evidence(orDefault(desc, "E2E error count"), fmt.Sprintf("%s >= %d", field, minErrors), fmt.Sprintf("%s = %v", field, actual), passed, "topic: "+topic)
}

func (e *Evaluator) verdictSteeringRateLimit(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	frame, ok := e.CAN.WaitForCANMessage(IDSteeringStatus, since, withinDuration(v.WithinMS))
	if !ok {
		return fail(orDefault(desc, "steering rate limit active"), "steering fault flag set", "no Steering_Status message", "")
	}
	status, err := DecodeSteeringStatus(frame.Data[:frame.DLC])
	hasFault := err == nil && status.Fault
	return evidence(orDefault(desc, "steering rate limit active"), "steering fault != 0", fmt.Sprintf("fault=%v", hasFault), hasFault, "")
}

func (e *Evaluator) verdictNoActiveFaults(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	wait := withinDuration(v.WithinMS)
	if wait > time.Second {
		wait = time.Second
	}
	time.Sleep(wait)
	entries := e.CAN.FramesByID(IDDTCBroadcast, since)
	var active []string
	for _, ent := range entries {
		f := ent.Value
		dtc, err := DecodeDTC(f.Data[:f.DLC])
		if err == nil && dtc.Status == 0x01 {
			active = append(active, fmt.Sprintf("0x%04X", dtc.Code))
		}
	}
	return evidence(orDefault(desc, "no active faults"), "0 active DTCs", fmt.Sprintf("%d active: %v", len(active), active), len(active) == 0, "")
}

func (e *Evaluator) verdictDTCPreserved(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	wantCode := parseCANID(v.DTCCode)
	wait := withinDuration(v.WithinMS)
	if wait > 2*time.Second {
		wait = 2 * time.Second
	}
	time.Sleep(wait)
	entries := e.CAN.FramesByID(IDDTCBroadcast, since)
	for _, ent := range entries {
		f := ent.Value
		dtc, err := DecodeDTC(f.Data[:f.DLC])
		if err == nil && uint32(dtc.Code) == wantCode {
			return pass(orDefault(desc, fmt.Sprintf("DTC 0x%04X preserved", wantCode)), fmt.Sprintf("0x%04X in history", wantCode),
				fmt.Sprintf("found 0x%04X", dtc.Code), "")
		}
	}
	return fail(orDefault(desc, fmt.Sprintf("DTC 0x%04X preserved", wantCode)), fmt.Sprintf("0x%04X in history", wantCode),
		fmt.Sprintf("not found in %d DTC messages", len(entries)), "")
}

func (e *Evaluator) verdictFaultPriority(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	expected, ok := vehicleStateByName(v.ExpectedState)
	if !ok {
		return fail(desc, v.ExpectedState, "invalid expected state", "")
	}
	reached := e.CAN.WaitForState(expected, withinDuration(v.WithinMS))
	last, _ := e.CAN.states.Latest()
	atLeastAsSevere := last.Value.Severity() >= expected.Severity()
	passed := reached || atLeastAsSevere
	return evidence(orDefault(desc, "fault priority -> "+v.ExpectedState), fmt.Sprintf("state >= %s", v.ExpectedState),
		last.Value.String(), passed, "")
}

func (e *Evaluator) verdictPowerDerating(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	wait := withinDuration(v.WithinMS)
	if wait > 2*time.Second {
		wait = 2 * time.Second
	}
	time.Sleep(wait)
	entries := e.CAN.FramesByID(IDMotorStatus, since)
	if len(entries) == 0 {
		return fail(orDefault(desc, "power derating"), "RPM decreased (derating)", "no Motor_Status messages", "")
	}
	var rpms []int
	for _, ent := range entries {
		f := ent.Value
		if status, err := DecodeMotorStatus(f.Data[:f.DLC]); err == nil {
			rpms = append(rpms, int(status.RPM))
		}
	}
	if len(rpms) == 0 {
		return fail(orDefault(desc, "power derating"), "RPM decreased (derating)", "no valid RPM data", "")
	}
	maxRPM, current := rpms[0], rpms[len(rpms)-1]
	for _, r := range rpms {
		if r > maxRPM {
			maxRPM = r
		}
	}
	passed := maxRPM > 0 && current < maxRPM
	return evidence(orDefault(desc, "power derating"), "current RPM < peak RPM", fmt.Sprintf("peak=%d current=%d", maxRPM, current), passed, "")
}

func (e *Evaluator) verdictAliveCounterWrap(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	counterBits := v.CounterBits
	if counterBits == 0 {
		counterBits = 4
	}
	counterMax := uint8((1 << counterBits) - 1)
	minWraps := v.ExpectedWrapsMin
	if minWraps == 0 {
		minWraps = 1
	}
	allPassed := true
	results := ""
	for _, idStr := range v.CANIDs {
		id := parseCANID(idStr)
		entries := e.CAN.FramesByID(id, since)
		if len(entries) == 0 {
			allPassed = false
			results += fmt.Sprintf("0x%03X: no messages; ", id)
			continue
		}
		wraps := 0
		prev := entries[0].Value.Data[0] >> 4 & counterMax
		for _, ent := range entries[1:] {
			cur := ent.Value.Data[0] >> 4 & counterMax
			if cur < prev {
				wraps++
			}
			prev = cur
		}
		ok := wraps >= minWraps
		if !ok {
			allPassed = false
		}
		results += fmt.Sprintf("0x%03X: %d wraps; ", id, wraps)
	}
	return evidence(orDefault(desc, "alive counter wraps"), fmt.Sprintf(">= %d wraps per ID", minWraps), results, allPassed, "")
}

func (e *Evaluator) verdictAllHeartbeatsActive(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	wait := withinDuration(v.WithinMS)
	if wait > time.Second {
		wait = time.Second
	}
	time.Sleep(wait)
	allActive := true
	results := ""
	for _, idStr := range v.CANIDs {
		id := parseCANID(idStr)
		if len(e.CAN.FramesByID(id, since)) == 0 {
			allActive = false
			results += fmt.Sprintf("0x%03X: not received; ", id)
		} else {
			results += fmt.Sprintf("0x%03X: active; ", id)
		}
	}
	return evidence(orDefault(desc, "all heartbeats active"), fmt.Sprintf("all %d heartbeats present", len(v.CANIDs)), results, allActive, "")
}

func (e *Evaluator) verdictBatterySOCMonotonic(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	id := IDBatteryStatus
	if v.CANID != "" {
		id = parseCANID(v.CANID)
	}
	direction := v.Direction
	if direction == "" {
		direction = "decreasing"
	}
	entries := e.CAN.FramesByID(id, since)
	var socs []uint8
	for _, ent := range entries {
		f := ent.Value
		if bs, err := DecodeBatteryStatus(f.Data[:f.DLC]); err == nil {
			socs = append(socs, bs.SOCPct)
		}
	}
	if len(socs) < 2 {
		return fail(orDefault(desc, "battery SOC monotonic"), "SOC monotonically "+direction, fmt.Sprintf("only %d samples", len(socs)), "")
	}
	violations := 0
	for i := 1; i < len(socs); i++ {
		if direction == "decreasing" && socs[i] > socs[i-1] {
			violations++
		} else if direction == "increasing" && socs[i] < socs[i-1] {
			violations++
		}
	}
	return evidence(orDefault(desc, "battery SOC monotonic"), fmt.Sprintf("0 violations (%s)", direction),
		fmt.Sprintf("range %d%%->%d%%, %d violations in %d samples", socs[0], socs[len(socs)-1], violations, len(socs)), violations == 0, "")
}

func (e *Evaluator) verdictCANTimingJitter(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	nominal := v.NominalIntervalMS
	if nominal == 0 {
		nominal = 50
	}
	maxJitter := v.MaxJitterMS
	if maxJitter == 0 {
		maxJitter = 10
	}
	allPassed := true
	results := ""
	for _, idStr := range v.CANIDs {
		id := parseCANID(idStr)
		entries := e.CAN.FramesByID(id, since)
		if len(entries) < 2 {
			allPassed = false
			results += fmt.Sprintf("0x%03X: insufficient samples; ", id)
			continue
		}
		maxDeviation := 0.0
		for i := 1; i < len(entries); i++ {
			intervalMS := float64(entries[i].Timestamp.Sub(entries[i-1].Timestamp)) / float64(time.Millisecond)
			dev := intervalMS - nominal
			if dev < 0 {
				dev = -dev
			}
			if dev > maxDeviation {
				maxDeviation = dev
			}
		}
		ok := maxDeviation <= maxJitter
		if !ok {
			allPassed = false
		}
		results += fmt.Sprintf("0x%03X: max_dev=%.1fms (%v); ", id, maxDeviation, ok)
	}
	return evidence(orDefault(desc, "CAN timing jitter"), fmt.Sprintf("jitter <= %.1fms from %.1fms nominal", maxJitter, nominal), results, allPassed, "")
}

func (e *Evaluator) verdictMotorTempStable(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	id := IDMotorTemperature
	if v.CANID != "" {
		id = parseCANID(v.CANID)
	}
	maxTemp := v.MaxTempC
	if maxTemp == 0 {
		maxTemp = 90
	}
	entries := e.CAN.FramesByID(id, since)
	if len(entries) == 0 {
		return fail(orDefault(desc, "motor temp stable"), fmt.Sprintf("temp < %.0fC", maxTemp), "no Motor_Temperature messages", "")
	}
	var temps []float64
	for _, ent := range entries {
		f := ent.Value
		if mt, err := DecodeMotorTemperature(f.Data[:f.DLC]); err == nil {
			temps = append(temps, mt.WindingTempC)
		}
	}
	if len(temps) == 0 {
		return fail(orDefault(desc, "motor temp stable"), fmt.Sprintf("temp < %.0fC", maxTemp), "no valid temperature data", "")
	}
	peak := temps[0]
	for _, t := range temps {
		if t > peak {
			peak = t
		}
	}
	return evidence(orDefault(desc, "motor temp stable"), fmt.Sprintf("temp < %.0fC", maxTemp),
		fmt.Sprintf("peak=%.1fC latest=%.1fC", peak, temps[len(temps)-1]), peak < maxTemp, "")
}

func (e *Evaluator) verdictNoStuckSignals(v VerdictDef, desc string, since time.Time) VerdictEvidence {
	maxIdentical := v.MaxIdenticalFrames
	if maxIdentical == 0 {
		maxIdentical = 50
	}
	allPassed := true
	results := ""
	for _, idStr := range v.CANIDs {
		id := parseCANID(idStr)
		entries := e.CAN.FramesByID(id, since)
		if len(entries) < 2 {
			results += fmt.Sprintf("0x%03X: insufficient samples; ", id)
			continue
		}
		maxRun, run := 1, 1
		for i := 1; i < len(entries); i++ {
			if entries[i].Value.Data == entries[i-1].Value.Data {
				run++
				if run > maxRun {
					maxRun = run
				}
			} else {
				run = 1
			}
		}
		ok := maxRun <= maxIdentical
		if !ok {
			allPassed = false
		}
		results += fmt.Sprintf("0x%03X: max_run=%d (%v); ", id, maxRun, ok)
	}
	return evidence(orDefault(desc, "no stuck signals"), fmt.Sprintf("max consecutive identical <= %d", maxIdentical), results, allPassed, "")
}

// latestMotorRPM returns the RPM field of the most recent Motor_Status
// frame observed since the given time, or 0 if none.
func (e *Evaluator) latestMotorRPM(since time.Time) int {
	entries := e.CAN.FramesByID(IDMotorStatus, since)
	if len(entries) == 0 {
		return 0
	}
	f := entries[len(entries)-1].Value
	status, err := DecodeMotorStatus(f.Data[:f.DLC])
	if err != nil {
		return 0
	}
	return int(status.RPM)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
