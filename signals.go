package cansil

import "math"

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// --- Torque_Request (0x101) ---------------------------------------------

type TorqueRequest struct {
	DutyPct   uint8
	Direction uint8 // 0=stop, 1=fwd, 2=rev
}

func EncodeTorqueRequest(c *AliveCounters, r TorqueRequest) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = uint8(clampInt(int(r.DutyPct), 0, 100))
	payload[3] = r.Direction & 0x03
	if _, err := BuildFrame(c, IDTorqueRequest, DataIDTorque, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeTorqueRequest(data []byte) (TorqueRequest, error) {
	if len(data) < 4 {
		return TorqueRequest{}, ErrDecodeLength
	}
	return TorqueRequest{DutyPct: data[2], Direction: data[3] & 0x03}, nil
}

// --- Steer_Command (0x102) ----------------------------------------------

type SteerCommand struct {
	AngleDeg      float64
	RateLimitDegS float64
	VehicleState  uint8
}

// steerRaw converts an angle in degrees to the 16-bit scaled wire value:
// raw = (angle + 45.0) / 0.01, clamped to [0, 9000].
func steerRaw(angleDeg float64) uint16 {
	raw := int((angleDeg + 45.0) / 0.01)
	return uint16(clampInt(raw, 0, 9000))
}

func steerRawToDeg(raw uint16) float64 {
	return float64(raw)*0.01 - 45.0
}

func EncodeSteerCommand(c *AliveCounters, s SteerCommand) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	raw := steerRaw(s.AngleDeg)
	payload[2] = byte(raw)
	payload[3] = byte(raw >> 8)
	payload[4] = uint8(clampInt(int(s.RateLimitDegS/0.2), 0, 255))
	payload[5] = s.VehicleState & 0x0F
	if _, err := BuildFrame(c, IDSteerCommand, DataIDSteer, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeSteerCommand(data []byte) (SteerCommand, error) {
	if len(data) < 6 {
		return SteerCommand{}, ErrDecodeLength
	}
	raw := uint16(data[2]) | uint16(data[3])<<8
	return SteerCommand{
		AngleDeg:      clampFloat(steerRawToDeg(raw), -45.0, 45.0),
		RateLimitDegS: float64(data[4]) * 0.2,
		VehicleState:  data[5] & 0x0F,
	}, nil
}

// --- Brake_Command (0x103) -----------------------------------------------

type BrakeCommand struct {
	Pct          uint8
	Mode         uint8 // 0=release,1=normal,2=emergency,3=auto
	VehicleState uint8
}

func EncodeBrakeCommand(c *AliveCounters, b BrakeCommand) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = uint8(clampInt(int(b.Pct), 0, 100))
	payload[3] = (b.Mode & 0x0F) | ((b.VehicleState & 0x0F) << 4)
	if _, err := BuildFrame(c, IDBrakeCommand, DataIDBrake, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeBrakeCommand(data []byte) (BrakeCommand, error) {
	if len(data) < 4 {
		return BrakeCommand{}, ErrDecodeLength
	}
	return BrakeCommand{
		Pct:          data[2],
		Mode:         data[3] & 0x0F,
		VehicleState: (data[3] >> 4) & 0x0F,
	}, nil
}

// --- EStop_Broadcast (0x001) ---------------------------------------------

type EStopFrame struct {
	Active bool
	Source uint8
}

func EncodeEStop(c *AliveCounters, e EStopFrame) ([4]byte, error) {
	var out [4]byte
	payload := out[:]
	b := uint8(0)
	if e.Active {
		b |= 0x01
	}
	b |= (e.Source & 0x07) << 1
	payload[2] = b
	if _, err := BuildFrame(c, IDEStopBroadcast, DataIDEStop, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeEStop(data []byte) (EStopFrame, error) {
	if len(data) < 3 {
		return EStopFrame{}, ErrDecodeLength
	}
	return EStopFrame{
		Active: data[2]&0x01 != 0,
		Source: (data[2] >> 1) & 0x07,
	}, nil
}

// --- Battery_Status (0x303, no E2E) --------------------------------------

type BatteryStatusFrame struct {
	VoltageMV uint16
	SOCPct    uint8
	Status    uint8
}

func EncodeBatteryStatus(b BatteryStatusFrame) [4]byte {
	var out [4]byte
	v := clampInt(int(b.VoltageMV), 0, 20000)
	out[0] = byte(v)
	out[1] = byte(v >> 8)
	out[2] = uint8(clampInt(int(b.SOCPct), 0, 100))
	out[3] = b.Status & 0x0F
	return out
}

func DecodeBatteryStatus(data []byte) (BatteryStatusFrame, error) {
	if len(data) < 4 {
		return BatteryStatusFrame{}, ErrDecodeLength
	}
	return BatteryStatusFrame{
		VoltageMV: uint16(data[0]) | uint16(data[1])<<8,
		SOCPct:    data[2],
		Status:    data[3] & 0x0F,
	}, nil
}

// --- DTC_Broadcast (0x500, no E2E) ----------------------------------------

// EncodeDTC and DecodeDTC build/parse the DTC_Broadcast payload around
// the DTC record defined in dtc.go: bytes 0-1 code (LE), byte 2 status,
// byte 3 ECU source, byte 4 occurrence count, bytes 5-7 freeze frame.
func EncodeDTC(d DTC) [8]byte {
	var out [8]byte
	out[0] = byte(d.Code)
	out[1] = byte(d.Code >> 8)
	out[2] = d.Status
	out[3] = d.ECUSource
	out[4] = uint8(clampInt(int(d.OccurrenceCount), 0, 255))
	out[5], out[6], out[7] = d.FreezeFrame[0], d.FreezeFrame[1], d.FreezeFrame[2]
	return out
}

func DecodeDTC(data []byte) (DTC, error) {
	if len(data) < 5 {
		return DTC{}, ErrDecodeLength
	}
	d := DTC{
		Code:            uint16(data[0]) | uint16(data[1])<<8,
		Status:          data[2],
		ECUSource:       data[3],
		OccurrenceCount: data[4],
	}
	if len(data) >= 8 {
		d.FreezeFrame = [3]uint8{data[5], data[6], data[7]}
	}
	return d, nil
}

// --- Motor_Status (0x300) -------------------------------------------------

type MotorStatusFrame struct {
	RPM         uint16
	Direction   uint8
	Enabled     bool
	Overcurrent bool
	Overtemp    bool
	Stall       bool
	DutyPct     uint8
	Derating    uint8
}

func EncodeMotorStatus(c *AliveCounters, m MotorStatusFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = byte(m.RPM)
	payload[3] = byte(m.RPM >> 8)
	fault := uint8(0)
	if m.Overcurrent {
		fault |= 0x01
	}
	if m.Overtemp {
		fault |= 0x02
	}
	if m.Stall {
		fault |= 0x04
	}
	enable := uint8(0)
	if m.Enabled {
		enable = 1
	}
	payload[4] = (m.Direction & 0x03) | (enable << 2) | (fault << 3)
	payload[5] = uint8(minInt(95, int(m.DutyPct)))
	payload[6] = m.Derating
	if _, err := BuildFrame(c, IDMotorStatus, DataIDMotorStatus, payload); err != nil {
		return out, err
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func DecodeMotorStatus(data []byte) (MotorStatusFrame, error) {
	if len(data) < 7 {
		return MotorStatusFrame{}, ErrDecodeLength
	}
	fault := data[4] >> 3
	return MotorStatusFrame{
		RPM:         uint16(data[2]) | uint16(data[3])<<8,
		Direction:   data[4] & 0x03,
		Enabled:     (data[4]>>2)&0x01 != 0,
		Overcurrent: fault&0x01 != 0,
		Overtemp:    fault&0x02 != 0,
		Stall:       fault&0x04 != 0,
		DutyPct:     data[5],
		Derating:    data[6],
	}, nil
}

// --- Motor_Current (0x301) -------------------------------------------------

type MotorCurrentFrame struct {
	CurrentMA   uint16
	Direction   uint8
	Enabled     bool
	Overcurrent bool
	TorqueEcho  uint8
}

func EncodeMotorCurrent(c *AliveCounters, m MotorCurrentFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = byte(m.CurrentMA)
	payload[3] = byte(m.CurrentMA >> 8)
	directionBit := uint8(0)
	if m.Direction == 2 {
		directionBit = 1
	}
	enableBit := uint8(0)
	if m.Enabled {
		enableBit = 1
	}
	ocBit := uint8(0)
	if m.Overcurrent {
		ocBit = 1
	}
	b4 := directionBit | (enableBit << 1) | (ocBit << 2)
	torque := m.TorqueEcho
	b4 |= (torque & 0x1F) << 3
	payload[4] = b4
	payload[5] = (torque >> 5) & 0x07
	if _, err := BuildFrame(c, IDMotorCurrent, DataIDMotorCurrent, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeMotorCurrent(data []byte) (MotorCurrentFrame, error) {
	if len(data) < 6 {
		return MotorCurrentFrame{}, ErrDecodeLength
	}
	dirBit := data[4] & 0x01
	dir := uint8(0)
	if dirBit == 1 {
		dir = 2
	}
	torque := (data[4]>>3)&0x1F | (data[5]&0x07)<<5
	return MotorCurrentFrame{
		CurrentMA:   uint16(data[2]) | uint16(data[3])<<8,
		Direction:   dir,
		Enabled:     (data[4]>>1)&0x01 != 0,
		Overcurrent: (data[4]>>2)&0x01 != 0,
		TorqueEcho:  torque,
	}, nil
}

// --- Motor_Temperature (0x302, 6 bytes) ------------------------------------

type MotorTemperatureFrame struct {
	WindingTempC float64
	Derating     uint8
	Fault        uint8
}

func EncodeMotorTemperature(c *AliveCounters, m MotorTemperatureFrame) ([6]byte, error) {
	var out [6]byte
	payload := out[:]
	payload[2] = byte(clampInt(int(m.WindingTempC+40), 0, 255))
	payload[3] = byte(clampInt(int(m.WindingTempC*0.8+40), 0, 255))
	payload[4] = m.Derating
	payload[5] = m.Fault & 0x0F
	if _, err := BuildFrame(c, IDMotorTemperature, DataIDMotorTemperature, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeMotorTemperature(data []byte) (MotorTemperatureFrame, error) {
	if len(data) < 6 {
		return MotorTemperatureFrame{}, ErrDecodeLength
	}
	return MotorTemperatureFrame{
		WindingTempC: float64(data[2]) - 40,
		Derating:     data[4],
		Fault:        data[5] & 0x0F,
	}, nil
}

// --- Steering_Status (0x200) -----------------------------------------------

type SteeringStatusFrame struct {
	ActualDeg    float64
	CommandedDeg float64
	Fault        bool
	ServoCurrentMA int
}

func EncodeSteeringStatus(c *AliveCounters, s SteeringStatusFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	actual := steerRaw(s.ActualDeg)
	cmd := steerRaw(s.CommandedDeg)
	payload[2] = byte(actual)
	payload[3] = byte(actual >> 8)
	payload[4] = byte(cmd)
	payload[5] = byte(cmd >> 8)
	if s.Fault {
		payload[6] = 0x01
	}
	payload[7] = uint8(minInt(255, s.ServoCurrentMA/10))
	if _, err := BuildFrame(c, IDSteeringStatus, DataIDSteeringStatus, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeSteeringStatus(data []byte) (SteeringStatusFrame, error) {
	if len(data) < 8 {
		return SteeringStatusFrame{}, ErrDecodeLength
	}
	actualRaw := uint16(data[2]) | uint16(data[3])<<8
	cmdRaw := uint16(data[4]) | uint16(data[5])<<8
	return SteeringStatusFrame{
		ActualDeg:      steerRawToDeg(actualRaw),
		CommandedDeg:   steerRawToDeg(cmdRaw),
		Fault:          data[6]&0x01 != 0,
		ServoCurrentMA: int(data[7]) * 10,
	}, nil
}

// --- Brake_Status (0x201) ---------------------------------------------------

type BrakeStatusFrame struct {
	ActualPct      uint8
	CommandedPct   uint8
	ServoCurrentMA uint16
	Fault          bool
}

func EncodeBrakeStatus(c *AliveCounters, b BrakeStatusFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = b.ActualPct
	payload[3] = b.CommandedPct
	payload[4] = byte(b.ServoCurrentMA)
	payload[5] = byte(b.ServoCurrentMA >> 8)
	if b.Fault {
		payload[6] = 0x01
	}
	if _, err := BuildFrame(c, IDBrakeStatus, DataIDBrakeStatus, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeBrakeStatus(data []byte) (BrakeStatusFrame, error) {
	if len(data) < 7 {
		return BrakeStatusFrame{}, ErrDecodeLength
	}
	return BrakeStatusFrame{
		ActualPct:      data[2],
		CommandedPct:   data[3],
		ServoCurrentMA: uint16(data[4]) | uint16(data[5])<<8,
		Fault:          data[6]&0x01 != 0,
	}, nil
}

// --- Vehicle_State (0x100) ---------------------------------------------------

type VehicleStateFrame struct {
	State       uint8
	FaultMask   uint8
	TorqueLimit uint8
	SpeedLimit  uint8
}

func EncodeVehicleState(c *AliveCounters, v VehicleStateFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = v.State & 0x0F
	payload[3] = v.FaultMask
	payload[4] = v.TorqueLimit
	payload[5] = v.SpeedLimit
	if _, err := BuildFrame(c, IDVehicleState, DataIDVehicleState, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeVehicleState(data []byte) (VehicleStateFrame, error) {
	if len(data) < 6 {
		return VehicleStateFrame{}, ErrDecodeLength
	}
	return VehicleStateFrame{
		State:       data[2] & 0x0F,
		FaultMask:   data[3],
		TorqueLimit: data[4],
		SpeedLimit:  data[5],
	}, nil
}

// --- Lidar_Distance (0x220) ---------------------------------------------------

type LidarDistanceFrame struct {
	DistanceCM     uint16
	SignalStrength uint16
	Zone           uint8
	Fault          bool
}

func EncodeLidarDistance(c *AliveCounters, l LidarDistanceFrame) ([8]byte, error) {
	var out [8]byte
	payload := out[:]
	payload[2] = byte(l.DistanceCM)
	payload[3] = byte(l.DistanceCM >> 8)
	payload[4] = byte(l.SignalStrength)
	payload[5] = byte(l.SignalStrength >> 8)
	status := uint8(0)
	if l.Fault {
		status = 0x01
	}
	payload[6] = (l.Zone & 0x0F) | ((status & 0x0F) << 4)
	if _, err := BuildFrame(c, IDLidarDistance, DataIDLidar, payload); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeLidarDistance(data []byte) (LidarDistanceFrame, error) {
	if len(data) < 7 {
		return LidarDistanceFrame{}, ErrDecodeLength
	}
	return LidarDistanceFrame{
		DistanceCM:     uint16(data[2]) | uint16(data[3])<<8,
		SignalStrength: uint16(data[4]) | uint16(data[5])<<8,
		Zone:           data[6] & 0x0F,
		Fault:          (data[6]>>4)&0x0F != 0,
	}, nil
}
