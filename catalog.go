package cansil

import "time"

// Arbitration IDs (spec §6 frame catalogue). 11-bit standard IDs only.
const (
	IDEStopBroadcast    uint32 = 0x001
	IDHeartbeatCVC      uint32 = 0x010
	IDHeartbeatFZC      uint32 = 0x011
	IDHeartbeatRZC      uint32 = 0x012
	IDVehicleState      uint32 = 0x100
	IDTorqueRequest     uint32 = 0x101
	IDSteerCommand      uint32 = 0x102
	IDBrakeCommand      uint32 = 0x103
	IDSteeringStatus    uint32 = 0x200
	IDBrakeStatus       uint32 = 0x201
	IDLidarDistance     uint32 = 0x220
	IDMotorStatus       uint32 = 0x300
	IDMotorCurrent      uint32 = 0x301
	IDMotorTemperature  uint32 = 0x302
	IDBatteryStatus     uint32 = 0x303
	IDDTCBroadcast      uint32 = 0x500
)

// Data IDs (4-bit, lower nibble of byte 0 on E2E frames).
const (
	DataIDEStop             uint8 = 0x01
	DataIDTorque            uint8 = 0x02
	DataIDSteer             uint8 = 0x03
	DataIDBrake             uint8 = 0x04
	DataIDVehicleState      uint8 = 0x06
	DataIDSteeringStatus    uint8 = 0x09
	DataIDBrakeStatus       uint8 = 0x0A
	DataIDLidar             uint8 = 0x0D
	DataIDMotorStatus       uint8 = 0x0E
	DataIDMotorCurrent      uint8 = 0x0F
	DataIDMotorTemperature  uint8 = 0x00
)

// ECU source identifiers used in DTC_Broadcast and Steer_Command's
// VehicleState passthrough byte.
const (
	ECUCVC uint8 = 1
	ECUFZC uint8 = 2
	ECURZC uint8 = 3
	ECUSC  uint8 = 4
)

// DTC codes shared by the Plant Simulator and the Fault Injector.
const (
	DTCOvercurrent uint16 = 0xE301
	DTCSteerFault  uint16 = 0xE201
	DTCBrakeFault  uint16 = 0xE202
	DTCBatteryUV   uint16 = 0xE401
)

// MessageDef is a static schema entry describing one CAN message: its
// arbitration ID, fixed payload length, whether it carries an E2E header,
// its data ID (meaningless when E2E is false), and its nominal TX period
// (zero for RX-only or event-driven messages).
type MessageDef struct {
	Name   string
	ID     uint32
	Len    int
	E2E    bool
	DataID uint8
	Period time.Duration
}

// catalog is the precomputed table of every message this module knows
// about, keyed by name and by arbitration ID at init time.
var catalog = []MessageDef{
	{Name: "EStop_Broadcast", ID: IDEStopBroadcast, Len: 4, E2E: true, DataID: DataIDEStop},
	{Name: "CVC_Heartbeat", ID: IDHeartbeatCVC, Len: 8, E2E: true, DataID: DataIDEStop, Period: 50 * time.Millisecond},
	{Name: "FZC_Heartbeat", ID: IDHeartbeatFZC, Len: 8, E2E: true, DataID: DataIDEStop, Period: 50 * time.Millisecond},
	{Name: "RZC_Heartbeat", ID: IDHeartbeatRZC, Len: 8, E2E: true, DataID: DataIDEStop, Period: 50 * time.Millisecond},
	{Name: "Vehicle_State", ID: IDVehicleState, Len: 8, E2E: true, DataID: DataIDVehicleState, Period: 100 * time.Millisecond},
	{Name: "Torque_Request", ID: IDTorqueRequest, Len: 8, E2E: true, DataID: DataIDTorque},
	{Name: "Steer_Command", ID: IDSteerCommand, Len: 8, E2E: true, DataID: DataIDSteer},
	{Name: "Brake_Command", ID: IDBrakeCommand, Len: 8, E2E: true, DataID: DataIDBrake},
	{Name: "Steering_Status", ID: IDSteeringStatus, Len: 8, E2E: true, DataID: DataIDSteeringStatus, Period: 20 * time.Millisecond},
	{Name: "Brake_Status", ID: IDBrakeStatus, Len: 8, E2E: true, DataID: DataIDBrakeStatus, Period: 20 * time.Millisecond},
	{Name: "Lidar_Distance", ID: IDLidarDistance, Len: 8, E2E: true, DataID: DataIDLidar, Period: 10 * time.Millisecond},
	{Name: "Motor_Status", ID: IDMotorStatus, Len: 8, E2E: true, DataID: DataIDMotorStatus, Period: 20 * time.Millisecond},
	{Name: "Motor_Current", ID: IDMotorCurrent, Len: 8, E2E: true, DataID: DataIDMotorCurrent, Period: 10 * time.Millisecond},
	{Name: "Motor_Temperature", ID: IDMotorTemperature, Len: 6, E2E: true, DataID: DataIDMotorTemperature, Period: 100 * time.Millisecond},
	{Name: "Battery_Status", ID: IDBatteryStatus, Len: 4, E2E: false, Period: 1000 * time.Millisecond},
	{Name: "DTC_Broadcast", ID: IDDTCBroadcast, Len: 8, E2E: false},
}

var (
	catalogByName = map[string]MessageDef{}
	catalogByID   = map[uint32]MessageDef{}
)

func init() {
	for _, m := range catalog {
		catalogByName[m.Name] = m
		catalogByID[m.ID] = m
	}
}

// LookupMessage returns the schema entry for a message by name.
func LookupMessage(name string) (MessageDef, bool) {
	m, ok := catalogByName[name]
	return m, ok
}

// LookupMessageByID returns the schema entry for an arbitration ID.
func LookupMessageByID(id uint32) (MessageDef, bool) {
	m, ok := catalogByID[id]
	return m, ok
}
