package cansil

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vectorlane/cansil/internal/framequeue"
)

const tickPeriod = 10 * time.Millisecond

// DTCPublisher is the narrow interface the Plant needs from a broker
// client to announce newly-raised DTCs; satisfied by *Broker (broker.go).
// A nil DTCPublisher is valid — the Plant simply skips publication.
type DTCPublisher interface {
	PublishDTC(DTC)
}

// Plant is the fixed-rate real-time physics engine: it drains RX frames,
// advances actuator physics, runs the vehicle state machine, and emits
// sensor-feedback frames on the schedule in spec §4.3.
type Plant struct {
	bus      Bus
	queue    *framequeue.Queue
	counters *AliveCounters
	broker   DTCPublisher

	Motor    *Motor
	Steering *Steering
	Brake    *Brake
	Battery  *Battery
	Lidar    *Lidar
	FSM      *VehicleFSM
	dtcs     *DTCTracker

	estopActive bool
	tick        int

	log *log.Entry
}

// NewPlant constructs a Plant bound to bus. Connect must be called before
// Run.
func NewPlant(bus Bus, broker DTCPublisher) *Plant {
	return &Plant{
		bus:      bus,
		queue:    framequeue.New(1024),
		counters: NewAliveCounters(),
		broker:   broker,
		Motor:    NewMotor(),
		Steering: NewSteering(),
		Brake:    NewBrake(),
		Battery:  NewBattery(),
		Lidar:    NewLidar(),
		FSM:      NewVehicleFSM(),
		dtcs:     NewDTCTracker(),
		log:      log.WithField("component", "plant"),
	}
}

// Connect opens the bus and starts draining into the internal queue.
func (p *Plant) Connect(args ...any) error {
	if err := p.bus.Connect(args...); err != nil {
		return err
	}
	p.bus.Subscribe(FrameListenerFunc(func(f Frame) {
		p.queue.Push(framequeue.Frame(f))
	}))
	return nil
}

// Run executes the fixed-10ms tick loop until ctx is cancelled. It never
// advances virtual time faster than wall time: each tick sleeps out the
// remainder of its period, catching up (without sleeping) on overrun.
func (p *Plant) Run(ctx context.Context) error {
	p.log.Info("plant simulator started")
	next := time.Now().Add(tickPeriod)
	timer := time.NewTimer(tickPeriod)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("plant simulator stopped")
			return p.bus.Close()
		case <-timer.C:
			p.runOneTick(time.Now())
			next = next.Add(tickPeriod)
			timer.Reset(time.Until(next))
		}
	}
}

func (p *Plant) runOneTick(now time.Time) {
	p.drainRX(now)

	dt := 0.01 // seconds; the tick period is fixed at 10ms
	p.applyStateOverrides()
	p.Motor.Update(dt)
	p.Steering.Update(dt)
	p.Brake.Update(dt)
	p.Battery.Update(p.Motor.CurrentMA, dt, now)
	p.Lidar.Update(dt)

	p.FSM.Process(Inputs{
		EStopActive:   p.estopActive,
		MotorFault:    p.Motor.Overcurrent || p.Motor.HWDisabled || p.Motor.Stall,
		SteerFault:    p.Steering.Fault,
		BrakeFault:    p.Brake.Fault,
		BatteryStatus: p.Battery.Status(),
	})
	if p.FSM.State == StateSafeStop {
		p.Motor.HWDisabled = true
	}

	for _, slot := range dueSlots(p.tick) {
		p.emitSlot(slot)
	}
	if p.tick%10 == 0 {
		p.checkAndSendDTCs()
	}
	p.tick++
}

// applyStateOverrides enforces the DEGRADED/LIMP/SAFE_STOP command caps
// described in spec §4.2, ahead of the physics tick.
func (p *Plant) applyStateOverrides() {
	switch p.FSM.State {
	case StateDegraded:
		p.Motor.ApplyDutyCap(50)
	case StateLimp:
		p.Motor.ApplyDutyCap(15)
		p.Brake.ApplyFloor(30)
	case StateSafeStop:
		p.Motor.ApplyDutyCap(0)
		p.Steering.ForceCommand(0)
		p.Brake.ForceCommand(100)
	}
	if p.estopActive {
		p.Motor.ApplyDutyCap(0)
		p.Steering.ForceCommand(0)
		p.Brake.ForceCommand(100)
	}
}

// drainRX non-blockingly consumes every queued frame and dispatches it.
// Frames that fail to decode are logged at debug level and dropped; no
// failure count is kept, and physics is never disturbed.
func (p *Plant) drainRX(now time.Time) {
	for {
		f, ok := p.queue.TryRecv()
		if !ok {
			return
		}
		p.dispatchRX(Frame(f), now)
	}
}

func (p *Plant) dispatchRX(frame Frame, now time.Time) {
	data := frame.Data[:frame.DLC]
	switch frame.ID {
	case IDEStopBroadcast:
		e, err := DecodeEStop(data)
		if err != nil {
			p.log.WithError(err).Debug("decode EStop_Broadcast failed")
			return
		}
		p.handleEStop(e.Active)

	case IDTorqueRequest:
		if p.estopActive {
			return
		}
		t, err := DecodeTorqueRequest(data)
		if err != nil {
			p.log.WithError(err).Debug("decode Torque_Request failed")
			return
		}
		p.Motor.RecordCommand(t.DutyPct, t.Direction)

	case IDSteerCommand:
		if p.estopActive {
			return
		}
		s, err := DecodeSteerCommand(data)
		if err != nil {
			p.log.WithError(err).Debug("decode Steer_Command failed")
			return
		}
		p.Steering.RecordCommand(s.AngleDeg, now)

	case IDBrakeCommand:
		if p.estopActive {
			return
		}
		b, err := DecodeBrakeCommand(data)
		if err != nil {
			p.log.WithError(err).Debug("decode Brake_Command failed")
			return
		}
		p.Brake.RecordCommand(float64(b.Pct), now)

	case IDBatteryStatus:
		// Externally-injected override (fault-injector battery_low
		// scenario spoofing the RZC's own status frame).
		bs, err := DecodeBatteryStatus(data)
		if err != nil {
			p.log.WithError(err).Debug("decode Battery_Status failed")
			return
		}
		p.Battery.RecordOverride(int(bs.VoltageMV), bs.SOCPct, bs.Status, now)
	}
}

func (p *Plant) handleEStop(active bool) {
	wasActive := p.estopActive
	p.estopActive = active
	if active && !wasActive {
		p.log.Warn("E-STOP received")
	} else if !active && wasActive {
		p.log.Info("E-STOP cleared, resetting faults")
		p.resetAllFaults()
	} else if !active && !wasActive {
		p.resetAllFaults()
	}
}

func (p *Plant) resetAllFaults() {
	p.Motor.ResetFaults()
	p.Steering.ClearFault()
	p.Brake.ClearFault()
	p.dtcs.ClearAll()
	p.FSM.State = StateInit
	p.FSM = NewVehicleFSM()
}

func (p *Plant) emitSlot(slot txSlot) {
	switch slot {
	case slot10ms:
		p.txMotorCurrent()
		p.txLidarDistance()
	case slot20ms:
		p.txMotorStatus()
		p.txSteeringStatus()
		p.txBrakeStatus()
	case slot100ms:
		p.txMotorTemperature()
		p.txVehicleState()
	case slot1000ms:
		p.txBatteryStatus()
	}
}

func (p *Plant) send(id uint32, data []byte) {
	var frame Frame
	frame.ID = id
	frame.DLC = uint8(len(data))
	copy(frame.Data[:], data)
	if err := p.bus.Send(frame); err != nil {
		p.log.WithError(err).WithField("can_id", id).Debug("send failed, will retry next slot")
	}
}

func (p *Plant) txMotorStatus() {
	derating := uint8(100)
	switch {
	case p.Motor.Overtemp:
		derating = 0
	case p.Motor.TempC > 80:
		derating = 50
	case p.Motor.TempC > 60:
		derating = 75
	}
	frame, err := EncodeMotorStatus(p.counters, MotorStatusFrame{
		RPM: uint16(p.Motor.RPMInt()), Direction: p.Motor.Direction, Enabled: p.Motor.Enabled,
		Overcurrent: p.Motor.Overcurrent, Overtemp: p.Motor.Overtemp, Stall: p.Motor.Stall,
		DutyPct: uint8(p.Motor.DutyPct), Derating: derating,
	})
	if err == nil {
		p.send(IDMotorStatus, frame[:])
	}
}

func (p *Plant) txMotorCurrent() {
	directionBit := p.Motor.Direction
	frame, err := EncodeMotorCurrent(p.counters, MotorCurrentFrame{
		CurrentMA: uint16(p.Motor.CurrentMAInt()), Direction: directionBit, Enabled: p.Motor.Enabled,
		Overcurrent: p.Motor.Overcurrent, TorqueEcho: uint8(p.Motor.DutyPct),
	})
	if err == nil {
		p.send(IDMotorCurrent, frame[:])
	}
}

func (p *Plant) txMotorTemperature() {
	fault := uint8(0)
	derating := uint8(100)
	switch {
	case p.Motor.Overtemp:
		fault |= 0x04 | 0x08
		derating = 0
	case p.Motor.TempC > 60:
		fault |= 0x08
		if p.Motor.TempC > 80 {
			derating = 50
		} else {
			derating = 75
		}
	}
	frame, err := EncodeMotorTemperature(p.counters, MotorTemperatureFrame{
		WindingTempC: p.Motor.TempC, Derating: derating, Fault: fault,
	})
	if err == nil {
		p.send(IDMotorTemperature, frame[:])
	}
}

func (p *Plant) txBatteryStatus() {
	frame := EncodeBatteryStatus(BatteryStatusFrame{
		VoltageMV: uint16(p.Battery.VoltageMV), SOCPct: uint8(p.Battery.SOCPct), Status: p.Battery.Status(),
	})
	p.send(IDBatteryStatus, frame[:])
}

func (p *Plant) txSteeringStatus() {
	frame, err := EncodeSteeringStatus(p.counters, SteeringStatusFrame{
		ActualDeg: p.Steering.ActualAngle, CommandedDeg: p.Steering.CommandedAngle,
		Fault: p.Steering.Fault, ServoCurrentMA: p.Steering.ServoCurrentMA,
	})
	if err == nil {
		p.send(IDSteeringStatus, frame[:])
	}
}

func (p *Plant) txBrakeStatus() {
	frame, err := EncodeBrakeStatus(p.counters, BrakeStatusFrame{
		ActualPct: uint8(p.Brake.PositionInt()), CommandedPct: uint8(p.Brake.CommandedPct),
		ServoCurrentMA: uint16(p.Brake.ServoCurrentMA), Fault: p.Brake.Fault,
	})
	if err == nil {
		p.send(IDBrakeStatus, frame[:])
	}
}

func (p *Plant) txVehicleState() {
	torqueLimit, speedLimit := uint8(0), uint8(0)
	if p.FSM.State == StateRun {
		torqueLimit, speedLimit = 100, 100
	}
	frame, err := EncodeVehicleState(p.counters, VehicleStateFrame{
		State: uint8(p.FSM.State), TorqueLimit: torqueLimit, SpeedLimit: speedLimit,
	})
	if err == nil {
		p.send(IDVehicleState, frame[:])
	}
}

func (p *Plant) txLidarDistance() {
	frame, err := EncodeLidarDistance(p.counters, LidarDistanceFrame{
		DistanceCM: uint16(p.Lidar.DistanceCM), SignalStrength: uint16(p.Lidar.SignalStrength),
		Zone: p.Lidar.ObstacleZone(), Fault: p.Lidar.Fault,
	})
	if err == nil {
		p.send(IDLidarDistance, frame[:])
	}
}

// checkAndSendDTCs runs on the 100ms slot: any currently-raised latched
// fault not already in the active set fires a DTC_Broadcast exactly
// once.
func (p *Plant) checkAndSendDTCs() {
	p.maybeSendDTC(p.Motor.Overcurrent, DTCOvercurrent, ECURZC)
	p.maybeSendDTC(p.Steering.Fault, DTCSteerFault, ECUFZC)
	p.maybeSendDTC(p.Brake.Fault, DTCBrakeFault, ECUFZC)

	if p.Battery.Status() == 0 {
		p.maybeSendDTC(true, DTCBatteryUV, ECURZC)
	} else {
		p.dtcs.Clear(DTCBatteryUV)
	}
}

func (p *Plant) maybeSendDTC(condition bool, code uint16, ecu uint8) {
	if !condition {
		return
	}
	dtc, fresh := p.dtcs.Raise(code, ecu)
	if !fresh {
		return
	}
	frame := EncodeDTC(dtc)
	p.send(IDDTCBroadcast, frame[:])
	p.log.WithField("dtc", dtc.Code).Infof("DTC 0x%04X from ECU %d (occurrence %d)", dtc.Code, dtc.ECUSource, dtc.OccurrenceCount)
	if p.broker != nil {
		p.broker.PublishDTC(dtc)
	}
}
