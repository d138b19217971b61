package cansil

import "time"

func (inj *Injector) sendFrame8(bus Bus, id uint32, data [8]byte, dlc uint8) error {
	var f Frame
	f.ID = id
	f.DLC = dlc
	copy(f.Data[:], data[:])
	return bus.Send(f)
}

func (inj *Injector) normalDrive() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		torque, _ := EncodeTorqueRequest(inj.counters, TorqueRequest{DutyPct: 50, Direction: 1})
		if err := inj.sendFrame8(bus, IDTorqueRequest, torque, 8); err != nil {
			return err
		}
		steer, _ := EncodeSteerCommand(inj.counters, SteerCommand{AngleDeg: 0})
		if err := inj.sendFrame8(bus, IDSteerCommand, steer, 8); err != nil {
			return err
		}
		brake, _ := EncodeBrakeCommand(inj.counters, BrakeCommand{Pct: 0})
		return inj.sendFrame8(bus, IDBrakeCommand, brake, 8)
	})
	if err != nil {
		return "", err
	}
	return "Normal drive: 50% torque forward, steer 0 deg, brake 0%", nil
}

func (inj *Injector) overcurrent() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		brake, _ := EncodeBrakeCommand(inj.counters, BrakeCommand{Pct: 100, Mode: 2})
		if err := inj.sendFrame8(bus, IDBrakeCommand, brake, 8); err != nil {
			return err
		}
		torque, _ := EncodeTorqueRequest(inj.counters, TorqueRequest{DutyPct: 95, Direction: 1})
		return inj.sendFrame8(bus, IDTorqueRequest, torque, 8)
	})
	if err != nil {
		return "", err
	}
	return "Overcurrent: 95% torque + 100% emergency brake sent", nil
}

func (inj *Injector) steerFault() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		for i := 0; i < 10; i++ {
			pos, _ := EncodeSteerCommand(inj.counters, SteerCommand{AngleDeg: 40.0, RateLimitDegS: 50.0})
			if err := inj.sendFrame8(bus, IDSteerCommand, pos, 8); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
			neg, _ := EncodeSteerCommand(inj.counters, SteerCommand{AngleDeg: -40.0, RateLimitDegS: 50.0})
			if err := inj.sendFrame8(bus, IDSteerCommand, neg, 8); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Steer fault: 10 rapid +/-40deg oscillations sent", nil
}

func (inj *Injector) brakeFault() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		for i := 0; i < 10; i++ {
			on, _ := EncodeBrakeCommand(inj.counters, BrakeCommand{Pct: 100, Mode: 2})
			if err := inj.sendFrame8(bus, IDBrakeCommand, on, 8); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
			off, _ := EncodeBrakeCommand(inj.counters, BrakeCommand{Pct: 0, Mode: 0})
			if err := inj.sendFrame8(bus, IDBrakeCommand, off, 8); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Brake fault: 10 rapid 0%/100% alternations sent", nil
}

func (inj *Injector) batteryLow() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		// Phase 1: 12.6V -> 10.2V (UV_warn) over 2s, 20 frames.
		for i := 0; i < 20; i++ {
			frac := float64(i) / 19.0
			v := int(12600 - (12600-10200)*frac)
			soc := uint8(100 - (100-18)*frac)
			status := uint8(2)
			if v < 10500 {
				status = 1
			}
			data := EncodeBatteryStatus(BatteryStatusFrame{VoltageMV: uint16(v), SOCPct: soc, Status: status})
			if err := inj.sendFrame4(bus, data); err != nil {
				return err
			}
			time.Sleep(100 * time.Millisecond)
		}
		// Phase 2: 10.2V -> 8.5V (critical_UV) over 3s, 30 frames.
		for i := 0; i < 30; i++ {
			frac := float64(i) / 29.0
			v := int(10200 - (10200-8500)*frac)
			soc := uint8(18 - (18-3)*frac)
			status := uint8(1)
			if v < 9000 {
				status = 0
			}
			data := EncodeBatteryStatus(BatteryStatusFrame{VoltageMV: uint16(v), SOCPct: soc, Status: status})
			if err := inj.sendFrame4(bus, data); err != nil {
				return err
			}
			time.Sleep(100 * time.Millisecond)
		}
		dtc := EncodeDTC(DTC{Code: DTCBatteryUV, Status: 0x01, ECUSource: ECURZC, OccurrenceCount: 1})
		return inj.sendFrame8(bus, IDDTCBroadcast, dtc, 8)
	})
	if err != nil {
		return "", err
	}
	return "Battery drain: 12.6V -> 8.5V over 5s, then DTC 0xE401", nil
}

func (inj *Injector) sendFrame4(bus Bus, data [4]byte) error {
	var f Frame
	f.ID = IDBatteryStatus
	f.DLC = 4
	copy(f.Data[:4], data[:])
	return bus.Send(f)
}

func (inj *Injector) estop() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		frame, _ := EncodeEStop(inj.counters, EStopFrame{Active: true, Source: 1})
		var f Frame
		f.ID = IDEStopBroadcast
		f.DLC = 4
		copy(f.Data[:4], frame[:])
		return bus.Send(f)
	})
	if err != nil {
		return "", err
	}
	return "E-Stop activated: EStop_Active=1, source=CAN_request", nil
}

func (inj *Injector) reset() (string, error) {
	err := inj.withSender(func(bus Bus) error {
		frame, _ := EncodeEStop(inj.counters, EStopFrame{Active: false, Source: 1})
		var f Frame
		f.ID = IDEStopBroadcast
		f.DLC = 4
		copy(f.Data[:4], frame[:])
		if err := bus.Send(f); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
		torque, _ := EncodeTorqueRequest(inj.counters, TorqueRequest{DutyPct: 0, Direction: 0})
		if err := inj.sendFrame8(bus, IDTorqueRequest, torque, 8); err != nil {
			return err
		}
		steer, _ := EncodeSteerCommand(inj.counters, SteerCommand{AngleDeg: 0})
		if err := inj.sendFrame8(bus, IDSteerCommand, steer, 8); err != nil {
			return err
		}
		brake, _ := EncodeBrakeCommand(inj.counters, BrakeCommand{Pct: 0, Mode: 0})
		return inj.sendFrame8(bus, IDBrakeCommand, brake, 8)
	})
	if err != nil {
		return "", err
	}
	if inj.broker != nil {
		inj.broker.PublishReset()
	}
	return "Reset: E-Stop cleared, torque=0, steer=0, brake=0", nil
}
