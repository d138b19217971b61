package cansil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFrameRoundTripCRC(t *testing.T) {
	counters := NewAliveCounters()
	frame, err := EncodeTorqueRequest(counters, TorqueRequest{DutyPct: 50, Direction: 1})
	assert.NoError(t, err)
	_, crcOK, err := DecodeHeader(DataIDTorque, frame[:])
	assert.NoError(t, err)
	assert.True(t, crcOK)
}

func TestAliveCounterIncrementsModulo16(t *testing.T) {
	counters := NewAliveCounters()
	first := counters.Next(IDTorqueRequest)
	for i := 0; i < 20; i++ {
		prev := first
		first = counters.Next(IDTorqueRequest)
		assert.Equal(t, (prev+1)&0x0F, first)
	}
}

func TestTorqueRequestEncodeDecode(t *testing.T) {
	counters := NewAliveCounters()
	frame, err := EncodeTorqueRequest(counters, TorqueRequest{DutyPct: 120, Direction: 1})
	assert.NoError(t, err)
	decoded, err := DecodeTorqueRequest(frame[:])
	assert.NoError(t, err)
	assert.Equal(t, uint8(100), decoded.DutyPct) // the encoder clamps duty to 0..100
}

func TestSteerCommandEncodeDecodeRoundTrip(t *testing.T) {
	counters := NewAliveCounters()
	frame, err := EncodeSteerCommand(counters, SteerCommand{AngleDeg: -40, RateLimitDegS: 50})
	assert.NoError(t, err)
	decoded, err := DecodeSteerCommand(frame[:])
	assert.NoError(t, err)
	assert.InDelta(t, -40.0, decoded.AngleDeg, 0.02)
	assert.InDelta(t, 50.0, decoded.RateLimitDegS, 0.2)
}

func TestBatteryStatusNoE2E(t *testing.T) {
	frame := EncodeBatteryStatus(BatteryStatusFrame{VoltageMV: 12600, SOCPct: 100, Status: 2})
	decoded, err := DecodeBatteryStatus(frame[:])
	assert.NoError(t, err)
	assert.Equal(t, uint16(12600), decoded.VoltageMV)
	assert.Equal(t, uint8(2), decoded.Status)
}

func TestDecodeLengthErrors(t *testing.T) {
	_, err := DecodeTorqueRequest([]byte{0, 0})
	assert.ErrorIs(t, err, ErrDecodeLength)
}

func TestBuildFrameLengthError(t *testing.T) {
	counters := NewAliveCounters()
	_, err := BuildFrame(counters, IDTorqueRequest, DataIDTorque, []byte{0})
	assert.ErrorIs(t, err, ErrBuildLength)
}
