package cansil

import "sync"

// AliveCounters tracks the process-wide, per-arbitration-ID 4-bit alive
// counter used by E2E frame headers. Only the sender thread mutates it
// (spec §5), but the type is safe for concurrent use since the Fault
// Injector and the Plant Simulator run as independent processes/threads
// sharing nothing but this in-process instance when embedded together in
// tests.
type AliveCounters struct {
	mu     sync.Mutex
	values map[uint32]uint8
}

// NewAliveCounters creates an empty counter set.
func NewAliveCounters() *AliveCounters {
	return &AliveCounters{values: make(map[uint32]uint8)}
}

// Next returns the counter value to embed in the next frame for id, then
// increments it modulo 16.
func (a *AliveCounters) Next(id uint32) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.values[id]
	a.values[id] = (v + 1) & 0x0F
	return v
}

// BuildFrame writes the E2E header into payload (byte 0 = alive<<4|dataID,
// byte 1 = CRC-8 over dataID and payload[2:]) and returns the completed
// payload. payload must already have its signal bytes (2..len-1) set by
// the caller; it is mutated in place and also returned for convenience.
// BuildFrame requires len(payload) >= 2.
func BuildFrame(counters *AliveCounters, id uint32, dataID uint8, payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, ErrBuildLength
	}
	alive := counters.Next(id)
	payload[0] = (alive << 4) | (dataID & 0x0F)
	payload[1] = CRC8J1850(dataID, payload[2:])
	return payload, nil
}

// DecodeHeader extracts an E2E payload's alive counter and recomputes the
// expected CRC over dataID and bytes 2.. for comparison against byte 1.
func DecodeHeader(dataID uint8, payload []byte) (alive uint8, crcOK bool, err error) {
	if len(payload) < 2 {
		return 0, false, ErrDecodeLength
	}
	alive = payload[0] >> 4
	expected := CRC8J1850(dataID, payload[2:])
	return alive, expected == payload[1], nil
}
