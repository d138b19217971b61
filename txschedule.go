package cansil

// txSlot names the fixed-period TX schedule slots the Plant ticks
// through. Periods are expressed in 10ms ticks rather than wall time
// since the schedule is tick-boundary-relative, not wall-clock-relative
// (spec §5: deterministic order relative to the tick boundary).
type txSlot int

const (
	slot10ms txSlot = iota
	slot20ms
	slot100ms
	slot1000ms
)

// dueSlots returns which periodic slots are due on the given tick
// (0-indexed, incrementing once per 10ms tick).
func dueSlots(tick int) []txSlot {
	slots := []txSlot{slot10ms}
	if tick%2 == 0 {
		slots = append(slots, slot20ms)
	}
	if tick%10 == 0 {
		slots = append(slots, slot100ms)
	}
	if tick%100 == 0 {
		slots = append(slots, slot1000ms)
	}
	return slots
}
