package dag

import "fmt"

// Slot is a (period, thread) coordinate identifying one block production opportunity.
// Slots are totally ordered by period first and thread second.
type Slot struct {
	Period uint64
	Thread uint8
}

// NewSlot creates a slot.
func NewSlot(period uint64, thread uint8) Slot {
	return Slot{Period: period, Thread: thread}
}

// Compare returns -1, 0 or 1 if s is respectively before, equal to or after other.
func (s Slot) Compare(other Slot) int {
	switch {
	case s.Period < other.Period:
		return -1
	case s.Period > other.Period:
		return 1
	case s.Thread < other.Thread:
		return -1
	case s.Thread > other.Thread:
		return 1
	default:
		return 0
	}
}

// Before returns true if s strictly precedes other.
func (s Slot) Before(other Slot) bool {
	return s.Compare(other) < 0
}

// Next returns the slot following s.
func (s Slot) Next(threadCount uint8) Slot {
	if s.Thread+1 >= threadCount {
		return Slot{Period: s.Period + 1, Thread: 0}
	}
	return Slot{Period: s.Period, Thread: s.Thread + 1}
}

// Prev returns the slot preceding s. The first genesis slot has no predecessor.
func (s Slot) Prev(threadCount uint8) (Slot, bool) {
	if s.Thread > 0 {
		return Slot{Period: s.Period, Thread: s.Thread - 1}, true
	}
	if s.Period == 0 {
		return Slot{}, false
	}
	return Slot{Period: s.Period - 1, Thread: threadCount - 1}, true
}

// Index is the number of slots between the first genesis slot and s.
func (s Slot) Index(threadCount uint8) uint64 {
	return s.Period*uint64(threadCount) + uint64(s.Thread)
}

// SlotFromIndex is the inverse of Slot.Index.
func SlotFromIndex(index uint64, threadCount uint8) Slot {
	return Slot{Period: index / uint64(threadCount), Thread: uint8(index % uint64(threadCount))}
}

func (s Slot) String() string {
	return fmt.Sprintf("(period: %d, thread: %d)", s.Period, s.Thread)
}
