package dag

import (
	"errors"
	"fmt"
	"time"
)

// ErrBeforeGenesis is returned when a point in time precedes the genesis timestamp.
var ErrBeforeGenesis = errors.New("time is before genesis")

// Timeslots maps wall clock time onto slots. Slot (p, τ) starts at
// genesis + p·t0 + τ·(t0/T).
type Timeslots struct {
	threadCount uint8
	t0          time.Duration
	genesis     time.Time
}

// NewTimeslots creates the mapping. The period duration must be divisible by the thread count.
func NewTimeslots(threadCount uint8, t0 time.Duration, genesis time.Time) (*Timeslots, error) {
	if threadCount == 0 {
		return nil, fmt.Errorf("thread count must be positive")
	}
	if t0 <= 0 || t0%time.Duration(threadCount) != 0 {
		return nil, fmt.Errorf("period duration %v must be positive and divisible by the thread count %d", t0, threadCount)
	}
	return &Timeslots{
		threadCount: threadCount,
		t0:          t0,
		genesis:     genesis,
	}, nil
}

// ThreadCount returns the number of threads.
func (ts *Timeslots) ThreadCount() uint8 {
	return ts.threadCount
}

func (ts *Timeslots) slotDuration() time.Duration {
	return ts.t0 / time.Duration(ts.threadCount)
}

// SlotTimestamp returns the start time of a slot.
func (ts *Timeslots) SlotTimestamp(slot Slot) time.Time {
	return ts.genesis.Add(time.Duration(slot.Index(ts.threadCount)) * ts.slotDuration())
}

// SlotAt returns the latest slot that started at or before now.
// Expected errors:
//   - ErrBeforeGenesis if now is before the genesis timestamp
func (ts *Timeslots) SlotAt(now time.Time) (Slot, error) {
	if now.Before(ts.genesis) {
		return Slot{}, ErrBeforeGenesis
	}
	index := uint64(now.Sub(ts.genesis) / ts.slotDuration())
	return SlotFromIndex(index, ts.threadCount), nil
}

// NextSlotAt returns the first slot starting strictly after now.
func (ts *Timeslots) NextSlotAt(now time.Time) Slot {
	current, err := ts.SlotAt(now)
	if errors.Is(err, ErrBeforeGenesis) {
		return Slot{}
	}
	return current.Next(ts.threadCount)
}

// UntilNextSlot returns the next slot after now and how long to wait for it.
func (ts *Timeslots) UntilNextSlot(now time.Time) (Slot, time.Duration) {
	next := ts.NextSlotAt(now)
	return next, ts.SlotTimestamp(next).Sub(now)
}
