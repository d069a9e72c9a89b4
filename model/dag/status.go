package dag

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a block status change is not allowed
// by the block life cycle.
var ErrInvalidTransition = errors.New("invalid block status transition")

// StatusKind is the life cycle stage of a block.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	// StatusIncoming: header received, body not yet.
	StatusIncoming
	// StatusWaitingForSlot: block from a future slot, held until the slot starts.
	StatusWaitingForSlot
	// StatusWaitingForDependencies: valid block missing one or more parents.
	StatusWaitingForDependencies
	StatusActive
	StatusFinal
	StatusDiscarded
)

func (k StatusKind) String() string {
	return [...]string{"unknown", "incoming", "waiting_for_slot", "waiting_for_dependencies", "active", "final", "discarded"}[k]
}

// DiscardReason tells why a block was discarded.
type DiscardReason int

const (
	ReasonNone DiscardReason = iota
	ReasonInvalid
	ReasonStale
	ReasonSupersededByFinal
	ReasonTimeout
)

func (r DiscardReason) String() string {
	return [...]string{"none", "invalid", "stale", "superseded_by_final", "timeout"}[r]
}

// BlockStatus is the status of a block. Reason and Detail are only set for
// discarded blocks.
type BlockStatus struct {
	Kind   StatusKind
	Reason DiscardReason
	Detail string
}

var (
	Unknown                = BlockStatus{Kind: StatusUnknown}
	Incoming               = BlockStatus{Kind: StatusIncoming}
	WaitingForSlot         = BlockStatus{Kind: StatusWaitingForSlot}
	WaitingForDependencies = BlockStatus{Kind: StatusWaitingForDependencies}
	Active                 = BlockStatus{Kind: StatusActive}
	Final                  = BlockStatus{Kind: StatusFinal}
)

// Discarded returns a discarded status.
func Discarded(reason DiscardReason, detail string) BlockStatus {
	return BlockStatus{Kind: StatusDiscarded, Reason: reason, Detail: detail}
}

// IsTerminal returns true for final and discarded blocks.
func (s BlockStatus) IsTerminal() bool {
	return s.Kind == StatusFinal || s.Kind == StatusDiscarded
}

// IsPending returns true for blocks that are known but not in the graph yet.
func (s BlockStatus) IsPending() bool {
	switch s.Kind {
	case StatusIncoming, StatusWaitingForSlot, StatusWaitingForDependencies:
		return true
	default:
		return false
	}
}

// InGraph returns true for active and final blocks.
func (s BlockStatus) InGraph() bool {
	return s.Kind == StatusActive || s.Kind == StatusFinal
}

// Transition returns the status reached by moving from s to next.
// Expected errors:
//   - ErrInvalidTransition if the block life cycle does not allow the change
func (s BlockStatus) Transition(next BlockStatus) (BlockStatus, error) {
	if next.Kind == StatusDiscarded && next.Reason == ReasonNone {
		return s, fmt.Errorf("discarding requires a reason: %w", ErrInvalidTransition)
	}
	if !allowed(s.Kind, next.Kind) {
		return s, fmt.Errorf("%s -> %s: %w", s.Kind, next.Kind, ErrInvalidTransition)
	}
	return next, nil
}

func allowed(from, to StatusKind) bool {
	switch from {
	case StatusUnknown:
		// blocks enter the store in any state: genesis and imported blocks are final right away
		return to != StatusUnknown
	case StatusIncoming:
		return to == StatusWaitingForSlot || to == StatusWaitingForDependencies || to == StatusActive || to == StatusDiscarded
	case StatusWaitingForSlot:
		return to == StatusWaitingForDependencies || to == StatusActive || to == StatusDiscarded
	case StatusWaitingForDependencies:
		return to == StatusActive || to == StatusDiscarded
	case StatusActive:
		return to == StatusFinal || to == StatusDiscarded
	default:
		return false
	}
}

func (s BlockStatus) String() string {
	if s.Kind != StatusDiscarded {
		return s.Kind.String()
	}
	if s.Detail == "" {
		return fmt.Sprintf("discarded(%s)", s.Reason)
	}
	return fmt.Sprintf("discarded(%s: %s)", s.Reason, s.Detail)
}
