package logging

import (
	"github.com/rs/zerolog"

	"github.com/blockclique/blockclique-go/model/dag"
)

// Slot adds the coordinates of a slot to a log event.
func Slot(slot dag.Slot) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Uint64("period", slot.Period).Uint8("thread", slot.Thread)
	}
}

// Block adds the id and slot of a block to a log event.
func Block(id dag.Identifier, slot dag.Slot) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Str("block_id", id.String()).Uint64("period", slot.Period).Uint8("thread", slot.Thread)
	}
}
