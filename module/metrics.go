package module

import (
	"time"

	"github.com/blockclique/blockclique-go/model/dag"
)

// EngineMetrics is a generic metrics consumer for node-internal data processing
// components (aka engines). Implementations must be non-blocking and concurrency safe.
type EngineMetrics interface {
	// MessageSent reports that the engine emitted the message to a collaborator.
	MessageSent(engine string, message string)
	// MessageReceived reports that the engine received the message.
	MessageReceived(engine string, message string)
	// MessageHandled reports that the engine has finished processing the message.
	// A message must be reported as either handled or dropped, not both.
	MessageHandled(engine string, messages string)
	// InboundMessageDropped reports that the engine has dropped inbound message without processing it.
	InboundMessageDropped(engine string, messages string)
	// OutboundMessageDropped reports that the engine has dropped outbound message without sending it.
	OutboundMessageDropped(engine string, messages string)
}

type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item was not found in either cache or database.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, but found in the database.
	CacheMiss(resource string)
}

// GraphMetrics reports the state of the block graph.
type GraphMetrics interface {
	// BlockReceived reports the outcome of a block submission, either the status
	// the block entered or the kind of validation failure.
	BlockReceived(outcome string)
	// BlockFinalized reports a block promoted to final.
	BlockFinalized(slot dag.Slot)
	// BlockDiscarded reports a block leaving the graph.
	BlockDiscarded(reason dag.DiscardReason)
	// Equivocation reports a creator producing several blocks for one slot.
	Equivocation()
	// CurrentSlot reports the latest slot the graph was ticked to.
	CurrentSlot(slot dag.Slot)
	// GraphSize reports the number of non-final active blocks, pending blocks and final blocks held in memory.
	GraphSize(active, pending, final int)
	// Cliques reports the number of maximal cliques and the size of the blockclique.
	Cliques(count int, blockcliqueSize int)
	// CliqueComputationDuration reports how long a clique recomputation took.
	CliqueComputationDuration(duration time.Duration)
	// FrontierOversized reports a non-final frontier exceeding its configured bound.
	FrontierOversized(size int)
}
