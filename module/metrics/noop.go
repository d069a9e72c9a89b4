package metrics

import (
	"time"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
)

type NoopCollector struct{}

var _ module.GraphMetrics = (*NoopCollector)(nil)
var _ module.EngineMetrics = (*NoopCollector)(nil)
var _ module.CacheMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) MessageSent(engine string, message string)            {}
func (nc *NoopCollector) MessageReceived(engine string, message string)        {}
func (nc *NoopCollector) MessageHandled(engine string, message string)         {}
func (nc *NoopCollector) InboundMessageDropped(engine string, message string)  {}
func (nc *NoopCollector) OutboundMessageDropped(engine string, message string) {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)           {}
func (nc *NoopCollector) CacheHit(resource string)                             {}
func (nc *NoopCollector) CacheNotFound(resource string)                        {}
func (nc *NoopCollector) CacheMiss(resource string)                            {}
func (nc *NoopCollector) BlockReceived(outcome string)                         {}
func (nc *NoopCollector) BlockFinalized(slot dag.Slot)                         {}
func (nc *NoopCollector) BlockDiscarded(reason dag.DiscardReason)              {}
func (nc *NoopCollector) Equivocation()                                        {}
func (nc *NoopCollector) CurrentSlot(slot dag.Slot)                            {}
func (nc *NoopCollector) GraphSize(active, pending, final int)                 {}
func (nc *NoopCollector) Cliques(count int, blockcliqueSize int)               {}
func (nc *NoopCollector) CliqueComputationDuration(duration time.Duration)     {}
func (nc *NoopCollector) FrontierOversized(size int)                           {}
