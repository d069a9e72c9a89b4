package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
)

type GraphCollector struct {
	received          *prometheus.CounterVec
	finalized         *prometheus.CounterVec
	latestFinalPeriod *prometheus.GaugeVec
	discarded         *prometheus.CounterVec
	equivocations     prometheus.Counter
	currentPeriod     prometheus.Gauge
	blocks            *prometheus.GaugeVec
	cliques           prometheus.Gauge
	blockcliqueSize   prometheus.Gauge
	cliqueDuration    prometheus.Histogram
	frontierOversized prometheus.Counter
	frontierSize      prometheus.Gauge
}

var _ module.GraphMetrics = (*GraphCollector)(nil)

func NewGraphCollector(registerer prometheus.Registerer) *GraphCollector {
	factory := promauto.With(registerer)

	gc := &GraphCollector{

		received: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "blocks_received_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the number of submitted blocks, by outcome of the submission",
		}, []string{LabelOutcome}),

		finalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "blocks_finalized_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the number of blocks promoted to final, per thread",
		}, []string{LabelThread}),

		latestFinalPeriod: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "latest_final_period",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the period of the latest final block, per thread",
		}, []string{LabelThread}),

		discarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "blocks_discarded_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the number of discarded blocks, by reason",
		}, []string{LabelReason}),

		equivocations: factory.NewCounter(prometheus.CounterOpts{
			Name:      "equivocations_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the number of slots for which a creator produced several blocks",
		}),

		currentPeriod: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "current_period",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the period of the latest slot tick",
		}),

		blocks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "blocks",
			Namespace: namespaceConsensus,
			Subsystem: subsystemGraph,
			Help:      "the number of blocks held in memory, by kind",
		}, []string{LabelBlockKind}),

		cliques: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "count",
			Namespace: namespaceConsensus,
			Subsystem: subsystemClique,
			Help:      "the number of maximal cliques of compatible blocks",
		}),

		blockcliqueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "blockclique_size",
			Namespace: namespaceConsensus,
			Subsystem: subsystemClique,
			Help:      "the number of blocks in the blockclique",
		}),

		cliqueDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:      "computation_seconds",
			Namespace: namespaceConsensus,
			Subsystem: subsystemClique,
			Help:      "duration of clique recomputations",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),

		frontierOversized: factory.NewCounter(prometheus.CounterOpts{
			Name:      "frontier_oversized_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemClique,
			Help:      "the number of clique computations over a non-final frontier exceeding its bound",
		}),

		frontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "frontier_size",
			Namespace: namespaceConsensus,
			Subsystem: subsystemClique,
			Help:      "the size of the last oversized non-final frontier",
		}),
	}

	return gc
}

func (gc *GraphCollector) BlockReceived(outcome string) {
	gc.received.With(prometheus.Labels{LabelOutcome: outcome}).Inc()
}

func (gc *GraphCollector) BlockFinalized(slot dag.Slot) {
	thread := strconv.Itoa(int(slot.Thread))
	gc.finalized.With(prometheus.Labels{LabelThread: thread}).Inc()
	gc.latestFinalPeriod.With(prometheus.Labels{LabelThread: thread}).Set(float64(slot.Period))
}

func (gc *GraphCollector) BlockDiscarded(reason dag.DiscardReason) {
	gc.discarded.With(prometheus.Labels{LabelReason: reason.String()}).Inc()
}

func (gc *GraphCollector) Equivocation() {
	gc.equivocations.Inc()
}

func (gc *GraphCollector) CurrentSlot(slot dag.Slot) {
	gc.currentPeriod.Set(float64(slot.Period))
}

func (gc *GraphCollector) GraphSize(active, pending, final int) {
	gc.blocks.With(prometheus.Labels{LabelBlockKind: "active"}).Set(float64(active))
	gc.blocks.With(prometheus.Labels{LabelBlockKind: "pending"}).Set(float64(pending))
	gc.blocks.With(prometheus.Labels{LabelBlockKind: "final"}).Set(float64(final))
}

func (gc *GraphCollector) Cliques(count int, blockcliqueSize int) {
	gc.cliques.Set(float64(count))
	gc.blockcliqueSize.Set(float64(blockcliqueSize))
}

func (gc *GraphCollector) CliqueComputationDuration(duration time.Duration) {
	gc.cliqueDuration.Observe(duration.Seconds())
}

func (gc *GraphCollector) FrontierOversized(size int) {
	gc.frontierOversized.Inc()
	gc.frontierSize.Set(float64(size))
}
