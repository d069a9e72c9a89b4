package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/blockclique/blockclique-go/config"
	"github.com/blockclique/blockclique-go/consensus/graph"
	"github.com/blockclique/blockclique-go/engine/bootstrap"
	"github.com/blockclique/blockclique-go/engine/consensus"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/component"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/module/util"
	bstorage "github.com/blockclique/blockclique-go/storage/badger"
	"github.com/blockclique/blockclique-go/utils/logging"
)

const fetchTimeout = time.Minute

// Node runs the consensus engine with its supporting services: the metrics and
// snapshot server, and the bootstrap from peers.
type Node struct {
	*component.ComponentManager
	log    zerolog.Logger
	config *config.GraphConfig
	db     *badger.DB

	Graph  *graph.BlockGraph
	Engine *consensus.Engine
	server *metrics.Server
	client *bootstrap.Client
}

var _ component.Component = (*Node)(nil)

// NewNode assembles a node. Metrics are registered on registry.
func NewNode(log zerolog.Logger, conf *config.GraphConfig, registry *prometheus.Registry) (*Node, error) {
	genesisKey, err := conf.GenesisPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not load genesis key: %w", err)
	}
	selector, err := conf.Selector(genesisKey)
	if err != nil {
		return nil, fmt.Errorf("could not create creator selection: %w", err)
	}
	timeslots, err := conf.Timeslots(time.Now())
	if err != nil {
		return nil, fmt.Errorf("could not create slot clock: %w", err)
	}

	db, err := bstorage.OpenDB(log, conf.HistoryDir)
	if err != nil {
		return nil, err
	}
	cacheMetrics := metrics.NewCacheCollector(registry)
	graphMetrics := metrics.NewGraphCollector(registry)
	engineMetrics := metrics.NewEngineCollector(registry)

	history := bstorage.NewHistory(cacheMetrics, db, uint(conf.HistoryCacheSize))
	g, err := graph.New(log, graphMetrics, conf.Graph(), selector, history, dag.Genesis(conf.ThreadCount, genesisKey))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create block graph: %w", err)
	}

	opts := []consensus.Option{
		consensus.WithSlotClock(timeslots, time.Now),
		consensus.WithQueueLengthObserver(engineMetrics.QueueLengthObserver(metrics.EngineConsensus)),
	}
	if len(conf.BootstrapPeers) > 0 {
		opts = append(opts, consensus.WithBootstrapGate())
	}
	engine, err := consensus.NewEngine(log, engineMetrics, g, opts...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create consensus engine: %w", err)
	}

	node := &Node{
		log:    log.With().Str("component", "node").Logger(),
		config: conf,
		db:     db,
		Graph:  g,
		Engine: engine,
		server: metrics.NewServer(log, conf.MetricsPort, registry, metrics.Route{
			Pattern: bootstrap.SnapshotPath,
			Handler: bootstrap.NewHandler(log, engineMetrics, engine),
		}),
		client: bootstrap.NewClient(log, engineMetrics, bootstrap.NewHTTPFetcher(fetchTimeout), engine, conf.Bootstrap()),
	}

	builder := component.NewComponentManagerBuilder()
	builder.AddWorker(startComponent(engine))
	builder.AddWorker(startComponent(node.server))
	builder.AddWorker(node.bootstrapWorker)
	builder.AddWorker(node.collaboratorWorker)
	node.ComponentManager = builder.Build()

	node.log.Info().
		Uint8("thread_count", conf.ThreadCount).
		Dur("t0", conf.T0).
		Time("genesis", timeslots.SlotTimestamp(dag.Slot{})).
		Strs("latest_final", g.LatestFinal().Strings()).
		Msg("node assembled")
	return node, nil
}

// startComponent runs a sub-component as a worker of the node.
func startComponent(c component.Component) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		c.Start(ctx)
		if util.WaitClosed(ctx, c.Ready()) == nil {
			ready()
		}
		<-c.Done()
	}
}

// bootstrapWorker imports a snapshot from the configured peers, or opens the
// engine to live blocks right away if there are none.
func (n *Node) bootstrapWorker(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	if len(n.config.BootstrapPeers) == 0 {
		n.Engine.GoLive()
		return
	}
	if util.WaitClosed(ctx, n.Engine.Ready()) != nil {
		return
	}

	snapshot, err := n.client.Bootstrap(ctx, n.config.BootstrapPeers)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ctx.Throw(fmt.Errorf("could not bootstrap: %w", err))
		return
	}
	n.log.Info().
		Func(logging.Slot(snapshot.CurrentSlot)).
		Int("final_blocks", len(snapshot.FinalBlocks)).
		Msg("node bootstrapped")
}

// collaboratorWorker consumes the outbound channels of the engine. The
// protocol, pool and execution layers are external to this node: their events
// are logged.
func (n *Node) collaboratorWorker(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		select {
		case <-ctx.Done():
			return
		case request := <-n.Engine.ProtocolSignals():
			n.log.Debug().
				Str("signal", request.Kind.String()).
				Str("block_id", request.BlockID.String()).
				Msg("protocol signal")
		case event := <-n.Engine.PoolEvents():
			n.log.Debug().
				Str("event", event.Kind.String()).
				Int("blocks", len(event.BlockIDs)).
				Int("operations", len(event.OperationIDs)).
				Msg("pool event")
		case event := <-n.Engine.ExecutionEvents():
			n.log.Info().
				Func(logging.Block(event.BlockID, event.Slot)).
				Int("operations", len(event.Operations)).
				Msg("block final")
		case events := <-n.Engine.GraphEvents():
			n.log.Trace().
				Int("added", len(events.Added)).
				Int("finalized", len(events.Finalized)).
				Int("discarded", len(events.Discarded)).
				Msg("graph events")
		}
	}
}

// Run starts the node and blocks until it is interrupted or fails. It returns
// once every component is stopped and the history is closed.
func (n *Node) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	n.Start(signalerCtx)

	go func() {
		select {
		case <-n.Ready():
			n.log.Info().Msg("node startup complete")
		case <-ctx.Done():
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	var failure *multierror.Error
	select {
	case <-signals:
		n.log.Info().Msg("node shutting down")
	case err := <-errChan:
		n.log.Error().Err(err).Msg("unhandled irrecoverable error")
		failure = multierror.Append(failure, err)
	}
	cancel()

	select {
	case <-n.Done():
	case <-signals:
		failure = multierror.Append(failure, errors.New("node shutdown aborted"))
	}
	err := n.db.Close()
	if err != nil {
		failure = multierror.Append(failure, fmt.Errorf("could not close history: %w", err))
	}
	if failure != nil {
		return failure.ErrorOrNil()
	}
	n.log.Info().Msg("node shutdown complete")
	return nil
}
