package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/blockclique/blockclique-go/consensus/graph"
	"github.com/blockclique/blockclique-go/engine/common/fifoqueue"
	"github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/module/component"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/utils/logging"
)

const (
	// defaultInboundQueueCapacity is the maximum number of queued headers, bodies and ticks.
	defaultInboundQueueCapacity = 10_000
	// defaultOutboundCapacity is the buffer size of each outbound channel.
	defaultOutboundCapacity = 1_000
)

type snapshotResponse struct {
	data []byte
	err  error
}

type snapshotRequest struct {
	response chan snapshotResponse
}

type importRequest struct {
	snapshot *bootstrap.Graph
	result   chan error
}

// Engine is the single owner of the block graph. It serializes every mutation
// of the graph through one processing routine: inbound headers, bodies and
// slot ticks are queued and applied in arrival order, and the resulting graph
// events are fanned out to the protocol, pool, execution and API collaborators
// over typed channels. Queries are served from the published view of the graph
// and never wait for the processing routine.
type Engine struct {
	log       zerolog.Logger
	metrics   module.EngineMetrics
	graph     *graph.BlockGraph
	timeslots *dag.Timeslots
	clock     func() time.Time

	live          *atomic.Bool
	inbound       *fifoqueue.FifoQueue[interface{}]
	requests      *fifoqueue.FifoQueue[interface{}]
	notifier      module.Notifier
	queueCapacity int
	queueObserver fifoqueue.QueueLengthObserver

	protocol  chan ProtocolSignal
	pool      chan PoolEvent
	execution chan ExecutionEvent
	api       chan graph.Events

	cm *component.ComponentManager
	component.Component
}

var _ component.Component = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithSlotClock makes the engine tick the graph at every slot boundary of
// the given schedule, reading the time from clock.
func WithSlotClock(timeslots *dag.Timeslots, clock func() time.Time) Option {
	return func(e *Engine) {
		e.timeslots = timeslots
		e.clock = clock
	}
}

// WithBootstrapGate makes the engine drop live headers and bodies until a
// snapshot is imported or GoLive is called.
func WithBootstrapGate() Option {
	return func(e *Engine) {
		e.live.Store(false)
	}
}

// WithQueueCapacity sets the capacity of the inbound queue.
func WithQueueCapacity(capacity int) Option {
	return func(e *Engine) {
		e.queueCapacity = capacity
	}
}

// WithQueueLengthObserver reports the length of the inbound queue.
func WithQueueLengthObserver(observer fifoqueue.QueueLengthObserver) Option {
	return func(e *Engine) {
		e.queueObserver = observer
	}
}

// WithOutboundCapacity sets the buffer size of the outbound channels.
func WithOutboundCapacity(capacity int) Option {
	return func(e *Engine) {
		e.protocol = make(chan ProtocolSignal, capacity)
		e.pool = make(chan PoolEvent, capacity)
		e.execution = make(chan ExecutionEvent, capacity)
		e.api = make(chan graph.Events, capacity)
	}
}

// NewEngine creates an engine driving the graph. The graph must not be used
// by anything else once the engine is created.
func NewEngine(log zerolog.Logger, engineMetrics module.EngineMetrics, g *graph.BlockGraph, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:           log.With().Str("engine", metrics.EngineConsensus).Logger(),
		metrics:       engineMetrics,
		graph:         g,
		clock:         time.Now,
		live:          atomic.NewBool(true),
		notifier:      module.NewNotifier(),
		queueCapacity: defaultInboundQueueCapacity,
		queueObserver: func(int) {},
		protocol:      make(chan ProtocolSignal, defaultOutboundCapacity),
		pool:          make(chan PoolEvent, defaultOutboundCapacity),
		execution:     make(chan ExecutionEvent, defaultOutboundCapacity),
		api:           make(chan graph.Events, defaultOutboundCapacity),
	}
	for _, apply := range opts {
		apply(e)
	}

	inbound, err := fifoqueue.NewFifoQueue(
		fifoqueue.WithCapacity[interface{}](e.queueCapacity),
		fifoqueue.WithLengthObserver[interface{}](e.queueObserver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbound queue: %w", err)
	}
	requests, err := fifoqueue.NewFifoQueue[interface{}]()
	if err != nil {
		return nil, fmt.Errorf("failed to create request queue: %w", err)
	}
	e.inbound = inbound
	e.requests = requests

	builder := component.NewComponentManagerBuilder().
		AddWorker(e.processingLoop)
	if e.timeslots != nil {
		builder.AddWorker(e.slotTickerLoop)
	}
	e.cm = builder.Build()
	e.Component = e.cm

	return e, nil
}

// OnBlockHeader queues the header of a block received from the network.
func (e *Engine) OnBlockHeader(header *dag.Header) {
	e.enqueue(metrics.MessageBlockHeader, header)
}

// OnBlockBody queues a full block received from the network.
func (e *Engine) OnBlockBody(block *dag.Block) {
	e.enqueue(metrics.MessageBlockBody, block)
}

// OnSlotTick queues a tick to a slot. Ticks are also produced by the engine
// itself when it runs with a slot clock.
func (e *Engine) OnSlotTick(slot dag.Slot) {
	e.metrics.MessageReceived(metrics.EngineConsensus, metrics.MessageSlotTick)
	if !e.inbound.Push(slot) {
		e.metrics.InboundMessageDropped(metrics.EngineConsensus, metrics.MessageSlotTick)
		e.log.Warn().Func(logging.Slot(slot)).Msg("inbound queue full, dropping slot tick")
		return
	}
	e.notifier.Notify()
}

func (e *Engine) enqueue(message string, event interface{}) {
	e.metrics.MessageReceived(metrics.EngineConsensus, message)
	if !e.live.Load() {
		e.metrics.InboundMessageDropped(metrics.EngineConsensus, message)
		e.log.Debug().Str("message", message).Msg("not live yet, dropping block")
		return
	}
	if !e.inbound.Push(event) {
		e.metrics.InboundMessageDropped(metrics.EngineConsensus, message)
		return
	}
	e.notifier.Notify()
}

// GoLive opens the engine to live headers and bodies without importing a snapshot.
func (e *Engine) GoLive() {
	if e.live.CompareAndSwap(false, true) {
		e.log.Info().Msg("accepting live blocks")
	}
}

// IsLive returns whether the engine accepts live headers and bodies.
func (e *Engine) IsLive() bool {
	return e.live.Load()
}

// OnBootstrapRequest answers a bootstrapping peer with the encoded snapshot
// of the graph. The snapshot is taken by the processing routine between two
// mutations.
func (e *Engine) OnBootstrapRequest(ctx context.Context) ([]byte, error) {
	e.metrics.MessageReceived(metrics.EngineConsensus, metrics.MessageBootstrapRequest)
	request := snapshotRequest{response: make(chan snapshotResponse, 1)}
	e.requests.Push(request)
	e.notifier.Notify()

	select {
	case response := <-request.response:
		return response.data, response.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.cm.ShutdownSignal():
		return nil, fmt.Errorf("engine is shutting down")
	}
}

// ImportSnapshot replaces the graph with a snapshot and opens the engine to
// live blocks.
// Expected errors:
//   - graph.ImportError if the snapshot is rejected; the graph is unchanged
//   - context errors if ctx ends before the import is applied
func (e *Engine) ImportSnapshot(ctx context.Context, snapshot *bootstrap.Graph) error {
	e.metrics.MessageReceived(metrics.EngineConsensus, metrics.MessageImportSnapshot)
	request := importRequest{snapshot: snapshot, result: make(chan error, 1)}
	e.requests.Push(request)
	e.notifier.Notify()

	select {
	case err := <-request.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.cm.ShutdownSignal():
		return fmt.Errorf("engine is shutting down")
	}
}

// ProtocolSignals returns the requests for the protocol layer.
func (e *Engine) ProtocolSignals() <-chan ProtocolSignal {
	return e.protocol
}

// PoolEvents returns the operation updates for the pool.
func (e *Engine) PoolEvents() <-chan PoolEvent {
	return e.pool
}

// ExecutionEvents returns the final blocks for the execution layer.
func (e *Engine) ExecutionEvents() <-chan ExecutionEvent {
	return e.execution
}

// GraphEvents returns the graph events for the API layer.
func (e *Engine) GraphEvents() <-chan graph.Events {
	return e.api
}

// View returns the latest published view of the graph.
func (e *Engine) View() *graph.View {
	return e.graph.View()
}

// BestParents returns the parents a new block must reference.
func (e *Engine) BestParents() dag.IdentifierList {
	return e.graph.View().BestParents()
}

// Status returns the status of a block.
func (e *Engine) Status(id dag.Identifier) dag.BlockStatus {
	return e.graph.View().Status(id)
}

// Blockclique returns the non-final blocks of the blockclique.
func (e *Engine) Blockclique() dag.IdentifierList {
	return e.graph.View().Blockclique()
}

// LatestFinal returns the latest final block of each thread.
func (e *Engine) LatestFinal() dag.IdentifierList {
	return e.graph.View().LatestFinal()
}

// FinalizedRange returns the final blocks of a thread between two periods, inclusive.
func (e *Engine) FinalizedRange(thread uint8, from uint64, to uint64) ([]*storage.FinalizedBlock, error) {
	return e.graph.FinalizedRange(thread, from, to)
}

// processingLoop applies the queued events as they arrive.
func (e *Engine) processingLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	doneSignal := ctx.Done()
	newEventSignal := e.notifier.Channel()
	for {
		select {
		case <-doneSignal:
			return
		case <-newEventSignal:
			err := e.processQueued(ctx) // no errors expected during normal operations
			if err != nil {
				ctx.Throw(err)
				return
			}
		}
	}
}

// processQueued processes the queued events until both queues are empty.
// Requests go first, so that a bootstrap import is never stuck behind live traffic.
// No errors are expected during normal operation. All returned exceptions are
// symptoms of a corrupted graph state and are fatal.
func (e *Engine) processQueued(ctx irrecoverable.SignalerContext) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		request, ok := e.requests.Pop()
		if ok {
			err := e.processRequest(ctx, request)
			if err != nil {
				return err
			}
			continue
		}

		event, ok := e.inbound.Pop()
		if ok {
			err := e.processInbound(ctx, event)
			if err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

func (e *Engine) processRequest(ctx irrecoverable.SignalerContext, request interface{}) error {
	switch r := request.(type) {
	case snapshotRequest:
		data, err := bootstrap.Encode(e.graph.ExportSnapshot())
		if err != nil {
			err = fmt.Errorf("could not encode snapshot: %w", err)
		}
		r.response <- snapshotResponse{data: data, err: err}
		e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageBootstrapRequest)
		return nil

	case importRequest:
		err := e.graph.ImportSnapshot(r.snapshot)
		if graph.IsImportError(err) {
			e.log.Warn().Err(err).Msg("snapshot rejected")
			r.result <- err
			e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageImportSnapshot)
			return nil
		}
		if err != nil {
			r.result <- fmt.Errorf("could not import snapshot")
			return fmt.Errorf("could not import snapshot: %w", err)
		}
		e.live.Store(true)
		r.result <- nil
		e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageImportSnapshot)
		e.log.Info().
			Strs("latest_final", logging.IDs(e.graph.LatestFinal())).
			Msg("snapshot imported, accepting live blocks")
		return e.dispatch(ctx)

	default:
		return irrecoverable.NewExceptionf("unexpected request type %T", request)
	}
}

func (e *Engine) processInbound(ctx irrecoverable.SignalerContext, event interface{}) error {
	switch ev := event.(type) {
	case *dag.Header:
		id, needBody, err := e.graph.SubmitHeader(ev)
		if err != nil && !graph.IsValidationError(err) {
			return fmt.Errorf("could not submit header %v: %w", id, err)
		}
		e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageBlockHeader)
		if err == nil && needBody {
			e.signal(ProtocolSignal{Kind: RequestBlock, BlockID: id})
		}

	case *dag.Block:
		id, err := e.graph.Submit(ev)
		if err != nil && !graph.IsValidationError(err) {
			return fmt.Errorf("could not submit block %v: %w", id, err)
		}
		e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageBlockBody)
		if err == nil && e.graph.Status(id).Kind == dag.StatusWaitingForDependencies {
			e.signal(ProtocolSignal{Kind: RequestParents, BlockID: id})
		}

	case dag.Slot:
		err := e.graph.Tick(ev)
		if err != nil {
			return fmt.Errorf("could not tick to slot %v: %w", ev, err)
		}
		e.metrics.MessageHandled(metrics.EngineConsensus, metrics.MessageSlotTick)

	default:
		return irrecoverable.NewExceptionf("unexpected inbound event type %T", event)
	}
	return e.dispatch(ctx)
}

// dispatch fans the accumulated graph events out to the collaborators. The
// pool and execution layers must see every event, sending to them blocks; the
// protocol and API layers only get what fits into their channels.
func (e *Engine) dispatch(ctx context.Context) error {
	events := e.graph.DrainEvents()
	if events.Empty() {
		return nil
	}

	for _, id := range events.NeedBlocks {
		e.signal(ProtocolSignal{Kind: RequestBlock, BlockID: id})
	}

	if len(events.Finalized) > 0 {
		finalized := PoolEvent{Kind: BlocksFinalized}
		for _, block := range events.Finalized {
			finalized.BlockIDs = append(finalized.BlockIDs, block.BlockID)
			for _, op := range block.Operations {
				finalized.OperationIDs = append(finalized.OperationIDs, op.ID())
			}
		}
		if !send(ctx, e.pool, finalized) {
			return nil
		}
		e.metrics.MessageSent(metrics.EngineConsensus, metrics.MessagePoolEvent)

		for _, block := range events.Finalized {
			executed := ExecutionEvent{
				BlockID:    block.BlockID,
				Slot:       block.Slot,
				Operations: block.Operations,
			}
			if !send(ctx, e.execution, executed) {
				return nil
			}
			e.metrics.MessageSent(metrics.EngineConsensus, metrics.MessageExecutionEvent)
		}
	}

	if len(events.Discarded) > 0 {
		discarded := PoolEvent{Kind: BlocksDiscarded}
		for _, block := range events.Discarded {
			discarded.BlockIDs = append(discarded.BlockIDs, block.BlockID)
			discarded.OperationIDs = append(discarded.OperationIDs, block.OperationIDs...)
		}
		if !send(ctx, e.pool, discarded) {
			return nil
		}
		e.metrics.MessageSent(metrics.EngineConsensus, metrics.MessagePoolEvent)
	}

	select {
	case e.api <- events:
		e.metrics.MessageSent(metrics.EngineConsensus, metrics.MessageGraphEvent)
	default:
		e.metrics.OutboundMessageDropped(metrics.EngineConsensus, metrics.MessageGraphEvent)
	}
	return nil
}

func (e *Engine) signal(signal ProtocolSignal) {
	select {
	case e.protocol <- signal:
		e.metrics.MessageSent(metrics.EngineConsensus, metrics.MessageProtocolSignal)
	default:
		e.metrics.OutboundMessageDropped(metrics.EngineConsensus, metrics.MessageProtocolSignal)
		e.log.Warn().
			Hex("block_id", signal.BlockID[:]).
			Str("kind", signal.Kind.String()).
			Msg("protocol channel full, dropping signal")
	}
}

// send blocks until the event is sent or the context ends, and reports whether it was sent.
func send[T any](ctx context.Context, ch chan<- T, event T) bool {
	select {
	case ch <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// slotTickerLoop ticks the graph at every slot boundary.
func (e *Engine) slotTickerLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	current, err := e.timeslots.SlotAt(e.clock())
	if err != nil && !errors.Is(err, dag.ErrBeforeGenesis) {
		ctx.Throw(fmt.Errorf("could not compute the current slot: %w", err))
		return
	}
	if err == nil {
		e.OnSlotTick(current)
	}

	for {
		next, wait := e.timeslots.UntilNextSlot(e.clock())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			e.OnSlotTick(next)
		}
	}
}
