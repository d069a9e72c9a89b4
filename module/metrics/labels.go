package metrics

const (
	EngineLabel    = "engine"
	LabelMessage   = "message"
	LabelResource  = "resource"
	LabelOutcome   = "outcome"
	LabelReason    = "reason"
	LabelThread    = "thread"
	LabelBlockKind = "kind"
)

const (
	EngineConsensus = "consensus"
	EngineBootstrap = "bootstrap"
)

const (
	ResourceFinalizedBlock = "finalized_block"
	ResourceSlotIndex      = "slot_index"
)

const (
	MessageBlockHeader      = "block_header"
	MessageBlockBody        = "block_body"
	MessageSlotTick         = "slot_tick"
	MessageBootstrapRequest = "bootstrap_request"
	MessageImportSnapshot   = "import_snapshot"
	MessageProtocolSignal   = "protocol_signal"
	MessagePoolEvent        = "pool_event"
	MessageExecutionEvent   = "execution_event"
	MessageGraphEvent       = "graph_event"
)
