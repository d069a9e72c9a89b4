package metrics

// Prometheus metric namespaces
const (
	namespaceConsensus = "consensus"
	namespaceEngine    = "engine"
	namespaceStorage   = "storage"
)

// Consensus subsystems
const (
	subsystemGraph  = "graph"
	subsystemClique = "clique"
)

// Storage subsystems
const (
	subsystemCache = "cache"
)

// Engine subsystems
const (
	subsystemQueue = "queue"
)
