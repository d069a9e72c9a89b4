package graph

// Config holds the consensus policy of the graph.
type Config struct {
	ThreadCount uint8
	// FinalityThreshold is the weight a block must be buried under inside the
	// blockclique before it becomes final. Cliques lighter than the blockclique
	// by more than this are abandoned.
	FinalityThreshold uint64
	// FinalityPeriods is the number of periods the descendants of a block must
	// span before it becomes final.
	FinalityPeriods uint64
	// MaxBlocksPerSlot bounds the number of competing blocks kept per slot.
	MaxBlocksPerSlot int
	// FutureBlockMaxPeriods bounds how far ahead of the current slot a block is held.
	FutureBlockMaxPeriods uint64
	// DependencyTimeoutPeriods is how long a block waits for its parents or its body.
	DependencyTimeoutPeriods uint64
	// MaxDependencyBlocks bounds the number of blocks waiting for their parents.
	MaxDependencyBlocks int
	// MaxDiscardedBlocks bounds the number of discarded ids remembered to reject replays.
	MaxDiscardedBlocks int
	// DiscardRetentionPeriods is how long discarded ids are remembered.
	DiscardRetentionPeriods uint64
	// KeepFinalPeriods is how long final blocks stay in memory after a newer block
	// of their thread became final.
	KeepFinalPeriods uint64
	// MaxFrontierSize is the number of non-final active blocks above which a
	// liveness warning is raised.
	MaxFrontierSize int
	// MaxCliques bounds the clique enumeration.
	MaxCliques               int
	MaxOperationsPerBlock    int
	OperationValidityPeriods uint64
}

// DefaultConfig returns the default consensus policy.
func DefaultConfig() Config {
	return Config{
		ThreadCount:              32,
		FinalityThreshold:        32,
		FinalityPeriods:          1,
		MaxBlocksPerSlot:         2,
		FutureBlockMaxPeriods:    100,
		DependencyTimeoutPeriods: 10,
		MaxDependencyBlocks:      2048,
		MaxDiscardedBlocks:       10000,
		DiscardRetentionPeriods:  64,
		KeepFinalPeriods:         1,
		MaxFrontierSize:          2048,
		MaxCliques:               1000,
		MaxOperationsPerBlock:    4096,
		OperationValidityPeriods: 10,
	}
}
