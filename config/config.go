package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/blockclique/blockclique-go/consensus/graph"
	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/engine/bootstrap"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/selection"
)

// EnvPrefix prefixes the environment variables overriding configuration keys,
// e.g. BLOCKCLIQUE_THREAD_COUNT.
const EnvPrefix = "BLOCKCLIQUE"

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report violations under the configuration key rather than the field name
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// GraphConfig is the node configuration.
type GraphConfig struct {
	ThreadCount uint8 `validate:"gt=0" mapstructure:"thread_count"`
	// T0 is the duration of a period; it is split evenly between the threads.
	T0 time.Duration `validate:"gt=0" mapstructure:"t0"`
	// GenesisTimestamp is the start of period 0 in unix milliseconds. Zero starts
	// the network when the node starts.
	GenesisTimestamp int64 `validate:"gte=0" mapstructure:"genesis_timestamp"`
	// GenesisKey is the hex encoded key signing the genesis blocks. Nodes of a
	// network must share it. Empty generates a throwaway key.
	GenesisKey string `validate:"omitempty,hexadecimal" mapstructure:"genesis_key"`
	// Creators are the base58 addresses drawn in turn to create blocks, with
	// equal stakes. Empty lets the genesis key create every block.
	Creators []string `mapstructure:"creators"`

	FinalityThreshold        uint64 `validate:"gt=0" mapstructure:"finality_threshold"`
	FinalityPeriods          uint64 `mapstructure:"finality_periods"`
	MaxBlocksPerSlot         int    `validate:"gt=0" mapstructure:"max_blocks_per_slot"`
	FutureBlockMaxPeriods    uint64 `mapstructure:"future_block_max_periods"`
	DependencyTimeoutPeriods uint64 `validate:"gt=0" mapstructure:"dependency_timeout_periods"`
	MaxDependencyBlocks      int    `validate:"gt=0" mapstructure:"max_dependency_blocks"`
	MaxDiscardedBlocks       int    `validate:"gt=0" mapstructure:"max_discarded_blocks"`
	DiscardRetentionPeriods  uint64 `mapstructure:"discard_retention_periods"`
	KeepFinalPeriods         uint64 `mapstructure:"keep_final_periods"`
	MaxFrontierSize          int    `validate:"gt=0" mapstructure:"max_frontier_size"`
	MaxCliques               int    `validate:"gt=0" mapstructure:"max_cliques"`
	MaxOperationsPerBlock    int    `validate:"gt=0" mapstructure:"max_operations_per_block"`
	OperationValidityPeriods uint64 `validate:"gt=0" mapstructure:"operation_validity_periods"`

	// HistoryDir is the directory of the finalized history. Empty keeps it in memory.
	HistoryDir       string `mapstructure:"history_dir"`
	HistoryCacheSize int    `validate:"gt=0" mapstructure:"history_cache_size"`
	MetricsPort      uint   `validate:"lte=65535" mapstructure:"metrics_port"`

	// BootstrapPeers are the http addresses of the nodes serving snapshots. A
	// node without peers goes live on its own genesis.
	BootstrapPeers            []string      `validate:"dive,hostname_port" mapstructure:"bootstrap_peers"`
	BootstrapRetryInterval    time.Duration `validate:"gt=0" mapstructure:"bootstrap_retry_interval"`
	BootstrapMaxRetryInterval time.Duration `validate:"gtefield=BootstrapRetryInterval" mapstructure:"bootstrap_max_retry_interval"`
	BootstrapMaxAttempts      uint64        `validate:"gt=0" mapstructure:"bootstrap_max_attempts"`
}

// DefaultGraphConfig returns the default node configuration.
func DefaultGraphConfig() GraphConfig {
	policy := graph.DefaultConfig()
	retry := bootstrap.DefaultConfig()
	return GraphConfig{
		ThreadCount:               policy.ThreadCount,
		T0:                        16 * time.Second,
		FinalityThreshold:         policy.FinalityThreshold,
		FinalityPeriods:           policy.FinalityPeriods,
		MaxBlocksPerSlot:          policy.MaxBlocksPerSlot,
		FutureBlockMaxPeriods:     policy.FutureBlockMaxPeriods,
		DependencyTimeoutPeriods:  policy.DependencyTimeoutPeriods,
		MaxDependencyBlocks:       policy.MaxDependencyBlocks,
		MaxDiscardedBlocks:        policy.MaxDiscardedBlocks,
		DiscardRetentionPeriods:   policy.DiscardRetentionPeriods,
		KeepFinalPeriods:          policy.KeepFinalPeriods,
		MaxFrontierSize:           policy.MaxFrontierSize,
		MaxCliques:                policy.MaxCliques,
		MaxOperationsPerBlock:     policy.MaxOperationsPerBlock,
		OperationValidityPeriods:  policy.OperationValidityPeriods,
		HistoryCacheSize:          1000,
		MetricsPort:               8080,
		BootstrapRetryInterval:    retry.RetryInterval,
		BootstrapMaxRetryInterval: retry.MaxRetryInterval,
		BootstrapMaxAttempts:      retry.MaxAttempts,
	}
}

// InitializeFlags registers a flag per configuration key on the flag set, with
// the values of config as defaults. Flag names are the keys with dashes.
func InitializeFlags(flags *pflag.FlagSet, config *GraphConfig) {
	flags.Uint8(flagName("thread_count"), config.ThreadCount, "number of threads of the block graph")
	flags.Duration(flagName("t0"), config.T0, "duration of a period, split evenly between the threads")
	flags.Int64(flagName("genesis_timestamp"), config.GenesisTimestamp, "start of period 0 in unix milliseconds, 0 for the node start time")
	flags.String(flagName("genesis_key"), config.GenesisKey, "hex encoded key signing the genesis blocks")
	flags.StringSlice(flagName("creators"), config.Creators, "base58 addresses of the block creators")
	flags.Uint64(flagName("finality_threshold"), config.FinalityThreshold, "weight a block must be buried under in the blockclique to become final")
	flags.Uint64(flagName("finality_periods"), config.FinalityPeriods, "periods the descendants of a block must span to make it final")
	flags.Int(flagName("max_blocks_per_slot"), config.MaxBlocksPerSlot, "number of competing blocks kept per slot")
	flags.Uint64(flagName("future_block_max_periods"), config.FutureBlockMaxPeriods, "how many periods ahead of the current slot a block is held")
	flags.Uint64(flagName("dependency_timeout_periods"), config.DependencyTimeoutPeriods, "periods a block waits for its parents or its body")
	flags.Int(flagName("max_dependency_blocks"), config.MaxDependencyBlocks, "number of blocks allowed to wait for their parents")
	flags.Int(flagName("max_discarded_blocks"), config.MaxDiscardedBlocks, "number of discarded block ids remembered")
	flags.Uint64(flagName("discard_retention_periods"), config.DiscardRetentionPeriods, "periods discarded block ids are remembered")
	flags.Uint64(flagName("keep_final_periods"), config.KeepFinalPeriods, "periods final blocks stay in memory once superseded")
	flags.Int(flagName("max_frontier_size"), config.MaxFrontierSize, "number of non-final blocks above which liveness is reported degraded")
	flags.Int(flagName("max_cliques"), config.MaxCliques, "bound on the clique enumeration")
	flags.Int(flagName("max_operations_per_block"), config.MaxOperationsPerBlock, "number of operations a block may carry")
	flags.Uint64(flagName("operation_validity_periods"), config.OperationValidityPeriods, "periods an operation stays valid after its creation")
	flags.String(flagName("history_dir"), config.HistoryDir, "directory of the finalized history, empty for in-memory")
	flags.Int(flagName("history_cache_size"), config.HistoryCacheSize, "number of finalized blocks cached in memory")
	flags.Uint(flagName("metrics_port"), config.MetricsPort, "port of the metrics and snapshot http server")
	flags.StringSlice(flagName("bootstrap_peers"), config.BootstrapPeers, "host:port of the nodes to bootstrap from")
	flags.Duration(flagName("bootstrap_retry_interval"), config.BootstrapRetryInterval, "wait before the second bootstrap attempt")
	flags.Duration(flagName("bootstrap_max_retry_interval"), config.BootstrapMaxRetryInterval, "maximum wait between bootstrap attempts")
	flags.Uint64(flagName("bootstrap_max_attempts"), config.BootstrapMaxAttempts, "number of snapshots fetched before giving up")
}

// BindFlags makes the flags registered by InitializeFlags override the keys
// they are named after.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range keys() {
		flag := flags.Lookup(flagName(key))
		if flag == nil {
			return fmt.Errorf("missing flag for configuration key %s", key)
		}
		err := v.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("could not bind flag %s: %w", flag.Name, err)
		}
	}
	return nil
}

// Load reads the configuration. Keys are resolved from flags bound to v, then
// environment variables, then the YAML file at path if not empty, then defaults.
// Expected errors:
//   - the validation errors of the resulting configuration
func Load(v *viper.Viper, path string) (*GraphConfig, error) {
	defaults, err := settings(DefaultGraphConfig())
	if err != nil {
		return nil, fmt.Errorf("could not encode default configuration: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	var config GraphConfig
	err = v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}
	err = config.Validate()
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration, reporting every invalid key.
func (c *GraphConfig) Validate() error {
	var errs *multierror.Error
	err := validate.Struct(c)
	if err != nil {
		var violations validator.ValidationErrors
		if !errors.As(err, &violations) {
			return fmt.Errorf("could not validate configuration: %w", err)
		}
		for _, violation := range violations {
			errs = multierror.Append(errs, fmt.Errorf("invalid %s: %v violates %s=%s",
				violation.Field(), violation.Value(), violation.Tag(), violation.Param()))
		}
	}
	if c.ThreadCount > 0 && c.T0 > 0 && c.T0%time.Duration(c.ThreadCount) != 0 {
		errs = multierror.Append(errs, fmt.Errorf("invalid t0: %s is not divisible by %d threads", c.T0, c.ThreadCount))
	}
	if c.GenesisKey != "" {
		_, err := crypto.DecodePrivateKeyHex(c.GenesisKey)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid genesis_key: %w", err))
		}
	}
	for _, creator := range c.Creators {
		_, err := dag.IdentifierFromString(creator)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid creators: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// Graph returns the consensus policy of the graph.
func (c *GraphConfig) Graph() graph.Config {
	return graph.Config{
		ThreadCount:              c.ThreadCount,
		FinalityThreshold:        c.FinalityThreshold,
		FinalityPeriods:          c.FinalityPeriods,
		MaxBlocksPerSlot:         c.MaxBlocksPerSlot,
		FutureBlockMaxPeriods:    c.FutureBlockMaxPeriods,
		DependencyTimeoutPeriods: c.DependencyTimeoutPeriods,
		MaxDependencyBlocks:      c.MaxDependencyBlocks,
		MaxDiscardedBlocks:       c.MaxDiscardedBlocks,
		DiscardRetentionPeriods:  c.DiscardRetentionPeriods,
		KeepFinalPeriods:         c.KeepFinalPeriods,
		MaxFrontierSize:          c.MaxFrontierSize,
		MaxCliques:               c.MaxCliques,
		MaxOperationsPerBlock:    c.MaxOperationsPerBlock,
		OperationValidityPeriods: c.OperationValidityPeriods,
	}
}

// Bootstrap returns the retry policy of the bootstrap client.
func (c *GraphConfig) Bootstrap() bootstrap.Config {
	return bootstrap.Config{
		RetryInterval:    c.BootstrapRetryInterval,
		MaxRetryInterval: c.BootstrapMaxRetryInterval,
		MaxAttempts:      c.BootstrapMaxAttempts,
	}
}

// Timeslots returns the slot clock. A zero genesis timestamp starts period 0 at now.
func (c *GraphConfig) Timeslots(now time.Time) (*dag.Timeslots, error) {
	genesis := now
	if c.GenesisTimestamp != 0 {
		genesis = time.UnixMilli(c.GenesisTimestamp)
	}
	return dag.NewTimeslots(c.ThreadCount, c.T0, genesis)
}

// GenesisPrivateKey returns the key signing the genesis blocks, generating one
// if none is configured.
func (c *GraphConfig) GenesisPrivateKey() (*crypto.PrivateKey, error) {
	if c.GenesisKey == "" {
		return crypto.GeneratePrivateKey()
	}
	return crypto.DecodePrivateKeyHex(c.GenesisKey)
}

// Selector returns the creator draw: the configured creators, or the address
// of the genesis key if there are none.
func (c *GraphConfig) Selector(genesisKey *crypto.PrivateKey) (*selection.Static, error) {
	if len(c.Creators) == 0 {
		return selection.NewUniform(1, dag.AddressFromPublicKey(genesisKey.PublicKey())), nil
	}
	creators := make([]dag.Address, 0, len(c.Creators))
	for _, creator := range c.Creators {
		id, err := dag.IdentifierFromString(creator)
		if err != nil {
			return nil, fmt.Errorf("invalid creator %q: %w", creator, err)
		}
		creators = append(creators, dag.Address(id))
	}
	return selection.NewUniform(1, creators...), nil
}

// settings flattens a configuration into its keys.
func settings(config GraphConfig) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	err := mapstructure.Decode(config, &values)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// keys lists the configuration keys, in declaration order.
func keys() []string {
	t := reflect.TypeOf(GraphConfig{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		names = append(names, t.Field(i).Tag.Get("mapstructure"))
	}
	return names
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
