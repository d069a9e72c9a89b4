package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/blockclique/blockclique-go/consensus/graph"
	"github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/module/metrics"
)

// ErrNoPeers is returned when bootstrapping without any peer to ask.
var ErrNoPeers = errors.New("no bootstrap peers")

// Fetcher downloads an encoded snapshot from a peer.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, peer string) ([]byte, error)
}

// Importer seeds the local graph with a snapshot.
type Importer interface {
	// ImportSnapshot imports a decoded snapshot.
	// Expected errors:
	//   - graph.ImportError if the snapshot is rejected
	ImportSnapshot(ctx context.Context, snapshot *bootstrap.Graph) error
}

// Config configures the retries of the client.
type Config struct {
	// RetryInterval is the wait before the second attempt; waits double after each attempt.
	RetryInterval time.Duration
	// MaxRetryInterval caps the wait between two attempts.
	MaxRetryInterval time.Duration
	// MaxAttempts is the number of snapshots fetched before giving up.
	MaxAttempts uint64
}

func DefaultConfig() Config {
	return Config{
		RetryInterval:    time.Second,
		MaxRetryInterval: 30 * time.Second,
		MaxAttempts:      10,
	}
}

// Client bootstraps the node from a snapshot served by a peer. Peers are asked
// in turn: a peer that fails to serve a snapshot, serves undecodable bytes or a
// snapshot the graph rejects is skipped for the next one.
type Client struct {
	log      zerolog.Logger
	metrics  module.EngineMetrics
	fetcher  Fetcher
	importer Importer
	config   Config
}

func NewClient(log zerolog.Logger, engineMetrics module.EngineMetrics, fetcher Fetcher, importer Importer, config Config) *Client {
	return &Client{
		log:      log.With().Str("engine", metrics.EngineBootstrap).Logger(),
		metrics:  engineMetrics,
		fetcher:  fetcher,
		importer: importer,
		config:   config,
	}
}

// Bootstrap imports the first valid snapshot served by the peers and returns it.
// Expected errors:
//   - ErrNoPeers if peers is empty
//   - an error listing the failure of every attempt once all attempts failed
//   - context errors if ctx ends first
func (c *Client) Bootstrap(ctx context.Context, peers []string) (*bootstrap.Graph, error) {
	if len(peers) == 0 {
		return nil, ErrNoPeers
	}
	if c.config.MaxAttempts == 0 {
		return nil, fmt.Errorf("at least one bootstrap attempt is required")
	}

	backoff, err := retry.NewExponential(c.config.RetryInterval)
	if err != nil {
		return nil, fmt.Errorf("could not create retry mechanism: %w", err)
	}
	backoff = retry.WithCappedDuration(c.config.MaxRetryInterval, backoff)
	backoff = retry.WithMaxRetries(c.config.MaxAttempts-1, backoff)

	var (
		attempt  int
		failures *multierror.Error
		imported *bootstrap.Graph
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		peer := peers[attempt%len(peers)]
		attempt++
		log := c.log.With().Str("peer", peer).Int("attempt", attempt).Logger()

		snapshot, err := c.attempt(ctx, peer)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !retryable(err) {
				return err
			}
			log.Warn().Err(err).Msg("bootstrap attempt failed, trying next peer")
			failures = multierror.Append(failures, fmt.Errorf("peer %s: %w", peer, err))
			return retry.RetryableError(err)
		}

		imported = snapshot
		log.Info().
			Uint64("period", snapshot.CurrentSlot.Period).
			Uint8("thread", snapshot.CurrentSlot.Thread).
			Int("active_blocks", len(snapshot.ActiveBlocks)).
			Msg("bootstrapped from snapshot")
		return nil
	})
	if err != nil {
		if failures != nil && ctx.Err() == nil && retryable(err) {
			return nil, fmt.Errorf("bootstrap failed after %d attempts: %w", attempt, failures.ErrorOrNil())
		}
		return nil, fmt.Errorf("bootstrap aborted: %w", err)
	}
	return imported, nil
}

// attempt fetches, decodes and imports the snapshot of one peer.
func (c *Client) attempt(ctx context.Context, peer string) (*bootstrap.Graph, error) {
	c.metrics.MessageSent(metrics.EngineBootstrap, metrics.MessageBootstrapRequest)
	data, err := c.fetcher.FetchSnapshot(ctx, peer)
	if err != nil {
		return nil, fetchError{err: err}
	}
	c.metrics.MessageReceived(metrics.EngineBootstrap, metrics.MessageImportSnapshot)

	snapshot, err := bootstrap.Decode(data)
	if err != nil {
		c.metrics.InboundMessageDropped(metrics.EngineBootstrap, metrics.MessageImportSnapshot)
		return nil, fmt.Errorf("could not decode snapshot: %w", err)
	}

	err = c.importer.ImportSnapshot(ctx, snapshot)
	if err != nil {
		c.metrics.InboundMessageDropped(metrics.EngineBootstrap, metrics.MessageImportSnapshot)
		return nil, fmt.Errorf("could not import snapshot: %w", err)
	}
	c.metrics.MessageHandled(metrics.EngineBootstrap, metrics.MessageImportSnapshot)
	return snapshot, nil
}

// fetchError is a transport failure while downloading a snapshot.
type fetchError struct {
	err error
}

func (e fetchError) Error() string {
	return fmt.Sprintf("could not fetch snapshot: %v", e.err)
}

func (e fetchError) Unwrap() error {
	return e.err
}

// retryable tells whether another peer may succeed where this attempt failed.
func retryable(err error) bool {
	var fetchErr fetchError
	return bootstrap.IsDecodeError(err) || graph.IsImportError(err) || errors.As(err, &fetchErr)
}
