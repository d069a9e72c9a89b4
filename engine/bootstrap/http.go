package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/module/metrics"
)

// SnapshotPath is the http path snapshots are served on.
const SnapshotPath = "/bootstrap/snapshot"

// maxSnapshotSize bounds the size of a downloaded snapshot.
const maxSnapshotSize = 1 << 30

// Provider serves the encoded snapshot of the local graph.
type Provider interface {
	OnBootstrapRequest(ctx context.Context) ([]byte, error)
}

// Handler serves the snapshot of the local graph to bootstrapping peers.
type Handler struct {
	log      zerolog.Logger
	metrics  module.EngineMetrics
	provider Provider
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(log zerolog.Logger, engineMetrics module.EngineMetrics, provider Provider) *Handler {
	return &Handler{
		log:      log.With().Str("engine", metrics.EngineBootstrap).Str("component", "snapshot_handler").Logger(),
		metrics:  engineMetrics,
		provider: provider,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.metrics.MessageReceived(metrics.EngineBootstrap, metrics.MessageBootstrapRequest)

	data, err := h.provider.OnBootstrapRequest(r.Context())
	if err != nil {
		h.metrics.InboundMessageDropped(metrics.EngineBootstrap, metrics.MessageBootstrapRequest)
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("could not serve snapshot")
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, err = w.Write(data)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("could not write snapshot")
		return
	}
	h.metrics.MessageHandled(metrics.EngineBootstrap, metrics.MessageBootstrapRequest)
	h.log.Debug().Int("size", len(data)).Str("remote", r.RemoteAddr).Msg("snapshot served")
}

// HTTPFetcher downloads snapshots from the Handler of a peer, addressed as host:port.
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) FetchSnapshot(ctx context.Context, peer string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+peer+SnapshotPath, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	response, err := f.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer answered %s", response.Status)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, maxSnapshotSize+1))
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot: %w", err)
	}
	if len(data) > maxSnapshotSize {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotSize)
	}
	return data, nil
}
