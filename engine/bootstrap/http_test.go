package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

type providerFunc func(ctx context.Context) ([]byte, error)

func (f providerFunc) OnBootstrapRequest(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

func serve(t *testing.T, provider Provider) string {
	mux := http.NewServeMux()
	mux.Handle(SnapshotPath, NewHandler(unittest.Logger(), metrics.NewNoopCollector(), provider))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func TestHTTPTransport(t *testing.T) {
	fetcher := NewHTTPFetcher(5 * time.Second)

	t.Run("serves snapshot", func(t *testing.T) {
		payload := []byte("encoded snapshot")
		peer := serve(t, providerFunc(func(context.Context) ([]byte, error) {
			return payload, nil
		}))
		data, err := fetcher.FetchSnapshot(context.Background(), peer)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("provider failure", func(t *testing.T) {
		peer := serve(t, providerFunc(func(context.Context) ([]byte, error) {
			return nil, errors.New("engine is shutting down")
		}))
		_, err := fetcher.FetchSnapshot(context.Background(), peer)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("method not allowed", func(t *testing.T) {
		peer := serve(t, providerFunc(func(context.Context) ([]byte, error) {
			return nil, nil
		}))
		response, err := http.Post("http://"+peer+SnapshotPath, "text/plain", nil)
		require.NoError(t, err)
		_ = response.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
	})
}

// TestBootstrapOverHTTP bootstraps a graph from the snapshot of another graph
// served over http.
func TestBootstrapOverHTTP(t *testing.T) {
	sk := unittest.PrivateKeyFixture(t)
	genesis := dag.Genesis(2, sk)
	source := newGraph(t, sk, genesis)
	target := newGraph(t, sk, genesis)

	peer := serve(t, providerFunc(func(context.Context) ([]byte, error) {
		return encodeSnapshot(source)
	}))
	client := NewClient(unittest.Logger(), metrics.NewNoopCollector(), NewHTTPFetcher(5*time.Second), graphImporter{target}, testConfig(3))

	snapshot, err := client.Bootstrap(context.Background(), []string{peer})
	require.NoError(t, err)
	assert.Equal(t, source.View().CurrentSlot(), snapshot.CurrentSlot)
	assert.Equal(t, source.LatestFinal(), target.LatestFinal())
}
