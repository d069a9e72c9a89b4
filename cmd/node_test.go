package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/config"
	model "github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

const waitTimeout = 5 * time.Second

// freePort returns a port nothing listens on.
func freePort(t *testing.T) uint {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return uint(port)
}

func testNodeConfig(t *testing.T, genesisKey string, genesis time.Time) *config.GraphConfig {
	conf := config.DefaultGraphConfig()
	conf.ThreadCount = 2
	conf.T0 = 100 * time.Millisecond
	conf.FinalityThreshold = 5
	conf.GenesisKey = genesisKey
	conf.GenesisTimestamp = genesis.UnixMilli()
	conf.MetricsPort = freePort(t)
	conf.BootstrapRetryInterval = 10 * time.Millisecond
	conf.BootstrapMaxRetryInterval = 50 * time.Millisecond
	require.NoError(t, conf.Validate())
	return &conf
}

func startNode(t *testing.T, conf *config.GraphConfig) *Node {
	node, err := NewNode(unittest.Logger(), conf, prometheus.NewRegistry())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	node.Start(irrecoverable.NewMockSignalerContext(t, ctx))
	t.Cleanup(func() {
		cancel()
		unittest.RequireCloseBefore(t, node.Done(), waitTimeout, "node did not stop")
		require.NoError(t, node.db.Close())
	})
	unittest.RequireCloseBefore(t, node.Ready(), waitTimeout, "node did not start")
	return node
}

// TestNodeBootstrap starts a node on its own genesis and a second node that
// bootstraps from the snapshot served by the first.
func TestNodeBootstrap(t *testing.T) {
	sk := unittest.PrivateKeyFixture(t)
	genesisKey := hex.EncodeToString(sk.Encode())
	genesis := time.Now()

	seed := startNode(t, testNodeConfig(t, genesisKey, genesis))
	seedAddress := fmt.Sprintf("127.0.0.1:%d", seed.config.MetricsPort)
	require.Eventually(t, seed.Engine.IsLive, waitTimeout, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		response, err := http.Get("http://" + seedAddress + "/metrics")
		if err != nil {
			return false
		}
		_ = response.Body.Close()
		return response.StatusCode == http.StatusOK
	}, waitTimeout, 10*time.Millisecond, "metrics not served")

	joinerConfig := testNodeConfig(t, genesisKey, genesis)
	joinerConfig.BootstrapPeers = []string{seedAddress}
	joiner := startNode(t, joinerConfig)

	require.Eventually(t, joiner.Engine.IsLive, waitTimeout, 10*time.Millisecond, "joiner never bootstrapped")
	assert.Equal(t, seed.Engine.LatestFinal(), joiner.Engine.LatestFinal())

	// the slot clock keeps both nodes ticking
	period := seed.Engine.View().CurrentSlot().Period
	require.Eventually(t, func() bool {
		return joiner.Engine.View().CurrentSlot().Period > period
	}, waitTimeout, 10*time.Millisecond)
}

func TestSnapshotInspect(t *testing.T) {
	sk := unittest.PrivateKeyFixture(t)
	node := startNode(t, testNodeConfig(t, hex.EncodeToString(sk.Encode()), time.Now()))
	data, err := model.Encode(node.Graph.ExportSnapshot())
	require.NoError(t, err)

	summary, err := Summarize(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), summary.ThreadCount)
	assert.Equal(t, model.Version, summary.Version)
	assert.Equal(t, node.Engine.LatestFinal().Strings(), summary.LatestFinal)
	assert.Equal(t, 2, summary.FinalBlocks)

	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"snapshot", "inspect", path})
	require.NoError(t, rootCmd.Execute())

	var printed SnapshotSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, *summary, printed)

	t.Run("not a snapshot", func(t *testing.T) {
		_, err := Summarize([]byte("garbage"))
		assert.True(t, model.IsDecodeError(err), err)
	})
}
