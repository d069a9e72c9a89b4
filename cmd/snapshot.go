package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockclique/blockclique-go/engine/bootstrap"
	model "github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/model/dag"
)

var (
	flagOutput  string
	flagTimeout time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and download bootstrap snapshots",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print a summary of a snapshot file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectSnapshot,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <host:port>",
	Short: "Download the snapshot served by a node",
	Args:  cobra.ExactArgs(1),
	RunE:  fetchSnapshot,
}

func init() {
	fetchCmd.Flags().StringVarP(&flagOutput, "output", "o", "snapshot.bin", "path of the downloaded snapshot")
	fetchCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Minute, "download timeout")

	snapshotCmd.AddCommand(inspectCmd)
	snapshotCmd.AddCommand(fetchCmd)
}

// SnapshotSummary describes the content of a snapshot.
type SnapshotSummary struct {
	Version         uint32   `json:"version"`
	ThreadCount     uint8    `json:"thread_count"`
	Period          uint64   `json:"period"`
	Thread          uint8    `json:"thread"`
	LatestFinal     []string `json:"latest_final"`
	FinalBlocks     int      `json:"final_blocks"`
	ActiveBlocks    int      `json:"active_blocks"`
	Operations      int      `json:"operations"`
	FinalOperations int      `json:"final_operations"`
	Checkpoints     []string `json:"checkpoints"`
}

// Summarize decodes a snapshot and describes it.
// Expected errors:
//   - model.DecodeError if data is not a snapshot
func Summarize(data []byte) (*SnapshotSummary, error) {
	snapshot, err := model.Decode(data)
	if err != nil {
		return nil, err
	}
	summary := &SnapshotSummary{
		Version:         snapshot.Version,
		ThreadCount:     snapshot.ThreadCount,
		Period:          snapshot.CurrentSlot.Period,
		Thread:          snapshot.CurrentSlot.Thread,
		LatestFinal:     dag.IdentifierList(snapshot.LatestFinal).Strings(),
		FinalBlocks:     len(snapshot.FinalBlocks),
		ActiveBlocks:    len(snapshot.ActiveBlocks),
		FinalOperations: len(snapshot.FinalOperations),
		Checkpoints:     make([]string, 0, len(snapshot.Checkpoints)),
	}
	for _, exported := range snapshot.ActiveBlocks {
		summary.Operations += len(exported.Operations)
	}
	for name := range snapshot.Checkpoints {
		summary.Checkpoints = append(summary.Checkpoints, name)
	}
	sort.Strings(summary.Checkpoints)
	return summary, nil
}

func inspectSnapshot(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read snapshot: %w", err)
	}
	summary, err := Summarize(data)
	if err != nil {
		return fmt.Errorf("could not decode snapshot: %w", err)
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

func fetchSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	data, err := bootstrap.NewHTTPFetcher(flagTimeout).FetchSnapshot(ctx, args[0])
	if err != nil {
		return fmt.Errorf("could not fetch snapshot from %s: %w", args[0], err)
	}
	_, err = model.Decode(data)
	if err != nil {
		return fmt.Errorf("peer %s served an invalid snapshot: %w", args[0], err)
	}
	err = os.WriteFile(flagOutput, data, 0o644)
	if err != nil {
		return fmt.Errorf("could not write snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), flagOutput)
	return nil
}
