package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockclique/blockclique-go/config"
)

var (
	flagLogLevel   string
	flagConfigFile string
)

var rootCmd = &cobra.Command{
	Use:          "blockclique",
	Short:        "Multi-threaded block graph consensus node",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a consensus node",
	Long: "Run a consensus node. Every configuration key can be set in the YAML file, " +
		"overridden by a BLOCKCLIQUE_<KEY> environment variable, itself overridden by the flag of the key.",
	Args: cobra.NoArgs,
	RunE: runNode,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "loglevel", "info", "level for logging output")

	defaults := config.DefaultGraphConfig()
	runCmd.Flags().StringVarP(&flagConfigFile, "config", "c", "", "path of the YAML configuration file")
	config.InitializeFlags(runCmd.Flags(), &defaults)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runNode(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(flagLogLevel)
	if err != nil {
		return err
	}

	v := viper.New()
	err = config.BindFlags(v, cmd.Flags())
	if err != nil {
		return err
	}
	conf, err := config.Load(v, flagConfigFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	node, err := NewNode(log, conf, registry)
	if err != nil {
		return fmt.Errorf("could not create node: %w", err)
	}
	return node.Run()
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl), nil
}
