package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/majordodo/corebroker/pkg/applier"
	"github.com/majordodo/corebroker/pkg/lifecycle"
	"github.com/majordodo/corebroker/pkg/log"
	"github.com/majordodo/corebroker/pkg/metrics"
	"github.com/majordodo/corebroker/pkg/replication"
	"github.com/majordodo/corebroker/pkg/scheduler"
	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statuslog"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "brokerd",
	Short:   "corebroker - a replicated task broker status core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"brokerd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a broker status core node",
	Long: `Start runs one replica of the broker status core: the in-memory
task/worker status store, the Raft-replicated write-ahead log, the slot
dedup arbiter, and the task lifecycle controller, all behind a metrics
and health HTTP server.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().String("node-id", "", "unique id for this node (required)")
	startCmd.Flags().String("bind-addr", "127.0.0.1:9091", "Raft transport bind address")
	startCmd.Flags().String("data-dir", "./data", "directory for Raft log, stable, and snapshot storage")
	startCmd.Flags().Bool("bootstrap", false, "bootstrap a brand new single-node cluster")
	startCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "bind address for /metrics, /health, /ready, /live")
	startCmd.Flags().Bool("single-node", false, "run with an in-memory log instead of Raft (no replication, for local testing)")
	startCmd.Flags().Duration("checkpoint-interval", time.Minute, "interval between broker status snapshots")
	startCmd.Flags().Duration("purge-interval", 30*time.Second, "interval between expired/retained task purge cycles")
	_ = startCmd.MarkFlagRequired("node-id")
}

func runStart(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	bootstrap, _ := cmd.Flags().GetBool("bootstrap")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	singleNode, _ := cmd.Flags().GetBool("single-node")
	checkpointInterval, _ := cmd.Flags().GetDuration("checkpoint-interval")
	purgeInterval, _ := cmd.Flags().GetDuration("purge-interval")

	logger := log.WithComponent("brokerd")

	store := statusstore.New()
	slots := slotarbiter.New()
	app := applier.New(store, slots)

	var (
		statusLog statuslog.Log
		raftLog   *statuslog.RaftLog
	)
	if singleNode {
		statusLog = statuslog.NewMemoryLog()
	} else {
		rl, err := statuslog.NewRaftLog(statuslog.Config{
			NodeID:    nodeID,
			BindAddr:  bindAddr,
			DataDir:   dataDir,
			Bootstrap: bootstrap,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start raft log: %w", err)
		}
		statusLog = rl
		raftLog = rl
	}

	driver := replication.New(statusLog, store, slots, app)

	if err := driver.Recover(); err != nil {
		return fmt.Errorf("failed to recover broker status: %w", err)
	}

	queue := lifecycle.NewMemoryReadyQueue()
	controller := lifecycle.New(driver, store, queue, lifecycle.Config{})

	go driver.Run()

	checkpointRunner := scheduler.New("checkpoint", checkpointInterval, func() {
		if err := controller.Checkpoint(); err != nil {
			logger.Error().Err(err).Msg("checkpoint failed")
		}
	})
	purgeRunner := scheduler.New("purge", purgeInterval, controller.PurgeTasks)
	checkpointRunner.Start()
	purgeRunner.Start()

	var collector *metrics.Collector
	if raftLog != nil {
		collector = metrics.NewCollector(store, slots, raftLog, 5*time.Second)
	} else {
		collector = metrics.NewCollector(store, slots, nil, 5*time.Second)
	}
	collector.Start()

	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	server := &http.Server{Addr: metricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics and health endpoints listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("unrecoverable error")
	}

	checkpointRunner.Stop()
	purgeRunner.Stop()
	collector.Stop()
	_ = server.Close()
	if raftLog != nil {
		if err := raftLog.Close(); err != nil {
			return fmt.Errorf("failed to close raft log: %w", err)
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
