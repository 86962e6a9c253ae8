// Command jepsenctl runs one correctness-testing workload against a
// cluster-under-test and reports the checker's verdict.
//
// Usage:
//
//	jepsenctl run --config harness.yaml --cluster refraft --out ./out
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"jepsengo/internal/checker"
	"jepsengo/internal/cluster"
	"jepsengo/internal/clusteradapter/refraft"
	"jepsengo/internal/config"
	"jepsengo/internal/logging"
	"jepsengo/internal/orchestrator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "jepsenctl",
		Short:             "Run correctness-testing workloads against a cluster-under-test",
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.AddCommand(newRunCmd())
	return root
}

type runOptions struct {
	configPath  string
	clusterKind string
	dockerHost  string
	outDir      string
	checkerBin  string
	processes   int
	verbose     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one harness configuration to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a harness YAML config (built-in defaults if omitted)")
	cmd.Flags().StringVar(&opts.clusterKind, "cluster", "refraft", "cluster-under-test adapter: refraft or docker")
	cmd.Flags().StringVar(&opts.dockerHost, "docker-host", "unix:///var/run/docker.sock", "Docker Engine API endpoint, used when --cluster=docker")
	cmd.Flags().StringVar(&opts.outDir, "out", "./out", "directory the checker dumps diagnostics into")
	cmd.Flags().StringVar(&opts.checkerBin, "checker-bin", "jepsen-checker", "external consistency analyzer binary")
	cmd.Flags().IntVar(&opts.processes, "processes", 5, "number of concurrent logical client processes")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	return cmd
}

func runOnce(ctx context.Context, opts runOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(opts.verbose)
	runID := uuid.New().String()
	logger = logger.With("run-id", runID)

	harness := config.Default()
	if opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, logger)
		if err != nil {
			return fmt.Errorf("jepsenctl: load config: %w", err)
		}
		defer watcher.Close()
		harness = watcher.Current()
	}

	clusterOps, faultOps, shutdown, err := buildCluster(ctx, opts, harness, logger)
	if err != nil {
		return fmt.Errorf("jepsenctl: build cluster: %w", err)
	}
	defer shutdown()

	check := checker.NewExternalChecker(opts.checkerBin, logger)

	orch := orchestrator.New(orchestrator.Config{
		Logger:         logger,
		ClusterOps:     clusterOps,
		FaultOps:       faultOps,
		Checker:        check,
		Processes:      opts.processes,
		CheckDirectory: opts.outDir + "/" + runID,
	})

	result, err := orch.Run(ctx, harness)
	if err != nil {
		return fmt.Errorf("jepsenctl: run: %w", err)
	}

	logger.Info("analysis complete", "valid", result.Valid, "anomaly-types", result.AnomalyTypes)
	if result.Valid == checker.ValidFalse {
		return fmt.Errorf("jepsenctl: history invalid: %v", result.AnomalyTypes)
	}
	return nil
}

// buildCluster constructs the cluster-under-test adapter named by
// opts.clusterKind. refraft bootstraps its own in-process raft cluster and
// so serves both capabilities from the same value; docker only drives
// faults against externally managed containers and has no data plane of
// its own to offer, which is a configuration error this harness does not
// know how to run a workload against.
func buildCluster(ctx context.Context, opts runOptions, harness config.Harness, logger *slog.Logger) (cluster.Ops, cluster.FaultOps, func(), error) {
	switch opts.clusterKind {
	case "refraft":
		c, err := refraft.NewCluster(ctx, harness.ClusterSize, refraft.WithLogger(logger), refraft.WithSeed(harness.Seed))
		if err != nil {
			return nil, nil, nil, err
		}
		return c, c, func() { _ = c.Shutdown() }, nil
	case "docker":
		return nil, nil, nil, fmt.Errorf("dockerfault drives faults against containers speaking a protocol this harness doesn't implement a data plane for (endpoint %s); pair it with a protocol-specific cluster.Ops outside this command", opts.dockerHost)
	default:
		return nil, nil, nil, fmt.Errorf("unknown cluster adapter %q", opts.clusterKind)
	}
}

// newLogger builds the process-wide base logger. Verbosity is controlled
// per component through a ComponentFilterHandler rather than a single
// global level, so a future flag (e.g. --log-level nemesis=debug) can
// raise one component's verbosity without the rest of the run going
// noisy.
func newLogger(verbose bool) *slog.Logger {
	defaultLevel := slog.LevelInfo
	if verbose {
		defaultLevel = slog.LevelDebug
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filter := logging.NewComponentFilterHandler(base, defaultLevel)
	return slog.New(filter)
}
