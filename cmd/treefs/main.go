package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/requests"
	"github.com/brettbedarf/treefs/server"
	"github.com/brettbedarf/treefs/sources"
	"github.com/spf13/cobra"
)

// fetchTimeout bounds a single http source request while preloading
const fetchTimeout = 30 * time.Second

type options struct {
	configPath  string
	envFile     string
	nodesDef    string
	metricsAddr string
	verbose     int
	umount      bool
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treefs [flags] <mountpoint>",
		Short: "In-memory filesystem served over FUSE",
		Long: `treefs mounts an in-memory directory tree at the given mountpoint.

The tree starts empty apart from the nodes listed in the optional nodes
file. Everything written to the mount lives in memory and is gone once
the filesystem is unmounted.

Configuration is layered: defaults, then the config file, then TREEFS_*
environment variables (optionally read from an env file), then flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return run(cmd.Context(), cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringVar(&opts.envFile, "env-file", "", "Path to a .env file with TREEFS_* variables")
	flags.StringVarP(&opts.nodesDef, "nodes", "n", "", "Path to a JSON or YAML nodes def file to preload")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9100")
	flags.IntVarP(&opts.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	flags.BoolVarP(&opts.umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")

	return cmd
}

// buildConfig layers defaults < config file < env < explicitly set flags
// and validates the result
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.NewDefaultConfig()

	if opts.configPath != "" {
		override, err := config.LoadConfigOverrideFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(override)
	}

	envOverride, err := config.LoadEnvOverride(opts.envFile)
	if err != nil {
		return nil, err
	}
	cfg.Merge(envOverride)

	var flagOverride config.ConfigOverride
	if cmd.Flags().Changed("verbose") {
		flagOverride.LogLvl = &opts.verbose
	}
	if cmd.Flags().Changed("metrics-addr") {
		flagOverride.MetricsAddr = &opts.metricsAddr
	}
	cfg.Merge(&flagOverride)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *options, mnt string) error {
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Info().
		Str("nodes", opts.nodesDef).
		Str("mnt", mnt).
		Str("metrics", cfg.MetricsAddr).
		Msg("TreeFS server initializing")

	// Try unmount if requested
	if opts.umount {
		// we ignore error here if not already mounted
		exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	tfs := server.New(cfg)

	if opts.nodesDef != "" {
		if err := preload(ctx, tfs, opts.nodesDef); err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("No nodes file provided")
	}

	if err := tfs.Run(ctx, mnt); err != nil {
		logger.Error().Err(err).Msg("Filesystem stopped with error")
		return err
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

// preload creates the nodes listed in path. Individual nodes that fail are
// logged and skipped.
func preload(ctx context.Context, tfs *server.TreeFs, path string) error {
	logger := util.GetLogger("main")

	registry := sources.NewDefaultRegistry(&http.Client{Timeout: fetchTimeout})
	reqs, err := requests.LoadFile(path, registry)
	if err != nil {
		return fmt.Errorf("failed to load nodes file %s: %w", path, err)
	}
	logger.Debug().Str("nodes", path).Int("requests", len(reqs)).Msg("Nodes file loaded successfully")

	res, err := requests.Apply(ctx, tfs.Engine(), reqs)
	if err != nil {
		return err
	}
	for _, reqErr := range res.Errors {
		logger.Warn().Err(reqErr).Msg("Failed to add node")
	}
	logger.Info().
		Int("created", len(res.Created)).
		Int("failed", len(res.Errors)).
		Msg("Added new nodes to filesystem")
	return nil
}
