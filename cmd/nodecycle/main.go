package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/nodecycle/internal/app"
	"github.com/bft-labs/nodecycle/internal/cliconfig"
	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/log"
	"github.com/bft-labs/nodecycle/plugins/resourcegating"
)

const helpDescription = `
Run a node lifecycle: wait for dependencies, start subsystems, watch health,
and shut down in order when signalled.

Probes:
  GET /healthz   aggregated health (503 when unhealthy)
  GET /readyz    readiness (503 until every required check passes)
  GET /stage     current lifecycle stage
  GET /metrics   Prometheus metrics

Dependencies are TCP endpoints given as
  name=host:port[;critical][;required][;wait][;priority=N][;timeout=D]
`

var longHelp = "nodecycle orchestrates a node's startup, health and shutdown.\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  nodecycle --dependency "db=127.0.0.1:5432;critical;required;wait"
  nodecycle --config $HOME/.nodecycle/config.toml --log-format json
  nodecycle check --dependency "cache=127.0.0.1:6379;required"
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type flags struct {
	cfgPath      string
	dependencies []string
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var f flags

	root := &cobra.Command{
		Use:           "nodecycle",
		Short:         "Orchestrate a node's startup, health and shutdown",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := loadConfig(cmd, &cfg, f)
			if err != nil {
				return err
			}
			if err := cliconfig.LoadNodeID(&cfg); err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.Info("configuration", log.Any("config", cfg), log.String("config_file", cfgFile))
			return run(cfg, cfgFile, logger)
		},
	}

	check := &cobra.Command{
		Use:          "check",
		Short:        "Probe the configured dependencies once and print the result as JSON",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, &cfg, f); err != nil {
				return err
			}
			report, err := app.Check(cmd.Context(), cfg, nil, newLogger(cfg))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.OK() {
				os.Exit(1)
			}
			return nil
		},
	}
	root.AddCommand(check)

	pf := root.PersistentFlags()
	pf.StringVar(&f.cfgPath, "config", "", "path to config file (default: $HOME/.nodecycle/config.toml)")
	pf.StringArrayVar(&f.dependencies, "dependency", nil, "dependency to check, repeatable (name=host:port;critical;required;wait;priority=N;timeout=D)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console or json)")
	pf.StringVar(&cfg.NodeID, "node-id", cfg.NodeID, "node instance id (default: generated)")

	fs := root.Flags()
	fs.StringVar(&cfg.NodeIDFile, "node-id-file", cfg.NodeIDFile, "file holding a persistent node id, created when missing")
	fs.StringVar(&cfg.StatusDir, "status-dir", cfg.StatusDir, "directory for status.json (disabled when empty)")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "probe server listen address")
	fs.DurationVar(&cfg.MonitorInterval, "monitor-interval", cfg.MonitorInterval, "interval between health passes")
	fs.DurationVar(&cfg.StartTimeout, "start-timeout", cfg.StartTimeout, "time allowed for startup hooks and subsystem Begin")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "time allowed for subsystem End and shutdown hooks")
	fs.DurationVar(&cfg.DrainDelay, "drain-delay", cfg.DrainDelay, "keep serving probes this long after shutdown begins")
	fs.DurationVar(&cfg.DependencyBackoff, "dependency-backoff", cfg.DependencyBackoff, "initial retry delay while waiting for dependencies")
	fs.DurationVar(&cfg.DependencyBackoffMax, "dependency-backoff-max", cfg.DependencyBackoffMax, "maximum retry delay while waiting for dependencies")
	fs.BoolVar(&cfg.FailOnUnhealthy, "fail-on-unhealthy", cfg.FailOnUnhealthy, "move to Failed instead of Degraded when health is unhealthy")
	fs.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload the log level when the config file changes")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nodecycle:", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, environment and flags, in increasing
// precedence, and validates the result. It returns the config file path in
// use, or "" when there is none.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, f flags) (string, error) {
	cfgFile := f.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(fl *pflag.Flag) { changed[fl.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	} else if f.cfgPath != "" {
		return "", fmt.Errorf("config file %s not found", f.cfgPath)
	} else {
		cfgFile = ""
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}

	if changed["dependency"] {
		deps, err := cliconfig.ParseDependencies(f.dependencies)
		if err != nil {
			return "", err
		}
		cfg.Dependencies = deps
	}

	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return cfgFile, nil
}

// newLogger builds the process logger. The level is applied globally so a
// config reload can change it.
func newLogger(cfg cliconfig.Config) log.Logger {
	format, _ := log.ParseFormat(cfg.LogFormat)
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	return log.NewZerologAdapter(format, zerolog.TraceLevel)
}

func run(cfg cliconfig.Config, cfgFile string, logger log.Logger) error {
	onChange := func(fc cliconfig.FileConfig) {
		if fc.LogLevel == "" {
			return
		}
		level, err := zerolog.ParseLevel(fc.LogLevel)
		if err != nil {
			logger.Warn("ignoring invalid log level from config file", log.String("log_level", fc.LogLevel))
			return
		}
		if level != zerolog.GlobalLevel() {
			zerolog.SetGlobalLevel(level)
			logger.Info("log level changed", log.String("log_level", level.String()))
		}
	}

	node, err := app.NewNode(cfg,
		app.WithLogger(logger),
		app.WithConfigFile(cfgFile, onChange),
		app.WithContributors([]health.Contributor{resourcegating.New(resourcegating.DefaultConfig())}, nil),
	)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return node.Run(ctx)
}
