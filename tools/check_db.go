package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"econolearn/internal/config"
	"econolearn/internal/database"
	"econolearn/internal/logging"
	"econolearn/internal/probe"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errCheckFailed = errors.New("database check failed")

type options struct {
	configFile  string
	databaseURL string
	query       string
	timeout     time.Duration
	maxConns    int
	logLevel    string
	logFile     string
	strict      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "check_db",
		Short:        "Check that the database is reachable",
		Long:         `check_db acquires one connection from the configured database, runs a liveness query and prints the outcome.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Optional YAML config file")
	rootCmd.Flags().StringVarP(&opts.databaseURL, "database-url", "d", "", "Database URL (or set DATABASE_URL env var)")
	rootCmd.Flags().StringVarP(&opts.query, "query", "q", "", "Liveness query (default \"SELECT 1\")")
	rootCmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 0, "Give up after this long (0 waits forever)")
	rootCmd.Flags().IntVar(&opts.maxConns, "max-conns", 0, "Maximum pool size (0 keeps the driver default)")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.Flags().StringVar(&opts.logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with status 1 when the check fails")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "check_db %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	return rootCmd
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	loaded, dotEnvErr := config.LoadDotEnv(config.DotEnvFiles()...)

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return report(out, setupFailure(err), opts.strict)
	}
	applyFlags(cmd, opts, cfg)

	logging.Apply(cfg.LogLevel, cfg.LogFile)
	if dotEnvErr != nil {
		log.Warn().Err(dotEnvErr).Msg("Failed to load .env file")
	}
	log.Info().
		Str("env", cfg.Env).
		Strs("dotenv", loaded).
		Str("version", version).
		Msg("Starting database check")

	if err := cfg.Validate(); err != nil {
		return report(out, setupFailure(err), opts.strict)
	}

	engine, err := database.Open(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.MaxConns})
	if err != nil {
		return report(out, setupFailure(err), opts.strict)
	}
	defer engine.Close()

	res := probe.New(engine,
		probe.WithQuery(cfg.LivenessQuery),
		probe.WithTimeout(cfg.Timeout),
	).Check(ctx)

	if n := engine.InUse(); n != 0 {
		log.Error().Int("in_use", n).Msg("Connections still checked out after check")
	}

	return report(out, res, opts.strict)
}

// applyFlags lets explicitly set flags win over file and environment values.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("database-url") {
		cfg.DatabaseURL = opts.databaseURL
	}
	if flags.Changed("query") {
		cfg.LivenessQuery = opts.query
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("max-conns") {
		cfg.MaxConns = opts.maxConns
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = opts.logFile
	}
}

func setupFailure(err error) probe.Result {
	return probe.Result{State: probe.Failed, Stage: probe.StageAcquire, Err: err}
}

// report prints the outcome. Failures only change the exit status in strict mode.
func report(w io.Writer, res probe.Result, strict bool) error {
	if err := probe.Report(w, res); err != nil {
		return err
	}
	if strict && !res.OK() {
		return errCheckFailed
	}
	return nil
}
