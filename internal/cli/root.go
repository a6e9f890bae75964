package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frherrer/texregress/internal/config"
)

// maxExitStatus is the largest failure count reported through the exit status.
const maxExitStatus = 255

// app holds the state shared by every subcommand of one invocation.
type app struct {
	cfgFile        string
	verbose        bool
	configurations []string
	engines        []string

	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger

	// exitCode is the failure count set by check and save.
	exitCode int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "texregress",
		Short: "Regression-test document toolchains against stored baselines",
		Long: `texregress compiles a corpus of test documents with one or more typesetting
engines, normalizes the resulting logs, rasterizes the output and compares
everything against stored baselines.

Everything is driven by a YAML configuration file (texregress.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log.SetOutput(a.stderr)
			if a.verbose {
				a.log.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "texregress.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringArrayVarP(&a.configurations, "configuration", "C", nil,
		"configuration to run (repeatable, default check_configurations)")
	root.PersistentFlags().StringArrayVarP(&a.engines, "engine", "e", nil,
		"restrict the run to this engine (repeatable)")

	root.AddCommand(newCheckCmd(a), newSaveCmd(a), newValidateCmd(a))
	return root
}

// Run executes the CLI with the given arguments and returns the process exit
// status: the number of failed tests (capped at 255), or 1 when the run could
// not be carried out.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		log:    logrus.New(),
	}
	a.log.SetOutput(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return clampExit(a.exitCode)
}

func clampExit(n int) int {
	if n > maxExitStatus {
		return maxExitStatus
	}
	return n
}

// loadConfig loads and validates the config file, then applies its logging
// section. The --verbose flag wins over the configured level.
func (a *app) loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	closeLog := func() {}
	if !a.verbose && cfg.Logging.Level != "" {
		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, nil, err
		}
		a.log.SetLevel(level)
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.log.SetOutput(io.MultiWriter(a.stderr, f))
		closeLog = func() {
			a.log.SetOutput(a.stderr)
			if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				fmt.Fprintf(a.stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	}

	a.log.Debugf("Loaded config from %s", a.cfgFile)
	return cfg, closeLog, nil
}
