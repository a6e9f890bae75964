package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/baseline"
	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/digest"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/driver"
	"github.com/frherrer/texregress/internal/fsutil"
	"github.com/frherrer/texregress/internal/normalize"
	"github.com/frherrer/texregress/internal/raster"
	"github.com/frherrer/texregress/internal/scanner"
	"github.com/frherrer/texregress/internal/toolchain"
)

// RunOptions selects what one invocation checks.
type RunOptions struct {
	Mode           domain.Mode
	Configurations []string // empty means check_configurations from the config
	Engines        []string // empty means every engine the configuration enables
	Names          []string // empty means every discovered test file
}

// ToolsFactory builds the external collaborators for one configuration.
type ToolsFactory func(opts config.Options, log logrus.FieldLogger) (driver.Tools, error)

// Orchestrator is the top-level runner.
type Orchestrator interface {
	Run(ctx context.Context, run RunOptions) (*domain.RunSummary, error)
}

// DefaultOrchestrator implements Orchestrator by running every requested
// configuration in its own run directory.
type DefaultOrchestrator struct {
	cfg      *config.Config
	scanner  scanner.Scanner
	newTools ToolsFactory
	out      io.Writer
	log      logrus.FieldLogger
}

// NewOrchestrator creates a DefaultOrchestrator. Status lines are written to out.
func NewOrchestrator(
	cfg *config.Config,
	s scanner.Scanner,
	newTools ToolsFactory,
	out io.Writer,
	log logrus.FieldLogger,
) *DefaultOrchestrator {
	return &DefaultOrchestrator{
		cfg:      cfg,
		scanner:  s,
		newTools: newTools,
		out:      out,
		log:      log,
	}
}

// ShellTools is the ToolsFactory that runs real programs through the
// configured shell.
func ShellTools(opts config.Options, log logrus.FieldLogger) (driver.Tools, error) {
	runner := toolchain.NewShellRunner(opts.Compile.Shell, opts.Compile.ShellFlag, opts.Timeout)
	tc, err := toolchain.New(opts, runner, log)
	if err != nil {
		return driver.Tools{}, err
	}
	return driver.ToolsFrom(tc), nil
}

// plan is a resolved configuration ready to run.
type plan struct {
	opts  config.Options
	tools driver.Tools
}

// Run resolves all requested configurations, then runs them in order.
// Configuration errors abort before the first test runs; unknown
// configuration names are skipped with a warning.
func (o *DefaultOrchestrator) Run(ctx context.Context, run RunOptions) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:   uuid.NewString(),
		Mode:    run.Mode,
		Started: time.Now(),
	}
	log := o.log.WithField("run", summary.RunID)

	names := run.Configurations
	if len(names) == 0 {
		names = o.cfg.CheckConfigurations
	}
	if len(names) == 0 {
		names = []string{config.DefaultConfigurationName}
	}

	// Step 1: Resolve every configuration before running anything
	var plans []plan
	for _, name := range names {
		if !o.cfg.Known(name) {
			log.Warnf("Unknown configuration %q, skipping", name)
			summary.Skipped = append(summary.Skipped, name)
			continue
		}

		opts, err := o.cfg.Resolve(name, run.Mode)
		if err != nil {
			return nil, err
		}
		opts = opts.WithEngines(run.Engines)
		if err := opts.Validate(); err != nil {
			return nil, err
		}

		tools, err := o.newTools(opts, log.WithField("config", name))
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan{opts: opts, tools: tools})
	}

	// Step 2: Run each configuration
	var tally Tally
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcomes, err := o.runConfiguration(ctx, p, run.Names, &tally, log.WithField("config", p.opts.Configuration))
		summary.Outcomes = append(summary.Outcomes, outcomes...)
		if err != nil {
			return summary, err
		}
	}

	summary.Failures = tally.Value()
	summary.Finished = time.Now()
	log.Infof("Finished with %d failed test(s)", summary.Failures)
	return summary, nil
}

// runConfiguration prepares the run directory and drives every test case.
func (o *DefaultOrchestrator) runConfiguration(
	ctx context.Context,
	p plan,
	names []string,
	tally *Tally,
	log logrus.FieldLogger,
) ([]domain.CaseOutcome, error) {
	opts := p.opts

	// Step 1: Create build and run directories
	for _, dir := range []string{opts.BuildDir, opts.RunDir} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, domain.NewErrorWithSuggestion("copy", dir, 0,
				"failed to create directory",
				"check that the parent directory exists and has write permissions",
				err)
		}
	}

	// Step 2: Copy sources, support files and the override file
	if err := o.populateRunDir(opts, log); err != nil {
		return nil, err
	}

	// Step 3: Discover test files
	cases, err := scanner.DiscoverTests(opts.TestfileDir, opts.TestExtension)
	if err != nil {
		log.Warnf("Failed to scan test-file directory %s: %v", opts.TestfileDir, err)
		return nil, nil
	}
	if opts.Raster.Enabled {
		if err := scanner.CheckImageKeys(cases); err != nil {
			return nil, err
		}
	}
	cases = filterCases(cases, names)
	if len(cases) == 0 {
		log.Warn("No test files found")
		return nil, nil
	}

	drv, err := o.newDriver(opts, p.tools, log)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(o.out, "Running checks on configuration %s (%d test(s), %s)\n",
		opts.Configuration, len(cases), opts.Mode)

	// Step 4: Drive each test case
	var outcomes []domain.CaseOutcome
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		log.Debugf("Processing: %s", tc.Path)

		outcome := drv.Run(ctx, tc)
		if outcome.Failed {
			tally.Inc()
		}
		fmt.Fprintln(o.out, StatusLine(outcome))
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// populateRunDir copies the declared sources, all support files and the
// override file into the run directory. A configuration-qualified override
// (`regression-test-<config>.cfg`) replaces the unqualified one.
func (o *DefaultOrchestrator) populateRunDir(opts config.Options, log logrus.FieldLogger) error {
	for _, dir := range opts.SourceDirs {
		files, err := o.scanner.Scan(dir, opts.Sources, opts.Excludes)
		if err != nil {
			log.Warnf("Failed to scan source directory %s: %v", dir, err)
			continue
		}
		if err := copyAll(files, opts.RunDir); err != nil {
			return err
		}
	}

	if opts.SupportDir != "" && isDir(opts.SupportDir) {
		files, err := o.scanner.Scan(opts.SupportDir, []string{"*"}, opts.Excludes)
		if err != nil {
			return err
		}
		if err := copyAll(files, opts.RunDir); err != nil {
			return err
		}
	}

	if opts.OverrideFile == "" {
		return nil
	}
	target := filepath.Join(opts.RunDir, opts.OverrideFile)
	ext := filepath.Ext(opts.OverrideFile)
	qualified := fsutil.StripExt(opts.OverrideFile) + "-" + opts.Configuration + ext

	for _, candidate := range []string{opts.OverrideFile, qualified} {
		src := filepath.Join(opts.TestfileDir, candidate)
		if !fsutil.Exists(src) {
			continue
		}
		log.Debugf("Using override file %s", candidate)
		if err := fsutil.CopyFile(src, target); err != nil {
			return domain.NewError("copy", src, 0, "failed to copy override file", err)
		}
	}
	return nil
}

func (o *DefaultOrchestrator) newDriver(opts config.Options, tools driver.Tools, log logrus.FieldLogger) (*driver.Driver, error) {
	imageExt := "png"
	if opts.Raster.Enabled {
		f, err := raster.Lookup(opts.Raster.Format)
		if err != nil {
			return nil, domain.NewError("config", "", 0, "raster.format", err)
		}
		imageExt = f.Extension
	}

	absRunDir, err := filepath.Abs(opts.RunDir)
	if err != nil {
		return nil, err
	}
	n, err := normalize.New(opts.Normalize, normalize.WithPathElision(absRunDir))
	if err != nil {
		return nil, domain.NewError("config", "", 0, "normalize rules", err)
	}
	h, err := digest.New(opts.Digest.Algorithm)
	if err != nil {
		return nil, domain.NewError("config", "", 0, "digest.algorithm", err)
	}
	store := baseline.NewStore(opts.TestfileDir, opts.Baseline, opts.StdEngine, imageExt)

	return driver.New(opts, tools, store, n, h, log), nil
}

func copyAll(files []string, dir string) error {
	for _, f := range files {
		if _, err := fsutil.CopyInto(f, dir); err != nil {
			return domain.NewError("copy", f, 0, "failed to copy into run directory", err)
		}
	}
	return nil
}

func filterCases(cases []domain.TestCase, names []string) []domain.TestCase {
	if len(names) == 0 {
		return cases
	}
	var kept []domain.TestCase
	for _, tc := range cases {
		if slices.Contains(names, tc.Name) {
			kept = append(kept, tc)
		}
	}
	return kept
}

// isDir reports whether path is an existing directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
