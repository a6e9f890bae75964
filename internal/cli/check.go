package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/orchestrator"
	"github.com/frherrer/texregress/internal/report"
	"github.com/frherrer/texregress/internal/scanner"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [test names...]",
		Short: "Compare test output against the stored baselines",
		Long: `Runs every test file (or only the named ones) in each requested configuration
and compares the normalized logs and page images against the stored baselines.
Missing baselines are created; existing ones are never overwritten.

The exit status is the number of failed tests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTests(cmd, domain.ModeCheck, args)
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save [test names...]",
		Short: "Compare and overwrite mismatching baselines",
		Long: `Like check, but every baseline that does not match the new output is
replaced. Mismatches are still reported and counted as failures.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTests(cmd, domain.ModeSave, args)
		},
	}
}

// runTests wires all components and runs the orchestrator.
func (a *app) runTests(cmd *cobra.Command, mode domain.Mode, names []string) error {
	cfg, closeLog, err := a.loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	orch := orchestrator.NewOrchestrator(cfg, scanner.NewScanner(false), orchestrator.ShellTools, cmd.OutOrStdout(), a.log)
	summary, err := orch.Run(cmd.Context(), orchestrator.RunOptions{
		Mode:           mode,
		Configurations: a.configurations,
		Engines:        a.engines,
		Names:          names,
	})
	if err != nil {
		return err
	}

	if cfg.Report.Enabled && len(summary.Outcomes) > 0 {
		paths, err := report.NewFileWriter(cfg.BuildDir, cfg.Report.Title).Write(summary)
		if err != nil {
			a.log.Warnf("Failed to write report: %v", err)
		} else {
			a.log.Infof("Report written to %s", paths[len(paths)-1])
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d test(s) failed\n", summary.Failures)
	a.exitCode = summary.Failures
	return nil
}
