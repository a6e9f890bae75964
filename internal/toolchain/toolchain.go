package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
	"github.com/frherrer/texregress/internal/raster"
)

// Toolchain binds the configured command templates to a Runner. It provides
// the compile, rasterize, diff and visual-diff operations used by the driver.
type Toolchain struct {
	runner      Runner
	blocked     []string
	executables map[string]string
	compile     *template.Template
	raster      *template.Template
	diff        *template.Template
	visual      *template.Template // nil when no visual differ is configured
	format      raster.Format
	resolution  int
	log         logrus.FieldLogger
}

// New creates a Toolchain for the given option snapshot. The visual diff
// command is taken from the environment variable named by diff.visual_env
// when it is set, otherwise from diff.visual_command.
func New(opts config.Options, runner Runner, log logrus.FieldLogger) (*Toolchain, error) {
	t := &Toolchain{
		runner:      runner,
		blocked:     opts.Compile.BlockedPatterns,
		executables: opts.Executables,
		resolution:  opts.Raster.Resolution,
		log:         log,
	}

	var err error
	if t.compile, err = ParseCommand("compile", opts.Compile.Command); err != nil {
		return nil, err
	}
	if opts.Raster.Enabled {
		if t.format, err = raster.Lookup(opts.Raster.Format); err != nil {
			return nil, domain.NewError("config", "", 0, "raster.format", err)
		}
		if t.raster, err = ParseCommand("raster", opts.Raster.Command); err != nil {
			return nil, err
		}
	}
	if opts.Diff.Command != "" {
		if t.diff, err = ParseCommand("diff", opts.Diff.Command); err != nil {
			return nil, err
		}
	}

	visual := opts.Diff.VisualCommand
	if opts.Diff.VisualEnv != "" {
		if v := os.Getenv(opts.Diff.VisualEnv); v != "" {
			visual = v
		}
	}
	if visual != "" {
		if t.visual, err = ParseCommand("visual diff", visual); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Format returns the raster format page images are written in.
func (t *Toolchain) Format() raster.Format {
	return t.format
}

// Compile runs the engine's compiler on input inside workDir.
func (t *Toolchain) Compile(ctx context.Context, workDir, engine, input string) (Result, error) {
	exe, ok := t.executables[engine]
	if !ok {
		return Result{}, domain.NewError("compile", input, 0, engine, domain.ErrUnknownEngine)
	}

	res, err := t.run(ctx, workDir, t.compile, CompileData{
		Executable: exe,
		Engine:     engine,
		Name:       fsutil.StripExt(input),
		Input:      input,
		WorkDir:    workDir,
	})
	if err != nil {
		return res, err
	}
	if !res.OK {
		t.log.Debugf("Compiler exited with status %d (timed out: %v)", res.ExitCode, res.TimedOut)
	}
	return res, nil
}

// Rasterize converts document into page images and returns them ordered by
// page number. A failing rasterizer is logged; whatever pages exist are returned.
func (t *Toolchain) Rasterize(ctx context.Context, workDir, document string) ([]raster.Page, error) {
	if t.raster == nil {
		return nil, domain.NewError("raster", document, 0, "rasterization is disabled", nil)
	}

	basename := fsutil.StripExt(document)
	res, err := t.run(ctx, workDir, t.raster, RasterData{
		Document:   filepath.Base(document),
		Basename:   basename,
		Format:     t.format.Name,
		Resolution: t.resolution,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK {
		t.log.Warnf("Rasterizer exited with status %d for %s", res.ExitCode, document)
	}

	return raster.CollectPages(workDir, basename, t.format)
}

// Diff writes the output of the text differ comparing baseline and actual
// into artifact. The differ's exit status carries no meaning here.
func (t *Toolchain) Diff(ctx context.Context, workDir, baseline, actual, artifact string) error {
	if t.diff == nil {
		return nil
	}

	res, err := t.run(ctx, workDir, t.diff, DiffData{Baseline: absPath(baseline), Actual: absPath(actual), Output: absPath(artifact)})
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(artifact, res.Stdout); err != nil {
		return domain.NewError("log", artifact, 0, "failed to write diff artifact", err)
	}
	return nil
}

// VisualDiff asks the visual differ to write a difference image to output.
// It returns false when no visual differ is configured.
func (t *Toolchain) VisualDiff(ctx context.Context, workDir, baseline, actual, output string) (bool, error) {
	if t.visual == nil {
		return false, nil
	}

	res, err := t.run(ctx, workDir, t.visual, DiffData{Baseline: absPath(baseline), Actual: absPath(actual), Output: absPath(output)})
	if err != nil {
		return false, err
	}
	if !fsutil.Exists(output) {
		return false, fmt.Errorf("visual differ exited with status %d without writing %s", res.ExitCode, filepath.Base(output))
	}
	return true, nil
}

// run renders tmpl, refuses blocked commands and runs the result in workDir.
func (t *Toolchain) run(ctx context.Context, workDir string, tmpl *template.Template, data any) (Result, error) {
	cmd, err := RenderCommand(tmpl, data)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateCommand(tmpl.Name(), cmd, t.blocked); err != nil {
		return Result{}, err
	}
	t.log.Debugf("Running %s: %s", tmpl.Name(), cmd)
	return t.runner.Run(ctx, workDir, cmd)
}

// absPath makes p independent of the working directory commands run in.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
