// Package driver runs a single test case through compilation, log
// normalization, log comparison, rasterization and image comparison.
//
// Each stage is a function that records its result on an EngineResult or on
// the CaseOutcome. A stage that cannot produce its artifact marks the
// comparison as an error and later stages for that engine are skipped; the
// driver itself never aborts the run.
package driver

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/baseline"
	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/digest"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/normalize"
	"github.com/frherrer/texregress/internal/raster"
	"github.com/frherrer/texregress/internal/toolchain"
)

// DocumentExtension is the extension of the document the compiler writes.
const DocumentExtension = ".pdf"

// Compiler runs a document compiler.
type Compiler interface {
	Compile(ctx context.Context, workDir, engine, input string) (toolchain.Result, error)
}

// Rasterizer converts a document into page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, workDir, document string) ([]raster.Page, error)
	Format() raster.Format
}

// Differ writes a human-readable diff of two text files.
type Differ interface {
	Diff(ctx context.Context, workDir, baseline, actual, artifact string) error
}

// VisualDiffer writes a difference image of two images.
type VisualDiffer interface {
	VisualDiff(ctx context.Context, workDir, baseline, actual, output string) (bool, error)
}

// Tools are the external collaborators of the driver.
type Tools struct {
	Compiler     Compiler
	Rasterizer   Rasterizer
	Differ       Differ
	VisualDiffer VisualDiffer
}

// ToolsFrom uses a Toolchain for every collaborator.
func ToolsFrom(t *toolchain.Toolchain) Tools {
	return Tools{Compiler: t, Rasterizer: t, Differ: t, VisualDiffer: t}
}

// Driver drives test cases of one configuration.
type Driver struct {
	opts       config.Options
	tools      Tools
	store      *baseline.Store
	normalizer *normalize.Normalizer
	hasher     *digest.Hasher
	log        logrus.FieldLogger
}

// New creates a Driver for the given option snapshot.
func New(
	opts config.Options,
	tools Tools,
	store *baseline.Store,
	normalizer *normalize.Normalizer,
	hasher *digest.Hasher,
	log logrus.FieldLogger,
) *Driver {
	return &Driver{
		opts:       opts,
		tools:      tools,
		store:      store,
		normalizer: normalizer,
		hasher:     hasher,
		log:        log,
	}
}

// Run drives tc through every active engine and returns its outcome. The
// image stage runs right after the image engine's compilation, while that
// engine's document is the one in the run directory.
func (d *Driver) Run(ctx context.Context, tc domain.TestCase) domain.CaseOutcome {
	out := &domain.CaseOutcome{
		Case:          tc,
		Configuration: d.opts.Configuration,
		RunDir:        d.opts.RunDir,
	}
	if d.opts.Raster.Enabled && d.tools.Rasterizer != nil {
		out.ImageEngine = d.opts.ImageEngine()
	}

	// Log baselines created for this case so far. An engine that disagrees
	// with one of them gets its own baseline instead of a failure.
	created := make(map[string]bool)
	for _, engine := range d.opts.Engines {
		log := d.log.WithFields(logrus.Fields{"case": tc.Name, "engine": engine})
		res := d.runEngine(ctx, tc, engine, created, log)
		out.Engines = append(out.Engines, res)

		if engine == out.ImageEngine {
			d.compareImages(ctx, tc, out, log)
		}
	}

	out.Resolve()
	return *out
}

// runEngine performs copy → compile → normalize → compare for one engine.
func (d *Driver) runEngine(ctx context.Context, tc domain.TestCase, engine string, created map[string]bool, log logrus.FieldLogger) domain.EngineResult {
	res := domain.EngineResult{
		Engine:       engine,
		LogPath:      filepath.Join(d.opts.RunDir, tc.Name+".log"),
		DocumentPath: filepath.Join(d.opts.RunDir, tc.Name+DocumentExtension),
	}

	if !d.copySource(tc, &res) {
		return res
	}
	if !d.compile(ctx, tc, &res, log) {
		return res
	}
	normalized, ok := d.normalizeLog(tc, &res, log)
	if !ok {
		return res
	}
	d.compareLog(ctx, tc, &res, normalized, created, log)
	return res
}
