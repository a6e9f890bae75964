package driver

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
)

func (d *Driver) copySource(tc domain.TestCase, res *domain.EngineResult) bool {
	if _, err := fsutil.CopyInto(tc.Path, d.opts.RunDir); err != nil {
		res.LogStatus = domain.StatusError
		res.Err = domain.NewError("copy", tc.Path, 0, "failed to copy test file into run directory", err)
		return false
	}
	return true
}

// compile runs the compiler the configured number of times. Only the final
// run's artifacts are inspected. Stale artifacts of the previous engine are
// removed first so they are never mistaken for this engine's output.
func (d *Driver) compile(ctx context.Context, tc domain.TestCase, res *domain.EngineResult, log logrus.FieldLogger) bool {
	for _, stale := range []string{res.LogPath, res.DocumentPath} {
		if err := fsutil.Remove(stale); err != nil {
			res.LogStatus = domain.StatusError
			res.Err = domain.NewError("compile", stale, 0, "failed to remove stale artifact", err)
			return false
		}
	}

	input := filepath.Base(tc.Path)
	runs := d.opts.RunsFor(res.Engine)
	for i := 0; i < runs; i++ {
		result, err := d.tools.Compiler.Compile(ctx, d.opts.RunDir, res.Engine, input)
		if err != nil {
			res.LogStatus = domain.StatusError
			res.Err = err
			return false
		}
		res.Runs++
		res.CompileOK = result.OK
	}

	if !res.CompileOK {
		log.Warn("Compiler reported failure, inspecting whatever log exists")
	}
	return true
}

// normalizeLog extracts and normalizes the compiler log and writes the result
// next to it as `<name>.<engine><log_ext>`.
func (d *Driver) normalizeLog(tc domain.TestCase, res *domain.EngineResult, log logrus.FieldLogger) (string, bool) {
	raw, found, err := fsutil.ReadFile(res.LogPath)
	if err != nil {
		res.LogStatus = domain.StatusError
		res.Err = domain.NewError("log", res.LogPath, 0, "failed to read log", err)
		return "", false
	}
	if !found {
		res.LogStatus = domain.StatusError
		res.Err = domain.NewError("log", res.LogPath, 0, "compiler wrote no log", domain.ErrLogMissing)
		log.Error(res.Err)
		return "", false
	}

	normalized, err := d.normalizer.Process(string(raw))
	if err != nil {
		res.LogStatus = domain.StatusError
		if errors.Is(err, domain.ErrLogRegion) {
			res.Err = domain.NewErrorWithSuggestion("log", res.LogPath, 0, "no test markers found", "make sure the test file loads the regression test setup", err)
		} else {
			res.Err = domain.NewError("log", res.LogPath, 0, "failed to normalize log", err)
		}
		log.Error(res.Err)
		return "", false
	}

	res.NormalizedLog = filepath.Join(d.opts.RunDir, tc.Name+"."+res.Engine+d.opts.Baseline.LogExtension)
	if err := fsutil.WriteFileAtomic(res.NormalizedLog, []byte(normalized)); err != nil {
		res.LogStatus = domain.StatusError
		res.Err = domain.NewError("log", res.NormalizedLog, 0, "failed to write normalized log", err)
		return "", false
	}
	res.LogDigest = d.hasher.Bytes([]byte(normalized))
	return normalized, true
}

// compareLog compares the normalized log with its baseline. A missing
// baseline is created from the new log, and so is one that differs from a
// baseline another engine created for the same case. Any other mismatch
// writes a diff artifact and, in save mode, replaces the baseline.
func (d *Driver) compareLog(ctx context.Context, tc domain.TestCase, res *domain.EngineResult, normalized string, created map[string]bool, log logrus.FieldLogger) {
	expected, baselinePath, found, err := d.store.LoadLog(tc.Name, res.Engine)
	if err != nil {
		res.LogStatus = domain.StatusError
		res.Err = err
		return
	}

	if !found || (created[baselinePath] && expected != normalized) {
		path, err := d.store.SaveLog(tc.Name, res.Engine, normalized)
		if err != nil {
			res.LogStatus = domain.StatusError
			res.Err = err
			return
		}
		created[path] = true
		log.Infof("Created log baseline %s", filepath.Base(path))
		res.LogStatus = domain.StatusCreated
		return
	}

	if expected == normalized {
		res.LogStatus = domain.StatusPass
		return
	}

	res.LogStatus = domain.StatusFail
	if d.tools.Differ != nil {
		artifact := filepath.Join(d.opts.RunDir, tc.Name+"."+res.Engine+".diff")
		_ = fsutil.Remove(artifact)
		if err := d.tools.Differ.Diff(ctx, d.opts.RunDir, baselinePath, res.NormalizedLog, artifact); err != nil {
			log.Warnf("Could not write diff artifact: %v", err)
		} else if fsutil.Exists(artifact) {
			res.DiffPath = artifact
		}
	}
	log.Infof("Log differs from %s", filepath.Base(baselinePath))

	if d.opts.Mode == domain.ModeSave {
		path, err := d.store.SaveLog(tc.Name, res.Engine, normalized)
		if err != nil {
			res.Err = err
			return
		}
		log.Infof("Saved log baseline %s", filepath.Base(path))
	}
}
