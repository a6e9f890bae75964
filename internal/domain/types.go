package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Mode selects whether mismatching baselines are only reported or replaced.
type Mode int

const (
	// ModeCheck compares against baselines and never overwrites an existing one.
	ModeCheck Mode = iota
	// ModeSave compares and overwrites baselines whose artifacts mismatch.
	ModeSave
)

func (m Mode) String() string {
	if m == ModeSave {
		return "save"
	}
	return "check"
}

// Status is the outcome of a single comparison stage.
type Status string

const (
	StatusPending Status = ""
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusCreated Status = "created" // no baseline existed; the new artifact was accepted
	StatusError   Status = "error"   // the artifact to compare could not be produced
)

// Failed reports whether the status counts against the test case.
func (s Status) Failed() bool {
	return s == StatusFail || s == StatusError
}

// TestCase identifies one input document.
type TestCase struct {
	Name string // file name without extension
	Path string // source path in the test-file directory
}

// NewTestCase derives a TestCase from the path of a test input.
func NewTestCase(path string) TestCase {
	base := filepath.Base(path)
	return TestCase{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
}

// EngineResult is the outcome of compiling one TestCase with one engine.
type EngineResult struct {
	Engine        string
	Runs          int
	CompileOK     bool
	LogPath       string
	DocumentPath  string
	NormalizedLog string // path of the normalized log in the run directory
	LogDigest     string
	LogStatus     Status
	DiffPath      string
	Err           error
}

// ImageResult is the outcome of comparing one page image.
type ImageResult struct {
	Key            string // canonical image name without extension
	Path           string
	Digest         string
	Width          int
	Height         int
	Status         Status
	VisualDiffPath string
	Err            error
}

// CaseOutcome is the terminal value produced by the test case driver.
type CaseOutcome struct {
	Case          TestCase
	Configuration string
	RunDir        string
	Engines       []EngineResult
	ImageEngine   string
	Images        []ImageResult
	ImageErr      error
	Failed        bool
}

// ImageFailed reports whether the image stage contributed a failure.
func (o *CaseOutcome) ImageFailed() bool {
	if o.ImageErr != nil {
		return true
	}
	for _, img := range o.Images {
		if img.Status.Failed() {
			return true
		}
	}
	return false
}

// Resolve computes the Failed flag from the recorded stage results.
func (o *CaseOutcome) Resolve() {
	o.Failed = o.ImageFailed()
	for _, r := range o.Engines {
		if r.LogStatus.Failed() {
			o.Failed = true
		}
	}
}

// RunSummary collects the outcomes of one invocation across configurations.
type RunSummary struct {
	RunID    string
	Mode     Mode
	Started  time.Time
	Finished time.Time
	Outcomes []CaseOutcome
	Skipped  []string // requested configurations that are not declared
	Failures int      // the ErrorTally
}
