package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/texregress/internal/domain"
)

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML resolves the single-or-sequence form once at load time.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
	return nil
}

// Options is the resolved, read-only option snapshot for one configuration.
// It is passed by value; Resolve never shares slices or maps with the Config.
type Options struct {
	Configuration string
	Mode          domain.Mode
	BuildDir      string
	RunDir        string
	TestfileDir   string
	SupportDir    string
	SourceDirs    []string
	Sources       []string
	Excludes      []string
	TestExtension string
	OverrideFile  string
	Engines       []string
	StdEngine     string
	CheckRuns     int
	EngineRuns    map[string]int
	Executables   map[string]string
	Timeout       time.Duration
	Compile       CompileConfig
	Raster        RasterConfig
	Diff          DiffConfig
	Normalize     NormalizeConfig
	Baseline      BaselineConfig
	Digest        DigestConfig
}

// Resolve builds the option snapshot for the named configuration. A declared
// base configuration's setup is applied first, then the configuration's own.
// Every call starts from the root config, so resolving twice gives the same result.
func (c *Config) Resolve(name string, mode domain.Mode) (Options, error) {
	opts := c.rootOptions(name, mode)

	cc, ok := c.Lookup(name)
	if !ok {
		if name == DefaultConfigurationName {
			return opts, nil
		}
		return Options{}, domain.NewError("config", "", 0, fmt.Sprintf("unknown configuration %q", name), nil)
	}

	if cc.Base != "" {
		base, err := c.baseOf(cc)
		if err != nil {
			return Options{}, err
		}
		opts = opts.apply(base.Setup)
	}
	return opts.apply(cc.Setup), nil
}

// baseOf returns the base configuration, enforcing single-level inheritance.
func (c *Config) baseOf(cc Configuration) (Configuration, error) {
	if cc.Base == cc.Name {
		return Configuration{}, domain.NewError("config", "", 0,
			fmt.Sprintf("configuration %q cannot be its own base", cc.Name), nil)
	}
	base, ok := c.Lookup(cc.Base)
	if !ok {
		if cc.Base == DefaultConfigurationName {
			return Configuration{Name: DefaultConfigurationName}, nil
		}
		return Configuration{}, domain.NewError("config", "", 0,
			fmt.Sprintf("configuration %q has unknown base %q", cc.Name, cc.Base), nil)
	}
	if base.Base != "" {
		return Configuration{}, domain.NewError("config", "", 0,
			fmt.Sprintf("configuration %q uses %q as base, which itself has base %q", cc.Name, base.Name, base.Base), nil)
	}
	return base, nil
}

func (c *Config) rootOptions(name string, mode domain.Mode) Options {
	runDir := filepath.Join(c.BuildDir, "test")
	if name != DefaultConfigurationName {
		runDir = filepath.Join(c.BuildDir, "test-"+name)
	}

	// Validate has already rejected malformed durations.
	timeout, _ := time.ParseDuration(c.Compile.Timeout)

	norm := c.Normalize
	norm.Rules = slices.Clone(c.Normalize.Rules)
	norm.ExtraRules = slices.Clone(c.Normalize.ExtraRules)

	compile := c.Compile
	compile.BlockedPatterns = slices.Clone(c.Compile.BlockedPatterns)

	return Options{
		Configuration: name,
		Mode:          mode,
		BuildDir:      c.BuildDir,
		RunDir:        runDir,
		TestfileDir:   c.TestfileDir,
		SupportDir:    c.SupportDir,
		SourceDirs:    slices.Clone(c.SourceDirs),
		Sources:       slices.Clone(c.Sources),
		Excludes:      slices.Clone(c.Excludes),
		TestExtension: c.TestExtension,
		OverrideFile:  c.OverrideFile,
		Engines:       slices.Clone(c.Engines),
		StdEngine:     c.StdEngine,
		CheckRuns:     c.CheckRuns,
		EngineRuns:    cloneMap(c.EngineRuns),
		Executables:   cloneMap(c.Executables),
		Timeout:       timeout,
		Compile:       compile,
		Raster:        c.Raster,
		Diff:          c.Diff,
		Normalize:     norm,
		Baseline:      c.Baseline,
		Digest:        c.Digest,
	}
}

// apply returns a copy of o with the setup's overrides applied.
func (o Options) apply(s Setup) Options {
	if s.TestfileDir != "" {
		o.TestfileDir = s.TestfileDir
	}
	if len(s.Engines) > 0 {
		o.Engines = slices.Clone(s.Engines)
	}
	if s.StdEngine != "" {
		o.StdEngine = s.StdEngine
	}
	if s.CheckRuns > 0 {
		o.CheckRuns = s.CheckRuns
	}
	if len(s.EngineRuns) > 0 {
		runs := cloneMap(o.EngineRuns)
		for k, v := range s.EngineRuns {
			runs[k] = v
		}
		o.EngineRuns = runs
	}
	if len(s.Sources) > 0 {
		o.Sources = slices.Clone(s.Sources)
	}
	if s.Raster != nil {
		o.Raster.Enabled = *s.Raster
	}
	if len(s.ExtraRules) > 0 {
		o.Normalize.ExtraRules = append(slices.Clone(o.Normalize.ExtraRules), s.ExtraRules...)
	}
	return o
}

// WithEngines restricts the active engines to those in keep, preserving order.
// An empty keep list leaves the engines unchanged.
func (o Options) WithEngines(keep []string) Options {
	if len(keep) == 0 {
		return o
	}
	var engines []string
	for _, e := range o.Engines {
		if slices.Contains(keep, e) {
			engines = append(engines, e)
		}
	}
	o.Engines = engines
	return o
}

// RunsFor returns how many times the engine compiles each test file.
func (o Options) RunsFor(engine string) int {
	if n, ok := o.EngineRuns[engine]; ok && n > 0 {
		return n
	}
	if o.CheckRuns > 0 {
		return o.CheckRuns
	}
	return 1
}

// ImageEngine returns the engine whose document is rasterized: the standard
// engine when it is active, otherwise the first active engine.
func (o Options) ImageEngine() string {
	if slices.Contains(o.Engines, o.StdEngine) {
		return o.StdEngine
	}
	if len(o.Engines) > 0 {
		return o.Engines[0]
	}
	return ""
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
