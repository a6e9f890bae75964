package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/texregress/internal/domain"
)

// DefaultConfigurationName is the configuration that needs no declaration.
const DefaultConfigurationName = "build"

// Config is the top-level configuration struct.
type Config struct {
	BuildDir            string            `yaml:"build_dir"`
	TestfileDir         string            `yaml:"testfile_dir"`
	SupportDir          string            `yaml:"support_dir"`
	SourceDirs          StringList        `yaml:"source_dirs"`
	Sources             StringList        `yaml:"sources"`
	Excludes            StringList        `yaml:"excludes"`
	TestExtension       string            `yaml:"test_extension"`
	OverrideFile        string            `yaml:"override_file"`
	Engines             StringList        `yaml:"engines"`
	StdEngine           string            `yaml:"std_engine"`
	CheckRuns           int               `yaml:"check_runs"`
	EngineRuns          map[string]int    `yaml:"engine_runs"`
	Executables         map[string]string `yaml:"executables"`
	CheckConfigurations StringList        `yaml:"check_configurations"`
	Configurations      []Configuration   `yaml:"configurations"`
	Compile             CompileConfig     `yaml:"compile"`
	Raster              RasterConfig      `yaml:"raster"`
	Diff                DiffConfig        `yaml:"diff"`
	Normalize           NormalizeConfig   `yaml:"normalize"`
	Baseline            BaselineConfig    `yaml:"baseline"`
	Digest              DigestConfig      `yaml:"digest"`
	Report              ReportConfig      `yaml:"report"`
	Logging             LoggingConfig     `yaml:"logging"`
}

// Configuration is a named variant of the test matrix.
type Configuration struct {
	Name  string `yaml:"name"`
	Base  string `yaml:"base"`
	Setup Setup  `yaml:"setup"`
}

// Setup holds the option overrides a configuration applies. Zero values leave
// the inherited option untouched.
type Setup struct {
	TestfileDir string         `yaml:"testfile_dir"`
	Engines     StringList     `yaml:"engines"`
	StdEngine   string         `yaml:"std_engine"`
	CheckRuns   int            `yaml:"check_runs"`
	EngineRuns  map[string]int `yaml:"engine_runs"`
	Sources     StringList     `yaml:"sources"`
	Raster      *bool          `yaml:"raster"` // pointer to distinguish unset from false
	ExtraRules  []Rule         `yaml:"extra_rules"`
}

type CompileConfig struct {
	Command         string   `yaml:"command"`
	Timeout         string   `yaml:"timeout"`
	Shell           string   `yaml:"shell"`
	ShellFlag       string   `yaml:"shell_flag"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

type RasterConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Command    string `yaml:"command"`
	Format     string `yaml:"format"`
	Resolution int    `yaml:"resolution"`
}

type DiffConfig struct {
	Command       string `yaml:"command"`
	VisualCommand string `yaml:"visual_command"`
	VisualEnv     string `yaml:"visual_env"`
}

type NormalizeConfig struct {
	StartMarker     string `yaml:"start_marker"`
	EndMarker       string `yaml:"end_marker"`
	FallbackHeading string `yaml:"fallback_heading"`
	OmitStart       string `yaml:"omit_start"`
	OmitEnd         string `yaml:"omit_end"`
	Rules           []Rule `yaml:"rules"`
	ExtraRules      []Rule `yaml:"extra_rules"`
}

// Rule is a single pattern → replacement substitution applied to logs.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type BaselineConfig struct {
	LogExtension    string `yaml:"log_extension"`
	DigestExtension string `yaml:"digest_extension"`
}

type DigestConfig struct {
	Algorithm string `yaml:"algorithm"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads a YAML configuration file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewError("config", path, 0, "failed to read config file", err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, domain.NewErrorWithSuggestion("config", path, 0, "config does not match schema",
			"check for misspelled keys and value types", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewError("config", path, 0, "failed to parse config file", err)
	}

	return cfg, nil
}

// Lookup returns the declared configuration with the given name.
func (c *Config) Lookup(name string) (Configuration, bool) {
	for _, cc := range c.Configurations {
		if cc.Name == name {
			return cc, true
		}
	}
	return Configuration{}, false
}

// Known reports whether name refers to the default or a declared configuration.
func (c *Config) Known(name string) bool {
	if name == DefaultConfigurationName {
		return true
	}
	_, ok := c.Lookup(name)
	return ok
}
