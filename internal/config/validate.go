package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/frherrer/texregress/internal/digest"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/raster"
)

// Validate checks the Config for required fields and valid values.
func Validate(cfg *Config) error {
	var errs []string

	// Layout validation
	if cfg.BuildDir == "" {
		errs = append(errs, "build_dir must not be empty")
	}
	if cfg.TestfileDir == "" {
		errs = append(errs, "testfile_dir must not be empty")
	}
	if !strings.HasPrefix(cfg.TestExtension, ".") {
		errs = append(errs, "test_extension must start with '.'")
	}
	if cfg.OverrideFile != "" && strings.ContainsRune(cfg.OverrideFile, '/') {
		errs = append(errs, "override_file must be a plain file name")
	}

	// Engine validation
	if len(cfg.Engines) == 0 {
		errs = append(errs, "engines must not be empty")
	}
	if cfg.StdEngine == "" {
		errs = append(errs, "std_engine must not be empty")
	}
	if cfg.CheckRuns < 1 {
		errs = append(errs, "check_runs must be at least 1")
	}
	for _, e := range cfg.Engines {
		if _, ok := cfg.Executables[e]; !ok {
			errs = append(errs, fmt.Sprintf("engines: no executable declared for %q", e))
		}
	}

	// Command validation
	if cfg.Compile.Command == "" {
		errs = append(errs, "compile.command must not be empty")
	}
	if cfg.Compile.Shell == "" {
		errs = append(errs, "compile.shell must not be empty")
	}
	if d, err := time.ParseDuration(cfg.Compile.Timeout); err != nil || d < 0 {
		errs = append(errs, fmt.Sprintf("compile.timeout must be a non-negative duration (got %q)", cfg.Compile.Timeout))
	}
	if cfg.Raster.Enabled {
		if cfg.Raster.Command == "" {
			errs = append(errs, "raster.command must not be empty when raster.enabled is set")
		}
		if !raster.IsSupported(cfg.Raster.Format) {
			errs = append(errs, fmt.Sprintf("raster.format %q: %v (supported: %s)",
				cfg.Raster.Format, domain.ErrUnsupportedImageFormat, strings.Join(raster.SupportedFormats(), ", ")))
		}
		if cfg.Raster.Resolution <= 0 {
			errs = append(errs, "raster.resolution must be positive")
		}
	}

	// Validate normalization rules are valid regex
	for i, r := range append(append([]Rule{}, cfg.Normalize.Rules...), cfg.Normalize.ExtraRules...) {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Sprintf("normalize rule %d is not a valid regex: %v", i+1, err))
		}
	}
	if cfg.Normalize.StartMarker == "" || cfg.Normalize.EndMarker == "" {
		errs = append(errs, "normalize.start_marker and normalize.end_marker must not be empty")
	}

	if !strings.HasPrefix(cfg.Baseline.LogExtension, ".") {
		errs = append(errs, "baseline.log_extension must start with '.'")
	}
	if !strings.HasPrefix(cfg.Baseline.DigestExtension, ".") {
		errs = append(errs, "baseline.digest_extension must start with '.'")
	}
	if !digest.IsSupported(cfg.Digest.Algorithm) {
		errs = append(errs, fmt.Sprintf("digest.algorithm must be one of: %s (got %q)",
			strings.Join(digest.Algorithms(), ", "), cfg.Digest.Algorithm))
	}

	errs = append(errs, validateConfigurations(cfg)...)

	// Validate logging level
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
		}
	}

	if len(errs) > 0 {
		return domain.NewError("config", "", 0, fmt.Sprintf("validation failed: %s", strings.Join(errs, "; ")), nil)
	}

	return nil
}

func validateConfigurations(cfg *Config) []string {
	var errs []string
	seen := make(map[string]bool)
	for _, cc := range cfg.Configurations {
		if cc.Name == "" {
			errs = append(errs, "configurations: name must not be empty")
			continue
		}
		if seen[cc.Name] {
			errs = append(errs, fmt.Sprintf("configurations: duplicate name %q", cc.Name))
		}
		seen[cc.Name] = true

		if cc.Base != "" {
			if _, err := cfg.baseOf(cc); err != nil {
				var re *domain.RegressError
				if errors.As(err, &re) {
					errs = append(errs, "configurations: "+re.Message)
				} else {
					errs = append(errs, err.Error())
				}
			}
		}
		for i, r := range cc.Setup.ExtraRules {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				errs = append(errs, fmt.Sprintf("configurations: %q extra rule %d is not a valid regex: %v", cc.Name, i+1, err))
			}
		}
	}
	return errs
}

// Validate checks a resolved option snapshot for configuration errors that
// must abort the run before any test executes.
func (o Options) Validate() error {
	if len(o.Engines) == 0 {
		return domain.NewError("config", "", 0,
			fmt.Sprintf("configuration %q has no active engines", o.Configuration), nil)
	}
	for _, e := range o.Engines {
		if _, ok := o.Executables[e]; !ok {
			return domain.NewErrorWithSuggestion("config", "", 0,
				fmt.Sprintf("configuration %q: engine %q", o.Configuration, e),
				"declare it under executables", domain.ErrUnknownEngine)
		}
	}
	if o.Raster.Enabled && !raster.IsSupported(o.Raster.Format) {
		return domain.NewError("config", "", 0,
			fmt.Sprintf("configuration %q: image format %q", o.Configuration, o.Raster.Format),
			domain.ErrUnsupportedImageFormat)
	}
	return nil
}
