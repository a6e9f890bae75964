package config

import "strings"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		BuildDir:      "build",
		TestfileDir:   "testfiles",
		SupportDir:    "support",
		SourceDirs:    StringList{"."},
		Sources:       StringList{"*.sty", "*.cls", "*.def"},
		TestExtension: ".lvt",
		OverrideFile:  "regression-test.cfg",
		Engines:       StringList{"pdftex", "xetex", "luatex"},
		StdEngine:     "pdftex",
		CheckRuns:     1,
		EngineRuns:    map[string]int{},
		Executables: map[string]string{
			"pdftex": "pdflatex",
			"xetex":  "xelatex",
			"luatex": "lualatex",
		},
		CheckConfigurations: StringList{DefaultConfigurationName},
		Compile: CompileConfig{
			Command: `{{.Executable}} -interaction=nonstopmode {{quote .Input}}`,
			Timeout: "5m",
			BlockedPatterns: []string{
				"rm -rf /",
				"mkfs",
				"dd if=",
				"> /dev/sd",
			},
			Shell:     "/bin/sh",
			ShellFlag: "-c",
		},
		Raster: RasterConfig{
			Enabled:    true,
			Command:    `pdftoppm -{{.Format}} -r {{.Resolution}} {{quote .Document}} {{quote .Basename}}`,
			Format:     "png",
			Resolution: 72,
		},
		Diff: DiffConfig{
			Command:   `diff -u {{quote .Baseline}} {{quote .Actual}}`,
			VisualEnv: "TEXREGRESS_IMGDIFF",
		},
		Normalize: NormalizeConfig{
			StartMarker:     "START-TEST-LOG",
			EndMarker:       "END-TEST-LOG",
			FallbackHeading: strings.Repeat("-", 60),
			OmitStart:       "OMIT",
			OmitEnd:         "TIMO",
			Rules:           DefaultRules(),
		},
		Baseline: BaselineConfig{
			LogExtension:    ".nlog",
			DigestExtension: ".digest",
		},
		Digest: DigestConfig{
			Algorithm: "blake2b-256",
		},
		Report: ReportConfig{
			Enabled: true,
			Title:   "Regression report",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultRules returns the ordered substitutions that erase run-to-run noise.
// Later rules see the output of earlier ones.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `on input line \d+`, Replacement: "on input line ..."},
		{Pattern: `\bl\.\d+`, Replacement: "l. ..."},
		{Pattern: `\\(count|dimen|skip|muskip|box|toks|read|write|insert|marks|attribute|catcodetable)\d+`, Replacement: `\${1}...`},
		{Pattern: `<\d{4}[-/]\d{2}[-/]\d{2}>`, Replacement: "<....-..-..>"},
		{Pattern: `(?m)[ \t]+$`, Replacement: ""},
		{Pattern: `\n{3,}`, Replacement: "\n\n"},
	}
}
