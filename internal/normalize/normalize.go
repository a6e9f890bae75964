// Package normalize turns a raw compiler log into the canonical text that is
// compared against a baseline. Extraction cuts the test region out of the
// log; normalization then rewrites run-to-run noise with an ordered list of
// substitution rules. Rule order matters: each rule sees the output of the
// rules before it.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/domain"
)

// Rule is a compiled substitution.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

type literal struct {
	old, new string
}

// Normalizer extracts and normalizes logs.
type Normalizer struct {
	startMarker     string
	endMarker       string
	fallbackHeading string
	omitStart       string
	omitEnd         string
	literals        []literal
	rules           []Rule
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithPathElision replaces every occurrence of path with "..." before the
// rules run, so absolute run-directory paths do not leak into baselines.
func WithPathElision(path string) Option {
	return func(n *Normalizer) {
		if path == "" || path == "/" || path == "." {
			return
		}
		n.literals = append(n.literals, literal{old: path, new: "..."})
	}
}

// New compiles the configured rules followed by the extra rules.
func New(cfg config.NormalizeConfig, opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		startMarker:     cfg.StartMarker,
		endMarker:       cfg.EndMarker,
		fallbackHeading: cfg.FallbackHeading,
		omitStart:       cfg.OmitStart,
		omitEnd:         cfg.OmitEnd,
	}

	all := append(append([]config.Rule{}, cfg.Rules...), cfg.ExtraRules...)
	for i, r := range all {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid normalize rule %d: %w", i+1, err)
		}
		n.rules = append(n.rules, Rule{Pattern: re, Replacement: r.Replacement})
	}

	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Process extracts the test region from raw and normalizes it.
func (n *Normalizer) Process(raw string) (string, error) {
	region, err := n.Extract(raw)
	if err != nil {
		return "", err
	}
	return n.Normalize(region), nil
}

// Extract returns the lines between the start and end markers. Without a
// start marker it falls back to the separator heading, which must then be
// followed by the end marker. A start marker without an end marker yields
// the rest of the log, as left behind by a compiler that stopped early.
// Lines from the omit-start marker through the omit-end marker are dropped.
func (n *Normalizer) Extract(raw string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	begin, stop := -1, -1
	if i := indexOfLine(lines, n.startMarker, 0); i >= 0 {
		begin = i + 1
		stop = indexOfLine(lines, n.endMarker, begin)
		if stop < 0 {
			stop = len(lines)
		}
	} else if n.fallbackHeading != "" {
		if i := indexOfLine(lines, n.fallbackHeading, 0); i >= 0 {
			if j := indexOfLine(lines, n.endMarker, i+1); j >= 0 {
				begin, stop = i+1, j
			}
		}
	}
	if begin < 0 {
		return "", domain.ErrLogRegion
	}

	var out []string
	omitting := false
	for _, line := range lines[begin:stop] {
		trimmed := strings.TrimSpace(line)
		switch {
		case n.omitStart != "" && trimmed == n.omitStart:
			omitting = true
		case omitting && n.omitEnd != "" && trimmed == n.omitEnd:
			omitting = false
		case !omitting:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

// Normalize applies Unicode NFC, line-ending normalization, path elision and
// the substitution rules in order. The result ends with exactly one newline
// unless it is empty. Normalize is idempotent for the default rules.
func (n *Normalizer) Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	for _, l := range n.literals {
		text = strings.ReplaceAll(text, l.old, l.new)
	}
	for _, r := range n.rules {
		text = r.Pattern.ReplaceAllString(text, r.Replacement)
	}

	text = strings.Trim(text, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

func indexOfLine(lines []string, marker string, from int) int {
	if marker == "" {
		return -1
	}
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == marker {
			return i
		}
	}
	return -1
}
