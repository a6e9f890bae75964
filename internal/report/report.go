// Package report writes a Markdown summary of a run and renders it to HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
)

// Writer renders run summaries.
type Writer interface {
	Write(summary *domain.RunSummary) ([]string, error)
}

// FileWriter writes report.md and report.html into a directory.
type FileWriter struct {
	dir   string
	title string
	md    goldmark.Markdown
}

// NewFileWriter creates a FileWriter writing into dir.
func NewFileWriter(dir, title string) *FileWriter {
	return &FileWriter{
		dir:   dir,
		title: title,
		md:    goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Write renders the summary and returns the paths it wrote.
func (w *FileWriter) Write(summary *domain.RunSummary) ([]string, error) {
	source := Markdown(w.title, summary)

	var body bytes.Buffer
	if err := w.md.Convert([]byte(source), &body); err != nil {
		return nil, domain.NewError("report", "", 0, "failed to render report", err)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(w.title))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	mdPath := filepath.Join(w.dir, "report.md")
	htmlPath := filepath.Join(w.dir, "report.html")
	if err := fsutil.WriteFileAtomic(mdPath, []byte(source)); err != nil {
		return nil, domain.NewError("report", mdPath, 0, "failed to write report", err)
	}
	if err := fsutil.WriteFileAtomic(htmlPath, []byte(page.String())); err != nil {
		return nil, domain.NewError("report", htmlPath, 0, "failed to write report", err)
	}
	return []string{mdPath, htmlPath}, nil
}

// Markdown renders the summary as a Markdown document with one table row per
// test case and configuration.
func Markdown(title string, s *domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run: `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- Mode: %s\n", s.Mode)
	if !s.Started.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", s.Started.Format("2006-01-02 15:04:05"))
	}
	if !s.Finished.IsZero() && !s.Started.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", s.Finished.Sub(s.Started).Round(1e6))
	}
	fmt.Fprintf(&b, "- Failed tests: %d\n", s.Failures)
	for _, name := range s.Skipped {
		fmt.Fprintf(&b, "- Skipped unknown configuration `%s`\n", name)
	}
	b.WriteString("\n")

	if len(s.Outcomes) == 0 {
		b.WriteString("No tests were run.\n")
		return b.String()
	}

	b.WriteString("| Configuration | Test | Result | Logs | Images | Artifacts |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, o := range s.Outcomes {
		result := "pass"
		if o.Failed {
			result = "**FAIL**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(o.Configuration), cell(o.Case.Name), result,
			cell(logSummary(o)), cell(imageSummary(o)), cell(artifacts(o)))
	}

	if failures := errorLines(s.Outcomes); len(failures) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, line := range failures {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func logSummary(o domain.CaseOutcome) string {
	parts := make([]string, 0, len(o.Engines))
	for _, r := range o.Engines {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Engine, r.LogStatus))
	}
	return strings.Join(parts, ", ")
}

func imageSummary(o domain.CaseOutcome) string {
	if o.ImageEngine == "" {
		return "-"
	}
	if o.ImageErr != nil {
		return "error"
	}
	parts := make([]string, 0, len(o.Images))
	for _, img := range o.Images {
		parts = append(parts, fmt.Sprintf("%s: %s", img.Key, img.Status))
	}
	return strings.Join(parts, ", ")
}

func artifacts(o domain.CaseOutcome) string {
	var parts []string
	for _, r := range o.Engines {
		if r.DiffPath != "" {
			parts = append(parts, "`"+filepath.Base(r.DiffPath)+"`")
		}
	}
	for _, img := range o.Images {
		if img.VisualDiffPath != "" {
			parts = append(parts, "`"+filepath.Base(img.VisualDiffPath)+"`")
		}
	}
	return strings.Join(parts, " ")
}

func errorLines(outcomes []domain.CaseOutcome) []string {
	var lines []string
	for _, o := range outcomes {
		for _, r := range o.Engines {
			if r.Err != nil {
				lines = append(lines, fmt.Sprintf("%s/%s (%s): %v", o.Configuration, o.Case.Name, r.Engine, r.Err))
			}
		}
		if o.ImageErr != nil {
			lines = append(lines, fmt.Sprintf("%s/%s (image): %v", o.Configuration, o.Case.Name, o.ImageErr))
		}
		for _, img := range o.Images {
			if img.Err != nil {
				lines = append(lines, fmt.Sprintf("%s/%s (%s): %v", o.Configuration, o.Case.Name, img.Key, img.Err))
			}
		}
	}
	return lines
}

// cell escapes pipes so a value stays inside its table cell.
func cell(s string) string {
	if s == "" {
		return " "
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

