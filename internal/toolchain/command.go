package toolchain

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/frherrer/texregress/internal/domain"
)

// CompileData is passed to the compile command template.
type CompileData struct {
	Executable string
	Engine     string
	Name       string
	Input      string
	WorkDir    string
}

// RasterData is passed to the rasterize command template.
type RasterData struct {
	Document   string
	Basename   string
	Format     string
	Resolution int
}

// DiffData is passed to the text and visual diff command templates.
type DiffData struct {
	Baseline string
	Actual   string
	Output   string
}

// FuncMap returns the functions available in command templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"quote":     ShellQuote,
		"base":      filepath.Base,
		"dir":       filepath.Dir,
		"stem":      func(p string) string { return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) },
		"toLower":   strings.ToLower,
		"toUpper":   strings.ToUpper,
		"replace":   strings.ReplaceAll,
		"trimSpace": strings.TrimSpace,
		"join":      strings.Join,
	}
}

// ParseCommand parses a command template. Unknown fields are an error at
// render time.
func ParseCommand(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, domain.NewError("config", "", 0, "failed to parse "+name+" command template", err)
	}
	return tmpl, nil
}

// RenderCommand executes a parsed command template.
func RenderCommand(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", domain.NewError("config", "", 0, "failed to render "+tmpl.Name()+" command", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ShellQuote quotes s for POSIX shells. Plain words are left as they are.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.ContainsRune("-_./=+:,@%", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
