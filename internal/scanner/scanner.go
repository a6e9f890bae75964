package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/frherrer/texregress/internal/domain"
)

// Scanner discovers files in a directory tree.
type Scanner interface {
	Scan(rootDir string, patterns []string, excludes []string) ([]string, error)
}

// FileScanner implements Scanner using filepath.WalkDir.
type FileScanner struct {
	Recursive bool
}

// NewScanner creates a new FileScanner.
func NewScanner(recursive bool) *FileScanner {
	return &FileScanner{Recursive: recursive}
}

// Scan walks rootDir and returns sorted file paths matching any of the given
// glob patterns while excluding paths that match any exclude pattern.
func (s *FileScanner) Scan(rootDir string, patterns []string, excludes []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Get path relative to rootDir for pattern matching
		relPath, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			relPath = path
		}

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			if !s.Recursive {
				return filepath.SkipDir
			}
			for _, exc := range excludes {
				if Match(relPath, exc) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		for _, exc := range excludes {
			if Match(relPath, exc) {
				return nil
			}
		}

		for _, pattern := range patterns {
			if Match(relPath, pattern) {
				files = append(files, path)
				return nil
			}
		}

		return nil
	})

	if err != nil {
		return nil, domain.NewError("scan", rootDir, 0, "failed to scan directory", err)
	}

	sort.Strings(files)
	return files, nil
}

// DiscoverTests returns the test cases in dir whose files carry the given
// extension, ordered by file name.
func DiscoverTests(dir, extension string) ([]domain.TestCase, error) {
	files, err := NewScanner(false).Scan(dir, []string{"*" + extension}, nil)
	if err != nil {
		return nil, err
	}
	cases := make([]domain.TestCase, 0, len(files))
	for _, f := range files {
		cases = append(cases, domain.NewTestCase(f))
	}
	return cases, nil
}

var pageKey = regexp.MustCompile(`^(.+)-[1-9][0-9]*$`)

// CheckImageKeys rejects test cases whose name has the form `<other>-<n>`
// where `<other>` is also a test case. Page n of a multi-page `<other>` is
// stored under that same key.
func CheckImageKeys(cases []domain.TestCase) error {
	byName := make(map[string]domain.TestCase, len(cases))
	for _, tc := range cases {
		byName[tc.Name] = tc
	}
	for _, tc := range cases {
		m := pageKey.FindStringSubmatch(tc.Name)
		if m == nil {
			continue
		}
		if other, ok := byName[m[1]]; ok {
			return domain.NewErrorWithSuggestion("scan", tc.Path, 0,
				fmt.Sprintf("test %q has the same image key as page %s of test %q", tc.Name, strings.TrimPrefix(tc.Name, m[1]+"-"), other.Name),
				"rename one of the test files",
				domain.ErrNameCollision)
		}
	}
	return nil
}

// Match matches a relative path against a glob pattern, supporting ** for
// recursive matching. Patterns without a separator also match the base name.
func Match(path, pattern string) bool {
	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		prefix := strings.TrimSuffix(parts[0], string(filepath.Separator))
		suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

		if prefix != "" {
			if !strings.HasPrefix(path, prefix) {
				return false
			}
			path = strings.TrimPrefix(path, prefix)
			path = strings.TrimPrefix(path, string(filepath.Separator))
		}

		if suffix == "" {
			return true
		}

		// Try matching suffix against each possible subpath
		pathParts := strings.Split(path, string(filepath.Separator))
		for i := range pathParts {
			subPath := strings.Join(pathParts[i:], string(filepath.Separator))
			if matched, _ := filepath.Match(suffix, subPath); matched {
				return true
			}
		}
		return false
	}

	if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
		return true
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}
