// Package baseline reads and writes the accepted reference artifacts a run is
// compared against: normalized logs per (test case, engine) and image digests
// per image key. Writes always replace the whole artifact.
package baseline

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
)

// Store maps test cases to their baselines in the test-file directory.
type Store struct {
	dir       string
	logExt    string
	digestExt string
	imageExt  string
	stdEngine string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dir. The standard engine's log baseline
// is stored unqualified (`<name><log_ext>`); other engines use
// `<name>.<engine><log_ext>`.
func NewStore(dir string, cfg config.BaselineConfig, stdEngine, imageExt string) *Store {
	return &Store{
		dir:       dir,
		logExt:    cfg.LogExtension,
		digestExt: cfg.DigestExtension,
		imageExt:  imageExt,
		stdEngine: stdEngine,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Dir returns the directory the baselines live in.
func (s *Store) Dir() string {
	return s.dir
}

// lock serializes writers of one key and returns the unlock function.
func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// LogPath returns where the log baseline for (name, engine) is written. It is
// always the file LoadLog would read first: an existing engine-qualified
// baseline is replaced in place, even for the standard engine.
func (s *Store) LogPath(name, engine string) string {
	qualified := s.qualifiedLogPath(name, engine)
	if engine == "" || engine == s.stdEngine {
		if engine != "" && fsutil.Exists(qualified) {
			return qualified
		}
		return filepath.Join(s.dir, name+s.logExt)
	}
	return qualified
}

func (s *Store) qualifiedLogPath(name, engine string) string {
	return filepath.Join(s.dir, name+"."+engine+s.logExt)
}

// LoadLog returns the accepted normalized log for (name, engine). An
// engine-qualified baseline takes precedence over the unqualified one.
func (s *Store) LoadLog(name, engine string) (text, path string, found bool, err error) {
	candidates := []string{
		s.qualifiedLogPath(name, engine),
		filepath.Join(s.dir, name+s.logExt),
	}
	for _, p := range candidates {
		data, ok, err := fsutil.ReadFile(p)
		if err != nil {
			return "", p, false, domain.NewError("baseline", p, 0, "failed to read log baseline", err)
		}
		if ok {
			return string(data), p, true, nil
		}
	}
	return "", "", false, nil
}

// SaveLog replaces the log baseline for (name, engine) and returns its path.
func (s *Store) SaveLog(name, engine, text string) (string, error) {
	path := s.LogPath(name, engine)
	defer s.lock(path)()

	if err := fsutil.WriteFileAtomic(path, []byte(text)); err != nil {
		return path, domain.NewError("baseline", path, 0, "failed to write log baseline", err)
	}
	return path, nil
}

// DigestPath returns the digest file for an image key.
func (s *Store) DigestPath(key string) string {
	return filepath.Join(s.dir, key+s.digestExt)
}

// ImagePath returns the accepted image for an image key.
func (s *Store) ImagePath(key string) string {
	return filepath.Join(s.dir, key+"."+s.imageExt)
}

// LoadDigest returns the accepted digest for an image key.
func (s *Store) LoadDigest(key string) (digest string, found bool, err error) {
	path := s.DigestPath(key)
	data, ok, err := fsutil.ReadFile(path)
	if err != nil {
		return "", false, domain.NewError("baseline", path, 0, "failed to read image digest", err)
	}
	if !ok {
		return "", false, nil
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", false, domain.NewError("baseline", path, 0, "image digest file is empty", nil)
	}
	return fields[0], true, nil
}

// SaveImage replaces the accepted image and digest for an image key. The
// digest file uses the `<digest>  <file>` layout of sha256sum.
func (s *Store) SaveImage(key, imagePath, digest string) error {
	defer s.lock(key)()

	target := s.ImagePath(key)
	if err := fsutil.CopyFile(imagePath, target); err != nil {
		return domain.NewError("baseline", target, 0, "failed to write baseline image", err)
	}
	line := fmt.Sprintf("%s  %s\n", digest, filepath.Base(target))
	if err := fsutil.WriteFileAtomic(s.DigestPath(key), []byte(line)); err != nil {
		return domain.NewError("baseline", s.DigestPath(key), 0, "failed to write image digest", err)
	}
	return nil
}
