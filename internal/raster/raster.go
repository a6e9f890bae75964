// Package raster knows the page-image formats a rasterizer may produce and
// how its per-page output files are named.
package raster

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
)

// Format describes a raster image format.
type Format struct {
	Name      string // value of raster.format, passed to the rasterizer command
	Extension string // file extension without the dot
}

var formats = map[string]Format{
	"png":  {Name: "png", Extension: "png"},
	"jpeg": {Name: "jpeg", Extension: "jpg"},
	"tiff": {Name: "tiff", Extension: "tif"},
	"bmp":  {Name: "bmp", Extension: "bmp"},
}

// IsSupported reports whether name is a known raster format.
func IsSupported(name string) bool {
	_, ok := formats[name]
	return ok
}

// SupportedFormats lists the known format names.
func SupportedFormats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the format with the given name.
func Lookup(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedImageFormat, name)
	}
	return f, nil
}

// Page is one image written by the rasterizer.
type Page struct {
	Number int
	Path   string
}

// Image is a page image under its canonical comparison key.
type Image struct {
	Key  string // base name without extension; also the baseline key
	Path string
}

func pagePattern(basename string, f Format) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(basename) + `-(\d+)\.` + regexp.QuoteMeta(f.Extension) + `$`)
}

// CollectPages finds the page images `<basename>-<n>.<ext>` in dir, ordered by
// page number. Zero-padded numbers (`doc-01.png`) are accepted.
func CollectPages(dir, basename string, f Format) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	re := pagePattern(basename, f)
	var pages []Page
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, Page{Number: n, Path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// Canonicalize renames page images to their comparison names. A single page
// becomes `<basename>.<ext>`; multiple pages become `<basename>-<n>.<ext>`
// with the page number unpadded.
func Canonicalize(dir, basename string, f Format, pages []Page) ([]Image, error) {
	if len(pages) == 1 {
		target := filepath.Join(dir, basename+"."+f.Extension)
		if err := fsutil.Rename(pages[0].Path, target); err != nil {
			return nil, err
		}
		return []Image{{Key: basename, Path: target}}, nil
	}

	images := make([]Image, 0, len(pages))
	for _, p := range pages {
		key := fmt.Sprintf("%s-%d", basename, p.Number)
		target := filepath.Join(dir, key+"."+f.Extension)
		if p.Path != target {
			if err := fsutil.Rename(p.Path, target); err != nil {
				return nil, err
			}
		}
		images = append(images, Image{Key: key, Path: target})
	}
	return images, nil
}

// Clean removes page images and the canonical single-page image left in dir
// by an earlier run, so stale pages are never compared.
func Clean(dir, basename string, f Format) error {
	pages, err := CollectPages(dir, basename, f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, p := range pages {
		if err := fsutil.Remove(p.Path); err != nil {
			return err
		}
	}
	return fsutil.Remove(filepath.Join(dir, basename+"."+f.Extension))
}

// Dimensions decodes the image header at path and returns its size.
func Dimensions(path string) (width, height int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}
