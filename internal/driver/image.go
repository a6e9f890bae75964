package driver

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/fsutil"
	"github.com/frherrer/texregress/internal/raster"
)

// compareImages rasterizes the test case's document and compares every page
// image with its baseline digest.
func (d *Driver) compareImages(ctx context.Context, tc domain.TestCase, out *domain.CaseOutcome, log logrus.FieldLogger) {
	document := filepath.Join(d.opts.RunDir, tc.Name+DocumentExtension)
	if !fsutil.Exists(document) {
		out.ImageErr = domain.NewError("raster", document, 0, "nothing to rasterize", domain.ErrDocumentMissing)
		log.Error(out.ImageErr)
		return
	}

	format := d.tools.Rasterizer.Format()
	if err := raster.Clean(d.opts.RunDir, tc.Name, format); err != nil {
		out.ImageErr = domain.NewError("raster", d.opts.RunDir, 0, "failed to remove stale page images", err)
		return
	}

	pages, err := d.tools.Rasterizer.Rasterize(ctx, d.opts.RunDir, document)
	if err != nil {
		out.ImageErr = domain.NewError("raster", document, 0, "rasterization failed", err)
		log.Error(out.ImageErr)
		return
	}
	if len(pages) == 0 {
		out.ImageErr = domain.NewError("raster", document, 0, "no page images", domain.ErrNoPages)
		log.Error(out.ImageErr)
		return
	}

	images, err := raster.Canonicalize(d.opts.RunDir, tc.Name, format, pages)
	if err != nil {
		out.ImageErr = domain.NewError("raster", d.opts.RunDir, 0, "failed to rename page images", err)
		return
	}
	log.Debugf("Rasterized %d page(s)", len(images))

	for _, img := range images {
		out.Images = append(out.Images, d.compareImage(ctx, img, format, log.WithField("image", img.Key)))
	}
}

// compareImage compares one page image by digest. A missing baseline is
// created; a mismatch optionally produces a visual diff and, in save mode,
// replaces the baseline image and digest.
func (d *Driver) compareImage(ctx context.Context, img raster.Image, format raster.Format, log logrus.FieldLogger) domain.ImageResult {
	res := domain.ImageResult{Key: img.Key, Path: img.Path}

	w, h, err := raster.Dimensions(img.Path)
	if err != nil {
		res.Status = domain.StatusError
		res.Err = domain.NewError("image", img.Path, 0, "page image is not readable", err)
		log.Error(res.Err)
		return res
	}
	res.Width, res.Height = w, h

	sum, err := d.hasher.File(img.Path)
	if err != nil {
		res.Status = domain.StatusError
		res.Err = domain.NewError("image", img.Path, 0, "failed to digest page image", err)
		return res
	}
	res.Digest = sum

	expected, found, err := d.store.LoadDigest(img.Key)
	if err != nil {
		res.Status = domain.StatusError
		res.Err = err
		return res
	}

	if !found {
		if err := d.store.SaveImage(img.Key, img.Path, sum); err != nil {
			res.Status = domain.StatusError
			res.Err = err
			return res
		}
		log.Infof("Created image baseline %s", filepath.Base(d.store.DigestPath(img.Key)))
		res.Status = domain.StatusCreated
		return res
	}

	if expected == sum {
		res.Status = domain.StatusPass
		return res
	}

	res.Status = domain.StatusFail
	log.Infof("Image digest differs (%dx%d)", w, h)

	if d.tools.VisualDiffer != nil && fsutil.Exists(d.store.ImagePath(img.Key)) {
		output := filepath.Join(d.opts.RunDir, img.Key+"-diff."+format.Extension)
		ok, err := d.tools.VisualDiffer.VisualDiff(ctx, d.opts.RunDir, d.store.ImagePath(img.Key), img.Path, output)
		switch {
		case err != nil:
			log.Warnf("Visual diff failed: %v", err)
		case ok:
			res.VisualDiffPath = output
		}
	}

	if d.opts.Mode == domain.ModeSave {
		if err := d.store.SaveImage(img.Key, img.Path, sum); err != nil {
			res.Err = err
			return res
		}
		log.Info("Saved image baseline")
	}
	return res
}
