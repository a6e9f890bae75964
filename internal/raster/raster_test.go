package raster_test

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/image/bmp"

	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/raster"
)

func writePNG(path string, w, h int) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	f, err := os.Create(path)
	Expect(err).ToNot(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
}

func touch(path string) {
	Expect(os.WriteFile(path, nil, 0644)).To(Succeed())
}

var _ = Describe("Raster", func() {
	var (
		dir       string
		pngFormat raster.Format
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		pngFormat, err = raster.Lookup("png")
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("Lookup", func() {
		It("should know the supported formats", func() {
			Expect(raster.SupportedFormats()).To(Equal([]string{"bmp", "jpeg", "png", "tiff"}))
			f, err := raster.Lookup("tiff")
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Extension).To(Equal("tif"))
		})

		It("should reject unsupported formats", func() {
			_, err := raster.Lookup("webp")
			Expect(errors.Is(err, domain.ErrUnsupportedImageFormat)).To(BeTrue())
			Expect(raster.IsSupported("webp")).To(BeFalse())
		})
	})

	Describe("CollectPages", func() {
		It("should order pages numerically and accept padding", func() {
			for _, name := range []string{"alpha-10.png", "alpha-02.png", "alpha-1.png", "alpha.pdf", "alphabet-3.png", "alpha-x.png"} {
				touch(filepath.Join(dir, name))
			}
			pages, err := raster.CollectPages(dir, "alpha", pngFormat)
			Expect(err).ToNot(HaveOccurred())
			Expect(pages).To(HaveLen(3))
			Expect([]int{pages[0].Number, pages[1].Number, pages[2].Number}).To(Equal([]int{1, 2, 10}))
		})
	})

	Describe("Canonicalize", func() {
		It("should name a single page after the test", func() {
			touch(filepath.Join(dir, "alpha-1.png"))
			pages, _ := raster.CollectPages(dir, "alpha", pngFormat)

			images, err := raster.Canonicalize(dir, "alpha", pngFormat, pages)
			Expect(err).ToNot(HaveOccurred())
			Expect(images).To(HaveLen(1))
			Expect(images[0].Key).To(Equal("alpha"))
			Expect(filepath.Join(dir, "alpha.png")).To(BeAnExistingFile())
			Expect(filepath.Join(dir, "alpha-1.png")).ToNot(BeAnExistingFile())
		})

		It("should number multiple pages without padding", func() {
			touch(filepath.Join(dir, "alpha-01.png"))
			touch(filepath.Join(dir, "alpha-02.png"))
			pages, _ := raster.CollectPages(dir, "alpha", pngFormat)

			images, err := raster.Canonicalize(dir, "alpha", pngFormat, pages)
			Expect(err).ToNot(HaveOccurred())
			Expect(images).To(HaveLen(2))
			Expect(images[0].Key).To(Equal("alpha-1"))
			Expect(images[1].Key).To(Equal("alpha-2"))
			Expect(filepath.Join(dir, "alpha-2.png")).To(BeAnExistingFile())
		})
	})

	Describe("Clean", func() {
		It("should remove earlier page images only", func() {
			for _, name := range []string{"alpha.png", "alpha-1.png", "alpha-2.png", "alpha.pdf", "beta.png"} {
				touch(filepath.Join(dir, name))
			}
			Expect(raster.Clean(dir, "alpha", pngFormat)).To(Succeed())

			entries, err := os.ReadDir(dir)
			Expect(err).ToNot(HaveOccurred())
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			Expect(names).To(ConsistOf("alpha.pdf", "beta.png"))
		})

		It("should accept a missing directory", func() {
			Expect(raster.Clean(filepath.Join(dir, "missing"), "alpha", pngFormat)).To(Succeed())
		})
	})

	Describe("Dimensions", func() {
		It("should decode png headers", func() {
			path := filepath.Join(dir, "alpha.png")
			writePNG(path, 12, 7)
			w, h, err := raster.Dimensions(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(w).To(Equal(12))
			Expect(h).To(Equal(7))
		})

		It("should decode bmp headers", func() {
			path := filepath.Join(dir, "alpha.bmp")
			f, err := os.Create(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(bmp.Encode(f, image.NewRGBA(image.Rect(0, 0, 3, 4)))).To(Succeed())
			Expect(f.Close()).To(Succeed())

			w, h, err := raster.Dimensions(path)
			Expect(err).ToNot(HaveOccurred())
			Expect([]int{w, h}).To(Equal([]int{3, 4}))
		})

		It("should fail for files that are not images", func() {
			path := filepath.Join(dir, "alpha.png")
			Expect(os.WriteFile(path, []byte("not an image"), 0644)).To(Succeed())
			_, _, err := raster.Dimensions(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
