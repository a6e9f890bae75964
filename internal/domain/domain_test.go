package domain_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/texregress/internal/domain"
)

var _ = Describe("RegressError", func() {
	It("should format phase, file, line, cause and hint", func() {
		err := domain.NewErrorWithSuggestion("log", "alpha.log", 12, "bad region", "add markers", domain.ErrLogRegion)
		Expect(err.Error()).To(Equal("[log] alpha.log:12: bad region: could not extract log region (hint: add markers)"))
	})

	It("should omit empty parts", func() {
		err := domain.NewError("config", "", 0, "validation failed", nil)
		Expect(err.Error()).To(Equal("[config]: validation failed"))
	})

	It("should unwrap to the sentinel cause", func() {
		err := fmt.Errorf("wrapped: %w", domain.NewError("image", "a.pdf", 0, "rasterize", domain.ErrNoPages))
		Expect(errors.Is(err, domain.ErrNoPages)).To(BeTrue())

		var re *domain.RegressError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Phase).To(Equal("image"))
	})
})

var _ = Describe("Types", func() {
	It("should derive the test name from the file name", func() {
		tc := domain.NewTestCase("testfiles/alpha.lvt")
		Expect(tc.Name).To(Equal("alpha"))
		Expect(tc.Path).To(Equal("testfiles/alpha.lvt"))
	})

	It("should name the modes", func() {
		Expect(domain.ModeCheck.String()).To(Equal("check"))
		Expect(domain.ModeSave.String()).To(Equal("save"))
	})

	DescribeTable("Status.Failed",
		func(s domain.Status, failed bool) {
			Expect(s.Failed()).To(Equal(failed))
		},
		Entry("pending", domain.StatusPending, false),
		Entry("pass", domain.StatusPass, false),
		Entry("created", domain.StatusCreated, false),
		Entry("fail", domain.StatusFail, true),
		Entry("error", domain.StatusError, true),
	)

	Describe("CaseOutcome.Resolve", func() {
		It("should pass when every stage passes or creates", func() {
			o := domain.CaseOutcome{
				Engines: []domain.EngineResult{
					{Engine: "pdftex", LogStatus: domain.StatusPass},
					{Engine: "xetex", LogStatus: domain.StatusCreated},
				},
				ImageEngine: "pdftex",
				Images:      []domain.ImageResult{{Key: "alpha", Status: domain.StatusPass}},
			}
			o.Resolve()
			Expect(o.Failed).To(BeFalse())
		})

		It("should fail once however many stages fail", func() {
			o := domain.CaseOutcome{
				Engines: []domain.EngineResult{
					{Engine: "pdftex", LogStatus: domain.StatusFail},
					{Engine: "xetex", LogStatus: domain.StatusError},
				},
				Images: []domain.ImageResult{
					{Key: "alpha-1", Status: domain.StatusFail},
					{Key: "alpha-2", Status: domain.StatusFail},
				},
			}
			o.Resolve()
			Expect(o.Failed).To(BeTrue())
			Expect(o.ImageFailed()).To(BeTrue())
		})

		It("should fail on an image stage error", func() {
			o := domain.CaseOutcome{
				Engines:  []domain.EngineResult{{Engine: "pdftex", LogStatus: domain.StatusPass}},
				ImageErr: domain.ErrDocumentMissing,
			}
			o.Resolve()
			Expect(o.Failed).To(BeTrue())
		})
	})
})
