package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/frherrer/texregress/internal/config"
	"github.com/frherrer/texregress/internal/domain"
	"github.com/frherrer/texregress/internal/driver"
	"github.com/frherrer/texregress/internal/orchestrator"
	"github.com/frherrer/texregress/internal/scanner"
	"github.com/frherrer/texregress/internal/toolchain"
)

// echoCompiler writes a log whose test region is the test file's content.
type echoCompiler struct {
	mu      sync.Mutex
	engines []string
}

func (c *echoCompiler) Compile(_ context.Context, workDir, engine, input string) (toolchain.Result, error) {
	c.mu.Lock()
	c.engines = append(c.engines, engine)
	c.mu.Unlock()

	body, err := os.ReadFile(filepath.Join(workDir, input))
	if err != nil {
		return toolchain.Result{}, err
	}
	name := strings.TrimSuffix(input, filepath.Ext(input))
	raw := "START-TEST-LOG\n" + string(body) + "END-TEST-LOG\n"
	return toolchain.Result{OK: true}, os.WriteFile(filepath.Join(workDir, name+".log"), []byte(raw), 0644)
}

func write(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

var _ = Describe("Orchestrator", func() {
	var (
		root     string
		cfg      *config.Config
		compiler *echoCompiler
		resolved []config.Options
		out      *bytes.Buffer
		log      *logrus.Logger
	)

	factory := func(opts config.Options, _ logrus.FieldLogger) (driver.Tools, error) {
		resolved = append(resolved, opts)
		return driver.Tools{Compiler: compiler}, nil
	}

	newOrchestrator := func() *orchestrator.DefaultOrchestrator {
		return orchestrator.NewOrchestrator(cfg, scanner.NewScanner(false), factory, out, log)
	}

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		cfg = config.DefaultConfig()
		cfg.BuildDir = filepath.Join(root, "build")
		cfg.TestfileDir = filepath.Join(root, "testfiles")
		cfg.SupportDir = filepath.Join(root, "support")
		cfg.SourceDirs = config.StringList{root}
		cfg.Engines = config.StringList{"pdftex"}
		cfg.Raster.Enabled = false

		write(filepath.Join(root, "demo.sty"), "\\ProvidesPackage{demo}\n")
		write(filepath.Join(root, "notes.txt"), "not a source\n")
		write(filepath.Join(cfg.SupportDir, "helpers.tex"), "% helpers\n")
		write(filepath.Join(cfg.TestfileDir, "alpha.lvt"), "alpha\n")
		write(filepath.Join(cfg.TestfileDir, "beta.lvt"), "beta\n")

		compiler = &echoCompiler{}
		resolved = nil
		out = &bytes.Buffer{}
		log = logrus.New()
		log.SetOutput(io.Discard)
	})

	It("should run the default configuration and create baselines", func() {
		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{Mode: domain.ModeCheck})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.RunID).ToNot(BeEmpty())
		Expect(summary.Failures).To(Equal(0))
		Expect(summary.Outcomes).To(HaveLen(2))
		Expect(summary.Outcomes[0].Case.Name).To(Equal("alpha"))
		Expect(summary.Outcomes[1].Case.Name).To(Equal("beta"))

		runDir := filepath.Join(cfg.BuildDir, "test")
		Expect(filepath.Join(runDir, "demo.sty")).To(BeAnExistingFile())
		Expect(filepath.Join(runDir, "helpers.tex")).To(BeAnExistingFile())
		Expect(filepath.Join(runDir, "notes.txt")).ToNot(BeAnExistingFile())
		Expect(filepath.Join(cfg.TestfileDir, "alpha.nlog")).To(BeAnExistingFile())

		Expect(out.String()).To(ContainSubstring("Running checks on configuration build (2 test(s), check)"))
		Expect(out.String()).To(ContainSubstring("pdftex:created"))
	})

	It("should count every failed case once", func() {
		write(filepath.Join(cfg.TestfileDir, "alpha.nlog"), "something else\n")
		write(filepath.Join(cfg.TestfileDir, "beta.nlog"), "beta\n")

		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{Mode: domain.ModeCheck})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Failures).To(Equal(1))
		Expect(summary.Outcomes[0].Failed).To(BeTrue())
		Expect(summary.Outcomes[1].Failed).To(BeFalse())
		Expect(out.String()).To(MatchRegexp(`alpha\s+FAIL\s+pdftex:fail`))
	})

	It("should sum failures across configurations", func() {
		cfg.Engines = config.StringList{"pdftex", "xetex"}
		cfg.Configurations = []config.Configuration{
			{Name: "xe", Setup: config.Setup{Engines: config.StringList{"xetex"}}},
		}
		write(filepath.Join(cfg.TestfileDir, "alpha.nlog"), "something else\n")

		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:           domain.ModeCheck,
			Configurations: []string{"build", "xe"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Outcomes).To(HaveLen(4))
		Expect(summary.Failures).To(Equal(2))
	})

	It("should skip unknown configurations and run the rest", func() {
		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:           domain.ModeCheck,
			Configurations: []string{"missing", "build"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Skipped).To(ConsistOf("missing"))
		Expect(summary.Outcomes).To(HaveLen(2))
	})

	It("should apply the base setup then the configuration's own", func() {
		cfg.Engines = config.StringList{"pdftex", "xetex", "luatex"}
		cfg.Configurations = []config.Configuration{
			{Name: "fonts", Setup: config.Setup{Engines: config.StringList{"xetex", "luatex"}, TestfileDir: filepath.Join(root, "fonts")}},
			{Name: "fonts-lua", Base: "fonts", Setup: config.Setup{Engines: config.StringList{"luatex"}}},
		}
		write(filepath.Join(root, "fonts", "gamma.lvt"), "gamma\n")

		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:           domain.ModeCheck,
			Configurations: []string{"fonts-lua"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[0].Engines).To(Equal([]string{"luatex"}))
		Expect(resolved[0].RunDir).To(Equal(filepath.Join(cfg.BuildDir, "test-fonts-lua")))
		Expect(summary.Outcomes).To(HaveLen(1))
		Expect(summary.Outcomes[0].Case.Name).To(Equal("gamma"))
		Expect(compiler.engines).To(Equal([]string{"luatex"}))
	})

	It("should replace the override file with the configuration-qualified one", func() {
		cfg.Configurations = []config.Configuration{{Name: "strict"}}
		write(filepath.Join(cfg.TestfileDir, "regression-test.cfg"), "% default\n")
		write(filepath.Join(cfg.TestfileDir, "regression-test-strict.cfg"), "% strict\n")

		_, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:           domain.ModeCheck,
			Configurations: []string{"build", "strict"},
		})
		Expect(err).ToNot(HaveOccurred())

		Expect(os.ReadFile(filepath.Join(cfg.BuildDir, "test", "regression-test.cfg"))).To(Equal([]byte("% default\n")))
		Expect(os.ReadFile(filepath.Join(cfg.BuildDir, "test-strict", "regression-test.cfg"))).To(Equal([]byte("% strict\n")))
		Expect(filepath.Join(cfg.BuildDir, "test-strict", "regression-test-strict.cfg")).ToNot(BeAnExistingFile())
	})

	It("should run only the named test cases", func() {
		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:  domain.ModeCheck,
			Names: []string{"beta"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Outcomes).To(HaveLen(1))
		Expect(summary.Outcomes[0].Case.Name).To(Equal("beta"))
	})

	It("should restrict the run to the requested engines", func() {
		cfg.Engines = config.StringList{"pdftex", "xetex"}
		_, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:    domain.ModeCheck,
			Engines: []string{"xetex"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(compiler.engines).To(Equal([]string{"xetex", "xetex"}))
	})

	It("should abort on configuration errors before running any test", func() {
		cfg.Configurations = []config.Configuration{
			{Name: "ctx", Setup: config.Setup{Engines: config.StringList{"context"}}},
		}
		_, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{
			Mode:           domain.ModeCheck,
			Configurations: []string{"build", "ctx"},
		})
		Expect(errors.Is(err, domain.ErrUnknownEngine)).To(BeTrue())
		Expect(compiler.engines).To(BeEmpty())
		Expect(cfg.BuildDir).ToNot(BeADirectory())
	})

	It("should refuse test names that collide with page image keys", func() {
		cfg.Raster.Enabled = true
		write(filepath.Join(cfg.TestfileDir, "alpha-2.lvt"), "alpha two\n")

		_, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{Mode: domain.ModeCheck})
		Expect(errors.Is(err, domain.ErrNameCollision)).To(BeTrue())
		Expect(compiler.engines).To(BeEmpty())
		Expect(filepath.Join(cfg.TestfileDir, "alpha.nlog")).ToNot(BeAnExistingFile())
	})

	It("should report an empty test-file directory without failing", func() {
		cfg.TestfileDir = filepath.Join(root, "empty")
		summary, err := newOrchestrator().Run(context.Background(), orchestrator.RunOptions{Mode: domain.ModeCheck})
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Outcomes).To(BeEmpty())
		Expect(summary.Failures).To(Equal(0))
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newOrchestrator().Run(ctx, orchestrator.RunOptions{Mode: domain.ModeCheck})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("Tally", func() {
	It("should count concurrent increments", func() {
		var t orchestrator.Tally
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.Inc()
			}()
		}
		wg.Wait()
		Expect(t.Value()).To(Equal(50))
	})
})

var _ = Describe("StatusLine", func() {
	It("should list every stage", func() {
		line := orchestrator.StatusLine(domain.CaseOutcome{
			Case: domain.TestCase{Name: "alpha"},
			Engines: []domain.EngineResult{
				{Engine: "pdftex", LogStatus: domain.StatusPass},
				{Engine: "xetex", LogStatus: domain.StatusFail},
			},
			ImageEngine: "pdftex",
			Images:      []domain.ImageResult{{Key: "alpha", Status: domain.StatusCreated}},
			Failed:      true,
		})
		Expect(line).To(MatchRegexp(`^  alpha\s+FAIL  pdftex:pass xetex:fail image:created$`))
	})

	It("should show image errors", func() {
		line := orchestrator.StatusLine(domain.CaseOutcome{
			Case:        domain.TestCase{Name: "beta"},
			ImageEngine: "pdftex",
			ImageErr:    domain.ErrNoPages,
			Failed:      true,
		})
		Expect(line).To(HaveSuffix("image:error"))
	})
})
