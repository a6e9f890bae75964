package orchestrator

import (
	"fmt"
	"strings"

	"github.com/frherrer/texregress/internal/domain"
)

// StatusLine renders the per-stage result of one test case, e.g.
//
//	  alpha                          FAIL  pdftex:pass xetex:fail image:pass
func StatusLine(o domain.CaseOutcome) string {
	verdict := "ok"
	if o.Failed {
		verdict = "FAIL"
	}

	var stages []string
	for _, r := range o.Engines {
		stages = append(stages, fmt.Sprintf("%s:%s", r.Engine, statusText(r.LogStatus)))
	}
	if o.ImageEngine != "" {
		stages = append(stages, "image:"+imageStatus(o))
	}

	return fmt.Sprintf("  %-30s %-4s  %s", o.Case.Name, verdict, strings.Join(stages, " "))
}

func imageStatus(o domain.CaseOutcome) string {
	if o.ImageErr != nil {
		return string(domain.StatusError)
	}
	status := domain.StatusPass
	for _, img := range o.Images {
		switch {
		case img.Status.Failed():
			return string(img.Status)
		case img.Status == domain.StatusCreated:
			status = domain.StatusCreated
		}
	}
	if len(o.Images) == 0 {
		return "skipped"
	}
	return string(status)
}

func statusText(s domain.Status) string {
	if s == domain.StatusPending {
		return "skipped"
	}
	return string(s)
}
