package output

import (
	"time"

	"github.com/google/uuid"

	"iacsift/internal/verdict"
)

// Report is everything one scan produced
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Version     string            `json:"version"`
	Files       []string          `json:"files"`
	InputErrors map[string]string `json:"input_errors,omitempty"`
	Summary     verdict.Summary   `json:"summary"`
	Verdicts    []verdict.Verdict `json:"verdicts"`
}

// NewReport summarizes verdicts under a fresh run ID
func NewReport(version string, files []string, verdicts []verdict.Verdict, inputErrors map[string]error) Report {
	r := Report{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Version:     version,
		Files:       files,
		Summary:     verdict.Summarize(verdicts),
		Verdicts:    verdicts,
	}
	if r.Files == nil {
		r.Files = []string{}
	}
	if r.Verdicts == nil {
		r.Verdicts = []verdict.Verdict{}
	}
	if len(inputErrors) > 0 {
		r.InputErrors = make(map[string]string, len(inputErrors))
		for path, err := range inputErrors {
			r.InputErrors[path] = err.Error()
		}
	}
	return r
}

// ShortID is the first block of the run ID
func (r Report) ShortID() string {
	if len(r.RunID) >= 8 {
		return r.RunID[:8]
	}
	return r.RunID
}
