package destroy

import (
	"context"

	"github.com/ecstack/ecstack/internal/provisioning"
)

// Step is one teardown action. Steps run in reverse dependency order.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepResult records the outcome of one teardown step.
type StepResult struct {
	Step  string `json:"step"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Report is the consolidated outcome of a teardown. OK reflects that the
// sequence ran to completion, not that every step succeeded; individual
// failures are in Steps.
type Report struct {
	OK      bool         `json:"ok"`
	Message string       `json:"message"`
	Steps   []StepResult `json:"steps"`
}

// Failed returns the names of the steps that reported an error.
func (r *Report) Failed() []string {
	var failed []string
	for _, s := range r.Steps {
		if !s.OK {
			failed = append(failed, s.Step)
		}
	}
	return failed
}

// Run executes every step regardless of prior failures. Each error is
// downgraded to a warning and recorded, so the sequence is guaranteed to
// reach its end and report a summary.
func Run(ctx context.Context, obs provisioning.Observer, steps []Step) *Report {
	report := &Report{OK: true, Message: "deleted (best-effort)"}
	for _, step := range steps {
		obs.Printf("[teardown] %s...", step.Name)
		result := StepResult{Step: step.Name, OK: true}
		if err := step.Run(ctx); err != nil {
			obs.Warnf("[teardown] %s failed: %v", step.Name, err)
			result.OK = false
			result.Error = err.Error()
		}
		report.Steps = append(report.Steps, result)
	}
	if failed := report.Failed(); len(failed) > 0 {
		obs.Warnf("[teardown] completed with failed steps: %v", failed)
	}
	return report
}
