package orchestrator

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Status is the final state of one skill's download
type Status string

const (
	// StatusSuccess means the bundle was fetched and written
	StatusSuccess Status = "success"
	// StatusFailed means a stage failed; Reason carries the cause
	StatusFailed Status = "failed"
	// StatusSkipped means the destination already held the bundle
	StatusSkipped Status = "skipped"
)

// Outcome is the immutable per-skill result emitted by a worker
type Outcome struct {
	SkillID string
	Name    string
	Status  Status
	Reason  string
}

// Failure is one failed skill and its reason, for summary reporting
type Failure struct {
	Name   string
	Reason string
}

// Summary aggregates one run. Counts always sum to Total: every input skill
// contributes exactly one outcome.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []Failure
	Outcomes  []Outcome
	Duration  time.Duration
}

// record folds one outcome into the summary. Only the collector calls this.
func (s *Summary) record(outcome Outcome) {
	s.Outcomes = append(s.Outcomes, outcome)
	switch outcome.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Name: outcome.Name, Reason: outcome.Reason})
	}
}

// Err returns all per-skill failures as one aggregated error, or nil when
// every skill succeeded or was skipped.
func (s *Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}

	var merr *multierror.Error
	for _, f := range s.Failures {
		merr = multierror.Append(merr, errors.Errorf("%s: %s", f.Name, f.Reason))
	}
	return merr.ErrorOrNil()
}
