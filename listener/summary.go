package listener

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/types"
)

var _ RunListener = (*SummaryListener)(nil)

// Failure describes one test that did not finish successfully
type Failure struct {
	ID     types.Identifier
	Result types.ExecutionResult
}

// Summary holds the counters gathered over one run. Only test-kind identifiers
// are counted; containers are reported through ContainerFailures.
type Summary struct {
	Label             string
	Started           time.Time
	Finished          time.Time
	Total             int
	Passed            int
	Failed            int
	Aborted           int
	Skipped           int
	ReportEntries     int
	Failures          []Failure
	ContainerFailures []Failure
}

// Duration returns the wall clock time of the run
func (s Summary) Duration() time.Duration {
	if s.Started.IsZero() || s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// HasFailures reports whether any test or container failed. Aborted tests
// (failed assumptions, tests left running by their runner) are listed in
// Failures but do not fail the run.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || len(s.ContainerFailures) > 0
}

// PassRate returns the percentage of executed tests that passed
func (s Summary) PassRate() float64 {
	executed := s.Total - s.Skipped
	if executed <= 0 {
		return 0
	}
	return float64(s.Passed) / float64(executed) * 100
}

// SummaryListener aggregates run statistics from the event stream
type SummaryListener struct {
	mu      sync.Mutex
	summary Summary
	now     func() time.Time
}

// NewSummaryListener creates an empty summary listener
func NewSummaryListener() *SummaryListener {
	return &SummaryListener{now: time.Now}
}

// Summary returns a copy of the statistics gathered so far
func (s *SummaryListener) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.summary
	out.Failures = append([]Failure(nil), s.summary.Failures...)
	out.ContainerFailures = append([]Failure(nil), s.summary.ContainerFailures...)
	return out
}

func (s *SummaryListener) RunStarted(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = Summary{Label: label, Started: s.now()}
}

func (s *SummaryListener) RunFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Finished = s.now()
}

func (s *SummaryListener) ExecutionStarted(types.Identifier) {}

func (s *SummaryListener) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !id.IsTest() {
		if !result.IsSuccessful() {
			s.summary.ContainerFailures = append(s.summary.ContainerFailures, Failure{ID: id, Result: result})
		}
		return
	}

	s.summary.Total++
	switch result.Status {
	case types.StatusSuccessful:
		s.summary.Passed++
	case types.StatusFailed:
		s.summary.Failed++
		s.summary.Failures = append(s.summary.Failures, Failure{ID: id, Result: result})
	case types.StatusAborted:
		s.summary.Aborted++
		s.summary.Failures = append(s.summary.Failures, Failure{ID: id, Result: result})
	}
}

func (s *SummaryListener) ExecutionSkipped(id types.Identifier, _ string) {
	if !id.IsTest() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Total++
	s.summary.Skipped++
}

func (s *SummaryListener) ReportingEntryPublished(types.Identifier, types.ReportEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.ReportEntries++
}
