package metrics

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/types"
)

var _ listener.RunListener = (*Listener)(nil)

const (
	RunResultPass = "pass"
	RunResultFail = "fail"
)

// Listener exports lifecycle events as prometheus metrics for one run
type Listener struct {
	runID string

	mu      sync.Mutex
	plan    string
	started time.Time
	total   int
	failed  int
}

// NewListener creates a metrics listener labelling everything with runID
func NewListener(runID string) *Listener {
	return &Listener{runID: runID}
}

func (l *Listener) RunStarted(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plan = label
	l.started = time.Now()
	l.total = 0
	l.failed = 0
}

func (l *Listener) RunFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := RunResultPass
	if l.failed > 0 {
		result = RunResultFail
	}
	RecordRun(l.plan, l.runID, result, l.total, l.failed, time.Since(l.started))
}

func (l *Listener) ExecutionStarted(types.Identifier) {}

func (l *Listener) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	RecordExecution(l.runID, id.Kind, result.Status)
	if !id.IsTest() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	if !result.IsSuccessful() {
		l.failed++
	}
}

func (l *Listener) ExecutionSkipped(id types.Identifier, _ string) {
	RecordSkipped(l.runID, id.Kind)
	if !id.IsTest() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
}

func (l *Listener) ReportingEntryPublished(types.Identifier, types.ReportEntry) {
	RecordReportEntry(l.runID)
}
