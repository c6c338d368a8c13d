// Package logging persists the lifecycle events of a run to disk.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/metrics"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
)

const (
	RunDirectoryPrefix = "testrun-"
	EventsFilename     = "events.jsonl"
	TreeFilename       = "tree.txt"
)

// Event actions written to the events file
const (
	ActionRunStarted  = "run-started"
	ActionRunFinished = "run-finished"
	ActionStarted     = "started"
	ActionFinished    = "finished"
	ActionSkipped     = "skipped"
	ActionReport      = "report"
)

var _ listener.RunListener = (*EventLog)(nil)

// Event is one line of the events file
type Event struct {
	Time   time.Time         `json:"time"`
	Action string            `json:"action"`
	Label  string            `json:"label,omitempty"`
	ID     string            `json:"id,omitempty"`
	Parent string            `json:"parent,omitempty"`
	Name   string            `json:"name,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Status string            `json:"status,omitempty"`
	Cause  string            `json:"cause,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Report map[string]string `json:"report,omitempty"`
}

// EventLog is a RunListener writing every event as a JSON line to
// <baseDir>/testrun-<runID>/events.jsonl. The file is closed on RunFinished.
type EventLog struct {
	dir    string
	runID  string
	log    log.Logger
	now    func() time.Time
	events *AsyncFile

	mu  sync.Mutex
	err error
}

// NewEventLog creates the run directory and opens the events file
func NewEventLog(baseDir, runID string, logger log.Logger) (*EventLog, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}

	dir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	events, err := NewAsyncFile(filepath.Join(dir, EventsFilename))
	if err != nil {
		return nil, err
	}
	return &EventLog{
		dir:    dir,
		runID:  runID,
		log:    logger,
		now:    time.Now,
		events: events,
	}, nil
}

// Dir returns the run directory
func (e *EventLog) Dir() string {
	return e.dir
}

// Err returns the first error hit while writing events
func (e *EventLog) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *EventLog) fail(err error) {
	e.mu.Lock()
	first := e.err == nil
	if first {
		e.err = err
	}
	e.mu.Unlock()

	if first {
		e.log.Warn("Failed to write event log", "dir", e.dir, "err", err)
		metrics.RecordErrorDetails("event log write failed", err)
	}
}

func (e *EventLog) write(ev Event) {
	ev.Time = e.now()
	data, err := json.Marshal(ev)
	if err != nil {
		e.fail(fmt.Errorf("encoding %s event: %w", ev.Action, err))
		return
	}
	if _, err := e.events.Write(append(data, '\n')); err != nil {
		e.fail(err)
	}
}

func identify(ev Event, id types.Identifier) Event {
	ev.ID = id.UniqueID
	ev.Parent = id.ParentID
	ev.Name = id.DisplayName
	ev.Kind = id.Kind.String()
	return ev
}

func (e *EventLog) RunStarted(label string) {
	e.write(Event{Action: ActionRunStarted, Label: label})
}

// RunFinished writes the closing event and flushes the file
func (e *EventLog) RunFinished() {
	e.write(Event{Action: ActionRunFinished})
	if err := e.Close(); err != nil {
		e.fail(err)
	}
}

func (e *EventLog) ExecutionStarted(id types.Identifier) {
	e.write(identify(Event{Action: ActionStarted}, id))
}

func (e *EventLog) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	ev := identify(Event{Action: ActionFinished, Status: result.Status.String()}, id)
	if result.Cause != nil {
		ev.Cause = result.Cause.Error()
	}
	e.write(ev)
}

func (e *EventLog) ExecutionSkipped(id types.Identifier, reason string) {
	e.write(identify(Event{Action: ActionSkipped, Reason: reason}, id))
}

func (e *EventLog) ReportingEntryPublished(id types.Identifier, entry types.ReportEntry) {
	e.write(identify(Event{Action: ActionReport, Report: entry.Map()}, id))
}

// WriteTree stores a rendered execution tree next to the events file
func (e *EventLog) WriteTree(rendered string) error {
	path := filepath.Join(e.dir, TreeFilename)
	if err := os.WriteFile(path, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Close flushes and closes the events file. Safe to call more than once.
func (e *EventLog) Close() error {
	return e.events.Close()
}
