// Package listener defines the lifecycle event contract shared by the runner
// adapter, the engine and every consumer of execution events.
package listener

import (
	"github.com/ethereum-optimism/infra/op-junction/types"
)

// ExecutionListener receives lifecycle events for identifiers of a TestPlan.
//
// For every identifier an implementation sees either ExecutionStarted followed
// by ExecutionFinished, or a single ExecutionSkipped. Report entries may arrive
// at any point after the identifier was started, including after it finished.
type ExecutionListener interface {
	ExecutionStarted(id types.Identifier)
	ExecutionFinished(id types.Identifier, result types.ExecutionResult)
	ExecutionSkipped(id types.Identifier, reason string)
	ReportingEntryPublished(id types.Identifier, entry types.ReportEntry)
}

// RunListener additionally observes the bookends of a whole run
type RunListener interface {
	ExecutionListener
	RunStarted(label string)
	RunFinished()
}

// Noop implements RunListener and ignores every event. Embed it to implement
// only the callbacks you care about.
type Noop struct{}

func (Noop) RunStarted(string)                                            {}
func (Noop) RunFinished()                                                 {}
func (Noop) ExecutionStarted(types.Identifier)                            {}
func (Noop) ExecutionFinished(types.Identifier, types.ExecutionResult)    {}
func (Noop) ExecutionSkipped(types.Identifier, string)                    {}
func (Noop) ReportingEntryPublished(types.Identifier, types.ReportEntry) {}

// AsRunListener lifts an ExecutionListener to a RunListener. Run bookends are
// forwarded when the listener implements them and dropped otherwise.
func AsRunListener(l ExecutionListener) RunListener {
	if rl, ok := l.(RunListener); ok {
		return rl
	}
	return runListenerShim{ExecutionListener: l}
}

type runListenerShim struct {
	ExecutionListener
}

func (runListenerShim) RunStarted(string) {}
func (runListenerShim) RunFinished()      {}
