package listener

import (
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
)

var _ RunListener = (*LoggingListener)(nil)

// LoggingListener writes every lifecycle event to a structured logger.
// Containers and report entries are logged at debug level.
type LoggingListener struct {
	log log.Logger
}

// NewLoggingListener creates a listener logging through logger
func NewLoggingListener(logger log.Logger) *LoggingListener {
	if logger == nil {
		logger = log.New()
	}
	return &LoggingListener{log: logger.New("component", "lifecycle")}
}

func (l *LoggingListener) RunStarted(label string) {
	l.log.Info("Run started", "plan", label)
}

func (l *LoggingListener) RunFinished() {
	l.log.Info("Run finished")
}

func (l *LoggingListener) ExecutionStarted(id types.Identifier) {
	if id.IsContainer() {
		l.log.Debug("Container started", "id", id.UniqueID, "name", id.DisplayName)
		return
	}
	l.log.Info("Test started", "id", id.UniqueID, "name", id.DisplayName)
}

func (l *LoggingListener) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	ctx := []interface{}{"id", id.UniqueID, "name", id.DisplayName, "status", result.Status}
	if result.Cause != nil {
		ctx = append(ctx, "cause", result.Cause)
	}
	switch {
	case !result.IsSuccessful():
		l.log.Warn("Execution finished", ctx...)
	case id.IsContainer():
		l.log.Debug("Execution finished", ctx...)
	default:
		l.log.Info("Execution finished", ctx...)
	}
}

func (l *LoggingListener) ExecutionSkipped(id types.Identifier, reason string) {
	l.log.Info("Execution skipped", "id", id.UniqueID, "name", id.DisplayName, "reason", reason)
}

func (l *LoggingListener) ReportingEntryPublished(id types.Identifier, entry types.ReportEntry) {
	l.log.Debug("Report entry published", "id", id.UniqueID, "entry", entry.Map())
}
