package junction

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-junction/exitcodes"
	"github.com/ethereum-optimism/infra/op-junction/listener"
)

// RuntimeError is an operational failure (bad config, unreadable plan, a
// panicking listener) that exits with code 2
type RuntimeError struct {
	Err error
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a completed run with failed tests or packages
// (exit code 1)
type TestFailureError struct {
	RunID   string
	Summary listener.Summary
}

func NewTestFailureError(runID string, summary listener.Summary) *TestFailureError {
	return &TestFailureError{RunID: runID, Summary: summary}
}

func (e *TestFailureError) Error() string {
	s := e.Summary
	return fmt.Sprintf("test failure: run %s: %d of %d tests failed, %d packages failed",
		e.RunID, s.Failed, s.Total, len(s.ContainerFailures))
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps an error returned by the lifecycle to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.TestFailure
	}
}
