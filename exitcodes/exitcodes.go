// Package exitcodes defines the process exit codes of op-junction.
package exitcodes

// A run exits with TestFailure when any test or package failed or aborted.
// Configuration problems, unreadable plans and panics exit with RuntimeErr.
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
