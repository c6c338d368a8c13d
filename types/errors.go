package types

import "errors"

// ErrContractViolation is raised (as a panic) when a listener receives events
// that the lifecycle protocol forbids, such as finishing an identifier that was
// never started or registering one twice.
var ErrContractViolation = errors.New("listener contract violation")
