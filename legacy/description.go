// Package legacy models pull-based test runners: a runner is driven to
// completion with a Notifier and reports progress through Listener callbacks.
//
// The main components are:
//   - Runner: anything that can run with a Notifier and fail with an error
//   - Notifier / Listener: the callback surface runners report through
//   - Core: drives a Runner and brackets it with run started/finished callbacks
//   - GoTestRunner: runs one package with `go test -json` and translates test2json events
//   - FuncRunner: runs in-process test functions
package legacy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAssumption marks an error returned by a test as a failed precondition
// rather than a failure. Wrap it to have the test reported as aborted.
var ErrAssumption = errors.New("assumption failed")

// Description names a test or a suite the way a legacy runner sees it.
// A description with an empty Test names the suite (package) itself.
type Description struct {
	Package string
	Test    string // Slash separated for nested tests, e.g. "TestParent/case_1"
}

// SuiteDescription returns the description of a whole package
func SuiteDescription(pkg string) Description {
	return Description{Package: pkg}
}

// TestDescription returns the description of one test in a package
func TestDescription(pkg, test string) Description {
	return Description{Package: pkg, Test: test}
}

// IsSuite reports whether the description names the package itself
func (d Description) IsSuite() bool {
	return d.Test == ""
}

// Key returns the lookup key used to resolve the description against a plan:
// "<package>" for suites and "<package>::<test>" for tests.
func (d Description) Key() string {
	if d.Test == "" {
		return d.Package
	}
	return d.Package + "::" + d.Test
}

// Parent returns the enclosing description: the parent test for nested tests,
// the suite for top-level tests. Suites have no parent.
func (d Description) Parent() (Description, bool) {
	if d.IsSuite() {
		return Description{}, false
	}
	if idx := strings.LastIndex(d.Test, "/"); idx >= 0 {
		return Description{Package: d.Package, Test: d.Test[:idx]}, true
	}
	return SuiteDescription(d.Package), true
}

// DisplayName returns the last element of the test path, or the package
func (d Description) DisplayName() string {
	if d.IsSuite() {
		return d.Package
	}
	if idx := strings.LastIndex(d.Test, "/"); idx >= 0 {
		return d.Test[idx+1:]
	}
	return d.Test
}

// Depth returns the nesting depth of the test (0 for suites and top-level tests)
func (d Description) Depth() int {
	if d.IsSuite() {
		return 0
	}
	return strings.Count(d.Test, "/")
}

func (d Description) String() string {
	return d.Key()
}

// Failure is reported when a test fails or one of its assumptions does not hold
type Failure struct {
	Description Description
	Cause       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Description, f.Cause)
}

func (f Failure) Unwrap() error {
	return f.Cause
}

// Result summarizes one legacy run as counted by the Notifier
type Result struct {
	RunCount               int
	FailureCount           int
	AssumptionFailureCount int
	IgnoreCount            int
	Duration               time.Duration
}

// WasSuccessful reports whether no test failed
func (r Result) WasSuccessful() bool {
	return r.FailureCount == 0
}
