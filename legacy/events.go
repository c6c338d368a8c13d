package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

// ErrSkipped is the cause reported when a started test skips itself
var ErrSkipped = fmt.Errorf("%w: test skipped", ErrAssumption)

// TestEvent is one line of `go test -json` output
type TestEvent struct {
	Time        time.Time
	Action      string
	Package     string
	ImportPath  string
	Test        string
	Elapsed     float64
	Output      string
	FailedBuild string
}

// TestFailedError carries the tail of a failing test's output
type TestFailedError struct {
	Test   string
	Output string
}

func (e *TestFailedError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed", e.Test)
	}
	return fmt.Sprintf("%s failed:\n%s", e.Test, e.Output)
}

var (
	framingPrefixes = []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS:", "--- FAIL:", "--- SKIP:"}
	sourcePrefix    = regexp.MustCompile(`^\S+\.go:\d+: `)
)

func isFramingLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range framingPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// skipReason picks the message passed to t.Skip from the test's output
func skipReason(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return sourcePrefix.ReplaceAllString(line, "")
	}
	return "skipped"
}

// eventTranslator turns a test2json stream for one package into legacy
// callbacks. It is driven from a single goroutine.
type eventTranslator struct {
	pkg string
	n   *Notifier
	log log.Logger

	started  map[string]bool
	finished map[string]bool
	outputs  map[string]*lineTail

	pkgOutput     lineTail
	buildOutput   lineTail
	buildFailed   bool
	packageDone   bool
	packageFailed bool
	testFailed    bool
	testEvents    int
}

func newEventTranslator(pkg string, n *Notifier, logger log.Logger) *eventTranslator {
	return &eventTranslator{
		pkg:      pkg,
		n:        n,
		log:      logger,
		started:  make(map[string]bool),
		finished: make(map[string]bool),
		outputs:  make(map[string]*lineTail),
	}
}

func (t *eventTranslator) handleLine(line []byte) {
	text := strings.TrimSpace(string(line))
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "{") {
		t.pkgOutput.add(stripansi.Strip(text))
		return
	}
	var ev TestEvent
	if err := json.Unmarshal([]byte(text), &ev); err != nil {
		t.log.Debug("Skipping malformed test event", "line", text, "err", err)
		t.pkgOutput.add(stripansi.Strip(text))
		return
	}
	t.handle(ev)
}

func (t *eventTranslator) handle(ev TestEvent) {
	switch ev.Action {
	case ActionBuildOutput:
		t.buildOutput.add(stripansi.Strip(strings.TrimRight(ev.Output, "\n")))
		return
	case ActionBuildFail:
		t.buildFailed = true
		return
	}

	if ev.Test == "" {
		t.handlePackage(ev)
		return
	}

	t.testEvents++
	d := TestDescription(t.pkg, ev.Test)
	switch ev.Action {
	case ActionRun:
		if !t.started[ev.Test] {
			t.started[ev.Test] = true
			t.n.FireTestStarted(d)
		}
	case ActionOutput:
		text := stripansi.Strip(strings.TrimRight(ev.Output, "\n"))
		if isFramingLine(text) {
			return
		}
		t.output(ev.Test).add(text)
		t.n.FireTestOutput(d, text)
	case ActionPass:
		t.finish(d)
	case ActionFail:
		t.testFailed = true
		t.n.FireTestFailure(Failure{
			Description: d,
			Cause:       &TestFailedError{Test: ev.Test, Output: t.output(ev.Test).String()},
		})
		t.finish(d)
	case ActionSkip:
		reason := skipReason(t.output(ev.Test).lines)
		if !t.started[ev.Test] {
			t.finished[ev.Test] = true
			t.n.FireTestIgnored(d, reason)
			return
		}
		t.n.FireTestAssumptionFailure(Failure{Description: d, Cause: fmt.Errorf("%w: %s", ErrSkipped, reason)})
		t.finish(d)
	}
}

func (t *eventTranslator) handlePackage(ev TestEvent) {
	switch ev.Action {
	case ActionOutput:
		t.pkgOutput.add(stripansi.Strip(strings.TrimRight(ev.Output, "\n")))
	case ActionPass, ActionSkip:
		t.packageDone = true
	case ActionFail:
		t.packageDone = true
		t.packageFailed = true
		if ev.FailedBuild != "" {
			t.buildFailed = true
		}
	}
}

func (t *eventTranslator) output(test string) *lineTail {
	out, ok := t.outputs[test]
	if !ok {
		out = &lineTail{}
		t.outputs[test] = out
	}
	return out
}

func (t *eventTranslator) finish(d Description) {
	if t.finished[d.Test] {
		return
	}
	t.finished[d.Test] = true
	t.n.FireTestFinished(d)
}

// unfinished returns started tests that never reported a terminal action
func (t *eventTranslator) unfinished() []string {
	var out []string
	for test := range t.started {
		if !t.finished[test] {
			out = append(out, test)
		}
	}
	return out
}

// buildError describes why the package could not be built, if it could not
func (t *eventTranslator) buildError(stderr string) error {
	if !t.buildFailed && !(t.packageFailed && t.testEvents == 0) {
		return nil
	}
	msg := t.buildOutput.String()
	if msg == "" {
		msg = t.pkgOutput.String()
	}
	if msg == "" {
		msg = stderr
	}
	return fmt.Errorf("%w: %s: %s", ErrBuildFailed, t.pkg, msg)
}

// packageError describes a package that failed outside of any single test,
// such as a -timeout panic or a TestMain exiting non-zero. Tests still open
// when the package failed are listed.
func (t *eventTranslator) packageError(stderr string) error {
	if !t.packageFailed {
		return nil
	}
	open := t.unfinished()
	if t.testFailed && len(open) == 0 {
		return nil
	}
	msg := t.pkgOutput.String()
	if msg == "" {
		msg = stderr
	}
	if len(open) == 0 {
		return fmt.Errorf("%w: %s: %s", ErrPackageFailed, t.pkg, msg)
	}
	sort.Strings(open)
	return fmt.Errorf("%w: %s: unfinished tests %s: %s", ErrPackageFailed, t.pkg, strings.Join(open, ", "), msg)
}

var (
	// ErrBuildFailed is returned when a package does not compile
	ErrBuildFailed = errors.New("build failed")
	// ErrPackageFailed is returned when go test fails a package without
	// failing every test responsible for it
	ErrPackageFailed = errors.New("package failed")
)
