package legacy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
)

var _ Runner = (*GoTestRunner)(nil)

// CmdBuilder creates the command for one go test invocation and a cleanup func
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// IgnoredTest is a test that must be reported as ignored instead of run
type IgnoredTest struct {
	Name   string
	Reason string
}

// GoTestConfig configures a GoTestRunner
type GoTestConfig struct {
	Package  string        // Import path or relative package pattern, e.g. "./pkg/foo"
	WorkDir  string        // Directory go test runs in
	GoBinary string        // Defaults to "go"
	Tests    []string      // Top-level tests to run. Empty runs the whole package.
	Ignored  []IgnoredTest // Reported as ignored and excluded from the run
	Timeout  time.Duration // Passed as -timeout when positive
	Env      []string      // Appended to the process environment
	Log      log.Logger

	CmdBuilder CmdBuilder // Overrides process creation, mainly for tests
}

// GoTestRunner runs a single package with `go test -json` and reports the
// resulting test2json stream as legacy callbacks.
type GoTestRunner struct {
	cfg GoTestConfig
	log log.Logger
}

// NewGoTestRunner validates cfg and creates a runner
func NewGoTestRunner(cfg GoTestConfig) (*GoTestRunner, error) {
	if cfg.Package == "" {
		return nil, fmt.Errorf("package cannot be empty")
	}
	if err := checkTopLevel(cfg); err != nil {
		return nil, err
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = DefaultGoBinary
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = defaultCmdBuilder(cfg.WorkDir, cfg.Env)
	}
	return &GoTestRunner{
		cfg: cfg,
		log: cfg.Log.New("component", "go-test", "package", cfg.Package),
	}, nil
}

func (r *GoTestRunner) Description() Description {
	return SuiteDescription(r.cfg.Package)
}

// Run executes the package and blocks until the process exits. Test failures
// are reported through n; an error is returned when the package could not be
// built, failed outside of its tests or the process broke down.
func (r *GoTestRunner) Run(ctx context.Context, n *Notifier) error {
	for _, ignored := range r.cfg.Ignored {
		n.FireTestIgnored(TestDescription(r.cfg.Package, ignored.Name), ignored.Reason)
	}

	args, runnable := r.buildTestArgs()
	if !runnable {
		r.log.Info("All selected tests are ignored, not invoking go test")
		return nil
	}

	cmd, cleanup := r.cfg.CmdBuilder(ctx, r.cfg.GoBinary, args...)
	defer cleanup()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr := newTailBuffer(defaultTailBytes)
	cmd.Stderr = stderr

	r.log.Info("Running go test", "args", strings.Join(args, " "))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.cfg.GoBinary, err)
	}

	translator := newEventTranslator(r.cfg.Package, n, r.log)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		translator.handleLine(scanner.Bytes())
	}
	scanErr := scanner.Err()
	runErr := cmd.Wait()
	r.log.Debug("go test exited", "duration", time.Since(start), "err", runErr)

	if ctx.Err() != nil {
		return fmt.Errorf("go test %s interrupted: %w", r.cfg.Package, ctx.Err())
	}
	if scanErr != nil {
		return fmt.Errorf("failed to read test output: %w", scanErr)
	}
	if err := translator.buildError(stderr.String()); err != nil {
		return err
	}

	if runErr != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(runErr, &exitErr) {
			return fmt.Errorf("failed to run test: %w", runErr)
		}
		switch code := exitErr.ExitCode(); {
		case code == 1 && translator.packageFailed:
			// Expected test failure, already reported per test
		case code == 2:
			return fmt.Errorf("%w: %s: %s", ErrBuildFailed, r.cfg.Package, stderr.String())
		default:
			return fmt.Errorf("test execution failed with exit code %d: %s", code, stderr.String())
		}
	}

	if translator.testEvents == 0 && !translator.packageDone {
		return fmt.Errorf("go test %s produced no test events: %s", r.cfg.Package, stderr.String())
	}
	if err := translator.packageError(stderr.String()); err != nil {
		return err
	}
	if dangling := translator.unfinished(); len(dangling) > 0 {
		sort.Strings(dangling)
		r.log.Warn("Tests did not report a result", "tests", dangling)
	}
	return nil
}

// buildTestArgs returns the go test arguments and whether anything is left to run
func (r *GoTestRunner) buildTestArgs() ([]string, bool) {
	args := []string{TestCommand, JSONFlag, VerboseFlag, CountFlag, DisableCacheCount}
	if r.cfg.Timeout > 0 {
		args = append(args, TimeoutFlag, r.cfg.Timeout.String())
	}
	args = append(args, r.cfg.Package)

	ignored := make(map[string]bool, len(r.cfg.Ignored))
	for _, t := range r.cfg.Ignored {
		ignored[t.Name] = true
	}

	var selected []string
	for _, t := range r.cfg.Tests {
		if !ignored[t] {
			selected = append(selected, regexp.QuoteMeta(t))
		}
	}
	switch {
	case len(selected) > 0:
		args = append(args, RunFlag, fmt.Sprintf("^(%s)$", strings.Join(selected, "|")))
	case len(r.cfg.Tests) > 0:
		return args, false
	case len(ignored) > 0:
		args = append(args, "-skip", fmt.Sprintf("^(%s)$", joinQuoted(r.cfg.Ignored)))
	}
	return args, true
}

// checkTopLevel rejects subtest names. go test only splits -run and -skip
// patterns on a '/' outside of parentheses, so "^(TestA/sub)$" never matches.
func checkTopLevel(cfg GoTestConfig) error {
	for _, t := range cfg.Tests {
		if strings.Contains(t, "/") {
			return fmt.Errorf("%w: %s", ErrSubtestSelector, t)
		}
	}
	for _, t := range cfg.Ignored {
		if strings.Contains(t.Name, "/") {
			return fmt.Errorf("%w: %s", ErrSubtestSelector, t.Name)
		}
	}
	return nil
}

// ErrSubtestSelector is returned when a subtest is selected or ignored by name
var ErrSubtestSelector = errors.New("only top-level tests can be selected")

func joinQuoted(tests []IgnoredTest) string {
	out := make([]string, 0, len(tests))
	for _, t := range tests {
		out = append(out, regexp.QuoteMeta(t.Name))
	}
	return strings.Join(out, "|")
}

func defaultCmdBuilder(workDir string, extraEnv []string) CmdBuilder {
	return func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
		cmd := exec.CommandContext(ctx, name, arg...)
		cmd.Dir = workDir
		env := append(os.Environ(), extraEnv...)
		cmd.Env = telemetry.InstrumentEnvironment(ctx, env)
		return cmd, func() {}
	}
}
