// Package discovery turns a plan file into the descriptor tree and the legacy
// runners that execute it.
package discovery

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/engine"
	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
)

// Unique id segment types
const (
	SegmentEngine  = "engine"
	SegmentPackage = "package"
	SegmentTest    = "test"

	EngineName        = "junction"
	DefaultLabel      = "test plan"
	DefaultSkipReason = "skipped by plan"
)

// Config configures discovery
type Config struct {
	WorkDir        string        // Directory go test runs in and packages are resolved against
	GoBinary       string        // Passed to every GoTestRunner
	DefaultTimeout time.Duration // Used for packages without a timeout
	Log            log.Logger

	// FindTests overrides test function discovery, mainly for tests
	FindTests func(pkgPath, workDir string) ([]string, error)
}

// Result is a discovered plan ready to be executed
type Result struct {
	Plan    *types.TestPlan
	Root    types.Identifier
	Targets []engine.Target
}

// Request builds the engine request for this result
func (r *Result) Request(runID string) engine.ExecutionRequest {
	return engine.ExecutionRequest{
		RunID:   runID,
		Plan:    r.Plan,
		Root:    r.Root,
		Targets: r.Targets,
	}
}

// Discover builds the plan and one GoTestRunner per package. Packages that
// neither list tests nor set run_all have their test functions discovered
// from source.
func Discover(planCfg *PlanConfig, cfg Config) (*Result, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.FindTests == nil {
		cfg.FindTests = FindTestFunctions
	}
	if err := planCfg.Validate(); err != nil {
		return nil, err
	}

	label := planCfg.Label
	if label == "" {
		label = DefaultLabel
	}

	rootUID := types.Segment(SegmentEngine, EngineName)
	builder := types.NewPlanBuilder(label).Add(types.Identifier{
		UniqueID:    rootUID,
		DisplayName: EngineName,
		Kind:        types.KindContainer,
	})

	type pending struct {
		uid    string
		runner legacy.Runner
	}
	var runners []pending

	for _, pkg := range planCfg.Packages {
		tests, err := selectTests(pkg, cfg)
		if err != nil {
			return nil, fmt.Errorf("discovering tests of %s: %w", pkg.Package, err)
		}

		pkgUID := types.AppendSegment(rootUID, SegmentPackage, pkg.Package)
		builder.Add(types.Identifier{
			UniqueID:    pkgUID,
			DisplayName: packageName(pkg),
			ParentID:    rootUID,
			Kind:        types.KindContainer,
			Source:      pkg.Package,
		})
		for _, test := range withSkipped(tests, pkg.Skip) {
			builder.Add(types.Identifier{
				UniqueID:    types.AppendSegment(pkgUID, SegmentTest, test),
				DisplayName: test,
				ParentID:    pkgUID,
				Kind:        types.KindTest,
				Source:      legacy.TestDescription(pkg.Package, test).Key(),
			})
		}

		timeout := cfg.DefaultTimeout
		if pkg.Timeout != nil {
			timeout = *pkg.Timeout
		}
		r, err := legacy.NewGoTestRunner(legacy.GoTestConfig{
			Package:  pkg.Package,
			WorkDir:  cfg.WorkDir,
			GoBinary: cfg.GoBinary,
			Tests:    tests,
			Ignored:  ignored(pkg.Skip),
			Timeout:  timeout,
			Env:      pkg.Env,
			Log:      cfg.Log,
		})
		if err != nil {
			return nil, err
		}
		runners = append(runners, pending{uid: pkgUID, runner: r})
	}

	plan, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building plan: %w", err)
	}

	root, _ := plan.Get(rootUID)
	result := &Result{Plan: plan, Root: root}
	for _, p := range runners {
		id, _ := plan.Get(p.uid)
		result.Targets = append(result.Targets, engine.Target{ID: id, Runner: p.runner})
	}
	cfg.Log.Info("Discovered plan", "label", label, "packages", len(result.Targets), "tests", plan.CountTests())
	return result, nil
}

func selectTests(pkg PackageConfig, cfg Config) ([]string, error) {
	switch {
	case pkg.RunAll:
		return nil, nil
	case len(pkg.Tests) > 0:
		return pkg.Tests, nil
	default:
		tests, err := cfg.FindTests(pkg.Package, cfg.WorkDir)
		if err != nil {
			return nil, err
		}
		if len(tests) == 0 {
			return nil, fmt.Errorf("no test functions found")
		}
		return tests, nil
	}
}

// withSkipped appends skipped tests the selection does not already list
func withSkipped(tests []string, skip map[string]string) []string {
	out := append([]string(nil), tests...)
	listed := make(map[string]bool, len(tests))
	for _, t := range tests {
		listed[t] = true
	}
	for _, s := range sortedKeys(skip) {
		if !listed[s] {
			out = append(out, s)
		}
	}
	return out
}

func ignored(skip map[string]string) []legacy.IgnoredTest {
	var out []legacy.IgnoredTest
	for _, name := range sortedKeys(skip) {
		reason := skip[name]
		if reason == "" {
			reason = DefaultSkipReason
		}
		out = append(out, legacy.IgnoredTest{Name: name, Reason: reason})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func packageName(pkg PackageConfig) string {
	if pkg.Name != "" {
		return pkg.Name
	}
	if pkg.Package == "." {
		return pkg.Package
	}
	return path.Base(pkg.Package)
}
