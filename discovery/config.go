package discovery

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// PlanConfig is the YAML description of what a run executes
type PlanConfig struct {
	Label    string          `yaml:"label"`
	Packages []PackageConfig `yaml:"packages"`
}

// PackageConfig selects the tests of one Go package
type PackageConfig struct {
	Package string            `yaml:"package"`
	Name    string            `yaml:"name,omitempty"`
	Tests   []string          `yaml:"tests,omitempty"`
	RunAll  bool              `yaml:"run_all,omitempty"`
	Timeout *time.Duration    `yaml:"timeout,omitempty"`
	Skip    map[string]string `yaml:"skip,omitempty"` // Test name -> reason
	Env     []string          `yaml:"env,omitempty"`
}

// LoadPlanConfig reads and validates a plan file
func LoadPlanConfig(path string) (*PlanConfig, error) {
	log.Debug("Reading plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return ParsePlanConfig(data)
}

// ParsePlanConfig decodes and validates plan YAML
func ParsePlanConfig(data []byte) (*PlanConfig, error) {
	var cfg PlanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every package is named and listed once and that only
// top-level tests are selected or skipped
func (c *PlanConfig) Validate() error {
	if len(c.Packages) == 0 {
		return fmt.Errorf("plan has no packages")
	}
	seen := make(map[string]bool, len(c.Packages))
	for i, pkg := range c.Packages {
		if pkg.Package == "" {
			return fmt.Errorf("package entry %d has no package", i)
		}
		if seen[pkg.Package] {
			return fmt.Errorf("package %s is listed more than once", pkg.Package)
		}
		seen[pkg.Package] = true
		if pkg.RunAll && len(pkg.Tests) > 0 {
			return fmt.Errorf("package %s sets both run_all and tests", pkg.Package)
		}
		if pkg.Timeout != nil && *pkg.Timeout < 0 {
			return fmt.Errorf("package %s has a negative timeout", pkg.Package)
		}
		for _, name := range pkg.Tests {
			if err := checkTestName(pkg.Package, name); err != nil {
				return err
			}
		}
		for name := range pkg.Skip {
			if err := checkTestName(pkg.Package, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkTestName rejects empty names and subtests. go test cannot select a
// subtest through a single anchored alternation.
func checkTestName(pkg, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("package %s lists an empty test name", pkg)
	case strings.Contains(name, "/"):
		return fmt.Errorf("package %s: %s names a subtest, only top-level tests can be listed or skipped", pkg, name)
	}
	return nil
}
