package junction

import (
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func cliContext(t *testing.T, args map[string]string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags.Flags {
		require.NoError(t, f.Apply(set))
	}
	for name, value := range args {
		require.NoError(t, set.Set(name, value))
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	ctx := cliContext(t, map[string]string{
		flags.Plan.Name:           "plan.yaml",
		flags.TestDir.Name:        dir,
		flags.RunInterval.Name:    "5m",
		flags.Concurrency.Name:    "4",
		flags.DefaultTimeout.Name: "30s",
		flags.LogDir.Name:         filepath.Join(dir, "logs"),
		flags.HealthzAddr.Name:    "127.0.0.1:8080",
		"metrics.enabled":         "true",
		"metrics.addr":            "127.0.0.1",
		"metrics.port":            "7301",
	})

	cfg, err := NewConfig(ctx, discard())
	require.NoError(t, err)

	abs, _ := filepath.Abs("plan.yaml")
	assert.Equal(t, abs, cfg.PlanFile)
	assert.Equal(t, dir, cfg.TestDir)
	assert.Equal(t, "go", cfg.GoBinary)
	assert.Equal(t, 5*time.Minute, cfg.RunInterval)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.LogDir)
	assert.True(t, cfg.PrintTree)
	assert.Equal(t, "127.0.0.1:8080", cfg.HealthzAddr)
	assert.Equal(t, "127.0.0.1:7301", cfg.MetricsAddr)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(cliContext(t, map[string]string{flags.Plan.Name: "plan.yaml"}), discard())
	require.NoError(t, err)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.HealthzAddr)
	assert.True(t, filepath.IsAbs(cfg.LogDir))
}

func TestNewConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]string
		wantErr string
	}{
		{"missing plan", map[string]string{}, "flag plan is required"},
		{"bad concurrency", map[string]string{flags.Plan.Name: "p.yaml", flags.Concurrency.Name: "0"}, "concurrency must be at least 1"},
		{"negative interval", map[string]string{flags.Plan.Name: "p.yaml", flags.RunInterval.Name: "-1s"}, "run interval must not be negative"},
		{"empty testdir", map[string]string{flags.Plan.Name: "p.yaml", flags.TestDir.Name: ""}, "test directory is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(cliContext(t, tt.args), discard())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
