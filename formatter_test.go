package junction

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleFormatter_Format(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := listener.Summary{
		Label:    "nightly",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Total:    3,
		Passed:   1,
		Failed:   1,
		Skipped:  1,
		Failures: []listener.Failure{{
			ID:     types.Identifier{UniqueID: "x/[test:TestBroken]", DisplayName: "TestBroken", Kind: types.KindTest},
			Result: types.Failed(errors.New("assertion failed")),
		}},
		ContainerFailures: []listener.Failure{{
			ID:     types.Identifier{UniqueID: "x", DisplayName: "pkg-c", Kind: types.KindContainer},
			Result: types.Failed(errors.New("build failed")),
		}},
	}

	var out bytes.Buffer
	require.NoError(t, NewConsoleFormatter(&out, discard()).Format("run-1", summary))

	got := out.String()
	assert.Contains(t, got, "Results: nightly")
	assert.Contains(t, got, "Run: run-1")
	assert.Contains(t, got, "Status: FAIL")
	assert.Contains(t, got, "Test Results (1.5s)")
	assert.Contains(t, got, "50.0%")
	assert.Contains(t, got, "TestBroken")
	assert.Contains(t, got, "assertion failed")
	assert.Contains(t, got, "pkg-c")
	assert.Contains(t, got, "build failed")
}

func TestConsoleFormatter_NoFailures(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewConsoleFormatter(&out, discard()).Format("run-2", listener.Summary{Label: "p", Total: 1, Passed: 1}))
	assert.Contains(t, out.String(), "Status: PASS")
	assert.NotContains(t, out.String(), "Failures")
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, "PASS", runStatus(listener.Summary{}))
	assert.Equal(t, "SKIP", runStatus(listener.Summary{Total: 2, Skipped: 2}))
	assert.Equal(t, "FAIL", runStatus(listener.Summary{Total: 2, Failed: 1}))
	assert.Equal(t, "PASS", runStatus(listener.Summary{Total: 1, Aborted: 1}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.0s", formatDuration(0))
	assert.Equal(t, "61.2s", formatDuration(61200*time.Millisecond))
}
