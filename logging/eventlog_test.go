package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestNewEventLogValidation(t *testing.T) {
	_, err := NewEventLog(t.TempDir(), "", nil)
	assert.Error(t, err)
	_, err = NewEventLog("", "run", nil)
	assert.Error(t, err)
}

func TestEventLogWritesLifecycle(t *testing.T) {
	base := t.TempDir()
	el, err := NewEventLog(base, "run-1", log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "testrun-run-1"), el.Dir())

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	el.now = func() time.Time { return fixed }

	pkg := types.Identifier{UniqueID: "[engine:junction]/[package:p]", DisplayName: "p", ParentID: "[engine:junction]", Kind: types.KindContainer}
	test := types.Identifier{UniqueID: pkg.UniqueID + "/[test:TestA]", DisplayName: "TestA", ParentID: pkg.UniqueID, Kind: types.KindTest}
	skipped := types.Identifier{UniqueID: pkg.UniqueID + "/[test:TestB]", DisplayName: "TestB", ParentID: pkg.UniqueID, Kind: types.KindTest}

	el.RunStarted("nightly")
	el.ExecutionStarted(pkg)
	el.ExecutionStarted(test)
	el.ReportingEntryPublished(test, types.NewReportEntry("stdout", "hello"))
	el.ExecutionFinished(test, types.Failed(errors.New("boom")))
	el.ExecutionSkipped(skipped, "flaky")
	el.ExecutionFinished(pkg, types.Successful())
	el.RunFinished()
	require.NoError(t, el.Err())

	events := readEvents(t, filepath.Join(el.Dir(), EventsFilename))
	require.Len(t, events, 8)

	actions := make([]string, len(events))
	for i, ev := range events {
		actions[i] = ev.Action
		assert.True(t, fixed.Equal(ev.Time))
	}
	assert.Equal(t, []string{
		ActionRunStarted, ActionStarted, ActionStarted, ActionReport,
		ActionFinished, ActionSkipped, ActionFinished, ActionRunFinished,
	}, actions)

	assert.Equal(t, "nightly", events[0].Label)
	assert.Equal(t, "TestA", events[2].Name)
	assert.Equal(t, pkg.UniqueID, events[2].Parent)
	assert.Equal(t, "test", events[2].Kind)
	assert.Equal(t, map[string]string{"stdout": "hello"}, events[3].Report)
	assert.Equal(t, "FAILED", events[4].Status)
	assert.Equal(t, "boom", events[4].Cause)
	assert.Equal(t, "flaky", events[5].Reason)
	assert.Equal(t, "SUCCESSFUL", events[6].Status)
	assert.Empty(t, events[6].Cause)
}

func TestEventLogAfterCloseRecordsError(t *testing.T) {
	el, err := NewEventLog(t.TempDir(), "run-2", log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	el.RunStarted("x")
	el.RunFinished()
	require.NoError(t, el.Err())

	el.ExecutionStarted(types.Identifier{UniqueID: "late"})
	assert.ErrorIs(t, el.Err(), ErrClosed)
	assert.NoError(t, el.Close())
}

func TestEventLogWriteTree(t *testing.T) {
	el, err := NewEventLog(t.TempDir(), "run-3", log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)
	defer el.Close()

	require.NoError(t, el.WriteTree("└── plan\n"))
	data, err := os.ReadFile(filepath.Join(el.Dir(), TreeFilename))
	require.NoError(t, err)
	assert.Equal(t, "└── plan\n", string(data))
}

func TestAsyncFileConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	af, err := NewAsyncFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := af.Write([]byte("line\n"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, af.Close())
	require.NoError(t, af.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 10*50*len("line\n"))

	_, err = af.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewAsyncFileError(t *testing.T) {
	_, err := NewAsyncFile(filepath.Join(t.TempDir(), "missing", "out.log"))
	assert.Error(t, err)
}
