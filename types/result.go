package types

import (
	"fmt"
	"time"
)

// ExecutionStatus is the terminal outcome tag of a finished node
type ExecutionStatus string

const (
	StatusSuccessful ExecutionStatus = "SUCCESSFUL"
	StatusFailed     ExecutionStatus = "FAILED"
	StatusAborted    ExecutionStatus = "ABORTED"
)

// String implements the Stringer interface for ExecutionStatus
func (s ExecutionStatus) String() string {
	return string(s)
}

// ExecutionResult is attached to every finished node. Skipped nodes never carry one.
type ExecutionResult struct {
	Status ExecutionStatus
	Cause  error // nil for successful results
}

// Successful returns a result for a node that completed normally
func Successful() ExecutionResult {
	return ExecutionResult{Status: StatusSuccessful}
}

// Failed returns a result for a node that failed with the given cause
func Failed(cause error) ExecutionResult {
	return ExecutionResult{Status: StatusFailed, Cause: cause}
}

// Aborted returns a result for a node whose execution was cut short, e.g. by a
// failed assumption
func Aborted(cause error) ExecutionResult {
	return ExecutionResult{Status: StatusAborted, Cause: cause}
}

// IsSuccessful reports whether the result is SUCCESSFUL
func (r ExecutionResult) IsSuccessful() bool {
	return r.Status == StatusSuccessful
}

// String renders the status, followed by the cause when there is one
func (r ExecutionResult) String() string {
	if r.Cause == nil {
		return r.Status.String()
	}
	return fmt.Sprintf("%s(%v)", r.Status, r.Cause)
}

// ReportValue is one key/value pair of a ReportEntry
type ReportValue struct {
	Key   string
	Value string
}

// ReportEntry is a timestamped bundle of key/value pairs published for a node.
// Values keep their publication order.
type ReportEntry struct {
	timestamp time.Time
	values    []ReportValue
}

// NewReportEntry builds an entry stamped with the current time from alternating
// keys and values. A trailing key without a value is stored with an empty value.
func NewReportEntry(kv ...string) ReportEntry {
	return NewReportEntryAt(time.Now(), kv...)
}

// NewReportEntryAt builds an entry with an explicit timestamp
func NewReportEntryAt(ts time.Time, kv ...string) ReportEntry {
	values := make([]ReportValue, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		v := ReportValue{Key: kv[i]}
		if i+1 < len(kv) {
			v.Value = kv[i+1]
		}
		values = append(values, v)
	}
	return ReportEntry{timestamp: ts, values: values}
}

// Timestamp returns when the entry was created
func (e ReportEntry) Timestamp() time.Time {
	return e.timestamp
}

// Values returns a copy of the key/value pairs
func (e ReportEntry) Values() []ReportValue {
	out := make([]ReportValue, len(e.values))
	copy(out, e.values)
	return out
}

// Get returns the first value stored under key
func (e ReportEntry) Get(key string) (string, bool) {
	for _, v := range e.values {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Map returns the entry as a map; later duplicates overwrite earlier ones
func (e ReportEntry) Map() map[string]string {
	out := make(map[string]string, len(e.values))
	for _, v := range e.values {
		out[v.Key] = v.Value
	}
	return out
}
