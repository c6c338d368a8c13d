package legacy

import (
	"context"
	"sync"
	"time"
)

// Listener receives the callbacks a legacy runner reports. Callbacks for one
// runner arrive on the goroutine that drives it.
type Listener interface {
	TestRunStarted(d Description)
	TestRunFinished(r Result)
	TestStarted(d Description)
	TestFinished(d Description)
	TestFailure(f Failure)
	TestAssumptionFailure(f Failure)
	TestIgnored(d Description, reason string)
	TestOutput(d Description, output string)
}

// Runner is a self-contained legacy execution unit. Run blocks until every
// test has been reported; a returned error means the runner itself broke down,
// not that a test failed.
type Runner interface {
	Description() Description
	Run(ctx context.Context, n *Notifier) error
}

// Notifier dispatches callbacks to registered listeners and keeps the run tally
type Notifier struct {
	mu        sync.Mutex
	listeners []Listener
	result    Result
	started   time.Time
}

// NewNotifier creates a notifier for the given listeners
func NewNotifier(listeners ...Listener) *Notifier {
	n := &Notifier{}
	for _, l := range listeners {
		n.AddListener(l)
	}
	return n
}

// AddListener registers a listener. nil listeners are ignored.
func (n *Notifier) AddListener(l Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Result returns the tally of callbacks fired so far
func (n *Notifier) Result() Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

func (n *Notifier) each(fn func(Listener)) {
	n.mu.Lock()
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, l := range listeners {
		fn(l)
	}
}

func (n *Notifier) tally(fn func(r *Result)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(&n.result)
}

func (n *Notifier) FireTestRunStarted(d Description) {
	n.mu.Lock()
	n.started = time.Now()
	n.mu.Unlock()
	n.each(func(l Listener) { l.TestRunStarted(d) })
}

func (n *Notifier) FireTestRunFinished() {
	n.tally(func(r *Result) {
		if !n.started.IsZero() {
			r.Duration = time.Since(n.started)
		}
	})
	result := n.Result()
	n.each(func(l Listener) { l.TestRunFinished(result) })
}

func (n *Notifier) FireTestStarted(d Description) {
	n.each(func(l Listener) { l.TestStarted(d) })
}

func (n *Notifier) FireTestFinished(d Description) {
	n.tally(func(r *Result) { r.RunCount++ })
	n.each(func(l Listener) { l.TestFinished(d) })
}

func (n *Notifier) FireTestFailure(f Failure) {
	n.tally(func(r *Result) { r.FailureCount++ })
	n.each(func(l Listener) { l.TestFailure(f) })
}

func (n *Notifier) FireTestAssumptionFailure(f Failure) {
	n.tally(func(r *Result) { r.AssumptionFailureCount++ })
	n.each(func(l Listener) { l.TestAssumptionFailure(f) })
}

func (n *Notifier) FireTestIgnored(d Description, reason string) {
	n.tally(func(r *Result) { r.IgnoreCount++ })
	n.each(func(l Listener) { l.TestIgnored(d, reason) })
}

func (n *Notifier) FireTestOutput(d Description, output string) {
	n.each(func(l Listener) { l.TestOutput(d, output) })
}

// Core drives runners the way a console launcher would: it announces the run,
// hands the runner a notifier wired to every registered listener, and
// announces completion when the runner returns without error.
type Core struct {
	listeners []Listener
}

// NewCore creates a core with no listeners
func NewCore() *Core {
	return &Core{}
}

// AddListener registers a listener for every subsequent Run
func (c *Core) AddListener(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Run executes r and returns its tally. Errors and panics raised by the runner
// are not intercepted.
func (c *Core) Run(ctx context.Context, r Runner) (Result, error) {
	n := NewNotifier(c.listeners...)
	n.FireTestRunStarted(r.Description())
	if err := r.Run(ctx, n); err != nil {
		return n.Result(), err
	}
	n.FireTestRunFinished()
	return n.Result(), nil
}
