package legacy

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

var _ Runner = (*FuncRunner)(nil)

// Case is one in-process test. A non-empty Ignore reports it as ignored
// without calling Fn.
type Case struct {
	Name   string
	Fn     func(ctx context.Context) error
	Ignore string
}

// FuncRunner runs in-process test functions sequentially. Errors wrapping
// ErrAssumption are reported as assumption failures; panics are reported as
// failures of the panicking case.
type FuncRunner struct {
	pkg   string
	cases []Case
}

// NewFuncRunner creates a runner for cases under the suite named pkg
func NewFuncRunner(pkg string, cases ...Case) *FuncRunner {
	return &FuncRunner{pkg: pkg, cases: cases}
}

func (r *FuncRunner) Description() Description {
	return SuiteDescription(r.pkg)
}

// Run executes every case in order. It stops and returns the context error
// when ctx is cancelled between cases.
func (r *FuncRunner) Run(ctx context.Context, n *Notifier) error {
	for _, c := range r.cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := TestDescription(r.pkg, c.Name)
		if c.Ignore != "" {
			n.FireTestIgnored(d, c.Ignore)
			continue
		}

		n.FireTestStarted(d)
		err := runCase(ctx, c)
		switch {
		case err == nil:
		case errors.Is(err, ErrAssumption):
			n.FireTestAssumptionFailure(Failure{Description: d, Cause: err})
		default:
			n.FireTestFailure(Failure{Description: d, Cause: err})
		}
		n.FireTestFinished(d)
	}
	return nil
}

func runCase(ctx context.Context, c Case) (err error) {
	if c.Fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return c.Fn(ctx)
}
