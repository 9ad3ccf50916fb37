package conformance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower"
	"github.com/stealthrocket/iterlower/compiler"
	"github.com/stealthrocket/iterlower/eval"
	"github.com/stealthrocket/iterlower/ir"
	"github.com/stealthrocket/iterlower/irfile"
)

const defaultStepLimit = 100_000

// Option configures how suites run.
type Option func(*runner)

// WithLogger sets the logger given to the compiler and interpreter.
func WithLogger(l *zap.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithStepLimit bounds the instructions executed by each interpreter
// call.
func WithStepLimit(n int) Option {
	return func(r *runner) { r.stepLimit = n }
}

type runner struct {
	logger    *zap.Logger
	stepLimit int
}

// Run builds and normalizes the module of the suite, then runs each case
// and passes its outcome to report. The returned error is about the
// module itself: it could not be built, or normalizing it did not go as
// the suite expects.
func (s *Suite) Run(report func(c *Case, err error), options ...Option) error {
	r := &runner{logger: zap.NewNop(), stepLimit: defaultStepLimit}
	for _, option := range options {
		option(r)
	}

	mod, err := irfile.Build(s.Path, &s.Module)
	if err != nil {
		return err
	}
	err = compiler.Normalize(mod, compiler.WithLogger(r.logger), compiler.WithVerify(true))
	if s.NormalizeError != "" {
		return expectError(s.NormalizeError, err)
	}
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", s.Name, err)
	}

	for i := range s.Cases {
		c := &s.Cases[i]
		report(c, r.run(mod, c))
	}
	return nil
}

func (r *runner) run(mod *ir.ModuleSymbol, c *Case) error {
	in, err := eval.New(mod, eval.WithLogger(r.logger), eval.WithStepLimit(r.stepLimit))
	if err != nil {
		return err
	}
	args, err := values(c.Args)
	if err != nil {
		return fmt.Errorf("args: %w", err)
	}
	if c.Call != "" {
		err = r.call(in, c, args)
	} else {
		err = r.iterate(in, c, args)
	}
	if c.Error != "" {
		return expectError(c.Error, err)
	}
	return err
}

func (r *runner) call(in *eval.Interp, c *Case, args []eval.Value) error {
	v, err := in.Call(c.Call, args...)
	if err != nil {
		return err
	}
	want, err := value(c.Result)
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	if got, want := eval.Format(v), eval.Format(want); got != want {
		return fmt.Errorf("%s returned %s, want %s", c.Call, got, want)
	}
	return nil
}

func (r *runner) iterate(in *eval.Interp, c *Case, args []eval.Value) error {
	v, err := in.Call(c.Iterate, args...)
	if err != nil {
		return err
	}
	it, err := in.Iterator(v)
	if err != nil {
		return err
	}

	want, err := values(c.Values)
	if err != nil {
		return fmt.Errorf("values: %w", err)
	}
	got, cursors, err := walk(it)
	if err != nil {
		return err
	}
	if diff := cmp.Diff(format(want), format(got)); diff != "" {
		return fmt.Errorf("%s produced unexpected values (-want +got):\n%s", c.Iterate, diff)
	}
	if c.Cursors != nil {
		if diff := cmp.Diff(c.Cursors, cursors); diff != "" {
			return fmt.Errorf("%s went through unexpected cursors (-want +got):\n%s", c.Iterate, diff)
		}
	}

	if c.ElemType != "" {
		t, err := it.ElemType()
		if err != nil {
			return err
		}
		if t.String() != c.ElemType {
			return fmt.Errorf("%s has element type %s, want %s", c.Iterate, t, c.ElemType)
		}
	}

	if c.Restart {
		again, err := iterlower.Collect(it)
		if err != nil {
			return fmt.Errorf("restarting: %w", err)
		}
		if diff := cmp.Diff(format(got), format(again)); diff != "" {
			return fmt.Errorf("%s produced different values when restarted (-first +second):\n%s", c.Iterate, diff)
		}
	}
	return nil
}

// walk collects the values of p along with every cursor it returned.
func walk(p iterlower.Protocol) (values []any, cursors []int64, err error) {
	g := iterlower.New(p)
	for g.Next() {
		cursors = append(cursors, g.Cursor())
		values = append(values, g.Recv())
	}
	if err := g.Err(); err != nil {
		return nil, nil, err
	}
	return values, append(cursors, g.Cursor()), nil
}

func expectError(substr string, err error) error {
	if err == nil {
		return fmt.Errorf("expected an error containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		return fmt.Errorf("expected an error containing %q, got %w", substr, err)
	}
	return nil
}

var errUnsupported = errors.New("unsupported value")

// value converts a value decoded from YAML into an interpreter value.
func value(v any) (eval.Value, error) {
	switch v := v.(type) {
	case nil, bool, string:
		return v, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	}
	return nil, fmt.Errorf("%w %v of type %T", errUnsupported, v, v)
}

func values(list []any) ([]eval.Value, error) {
	out := make([]eval.Value, len(list))
	for i, v := range list {
		x, err := value(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func format(list []eval.Value) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = eval.Format(v)
	}
	return out
}
