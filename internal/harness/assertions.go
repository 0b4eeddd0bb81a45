package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/roach88/datastore/internal/data"
	"github.com/roach88/datastore/internal/ir"
	"github.com/roach88/datastore/internal/testutil"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Type, event.Name)
			if event.Selector != "" {
				fmt.Fprintf(&buf, " %s", event.Selector)
			}
			if len(event.Args) > 0 {
				fmt.Fprintf(&buf, " %v", event.Args)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the store and the fake fetcher.
type AssertionContext struct {
	Store   *data.Store
	Fetcher *testutil.FakeFetcher
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFetchCount, AssertResolution, AssertExpr:
			if actx == nil || actx.Store == nil || actx.Fetcher == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a store context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertFetchCount:
				err = assertFetchCount(actx, assertion)
			case AssertResolution:
				err = assertResolution(actx, assertion)
			default:
				err = assertExpr(actx, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// matchesAction reports whether ev is the action named by the assertion.
// A selector, when given, must match as well.
func matchesAction(ev TraceEvent, action, selector string) bool {
	if ev.Type != EventAction || ev.Name != action {
		return false
	}
	return selector == "" || ev.Selector == selector
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchesAction(ev, a.Action, a.Selector) {
			if len(a.Args) == 0 || matchValue(ev.Args, a.Args) == nil {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s %s with args %v", a.Action, a.Selector, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the actions first occur in the given order.
// Other actions may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventAction {
			continue
		}
		for _, want := range a.Actions {
			if ev.Name == want && positions[want] == 0 {
				positions[want] = i + 1
			}
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchesAction(ev, a.Action, a.Selector) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", a.Count, a.Action, a.Selector),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFetchCount(actx *AssertionContext, a Assertion) error {
	if got := actx.Fetcher.Calls(a.Route); got != a.Count {
		return &AssertionError{
			Type:     AssertFetchCount,
			Expected: fmt.Sprintf("%d requests to %s", a.Count, a.Route),
			Actual:   fmt.Sprintf("%d requests", got),
		}
	}
	return nil
}

func assertResolution(actx *AssertionContext, a Assertion) error {
	got := resolutionStatus(actx.Store.Selectors(), a.Selector, a.Args)
	if got != a.Status {
		return &AssertionError{
			Type:     AssertResolution,
			Expected: fmt.Sprintf("%s%v is %s", a.Selector, a.Args, a.Status),
			Actual:   got,
		}
	}
	return nil
}

func resolutionStatus(sel *data.Selectors, name string, args []any) string {
	entry, ok := sel.GetResolutionState(name, args...)
	if !ok {
		return StatusUnresolved
	}
	return string(entry.Status)
}

// assertExpr evaluates a boolean expr-lang expression. The environment
// exposes the store through functions:
//
//	select(name, args...)     enriched selector value
//	finished(name, args...)   hasFinishedResolution
//	failed(name, args...)     hasResolutionFailed
//	resolving(name, args...)  isResolving
//	fetches(route)            request count for "METHOD /path"
//	actions                   dispatched action types in order
func assertExpr(actx *AssertionContext, result *Result, a Assertion) error {
	sel := actx.Store.Selectors()
	env := map[string]any{
		"select": func(name string, args ...any) (any, error) {
			return sel.Call(name, args...)
		},
		"finished": func(name string, args ...any) bool {
			return sel.HasFinishedResolution(name, args...)
		},
		"failed": func(name string, args ...any) bool {
			return sel.HasResolutionFailed(name, args...)
		},
		"resolving": func(name string, args ...any) bool {
			return sel.IsResolving(name, args...)
		},
		"fetches": func(route string) int {
			return actx.Fetcher.Calls(route)
		},
		"actions": result.Actions(),
	}

	program, err := expr.Compile(a.Expr, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("expr compile error in %q: %w", a.Expr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   fmt.Sprintf("evaluation error: %v", err),
		}
	}
	if ok, _ := out.(bool); !ok {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   "false",
		}
	}
	return nil
}

// matchValue checks want against got with subset semantics: maps in got
// may carry extra keys, lists must match in length, and integral numbers
// compare equal regardless of their Go type.
func matchValue(got, want any) error {
	gv, err := ir.FromGo(got)
	if err != nil {
		return fmt.Errorf("actual value: %w", err)
	}
	wv, err := ir.FromGo(want)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	return matchIR("$", gv, wv)
}

func matchIR(path string, got, want ir.Value) error {
	switch w := want.(type) {
	case ir.Object:
		g, ok := got.(ir.Object)
		if !ok {
			return fmt.Errorf("%s: expected an object, got %s", path, render(got))
		}
		for _, k := range w.SortedKeys() {
			gv, ok := g[k]
			if !ok {
				return fmt.Errorf("%s.%s: missing", path, k)
			}
			if err := matchIR(path+"."+k, gv, w[k]); err != nil {
				return err
			}
		}
		return nil
	case ir.Array:
		g, ok := got.(ir.Array)
		if !ok {
			return fmt.Errorf("%s: expected a list, got %s", path, render(got))
		}
		if len(g) != len(w) {
			return fmt.Errorf("%s: expected %d elements, got %d", path, len(w), len(g))
		}
		for i := range w {
			if err := matchIR(fmt.Sprintf("%s[%d]", path, i), g[i], w[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("%s: expected %s, got %s", path, render(want), render(got))
	}
	return nil
}

func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func lengthOf(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
