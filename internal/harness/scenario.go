package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a conformance scenario run against a fresh entity store.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Entities is an optional CUE entity table, relative to the scenario
	// file. The embedded default table is used when empty.
	Entities string `yaml:"entities,omitempty"`

	// Fixtures are the canned REST responses.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory of the scenario file.
	dir string
}

// Fixture is one canned response, keyed by "METHOD /path".
type Fixture struct {
	Route string `yaml:"route"`
	Body  any    `yaml:"body,omitempty"`

	// Error makes the route fail. With Status set the failure is an HTTP
	// error carrying Error as its code.
	Error  string `yaml:"error,omitempty"`
	Status int    `yaml:"status,omitempty"`
}

// Step is one scenario action. Exactly one of Select, Resolve, Dispatch,
// Tick or Flush is set.
type Step struct {
	// Select calls an enriched selector.
	Select string `yaml:"select,omitempty"`

	// Resolve calls a resolve selector, flushes the scheduler and waits for
	// the promise.
	Resolve string `yaml:"resolve,omitempty"`

	// Dispatch calls a store action.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Tick runs that many scheduler ticks.
	Tick int `yaml:"tick,omitempty"`

	// Flush ticks until no resolver task is pending.
	Flush bool `yaml:"flush,omitempty"`

	Args   []any   `yaml:"args,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	StepSelect   = "select"
	StepResolve  = "resolve"
	StepDispatch = "dispatch"
	StepTick     = "tick"
	StepFlush    = "flush"
)

// Kind returns the step kind, or "" when none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Select != "" {
		kinds = append(kinds, StepSelect)
	}
	if s.Resolve != "" {
		kinds = append(kinds, StepResolve)
	}
	if s.Dispatch != "" {
		kinds = append(kinds, StepDispatch)
	}
	if s.Tick > 0 {
		kinds = append(kinds, StepTick)
	}
	if s.Flush {
		kinds = append(kinds, StepFlush)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// target is the selector or action name of the step.
func (s Step) target() string {
	switch s.Kind() {
	case StepSelect:
		return s.Select
	case StepResolve:
		return s.Resolve
	case StepDispatch:
		return s.Dispatch
	}
	return ""
}

// Expect checks the outcome of a select, resolve or dispatch step.
type Expect struct {
	// Value is matched as a subset: maps may carry extra keys, lists must
	// have the same length.
	Value any `yaml:"value,omitempty"`

	// Nil expects a nil value.
	Nil bool `yaml:"nil,omitempty"`

	// Len expects a list of that length.
	Len *int `yaml:"len,omitempty"`

	// Error expects a failure whose message contains this text.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the run after all steps.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Actions is the expected order of action types (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Selector narrows trace assertions to metadata actions of that
	// selector and names the selector of resolution assertions.
	Selector string `yaml:"selector,omitempty"`

	// Args are the selector arguments (resolution).
	Args []any `yaml:"args,omitempty"`

	// Status is unresolved, resolving, finished or error (resolution).
	Status string `yaml:"status,omitempty"`

	// Route is "METHOD /path" (fetch_count).
	Route string `yaml:"route,omitempty"`

	// Count is the expected number of occurrences (trace_count, fetch_count).
	Count int `yaml:"count,omitempty"`

	// Expr is a boolean expression (expr).
	Expr string `yaml:"expr,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFetchCount    = "fetch_count"
	AssertResolution    = "resolution"
	AssertExpr          = "expr"
)

// Resolution statuses accepted by resolution assertions.
const (
	StatusUnresolved = "unresolved"
	StatusResolving  = "resolving"
	StatusFinished   = "finished"
	StatusError      = "error"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)

	if scenario.Entities != "" {
		if _, err := os.Stat(scenario.EntitiesPath()); err != nil {
			return nil, fmt.Errorf("invalid scenario: entities file not found: %s", scenario.Entities)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := map[string]string{}
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// EntitiesPath returns the entity table path resolved against the scenario
// file, or "" for the default table.
func (s *Scenario) EntitiesPath() string {
	if s.Entities == "" || filepath.IsAbs(s.Entities) {
		return s.Entities
	}
	return filepath.Join(s.dir, s.Entities)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, fx := range s.Fixtures {
		method, path, ok := strings.Cut(fx.Route, " ")
		if !ok || method == "" || !strings.HasPrefix(path, "/") {
			return fmt.Errorf("fixtures[%d]: route must look like \"GET /path\", got %q", i, fx.Route)
		}
		if fx.Status != 0 && fx.Error == "" {
			return fmt.Errorf("fixtures[%d]: status requires error", i)
		}
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one of select, resolve, dispatch, tick or flush is required", i)
		}
		if step.Expect != nil && (kind == StepTick || kind == StepFlush) {
			return fmt.Errorf("steps[%d]: %s steps take no expect", i, kind)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFetchCount:
		if a.Route == "" {
			return fmt.Errorf("assertions[%d]: route is required for fetch_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fetch_count", index)
		}
	case AssertResolution:
		if a.Selector == "" {
			return fmt.Errorf("assertions[%d]: selector is required for resolution", index)
		}
		switch a.Status {
		case StatusUnresolved, StatusResolving, StatusFinished, StatusError:
		default:
			return fmt.Errorf("assertions[%d]: unknown resolution status %q", index, a.Status)
		}
	case AssertExpr:
		if a.Expr == "" {
			return fmt.Errorf("assertions[%d]: expr is required for expr", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
