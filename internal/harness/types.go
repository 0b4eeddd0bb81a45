package harness

// Trace event types.
const (
	EventStep   = "step"
	EventAction = "action"
)

// TraceEvent is one entry of a scenario trace: either a scenario step or an
// action that reached the store's reducer chain.
type TraceEvent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Selector string `json:"selector,omitempty"`
	Args     []any  `json:"args,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Seq      int64  `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds steps and dispatched actions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addStep(name string, args []any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventStep, Name: name, Args: args, Seq: seq})
}

func (r *Result) addAction(ev TraceEvent) {
	ev.Type = EventAction
	r.Trace = append(r.Trace, ev)
}

// Actions returns the dispatched action types in order.
func (r *Result) Actions() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == EventAction {
			out = append(out, ev.Name)
		}
	}
	return out
}
