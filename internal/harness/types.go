package harness

import "github.com/roach88/blocksync/internal/backend"

// Trace event types.
const (
	EventStep = "step"
	EventCall = "call"
	EventDone = "done"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq    int            `json:"seq"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// FinalState is the observable state after the last step.
type FinalState struct {
	Status  backend.Status `json:"status"`
	Queue   []string       `json:"queue"`
	Matches []string       `json:"matches"`
	Turn    string         `json:"turn,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains steps, remote calls and callback outcomes in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(typ, name string, args, result map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		Type:   typ,
		Name:   name,
		Args:   args,
		Result: result,
	})
}

// Calls returns the remote calls of the trace as "op(arg)" strings.
func (r *Result) Calls() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Type == EventCall {
			out = append(out, e.Name)
		}
	}
	return out
}
