package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "sql" or "tx"

	SQL string `json:"sql,omitempty"`
	Tx  string `json:"tx,omitempty"`

	// Results holds the result sets produced before the step ended.
	Results []ResultSet `json:"results,omitempty"`

	// Error is the kind of error the step failed with, if any.
	Error string `json:"error,omitempty"`

	// Message is the error text. It is not part of golden snapshots
	// because engine messages vary between engine versions.
	Message string `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected.
	Pass bool `json:"pass"`

	// Database is the URI the scenario ran against.
	Database string `json:"database"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each mismatch. Empty if Pass is true.
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

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
