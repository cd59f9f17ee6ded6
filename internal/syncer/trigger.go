package syncer

// TriggerOutcome discriminates what a sync trigger did. The value is decided
// once, at the trigger call, and carried to the HTTP boundary unchanged.
type TriggerOutcome string

const (
	// TriggerStarted means the trigger won the status compare-and-set and a
	// cycle was handed to the worker pool.
	TriggerStarted TriggerOutcome = "started"
	// TriggerSkipped means the folder was already syncing or paused. A
	// skipped trigger is a local no-op, not an error.
	TriggerSkipped TriggerOutcome = "skipped"
)

// TriggerResult is the outcome of a manual or automatic sync trigger.
type TriggerResult struct {
	Outcome TriggerOutcome `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
}

// Started reports whether the trigger began a new cycle.
func (r TriggerResult) Started() bool {
	return r.Outcome == TriggerStarted
}
