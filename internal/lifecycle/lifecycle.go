// Package lifecycle enforces legal strategy state transitions.
package lifecycle

import (
	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// Event names a requested lifecycle transition.
type Event string

const (
	// EventSetup moves a draft strategy into the configured state.
	EventSetup Event = "setup"
	// EventStart activates a configured or paused strategy.
	EventStart Event = "start"
	// EventPause freezes an active strategy's valuation.
	EventPause Event = "pause"
	// EventStop terminates a strategy; stop is idempotent.
	EventStop Event = "stop"
)

// Validate ensures the event is one of the known lifecycle events.
func (e Event) Validate() error {
	switch e {
	case EventSetup, EventStart, EventPause, EventStop:
		return nil
	default:
		return errs.New("lifecycle", errs.CodeInvalid, errs.WithMessage("unknown lifecycle event"))
	}
}

type transitionKey struct {
	state schema.LifecycleState
	event Event
}

// table is the full (state x event) -> next state map. Pairs absent from the
// table are illegal, with the single exception of stop on STOPPED which is a
// no-op rather than an error.
var table = map[transitionKey]schema.LifecycleState{
	{schema.StateDraft, EventSetup}:      schema.StateConfigured,
	{schema.StateDraft, EventStop}:       schema.StateStopped,
	{schema.StateConfigured, EventStart}: schema.StateActive,
	{schema.StateConfigured, EventStop}:  schema.StateStopped,
	{schema.StateActive, EventPause}:     schema.StatePaused,
	{schema.StateActive, EventStop}:      schema.StateStopped,
	{schema.StatePaused, EventStart}:     schema.StateActive,
	{schema.StatePaused, EventStop}:      schema.StateStopped,
}

// Next resolves the transition for the current state and requested event. It
// returns the resulting state, whether the transition changes state, or an
// illegal-transition error naming both inputs.
func Next(current schema.LifecycleState, event Event) (schema.LifecycleState, bool, error) {
	if err := event.Validate(); err != nil {
		return current, false, err
	}
	if current == schema.StateStopped && event == EventStop {
		return schema.StateStopped, false, nil
	}
	next, ok := table[transitionKey{current, event}]
	if !ok {
		return current, false, errs.New("lifecycle", errs.CodeIllegalTransition,
			errs.WithMessage("event not legal in current state"),
			errs.WithTransition(string(current), string(event)))
	}
	return next, next != current, nil
}

// Events returns the lifecycle events in stable order, used by exhaustive
// transition tests.
func Events() []Event {
	return []Event{EventSetup, EventStart, EventPause, EventStop}
}

// States returns the lifecycle states in stable order.
func States() []schema.LifecycleState {
	return []schema.LifecycleState{
		schema.StateDraft, schema.StateConfigured, schema.StateActive,
		schema.StatePaused, schema.StateStopped,
	}
}
