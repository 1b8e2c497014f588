package lifecycle

import (
	"testing"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

func TestTransitionTableExhaustive(t *testing.T) {
	legal := map[schema.LifecycleState]map[Event]schema.LifecycleState{
		schema.StateDraft: {
			EventSetup: schema.StateConfigured,
			EventStop:  schema.StateStopped,
		},
		schema.StateConfigured: {
			EventStart: schema.StateActive,
			EventStop:  schema.StateStopped,
		},
		schema.StateActive: {
			EventPause: schema.StatePaused,
			EventStop:  schema.StateStopped,
		},
		schema.StatePaused: {
			EventStart: schema.StateActive,
			EventStop:  schema.StateStopped,
		},
		schema.StateStopped: {
			EventStop: schema.StateStopped,
		},
	}

	for _, state := range States() {
		for _, event := range Events() {
			next, changed, err := Next(state, event)
			want, ok := legal[state][event]
			if !ok {
				if err == nil {
					t.Fatalf("%s + %s: expected illegal transition error", state, event)
				}
				if !errs.IsCode(err, errs.CodeIllegalTransition) {
					t.Fatalf("%s + %s: expected illegal_transition code, got %v", state, event, err)
				}
				if next != state {
					t.Fatalf("%s + %s: state must be unchanged on error, got %s", state, event, next)
				}
				continue
			}
			if err != nil {
				t.Fatalf("%s + %s: unexpected error %v", state, event, err)
			}
			if next != want {
				t.Fatalf("%s + %s: expected %s, got %s", state, event, want, next)
			}
			if changed != (next != state) {
				t.Fatalf("%s + %s: changed flag mismatch", state, event)
			}
		}
	}
}

func TestStopIdempotentFromStopped(t *testing.T) {
	next, changed, err := Next(schema.StateStopped, EventStop)
	if err != nil {
		t.Fatalf("stop on STOPPED must be a no-op, got %v", err)
	}
	if changed {
		t.Fatalf("stop on STOPPED must not report a state change")
	}
	if next != schema.StateStopped {
		t.Fatalf("expected STOPPED, got %s", next)
	}
}

func TestIllegalTransitionNamesStateAndEvent(t *testing.T) {
	_, _, err := Next(schema.StateDraft, EventPause)
	if err == nil {
		t.Fatalf("expected error")
	}
	var envelope *errs.E
	if !asEnvelope(err, &envelope) {
		t.Fatalf("expected errs.E, got %T", err)
	}
	if envelope.State != string(schema.StateDraft) || envelope.Event != string(EventPause) {
		t.Fatalf("expected state/event in envelope, got %q -> %q", envelope.State, envelope.Event)
	}
}

func TestUnknownEventRejected(t *testing.T) {
	_, _, err := Next(schema.StateDraft, Event("restart"))
	if !errs.IsCode(err, errs.CodeInvalid) {
		t.Fatalf("expected invalid_request for unknown event, got %v", err)
	}
}

func asEnvelope(err error, target **errs.E) bool {
	e, ok := err.(*errs.E)
	if !ok {
		return false
	}
	*target = e
	return true
}
