package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/lifecycle"
	"github.com/alfadesk/riskcore/internal/schema"
)

func leg(option schema.OptionType, side schema.Side, strike int64) schema.Leg {
	return schema.Leg{
		Symbol:   "NIFTY",
		Option:   option,
		Strike:   decimal.NewFromInt(strike),
		Expiry:   time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC),
		Side:     side,
		Quantity: 1,
	}
}

func ironCondorLegs() []schema.Leg {
	return []schema.Leg{
		leg(schema.OptionCall, schema.SideShort, 19600),
		leg(schema.OptionCall, schema.SideLong, 19700),
		leg(schema.OptionPut, schema.SideShort, 19400),
		leg(schema.OptionPut, schema.SideLong, 19300),
	}
}

func TestCreateValidShapes(t *testing.T) {
	stock := leg(schema.OptionStock, schema.SideLong, 0)
	stock.Strike = decimal.Zero

	cases := map[schema.StrategyType][]schema.Leg{
		schema.StrategyIronCondor: ironCondorLegs(),
		schema.StrategyButterfly: {
			leg(schema.OptionCall, schema.SideLong, 19400),
			func() schema.Leg {
				body := leg(schema.OptionCall, schema.SideShort, 19500)
				body.Quantity = 2
				return body
			}(),
			leg(schema.OptionCall, schema.SideLong, 19600),
		},
		schema.StrategyStraddle: {
			leg(schema.OptionCall, schema.SideLong, 19500),
			leg(schema.OptionPut, schema.SideLong, 19500),
		},
		schema.StrategyStrangle: {
			leg(schema.OptionCall, schema.SideLong, 19700),
			leg(schema.OptionPut, schema.SideLong, 19300),
		},
		schema.StrategyCallSpread: {
			leg(schema.OptionCall, schema.SideLong, 19500),
			leg(schema.OptionCall, schema.SideShort, 19600),
		},
		schema.StrategyPutSpread: {
			leg(schema.OptionPut, schema.SideLong, 19500),
			leg(schema.OptionPut, schema.SideShort, 19400),
		},
		schema.StrategyCoveredCall: {
			stock,
			leg(schema.OptionCall, schema.SideShort, 19700),
		},
		schema.StrategyProtectivePut: {
			stock,
			leg(schema.OptionPut, schema.SideLong, 19300),
		},
	}

	for typ, legs := range cases {
		l := New()
		created, err := l.Create(typ, legs, 50)
		if err != nil {
			t.Fatalf("%s: expected valid shape, got %v", typ, err)
		}
		if created.State != schema.StateDraft {
			t.Fatalf("%s: new strategy must be DRAFT, got %s", typ, created.State)
		}
		if created.ID == uuid.Nil {
			t.Fatalf("%s: expected minted strategy id", typ)
		}
	}
}

func TestCreateInvalidShapesLeaveLedgerUnchanged(t *testing.T) {
	wrongSide := ironCondorLegs()
	wrongSide[0].Side = schema.SideLong

	inverted := ironCondorLegs()
	inverted[0].Strike, inverted[1].Strike = inverted[1].Strike, inverted[0].Strike

	putsInverted := ironCondorLegs()
	putsInverted[2].Strike, putsInverted[3].Strike = putsInverted[3].Strike, putsInverted[2].Strike

	mixedUnderlying := ironCondorLegs()
	mixedUnderlying[3].Symbol = "BANKNIFTY"

	lopsidedButterfly := []schema.Leg{
		leg(schema.OptionCall, schema.SideLong, 19400),
		func() schema.Leg {
			body := leg(schema.OptionCall, schema.SideShort, 19500)
			body.Quantity = 2
			return body
		}(),
		leg(schema.OptionCall, schema.SideLong, 19650),
	}

	cases := []struct {
		name string
		typ  schema.StrategyType
		legs []schema.Leg
	}{
		{"wrong leg count", schema.StrategyIronCondor, ironCondorLegs()[:3]},
		{"wrong side pattern", schema.StrategyIronCondor, wrongSide},
		{"inverted call strikes", schema.StrategyIronCondor, inverted},
		{"inverted put strikes", schema.StrategyIronCondor, putsInverted},
		{"mixed underlying", schema.StrategyIronCondor, mixedUnderlying},
		{"uneven butterfly wings", schema.StrategyButterfly, lopsidedButterfly},
		{"straddle strike mismatch", schema.StrategyStraddle, []schema.Leg{
			leg(schema.OptionCall, schema.SideLong, 19500),
			leg(schema.OptionPut, schema.SideLong, 19400),
		}},
		{"strangle call below put", schema.StrategyStrangle, []schema.Leg{
			leg(schema.OptionCall, schema.SideLong, 19300),
			leg(schema.OptionPut, schema.SideLong, 19700),
		}},
	}

	for _, tc := range cases {
		l := New()
		before := l.Len()
		_, err := l.Create(tc.typ, tc.legs, 50)
		if err == nil {
			t.Fatalf("%s: expected invalid shape error", tc.name)
		}
		if !errs.IsCode(err, errs.CodeInvalidShape) {
			t.Fatalf("%s: expected invalid_shape code, got %v", tc.name, err)
		}
		if l.Len() != before {
			t.Fatalf("%s: ledger size changed on failed create", tc.name)
		}
	}
}

func TestTransitionLifecyclePath(t *testing.T) {
	l := New()
	created, err := l.Create(schema.StrategyIronCondor, ironCondorLegs(), 50)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		event       lifecycle.Event
		want        schema.LifecycleState
		wantChanged bool
	}{
		{lifecycle.EventSetup, schema.StateConfigured, true},
		{lifecycle.EventStart, schema.StateActive, true},
		{lifecycle.EventPause, schema.StatePaused, true},
		{lifecycle.EventStart, schema.StateActive, true},
		{lifecycle.EventStop, schema.StateStopped, true},
		{lifecycle.EventStop, schema.StateStopped, false},
	}
	for _, step := range steps {
		state, changed, err := l.Transition(created.ID, step.event)
		if err != nil {
			t.Fatalf("%s: %v", step.event, err)
		}
		if state != step.want {
			t.Fatalf("%s: expected %s, got %s", step.event, step.want, state)
		}
		if changed != step.wantChanged {
			t.Fatalf("%s: expected changed=%v, got %v", step.event, step.wantChanged, changed)
		}
	}
}

func TestTransitionIllegalFromDraft(t *testing.T) {
	l := New()
	created, err := l.Create(schema.StrategyStraddle, []schema.Leg{
		leg(schema.OptionCall, schema.SideLong, 19500),
		leg(schema.OptionPut, schema.SideLong, 19500),
	}, 50)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, event := range []lifecycle.Event{lifecycle.EventStart, lifecycle.EventPause} {
		if _, _, err := l.Transition(created.ID, event); !errs.IsCode(err, errs.CodeIllegalTransition) {
			t.Fatalf("%s from DRAFT: expected illegal_transition, got %v", event, err)
		}
	}
	got, err := l.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != schema.StateDraft {
		t.Fatalf("failed transitions must not change state, got %s", got.State)
	}
}

func TestTransitionUnknownStrategy(t *testing.T) {
	l := New()
	if _, _, err := l.Transition(uuid.New(), lifecycle.EventStop); !errs.IsCode(err, errs.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestApplyFillSetsEntryPremium(t *testing.T) {
	l := New()
	created, err := l.Create(schema.StrategyIronCondor, ironCondorLegs(), 50)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fill := schema.Fill{
		OrderID:    uuid.New(),
		StrategyID: created.ID,
		LegIndex:   0,
		Premium:    decimal.NewFromInt(55),
		FilledAt:   time.Now(),
	}
	if err := l.ApplyFill(fill); err != nil {
		t.Fatalf("apply fill: %v", err)
	}
	got, err := l.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Legs[0].EntryPremium.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("expected entry premium 55, got %s", got.Legs[0].EntryPremium)
	}

	fill.LegIndex = 9
	if err := l.ApplyFill(fill); !errs.IsCode(err, errs.CodeInvalid) {
		t.Fatalf("expected invalid_request for out-of-range leg, got %v", err)
	}
}

func TestListActiveReturnsOnlyActive(t *testing.T) {
	l := New()
	first, _ := l.Create(schema.StrategyIronCondor, ironCondorLegs(), 50)
	second, _ := l.Create(schema.StrategyIronCondor, ironCondorLegs(), 50)

	mustTransition(t, l, first.ID, lifecycle.EventSetup, lifecycle.EventStart)
	mustTransition(t, l, second.ID, lifecycle.EventSetup)

	active := l.ListActive()
	if len(active) != 1 {
		t.Fatalf("expected 1 active strategy, got %d", len(active))
	}
	if active[0].ID != first.ID {
		t.Fatalf("expected first strategy to be active")
	}
}

func mustTransition(t *testing.T, l *Ledger, id schema.StrategyID, events ...lifecycle.Event) {
	t.Helper()
	for _, event := range events {
		if _, _, err := l.Transition(id, event); err != nil {
			t.Fatalf("transition %s: %v", event, err)
		}
	}
}
