package broker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

func testOrder() schema.OrderRequest {
	return schema.OrderRequest{
		StrategyID: schema.NewStrategyID(),
		LegIndex:   0,
		Leg: schema.Leg{
			Symbol:       "NIFTY",
			Option:       schema.OptionCall,
			Strike:       decimal.NewFromInt(19600),
			Expiry:       time.Now().AddDate(0, 1, 0),
			Side:         schema.SideShort,
			Quantity:     1,
			EntryPremium: decimal.NewFromInt(25),
		},
		Timestamp: time.Now(),
	}
}

func TestPlaceOrderFillsAtEntryPremium(t *testing.T) {
	b := NewSimulated()
	defer b.Close()

	req := testOrder()
	id, err := b.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	select {
	case fill := <-b.Fills():
		if fill.OrderID != id {
			t.Fatalf("fill order id = %s, want %s", fill.OrderID, id)
		}
		if fill.StrategyID != req.StrategyID || fill.LegIndex != 0 {
			t.Fatalf("fill routing = %s/%d, want %s/0", fill.StrategyID, fill.LegIndex, req.StrategyID)
		}
		if !fill.Premium.Equal(req.Leg.EntryPremium) {
			t.Fatalf("fill premium = %s, want %s", fill.Premium, req.Leg.EntryPremium)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fill")
	}

	state, err := b.OrderState(id)
	if err != nil {
		t.Fatalf("order state: %v", err)
	}
	if state != schema.OrderFilled {
		t.Fatalf("state = %s, want filled", state)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	b := NewSimulated(WithFillDelay(time.Hour))
	defer b.Close()

	id, err := b.PlaceOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if err := b.CancelOrder(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Cancel is idempotent on a cancelled order.
	if err := b.CancelOrder(context.Background(), id); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	state, err := b.OrderState(id)
	if err != nil {
		t.Fatalf("order state: %v", err)
	}
	if state != schema.OrderCancelled {
		t.Fatalf("state = %s, want cancelled", state)
	}
}

func TestCancelFilledOrderConflicts(t *testing.T) {
	b := NewSimulated()
	defer b.Close()

	id, err := b.PlaceOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	<-b.Fills()

	err = b.CancelOrder(context.Background(), id)
	if !errs.IsCode(err, errs.CodeConflict) {
		t.Fatalf("err = %v, want %s", err, errs.CodeConflict)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	b := NewSimulated()
	defer b.Close()

	err := b.CancelOrder(context.Background(), uuid.New())
	if !errs.IsCode(err, errs.CodeNotFound) {
		t.Fatalf("err = %v, want %s", err, errs.CodeNotFound)
	}
}

func TestPlaceOrderRejectsInvalidLeg(t *testing.T) {
	b := NewSimulated()
	defer b.Close()

	req := testOrder()
	req.Leg.Quantity = 0
	if _, err := b.PlaceOrder(context.Background(), req); !errs.IsCode(err, errs.CodeInvalid) {
		t.Fatalf("err = %v, want %s", err, errs.CodeInvalid)
	}
}

func TestThrottleInterruptedByContext(t *testing.T) {
	b := NewSimulated(WithThrottle(1))
	defer b.Close()

	ctx := context.Background()
	if _, err := b.PlaceOrder(ctx, testOrder()); err != nil {
		t.Fatalf("first order: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := b.PlaceOrder(cancelled, testOrder())
	if !errs.IsCode(err, errs.CodeRejected) {
		t.Fatalf("err = %v, want %s", err, errs.CodeRejected)
	}
}

func TestPlaceAfterCloseFails(t *testing.T) {
	b := NewSimulated()
	b.Close()
	if _, err := b.PlaceOrder(context.Background(), testOrder()); !errs.IsCode(err, errs.CodeUnavailable) {
		t.Fatalf("err = %v, want %s", err, errs.CodeUnavailable)
	}
}
