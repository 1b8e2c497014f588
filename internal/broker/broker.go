// Package broker defines the brokerage boundary: order placement for
// strategy legs and delivery of the resulting fills. Entry premiums always
// originate here, never inside the engine.
package broker

import (
	"context"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Broker places and cancels leg orders. Fills surface through the channel
// returned by Fills; the channel closes when the broker shuts down.
type Broker interface {
	PlaceOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderID, error)
	CancelOrder(ctx context.Context, id schema.OrderID) error
	Fills() <-chan schema.Fill
	Close() error
}
