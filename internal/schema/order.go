package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderID identifies a brokerage order.
type OrderID = uuid.UUID

// OrderState tracks an order through the abstract brokerage contract.
type OrderState string

const (
	// OrderPending marks an order accepted but not yet filled.
	OrderPending OrderState = "pending"
	// OrderFilled marks a completed order.
	OrderFilled OrderState = "filled"
	// OrderCancelled marks an order cancelled before fill.
	OrderCancelled OrderState = "cancelled"
	// OrderRejected marks an order refused by the brokerage.
	OrderRejected OrderState = "rejected"
)

// OrderRequest submits one leg of a strategy to the brokerage boundary.
type OrderRequest struct {
	StrategyID StrategyID `json:"strategyId"`
	LegIndex   int        `json:"legIndex"`
	Leg        Leg        `json:"leg"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Fill reports an executed order. Fills are inputs to the engine; entry
// premiums are never computed internally.
type Fill struct {
	OrderID    OrderID         `json:"orderId"`
	StrategyID StrategyID      `json:"strategyId"`
	LegIndex   int             `json:"legIndex"`
	Premium    decimal.Decimal `json:"premium"`
	FilledAt   time.Time       `json:"filledAt"`
}
