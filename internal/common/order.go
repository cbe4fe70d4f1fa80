package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrNonPositivePrice    = errors.New("limit price must be positive")
)

// Order is an immutable intent to trade. Price is exact decimal; it is
// ignored for market orders. Timestamp is assigned by the sender and is the
// price-time tie-break inside the book.
type Order struct {
	ID        string          `json:"id"`        // Order tracked uuid
	AgentID   string          `json:"agent_id"`  // Who owns this order
	Asset     Asset           `json:"asset"`     // Which book the order trades on
	Side      Side            `json:"side"`      // Order side
	Type      OrderType       `json:"type"`      // Limit or market
	Price     decimal.Decimal `json:"price"`     // Limiting price
	Quantity  uint64          `json:"quantity"`  // Total volume requested
	Timestamp time.Time       `json:"timestamp"` // Time of creation at the sender
}

// Validate rejects orders that must never enter matching.
func (order Order) Validate() error {
	if order.Quantity == 0 {
		return ErrNonPositiveQuantity
	}
	if order.Type == LimitOrder && !order.Price.IsPositive() {
		return ErrNonPositivePrice
	}
	return nil
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:        %s
AgentID:   %s
Asset:     %v
Side:      %v
Type:      %v
Price:     %s
Quantity:  %d
Timestamp: %v`,
		order.ID,
		order.AgentID,
		order.Asset,
		order.Side,
		order.Type,
		order.Price.String(),
		order.Quantity,
		order.Timestamp.Format(time.RFC3339), // Formatted for readability
	)
}
