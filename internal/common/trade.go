package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade accounts for the two parties who matched. The price is always the
// resting (maker) order's price; the timestamp is assigned by the engine at
// match time.
type Trade struct {
	ID            string          `json:"id"`
	BuyerAgentID  string          `json:"buyer_agent_id"`
	SellerAgentID string          `json:"seller_agent_id"`
	Asset         Asset           `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	Quantity      uint64          `json:"quantity"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`ID:        %s
Buyer:     %s
Seller:    %s
Asset:     %v
Price:     %s
Quantity:  %d
Timestamp: %v`,
		t.ID,
		t.BuyerAgentID,
		t.SellerAgentID,
		t.Asset,
		t.Price.String(),
		t.Quantity,
		t.Timestamp.Format(time.RFC3339),
	)
}
