package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vanir/internal/common"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidOrder     = errors.New("invalid order")
)

// wireOrder is the only dynamic surface of the engine: an inbound order that
// has not been validated yet. Type and Timestamp are pointers so absent values
// can be defaulted; an empty id is treated as absent.
type wireOrder struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	Asset     string          `json:"asset"`
	Side      string          `json:"side"`
	Type      *string         `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint64          `json:"quantity"`
	Timestamp *wireTime       `json:"timestamp"`
}

// wireTime accepts ISO-8601 timestamps with or without a zone offset; some
// publishers emit naive local timestamps.
type wireTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// DecodeOrder turns a raw bus payload into a validated order, assigning the
// id and timestamp when the sender left them out. Failures map onto the
// malformed-message/invalid-order taxonomy; the caller drops both kinds and
// keeps serving.
func DecodeOrder(payload []byte) (common.Order, error) {
	var wire wireOrder
	if err := json.Unmarshal(payload, &wire); err != nil {
		return common.Order{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if wire.AgentID == "" {
		return common.Order{}, fmt.Errorf("%w: missing agent_id", ErrInvalidOrder)
	}
	asset, err := common.ParseAsset(wire.Asset)
	if err != nil {
		return common.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	side, err := common.ParseSide(wire.Side)
	if err != nil {
		return common.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	orderType := common.LimitOrder
	if wire.Type != nil {
		orderType, err = common.ParseOrderType(*wire.Type)
		if err != nil {
			return common.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
	}

	order := common.Order{
		ID:       wire.ID,
		AgentID:  wire.AgentID,
		Asset:    asset,
		Side:     side,
		Type:     orderType,
		Price:    wire.Price,
		Quantity: wire.Quantity,
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if wire.Timestamp != nil {
		order.Timestamp = wire.Timestamp.Time
	} else {
		order.Timestamp = time.Now()
	}

	if err := order.Validate(); err != nil {
		return common.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return order, nil
}
