package common

import (
	"encoding/json"
	"fmt"
)

// Asset is the closed set of instruments the exchange trades. Books are
// created per asset at startup; extending the set is a build-time change.
type Asset int

const (
	Wood Asset = iota
	Food
	Iron
	Gold
	Dolar
)

// Assets lists every tradeable asset, in book creation order.
var Assets = []Asset{Wood, Food, Iron, Gold, Dolar}

var assetNames = map[Asset]string{
	Wood:  "WOOD",
	Food:  "FOOD",
	Iron:  "IRON",
	Gold:  "GOLD",
	Dolar: "DOLAR",
}

func (a Asset) String() string {
	name, ok := assetNames[a]
	if !ok {
		return fmt.Sprintf("Asset(%d)", int(a))
	}
	return name
}

// ParseAsset maps a wire name onto an Asset.
func ParseAsset(s string) (Asset, error) {
	for asset, name := range assetNames {
		if name == s {
			return asset, nil
		}
	}
	return 0, fmt.Errorf("unknown asset %q", s)
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAsset(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type Side int

const (
	// Bid is an intention to buy.
	Bid Side = iota
	// Ask is an intention to sell.
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "BID":
		return Bid, nil
	case "ASK":
		return Ask, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSide(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type OrderType int

const (
	// Limit orders are an order to buy or sell at a specified price or
	// better. Limit orders may rest on the order book until filled.
	LimitOrder OrderType = iota
	// Market orders are instructions to buy or sell immediately against
	// whatever is resting. No execution price guarantees; any residual
	// left after sweeping the book is discarded.
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	}
	return fmt.Sprintf("OrderType(%d)", int(t))
}

func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "LIMIT":
		return LimitOrder, nil
	case "MARKET":
		return MarketOrder, nil
	}
	return 0, fmt.Errorf("unknown order type %q", s)
}

func (t OrderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OrderType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOrderType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
