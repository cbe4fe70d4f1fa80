package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vanir/internal/common"
)

var (
	// ErrCrossedBook means matching left best bid >= best ask. The book is
	// corrupt and must not continue serving.
	ErrCrossedBook = errors.New("book crossed after matching")
)

// BookEntry wraps a resting limit order with its unfilled remainder.
// Remaining is always > 0; exhausted entries are removed eagerly.
type BookEntry struct {
	Order     common.Order
	Remaining uint64
}

// PriceLevel holds the queue of entries resting at a single price, ordered
// by timestamp, oldest first.
type PriceLevel struct {
	Price   decimal.Decimal
	Entries []*BookEntry
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook is the two-sided book for one asset. The best entry of a side is
// the front of the minimum level: highest price for bids, lowest for asks.
type OrderBook struct {
	asset common.Asset

	bids *PriceLevels
	asks *PriceLevels
}

func NewOrderBook(asset common.Asset) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &OrderBook{
		asset: asset,
		bids:  bids,
		asks:  asks,
	}
}

func (book *OrderBook) levels(side common.Side) *PriceLevels {
	if side == common.Bid {
		return book.bids
	}
	return book.asks
}

// Empty reports whether a side has no resting entries.
func (book *OrderBook) Empty(side common.Side) bool {
	return book.levels(side).Len() == 0
}

// peekBest returns the highest-priority resting entry on the side.
func (book *OrderBook) peekBest(side common.Side) (*BookEntry, bool) {
	level, ok := book.levels(side).MinMut()
	if !ok {
		return nil, false
	}
	return level.Entries[0], true
}

// popBest removes the highest-priority entry, dropping its level once empty.
func (book *OrderBook) popBest(side common.Side) {
	levels := book.levels(side)
	level, ok := levels.MinMut()
	if !ok {
		return
	}
	level.Entries = level.Entries[1:]
	if len(level.Entries) == 0 {
		levels.Delete(level)
	}
}

// push rests an entry on its side's level queue. Senders assign timestamps
// monotonically so this is normally an append; a late arrival still lands in
// timestamp order, after existing entries with the same timestamp.
func (book *OrderBook) push(entry *BookEntry) {
	levels := book.levels(entry.Order.Side)

	// Levels comparator only accounts for price, so a bare price probe
	// finds the level.
	level, ok := levels.GetMut(&PriceLevel{Price: entry.Order.Price})
	if !ok {
		levels.Set(&PriceLevel{
			Price:   entry.Order.Price,
			Entries: []*BookEntry{entry},
		})
		return
	}

	i := len(level.Entries)
	for i > 0 && level.Entries[i-1].Order.Timestamp.After(entry.Order.Timestamp) {
		i--
	}
	level.Entries = append(level.Entries, nil)
	copy(level.Entries[i+1:], level.Entries[i:])
	level.Entries[i] = entry
}

// ProcessOrder executes an incoming order against the opposite side under
// price-time priority and returns the trades in execution order. A limit
// residual rests on the book; a market residual is discarded.
func (book *OrderBook) ProcessOrder(order common.Order) ([]common.Trade, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	var trades []common.Trade
	remaining := order.Quantity
	opposite := order.Side.Opposite()

	for remaining > 0 {
		top, ok := book.peekBest(opposite)
		if !ok {
			break
		}

		// Self-trading prevention: the resting order is cancelled
		// outright, no trade is emitted.
		if top.Order.AgentID == order.AgentID {
			book.popBest(opposite)
			continue
		}

		if !crosses(order, top.Order.Price) {
			break
		}

		// The maker sets the price: a taker walks the book at resting
		// prices, never at its own limit.
		execQty := min(remaining, top.Remaining)
		trade := common.Trade{
			ID:        uuid.NewString(),
			Asset:     book.asset,
			Price:     top.Order.Price,
			Quantity:  execQty,
			Timestamp: time.Now(),
		}
		if order.Side == common.Bid {
			trade.BuyerAgentID = order.AgentID
			trade.SellerAgentID = top.Order.AgentID
		} else {
			trade.BuyerAgentID = top.Order.AgentID
			trade.SellerAgentID = order.AgentID
		}
		trades = append(trades, trade)

		remaining -= execQty
		top.Remaining -= execQty
		if top.Remaining == 0 {
			book.popBest(opposite)
		}
	}

	if remaining > 0 && order.Type == common.LimitOrder {
		book.push(&BookEntry{Order: order, Remaining: remaining})
	}

	if book.crossed() {
		return trades, ErrCrossedBook
	}
	return trades, nil
}

// crosses reports whether the incoming order trades against a resting price.
// Market orders always cross; they stand in for the +/-infinity match price.
func crosses(order common.Order, restingPrice decimal.Decimal) bool {
	if order.Type == common.MarketOrder {
		return true
	}
	if order.Side == common.Bid {
		return order.Price.GreaterThanOrEqual(restingPrice)
	}
	return order.Price.LessThanOrEqual(restingPrice)
}

func (book *OrderBook) crossed() bool {
	bestBid, bidOk := book.BestBid()
	bestAsk, askOk := book.BestAsk()
	if !bidOk || !askOk {
		return false
	}
	return bestBid.GreaterThanOrEqual(bestAsk)
}

// BestBid returns the highest resting buy price.
func (book *OrderBook) BestBid() (decimal.Decimal, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return level.Price, true
}

// BestAsk returns the lowest resting sell price.
func (book *OrderBook) BestAsk() (decimal.Decimal, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return level.Price, true
}

// DepthLevel is one aggregated price level of a book side.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity uint64
	Orders   int
}

// Depth returns up to n aggregated levels per side, best first. n <= 0 means
// the whole book.
func (book *OrderBook) Depth(n int) (bids, asks []DepthLevel) {
	collect := func(levels *PriceLevels) []DepthLevel {
		var out []DepthLevel
		levels.Scan(func(level *PriceLevel) bool {
			aggregated := DepthLevel{
				Price:  level.Price,
				Orders: len(level.Entries),
			}
			for _, entry := range level.Entries {
				aggregated.Quantity += entry.Remaining
			}
			out = append(out, aggregated)
			return n <= 0 || len(out) < n
		})
		return out
	}
	return collect(book.bids), collect(book.asks)
}
