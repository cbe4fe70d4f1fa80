package engine

import (
	"errors"

	"github.com/rs/zerolog/log"

	"vanir/internal/common"
)

var ErrUnknownAsset = errors.New("no book for asset")

// Exchange routes orders to per-asset books. It is the single entry point of
// the matching core. There is no cross-asset matching and no locking: calls
// are serial within the process.
type Exchange struct {
	Books map[common.Asset]*OrderBook
}

func New(assets ...common.Asset) *Exchange {
	exchange := &Exchange{
		Books: make(map[common.Asset]*OrderBook),
	}

	for _, asset := range assets {
		exchange.Books[asset] = NewOrderBook(asset)
	}

	return exchange
}

// ProcessOrder dispatches the order to its asset's book.
func (exchange *Exchange) ProcessOrder(order common.Order) ([]common.Trade, error) {
	book, ok := exchange.Books[order.Asset]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return book.ProcessOrder(order)
}

// LogBook dumps the aggregate state of every book, for debugging.
func (exchange *Exchange) LogBook() {
	for _, asset := range common.Assets {
		book, ok := exchange.Books[asset]
		if !ok {
			continue
		}
		bids, asks := book.Depth(0)
		event := log.Info().
			Stringer("asset", asset).
			Int("bidLevels", len(bids)).
			Int("askLevels", len(asks))
		if best, ok := book.BestBid(); ok {
			event = event.Str("bestBid", best.String())
		}
		if best, ok := book.BestAsk(); ok {
			event = event.Str("bestAsk", best.String())
		}
		event.Msg("book state")
	}
}
