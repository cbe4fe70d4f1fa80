package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanir/internal/common"
	"vanir/internal/engine"
)

// --- Setup & Helpers --------------------------------------------------------

func newBook() *engine.OrderBook {
	return engine.NewOrderBook(common.Wood)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// limit builds a limit order whose timestamp is the per-order sequence
// number, mirroring how senders assign monotone timestamps.
func limit(agent string, side common.Side, priceStr string, qty uint64, seq int64) common.Order {
	return common.Order{
		ID:        fmt.Sprintf("order-%s-%d", agent, seq),
		AgentID:   agent,
		Asset:     common.Wood,
		Side:      side,
		Type:      common.LimitOrder,
		Price:     price(priceStr),
		Quantity:  qty,
		Timestamp: time.Unix(seq, 0),
	}
}

func market(agent string, side common.Side, qty uint64, seq int64) common.Order {
	return common.Order{
		ID:        fmt.Sprintf("order-%s-%d", agent, seq),
		AgentID:   agent,
		Asset:     common.Wood,
		Side:      side,
		Type:      common.MarketOrder,
		Quantity:  qty,
		Timestamp: time.Unix(seq, 0),
	}
}

func mustProcess(t *testing.T, book *engine.OrderBook, order common.Order) []common.Trade {
	t.Helper()
	trades, err := book.ProcessOrder(order)
	require.NoError(t, err)
	return trades
}

func assertPrice(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, actual.Equal(price(expected)),
		"expected price %s, got %s", expected, actual)
}

// assertNotCrossed checks the standing invariant after any call.
func assertNotCrossed(t *testing.T, book *engine.OrderBook) {
	t.Helper()
	bestBid, bidOk := book.BestBid()
	bestAsk, askOk := book.BestAsk()
	if bidOk && askOk {
		assert.True(t, bestBid.LessThan(bestAsk),
			"book crossed: best bid %s >= best ask %s", bestBid, bestAsk)
	}
}

// --- Scenario tests ---------------------------------------------------------

func TestProcessOrder_SimpleCross(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 10, 1))
	trades := mustProcess(t, book, limit("B", common.Bid, "5.00", 10, 2))

	require.Len(t, trades, 1)
	assert.Equal(t, "B", trades[0].BuyerAgentID)
	assert.Equal(t, "A", trades[0].SellerAgentID)
	assert.Equal(t, uint64(10), trades[0].Quantity)
	assert.Equal(t, common.Wood, trades[0].Asset)
	assertPrice(t, "5.00", trades[0].Price)

	assert.True(t, book.Empty(common.Bid))
	assert.True(t, book.Empty(common.Ask))
}

func TestProcessOrder_PartialFillResidualRests(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 10, 1))
	trades := mustProcess(t, book, limit("B", common.Bid, "5.00", 4, 2))

	require.Len(t, trades, 1)
	assert.Equal(t, uint64(4), trades[0].Quantity)
	assertPrice(t, "5.00", trades[0].Price)

	assert.True(t, book.Empty(common.Bid))
	_, asks := book.Depth(0)
	require.Len(t, asks, 1)
	assertPrice(t, "5.00", asks[0].Price)
	assert.Equal(t, uint64(6), asks[0].Quantity)
	assert.Equal(t, 1, asks[0].Orders)
}

func TestProcessOrder_WalkTheBookWithImprovement(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 5, 1))
	mustProcess(t, book, limit("B", common.Ask, "5.50", 5, 2))
	trades := mustProcess(t, book, limit("C", common.Bid, "6.00", 10, 3))

	require.Len(t, trades, 2)

	// C pays the makers' prices, not its own limit.
	assert.Equal(t, "C", trades[0].BuyerAgentID)
	assert.Equal(t, "A", trades[0].SellerAgentID)
	assert.Equal(t, uint64(5), trades[0].Quantity)
	assertPrice(t, "5.00", trades[0].Price)

	assert.Equal(t, "C", trades[1].BuyerAgentID)
	assert.Equal(t, "B", trades[1].SellerAgentID)
	assert.Equal(t, uint64(5), trades[1].Quantity)
	assertPrice(t, "5.50", trades[1].Price)

	// Walk-the-book monotonicity for a bid taker.
	assert.True(t, trades[0].Price.LessThanOrEqual(trades[1].Price))

	assert.True(t, book.Empty(common.Bid))
	assert.True(t, book.Empty(common.Ask))
}

func TestProcessOrder_TimePriorityAtEqualPrice(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("X", common.Bid, "5.00", 5, 1))
	mustProcess(t, book, limit("Y", common.Bid, "5.00", 5, 2))
	trades := mustProcess(t, book, limit("Z", common.Ask, "5.00", 5, 3))

	require.Len(t, trades, 1)
	assert.Equal(t, "X", trades[0].BuyerAgentID)
	assert.Equal(t, "Z", trades[0].SellerAgentID)
	assertPrice(t, "5.00", trades[0].Price)

	// Y remains at the top of the bids.
	bids, _ := book.Depth(0)
	require.Len(t, bids, 1)
	assert.Equal(t, uint64(5), bids[0].Quantity)

	followUp := mustProcess(t, book, limit("W", common.Ask, "5.00", 5, 4))
	require.Len(t, followUp, 1)
	assert.Equal(t, "Y", followUp[0].BuyerAgentID)
}

func TestProcessOrder_MarketConsumesThenVanishes(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 3, 1))
	trades := mustProcess(t, book, market("M", common.Bid, 10, 2))

	require.Len(t, trades, 1)
	assert.Equal(t, "M", trades[0].BuyerAgentID)
	assert.Equal(t, "A", trades[0].SellerAgentID)
	assert.Equal(t, uint64(3), trades[0].Quantity)
	assertPrice(t, "5.00", trades[0].Price)

	// The residual 7 is discarded, never rested.
	assert.True(t, book.Empty(common.Bid))
	assert.True(t, book.Empty(common.Ask))
}

func TestProcessOrder_MarketAgainstEmptyBook(t *testing.T) {
	book := newBook()

	trades := mustProcess(t, book, market("M", common.Ask, 10, 1))

	assert.Empty(t, trades)
	assert.True(t, book.Empty(common.Bid))
	assert.True(t, book.Empty(common.Ask))
}

func TestProcessOrder_SelfTradePrevention(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 5, 1))
	trades := mustProcess(t, book, limit("A", common.Bid, "5.00", 5, 2))

	// The resting ask is cancelled without a trade and the incoming bid
	// rests in full.
	assert.Empty(t, trades)
	assert.True(t, book.Empty(common.Ask))
	bids, _ := book.Depth(0)
	require.Len(t, bids, 1)
	assertPrice(t, "5.00", bids[0].Price)
	assert.Equal(t, uint64(5), bids[0].Quantity)
}

func TestProcessOrder_SelfTradeSkipsToNextMaker(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 5, 1))
	mustProcess(t, book, limit("B", common.Ask, "5.50", 5, 2))
	trades := mustProcess(t, book, limit("A", common.Bid, "6.00", 5, 3))

	// A's own ask is cancelled; the bid then trades with B at B's price.
	require.Len(t, trades, 1)
	assert.Equal(t, "A", trades[0].BuyerAgentID)
	assert.Equal(t, "B", trades[0].SellerAgentID)
	assertPrice(t, "5.50", trades[0].Price)
	assert.True(t, book.Empty(common.Ask))
}

// --- Property tests ---------------------------------------------------------

func TestProcessOrder_BookNeverCrossed(t *testing.T) {
	book := newBook()

	orders := []common.Order{
		limit("A", common.Ask, "5.00", 10, 1),
		limit("B", common.Bid, "4.90", 5, 2),
		limit("C", common.Bid, "5.10", 3, 3),
		limit("D", common.Ask, "4.80", 20, 4),
		market("E", common.Bid, 7, 5),
		limit("F", common.Bid, "4.95", 12, 6),
		limit("G", common.Ask, "4.95", 12, 7),
		market("H", common.Ask, 50, 8),
	}
	for _, order := range orders {
		mustProcess(t, book, order)
		assertNotCrossed(t, book)
	}
}

func TestProcessOrder_QuantityConservation(t *testing.T) {
	book := newBook()

	// Limit-only stream: every unit is either resting or traded.
	orders := []common.Order{
		limit("A", common.Ask, "5.00", 10, 1),
		limit("B", common.Bid, "5.00", 4, 2),
		limit("C", common.Bid, "5.20", 9, 3),
		limit("D", common.Ask, "5.10", 8, 4),
		limit("E", common.Bid, "5.10", 6, 5),
		limit("F", common.Ask, "4.50", 30, 6),
	}

	var incoming, traded uint64
	for _, order := range orders {
		incoming += order.Quantity
		for _, trade := range mustProcess(t, book, order) {
			traded += trade.Quantity
		}
	}

	var resting uint64
	bids, asks := book.Depth(0)
	for _, level := range append(bids, asks...) {
		resting += level.Quantity
	}

	// Each trade consumes one unit from both the taker and the maker.
	assert.Equal(t, incoming, resting+2*traded)
}

func TestProcessOrder_MakerPriceRule(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Ask, "5.00", 5, 1))
	mustProcess(t, book, limit("B", common.Ask, "5.25", 5, 2))

	trades := mustProcess(t, book, limit("C", common.Bid, "9.99", 10, 3))
	require.Len(t, trades, 2)
	for _, trade := range trades {
		assert.False(t, trade.Price.Equal(price("9.99")),
			"taker limit must never set the trade price")
	}
	assertPrice(t, "5.00", trades[0].Price)
	assertPrice(t, "5.25", trades[1].Price)
}

func TestProcessOrder_AskTakerMonotonicity(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Bid, "5.50", 4, 1))
	mustProcess(t, book, limit("B", common.Bid, "5.25", 4, 2))
	mustProcess(t, book, limit("C", common.Bid, "5.00", 4, 3))

	trades := mustProcess(t, book, limit("D", common.Ask, "4.00", 12, 4))
	require.Len(t, trades, 3)
	for i := 1; i < len(trades); i++ {
		assert.True(t, trades[i].Price.LessThanOrEqual(trades[i-1].Price),
			"ask taker prices must be non-increasing")
	}
}

func TestProcessOrder_NoSelfTrades(t *testing.T) {
	book := newBook()

	orders := []common.Order{
		limit("A", common.Ask, "5.00", 10, 1),
		limit("B", common.Ask, "5.00", 10, 2),
		limit("A", common.Bid, "5.00", 15, 3),
		market("B", common.Bid, 10, 4),
	}
	for _, order := range orders {
		for _, trade := range mustProcess(t, book, order) {
			assert.NotEqual(t, trade.BuyerAgentID, trade.SellerAgentID)
		}
	}
}

func TestProcessOrder_RejectsInvalidOrders(t *testing.T) {
	book := newBook()
	mustProcess(t, book, limit("A", common.Ask, "5.00", 10, 1))

	zeroQty := limit("B", common.Bid, "5.00", 0, 2)
	_, err := book.ProcessOrder(zeroQty)
	assert.ErrorIs(t, err, common.ErrNonPositiveQuantity)

	zeroPrice := limit("B", common.Bid, "0", 5, 3)
	_, err = book.ProcessOrder(zeroPrice)
	assert.ErrorIs(t, err, common.ErrNonPositivePrice)

	// Rejected orders leave no trace: the ask is intact.
	_, asks := book.Depth(0)
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(10), asks[0].Quantity)
	assert.True(t, book.Empty(common.Bid))
}

func TestPush_OrdersLevelByTimestamp(t *testing.T) {
	book := newBook()

	// A late-arriving bid with an earlier sender timestamp still gains
	// time priority within the level.
	mustProcess(t, book, limit("X", common.Bid, "5.00", 5, 7))
	mustProcess(t, book, limit("Y", common.Bid, "5.00", 5, 3))

	trades := mustProcess(t, book, limit("Z", common.Ask, "5.00", 5, 8))
	require.Len(t, trades, 1)
	assert.Equal(t, "Y", trades[0].BuyerAgentID)
}

func TestDepth_AggregatesLevels(t *testing.T) {
	book := newBook()

	mustProcess(t, book, limit("A", common.Bid, "4.90", 10, 1))
	mustProcess(t, book, limit("B", common.Bid, "4.90", 15, 2))
	mustProcess(t, book, limit("C", common.Bid, "4.80", 5, 3))
	mustProcess(t, book, limit("D", common.Ask, "5.10", 7, 4))

	bids, asks := book.Depth(1)
	require.Len(t, bids, 1)
	assertPrice(t, "4.90", bids[0].Price)
	assert.Equal(t, uint64(25), bids[0].Quantity)
	assert.Equal(t, 2, bids[0].Orders)

	require.Len(t, asks, 1)
	assertPrice(t, "5.10", asks[0].Price)

	bids, _ = book.Depth(0)
	assert.Len(t, bids, 2)
}
