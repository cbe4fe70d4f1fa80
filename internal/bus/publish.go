package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"vanir/internal/common"
)

// publishTrades pushes each trade onto the ticker channel in execution
// order, then refreshes the per-asset observer keys. Publication is fire and
// forget: a failure is logged, never retried or buffered.
func (s *Service) publishTrades(ctx context.Context, trades []common.Trade) {
	for _, trade := range trades {
		payload, err := json.Marshal(trade)
		if err != nil {
			log.Error().Err(err).Str("trade", trade.ID).Msg("unable to serialize trade")
			continue
		}

		if err := s.redis.Publish(ctx, TickerChannel, payload).Err(); err != nil {
			log.Error().Err(err).Str("trade", trade.ID).Msg("unable to publish trade")
			continue
		}

		lastTradeKey := fmt.Sprintf("market:last_trade:%v", trade.Asset)
		if err := s.redis.Set(ctx, lastTradeKey, payload, 0).Err(); err != nil {
			log.Error().Err(err).Str("key", lastTradeKey).Msg("unable to record last trade")
		}
		priceKey := fmt.Sprintf("market:price:%v", trade.Asset)
		if err := s.redis.Set(ctx, priceKey, trade.Price.String(), 0).Err(); err != nil {
			log.Error().Err(err).Str("key", priceKey).Msg("unable to record last price")
		}

		log.Info().
			Stringer("asset", trade.Asset).
			Uint64("quantity", trade.Quantity).
			Str("price", trade.Price.String()).
			Str("buyer", trade.BuyerAgentID).
			Str("seller", trade.SellerAgentID).
			Msg("trade executed")
	}
}
