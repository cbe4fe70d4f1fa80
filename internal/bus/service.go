package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"vanir/internal/common"
	"vanir/internal/engine"
)

const (
	OrdersChannel = "market:orders"
	TickerChannel = "market:ticker"
	StatusChannel = "system:status"

	StatusRunning = "RUNNING"
	StatusPaused  = "PAUSED"

	backoffBase   = 100 * time.Millisecond
	backoffCap    = 5 * time.Second
	backoffJitter = 0.2
)

type state int

const (
	stateConnecting state = iota
	stateSubscribed
	stateError
	stateDraining
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "CONNECTING"
	case stateSubscribed:
		return "SUBSCRIBED"
	case stateError:
		return "ERROR"
	case stateDraining:
		return "DRAINING"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Exchange is the matching core the adapter feeds. Satisfied by
// *engine.Exchange.
type Exchange interface {
	ProcessOrder(order common.Order) ([]common.Trade, error)
}

// Service consumes order intents from the bus and publishes the resulting
// trades. It owns the transport subscription; the exchange is owned by the
// process and only ever written from this loop, so matching needs no locks.
type Service struct {
	redis    *redis.Client
	exchange Exchange
	state    state
	paused   bool
}

func NewService(client *redis.Client, exchange Exchange) *Service {
	return &Service{
		redis:    client,
		exchange: exchange,
	}
}

// Run drives the ingress state machine until the context is cancelled.
// A nil return is a clean drain; any error is fatal for the process.
func (s *Service) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = backoffBase
	retry.MaxInterval = backoffCap
	retry.RandomizationFactor = backoffJitter
	retry.MaxElapsedTime = 0

	for {
		s.transition(stateConnecting)
		pubsub := s.redis.Subscribe(ctx, OrdersChannel, StatusChannel)

		// Wait for the subscription ack before declaring ourselves live.
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return s.drain()
			}
			if !s.backoffWait(ctx, retry, err) {
				return s.drain()
			}
			continue
		}

		s.transition(stateSubscribed)
		log.Info().Str("channel", OrdersChannel).Msg("listening for orders")
		retry.Reset()

		// Supervisors may have parked the pause switch in a key while we
		// were away; honor it before reading any orders.
		if status, err := s.redis.Get(ctx, StatusChannel).Result(); err == nil {
			s.setStatus(status)
		}

		err := s.consume(ctx, pubsub)
		pubsub.Close()
		switch {
		case ctx.Err() != nil:
			return s.drain()
		case errors.Is(err, engine.ErrCrossedBook):
			// A corrupted book must not continue serving.
			return err
		default:
			if !s.backoffWait(ctx, retry, err) {
				return s.drain()
			}
		}
	}
}

// consume reads messages until the transport fails or the context ends.
// Matching is synchronous: each order runs to completion before the next
// message is read, which is what gives every book its serial order.
func (s *Service) consume(ctx context.Context, pubsub *redis.PubSub) error {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}

		switch msg.Channel {
		case StatusChannel:
			s.setStatus(msg.Payload)
		case OrdersChannel:
			if s.paused {
				log.Debug().Msg("paused, dropping order message")
				continue
			}
			if err := s.handleOrder(ctx, []byte(msg.Payload)); err != nil {
				return err
			}
		}
	}
}

// handleOrder decodes, matches and publishes. Only an invariant violation
// propagates; bad input is logged and dropped.
func (s *Service) handleOrder(ctx context.Context, payload []byte) error {
	order, err := DecodeOrder(payload)
	if err != nil {
		log.Error().Err(err).Str("payload", string(payload)).Msg("dropping order message")
		return nil
	}

	log.Info().
		Stringer("side", order.Side).
		Stringer("asset", order.Asset).
		Uint64("quantity", order.Quantity).
		Str("price", order.Price.String()).
		Str("agent", order.AgentID).
		Msg("order received")

	trades, err := s.exchange.ProcessOrder(order)
	if err != nil {
		if errors.Is(err, engine.ErrCrossedBook) {
			return err
		}
		log.Error().Err(err).Str("order", order.ID).Msg("order rejected")
		return nil
	}

	// Trades already emitted are published even if shutdown begins
	// mid-batch; the drain finishes the current message first.
	s.publishTrades(context.WithoutCancel(ctx), trades)
	return nil
}

func (s *Service) setStatus(payload string) {
	switch payload {
	case StatusPaused:
		if !s.paused {
			log.Warn().Msg("order intake paused")
		}
		s.paused = true
	case StatusRunning:
		if s.paused {
			log.Info().Msg("order intake resumed")
		}
		s.paused = false
	default:
		log.Error().Str("status", payload).Msg("unknown system status")
	}
}

// backoffWait sleeps for the next bounded, jittered interval. Returns false
// once the context is done.
func (s *Service) backoffWait(ctx context.Context, retry *backoff.ExponentialBackOff, cause error) bool {
	s.transition(stateError)
	wait := retry.NextBackOff()
	log.Error().Err(cause).Dur("retryIn", wait).Msg("transport error, reconnecting")
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

func (s *Service) drain() error {
	s.transition(stateDraining)
	log.Info().Msg("bus adapter drained")
	return nil
}

func (s *Service) transition(next state) {
	s.state = next
	log.Info().Stringer("state", next).Msg("bus adapter state")
}
