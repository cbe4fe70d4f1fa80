package news

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	Channel    = "market:news"
	HistoryKey = "market:news_history"
)

// Scenarios the broadcaster cycles through at random. Free-form text; the
// engine never interprets it.
var scenarios = []string{
	"A severe drought has hit the plantations. FOOD production will drop by half.",
	"A new lumber milling technique was discovered. WOOD will become abundant.",
	"Rumours of war are driving demand for emergency FOOD stockpiles.",
	"The government announced construction subsidies. WOOD demand should surge.",
	"All quiet in the market. Good weather and stable harvests expected.",
}

// Event is the payload broadcast on the news channel.
type Event struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster periodically publishes a random scenario on the news channel
// and appends it to the history list. It shares the engine's Redis client
// but is otherwise independent of the matching core.
type Broadcaster struct {
	redis    *redis.Client
	interval time.Duration
}

func NewBroadcaster(client *redis.Client, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		redis:    client,
		interval: interval,
	}
}

func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.broadcast(ctx)
		}
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) {
	event := Event{
		Type:      "NEWS",
		Content:   scenarios[rand.Intn(len(scenarios))],
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("unable to serialize news event")
		return
	}
	if err := b.redis.Publish(ctx, Channel, payload).Err(); err != nil {
		log.Error().Err(err).Msg("unable to publish news")
		return
	}
	if err := b.redis.LPush(ctx, HistoryKey, payload).Err(); err != nil {
		log.Error().Err(err).Msg("unable to record news history")
	}

	log.Info().Str("content", event.Content).Msg("breaking news")
}
