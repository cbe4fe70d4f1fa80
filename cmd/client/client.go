package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"vanir/internal/bus"
	"vanir/internal/common"
	"vanir/internal/news"
)

func main() {
	// 1. CLI Parameter Parsing
	redisURL := flag.String("redis", "redis://localhost:6379", "Bus endpoint URL")
	agent := flag.String("agent", "", "Agent id (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'watch']")

	// Order Parameters
	assetStr := flag.String("asset", "WOOD", "Asset: WOOD|FOOD|IRON|GOLD|DOLAR")
	sideStr := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	priceStr := flag.String("price", "100.0", "Limit price (decimal)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	flag.Parse()

	// Validation
	if *agent == "" {
		fmt.Println("Error: -agent is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	opts, err := redis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Invalid bus endpoint %s: %v", *redisURL, err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		asset, err := common.ParseAsset(strings.ToUpper(*assetStr))
		if err != nil {
			log.Fatalf("Invalid asset: %v", err)
		}

		side := common.Bid
		if s := strings.ToLower(*sideStr); s == "ask" || s == "sell" {
			side = common.Ask
		}

		orderType := common.LimitOrder
		if strings.ToLower(*typeStr) == "market" {
			orderType = common.MarketOrder
		}

		price, err := decimal.NewFromString(*priceStr)
		if err != nil {
			log.Fatalf("Invalid price %q: %v", *priceStr, err)
		}

		for _, q := range parseQuantities(*qtyStr) {
			err := placeOrder(ctx, client, common.Order{
				AgentID:   *agent,
				Asset:     asset,
				Side:      side,
				Type:      orderType,
				Price:     price,
				Quantity:  q,
				Timestamp: time.Now(),
			})
			if err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			} else {
				fmt.Printf("-> Sent %v %v: %d %v @ %s\n", orderType, side, q, asset, price)
			}
			// Small optional sleep so the engine sees a distinct sequence.
			time.Sleep(5 * time.Millisecond)
		}

	case "watch":
		pubsub := client.Subscribe(ctx, bus.TickerChannel, news.Channel)
		defer pubsub.Close()

		fmt.Println("Watching the ticker. Ctrl+C to stop.")
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			fmt.Printf("[%s] %s\n", msg.Channel, msg.Payload)
		}

	default:
		fmt.Printf("Unknown action %q\n", *action)
		flag.Usage()
		os.Exit(1)
	}
}

// placeOrder publishes the order intent on the orders channel. The engine
// assigns the id; there is no acknowledgement beyond the ticker.
func placeOrder(ctx context.Context, client *redis.Client, order common.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return client.Publish(ctx, bus.OrdersChannel, payload).Err()
}

// parseQuantities handles "10" or "10,20,50".
func parseQuantities(s string) []uint64 {
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			log.Printf("Skipping invalid quantity %q: %v", part, err)
			continue
		}
		out = append(out, q)
	}
	return out
}
