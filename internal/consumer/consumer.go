package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"storefront-service/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "consumer").Logger()

const DefaultGroupID = "storefront-cache-invalidator"

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
}

// Consumer drops storefront stock cache entries for products named in
// order.created events. The order path invalidates directly as well, this
// catches the invalidations it failed to make. Offsets are committed only
// once the cache accepted the invalidation.
type Consumer struct {
	reader     MessageReader
	stockCache service.StockCache
	retryDelay time.Duration
}

func NewConsumer(reader MessageReader, stockCache service.StockCache) *Consumer {
	return &Consumer{reader: reader, stockCache: stockCache, retryDelay: 2 * time.Second}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Error reading order event")
			if !c.wait(ctx) {
				return nil
			}
			continue
		}

		for {
			err := c.processMessage(ctx, msg)
			if err == nil {
				break
			}
			logger.Error().Err(err).Msgf("Error processing order event at offset %d", msg.Offset)
			if !c.wait(ctx) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msgf("Error committing offset %d", msg.Offset)
		}
	}
}

func (c *Consumer) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryDelay):
		return true
	}
}

// processMessage returns an error only for failures worth retrying.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event service.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Warn().Err(err).Msgf("Skipping malformed order event at offset %d", msg.Offset)
		return nil
	}
	if event.Order == nil {
		logger.Warn().Msgf("Skipping order event %s without an order", event.EventID)
		return nil
	}

	switch event.Type {
	case "order." + service.OrderCreatedEvent:
		ids := make([]string, 0, len(event.Order.Items))
		for _, item := range event.Order.Items {
			ids = append(ids, item.ProductID.Hex())
		}
		if err := c.stockCache.Invalidate(ctx, ids...); err != nil {
			return fmt.Errorf("invalidate stock cache: %w", err)
		}
		logger.Debug().Msgf("Invalidated stock cache for order %s", event.Order.ID.Hex())
	case "order." + service.OrderStatusUpdatedEvent:
		// status changes leave stock alone
	default:
		logger.Warn().Msgf("Unknown order event type: %s", event.Type)
	}
	return nil
}
