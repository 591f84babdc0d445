package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultMaxLen = 100000

type ClickProducer struct {
	client     *redis.Client
	streamName string
	maxLen     int64
}

// NewClickProducer creates a producer that appends to streamName, trimming
// the stream to roughly the most recent entries.
func NewClickProducer(client *redis.Client, streamName string) *ClickProducer {
	return &ClickProducer{
		client:     client,
		streamName: streamName,
		maxLen:     defaultMaxLen,
	}
}

func (p *ClickProducer) Publish(ctx context.Context, event *ClickEvent) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamName,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.fields(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish click event: %w", err)
	}

	return nil
}

func (p *ClickProducer) StreamLength(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.streamName).Result()
}
