package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is one stream entry as seen by a worker. Payload holds the
// serialized JobSubmissionEvent. Reclaimed marks an entry taken over
// from another consumer that read it but never acked it.
type Message struct {
	ID        string
	Payload   []byte
	Reclaimed bool
}

// Consumer reads submission events through a Redis consumer group, so
// multiple workers share the backlog. A ">" read only ever delivers
// brand-new entries, so each Read also runs an XAUTOCLAIM pass: entries
// sitting unacked in the pending list longer than minIdle (another
// consumer crashed, or a store outage left them unacked) are taken over
// and handed to the caller marked Reclaimed.
type Consumer struct {
	client  redis.UniversalClient
	stream  string
	group   string
	name    string
	minIdle time.Duration
}

// NewConsumer creates a consumer identified by name within the group.
// minIdle is the pending-entry age before this consumer claims entries
// from others; it should exceed the longest expected processing time.
func NewConsumer(client redis.UniversalClient, stream, group, name string, minIdle time.Duration) *Consumer {
	return &Consumer{
		client:  client,
		stream:  stream,
		group:   group,
		name:    name,
		minIdle: minIdle,
	}
}

// EnsureGroup creates the consumer group (and the stream if missing).
// Safe to call on every startup.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Read returns stale pending entries first, then blocks up to the
// given duration waiting for new entries. An empty slice means the
// wait timed out.
func (c *Consumer) Read(ctx context.Context, block time.Duration) ([]Message, error) {
	if reclaimed, err := c.reclaim(ctx); err != nil {
		return nil, err
	} else if len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", c.stream, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			messages = append(messages, toMessage(entry, false))
		}
	}
	return messages, nil
}

// reclaim takes over pending entries idle longer than minIdle. Without
// this pass, an entry read by a consumer that died before acking would
// never be delivered again.
func (c *Consumer) reclaim(ctx context.Context) ([]Message, error) {
	if c.minIdle <= 0 {
		return nil, nil
	}

	entries, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  c.minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to reclaim pending entries from stream %s: %w", c.stream, err)
	}

	var messages []Message
	for _, entry := range entries {
		messages = append(messages, toMessage(entry, true))
	}
	return messages, nil
}

func toMessage(entry redis.XMessage, reclaimed bool) Message {
	payload, _ := entry.Values["payload"].(string)
	return Message{
		ID:        entry.ID,
		Payload:   []byte(payload),
		Reclaimed: reclaimed,
	}
}

// Ack marks an entry as processed so it will not be redelivered.
func (c *Consumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", id, err)
	}
	return nil
}
