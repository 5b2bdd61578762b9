// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package events carries the in-process event bus. Two topics exist:
// run.requested wakes the recommendation worker, history.changed
// invalidates cached user profiles.
package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/jmawebb/cinematch/internal/logging"
)

// Topics.
const (
	TopicRunRequested   = "run.requested"
	TopicHistoryChanged = "history.changed"
)

// correlationIDMetadataKey carries the request's correlation id on the
// message so the worker can continue the same trace.
const correlationIDMetadataKey = "correlation_id"

// RunRequested asks the worker to execute a pending run.
type RunRequested struct {
	RunID  string `json:"run_id"`
	UserID int64  `json:"user_id"`
}

// HistoryChanged announces that a user's diary, ratings or watchlist
// changed and their cached profile is stale.
type HistoryChanged struct {
	UserID int64 `json:"user_id"`
}

// Bus is a GoChannel-backed pub/sub for in-process events. Messages
// are not persistent; pending runs are recovered from the database at
// startup, not from the bus.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the bus.
func NewBus() *Bus {
	// Persistent delivery closes the publish-before-subscribe gap at
	// startup and redelivers on worker restart; the run claim guard
	// makes redelivery idempotent.
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		Persistent:          true,
	}, newWatermillLogger())
	return &Bus{pubsub: pubsub}
}

// PublishRunRequested emits a run.requested event. The context's
// correlation id travels in the message metadata.
func (b *Bus) PublishRunRequested(ctx context.Context, ev RunRequested) error {
	return b.publish(ctx, TopicRunRequested, ev)
}

// PublishHistoryChanged emits a history.changed event.
func (b *Bus) PublishHistoryChanged(ctx context.Context, ev HistoryChanged) error {
	return b.publish(ctx, TopicHistoryChanged, ev)
}

// SubscribeRunRequested returns the worker's message stream.
func (b *Bus) SubscribeRunRequested(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicRunRequested)
}

// SubscribeHistoryChanged returns the profile invalidation stream.
func (b *Bus) SubscribeHistoryChanged(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicHistoryChanged)
}

// Close shuts the bus down; subscriber channels are closed.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(correlationIDMetadataKey, id)
	}

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// DecodeRunRequested parses a run.requested message.
func DecodeRunRequested(msg *message.Message) (RunRequested, error) {
	var ev RunRequested
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode run.requested payload: %w", err)
	}
	return ev, nil
}

// DecodeHistoryChanged parses a history.changed message.
func DecodeHistoryChanged(msg *message.Message) (HistoryChanged, error) {
	var ev HistoryChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode history.changed payload: %w", err)
	}
	return ev, nil
}

// MessageCorrelationID returns the correlation id carried by a
// message, or empty string.
func MessageCorrelationID(msg *message.Message) string {
	return msg.Metadata.Get(correlationIDMetadataKey)
}
