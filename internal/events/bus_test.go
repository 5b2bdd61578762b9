// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jmawebb/cinematch/internal/logging"
)

func newGarbageMessage() *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte("{not json"))
}

func TestRunRequestedRoundTrip(t *testing.T) {
	bus := NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.SubscribeRunRequested(ctx)
	if err != nil {
		t.Fatalf("SubscribeRunRequested failed: %v", err)
	}

	pubCtx := logging.ContextWithCorrelationID(context.Background(), "corr1234")
	want := RunRequested{RunID: "run-1", UserID: 42}
	if err := bus.PublishRunRequested(pubCtx, want); err != nil {
		t.Fatalf("PublishRunRequested failed: %v", err)
	}

	select {
	case msg := <-msgs:
		got, err := DecodeRunRequested(msg)
		if err != nil {
			t.Fatalf("DecodeRunRequested failed: %v", err)
		}
		if got != want {
			t.Errorf("event = %+v, want %+v", got, want)
		}
		if id := MessageCorrelationID(msg); id != "corr1234" {
			t.Errorf("correlation id = %q, want corr1234", id)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run.requested")
	}
}

func TestHistoryChangedRoundTrip(t *testing.T) {
	bus := NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.SubscribeHistoryChanged(ctx)
	if err != nil {
		t.Fatalf("SubscribeHistoryChanged failed: %v", err)
	}

	if err := bus.PublishHistoryChanged(context.Background(), HistoryChanged{UserID: 7}); err != nil {
		t.Fatalf("PublishHistoryChanged failed: %v", err)
	}

	select {
	case msg := <-msgs:
		got, err := DecodeHistoryChanged(msg)
		if err != nil {
			t.Fatalf("DecodeHistoryChanged failed: %v", err)
		}
		if got.UserID != 7 {
			t.Errorf("user id = %d, want 7", got.UserID)
		}
		if id := MessageCorrelationID(msg); id != "" {
			t.Errorf("correlation id = %q, want empty without context id", id)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for history.changed")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	bus := NewBus()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.SubscribeRunRequested(ctx)
	if err != nil {
		t.Fatalf("SubscribeRunRequested failed: %v", err)
	}

	if err := bus.pubsub.Publish(TopicRunRequested, newGarbageMessage()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-msgs:
		if _, err := DecodeRunRequested(msg); err == nil {
			t.Error("DecodeRunRequested accepted garbage payload")
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
