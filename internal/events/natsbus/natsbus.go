// Package natsbus publishes and consumes ingestion events on a NATS
// JetStream stream.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/suPer8Hu/pdf-rag/internal/events"
)

const (
	StreamName    = "EVENTS"
	subjectPrefix = "events."
)

// Subject returns the subject an event type is published on.
func Subject(eventType string) string { return subjectPrefix + eventType }

type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ events.Publisher = (*Bus)(nil)

// Connect dials NATS and makes sure the EVENTS stream exists.
func Connect(ctx context.Context, url string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	return &Bus{nc: nc, js: js}, nil
}

func (b *Bus) Publish(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(e.Type)
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Handler processes one event. A returned error naks the message so
// JetStream redelivers it.
type Handler func(ctx context.Context, e events.Event) error

// Subscribe attaches a durable consumer for eventType. The returned stop
// function ends delivery.
func (b *Bus) Subscribe(ctx context.Context, eventType, durable string, h Handler, onErr func(error)) (stop func(), err error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: Subject(eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var e events.Event
		if err := json.Unmarshal(msg.Data(), &e); err != nil {
			onErr(fmt.Errorf("decode %s: %w", msg.Subject(), err))
			// malformed payloads are never going to parse
			_ = msg.Term()
			return
		}
		if err := h(ctx, e); err != nil {
			onErr(err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return cc.Stop, nil
}

func (b *Bus) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
