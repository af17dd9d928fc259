package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Subscriber delivers ticket events as they are published.
type Subscriber interface {
	// Subscribe calls fn for every new event on subject until ctx is done.
	// An empty subject means every ticket event.
	Subscribe(ctx context.Context, subject string, fn func(*TicketEvent)) error

	Close() error
}

// JetStreamSubscriber reads ticket events through ephemeral JetStream consumers.
type JetStreamSubscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSubscriber connects to NATS for reading ticket events.
func NewSubscriber(natsURL string, logger *slog.Logger) (*JetStreamSubscriber, error) {
	nc, js, err := connect(natsURL, "ticketchain-subscriber")
	if err != nil {
		return nil, err
	}

	if err := ensureStream(js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS subscriber initialized", "nats_url", natsURL)

	return &JetStreamSubscriber{nc: nc, js: js, logger: logger}, nil
}

// Subscribe creates an ephemeral consumer delivering only new messages and
// blocks until ctx is done.
func (s *JetStreamSubscriber) Subscribe(ctx context.Context, subject string, fn func(*TicketEvent)) error {
	if subject == "" {
		subject = StreamSubjects
	}

	cons, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		var event TicketEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			s.logger.WarnContext(ctx, "failed to unmarshal ticket event", "error", err)
			return
		}
		fn(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}

// StreamInfo returns the state and configuration of the ticket stream.
func (s *JetStreamSubscriber) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := s.js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}
	return info, nil
}

// Close closes the NATS connection.
func (s *JetStreamSubscriber) Close() error {
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS subscriber closed")
	}
	return nil
}
