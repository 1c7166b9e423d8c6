// Package notify publishes pipeline events when the gateway generates a new
// audio artifact, so downstream consumers can react without polling the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NatsNotifier publishes AudioChunkCreatedEvent messages to a NATS subject.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
}

// NewNatsNotifier creates a notifier publishing on the given subject.
func NewNatsNotifier(natsConnection *nats.Conn, subject string) *NatsNotifier {
	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// AudioCreated publishes an event announcing a freshly generated artifact.
// The gateway serves single ad-hoc requests, so page bookkeeping is always
// a single chunk.
func (n *NatsNotifier) AudioCreated(_ context.Context, key string) error {
	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   key,
		PageNumber: 1,
		TotalPages: 1,
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio created event: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, eventData)
	if err != nil {
		return fmt.Errorf("failed to publish audio created event to subject '%s': %w", n.subject, err)
	}

	return nil
}
