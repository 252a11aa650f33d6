package escrow

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"fundraiser/internal/models"
)

// EventStore persists delivered events
type EventStore interface {
	SaveEvent(ctx context.Context, event *models.EscrowEvent) error
}

// EventRecorder handles broker deliveries of escrow events
type EventRecorder struct {
	store EventStore
}

func NewEventRecorder(store EventStore) *EventRecorder {
	return &EventRecorder{store: store}
}

// Handle decodes and stores one delivery. Malformed bodies are logged and
// acknowledged, since redelivering them cannot succeed.
func (r *EventRecorder) Handle(ctx context.Context, body []byte) error {
	var event models.EscrowEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Errorf("Failed to unmarshal event: %v", err)
		return nil
	}
	if event.Type == "" || event.Campaign == "" {
		log.Warnf("Dropping incomplete event: %s", string(body))
		return nil
	}

	fields := log.Fields{
		"event":    event.Type,
		"campaign": event.Campaign,
		"id":       event.ID.String(),
	}
	for k, v := range event.Payload {
		if k == "amount" || k == "contributor" || k == "signature" {
			fields[k] = v
		}
	}
	log.WithFields(fields).Info("Escrow event received")

	if err := r.store.SaveEvent(ctx, &event); err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}
	return nil
}
