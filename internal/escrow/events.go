package escrow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fundraiser/internal/models"
)

// EventSink receives every escrow event emitted by the service
type EventSink interface {
	Send(event models.EscrowEvent) error
}

// QueuePublisher is the publishing side of the broker
type QueuePublisher interface {
	Publish(queueName string, message interface{}) error
}

// BrokerSink publishes events as JSON to a queue
type BrokerSink struct {
	publisher QueuePublisher
	queue     string
}

func NewBrokerSink(publisher QueuePublisher, queue string) *BrokerSink {
	return &BrokerSink{publisher: publisher, queue: queue}
}

func (s *BrokerSink) Send(event models.EscrowEvent) error {
	return s.publisher.Publish(s.queue, event)
}

// emitter fans an event out to every sink. A failing sink is logged and
// does not stop the others.
type emitter struct {
	mu    sync.RWMutex
	sinks []EventSink
}

func (e *emitter) add(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

func (e *emitter) emit(eventType, campaign string, payload models.JSONMap, at time.Time) models.EscrowEvent {
	event := models.EscrowEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Campaign:   campaign,
		Payload:    payload,
		OccurredAt: at.UTC(),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, sink := range e.sinks {
		if err := sink.Send(event); err != nil {
			log.WithFields(log.Fields{
				"event":    eventType,
				"campaign": campaign,
			}).Warnf("failed to deliver event: %v", err)
		}
	}
	return event
}
