// Package events ships gate rejections to Kafka for abuse monitoring. Emitting
// never blocks a request and never changes a gate decision.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"marketplace-gate/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, event models.GateEvent) error
}

// MessageProducer is the slice of client.KafkaProducer used here.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.GateEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal gate event: %w", err)
	}
	headers := map[string]string{"event_type": string(event.Type)}
	return p.producer.ProduceMessage(ctx, p.topic, []byte(event.Key), value, headers)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.GateEvent) error { return nil }

// Emitter queues events on a bounded buffer drained by a single goroutine.
// When the buffer is full the event is dropped.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan models.GateEvent
	done    chan struct{}
	dropped atomic.Int64
}

func NewEmitter(publisher Publisher, buffer int, logger *zap.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Emitter{
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
		queue:     make(chan models.GateEvent, buffer),
		done:      make(chan struct{}),
	}
	go e.run()

	return e
}

// Emit queues event and reports whether it was accepted.
func (e *Emitter) Emit(event models.GateEvent) bool {
	if e == nil {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return false
	}

	select {
	case e.queue <- event:
		return true
	default:
		e.dropped.Add(1)
		e.logger.Debug("gate event dropped, buffer full",
			zap.String("type", string(event.Type)),
			zap.String("path", event.Path))
		return false
	}
}

func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be published.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.done
}

func (e *Emitter) run() {
	defer close(e.done)

	for event := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn("failed to publish gate event",
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
		cancel()
	}
}
