package updates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
)

var (
	ErrQueueFull = errors.New("updates: publish queue full")
	ErrClosed    = errors.New("updates: publisher closed")
)

// Envelope is the record written to the updates topic.
type Envelope struct {
	Kind    string    `json:"kind"`
	Key     string    `json:"key,omitempty"`
	TS      time.Time `json:"ts"`
	Payload Effect    `json:"payload"`
}

// Publisher is a Sink that writes effects to a Kafka topic without blocking
// the request path. Effects are keyed by Effect.Key so one collection's
// updates stay ordered within a partition.
type Publisher struct {
	topic   string
	events  chan *sarama.ProducerMessage
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("updates: create async producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, queueSize, logger), nil
}

func NewPublisherWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan *sarama.ProducerMessage, queueSize),
		prod:    prod,
		logger:  logger,
		now:     time.Now,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for msg := range p.events {
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Error("updates: producer error", "topic", p.topic, "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Apply(_ context.Context, e Effect) error {
	b, err := json.Marshal(Envelope{Kind: e.Kind(), Key: e.Key(), TS: p.now().UTC(), Payload: e})
	if err != nil {
		observability.IncUpdatePublished(e.Kind(), err)
		return fmt.Errorf("updates: marshal %s: %w", e.Kind(), err)
	}
	msg := &sarama.ProducerMessage{Topic: p.topic, Value: sarama.ByteEncoder(b)}
	if k := e.Key(); k != "" {
		msg.Key = sarama.StringEncoder(k)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.events <- msg:
		observability.IncUpdatePublished(e.Kind(), nil)
		return nil
	default:
		observability.IncUpdatePublished(e.Kind(), ErrQueueFull)
		return ErrQueueFull
	}
}

// Close drains queued effects into the producer and closes it.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("updates: close producer: %w", err)
	}
	return nil
}
