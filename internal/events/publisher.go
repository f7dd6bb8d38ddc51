package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"driveo/pkg/kafka"
	kafka_config "driveo/pkg/kafka/config"
	kafka_middleware "driveo/pkg/kafka/middleware"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
)

const source = "driveo-api"

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Handler consumes events, either in-process or behind a Kafka consumer.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// KafkaPublisher routes booking events to the bookings topic and vehicle
// events to the vehicles topic.
type KafkaPublisher struct {
	bookings *kafka.Producer
	vehicles *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(cfg *kafka_config.Config, metrics *kafka_middleware.Metrics, log *logger.Logger) (*KafkaPublisher, error) {
	bookings, err := kafka.NewProducer(cfg, cfg.BookingsTopic, cfg.DLQTopic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create bookings producer: %w", err)
	}
	vehicles, err := kafka.NewProducer(cfg, cfg.VehiclesTopic, cfg.DLQTopic, log)
	if err != nil {
		_ = bookings.Close()
		return nil, fmt.Errorf("failed to create vehicles producer: %w", err)
	}

	for _, p := range []*kafka.Producer{bookings, vehicles} {
		p.Use(kafka_middleware.LoggingProducerMiddleware(log))
		if metrics != nil {
			p.Use(metrics.Producer())
		}
	}

	return &KafkaPublisher{bookings: bookings, vehicles: vehicles, log: log}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Key()).
		WithValue(event).
		WithEventID(event.ID).
		WithEventType(event.Type).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return err
	}

	producer := p.vehicles
	if event.IsBooking() {
		producer = p.bookings
	}
	if err := producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	var firstErr error
	for _, producer := range []*kafka.Producer{p.bookings, p.vehicles} {
		if err := producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LocalPublisher hands events to a Handler on a background goroutine. It is
// used when Kafka is disabled.
type LocalPublisher struct {
	handler Handler
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewLocalPublisher(handler Handler, timeout time.Duration, log *logger.Logger) *LocalPublisher {
	return &LocalPublisher{handler: handler, timeout: timeout, log: log}
}

func (p *LocalPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return kafka.ErrProducerClosed
	}

	// The request context ends with the response, so keep only its values.
	base := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		hctx, cancel := context.WithTimeout(base, p.timeout)
		defer cancel()

		if err := p.handler.Handle(hctx, event); err != nil {
			p.log.Error("Local event handler failed",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)
		}
	}()
	return nil
}

// Close stops accepting events and waits for in-flight handlers.
func (p *LocalPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// KafkaHandler adapts h to a consumer callback. Undecodable messages are
// permanent failures and go straight to the DLQ. Handler errors are retried
// unless the handler already classified them.
func KafkaHandler(h Handler) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if v, ok := msg.GetHeader(kafka.HeaderSchemaVersion); ok && v != SchemaVersion {
			return kafka.NewPermanentError("unsupported schema version "+v, nil)
		}
		event, err := Decode(msg.Value)
		if err != nil {
			return kafka.NewPermanentError("invalid event payload", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			var kerr *kafka.KafkaError
			if errors.As(err, &kerr) {
				return err
			}
			return kafka.NewTransientError("event handler failed", err)
		}
		return nil
	}
}
