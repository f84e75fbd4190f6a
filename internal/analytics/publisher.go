package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/kafka"
)

const publishTimeout = 2 * time.Second

// Publisher sends analytics events to Kafka. Events are keyed by tenant so
// one tenant's stream stays ordered within a partition. All methods are
// fire-and-forget: failures are logged, never returned.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher wraps a Kafka producer for analytics publishing.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "analytics-publisher"),
	}
}

// PublishSearch emits a SearchEvent asynchronously.
func (p *Publisher) PublishSearch(event SearchEvent) {
	if p == nil {
		return
	}
	event.Type = EventSearch
	event.Timestamp = time.Now().UTC()
	p.publish(event.TenantID, event)
}

// PublishIndex emits an IndexEvent asynchronously.
func (p *Publisher) PublishIndex(event IndexEvent) {
	if p == nil {
		return
	}
	if event.Type == "" {
		event.Type = EventIndex
	}
	event.Timestamp = time.Now().UTC()
	p.publish(event.TenantID, event)
}

func (p *Publisher) publish(key string, value any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.producer.Publish(ctx, kafka.Event{Key: key, Value: value}); err != nil {
			p.logger.Warn("dropping analytics event", "tenant", key, "error", err)
		}
	}()
}

// Close flushes the underlying producer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
