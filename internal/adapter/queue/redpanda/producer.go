// Package redpanda provides the Redpanda/Kafka transport for pipeline stage
// tasks. The producer is transactional; consumers read committed records
// only, so delivery is at-least-once without ghosts from aborted sends.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/domain"
)

// Topics names the stage topics in pipeline order.
type Topics struct {
	Orchestrate  string
	Presentation string
	Notification string
}

// Producer wraps a transactional Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topics Topics
	// Serializes transactions; franz-go allows one open transaction per
	// client.
	transactionChan chan struct{}
}

// NewProducer constructs a Producer and bootstraps the three stage topics.
func NewProducer(brokers []string, topics Topics) (*Producer, error) {
	return NewProducerWithTransactionalID(brokers, topics, "valorize-producer")
}

// NewProducerWithTransactionalID constructs a Producer with a custom
// transactional ID so tests can run several producers side by side.
func NewProducerWithTransactionalID(brokers []string, topics Topics, transactionalID string) (*Producer, error) {
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("transactional_id", transactionalID))
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	ctx := context.Background()
	for _, topic := range []string{topics.Orchestrate, topics.Presentation, topics.Notification} {
		if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
			slog.Warn("topic bootstrap failed, it may already exist",
				slog.String("topic", topic), slog.Any("error", err))
		}
	}

	return &Producer{
		client:          client,
		topics:          topics,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// EnqueueOrchestration enqueues the scoring/analysis stage for a record.
func (p *Producer) EnqueueOrchestration(ctx domain.Context, t domain.OrchestrationTask) error {
	return p.enqueue(ctx, p.topics.Orchestrate, "orchestrate", t.RecordID, t)
}

// EnqueuePresentation enqueues the presentation-generation stage.
func (p *Producer) EnqueuePresentation(ctx domain.Context, t domain.PresentationTask) error {
	return p.enqueue(ctx, p.topics.Presentation, "presentation", t.RecordID, t)
}

// EnqueueNotification enqueues the email notification stage.
func (p *Producer) EnqueueNotification(ctx domain.Context, t domain.NotificationTask) error {
	return p.enqueue(ctx, p.topics.Notification, "notification", t.RecordID, t)
}

func (p *Producer) enqueue(ctx domain.Context, topic, stage, recordID string, payload any) error {
	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("marshal payload: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		// Record id as key keeps one record's stages ordered per partition.
		Key:   []byte(recordID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "record_id", Value: []byte(recordID)},
			{Key: "stage", Value: []byte(stage)},
		},
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	observability.EnqueueStage(stage)
	slog.Info("stage enqueued",
		slog.String("topic", topic),
		slog.String("stage", stage),
		slog.String("record_id", recordID))
	return nil
}

// Ping verifies broker connectivity, for readiness checks.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
