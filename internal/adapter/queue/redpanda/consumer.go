package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/valorize-app/valorize/internal/domain"
)

// StageHandlers holds the per-stage processing callbacks. Each handler owns
// its own retry policy and failure marking; a returned error only means the
// delivery could not be acted on at all.
type StageHandlers struct {
	Orchestrate  func(ctx context.Context, t domain.OrchestrationTask) error
	Presentation func(ctx context.Context, t domain.PresentationTask) error
	Notification func(ctx context.Context, t domain.NotificationTask) error
}

// Consumer reads stage tasks from the three topics and dispatches them to a
// bounded worker pool.
type Consumer struct {
	client   *kgo.Client
	topics   Topics
	handlers StageHandlers
	groupID  string
	workers  int
	taskCh   chan *kgo.Record
}

// NewConsumer constructs a Consumer for the given group. It bootstraps the
// topics so a worker can start before the first submission arrives.
func NewConsumer(brokers []string, groupID string, topics Topics, handlers StageHandlers, workers int) (*Consumer, error) {
	slog.Info("creating redpanda consumer", slog.Any("brokers", brokers), slog.String("group_id", groupID))
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if workers <= 0 {
		workers = 1
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics.Orchestrate, topics.Presentation, topics.Notification),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}

	ctx := context.Background()
	for _, topic := range []string{topics.Orchestrate, topics.Presentation, topics.Notification} {
		if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
			slog.Warn("topic bootstrap failed, it may already exist",
				slog.String("topic", topic), slog.Any("error", err))
		}
	}

	return &Consumer{
		client:   client,
		topics:   topics,
		handlers: handlers,
		groupID:  groupID,
		workers:  workers,
		taskCh:   make(chan *kgo.Record, workers*2),
	}, nil
}

// Start polls for records and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("starting redpanda consumer",
		slog.String("group_id", c.groupID),
		slog.Int("workers", c.workers))

	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, i)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("redpanda consumer shutting down")
			c.client.Close()
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if fe.Err == context.Canceled {
					continue
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			time.Sleep(2 * time.Second)
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			select {
			case c.taskCh <- record:
			case <-ctx.Done():
			}
		})
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-c.taskCh:
			if record == nil {
				return
			}
			if err := c.dispatch(ctx, record); err != nil {
				slog.Error("stage dispatch failed",
					slog.Int("worker_id", id),
					slog.String("topic", record.Topic),
					slog.Int64("offset", record.Offset),
					slog.Any("error", err))
			}
			// Mark regardless of outcome: handlers persist their own
			// failure state, and an unmarked record would only replay the
			// same outcome forever.
			c.client.MarkCommitRecords(record)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, record *kgo.Record) error {
	switch record.Topic {
	case c.topics.Orchestrate:
		var t domain.OrchestrationTask
		if err := json.Unmarshal(record.Value, &t); err != nil {
			return fmt.Errorf("decode orchestration task: %w", err)
		}
		return c.handlers.Orchestrate(ctx, t)
	case c.topics.Presentation:
		var t domain.PresentationTask
		if err := json.Unmarshal(record.Value, &t); err != nil {
			return fmt.Errorf("decode presentation task: %w", err)
		}
		return c.handlers.Presentation(ctx, t)
	case c.topics.Notification:
		var t domain.NotificationTask
		if err := json.Unmarshal(record.Value, &t); err != nil {
			return fmt.Errorf("decode notification task: %w", err)
		}
		return c.handlers.Notification(ctx, t)
	default:
		return fmt.Errorf("unknown topic %s", record.Topic)
	}
}
