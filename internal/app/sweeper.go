package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/domain"
)

// StuckRecordSweeper fails records that sat in PROCESSING past the maximum
// age. A worker crash between UpdateStatus and SetResult would otherwise
// leave the client polling forever.
type StuckRecordSweeper struct {
	records          domain.RecordRepository
	maxProcessingAge time.Duration
	interval         time.Duration
}

func NewStuckRecordSweeper(records domain.RecordRepository, maxProcessingAge, interval time.Duration) *StuckRecordSweeper {
	if records == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 15 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckRecordSweeper{
		records:          records,
		maxProcessingAge: maxProcessingAge,
		interval:         interval,
	}
}

// Run sweeps immediately and then on every tick until the context ends.
func (s *StuckRecordSweeper) Run(ctx context.Context) {
	if s == nil || s.records == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck record sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce marks one batch of overdue PROCESSING records as FAILED.
func (s *StuckRecordSweeper) SweepOnce(ctx context.Context) {
	tracer := otel.Tracer("records.sweeper")
	ctx, span := tracer.Start(ctx, "StuckRecordSweeper.SweepOnce")
	defer span.End()

	const pageSize = 100
	cutoff := time.Now().Add(-s.maxProcessingAge)
	span.SetAttributes(
		attribute.Int("records.page_size", pageSize),
		attribute.Float64("records.max_processing_age_seconds", s.maxProcessingAge.Seconds()),
	)

	marked := 0
	for {
		records, err := s.records.ListProcessingBefore(ctx, cutoff, pageSize)
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck record sweep failed to list records", slog.Any("error", err))
			return
		}
		if len(records) == 0 {
			break
		}

		markedThisPage := 0
		for _, rec := range records {
			msg := fmt.Sprintf("processing exceeded maximum age %v; marked failed by sweeper", s.maxProcessingAge)
			if err := s.records.UpdateStatus(ctx, rec.ID, domain.RecordFailed, &msg); err != nil {
				span.RecordError(err)
				slog.Error("stuck record sweep failed to update status",
					slog.String("record_id", rec.ID), slog.Any("error", err))
			} else {
				markedThisPage++
			}
		}
		marked += markedThisPage

		// A record marked FAILED leaves the next listing. When nothing moved
		// the same page would come back forever.
		if len(records) < pageSize || markedThisPage == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("records.marked_failed", marked))
	if marked > 0 {
		slog.Warn("stuck records marked failed", slog.Int("count", marked))
	}
}
