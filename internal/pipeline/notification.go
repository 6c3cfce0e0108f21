package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/domain"
)

// HandleNotification emails the report links once a presentation completed.
// Delivery is best-effort: exhaustion of the retry budget is logged, never
// escalated, because the record itself is already fully served.
func (s *Stages) HandleNotification(ctx context.Context, t domain.NotificationTask) error {
	tracer := otel.Tracer("pipeline.notification")
	ctx, span := tracer.Start(ctx, "HandleNotification")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", t.RecordID))

	rec, err := s.records.Get(ctx, t.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("notification task for unknown record dropped", slog.String("record_id", t.RecordID))
			return nil
		}
		return fmt.Errorf("op=pipeline.notification: %w", err)
	}

	res := rec.Result
	if res == nil || res.GammaStatus != domain.GammaCompleted || res.GammaURL == "" {
		slog.Info("notification skipped, no published presentation", slog.String("record_id", rec.ID))
		return nil
	}

	if s.mailer == nil {
		slog.Info("mailer not configured, skipping notification", slog.String("record_id", rec.ID))
		return nil
	}

	observability.StartStage("notification")
	defer observability.CompleteStage("notification")

	account, err := s.accounts.Get(ctx, rec.AccountID)
	if err != nil {
		slog.Error("notification aborted, account unavailable",
			slog.String("record_id", rec.ID), slog.Any("error", err))
		return nil
	}

	msg := domain.ReportReadyEmail{
		To:          account.Email,
		CompanyName: account.CompanyName,
		DeckURL:     res.GammaURL,
		DetailURL:   s.detailURL(rec.ID),
	}

	for attempt := 0; attempt < s.cfg.NotifyMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timeAfter(s.retryDelay(attempt + 1)):
			}
		}
		if err := s.mailer.SendReportReady(ctx, msg); err == nil {
			slog.Info("notification sent",
				slog.String("record_id", rec.ID),
				slog.String("to", account.Email))
			return nil
		} else {
			slog.Warn("notification attempt failed",
				slog.String("record_id", rec.ID),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", s.cfg.NotifyMaxAttempts),
				slog.Any("error", err))
		}
	}

	slog.Error("notification retries exhausted", slog.String("record_id", rec.ID))
	return nil
}
