package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/domain"
)

// HandlePresentation drives one record's deck generation: create the
// generation, poll it within the budget, settle gamma_status through the
// repository CAS, and chain the notification stage.
func (s *Stages) HandlePresentation(ctx context.Context, t domain.PresentationTask) error {
	tracer := otel.Tracer("pipeline.presentation")
	ctx, span := tracer.Start(ctx, "HandlePresentation")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", t.RecordID))

	rec, err := s.records.Get(ctx, t.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("presentation task for unknown record dropped", slog.String("record_id", t.RecordID))
			return nil
		}
		return fmt.Errorf("op=pipeline.presentation: %w", err)
	}

	res := rec.Result
	if res == nil || res.PromptGamma == "" {
		slog.Warn("presentation task without deck prompt dropped", slog.String("record_id", rec.ID))
		return nil
	}
	if res.GammaStatus != domain.GammaPending {
		slog.Info("presentation already settled",
			slog.String("record_id", rec.ID),
			slog.String("gamma_status", string(res.GammaStatus)))
		return nil
	}

	// Advisory claim against concurrent duplicate deliveries. Fail-open on
	// claim errors: the CAS at settlement still guarantees a single winner.
	if s.claimer != nil {
		_, budget := s.cfg.GammaPolling()
		ttl := time.Duration(s.cfg.GammaMaxAttempts)*budget + time.Minute
		claimed, err := s.claimer.Claim(ctx, "presentation:"+rec.ID, ttl)
		if err != nil {
			slog.Warn("presentation claim unavailable, proceeding",
				slog.String("record_id", rec.ID), slog.Any("error", err))
		} else if !claimed {
			slog.Info("presentation already claimed by another worker", slog.String("record_id", rec.ID))
			return nil
		} else {
			defer func() {
				if err := s.claimer.Release(context.WithoutCancel(ctx), "presentation:"+rec.ID); err != nil {
					slog.Warn("presentation claim release failed",
						slog.String("record_id", rec.ID), slog.Any("error", err))
				}
			}()
		}
	}

	observability.StartStage("presentation")
	if err := s.generateDeck(ctx, rec.ID, res.PromptGamma); err != nil {
		observability.FailStage("presentation")
		if settled, failErr := s.records.FailPresentation(ctx, rec.ID); failErr != nil {
			slog.Error("failed to settle presentation as failed",
				slog.String("record_id", rec.ID), slog.Any("error", failErr))
		} else if settled {
			slog.Warn("presentation failed",
				slog.String("record_id", rec.ID), slog.Any("error", err))
		}
		return nil
	}
	observability.CompleteStage("presentation")
	return nil
}

// generateDeck runs the outer retry budget around create+poll rounds.
// Terminal provider answers abort the budget; everything else burns one
// attempt and backs off uniform(2,5) × 2^attempt.
func (s *Stages) generateDeck(ctx context.Context, recordID, prompt string) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.GammaMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timeAfter(s.retryDelay(1 << attempt)):
			}
		}

		url, err := s.deckRound(ctx, recordID, prompt)
		if err == nil {
			return s.settleCompleted(ctx, recordID, url)
		}
		lastErr = err
		if errors.Is(err, domain.ErrUpstreamTerminal) || errors.Is(err, domain.ErrConfigMissing) {
			return err
		}
		slog.Warn("deck generation round failed",
			slog.String("record_id", recordID),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", s.cfg.GammaMaxAttempts),
			slog.Any("error", err))
	}
	return lastErr
}

// deckRound performs one create+poll cycle and returns the published url.
func (s *Stages) deckRound(ctx context.Context, recordID, prompt string) (string, error) {
	genID, err := s.deck.CreateGeneration(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("create generation: %w", err)
	}
	slog.Info("deck generation started",
		slog.String("record_id", recordID),
		slog.String("generation_id", genID))

	interval, budget := s.cfg.GammaPolling()
	deadline := time.Now().Add(budget)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeAfter(interval):
		}

		gen, err := s.deck.GetGeneration(ctx, genID)
		if err != nil {
			// A rejected poll request cannot recover; network trouble can.
			if errors.Is(err, domain.ErrUpstreamTerminal) {
				return "", fmt.Errorf("poll generation: %w", err)
			}
			slog.Warn("deck poll failed, will retry",
				slog.String("record_id", recordID),
				slog.String("generation_id", genID),
				slog.Any("error", err))
		} else {
			switch strings.ToLower(gen.Status) {
			case "completed":
				if gen.URL == "" {
					return "", fmt.Errorf("generation %s completed without url: %w", genID, domain.ErrSchemaInvalid)
				}
				return gen.URL, nil
			case "failed", "error":
				return "", fmt.Errorf("generation %s reported status %s", genID, gen.Status)
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("generation %s did not finish within %s: %w", genID, budget, domain.ErrUpstreamTimeout)
		}
	}
}

func (s *Stages) settleCompleted(ctx context.Context, recordID, url string) error {
	settled, err := s.records.CompletePresentation(ctx, recordID, url)
	if err != nil {
		return fmt.Errorf("settle presentation: %w", err)
	}
	if !settled {
		slog.Info("presentation settled elsewhere, skipping notification",
			slog.String("record_id", recordID))
		return nil
	}
	if err := s.queue.EnqueueNotification(ctx, domain.NotificationTask{RecordID: recordID}); err != nil {
		// The deck exists and is stored; losing the email is the lesser
		// harm. The status endpoint still serves the url.
		slog.Error("failed to enqueue notification stage",
			slog.String("record_id", recordID), slog.Any("error", err))
	}
	return nil
}
