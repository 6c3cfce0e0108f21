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

// HandleOrchestration runs the deterministic scoring and the generative
// analysis for one record, then hands off to the presentation stage.
//
// Failure policy: the model is allowed to fail, the repository is not. A
// failed analysis degrades the record to a success without scenario data;
// any persistence failure marks the record FAILED best-effort.
func (s *Stages) HandleOrchestration(ctx context.Context, t domain.OrchestrationTask) error {
	tracer := otel.Tracer("pipeline.orchestrate")
	ctx, span := tracer.Start(ctx, "HandleOrchestration")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", t.RecordID))

	rec, err := s.records.Get(ctx, t.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("orchestration task for unknown record dropped", slog.String("record_id", t.RecordID))
			return nil
		}
		return fmt.Errorf("op=pipeline.orchestrate: %w", err)
	}

	// Redelivery of an already settled record is a no-op.
	if rec.Status == domain.RecordSuccess || rec.Status == domain.RecordFailed {
		slog.Info("orchestration skipped, record already settled",
			slog.String("record_id", rec.ID),
			slog.String("status", string(rec.Status)))
		return nil
	}

	observability.StartStage("orchestrate")
	if err := s.orchestrate(ctx, rec); err != nil {
		observability.FailStage("orchestrate")
		// Catch-all: leave a FAILED mark so the record never reads as stuck.
		msg := err.Error()
		if updErr := s.records.UpdateStatus(ctx, rec.ID, domain.RecordFailed, &msg); updErr != nil {
			slog.Error("failed to mark record failed",
				slog.String("record_id", rec.ID),
				slog.Any("error", updErr))
		}
		return fmt.Errorf("op=pipeline.orchestrate: %w", err)
	}
	observability.CompleteStage("orchestrate")
	return nil
}

func (s *Stages) orchestrate(ctx context.Context, rec domain.ValuationRecord) error {
	if err := s.records.UpdateStatus(ctx, rec.ID, domain.RecordProcessing, nil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	res, err := s.engine.Evaluate(rec.Inputs)
	if err != nil {
		return fmt.Errorf("score inputs: %w", err)
	}
	observability.ObserveValuation(res.ValuationBase)

	account, err := s.accounts.Get(ctx, rec.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	analysis, analysisErr := s.analyzeWithRetry(ctx, domain.AnalysisRequest{
		CompanyName:   account.CompanyName,
		Sector:        rec.Inputs.SetorAtuacao,
		Indicators:    res.Indicadores,
		Criteria:      res.ValoresCriterios,
		BaseValuation: res.ValuationBase,
	})
	if analysisErr != nil {
		// Degraded success: scores are valid even when the model is not.
		slog.Warn("analysis failed, storing degraded result",
			slog.String("record_id", rec.ID),
			slog.Any("error", analysisErr))
		res.AgentError = analysisErr.Error()
		// Without a deck prompt the presentation can never run.
		res.GammaStatus = domain.GammaFailed
	} else {
		res.Cenarios = analysis.Cenarios
		res.PontosFortes = analysis.PontosFortes
		res.PontosAtencao = analysis.PontosAtencao
		res.RecomendacaoInvestidor = analysis.RecomendacaoInvestidor
		res.PromptGamma = analysis.PromptGamma
		res.GammaStatus = domain.GammaPending
	}

	if err := s.records.SetResult(ctx, rec.ID, res, domain.RecordSuccess); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	if err := s.accounts.IncrementUsage(ctx, rec.AccountID); err != nil {
		// Usage tracking must not undo a processed record.
		slog.Error("failed to increment usage",
			slog.String("account_id", rec.AccountID),
			slog.Any("error", err))
	}

	if analysisErr == nil {
		if err := s.queue.EnqueuePresentation(ctx, domain.PresentationTask{RecordID: rec.ID}); err != nil {
			slog.Error("failed to enqueue presentation stage",
				slog.String("record_id", rec.ID),
				slog.Any("error", err))
			if _, failErr := s.records.FailPresentation(ctx, rec.ID); failErr != nil {
				slog.Error("failed to settle presentation after enqueue failure",
					slog.String("record_id", rec.ID),
					slog.Any("error", failErr))
			}
		}
	}
	return nil
}

// analyzeWithRetry calls the model up to the stage retry budget. Terminal
// refusals (blocked prompt, model-declared error) are not retried; a
// stochastic schema breach or transient upstream failure is.
func (s *Stages) analyzeWithRetry(ctx context.Context, req domain.AnalysisRequest) (domain.Analysis, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.StageMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Analysis{}, ctx.Err()
			case <-timeAfter(s.retryDelay(1 << attempt)):
			}
		}
		analysis, err := s.analyzer.Analyze(ctx, req)
		if err == nil {
			return analysis, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrUpstreamTerminal) || errors.Is(err, domain.ErrConfigMissing) || errors.Is(err, domain.ErrInvalidArgument) {
			return domain.Analysis{}, err
		}
		slog.Warn("analysis attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", s.cfg.StageMaxAttempts),
			slog.Any("error", err))
	}
	return domain.Analysis{}, lastErr
}
