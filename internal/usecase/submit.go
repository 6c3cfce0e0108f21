// Package usecase holds the synchronous application services behind the HTTP
// API: accepting a questionnaire and answering status queries. The heavy
// lifting happens asynchronously in the pipeline package.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/scoring"
)

// SubmitService accepts questionnaires, enforces the account quota and hands
// the record to the orchestration stage.
type SubmitService struct {
	records  domain.RecordRepository
	accounts domain.AccountRepository
	queue    domain.Queue
	validate *validator.Validate
}

func NewSubmitService(records domain.RecordRepository, accounts domain.AccountRepository, queue domain.Queue) *SubmitService {
	return &SubmitService{
		records:  records,
		accounts: accounts,
		queue:    queue,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit validates the questionnaire, checks the quota, persists a PENDING
// record and enqueues orchestration. Returns the new record id.
func (s *SubmitService) Submit(ctx domain.Context, accountID string, in domain.Inputs) (string, error) {
	tracer := otel.Tracer("usecase.submit")
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if strings.TrimSpace(accountID) == "" {
		return "", fmt.Errorf("op=usecase.submit: account id required: %w", domain.ErrInvalidArgument)
	}
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("op=usecase.submit: %s: %w", validationDetail(err), domain.ErrInvalidArgument)
	}
	if err := scoring.NormalizeInputs(&in); err != nil {
		return "", fmt.Errorf("op=usecase.submit: %w", err)
	}

	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("op=usecase.submit: account %s: %w", accountID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("op=usecase.submit: load account: %w", err)
	}
	if account.QuotaExhausted() {
		return "", fmt.Errorf("op=usecase.submit: account %s used %d of %d free evaluations: %w",
			accountID, account.UsageCount, account.MaxFreeUses, domain.ErrQuotaExceeded)
	}

	id, err := s.records.Create(ctx, domain.ValuationRecord{
		AccountID: accountID,
		Status:    domain.RecordPending,
		Inputs:    in,
	})
	if err != nil {
		return "", fmt.Errorf("op=usecase.submit: create record: %w", err)
	}
	span.SetAttributes(attribute.String("record.id", id))

	if err := s.queue.EnqueueOrchestration(ctx, domain.OrchestrationTask{RecordID: id}); err != nil {
		// The record exists but nothing will process it; fail it right away
		// so the status endpoint never reports an eternal PENDING.
		msg := "failed to enqueue processing"
		if updErr := s.records.UpdateStatus(ctx, id, domain.RecordFailed, &msg); updErr != nil {
			slog.Error("failed to mark unprocessable record",
				slog.String("record_id", id), slog.Any("error", updErr))
		}
		return "", fmt.Errorf("op=usecase.submit: enqueue orchestration: %w", err)
	}

	slog.Info("valuation submitted",
		slog.String("record_id", id),
		slog.String("account_id", accountID))
	return id, nil
}

// validationDetail flattens validator output into one readable line.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
