package usecase

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/domain"
)

// StatusView is the polling answer for one record. GammaStatus is always
// populated so clients can drive their polling loop off a single field.
type StatusView struct {
	ID          string              `json:"id"`
	Status      domain.RecordStatus `json:"status"`
	GammaStatus domain.GammaStatus  `json:"gamma_status"`
	GammaURL    string              `json:"gamma_url,omitempty"`
	DetailURL   string              `json:"detail_url"`
	Result      *domain.Result      `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// StatusService answers record status queries scoped to the owning account.
type StatusService struct {
	records          domain.RecordRepository
	dashboardBaseURL string
}

func NewStatusService(records domain.RecordRepository, dashboardBaseURL string) *StatusService {
	return &StatusService{records: records, dashboardBaseURL: dashboardBaseURL}
}

// Status loads a record owned by accountID and projects it into the polling
// view. Records owned by other accounts read as not found.
func (s *StatusService) Status(ctx domain.Context, id, accountID string) (StatusView, error) {
	tracer := otel.Tracer("usecase.status")
	ctx, span := tracer.Start(ctx, "Status")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", id))

	rec, err := s.records.GetOwned(ctx, id, accountID)
	if err != nil {
		return StatusView{}, fmt.Errorf("op=usecase.status: %w", err)
	}

	view := StatusView{
		ID:        rec.ID,
		Status:    rec.Status,
		DetailURL: strings.TrimSuffix(s.dashboardBaseURL, "/") + "/reports/" + rec.ID,
		Result:    rec.Result,
	}
	if rec.Result != nil {
		view.GammaStatus = rec.Result.GammaStatus
		view.GammaURL = rec.Result.GammaURL
		view.Error = rec.Result.Error
	}
	// Older or partially written documents may miss gamma_status; default it
	// so the client never polls a state that cannot progress.
	if view.GammaStatus == "" {
		if rec.Status == domain.RecordFailed {
			view.GammaStatus = domain.GammaFailed
		} else {
			view.GammaStatus = domain.GammaPending
		}
	}
	return view, nil
}
