package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/domain/mocks"
)

func TestStatusProjectsResult(t *testing.T) {
	t.Parallel()
	records := &mocks.MockRecordRepository{}
	svc := NewStatusService(records, "https://app.valorize.app")

	records.On("GetOwned", mock.Anything, "rec-1", "acc-1").Return(domain.ValuationRecord{
		ID:     "rec-1",
		Status: domain.RecordSuccess,
		Result: &domain.Result{
			ValuationBase: 200000,
			GammaStatus:   domain.GammaCompleted,
			GammaURL:      "https://gamma.app/docs/abc",
		},
	}, nil)

	view, err := svc.Status(context.Background(), "rec-1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordSuccess, view.Status)
	assert.Equal(t, domain.GammaCompleted, view.GammaStatus)
	assert.Equal(t, "https://gamma.app/docs/abc", view.GammaURL)
	assert.Equal(t, "https://app.valorize.app/reports/rec-1", view.DetailURL)
	require.NotNil(t, view.Result)
	assert.Equal(t, 200000.0, view.Result.ValuationBase)
}

func TestStatusDefaultsGammaPendingWhileProcessing(t *testing.T) {
	t.Parallel()
	records := &mocks.MockRecordRepository{}
	svc := NewStatusService(records, "https://app.valorize.app")

	records.On("GetOwned", mock.Anything, "rec-1", "acc-1").Return(domain.ValuationRecord{
		ID:     "rec-1",
		Status: domain.RecordProcessing,
	}, nil)

	view, err := svc.Status(context.Background(), "rec-1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GammaPending, view.GammaStatus)
	assert.Nil(t, view.Result)
}

func TestStatusDefaultsGammaFailedOnFailedRecord(t *testing.T) {
	t.Parallel()
	records := &mocks.MockRecordRepository{}
	svc := NewStatusService(records, "https://app.valorize.app")

	records.On("GetOwned", mock.Anything, "rec-1", "acc-1").Return(domain.ValuationRecord{
		ID:     "rec-1",
		Status: domain.RecordFailed,
		Result: &domain.Result{Error: "score inputs: invalid argument"},
	}, nil)

	view, err := svc.Status(context.Background(), "rec-1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GammaFailed, view.GammaStatus)
	assert.NotEmpty(t, view.Error)
}

func TestStatusForeignRecordReadsAsNotFound(t *testing.T) {
	t.Parallel()
	records := &mocks.MockRecordRepository{}
	svc := NewStatusService(records, "https://app.valorize.app")

	records.On("GetOwned", mock.Anything, "rec-1", "acc-2").
		Return(domain.ValuationRecord{}, domain.ErrNotFound)

	_, err := svc.Status(context.Background(), "rec-1", "acc-2")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
