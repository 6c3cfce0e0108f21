// Package mocks provides testify mocks for the domain ports.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/valorize-app/valorize/internal/domain"
)

// MockRecordRepository mocks domain.RecordRepository.
type MockRecordRepository struct{ mock.Mock }

func (m *MockRecordRepository) Create(ctx domain.Context, rec domain.ValuationRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *MockRecordRepository) Get(ctx domain.Context, id string) (domain.ValuationRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.ValuationRecord), args.Error(1)
}

func (m *MockRecordRepository) GetOwned(ctx domain.Context, id, accountID string) (domain.ValuationRecord, error) {
	args := m.Called(ctx, id, accountID)
	return args.Get(0).(domain.ValuationRecord), args.Error(1)
}

func (m *MockRecordRepository) UpdateStatus(ctx domain.Context, id string, status domain.RecordStatus, errMsg *string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockRecordRepository) SetResult(ctx domain.Context, id string, res domain.Result, status domain.RecordStatus) error {
	args := m.Called(ctx, id, res, status)
	return args.Error(0)
}

func (m *MockRecordRepository) CompletePresentation(ctx domain.Context, id, url string) (bool, error) {
	args := m.Called(ctx, id, url)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordRepository) FailPresentation(ctx domain.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordRepository) ListProcessingBefore(ctx domain.Context, cutoff time.Time, limit int) ([]domain.ValuationRecord, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ValuationRecord), args.Error(1)
}

// MockAccountRepository mocks domain.AccountRepository.
type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) Get(ctx domain.Context, id string) (domain.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Account), args.Error(1)
}

func (m *MockAccountRepository) IncrementUsage(ctx domain.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockQueue mocks domain.Queue.
type MockQueue struct{ mock.Mock }

func (m *MockQueue) EnqueueOrchestration(ctx domain.Context, t domain.OrchestrationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockQueue) EnqueuePresentation(ctx domain.Context, t domain.PresentationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockQueue) EnqueueNotification(ctx domain.Context, t domain.NotificationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockAnalyzer mocks domain.Analyzer.
type MockAnalyzer struct{ mock.Mock }

func (m *MockAnalyzer) Analyze(ctx domain.Context, req domain.AnalysisRequest) (domain.Analysis, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Analysis), args.Error(1)
}

// MockDeckService mocks domain.DeckService.
type MockDeckService struct{ mock.Mock }

func (m *MockDeckService) CreateGeneration(ctx domain.Context, inputText string) (string, error) {
	args := m.Called(ctx, inputText)
	return args.String(0), args.Error(1)
}

func (m *MockDeckService) GetGeneration(ctx domain.Context, id string) (domain.DeckGeneration, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.DeckGeneration), args.Error(1)
}

// MockMailer mocks domain.Mailer.
type MockMailer struct{ mock.Mock }

func (m *MockMailer) SendReportReady(ctx domain.Context, msg domain.ReportReadyEmail) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockStageClaimer mocks domain.StageClaimer.
type MockStageClaimer struct{ mock.Mock }

func (m *MockStageClaimer) Claim(ctx domain.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockStageClaimer) Release(ctx domain.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
