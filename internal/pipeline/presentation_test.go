package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/valorize-app/valorize/internal/domain"
)

func recordAwaitingDeck() domain.ValuationRecord {
	rec := pendingRecord()
	rec.Status = domain.RecordSuccess
	rec.Result = &domain.Result{
		ValuationBase: 200000,
		PromptGamma:   "Apresentação do valuation.",
		GammaStatus:   domain.GammaPending,
	}
	return rec
}

func TestPresentationHappyPath(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, "presentation:rec-1", mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, "presentation:rec-1").Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, "Apresentação do valuation.").Return("gen-1", nil)
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "pending"}, nil).Once()
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "completed", URL: "https://gamma.app/docs/abc"}, nil).Once()
	m.records.On("CompletePresentation", mock.Anything, "rec-1", "https://gamma.app/docs/abc").Return(true, nil)
	m.queue.On("EnqueueNotification", mock.Anything, domain.NotificationTask{RecordID: "rec-1"}).Return(nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertExpectations(t)
	m.records.AssertExpectations(t)
	m.queue.AssertExpectations(t)
	m.claimer.AssertExpectations(t)
}

func TestPresentationSkipsWhenClaimedElsewhere(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, "presentation:rec-1", mock.Anything).Return(false, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertNotCalled(t, "CreateGeneration", mock.Anything, mock.Anything)
	m.claimer.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestPresentationProceedsWhenClaimStoreDown(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, "presentation:rec-1", mock.Anything).Return(false, assert.AnError)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil)
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "completed", URL: "https://gamma.app/docs/abc"}, nil)
	m.records.On("CompletePresentation", mock.Anything, "rec-1", "https://gamma.app/docs/abc").Return(true, nil)
	m.queue.On("EnqueueNotification", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertExpectations(t)
}

func TestPresentationSkipsSettledRecord(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()
	rec.Result.GammaStatus = domain.GammaCompleted
	rec.Result.GammaURL = "https://gamma.app/docs/abc"

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertNotCalled(t, "CreateGeneration", mock.Anything, mock.Anything)
	m.claimer.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestPresentationDropsRecordWithoutPrompt(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()
	rec.Result.PromptGamma = ""

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertNotCalled(t, "CreateGeneration", mock.Anything, mock.Anything)
}

func TestPresentationTerminalPollSettlesFailed(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, mock.Anything).Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil).Once()
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{}, domain.ErrUpstreamTerminal).Once()
	m.records.On("FailPresentation", mock.Anything, "rec-1").Return(true, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertExpectations(t)
	m.records.AssertExpectations(t)
	m.queue.AssertNotCalled(t, "EnqueueNotification", mock.Anything, mock.Anything)
}

func TestPresentationRetriesFailedRoundsThenSettlesFailed(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, mock.Anything).Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil).Times(3)
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "failed"}, nil).Times(3)
	m.records.On("FailPresentation", mock.Anything, "rec-1").Return(true, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertExpectations(t)
	m.records.AssertExpectations(t)
}

func TestPresentationCompletedWithoutURLIsRetried(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, mock.Anything).Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil).Once()
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "completed"}, nil).Once()
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-2", nil).Once()
	m.deck.On("GetGeneration", mock.Anything, "gen-2").
		Return(domain.DeckGeneration{Status: "completed", URL: "https://gamma.app/docs/xyz"}, nil).Once()
	m.records.On("CompletePresentation", mock.Anything, "rec-1", "https://gamma.app/docs/xyz").Return(true, nil)
	m.queue.On("EnqueueNotification", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.deck.AssertExpectations(t)
}

func TestPresentationLostCASSkipsNotification(t *testing.T) {
	t.Parallel()
	s, m := newStages(testConfig())
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, mock.Anything).Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil)
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "completed", URL: "https://gamma.app/docs/abc"}, nil)
	m.records.On("CompletePresentation", mock.Anything, "rec-1", "https://gamma.app/docs/abc").Return(false, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.queue.AssertNotCalled(t, "EnqueueNotification", mock.Anything, mock.Anything)
}

func TestPresentationPollBudgetExhausted(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.GammaMaxAttempts = 1
	s, m := newStages(cfg)
	rec := recordAwaitingDeck()

	m.records.On("Get", mock.Anything, "rec-1").Return(rec, nil)
	m.claimer.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.claimer.On("Release", mock.Anything, mock.Anything).Return(nil)
	m.deck.On("CreateGeneration", mock.Anything, mock.Anything).Return("gen-1", nil)
	m.deck.On("GetGeneration", mock.Anything, "gen-1").
		Return(domain.DeckGeneration{Status: "pending"}, nil)
	m.records.On("FailPresentation", mock.Anything, "rec-1").Return(true, nil)

	require.NoError(t, s.HandlePresentation(context.Background(), domain.PresentationTask{RecordID: "rec-1"}))
	m.records.AssertExpectations(t)
}
