package services_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/mocks"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

func evaluatedTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:             11,
		TicketNumber:   "EVAL01",
		AgentID:        "agent_1",
		ConversationID: "conv_1",
		CallTranscription: domain.CallTranscription{
			Data: domain.CallData{
				AgentID:        "agent_1",
				ConversationID: "conv_1",
				Transcript: []domain.TranscriptTurn{
					{Role: "agent", Message: "Hello", TimeInCallSecs: 0},
					{Role: "user", Message: "Hi", TimeInCallSecs: 2.5},
				},
			},
		},
	}
}

func passedEvaluation() *domain.Evaluation {
	return &domain.Evaluation{
		Results: []domain.CriterionResult{
			{Name: "greeting", Answer: "YES", Weight: 20},
			{Name: "resolution", Answer: "NO", Weight: 30},
		},
		Summary: "Polite but unresolved",
	}
}

func newTrigger(repo ports.TicketRepository, evaluator ports.Evaluator) (*services.EvaluationTrigger, *mocks.MockEventPublisher, *mocks.MockEventBroadcaster) {
	publisher := mocks.NewMockEventPublisher()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("Broadcast", mock.Anything).Return(nil).Maybe()
	trigger := services.NewEvaluationTrigger(repo, evaluator, scorecard.Default(), publisher, broadcaster, 5*time.Second, slog.Default())
	return trigger, publisher, broadcaster
}

func TestEvaluationTrigger_TriggerManual(t *testing.T) {
	ctx := context.Background()

	t.Run("scores the verdict and persists it", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, _, _ := newTrigger(repo, evaluator)

		evaluator.On("Evaluate", ctx, mock.AnythingOfType("ports.EvaluationRequest")).
			Run(func(args mock.Arguments) {
				req := args.Get(1).(ports.EvaluationRequest)
				assert.Equal(t, "EVAL01", req.TicketNumber)
				assert.NotEmpty(t, req.Criteria)
				require.Len(t, req.Transcript, 2)
				assert.Equal(t, "agent [0.0s]: Hello", req.Transcript[0])
				assert.Equal(t, "user [2.5s]: Hi", req.Transcript[1])
			}).
			Return(passedEvaluation(), nil)
		repo.On("SetEvaluation", ctx, int64(11), mock.AnythingOfType("*domain.Evaluation")).
			Return(nil)

		eval, err := trigger.TriggerManual(ctx, evaluatedTicket())

		require.NoError(t, err)
		assert.Equal(t, 20, eval.TotalScore)
		repo.AssertExpectations(t)
	})

	t.Run("zero tolerance breach forces a zero score", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, _, _ := newTrigger(repo, evaluator)

		verdict := passedEvaluation()
		verdict.ZeroToleranceFlag = true
		evaluator.On("Evaluate", ctx, mock.Anything).Return(verdict, nil)
		repo.On("SetEvaluation", ctx, int64(11), mock.Anything).Return(nil)

		eval, err := trigger.TriggerManual(ctx, evaluatedTicket())

		require.NoError(t, err)
		assert.Zero(t, eval.TotalScore)
	})

	t.Run("evaluator failure is propagated", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, _, _ := newTrigger(repo, evaluator)

		evaluator.On("Evaluate", ctx, mock.Anything).
			Return(nil, errors.New("upstream 503"))

		_, err := trigger.TriggerManual(ctx, evaluatedTicket())

		assert.ErrorIs(t, err, apperrors.ErrEvaluationFailed)
		repo.AssertNotCalled(t, "SetEvaluation")
	})

	t.Run("snapshot without an identifier is rejected", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, _, _ := newTrigger(repo, evaluator)

		_, err := trigger.TriggerManual(ctx, &domain.Ticket{TicketNumber: "EVAL01"})

		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
		evaluator.AssertNotCalled(t, "Evaluate")
	})
}

func TestEvaluationTrigger_TriggerAsync(t *testing.T) {
	t.Run("writes the verdict back off the request path", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, _, broadcaster := newTrigger(repo, evaluator)

		evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(passedEvaluation(), nil)
		repo.On("SetEvaluation", mock.Anything, int64(11), mock.AnythingOfType("*domain.Evaluation")).
			Run(func(args mock.Arguments) {
				assert.Equal(t, 20, args.Get(2).(*domain.Evaluation).TotalScore)
			}).
			Return(nil)

		trigger.TriggerAsync(evaluatedTicket())
		trigger.Shutdown()

		repo.AssertExpectations(t)
		broadcaster.AssertCalled(t, "Broadcast", mock.MatchedBy(func(e domain.TicketEvent) bool {
			return e.Type == domain.EventEvaluationCompleted
		}))
	})

	t.Run("failures never reach the caller", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		evaluator := mocks.NewMockEvaluator()
		trigger, publisher, _ := newTrigger(repo, evaluator)

		evaluator.On("Evaluate", mock.Anything, mock.Anything).
			Return(nil, errors.New("upstream timeout"))

		trigger.TriggerAsync(evaluatedTicket())
		trigger.Shutdown()

		repo.AssertNotCalled(t, "SetEvaluation")
		publisher.AssertNotCalled(t, "Publish")
	})
}

func TestFormatTranscript(t *testing.T) {
	lines := services.FormatTranscript([]domain.TranscriptTurn{
		{Role: "agent", Message: "Hello there", TimeInCallSecs: 1.25},
		{Message: "mumble"},
	})

	require.Len(t, lines, 2)
	assert.Equal(t, "agent [1.2s]: Hello there", lines[0])
	assert.Equal(t, "unknown [0.0s]: mumble", lines[1])
}
