package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/mocks"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
	"github.com/voxline/robocall-qa-backend/internal/infrastructure/metrics"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

type evaluationFixture struct {
	router    *chi.Mux
	repo      *mocks.MockTicketRepository
	evaluator *mocks.MockEvaluator
}

func newEvaluationFixture(t *testing.T) *evaluationFixture {
	t.Helper()

	repo := mocks.NewMockTicketRepository()
	evaluator := mocks.NewMockEvaluator()

	publisher := mocks.NewMockEventPublisher()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("Broadcast", mock.Anything).Return(nil).Maybe()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := NewErrorHandler(logger)

	trigger := services.NewEvaluationTrigger(repo, evaluator, scorecard.Default(), publisher, broadcaster, 5*time.Second, logger)
	handler := NewEvaluationHandler(trigger, metrics.New(prometheus.NewRegistry()), errorHandler, logger)

	router := chi.NewRouter()
	router.Route("/evaluations", handler.RegisterRoutes)

	return &evaluationFixture{router: router, repo: repo, evaluator: evaluator}
}

func (f *evaluationFixture) post(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(stdhttp.MethodPost, "/evaluations", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func evaluationSnapshot(id int64, number string) TriggerEvaluationRequest {
	ticket := closedTicket(id, number)
	return TriggerEvaluationRequest{
		ID:                ticket.ID,
		TicketNumber:      ticket.TicketNumber,
		Status:            string(ticket.Status),
		Subject:           ticket.Subject,
		Category:          ticket.Category,
		CustomerName:      ticket.CustomerName,
		Priority:          ticket.Priority,
		AgentID:           ticket.AgentID,
		ConversationID:    ticket.ConversationID,
		CallTranscription: ticket.CallTranscription,
		CreatedAt:         ticket.CreatedAt.Format(time.RFC3339),
	}
}

func TestEvaluationHandler_Trigger(t *testing.T) {
	t.Run("scores the submitted snapshot synchronously", func(t *testing.T) {
		f := newEvaluationFixture(t)

		f.evaluator.On("Evaluate", mock.Anything, mock.MatchedBy(func(req ports.EvaluationRequest) bool {
			return req.TicketNumber == "EVAL01" && req.Ticket != nil && req.Ticket.ID == 11
		})).Return(&domain.Evaluation{
			Results: []domain.CriterionResult{
				{Name: "friendly_tone", Answer: "YES", Weight: 20},
			},
		}, nil)
		f.repo.On("SetEvaluation", mock.Anything, int64(11), mock.Anything).Return(nil)

		recorder := f.post(t, evaluationSnapshot(11, "EVAL01"))

		require.Equal(t, stdhttp.StatusOK, recorder.Code)

		var response EvaluationResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, "EVAL01", response.TicketNumber)
		assert.NotNil(t, response.Eval)

		f.repo.AssertExpectations(t)
		f.evaluator.AssertExpectations(t)
	})

	t.Run("does not re-read the ticket from the store", func(t *testing.T) {
		f := newEvaluationFixture(t)

		f.evaluator.On("Evaluate", mock.Anything, mock.Anything).
			Return(&domain.Evaluation{}, nil)
		f.repo.On("SetEvaluation", mock.Anything, int64(42), mock.Anything).Return(nil)

		recorder := f.post(t, evaluationSnapshot(42, "EVAL02"))

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		f.repo.AssertNotCalled(t, "FindByTicketNumber", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a malformed ticket number", func(t *testing.T) {
		f := newEvaluationFixture(t)

		snapshot := evaluationSnapshot(11, "EVAL01")
		snapshot.TicketNumber = "nope"

		recorder := f.post(t, snapshot)

		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		f.evaluator.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
	})

	t.Run("rejects a snapshot without a store identifier", func(t *testing.T) {
		f := newEvaluationFixture(t)

		snapshot := evaluationSnapshot(11, "EVAL01")
		snapshot.ID = 0

		recorder := f.post(t, snapshot)

		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		f.evaluator.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
	})

	t.Run("evaluator failure is a bad gateway", func(t *testing.T) {
		f := newEvaluationFixture(t)

		f.evaluator.On("Evaluate", mock.Anything, mock.Anything).
			Return(nil, assert.AnError)

		recorder := f.post(t, evaluationSnapshot(11, "EVAL01"))

		require.Equal(t, stdhttp.StatusBadGateway, recorder.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		assert.Equal(t, "EVALUATION_FAILED", resp.Code)

		f.repo.AssertNotCalled(t, "SetEvaluation", mock.Anything, mock.Anything, mock.Anything)
	})
}
