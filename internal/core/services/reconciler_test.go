package services_test

import (
	"context"
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
)

func testCall(agentID, conversationID, subject string) services.NormalizedCall {
	return services.NormalizedCall{
		Subject:  subject,
		Category: "billing",
		Priority: "high",
		Transcription: domain.CallTranscription{
			EventTimestamp: 1700000000,
			Data: domain.CallData{
				AgentID:        agentID,
				ConversationID: conversationID,
				Transcript: []domain.TranscriptTurn{
					{Role: "agent", Message: "Hello"},
				},
				ReceivedAt: time.Now().UTC(),
			},
		},
	}
}

func newReconciler(repo ports.TicketRepository, alloc ports.NumberAllocator) (*services.TicketReconciler, *mocks.MockEventPublisher, *mocks.MockEventBroadcaster) {
	publisher := mocks.NewMockEventPublisher()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("Broadcast", mock.Anything).Return(nil).Maybe()
	r := services.NewTicketReconciler(repo, alloc, publisher, broadcaster, slog.Default())
	return r, publisher, broadcaster
}

func TestTicketReconciler_ReconcileCall(t *testing.T) {
	ctx := context.Background()

	t.Run("novel key creates a closed ticket with no eval", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").
			Return(nil, apperrors.ErrTicketNotFound)
		alloc.On("Allocate", ctx).Return("AB12CD", nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).
			Run(func(args mock.Arguments) {
				inserted := args.Get(1).(*domain.Ticket)
				assert.Equal(t, "AB12CD", inserted.TicketNumber)
				assert.Equal(t, domain.StatusClosed, inserted.Status)
				assert.Nil(t, inserted.Eval)
			}).
			Return(&domain.Ticket{ID: 1, TicketNumber: "AB12CD", Status: domain.StatusClosed, AgentID: "agent_1", ConversationID: "conv_1"}, nil)

		ticket, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "Billing"))

		require.NoError(t, err)
		assert.Equal(t, "AB12CD", ticket.TicketNumber)
		repo.AssertExpectations(t)
	})

	t.Run("replay overwrites content, preserves number, resets eval", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		existing := &domain.Ticket{
			ID:             7,
			TicketNumber:   "ZZTOP1",
			Status:         domain.StatusOpen,
			Subject:        "Old subject",
			AgentID:        "agent_1",
			ConversationID: "conv_1",
			Eval:           &domain.Evaluation{TotalScore: 80},
			CreatedAt:      time.Now().Add(-time.Hour),
		}

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").Return(existing, nil)
		repo.On("ReplaceCall", ctx, mock.AnythingOfType("*domain.Ticket")).
			Run(func(args mock.Arguments) {
				updated := args.Get(1).(*domain.Ticket)
				assert.Equal(t, "ZZTOP1", updated.TicketNumber)
				assert.Equal(t, "New subject", updated.Subject)
				assert.Equal(t, domain.StatusClosed, updated.Status)
				assert.Nil(t, updated.Eval)
				assert.NotNil(t, updated.UpdatedAt)
			}).
			Return(existing, nil)

		_, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "New subject"))

		require.NoError(t, err)
		alloc.AssertNotCalled(t, "Allocate")
		repo.AssertExpectations(t)
	})

	t.Run("transcript after audio keeps the stored recording url", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		shell := &domain.Ticket{
			ID:             9,
			TicketNumber:   "SHELL1",
			Status:         domain.StatusClosed,
			AgentID:        "agent_1",
			ConversationID: "conv_1",
			CallTranscription: domain.CallTranscription{
				Data: domain.CallData{
					AgentID:        "agent_1",
					ConversationID: "conv_1",
					AudioURL:       "https://cdn.example.com/rec/conv_1.mp3",
				},
			},
			CreatedAt: time.Now().Add(-time.Minute),
		}

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").Return(shell, nil)
		repo.On("ReplaceCall", ctx, mock.AnythingOfType("*domain.Ticket")).
			Run(func(args mock.Arguments) {
				updated := args.Get(1).(*domain.Ticket)
				assert.Equal(t, "https://cdn.example.com/rec/conv_1.mp3", updated.CallTranscription.Data.AudioURL)
				assert.NotEmpty(t, updated.CallTranscription.Data.Transcript)
			}).
			Return(shell, nil)

		_, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "Late transcript"))

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("a taken number is re-allocated and the insert retried", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").
			Return(nil, apperrors.ErrTicketNotFound)
		alloc.On("Allocate", ctx).Return("TAKEN1", nil).Once()
		alloc.On("Allocate", ctx).Return("FRESH1", nil).Once()
		repo.On("Insert", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.TicketNumber == "TAKEN1"
		})).Return(nil, apperrors.ErrDuplicateTicketNumber).Once()
		repo.On("Insert", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.TicketNumber == "FRESH1"
		})).Return(&domain.Ticket{ID: 4, TicketNumber: "FRESH1", Status: domain.StatusClosed}, nil).Once()

		ticket, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "Raced number"))

		require.NoError(t, err)
		assert.Equal(t, "FRESH1", ticket.TicketNumber)
		repo.AssertExpectations(t)
		alloc.AssertExpectations(t)
	})

	t.Run("losing a concurrent insert retries as update", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		winner := &domain.Ticket{
			ID:             3,
			TicketNumber:   "WINNER",
			AgentID:        "agent_1",
			ConversationID: "conv_1",
		}

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").
			Return(nil, apperrors.ErrTicketNotFound).Once()
		alloc.On("Allocate", ctx).Return("LOSER1", nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).
			Return(nil, apperrors.ErrDuplicateCallKey)
		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").
			Return(winner, nil).Once()
		repo.On("ReplaceCall", ctx, mock.AnythingOfType("*domain.Ticket")).
			Return(winner, nil)

		ticket, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "Raced"))

		require.NoError(t, err)
		assert.Equal(t, "WINNER", ticket.TicketNumber)
		repo.AssertExpectations(t)
	})

	t.Run("missing identifiers are rejected", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		_, err := r.ReconcileCall(ctx, testCall("", "conv_1", "x"))
		assert.ErrorIs(t, err, apperrors.ErrAgentIDRequired)

		_, err = r.ReconcileCall(ctx, testCall("agent_1", "", "x"))
		assert.ErrorIs(t, err, apperrors.ErrConversationIDRequired)

		repo.AssertNotCalled(t, "FindByCallKey")
	})

	t.Run("allocation exhaustion is surfaced", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		repo.On("FindByCallKey", ctx, "agent_1", "conv_1").
			Return(nil, apperrors.ErrTicketNotFound)
		alloc.On("Allocate", ctx).Return("", apperrors.ErrAllocationExhausted)

		_, err := r.ReconcileCall(ctx, testCall("agent_1", "conv_1", "x"))

		assert.ErrorIs(t, err, apperrors.ErrAllocationExhausted)
		repo.AssertNotCalled(t, "Insert")
	})
}

func TestTicketReconciler_OpenTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an open ticket with minimal transcription", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		alloc.On("Allocate", ctx).Return("OPEN01", nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).
			Run(func(args mock.Arguments) {
				inserted := args.Get(1).(*domain.Ticket)
				assert.Equal(t, domain.StatusOpen, inserted.Status)
				assert.Equal(t, "low", inserted.Priority)
				assert.Equal(t, "agent_1", inserted.CallTranscription.Data.AgentID)
				assert.Equal(t, "conv_9", inserted.CallTranscription.Data.ConversationID)
				assert.Empty(t, inserted.CallTranscription.Data.Transcript)
			}).
			Return(&domain.Ticket{ID: 2, TicketNumber: "OPEN01", Status: domain.StatusOpen}, nil)

		ticket, err := r.OpenTicket(ctx, ports.OpenTicketParams{
			Subject:        "Manual follow-up",
			AgentID:        " agent_1 ",
			ConversationID: "conv_9",
		})

		require.NoError(t, err)
		assert.Equal(t, "OPEN01", ticket.TicketNumber)
		repo.AssertExpectations(t)
	})

	t.Run("retries with a fresh number when the first is taken", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		alloc.On("Allocate", ctx).Return("TAKEN2", nil).Once()
		alloc.On("Allocate", ctx).Return("FRESH2", nil).Once()
		repo.On("Insert", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.TicketNumber == "TAKEN2"
		})).Return(nil, apperrors.ErrDuplicateTicketNumber).Once()
		repo.On("Insert", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.TicketNumber == "FRESH2"
		})).Return(&domain.Ticket{ID: 5, TicketNumber: "FRESH2", Status: domain.StatusOpen}, nil).Once()

		ticket, err := r.OpenTicket(ctx, ports.OpenTicketParams{
			Subject:        "Manual follow-up",
			AgentID:        "agent_1",
			ConversationID: "conv_9",
		})

		require.NoError(t, err)
		assert.Equal(t, "FRESH2", ticket.TicketNumber)
		alloc.AssertExpectations(t)
	})

	t.Run("mandatory fields", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := mocks.NewMockNumberAllocator()
		r, _, _ := newReconciler(repo, alloc)

		_, err := r.OpenTicket(ctx, ports.OpenTicketParams{AgentID: "a", ConversationID: "c"})
		assert.ErrorIs(t, err, apperrors.ErrSubjectRequired)

		_, err = r.OpenTicket(ctx, ports.OpenTicketParams{Subject: "s", ConversationID: "c"})
		assert.ErrorIs(t, err, apperrors.ErrAgentIDRequired)

		_, err = r.OpenTicket(ctx, ports.OpenTicketParams{Subject: "s", AgentID: "a"})
		assert.ErrorIs(t, err, apperrors.ErrConversationIDRequired)

		repo.AssertNotCalled(t, "Insert")
	})
}
