package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// TicketReconciler turns a verified, normalized call event into a ticket
// record, idempotently keyed by (agent_id, conversation_id).
type TicketReconciler struct {
	repo        ports.TicketRepository
	allocator   ports.NumberAllocator
	publisher   ports.EventPublisher
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewTicketReconciler creates a reconciler.
func NewTicketReconciler(
	repo ports.TicketRepository,
	allocator ports.NumberAllocator,
	publisher ports.EventPublisher,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *TicketReconciler {
	return &TicketReconciler{
		repo:        repo,
		allocator:   allocator,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger.With("component", "reconciler"),
		now:         time.Now,
	}
}

// ReconcileCall creates or updates the ticket for the call's key and returns
// the full resulting record so callers can chain the evaluation trigger
// without a second read.
//
// A completed-call event always leaves the ticket closed, and always resets
// eval to null: a fresh call invalidates any prior evaluation and re-enters
// the pending-evaluation population.
func (r *TicketReconciler) ReconcileCall(ctx context.Context, call NormalizedCall) (*domain.Ticket, error) {
	agentID := call.AgentID()
	conversationID := call.ConversationID()
	if agentID == "" {
		return nil, apperrors.ErrAgentIDRequired
	}
	if conversationID == "" {
		return nil, apperrors.ErrConversationIDRequired
	}

	existing, err := r.repo.FindByCallKey(ctx, agentID, conversationID)
	switch {
	case err == nil:
		return r.resync(ctx, existing, call)
	case errors.Is(err, apperrors.ErrTicketNotFound):
		return r.create(ctx, call)
	default:
		return nil, err
	}
}

// resync overwrites an existing ticket's content with the new call payload
// as a unit, preserving its ticket number. The audio event for this key may
// have landed first; transcript payloads never carry an audio_url, so the
// stored one survives the overwrite and both arrival orders converge.
func (r *TicketReconciler) resync(ctx context.Context, existing *domain.Ticket, call NormalizedCall) (*domain.Ticket, error) {
	if call.Transcription.Data.AudioURL == "" {
		call.Transcription.Data.AudioURL = existing.CallTranscription.Data.AudioURL
	}

	existing.Subject = call.Subject
	existing.Category = call.Category
	existing.CustomerName = call.CustomerName
	existing.Priority = call.Priority
	existing.CallTranscription = call.Transcription
	existing.Status = domain.StatusClosed
	existing.Eval = nil
	existing.Touch(r.now())

	updated, err := r.repo.ReplaceCall(ctx, existing)
	if err != nil {
		return nil, err
	}

	r.logger.Info("ticket reconciled",
		"ticket_number", updated.TicketNumber,
		"agent_id", updated.AgentID,
		"conversation_id", updated.ConversationID,
	)
	r.emit(domain.NewTicketEvent(domain.EventTicketReconciled, updated))
	return updated, nil
}

// create inserts a new ticket for a novel key. A completed-call event
// materializes directly as closed. When a concurrent delivery wins the
// insert race, the storage conflict is retried as a full resync so the final
// state corresponds to one payload in full.
func (r *TicketReconciler) create(ctx context.Context, call NormalizedCall) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Status:            domain.StatusClosed,
		Subject:           call.Subject,
		Category:          call.Category,
		CustomerName:      call.CustomerName,
		Priority:          call.Priority,
		AgentID:           call.AgentID(),
		ConversationID:    call.ConversationID(),
		CallTranscription: call.Transcription,
		Eval:              nil,
		CreatedAt:         r.now().UTC(),
	}

	created, err := r.insertWithFreshNumber(ctx, ticket)
	if errors.Is(err, apperrors.ErrDuplicateCallKey) {
		existing, findErr := r.repo.FindByCallKey(ctx, ticket.AgentID, ticket.ConversationID)
		if findErr != nil {
			return nil, findErr
		}
		return r.resync(ctx, existing, call)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("ticket created",
		"ticket_number", created.TicketNumber,
		"agent_id", created.AgentID,
		"conversation_id", created.ConversationID,
	)
	r.emit(domain.NewTicketEvent(domain.EventTicketCreated, created))
	return created, nil
}

// insertWithFreshNumber inserts the ticket, re-allocating when the number was
// claimed between the allocator's existence check and the insert.
func (r *TicketReconciler) insertWithFreshNumber(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	for {
		number, err := r.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		ticket.TicketNumber = number

		created, err := r.repo.Insert(ctx, ticket)
		if errors.Is(err, apperrors.ErrDuplicateTicketNumber) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}
}

// OpenTicket is the independent creation path for manually opened tickets.
// There is no transcript yet: the stored call_transcription carries only the
// identifying pair.
func (r *TicketReconciler) OpenTicket(ctx context.Context, params ports.OpenTicketParams) (*domain.Ticket, error) {
	subject := strings.TrimSpace(params.Subject)
	agentID := strings.TrimSpace(params.AgentID)
	conversationID := strings.TrimSpace(params.ConversationID)

	if subject == "" {
		return nil, apperrors.ErrSubjectRequired
	}
	if agentID == "" {
		return nil, apperrors.ErrAgentIDRequired
	}
	if conversationID == "" {
		return nil, apperrors.ErrConversationIDRequired
	}

	priority := params.Priority
	if priority == "" {
		priority = domain.DefaultPriority
	}

	ticket := &domain.Ticket{
		Status:         domain.StatusOpen,
		Subject:        subject,
		Category:       params.Category,
		CustomerName:   params.CustomerName,
		Priority:       priority,
		AgentID:        agentID,
		ConversationID: conversationID,
		CallTranscription: domain.CallTranscription{
			Data: domain.CallData{
				AgentID:        agentID,
				ConversationID: conversationID,
				Transcript:     []domain.TranscriptTurn{},
			},
		},
		CreatedAt: r.now().UTC(),
	}

	created, err := r.insertWithFreshNumber(ctx, ticket)
	if err != nil {
		return nil, err
	}

	r.logger.Info("ticket opened",
		"ticket_number", created.TicketNumber,
		"agent_id", created.AgentID,
	)
	r.emit(domain.NewTicketEvent(domain.EventTicketCreated, created))
	return created, nil
}

// emit fans a lifecycle event out to the dashboard feed and the audit log.
// Both are best-effort and must not fail the ingestion path.
func (r *TicketReconciler) emit(event domain.TicketEvent) {
	_ = r.broadcaster.Broadcast(event)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("audit publish failed", "event_type", event.Type, "error", err)
		}
	}()
}
