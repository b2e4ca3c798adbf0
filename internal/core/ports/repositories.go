package ports

import (
	"context"
	"time"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
)

// SortDirection for list queries.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListTicketsParams filters and orders a ticket listing.
type ListTicketsParams struct {
	// AgentID matches either the flat agent_id column or the nested
	// call_transcription.data.agent_id path.
	AgentID      string
	TicketNumber string
	SortField    string
	SortDir      SortDirection
	Limit        int
	Offset       int
}

// MergeAudioParams carries everything the repository needs for the
// audio-url upsert. TicketNumber is only consumed by the insert arm when no
// ticket exists yet for the key.
type MergeAudioParams struct {
	AgentID        string
	ConversationID string
	AudioURL       string
	TicketNumber   string
	EventTimestamp int64
	ReceivedAt     time.Time
}

// TicketRepository is the secondary port for ticket persistence. The store
// enforces uniqueness of both ticket_number and the (agent_id,
// conversation_id) pair; violations surface as the duplicate sentinel errors.
type TicketRepository interface {
	// FindByCallKey looks up the at-most-one ticket for an exact
	// (agent_id, conversation_id) pair.
	FindByCallKey(ctx context.Context, agentID, conversationID string) (*domain.Ticket, error)

	// FindByTicketNumber looks up a ticket by its human-readable number.
	// An empty agentID means no agent filter.
	FindByTicketNumber(ctx context.Context, ticketNumber, agentID string) (*domain.Ticket, error)

	// TicketNumberExists reports whether a candidate number is taken.
	TicketNumberExists(ctx context.Context, ticketNumber string) (bool, error)

	// Insert persists a new ticket. Returns ErrDuplicateCallKey or
	// ErrDuplicateTicketNumber on unique-constraint conflicts.
	Insert(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)

	// ReplaceCall overwrites the denormalized analysis fields, the whole
	// call_transcription document, status, and eval of an existing ticket.
	// ID, ticket_number, and created_at are preserved.
	ReplaceCall(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)

	// UpdateStatus changes ticket_status only. An empty agentID means no
	// agent filter.
	UpdateStatus(ctx context.Context, ticketNumber, agentID string, status domain.TicketStatus) (*domain.Ticket, error)

	// MergeAudioURL sets call_transcription.data.audio_url for the key,
	// inserting a ticket shell when the transcript event has not arrived.
	MergeAudioURL(ctx context.Context, params MergeAudioParams) (*domain.Ticket, error)

	// SetEvaluation writes the evaluation result and updated_at.
	SetEvaluation(ctx context.Context, id int64, eval *domain.Evaluation) error

	// List returns tickets matching the filters, newest-first by creation
	// time unless overridden.
	List(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)

	// ListPendingEvaluation returns tickets whose eval is null, ascending
	// by insertion order.
	ListPendingEvaluation(ctx context.Context, limit int) ([]*domain.Ticket, error)
}
