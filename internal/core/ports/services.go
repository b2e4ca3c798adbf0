package ports

import (
	"context"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

// NumberAllocator produces collision-free ticket numbers for the record set.
type NumberAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// BlobStore is the binary object store collaborator.
type BlobStore interface {
	// Put stores the payload under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EvaluationRequest is the outbound payload for the external evaluator.
// The automatic trigger sends identifiers, the formatted transcript, and the
// scorecard; the manual trigger additionally relays the caller's full ticket
// snapshot. Both shapes are preserved as the evaluator's contract is external.
type EvaluationRequest struct {
	TicketNumber   string                `json:"ticket_number"`
	AgentID        string                `json:"agent_id,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Transcript     []string              `json:"transcript,omitempty"`
	Criteria       []scorecard.Criterion `json:"criteria,omitempty"`
	Ticket         *domain.Ticket        `json:"ticket,omitempty"`
}

// Evaluator is the external evaluation service collaborator.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*domain.Evaluation, error)
}

// EventPublisher records lightweight audit events for ticket lifecycle
// changes. Publishing is best-effort; implementations must not block the
// ingestion path on broker availability.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TicketEvent) error
	Close() error
}

// EventBroadcaster pushes ticket events to connected QA dashboards.
type EventBroadcaster interface {
	Broadcast(event domain.TicketEvent) error
}

// OpenTicketParams is the input for the manual ticket-creation path.
type OpenTicketParams struct {
	Subject        string
	Category       string
	CustomerName   string
	Priority       string
	AgentID        string
	ConversationID string
}

// UpdateStatusParams is the input for status updates.
type UpdateStatusParams struct {
	TicketNumber string
	AgentID      string
	Status       domain.TicketStatus
}
