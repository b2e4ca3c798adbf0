package domain

import "time"

// EventType identifies a ticket lifecycle event.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketReconciled    EventType = "ticket.reconciled"
	EventAudioStored         EventType = "audio.stored"
	EventStatusUpdated       EventType = "ticket.status_updated"
	EventEvaluationCompleted EventType = "evaluation.completed"
)

// TicketEvent is broadcast to QA dashboards and published to the audit log
// whenever a ticket changes.
type TicketEvent struct {
	Type           EventType `json:"type"`
	TicketNumber   string    `json:"ticket_number"`
	AgentID        string    `json:"agent_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Payload        any       `json:"payload,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewTicketEvent builds an event for the given ticket.
func NewTicketEvent(typ EventType, t *Ticket) TicketEvent {
	return TicketEvent{
		Type:           typ,
		TicketNumber:   t.TicketNumber,
		AgentID:        t.AgentID,
		ConversationID: t.ConversationID,
		OccurredAt:     time.Now().UTC(),
	}
}
