package domain

import (
	"time"
)

// TicketStatus represents the lifecycle state of a ticket. The set is an
// extension point: the store does not enforce it, only the two values below
// are produced by this system.
type TicketStatus string

const (
	StatusOpen   TicketStatus = "open"
	StatusClosed TicketStatus = "closed"
)

// DefaultPriority is assigned when the call analysis carries no priority.
const DefaultPriority = "low"

// TicketNumberLength is the length of the human-readable ticket identifier.
const TicketNumberLength = 6

// TicketNumberAlphabet is the symbol set ticket numbers are drawn from.
const TicketNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TranscriptTurn is a single turn of a call, reduced to the fields the QA
// workflow consumes. Anything else the platform sends is dropped.
type TranscriptTurn struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
	Interrupted    bool    `json:"interrupted"`
}

// CallData is the nested payload of a call transcription.
type CallData struct {
	AgentID        string           `json:"agent_id"`
	ConversationID string           `json:"conversation_id"`
	Status         string           `json:"status,omitempty"`
	UserID         string           `json:"user_id,omitempty"`
	Transcript     []TranscriptTurn `json:"transcript"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Analysis       map[string]any   `json:"analysis,omitempty"`
	AudioURL       string           `json:"audio_url,omitempty"`
	ReceivedAt     time.Time        `json:"received_at"`
}

// CallTranscription is the embedded call record carried by a ticket.
type CallTranscription struct {
	EventTimestamp int64    `json:"event_timestamp"`
	Data           CallData `json:"data"`
}

// Ticket is the core domain entity: the durable record tracking a call's
// triage and evaluation lifecycle.
type Ticket struct {
	ID                int64
	TicketNumber      string
	Status            TicketStatus
	Subject           string
	Category          string
	CustomerName      string
	Priority          string
	AgentID           string
	ConversationID    string
	CallTranscription CallTranscription
	// Eval is nil while the ticket is awaiting evaluation. A non-nil value
	// is terminal until the next call for the same key invalidates it.
	Eval      *Evaluation
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// PendingEvaluation reports whether the ticket still awaits an evaluation
// result. Eval is the sole field gating pending-work queries.
func (t *Ticket) PendingEvaluation() bool {
	return t.Eval == nil
}

// Touch records a mutation timestamp.
func (t *Ticket) Touch(now time.Time) {
	u := now.UTC()
	t.UpdatedAt = &u
}
