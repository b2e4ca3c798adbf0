package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

// Client calls the external QA evaluation service over HTTP.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ ports.Evaluator = (*Client)(nil)

// NewClient creates an evaluator client. timeout bounds the whole evaluation
// round trip and defaults to 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// ticketSnapshot is the wire form of a ticket relayed on manual triggers.
type ticketSnapshot struct {
	ID                int64                    `json:"id"`
	TicketNumber      string                   `json:"ticket_number"`
	Status            domain.TicketStatus      `json:"ticket_status"`
	Subject           string                   `json:"subject"`
	Category          string                   `json:"category"`
	CustomerName      string                   `json:"customer_name"`
	Priority          string                   `json:"priority"`
	AgentID           string                   `json:"agent_id"`
	ConversationID    string                   `json:"conversation_id"`
	CallTranscription domain.CallTranscription `json:"call_transcription"`
	Eval              *domain.Evaluation       `json:"eval"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         *time.Time               `json:"updated_at,omitempty"`
}

func snapshotOf(t *domain.Ticket) *ticketSnapshot {
	if t == nil {
		return nil
	}
	return &ticketSnapshot{
		ID:                t.ID,
		TicketNumber:      t.TicketNumber,
		Status:            t.Status,
		Subject:           t.Subject,
		Category:          t.Category,
		CustomerName:      t.CustomerName,
		Priority:          t.Priority,
		AgentID:           t.AgentID,
		ConversationID:    t.ConversationID,
		CallTranscription: t.CallTranscription,
		Eval:              t.Eval,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

type evaluateRequest struct {
	TicketNumber   string                `json:"ticket_number"`
	AgentID        string                `json:"agent_id,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Transcript     []string              `json:"transcript,omitempty"`
	Criteria       []scorecard.Criterion `json:"criteria,omitempty"`
	Ticket         *ticketSnapshot       `json:"ticket,omitempty"`
}

// Evaluate relays the transcript and scorecard to the evaluation service and
// parses its verdict.
func (c *Client) Evaluate(ctx context.Context, req ports.EvaluationRequest) (*domain.Evaluation, error) {
	body, err := json.Marshal(evaluateRequest{
		TicketNumber:   req.TicketNumber,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		Transcript:     req.Transcript,
		Criteria:       req.Criteria,
		Ticket:         snapshotOf(req.Ticket),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building evaluation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling evaluation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("evaluation service returned status %d: %s", resp.StatusCode, snippet)
	}

	var eval domain.Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&eval); err != nil {
		return nil, fmt.Errorf("decoding evaluation response: %w", err)
	}
	return &eval, nil
}
