package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voxline/robocall-qa-backend/internal/adapters/primary/validation"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
	"github.com/voxline/robocall-qa-backend/internal/infrastructure/metrics"
)

// EvaluationHandler exposes the manual evaluation trigger.
type EvaluationHandler struct {
	evaluations  *services.EvaluationTrigger
	metrics      *metrics.Metrics
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewEvaluationHandler creates an evaluation handler.
func NewEvaluationHandler(
	evaluations *services.EvaluationTrigger,
	m *metrics.Metrics,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations:  evaluations,
		metrics:      m,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "evaluation"),
	}
}

// RegisterRoutes sets up the evaluation endpoints.
func (h *EvaluationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleTriggerEvaluation)
}

// TriggerEvaluationRequest is the full ticket snapshot relayed to the
// evaluator. The caller supplies the record as it holds it, store identifier
// included; the snapshot is forwarded as-is rather than re-read.
type TriggerEvaluationRequest struct {
	ID                int64                    `json:"id"`
	TicketNumber      string                   `json:"ticket_number"`
	Status            string                   `json:"ticket_status"`
	Subject           string                   `json:"subject"`
	Category          string                   `json:"category"`
	CustomerName      string                   `json:"customer_name"`
	Priority          string                   `json:"priority"`
	AgentID           string                   `json:"agent_id"`
	ConversationID    string                   `json:"conversation_id"`
	CallTranscription domain.CallTranscription `json:"call_transcription"`
	CreatedAt         string                   `json:"created_at"`
}

// Validate validates the trigger request
func (r *TriggerEvaluationRequest) Validate() error {
	v := validation.NewValidator()

	v.Custom("id", r.ID > 0, "must be a positive store identifier")

	v.Required("ticket_number", r.TicketNumber).
		TicketNumber("ticket_number", r.TicketNumber)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

func (r *TriggerEvaluationRequest) toTicket() *domain.Ticket {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)

	return &domain.Ticket{
		ID:                r.ID,
		TicketNumber:      r.TicketNumber,
		Status:            domain.TicketStatus(r.Status),
		Subject:           r.Subject,
		Category:          r.Category,
		CustomerName:      r.CustomerName,
		Priority:          r.Priority,
		AgentID:           r.AgentID,
		ConversationID:    r.ConversationID,
		CallTranscription: r.CallTranscription,
		CreatedAt:         createdAt,
	}
}

// EvaluationResponse wraps the manual trigger result.
type EvaluationResponse struct {
	TicketNumber string `json:"ticket_number"`
	Eval         any    `json:"eval"`
}

// HandleTriggerEvaluation handles POST /evaluations. The submitted snapshot
// is relayed to the evaluator synchronously; failures surface to the caller.
func (h *EvaluationHandler) HandleTriggerEvaluation(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[TriggerEvaluationRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	snapshot := req.toTicket()

	eval, err := h.evaluations.TriggerManual(r.Context(), snapshot)
	if err != nil {
		h.metrics.Evaluations.WithLabelValues("manual", "error").Inc()
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.metrics.Evaluations.WithLabelValues("manual", "ok").Inc()
	h.logger.Info("manual evaluation completed",
		"ticket_number", snapshot.TicketNumber,
		"total_score", eval.TotalScore,
	)

	WriteJSON(w, http.StatusOK, EvaluationResponse{
		TicketNumber: snapshot.TicketNumber,
		Eval:         eval,
	})
}
