package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voxline/robocall-qa-backend/internal/adapters/primary/validation"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
)

const maxTicketsPerPage = 100

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	tickets      *services.TicketService
	reconciler   *services.TicketReconciler
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	tickets *services.TicketService,
	reconciler *services.TicketReconciler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		tickets:      tickets,
		reconciler:   reconciler,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the routing for all ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListTickets)
	r.Post("/", h.HandleCreateTicket)
	r.Get("/pending-evaluation", h.HandlePendingEvaluation)

	r.Route("/{ticketNumber}", func(r chi.Router) {
		r.Get("/", h.HandleGetTicket)
		r.Patch("/status", h.HandleUpdateTicketStatus)
	})
}

// --- Request/Response DTOs ---

// CreateTicketRequest defines the expected JSON body for creating a ticket
type CreateTicketRequest struct {
	Subject        string `json:"subject"`
	Category       string `json:"category"`
	CustomerName   string `json:"customer_name"`
	Priority       string `json:"priority"`
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
}

// Validate validates the create ticket request
func (r *CreateTicketRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("subject", r.Subject).
		MaxLength("subject", r.Subject, 500)

	v.Required("agent_id", r.AgentID)
	v.Required("conversation_id", r.ConversationID)

	v.OneOf("priority", r.Priority, []string{"low", "medium", "high"})

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateStatusRequest defines the expected JSON body for status updates
type UpdateStatusRequest struct {
	Status  string `json:"status"`
	AgentID string `json:"agent_id"`
}

// Validate validates the update status request
func (r *UpdateStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("status", r.Status).
		MaxLength("status", r.Status, 32)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
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
	Eval              *domain.Evaluation       `json:"eval"`
	CreatedAt         string                   `json:"created_at"`
	UpdatedAt         *string                  `json:"updated_at"`
}

func toTicketDTO(ticket *domain.Ticket) TicketDTO {
	var updatedAt *string
	if ticket.UpdatedAt != nil {
		value := ticket.UpdatedAt.Format(time.RFC3339)
		updatedAt = &value
	}

	return TicketDTO{
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
		Eval:              ticket.Eval,
		CreatedAt:         ticket.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         updatedAt,
	}
}

func toTicketDTOs(tickets []*domain.Ticket) []TicketDTO {
	response := make([]TicketDTO, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, toTicketDTO(ticket))
	}
	return response
}

// --- Handlers ---

// HandleListTickets handles GET /tickets
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	pagination := validation.ParsePagination(r, maxTicketsPerPage)

	sortField, sortDir := services.ParseSort(r.URL.Query().Get("sort"))

	params := ports.ListTicketsParams{
		AgentID:      r.URL.Query().Get("agent_id"),
		TicketNumber: r.URL.Query().Get("ticket_number"),
		SortField:    sortField,
		SortDir:      sortDir,
		Limit:        pagination.Limit + 1,
		Offset:       pagination.Offset,
	}

	tickets, err := h.tickets.ListTickets(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WritePaginatedSimple(w, toTicketDTOs(tickets), pagination.Limit, pagination.Offset)
}

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.reconciler.OpenTicket(r.Context(), ports.OpenTicketParams{
		Subject:        req.Subject,
		Category:       req.Category,
		CustomerName:   req.CustomerName,
		Priority:       req.Priority,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket created",
		"ticket_number", ticket.TicketNumber,
		"agent_id", ticket.AgentID,
	)

	WriteCreated(w, toTicketDTO(ticket))
}

// HandleGetTicket handles GET /tickets/{ticketNumber}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketNumber := chi.URLParam(r, "ticketNumber")
	agentID := r.URL.Query().Get("agent_id")

	ticket, err := h.tickets.GetTicket(r.Context(), ticketNumber, agentID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleUpdateTicketStatus handles PATCH /tickets/{ticketNumber}/status
func (h *TicketHandler) HandleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	ticketNumber := chi.URLParam(r, "ticketNumber")

	req, err := validation.DecodeAndValidate[UpdateStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.tickets.UpdateStatus(r.Context(), ports.UpdateStatusParams{
		TicketNumber: ticketNumber,
		AgentID:      req.AgentID,
		Status:       domain.TicketStatus(req.Status),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandlePendingEvaluation handles GET /tickets/pending-evaluation
func (h *TicketHandler) HandlePendingEvaluation(w http.ResponseWriter, r *http.Request) {
	limit := validation.ParseIntQueryParam(r, "limit", 0)

	tickets, err := h.tickets.PendingEvaluation(r.Context(), limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toTicketDTOs(tickets))
}
