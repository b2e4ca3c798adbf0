package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// listSortFields whitelists the sortable columns for the list endpoint.
var listSortFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"ticket_number": true,
	"ticket_status": true,
	"priority":      true,
}

// TicketService implements the operator-facing query and status paths.
type TicketService struct {
	repo        ports.TicketRepository
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger

	// pendingLimit bounds the pending-evaluation page size.
	pendingLimit int
}

// NewTicketService creates a ticket query service.
func NewTicketService(repo ports.TicketRepository, broadcaster ports.EventBroadcaster, pendingLimit int, logger *slog.Logger) *TicketService {
	if pendingLimit <= 0 {
		pendingLimit = 1000
	}
	return &TicketService{
		repo:         repo,
		broadcaster:  broadcaster,
		logger:       logger.With("component", "ticket_service"),
		pendingLimit: pendingLimit,
	}
}

// GetTicket looks up a ticket by number, optionally scoped to an agent.
// Whitespace inside the identifying values is stripped before lookup.
func (s *TicketService) GetTicket(ctx context.Context, ticketNumber, agentID string) (*domain.Ticket, error) {
	return s.repo.FindByTicketNumber(ctx, strings.TrimSpace(ticketNumber), strings.TrimSpace(agentID))
}

// UpdateStatus changes ticket_status only, leaving every other field
// untouched. In particular it never implicitly clears or sets eval.
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	ticket, err := s.repo.UpdateStatus(ctx,
		strings.TrimSpace(params.TicketNumber),
		strings.TrimSpace(params.AgentID),
		params.Status,
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket status updated",
		"ticket_number", ticket.TicketNumber,
		"new_status", ticket.Status,
	)
	_ = s.broadcaster.Broadcast(domain.NewTicketEvent(domain.EventStatusUpdated, ticket))
	return ticket, nil
}

// ListTickets returns tickets matching the optional agent/number filters,
// newest-first by creation time unless a sort override is given.
func (s *TicketService) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	params.AgentID = strings.TrimSpace(params.AgentID)
	params.TicketNumber = strings.TrimSpace(params.TicketNumber)

	if params.SortField == "" || !listSortFields[params.SortField] {
		params.SortField = "created_at"
		params.SortDir = ports.SortDesc
	}
	if params.SortDir != ports.SortAsc && params.SortDir != ports.SortDesc {
		params.SortDir = ports.SortDesc
	}

	return s.repo.List(ctx, params)
}

// ParseSort splits a "field:direction" sort parameter. Unknown fields fall
// back to the default ordering in ListTickets.
func ParseSort(raw string) (field string, dir ports.SortDirection) {
	if raw == "" {
		return "", ""
	}
	field, dirStr, found := strings.Cut(raw, ":")
	if !found {
		return field, ports.SortDesc
	}
	switch strings.ToLower(dirStr) {
	case "asc", "1":
		return field, ports.SortAsc
	default:
		return field, ports.SortDesc
	}
}

// PendingEvaluation returns tickets still awaiting an evaluation result,
// ascending by insertion order. The limit is clamped to the configured
// maximum.
func (s *TicketService) PendingEvaluation(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	if limit <= 0 || limit > s.pendingLimit {
		limit = s.pendingLimit
	}
	return s.repo.ListPendingEvaluation(ctx, limit)
}
