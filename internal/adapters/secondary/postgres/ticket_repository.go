package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

const uniqueViolation = "23505"

// Constraint names from the tickets migration. Conflict translation keys off
// them, so they must stay in sync with the schema.
const (
	constraintTicketNumber = "tickets_ticket_number_key"
	constraintCallKey      = "tickets_agent_conversation_key"
)

const ticketColumns = `id, ticket_number, ticket_status, subject, category, customer_name,
	priority, agent_id, conversation_id, call_transcription, eval, created_at, updated_at`

// sortColumns whitelists ORDER BY targets. The service layer validates sort
// input too, but the repository never interpolates anything outside this map.
var sortColumns = map[string]string{
	"created_at":    "created_at",
	"updated_at":    "updated_at",
	"ticket_number": "ticket_number",
	"ticket_status": "ticket_status",
	"priority":      "priority",
}

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.TicketNumber,
		&t.Status,
		&t.Subject,
		&t.Category,
		&t.CustomerName,
		&t.Priority,
		&t.AgentID,
		&t.ConversationID,
		&t.CallTranscription,
		&t.Eval,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// translateConflict maps unique-constraint violations to the duplicate
// sentinels by constraint name.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintCallKey:
		return apperrors.ErrDuplicateCallKey
	case constraintTicketNumber:
		return apperrors.ErrDuplicateTicketNumber
	default:
		return err
	}
}

// FindByCallKey looks up the ticket for an exact (agent_id, conversation_id)
// pair.
func (r *TicketRepository) FindByCallKey(ctx context.Context, agentID, conversationID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE agent_id = $1 AND conversation_id = $2`

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, agentID, conversationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// FindByTicketNumber looks up a ticket by its number. A non-empty agentID
// additionally requires the ticket to belong to that agent, matching either
// the flat column or the nested transcription path.
func (r *TicketRepository) FindByTicketNumber(ctx context.Context, ticketNumber, agentID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE ticket_number = $1`
	args := []any{ticketNumber}

	if agentID != "" {
		query += ` AND (agent_id = $2 OR call_transcription->'data'->>'agent_id' = $2)`
		args = append(args, agentID)
	}

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// TicketNumberExists reports whether a candidate number is taken.
func (r *TicketRepository) TicketNumberExists(ctx context.Context, ticketNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_number = $1)`,
		ticketNumber,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert persists a new ticket.
func (r *TicketRepository) Insert(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `INSERT INTO tickets (
			ticket_number, ticket_status, subject, category, customer_name,
			priority, agent_id, conversation_id, call_transcription, eval, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + ticketColumns

	created, err := scanTicket(r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Status,
		ticket.Subject,
		ticket.Category,
		ticket.CustomerName,
		ticket.Priority,
		ticket.AgentID,
		ticket.ConversationID,
		ticket.CallTranscription,
		ticket.Eval,
		ticket.CreatedAt,
	))
	if err != nil {
		return nil, translateConflict(err)
	}
	return created, nil
}

// ReplaceCall overwrites an existing ticket's content as a unit. The row
// identity, ticket_number, and created_at are untouched.
func (r *TicketRepository) ReplaceCall(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `UPDATE tickets
		SET ticket_status = $2,
			subject = $3,
			category = $4,
			customer_name = $5,
			priority = $6,
			call_transcription = $7,
			eval = $8,
			updated_at = $9
		WHERE id = $1
		RETURNING ` + ticketColumns

	updated, err := scanTicket(r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Status,
		ticket.Subject,
		ticket.Category,
		ticket.CustomerName,
		ticket.Priority,
		ticket.CallTranscription,
		ticket.Eval,
		ticket.UpdatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatus changes ticket_status only.
func (r *TicketRepository) UpdateStatus(ctx context.Context, ticketNumber, agentID string, status domain.TicketStatus) (*domain.Ticket, error) {
	query := `UPDATE tickets
		SET ticket_status = $2, updated_at = now()
		WHERE ticket_number = $1`
	args := []any{ticketNumber, status}

	if agentID != "" {
		query += ` AND (agent_id = $3 OR call_transcription->'data'->>'agent_id' = $3)`
		args = append(args, agentID)
	}
	query += ` RETURNING ` + ticketColumns

	updated, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MergeAudioURL upserts the audio location for a call key. When the
// transcript event has already landed, only the nested audio_url and
// updated_at change. Otherwise a shell row is inserted, carrying the supplied
// ticket number so number uniqueness holds from the first write.
func (r *TicketRepository) MergeAudioURL(ctx context.Context, params ports.MergeAudioParams) (*domain.Ticket, error) {
	shell := domain.CallTranscription{
		EventTimestamp: params.EventTimestamp,
		Data: domain.CallData{
			AgentID:        params.AgentID,
			ConversationID: params.ConversationID,
			Transcript:     []domain.TranscriptTurn{},
			AudioURL:       params.AudioURL,
			ReceivedAt:     params.ReceivedAt,
		},
	}

	query := `INSERT INTO tickets (
			ticket_number, ticket_status, subject, category, customer_name,
			priority, agent_id, conversation_id, call_transcription, created_at
		)
		VALUES ($1, $2, '', '', '', $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT ` + constraintCallKey + ` DO UPDATE
		SET call_transcription = jsonb_set(tickets.call_transcription, '{data,audio_url}', to_jsonb($8::text), true),
			updated_at = now()
		RETURNING ` + ticketColumns

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		params.TicketNumber,
		domain.StatusOpen,
		domain.DefaultPriority,
		params.AgentID,
		params.ConversationID,
		shell,
		params.ReceivedAt,
		params.AudioURL,
	))
	if err != nil {
		return nil, translateConflict(err)
	}
	return ticket, nil
}

// SetEvaluation writes the evaluation result onto a ticket.
func (r *TicketRepository) SetEvaluation(ctx context.Context, id int64, eval *domain.Evaluation) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET eval = $2, updated_at = now() WHERE id = $1`,
		id, eval,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTicketNotFound
	}
	return nil
}

// List returns tickets matching the filters.
func (r *TicketRepository) List(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	var (
		conditions []string
		args       []any
	)

	if params.AgentID != "" {
		args = append(args, params.AgentID)
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf(`(agent_id = $%d OR call_transcription->'data'->>'agent_id' = $%d)`, n, n))
	}
	if params.TicketNumber != "" {
		args = append(args, params.TicketNumber)
		conditions = append(conditions, fmt.Sprintf(`ticket_number = $%d`, len(args)))
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	column, ok := sortColumns[params.SortField]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if params.SortDir == ports.SortAsc {
		direction = "ASC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s, id %s`, column, direction, direction)

	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTickets(rows)
}

// ListPendingEvaluation returns tickets whose eval is null, oldest first.
func (r *TicketRepository) ListPendingEvaluation(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+`
		FROM tickets
		WHERE eval IS NULL
		ORDER BY id ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTickets(rows)
}

func collectTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}
