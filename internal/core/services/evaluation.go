package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

// EvaluationTrigger fires outbound calls to the external evaluator and
// writes results back onto tickets.
//
// Two modes with different failure contracts: the manual trigger is
// synchronous and propagates failures to its caller; the automatic
// post-ingestion trigger is detached and best-effort. The webhook's
// durability guarantee is independent of evaluation succeeding, so errors
// only feed the log.
type EvaluationTrigger struct {
	repo        ports.TicketRepository
	evaluator   ports.Evaluator
	card        *scorecard.Scorecard
	publisher   ports.EventPublisher
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
	timeout     time.Duration
	wg          sync.WaitGroup
}

// NewEvaluationTrigger creates a trigger. timeout bounds each detached
// evaluation so a hung external call cannot leak goroutines indefinitely.
func NewEvaluationTrigger(
	repo ports.TicketRepository,
	evaluator ports.Evaluator,
	card *scorecard.Scorecard,
	publisher ports.EventPublisher,
	broadcaster ports.EventBroadcaster,
	timeout time.Duration,
	logger *slog.Logger,
) *EvaluationTrigger {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EvaluationTrigger{
		repo:        repo,
		evaluator:   evaluator,
		card:        card,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger.With("component", "evaluation_trigger"),
		timeout:     timeout,
	}
}

// TriggerManual relays a full ticket snapshot to the evaluator and writes
// the result back. The snapshot must include its store identifier. Failures
// are surfaced to the caller, and the caller's cancellation is respected.
func (s *EvaluationTrigger) TriggerManual(ctx context.Context, snapshot *domain.Ticket) (*domain.Evaluation, error) {
	if snapshot == nil || snapshot.ID == 0 {
		return nil, apperrors.ErrMalformedPayload
	}

	eval, err := s.evaluator.Evaluate(ctx, ports.EvaluationRequest{
		TicketNumber:   snapshot.TicketNumber,
		AgentID:        snapshot.AgentID,
		ConversationID: snapshot.ConversationID,
		Transcript:     FormatTranscript(snapshot.CallTranscription.Data.Transcript),
		Criteria:       s.card.Criteria,
		Ticket:         snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEvaluationFailed, err)
	}

	eval.TotalScore = eval.ComputeTotalScore()
	if err := s.repo.SetEvaluation(ctx, snapshot.ID, eval); err != nil {
		return nil, err
	}

	s.emit(snapshot, eval)
	return eval, nil
}

// TriggerAsync dispatches a detached, best-effort evaluation for a freshly
// ingested ticket. It never blocks the caller and never surfaces errors to
// the event sender.
func (s *EvaluationTrigger) TriggerAsync(ticket *domain.Ticket) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// The HTTP request that produced the ticket is already done;
		// run against a fresh bounded context.
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		eval, err := s.evaluator.Evaluate(ctx, ports.EvaluationRequest{
			TicketNumber:   ticket.TicketNumber,
			AgentID:        ticket.AgentID,
			ConversationID: ticket.ConversationID,
			Transcript:     FormatTranscript(ticket.CallTranscription.Data.Transcript),
			Criteria:       s.card.Criteria,
		})
		if err != nil {
			s.logger.Warn("evaluation failed",
				"ticket_number", ticket.TicketNumber,
				"error", err,
			)
			return
		}

		eval.TotalScore = eval.ComputeTotalScore()
		if err := s.repo.SetEvaluation(ctx, ticket.ID, eval); err != nil {
			s.logger.Warn("evaluation write-back failed",
				"ticket_number", ticket.TicketNumber,
				"error", err,
			)
			return
		}

		s.logger.Info("evaluation completed",
			"ticket_number", ticket.TicketNumber,
			"total_score", eval.TotalScore,
		)
		s.emit(ticket, eval)
	}()
}

// Shutdown waits for in-flight detached evaluations to finish.
func (s *EvaluationTrigger) Shutdown() {
	s.wg.Wait()
}

func (s *EvaluationTrigger) emit(ticket *domain.Ticket, eval *domain.Evaluation) {
	event := domain.NewTicketEvent(domain.EventEvaluationCompleted, ticket)
	event.Payload = eval
	_ = s.broadcaster.Broadcast(event)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", "event_type", event.Type, "error", err)
	}
}

// FormatTranscript renders turns as evaluator-facing lines carrying the
// speaker, in-call timing, and message.
func FormatTranscript(turns []domain.TranscriptTurn) []string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%s [%.1fs]: %s", role, turn.TimeInCallSecs, turn.Message))
	}
	return lines
}
