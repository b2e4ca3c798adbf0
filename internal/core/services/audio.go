package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// audioContentType is fixed: the platform delivers call recordings as MP3.
const audioContentType = "audio/mpeg"

// AudioIngestDispatcher handles the audio branch of event ingestion: decode
// the payload, store it, and merge the resulting URL into the matching
// ticket.
type AudioIngestDispatcher struct {
	repo      ports.TicketRepository
	blobs     ports.BlobStore
	allocator ports.NumberAllocator
	publisher ports.EventPublisher
	logger    *slog.Logger

	// placeholderAgentID identifies tickets created by direct uploads that
	// did not come through the platform.
	placeholderAgentID string
	newConversationID  func() string
	now                func() time.Time
}

// NewAudioIngestDispatcher creates a dispatcher.
func NewAudioIngestDispatcher(
	repo ports.TicketRepository,
	blobs ports.BlobStore,
	allocator ports.NumberAllocator,
	publisher ports.EventPublisher,
	placeholderAgentID string,
	logger *slog.Logger,
) *AudioIngestDispatcher {
	return &AudioIngestDispatcher{
		repo:               repo,
		blobs:              blobs,
		allocator:          allocator,
		publisher:          publisher,
		logger:             logger.With("component", "audio_dispatcher"),
		placeholderAgentID: placeholderAgentID,
		newConversationID:  uuid.NewString,
		now:                time.Now,
	}
}

// IngestWebhookAudio stores the base64 audio payload of a platform event and
// upserts its URL into the ticket for the (agent, conversation) key. The
// transcript and audio events may arrive in either order: when no ticket
// exists yet a shell is created, carrying a freshly allocated number so the
// ticket-number invariants hold from the moment the row exists.
func (d *AudioIngestDispatcher) IngestWebhookAudio(ctx context.Context, event map[string]any, receivedAt time.Time) (*domain.Ticket, error) {
	data := resolveEventData(event)

	agentID := asString(data["agent_id"])
	conversationID := asString(data["conversation_id"])
	encoded := asString(data["full_audio"])
	if agentID == "" || conversationID == "" || encoded == "" {
		return nil, apperrors.ErrMalformedPayload
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.ErrMalformedPayload
	}

	key := audioObjectKey(agentID, conversationID)
	url, err := d.blobs.Put(ctx, key, audio, audioContentType)
	if err != nil {
		// The webhook response must report failure so the sender retries.
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageFailure, err)
	}

	eventTimestamp, ok := asInt64(event["event_timestamp"])
	if !ok {
		eventTimestamp = receivedAt.Unix()
	}

	ticket, err := d.mergeAudioURL(ctx, agentID, conversationID, url, eventTimestamp, receivedAt)
	if err != nil {
		return nil, err
	}

	d.logger.Info("audio stored",
		"ticket_number", ticket.TicketNumber,
		"agent_id", agentID,
		"conversation_id", conversationID,
		"bytes", len(audio),
	)
	d.audit(domain.NewTicketEvent(domain.EventAudioStored, ticket))
	return ticket, nil
}

// mergeAudioURL performs the upsert, retrying with a fresh number in the
// unlikely case the shell insert loses a ticket-number race.
func (d *AudioIngestDispatcher) mergeAudioURL(ctx context.Context, agentID, conversationID, url string, eventTimestamp int64, receivedAt time.Time) (*domain.Ticket, error) {
	for {
		number, err := d.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		ticket, err := d.repo.MergeAudioURL(ctx, ports.MergeAudioParams{
			AgentID:        agentID,
			ConversationID: conversationID,
			AudioURL:       url,
			TicketNumber:   number,
			EventTimestamp: eventTimestamp,
			ReceivedAt:     receivedAt.UTC(),
		})
		if errors.Is(err, apperrors.ErrDuplicateTicketNumber) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ticket, nil
	}
}

// IngestDirectUpload stores an operator-supplied recording and creates a new
// ticket for it. Every direct upload is a new ticket: there is no platform
// conversation to deduplicate against, so a placeholder agent and a fresh
// conversation identifier are synthesized.
func (d *AudioIngestDispatcher) IngestDirectUpload(ctx context.Context, audio []byte) (*domain.Ticket, error) {
	if len(audio) == 0 {
		return nil, apperrors.ErrMalformedPayload
	}

	agentID := d.placeholderAgentID
	conversationID := d.newConversationID()

	key := audioObjectKey(agentID, conversationID)
	url, err := d.blobs.Put(ctx, key, audio, audioContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageFailure, err)
	}

	receivedAt := d.now().UTC()
	ticket := &domain.Ticket{
		Status:         domain.StatusOpen,
		Priority:       domain.DefaultPriority,
		AgentID:        agentID,
		ConversationID: conversationID,
		CallTranscription: domain.CallTranscription{
			EventTimestamp: receivedAt.Unix(),
			Data: domain.CallData{
				AgentID:        agentID,
				ConversationID: conversationID,
				Transcript:     []domain.TranscriptTurn{},
				AudioURL:       url,
				ReceivedAt:     receivedAt,
			},
		},
		CreatedAt: receivedAt,
	}

	created, err := d.insertWithFreshNumber(ctx, ticket)
	if err != nil {
		return nil, err
	}

	d.logger.Info("direct upload ingested",
		"ticket_number", created.TicketNumber,
		"conversation_id", conversationID,
		"bytes", len(audio),
	)
	d.audit(domain.NewTicketEvent(domain.EventAudioStored, created))
	return created, nil
}

// insertWithFreshNumber inserts the ticket, re-allocating when the number was
// claimed between the allocator's existence check and the insert.
func (d *AudioIngestDispatcher) insertWithFreshNumber(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	for {
		number, err := d.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		ticket.TicketNumber = number

		created, err := d.repo.Insert(ctx, ticket)
		if errors.Is(err, apperrors.ErrDuplicateTicketNumber) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}
}

func (d *AudioIngestDispatcher) audit(event domain.TicketEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("audit publish failed", "event_type", event.Type, "error", err)
		}
	}()
}

// audioObjectKey is the deterministic blob location for a call recording.
func audioObjectKey(agentID, conversationID string) string {
	return fmt.Sprintf("call-audio/%s/%s.mp3", agentID, conversationID)
}
