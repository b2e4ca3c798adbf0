package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
	"github.com/voxline/robocall-qa-backend/internal/infrastructure/metrics"
)

const (
	eventTypeTranscription = "post_call_transcription"
	eventTypeAudio         = "post_call_audio"

	// maxWebhookBody bounds the inbound payload. Audio events carry the full
	// recording base64-encoded, so the cap is generous.
	maxWebhookBody = 64 << 20
)

// WebhookHandler is the inbound gateway for platform call events.
type WebhookHandler struct {
	verifier    *services.SignatureVerifier
	normalizer  *services.TranscriptNormalizer
	reconciler  *services.TicketReconciler
	audio       *services.AudioIngestDispatcher
	evaluations *services.EvaluationTrigger

	signatureHeader string
	autoEvaluate    bool

	metrics      *metrics.Metrics
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(
	verifier *services.SignatureVerifier,
	normalizer *services.TranscriptNormalizer,
	reconciler *services.TicketReconciler,
	audio *services.AudioIngestDispatcher,
	evaluations *services.EvaluationTrigger,
	signatureHeader string,
	autoEvaluate bool,
	m *metrics.Metrics,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:        verifier,
		normalizer:      normalizer,
		reconciler:      reconciler,
		audio:           audio,
		evaluations:     evaluations,
		signatureHeader: signatureHeader,
		autoEvaluate:    autoEvaluate,
		metrics:         m,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "webhook"),
	}
}

// RegisterRoutes sets up the webhook endpoints.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/call-events", h.HandleCallEvent)
}

// webhookAck is the response body for accepted events.
type webhookAck struct {
	Status       string `json:"status"`
	TicketNumber string `json:"ticket_number,omitempty"`
}

// HandleCallEvent handles POST /webhooks/call-events. The raw body is read
// before any parsing: the signature covers the exact bytes sent.
func (h *WebhookHandler) HandleCallEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	receivedAt := start.UTC()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Could not read request body"))
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get(h.signatureHeader))
	if err != nil {
		h.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		h.errorHandler.Handle(w, r, err)
		return
	}

	eventType, _ := event["type"].(string)
	defer func() {
		h.metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	switch eventType {
	case eventTypeTranscription:
		h.handleTranscription(w, r, event, receivedAt)

	case eventTypeAudio:
		h.handleAudio(w, r, event, receivedAt)

	default:
		// Unrecognized event types are acknowledged so the platform does
		// not retry them.
		h.logger.Debug("ignoring unrecognized event type", "event_type", eventType)
		h.metrics.WebhookEvents.WithLabelValues(eventType, "ignored").Inc()
		WriteJSON(w, http.StatusOK, webhookAck{Status: "ignored"})
	}
}

func (h *WebhookHandler) handleTranscription(w http.ResponseWriter, r *http.Request, event map[string]any, receivedAt time.Time) {
	call := h.normalizer.Normalize(event, receivedAt)

	ticket, err := h.reconciler.ReconcileCall(r.Context(), call)
	if err != nil {
		h.metrics.WebhookEvents.WithLabelValues(eventTypeTranscription, "error").Inc()
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(eventTypeTranscription, "ok").Inc()

	if h.autoEvaluate {
		h.evaluations.TriggerAsync(ticket)
		h.metrics.Evaluations.WithLabelValues("auto", "dispatched").Inc()
	}

	WriteJSON(w, http.StatusOK, webhookAck{Status: "ok", TicketNumber: ticket.TicketNumber})
}

func (h *WebhookHandler) handleAudio(w http.ResponseWriter, r *http.Request, event map[string]any, receivedAt time.Time) {
	ticket, err := h.audio.IngestWebhookAudio(r.Context(), event, receivedAt)
	if err != nil {
		h.metrics.WebhookEvents.WithLabelValues(eventTypeAudio, "error").Inc()
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(eventTypeAudio, "ok").Inc()

	if h.autoEvaluate {
		h.evaluations.TriggerAsync(ticket)
		h.metrics.Evaluations.WithLabelValues("auto", "dispatched").Inc()
	}

	WriteJSON(w, http.StatusOK, webhookAck{Status: "ok", TicketNumber: ticket.TicketNumber})
}
