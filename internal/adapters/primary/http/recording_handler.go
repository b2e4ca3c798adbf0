package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
)

// maxRecordingBody bounds direct recording uploads.
const maxRecordingBody = 48 << 20

// RecordingHandler accepts operator-uploaded call recordings.
type RecordingHandler struct {
	audio        *services.AudioIngestDispatcher
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewRecordingHandler creates a recording handler.
func NewRecordingHandler(audio *services.AudioIngestDispatcher, errorHandler *ErrorHandler, logger *slog.Logger) *RecordingHandler {
	return &RecordingHandler{
		audio:        audio,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "recording"),
	}
}

// RegisterRoutes sets up the recording endpoints.
func (h *RecordingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleUploadRecording)
}

// HandleUploadRecording handles POST /recordings. The body is the raw MP3;
// every upload creates a new ticket.
func (h *RecordingHandler) HandleUploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordingBody)
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Could not read recording body"))
		return
	}

	ticket, err := h.audio.IngestDirectUpload(r.Context(), audio)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("recording uploaded",
		"ticket_number", ticket.TicketNumber,
		"bytes", len(audio),
	)

	WriteCreated(w, toTicketDTO(ticket))
}
