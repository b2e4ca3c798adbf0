package services

import (
	"time"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
)

// NormalizedCall is the stable, minimal representation the reconciler works
// with. All tolerance for payload shape variation lives in the normalizer so
// downstream code can assume a clean shape.
type NormalizedCall struct {
	Subject       string
	Category      string
	CustomerName  string
	Priority      string
	Transcription domain.CallTranscription
}

// AgentID returns the reconciliation key's agent component.
func (c *NormalizedCall) AgentID() string { return c.Transcription.Data.AgentID }

// ConversationID returns the reconciliation key's conversation component.
func (c *NormalizedCall) ConversationID() string { return c.Transcription.Data.ConversationID }

// TranscriptNormalizer extracts a clean call representation from a raw event
// payload. Pure transform, no I/O.
type TranscriptNormalizer struct {
	now func() time.Time
}

// NewTranscriptNormalizer creates a normalizer.
func NewTranscriptNormalizer() *TranscriptNormalizer {
	return &TranscriptNormalizer{now: time.Now}
}

// Normalize reduces a raw transcription event to a NormalizedCall. The event
// may carry its fields at the top level or nested under "data"; both shapes
// are accepted transparently.
func (n *TranscriptNormalizer) Normalize(event map[string]any, receivedAt time.Time) NormalizedCall {
	data := resolveEventData(event)
	analysis := asMap(data["analysis"])

	call := NormalizedCall{
		Subject:      collectedValue(analysis, "subject", ""),
		Category:     collectedValue(analysis, "category", ""),
		CustomerName: collectedValue(analysis, "customer_name", ""),
		Priority:     collectedValue(analysis, "priority", domain.DefaultPriority),
		Transcription: domain.CallTranscription{
			EventTimestamp: n.eventTimestamp(data),
			Data: domain.CallData{
				AgentID:        asString(data["agent_id"]),
				ConversationID: asString(data["conversation_id"]),
				Status:         asString(data["status"]),
				UserID:         asString(data["user_id"]),
				Transcript:     normalizeTranscript(data["transcript"]),
				Metadata:       asMap(data["metadata"]),
				Analysis:       analysis,
				ReceivedAt:     receivedAt.UTC(),
			},
		},
	}
	return call
}

// eventTimestamp resolves the call's timestamp: metadata.start_time_unix_secs,
// else metadata.accepted_time_unix_secs, else now. First non-null wins.
func (n *TranscriptNormalizer) eventTimestamp(data map[string]any) int64 {
	metadata := asMap(data["metadata"])
	if ts, ok := asInt64(metadata["start_time_unix_secs"]); ok {
		return ts
	}
	if ts, ok := asInt64(metadata["accepted_time_unix_secs"]); ok {
		return ts
	}
	return n.now().Unix()
}

// resolveEventData collapses the dual top-level-vs-nested payload shape once:
// when a "data" object is present it wins, otherwise the event itself is the
// data object.
func resolveEventData(event map[string]any) map[string]any {
	if nested := asMap(event["data"]); nested != nil {
		return nested
	}
	return event
}

// collectedValue pulls analysis.data_collection_results.<field>.value,
// falling back to def when any level of the path is absent.
func collectedValue(analysis map[string]any, field, def string) string {
	results := asMap(analysis["data_collection_results"])
	entry := asMap(results[field])
	if v := asString(entry["value"]); v != "" {
		return v
	}
	return def
}

// normalizeTranscript reduces each turn to exactly the four consumed fields.
// Non-sequence input normalizes to an empty transcript rather than failing.
func normalizeTranscript(raw any) []domain.TranscriptTurn {
	items, ok := raw.([]any)
	if !ok {
		return []domain.TranscriptTurn{}
	}

	turns := make([]domain.TranscriptTurn, 0, len(items))
	for _, item := range items {
		turn := asMap(item)
		if turn == nil {
			continue
		}
		secs, _ := asFloat64(turn["time_in_call_secs"])
		interrupted, _ := turn["interrupted"].(bool)
		turns = append(turns, domain.TranscriptTurn{
			Role:           asString(turn["role"]),
			Message:        asString(turn["message"]),
			TimeInCallSecs: secs,
			Interrupted:    interrupted,
		})
	}
	return turns
}

// --- loosely-typed JSON helpers ---

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloat64(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
