package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/algoqa/pkg/transcript"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnswerCompleted is emitted after an answer session finishes and
	// its transcript is persisted, whether the session completed or failed.
	EventTypeAnswerCompleted = "algoqa.answer.completed"
)

// AnswerCompletedEvent is a transport-neutral event payload for a finished
// answer session.
type AnswerCompletedEvent struct {
	SchemaVersion int                   `json:"schema_version"`
	EventType     string                `json:"event_type"`
	EventID       string                `json:"event_id"`
	EmittedAt     time.Time             `json:"emitted_at"`
	Source        EventSource           `json:"source"`
	RequestMeta   AnswerRequestMeta     `json:"request_meta"`
	Decode        DecodeMeta            `json:"decode"`
	Transcript    transcript.Transcript `json:"transcript"`
}

// EventSource identifies where the answer was recorded.
type EventSource struct {
	// Component is "proxy" or "cli".
	Component string `json:"component"`
	Upstream  string `json:"upstream,omitempty"`
}

// AnswerRequestMeta captures request lifecycle metadata for the event.
type AnswerRequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status,omitempty"`
}

// DecodeMeta summarises what the decoder saw on the wire.
type DecodeMeta struct {
	Bytes           int `json:"bytes"`
	Frames          int `json:"frames"`
	KeepAlives      int `json:"keepalives"`
	TextEvents      int `json:"text_events"`
	ReferenceEvents int `json:"reference_events"`
	Unrecognized    int `json:"unrecognized"`
	Fallbacks       int `json:"fallbacks"`
}

// NewAnswerCompletedEvent builds an event for t with a fresh event ID.
func NewAnswerCompletedEvent(t transcript.Transcript, src EventSource, meta AnswerRequestMeta, decode DecodeMeta) *AnswerCompletedEvent {
	if meta.StartedAt.IsZero() {
		meta.StartedAt = t.StartedAt
	}
	if meta.CompletedAt.IsZero() {
		meta.CompletedAt = t.CompletedAt
	}
	if meta.DurationMs == 0 && !meta.CompletedAt.IsZero() {
		meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	}

	return &AnswerCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeAnswerCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
		RequestMeta:   meta,
		Decode:        decode,
		Transcript:    t,
	}
}
