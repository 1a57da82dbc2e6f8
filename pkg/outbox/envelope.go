package outbox

import (
	"encoding/json"
	"time"
)

// SourceRef identifies what produced the event.
type SourceRef struct {
	Kind      string `json:"kind"`
	EventID   string `json:"eventId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *SourceRef      `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}
