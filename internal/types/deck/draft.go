package deck

import (
	"encoding/json"
	"time"
)

// Draft is one append-only audit record.
type Draft struct {
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Stage     string          `json:"stage"`
	Content   json.RawMessage `json:"content,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
}
