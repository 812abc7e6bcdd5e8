package domain

import "time"

// Event is a security telemetry event tied to a principal and optionally a
// session. Events flow through Kafka to the log sink; they are not the audit
// trail, which is written synchronously to the database.
type Event struct {
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	EventType string            `json:"eventType"`
	Source    string            `json:"source"`
	RiskScore int               `json:"riskScore,omitempty"`
	RiskLevel string            `json:"riskLevel,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
