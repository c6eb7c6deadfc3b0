package sandbox

import (
	"time"

	"github.com/uptrace/bun"
)

// SessionStatus is the lifecycle state of a sandbox session
type SessionStatus string

const (
	StatusStarting SessionStatus = "starting"
	StatusRunning  SessionStatus = "running"
	StatusStopped  SessionStatus = "stopped"
	StatusError    SessionStatus = "error"
	StatusExpired  SessionStatus = "expired"
)

// IsTerminal reports whether the status permits no further transitions
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusStopped, StatusError, StatusExpired:
		return true
	}
	return false
}

// Session is the durable record of one sandbox topology. A partial unique
// index guarantees at most one running session per user.
type Session struct {
	bun.BaseModel `bun:"table:sandbox_sessions,alias:ss"`

	ID           string        `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID       string        `bun:"user_id"`
	ContainerID  *string       `bun:"container_id"`
	TopologyName string        `bun:"topology_name"`
	Status       SessionStatus `bun:"status"`
	CreatedAt    time.Time     `bun:"created_at"`
	ExpiresAt    time.Time     `bun:"expires_at"`
	LastActivity time.Time     `bun:"last_activity"`
}

// IsExpired reports whether the session's TTL has elapsed
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionDTO is the response shape for session endpoints
type SessionDTO struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	TopologyName string    `json:"topologyName"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ToDTO converts a Session to its response shape
func (s *Session) ToDTO() SessionDTO {
	return SessionDTO{
		ID:           s.ID,
		Status:       string(s.Status),
		TopologyName: s.TopologyName,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}
