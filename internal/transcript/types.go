package transcript

import (
	"context"
	"errors"
	"time"
)

const (
	RoleUser = "user"
	RoleAI   = "ai"
)

var ErrSessionNotFound = errors.New("chat session not found")

// Session is one durable conversation thread.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn-side record inside a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the append-only, session-keyed transcript collaborator.
type Store interface {
	CreateSession(ctx context.Context, userID, title string) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	AppendMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	TouchSession(ctx context.Context, sessionID string) error
	Close() error
}
