package memory

import "time"

// Turn is one completed question/answer exchange. Immutable once appended.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a point-in-time view of one user's conversational memory.
type Session struct {
	UserID    string    `json:"user_id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State carries both memory tiers into a request. LongTerm is nil when
// semantic recall is disabled; downstream code branches on its presence.
type State struct {
	ShortTerm []Turn
	LongTerm  *LongTerm
}
