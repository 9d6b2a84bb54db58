package domain

import (
	"context"
	"time"
)

// SessionStore persists SessionContext by ID.
// GetSession returns ErrSessionNotFound when the ID is unknown or evicted.
type SessionStore interface {
	GetSession(ctx context.Context, id SessionID) (*SessionContext, error)
	PutSession(ctx context.Context, session *SessionContext) error
	DeleteSession(ctx context.Context, id SessionID) error
}

// ProfileStore persists UserProfile by ID.
// GetProfile returns ErrProfileNotFound when the ID is unknown.
type ProfileStore interface {
	GetProfile(ctx context.Context, id UserID) (*UserProfile, error)
	PutProfile(ctx context.Context, profile *UserProfile) error
	DeleteProfile(ctx context.Context, id UserID) error
}

// EffectivenessStore keeps the global aggregate across all users.
// AddGlobalOutcome must be atomic per key.
type EffectivenessStore interface {
	GlobalEffectiveness(ctx context.Context) (map[InterventionKey]EffectivenessRecord, error)
	AddGlobalOutcome(ctx context.Context, key InterventionKey, outcome Outcome) error
}

// MessageStore keeps the session transcript.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID, limit int) ([]*Message, error)
	DeleteSessionMessages(ctx context.Context, sessionID SessionID) error
}

// Clock is injected so tests control time.
type Clock func() time.Time
