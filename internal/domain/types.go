package domain

import "time"

type SessionID string
type UserID string
type MessageID string

// InterventionKey identifies a catalog intervention (e.g. "cognitive_restructuring").
type InterventionKey string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// SentimentClass is the bucketed sentiment of one message.
type SentimentClass string

const (
	SentimentPositive SentimentClass = "positive"
	SentimentNeutral  SentimentClass = "neutral"
	SentimentNegative SentimentClass = "negative"
)

// CommunicationStyle selects the response template family.
type CommunicationStyle string

const (
	StyleEmpathetic  CommunicationStyle = "empathetic"
	StyleDirect      CommunicationStyle = "direct"
	StyleSocratic    CommunicationStyle = "socratic"
	StyleMindfulness CommunicationStyle = "mindfulness"
)

// ParseStyle maps free-form input to a known style, defaulting to empathetic.
func ParseStyle(s string) CommunicationStyle {
	switch CommunicationStyle(s) {
	case StyleDirect, StyleSocratic, StyleMindfulness:
		return CommunicationStyle(s)
	default:
		return StyleEmpathetic
	}
}

type Timestamp = time.Time
