package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrUnknownIntervention = errors.New("unknown intervention")
	ErrInvalidRating       = errors.New("rating out of range")
	ErrInvalidDeescalation = errors.New("invalid de-escalation")
	ErrSessionOwnership    = errors.New("session belongs to another user")
	ErrUserRequired        = errors.New("user id is required")
)
