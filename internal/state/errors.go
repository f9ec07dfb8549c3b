package state

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrInvalidRoom     = errors.New("invalid room name")
)
