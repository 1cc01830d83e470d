package domain

import "errors"

var (
	ErrInvalidOpportunity = errors.New("invalid opportunity")
	ErrGateDenied         = errors.New("trade admission denied")
	ErrControlUnavailable = errors.New("control state unavailable")
	ErrLockTimeout        = errors.New("state lock timeout")
	ErrNotFound           = errors.New("not found")
	ErrUnknownVenue       = errors.New("unknown venue")
	ErrWSDisconnect       = errors.New("websocket disconnected")
)
