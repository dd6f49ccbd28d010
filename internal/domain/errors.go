package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrTradeNotFound       = errors.New("trade_not_found")
	ErrNotActive           = errors.New("order_not_active")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidFee          = errors.New("invalid_fee")
	ErrEmergencyPaused     = errors.New("emergency_paused")
	ErrParticipantNotFound = errors.New("participant_not_found")
	ErrParticipantExists   = errors.New("participant_already_exists")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
