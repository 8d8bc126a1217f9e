package apperrors

import "errors"

// Standardized errors shared across packages
var (
	ErrNetwork          = errors.New("network error")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidResponse  = errors.New("invalid response")
	ErrInvalidConfig    = errors.New("invalid configuration")
)
