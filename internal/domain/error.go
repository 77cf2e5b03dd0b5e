package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Flow errors
	ErrPriceUndefined = errors.New("price is not defined for conversation")

	// Payment provider errors
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected request")
	ErrUnknownTransaction  = errors.New("unknown payment transaction")
	ErrMalformedCallback   = errors.New("malformed payment callback")
)
