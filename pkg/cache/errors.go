package cache

import "errors"

var (
	// ErrInvalidConfig is returned by New for a negative size or TTL
	ErrInvalidConfig = errors.New("invalid cache config")

	// ErrBusClosed is returned when publishing on a closed invalidation bus
	ErrBusClosed = errors.New("invalidation bus closed")
)
