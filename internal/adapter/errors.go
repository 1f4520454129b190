package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a file does not exist or lies outside the configured folder.
	ErrNotFound = errors.New("file not found")

	// ErrLimitExceeded is returned by stores that cap size or item count.
	ErrLimitExceeded = errors.New("storage limit exceeded")
)
