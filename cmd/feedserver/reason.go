package main

import (
	"errors"

	"candlefeed/internal/feed/live"
)

// rejectReason maps a controller error to a metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, live.ErrInvalidBarOrdering):
		return "ordering"
	case errors.Is(err, live.ErrInvalidBar):
		return "invalid"
	case errors.Is(err, live.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
