package campaign

import "errors"

// ErrNotFound is returned when a campaign id has no matching row.
var ErrNotFound = errors.New("campaign: not found")

// ErrInvalidTransition is returned when CanTransition rejects a status change.
var ErrInvalidTransition = errors.New("campaign: invalid status transition")
