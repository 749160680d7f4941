package contact

import "errors"

// ErrNotFound is returned when a contact id has no matching row.
var ErrNotFound = errors.New("contact: not found")
