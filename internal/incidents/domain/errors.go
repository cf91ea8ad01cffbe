package incidents

import "errors"

// ErrNotFound indicates a missing incident record.
var ErrNotFound = errors.New("incident: not found")

// ErrValidation indicates caller-supplied data violated an invariant.
var ErrValidation = errors.New("incident: invalid input")
