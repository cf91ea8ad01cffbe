package alerts

import "errors"

// ErrNotFound indicates a missing alert, or one excluded by a
// lifecycle precondition (e.g. restoring a record that is not trashed).
var ErrNotFound = errors.New("alert: not found")

// ErrValidation indicates caller-supplied data violated an invariant.
var ErrValidation = errors.New("alert: invalid input")

// ErrInvalidWindow indicates end_time would not be after start_time.
var ErrInvalidWindow = errors.New("alert: end_time must be after start_time")

// ErrAlreadyDeleted indicates a soft delete of an already trashed alert.
var ErrAlreadyDeleted = errors.New("alert: already deleted")
