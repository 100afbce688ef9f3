package queue

import "errors"

// ErrNotFound is returned when a task id does not exist. Tasks are never
// deleted, so hitting this from the worker indicates operator interference
// with the database.
var ErrNotFound = errors.New("task not found")

// ErrValidation is returned by Insert when the owner address or the source
// is unusable.
var ErrValidation = errors.New("invalid task")
