package queue

import (
	"time"
)

// Task represents one transcription request and its lifecycle state.
//
// Source rules: exactly one of File and URL is set at creation. A URL task
// gains a File once acquisition succeeds; File tasks keep theirs forever.
type Task struct {
	ID              int64
	Owner           string
	File            string
	URL             string
	ResultText      string
	ResultSubtitles string
	Done            bool
	Attempts        int
	NotifyAttempts  int
	LastError       string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	FailedAt        *time.Time
}

// Pending reports whether the task is eligible for claiming.
func (t Task) Pending() bool {
	return t.StartedAt == nil && !t.Done && t.FailedAt == nil
}

// Processing reports whether the task is claimed but not yet finished,
// failed, or done.
func (t Task) Processing() bool {
	return t.StartedAt != nil && t.FinishedAt == nil && t.FailedAt == nil && !t.Done
}

// Finished reports whether transcription output has been persisted.
func (t Task) Finished() bool {
	return t.FinishedAt != nil
}

// Failed reports whether the task has been terminally failed.
func (t Task) Failed() bool {
	return t.FailedAt != nil
}

// Source returns the task's current media reference: the local file when one
// exists, otherwise the URL.
func (t Task) Source() string {
	if t.File != "" {
		return t.File
	}
	return t.URL
}

// State returns a presentation label for listings.
func (t Task) State() string {
	switch {
	case t.Done:
		return "done"
	case t.FailedAt != nil:
		return "failed"
	case t.FinishedAt != nil:
		return "finished"
	case t.StartedAt != nil:
		return "processing"
	default:
		return "pending"
	}
}

// Stats aggregates history for the statistics view.
type Stats struct {
	Finished      int
	InFlight      int
	TotalDuration time.Duration
	AvgDuration   time.Duration
}
