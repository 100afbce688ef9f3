package api

import (
	"time"

	"scribe/internal/queue"
)

type submitRequest struct {
	Owner string `json:"owner"`
	File  string `json:"file"`
	URL   string `json:"url"`
}

type taskResponse struct {
	ID             int64      `json:"id"`
	Owner          string     `json:"owner"`
	State          string     `json:"state"`
	File           string     `json:"file,omitempty"`
	URL            string     `json:"url,omitempty"`
	Attempts       int        `json:"attempts"`
	NotifyAttempts int        `json:"notify_attempts"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
}

type statsResponse struct {
	Finished       int     `json:"finished"`
	InFlight       int     `json:"in_flight"`
	Pending        int     `json:"pending"`
	TotalSeconds   float64 `json:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newTaskResponse(task *queue.Task) taskResponse {
	return taskResponse{
		ID:             task.ID,
		Owner:          task.Owner,
		State:          task.State(),
		File:           task.File,
		URL:            task.URL,
		Attempts:       task.Attempts,
		NotifyAttempts: task.NotifyAttempts,
		LastError:      task.LastError,
		CreatedAt:      task.CreatedAt,
		StartedAt:      task.StartedAt,
		FinishedAt:     task.FinishedAt,
		FailedAt:       task.FailedAt,
	}
}

func newTaskListResponse(tasks []*queue.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, newTaskResponse(task))
	}
	return out
}
