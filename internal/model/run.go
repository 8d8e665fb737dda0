package model

import "time"

// RunStatus represents the current state of a collection run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusSkipped  RunStatus = "skipped"
)

// Run is the persisted record of one orchestrator invocation.
type Run struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	Sources    []Source   `json:"sources"`
	Mode       Mode       `json:"mode"`
	Status     RunStatus  `json:"status"`

	Entities     int `json:"entities"`
	TasksTotal   int `json:"tasks_total"`
	TasksOK      int `json:"tasks_ok"`
	TasksFailed  int `json:"tasks_failed"`
	TasksSkipped int `json:"tasks_skipped"`

	ItemsPersisted int `json:"items_persisted"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsSkipped   int `json:"items_skipped"`
	ItemsFailed    int `json:"items_failed"`

	RequestsMade    int64 `json:"requests_made"`
	BytesDownloaded int64 `json:"bytes_downloaded"`

	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Task is the persisted record of one (entity, source) task within a run.
type Task struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	EntityID   int64  `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Source     Source `json:"source"`

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	Warnings     int    `json:"warnings"`

	Items     int `json:"items"`
	Persisted int `json:"persisted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	RequestsMade    int64     `json:"requests_made"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}
