package model

import "time"

// Result is the output of one (entity, source) collection task. Collectors
// always return a Result; failures are recorded in ErrorMessage rather than
// raised.
type Result struct {
	EntityID   int64      `json:"entity_id"`
	EntityName string     `json:"entity_name"`
	EntityType EntityType `json:"entity_type"`
	Source     Source     `json:"source"`

	Success      bool     `json:"success"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`

	Items []Item `json:"-"`

	RequestsMade    int64     `json:"requests_made"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}

// NewResult starts a result for the given entity and source with the clock
// running.
func NewResult(e Entity, src Source) *Result {
	return &Result{
		EntityID:   e.ID,
		EntityName: e.Name,
		EntityType: e.Type,
		Source:     src,
		StartedAt:  time.Now().UTC(),
	}
}

// AddItem appends a collected item.
func (r *Result) AddItem(it Item) {
	r.Items = append(r.Items, it)
}

// Warn records a non-fatal problem.
func (r *Result) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Fail marks the result failed with the given message and stops the clock.
func (r *Result) Fail(msg string) *Result {
	r.Success = false
	r.ErrorMessage = msg
	r.CompletedAt = time.Now().UTC()
	return r
}

// Complete marks the result successful and stops the clock.
func (r *Result) Complete() *Result {
	r.Success = true
	r.CompletedAt = time.Now().UTC()
	return r
}

// Duration returns wall time between start and completion.
func (r *Result) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
