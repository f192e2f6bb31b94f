package progress

import (
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// EventType identifies a job lifecycle event
type EventType string

// Job lifecycle event types. complete and error are terminal and mutually
// exclusive; each fires at most once per job.
const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one job lifecycle event. Delivery is at-most-once: subscribers
// connecting after an event fired never see it.
type Event struct {
	JobID     string             `json:"job_id"`
	Type      EventType          `json:"type"`
	Percent   int                `json:"percent"`
	Message   string             `json:"message,omitempty"`
	Summary   *models.JobSummary `json:"summary,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Terminal reports whether the event ends the job's event stream
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Emitter broadcasts job lifecycle events to subscribers. Emitting is
// fire-and-forget: it never blocks pipeline execution.
type Emitter interface {
	Progress(jobID string, percent int, message string)
	Complete(jobID string, summary *models.JobSummary)
	Error(jobID string, code, message string)
}
