package models

import "time"

// JobPhase is the lifecycle phase of a sync job
type JobPhase string

// Job lifecycle phases
const (
	JobPending     JobPhase = "pending"
	JobFetching    JobPhase = "fetching"
	JobAggregating JobPhase = "aggregating"
	JobEnriching   JobPhase = "enriching"
	JobComplete    JobPhase = "complete"
	JobFailed      JobPhase = "failed"
)

// SyncJob identifies one pipeline execution. It is ephemeral: it exists
// only for the duration of a run and for progress-channel correlation.
type SyncJob struct {
	ID          string
	AccountID   int64
	AccountType string
	Phase       JobPhase
	Progress    int
	StartedAt   time.Time
}

// FetchSummary reports the outcome of the per-post fetch loop
type FetchSummary struct {
	Total   int      `json:"total"`
	Synced  int      `json:"synced"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// JobSummary is the payload of the terminal complete event
type JobSummary struct {
	JobID              string            `json:"job_id"`
	AccountID          int64             `json:"account_id"`
	SyncNumbers        []int             `json:"sync_numbers"`
	Fetch              FetchSummary      `json:"fetch"`
	Growth             *GrowthComparison `json:"growth,omitempty"`
	EnrichmentAttached int               `json:"enrichment_attached"`
	EnrichmentFailed   int               `json:"enrichment_failed"`
	ReconstructionTier string            `json:"reconstruction_tier"`
	QuickFeedback      map[string]string `json:"quick_feedback,omitempty"`
	Duration           string            `json:"duration"`
}
