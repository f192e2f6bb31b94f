package sync

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/progress"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

// Registry owns the lifecycle of active sync jobs. It is the only code path
// allowed to emit terminal events, which prevents double completion, and it
// tracks which account currently has a sync in flight.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*models.SyncJob
	byAcct  map[int64]string
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewRegistry creates a new job registry around an event emitter
func NewRegistry(emitter progress.Emitter) *Registry {
	return &Registry{
		jobs:    make(map[string]*models.SyncJob),
		byAcct:  make(map[int64]string),
		emitter: emitter,
		logger:  logging.GetLogger().With(zap.String("component", "job-registry")),
	}
}

// Register adds a new job. It fails when the account already has one in
// flight in this process.
func (r *Registry) Register(job *models.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAcct[job.AccountID]; exists {
		return ErrSyncInFlight
	}

	job.Phase = models.JobPending
	job.StartedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	r.byAcct[job.AccountID] = job.ID

	return nil
}

// Get returns the job with the given id, or nil
func (r *Registry) Get(jobID string) *models.SyncJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[jobID]
}

// Progress advances the job's phase and percentage and broadcasts the event.
// Emission is fire-and-forget; it never blocks the pipeline.
func (r *Registry) Progress(jobID string, phase models.JobPhase, percent int, message string) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if ok {
		job.Phase = phase
		if percent > job.Progress {
			job.Progress = percent
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.emitter.Progress(jobID, percent, message)
}

// Complete terminates the job successfully. Only the first terminal call
// wins; later ones are ignored.
func (r *Registry) Complete(jobID string, summary *models.JobSummary) {
	job := r.finish(jobID, models.JobComplete)
	if job == nil {
		return
	}
	r.emitter.Complete(jobID, summary)
	r.logger.Info("Sync job complete",
		zap.String("job_id", jobID),
		zap.Int64("account_id", job.AccountID),
		zap.Duration("duration", time.Since(job.StartedAt)))
}

// Fail terminates the job with an error. Mutually exclusive with Complete.
func (r *Registry) Fail(jobID string, code, message string) {
	job := r.finish(jobID, models.JobFailed)
	if job == nil {
		return
	}
	r.emitter.Error(jobID, code, message)
	r.logger.Error("Sync job failed",
		zap.String("job_id", jobID),
		zap.Int64("account_id", job.AccountID),
		zap.String("code", code),
		zap.String("message", message))
}

// finish removes the job and returns it, or nil when it was already terminal
func (r *Registry) finish(jobID string, phase models.JobPhase) *models.SyncJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil
	}
	job.Phase = phase
	delete(r.jobs, jobID)
	delete(r.byAcct, job.AccountID)
	return job
}
