package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// syncRequest is the optional body of a sync trigger
type syncRequest struct {
	Limit int `json:"limit"`
}

// createAccountRequest connects a creator account to the service
type createAccountRequest struct {
	ExternalID    string `json:"external_id" binding:"required"`
	Handle        string `json:"handle" binding:"required"`
	AccountType   string `json:"account_type"`
	CredentialRef string `json:"credential_ref" binding:"required"`
}

// createAccount registers a creator account for tracking. The first sync for
// the account bootstraps its baseline snapshots.
func (r *Router) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		NewError(http.StatusBadRequest, "invalid_request", err.Error()).respond(c)
		return
	}
	if req.AccountType == "" {
		req.AccountType = "business"
	}

	existing, err := r.accounts.GetByExternalID(c.Request.Context(), req.ExternalID)
	if err != nil {
		r.logger.Error("Failed to look up account", zap.Error(err))
		NewError(http.StatusInternalServerError, "internal_error", "failed to look up account").respond(c)
		return
	}
	if existing != nil {
		NewError(http.StatusConflict, "account_exists", "this platform account is already connected").respond(c)
		return
	}

	account := &models.Account{
		ExternalID:    req.ExternalID,
		Handle:        req.Handle,
		AccountType:   req.AccountType,
		CredentialRef: req.CredentialRef,
	}
	if err := r.accounts.Create(c.Request.Context(), account); err != nil {
		r.logger.Error("Failed to create account", zap.Error(err))
		NewError(http.StatusInternalServerError, "internal_error", "failed to create account").respond(c)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// startSync launches an asynchronous sync for the account. The job runs in
// the background; the response only carries the id to watch.
func (r *Router) startSync(c *gin.Context) {
	accountID, ok := r.accountID(c)
	if !ok {
		return
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		NewError(http.StatusBadRequest, "invalid_request", "request body must be JSON").respond(c)
		return
	}

	jobID, err := r.pipeline.StartSync(c.Request.Context(), accountID, req.Limit)
	if err != nil {
		r.respondSyncError(c, accountID, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"events": "/api/v1/jobs/" + jobID + "/events",
	})
}

// respondSyncError maps pipeline start errors onto HTTP statuses
func (r *Router) respondSyncError(c *gin.Context, accountID int64, err error) {
	var throttle *sync.ThrottleError
	switch {
	case errors.Is(err, sync.ErrAccountNotFound):
		NewError(http.StatusNotFound, "account_not_found", err.Error()).respond(c)
	case errors.Is(err, sync.ErrSyncInFlight):
		NewError(http.StatusConflict, "sync_in_flight", err.Error()).respond(c)
	case errors.As(err, &throttle):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"code":               "sync_throttled",
				"message":            throttle.Error(),
				"last_snapshot_date": throttle.LastSnapshotDate.Format("2006-01-02"),
				"next_allowed_date":  throttle.NextAllowedDate.Format("2006-01-02"),
				"days_remaining":     throttle.DaysRemaining,
			},
		})
	default:
		r.logger.Error("Failed to start sync",
			zap.Int64("account_id", accountID),
			zap.Error(err))
		NewError(http.StatusInternalServerError, "internal_error", "failed to start sync").respond(c)
	}
}

// getSnapshot returns the account's most recent completed snapshot
func (r *Router) getSnapshot(c *gin.Context) {
	accountID, ok := r.accountID(c)
	if !ok {
		return
	}

	snapshot, err := r.pipeline.LatestSnapshot(c.Request.Context(), accountID)
	if err != nil {
		r.logger.Error("Failed to load snapshot", zap.Int64("account_id", accountID), zap.Error(err))
		NewError(http.StatusInternalServerError, "internal_error", "failed to load snapshot").respond(c)
		return
	}
	if snapshot == nil {
		NewError(http.StatusNotFound, "snapshot_not_found", "no completed snapshot for this account").respond(c)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// getGrowth returns the growth comparison between the two latest snapshots
func (r *Router) getGrowth(c *gin.Context) {
	accountID, ok := r.accountID(c)
	if !ok {
		return
	}

	growth, err := r.pipeline.GrowthComparison(c.Request.Context(), accountID)
	if err != nil {
		r.logger.Error("Failed to compute growth", zap.Int64("account_id", accountID), zap.Error(err))
		NewError(http.StatusInternalServerError, "internal_error", "failed to compute growth").respond(c)
		return
	}
	if growth == nil {
		NewError(http.StatusNotFound, "growth_unavailable", "fewer than two completed snapshots").respond(c)
		return
	}

	c.JSON(http.StatusOK, growth)
}

// getJob returns the in-memory state of a running job
func (r *Router) getJob(c *gin.Context) {
	job := r.registry.Get(c.Param("job_id"))
	if job == nil {
		NewError(http.StatusNotFound, "job_not_found", "job is not running in this process").respond(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":       job.ID,
		"account_id":   job.AccountID,
		"account_type": job.AccountType,
		"phase":        job.Phase,
		"progress":     job.Progress,
		"started_at":   job.StartedAt,
	})
}

// streamJobEvents streams a job's progress events as server-sent events
// until the terminal event arrives or the client disconnects. Events emitted
// before the subscription are not replayed.
func (r *Router) streamJobEvents(c *gin.Context) {
	jobID := c.Param("job_id")

	events, cancel := r.events.Subscribe(jobID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				r.logger.Error("Failed to marshal event", zap.Error(err))
				continue
			}
			c.SSEvent(string(ev.Type), string(payload))
			c.Writer.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

// accountID parses the account id path parameter
func (r *Router) accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("account_id"), 10, 64)
	if err != nil || id <= 0 {
		NewError(http.StatusBadRequest, "invalid_account_id", "account_id must be a positive integer").respond(c)
		return 0, false
	}
	return id, true
}
