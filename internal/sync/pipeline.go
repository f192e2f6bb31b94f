package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/db"
	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/platform"
	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

// PlatformAPI is the slice of the external platform client the pipeline uses
type PlatformAPI interface {
	GetProfile(ctx context.Context, token, userID string) (*platform.Profile, error)
	ListMedia(ctx context.Context, token, userID string, limit int) ([]platform.Media, error)
	GetMediaInsights(ctx context.Context, token string, media platform.Media) (*platform.MediaMetrics, error)
	GetFollowerDeltas(ctx context.Context, token, userID string, since, until time.Time) ([]platform.DayCount, error)
	GetActiveFollowers(ctx context.Context, token, userID string) (int64, error)
	GetDemographics(ctx context.Context, token, userID string) (*platform.Demographics, error)
}

// CredentialStore resolves the access token for an account. Token refresh is
// owned by an external routine; the pipeline only reads.
type CredentialStore interface {
	AccessToken(ctx context.Context, account *models.Account) (string, error)
}

// CredentialFunc adapts a function to the CredentialStore interface
type CredentialFunc func(ctx context.Context, account *models.Account) (string, error)

// AccessToken implements CredentialStore
func (f CredentialFunc) AccessToken(ctx context.Context, account *models.Account) (string, error) {
	return f(ctx, account)
}

// Error codes surfaced on the error channel event
const (
	errCodeFetchFailed       = "fetch_failed"
	errCodePersistenceFailed = "persistence_failed"
)

// Pipeline runs the snapshot synchronization and growth tracking for one
// account per invocation. A sync is a single long-running asynchronous task;
// once started it cannot be cancelled, only observed to completion.
type Pipeline struct {
	cfg           *config.SyncConfig
	accounts      AccountStore
	snapshots     SnapshotStore
	insights      InsightStore
	followerLogs  FollowerLogStore
	platform      PlatformAPI
	credentials   CredentialStore
	planner       *Planner
	fetcher       *Fetcher
	reconstructor *Reconstructor
	aggregator    *Aggregator
	enricher      *Enricher
	registry      *Registry
	logger        *zap.Logger
	defaultLimit  int
	maxLimit      int
}

// NewPipeline wires the sync pipeline
func NewPipeline(cfg *config.Config, database *db.DB, api PlatformAPI, credentials CredentialStore, enricher *Enricher, registry *Registry) *Pipeline {
	repo := db.NewRepository(database.DB)
	accounts := db.NewAccountRepository(repo)
	snapshots := db.NewSnapshotRepository(repo)
	insights := db.NewInsightRepository(repo)
	followerLogs := db.NewFollowerLogRepository(repo)

	return &Pipeline{
		cfg:           &cfg.Sync,
		accounts:      accounts,
		snapshots:     snapshots,
		insights:      insights,
		followerLogs:  followerLogs,
		platform:      api,
		credentials:   credentials,
		planner:       NewPlanner(snapshots, &cfg.Sync),
		fetcher:       NewFetcher(api, accounts, insights),
		reconstructor: NewReconstructor(api, followerLogs),
		aggregator:    NewAggregator(api, insights, snapshots),
		enricher:      enricher,
		registry:      registry,
		logger:        logging.GetLogger().With(zap.String("component", "sync-pipeline")),
		defaultLimit:  cfg.Platform.DefaultLimit,
		maxLimit:      cfg.Platform.MaxLimit,
	}
}

// StartSync validates eligibility, reserves the planned periods and launches
// the sync in the background. Throttle violations and lookup failures are
// returned synchronously; everything after launch is reported through the
// progress channel.
func (p *Pipeline) StartSync(ctx context.Context, accountID int64, limit int) (string, error) {
	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return "", ErrAccountNotFound
	}

	plan, err := p.planner.PlanSync(ctx, account)
	if err != nil {
		return "", err
	}

	job := &models.SyncJob{
		ID:          plan.JobID,
		AccountID:   account.ID,
		AccountType: account.AccountType,
	}
	if err := p.registry.Register(job); err != nil {
		return "", err
	}

	if !plan.DemographicsOnly {
		if err := p.planner.Reserve(ctx, account.ID, plan); err != nil {
			p.registry.Fail(job.ID, errCodePersistenceFailed, err.Error())
			return "", err
		}
	}

	if limit <= 0 {
		limit = p.defaultLimit
	}
	if p.maxLimit > 0 && limit > p.maxLimit {
		limit = p.maxLimit
	}

	// The job outlives the HTTP request that triggered it
	go p.run(context.Background(), account, plan, limit)

	return job.ID, nil
}

// run executes one sync job end to end
func (p *Pipeline) run(ctx context.Context, account *models.Account, plan *Plan, limit int) {
	ctx, span := telemetry.StartSpan(ctx, "sync.run")
	defer span.End()

	jobID := plan.JobID
	started := time.Now()
	logger := p.logger.With(zap.String("job_id", jobID), zap.Int64("account_id", account.ID))

	token, err := p.credentials.AccessToken(ctx, account)
	if err != nil {
		p.cleanupPlaceholders(ctx, account.ID, plan)
		p.registry.Fail(jobID, errCodeFetchFailed, fmt.Sprintf("credential lookup failed: %v", err))
		return
	}

	if plan.DemographicsOnly {
		p.runDemographicsBackfill(ctx, account, plan, token, started)
		return
	}

	p.registry.Progress(jobID, models.JobFetching, 2, "sync planned")

	// Refresh the cached profile; the current follower count also feeds the
	// follower log and reconstruction
	profile, err := p.fetcher.RefreshProfile(ctx, token, account)
	if err != nil {
		p.cleanupPlaceholders(ctx, account.ID, plan)
		p.registry.Fail(jobID, errCodeFetchFailed, err.Error())
		return
	}
	p.registry.Progress(jobID, models.JobFetching, 5, "profile refreshed")

	if err := p.followerLogs.Record(ctx, &models.FollowerLog{
		AccountID:  account.ID,
		Followers:  profile.FollowersCount,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("Failed to record follower log sample", zap.Error(err))
	}

	fetchSummary, _, err := p.fetcher.FetchPosts(ctx, token, account, limit, func(done, total int) {
		percent := 5 + done*55/total
		p.registry.Progress(jobID, models.JobFetching, percent,
			fmt.Sprintf("fetched %d/%d posts", done, total))
	})
	if err != nil {
		p.cleanupPlaceholders(ctx, account.ID, plan)
		p.registry.Fail(jobID, errCodeFetchFailed, err.Error())
		return
	}

	p.registry.Progress(jobID, models.JobAggregating, 62, "aggregating snapshots")

	// The prior snapshot feeds enrichment copy-forward on progressive syncs
	var prior *models.ProfileSnapshot
	if !plan.Bootstrap {
		prior, err = p.snapshots.GetBySyncNumber(ctx, account.ID, plan.Periods[0].SyncNumber-1)
		if err != nil {
			logger.Warn("Failed to load prior snapshot, growth comparison skipped", zap.Error(err))
		}
	}

	snapshots := make([]*models.ProfileSnapshot, 0, len(plan.Periods))
	var reconstructionTier string
	for i, period := range plan.Periods {
		followers, tier := p.reconstructor.Reconstruct(ctx, token, account, period, profile.FollowersCount)
		reconstructionTier = tier

		// Demographics are collected for the current window only; the
		// platform has no historical version for the baseline window
		collectDemographics := i == len(plan.Periods)-1

		snapshot, err := p.aggregator.Aggregate(ctx, token, account, period, followers, tier, collectDemographics)
		if err != nil {
			// Fatal: a planned sync number must not be silently lost. The
			// placeholders are removed so the next attempt recomputes the
			// same period.
			p.cleanupPlaceholders(ctx, account.ID, plan)
			p.registry.Fail(jobID, errCodePersistenceFailed, err.Error())
			return
		}
		snapshots = append(snapshots, snapshot)

		percent := 62 + (i+1)*16/len(plan.Periods)
		p.registry.Progress(jobID, models.JobAggregating, percent,
			fmt.Sprintf("snapshot %d persisted", snapshot.SyncNumber))
	}

	current := snapshots[len(snapshots)-1]

	var growth *models.GrowthComparison
	if plan.Bootstrap {
		growth = Compare(snapshots[0], snapshots[1])
	} else if prior != nil {
		growth = Compare(prior, current)
	}
	p.registry.Progress(jobID, models.JobEnriching, 80, "growth computed")

	rows, err := p.insights.ListForPeriod(ctx, account.ID, current.PeriodStart, current.PeriodEnd)
	if err != nil {
		logger.Warn("Failed to load rows for enrichment", zap.Error(err))
	}
	attached, enrichFailed := p.enricher.Enrich(ctx, current, rows, prior)
	p.registry.Progress(jobID, models.JobEnriching, 95, "enrichment settled")

	feedback := p.enricher.QuickFeedback(ctx, current, growth)
	p.registry.Progress(jobID, models.JobEnriching, 98, "feedback generated")

	p.registry.Complete(jobID, &models.JobSummary{
		JobID:              jobID,
		AccountID:          account.ID,
		SyncNumbers:        plan.SyncNumbers(),
		Fetch:              *fetchSummary,
		Growth:             growth,
		EnrichmentAttached: attached,
		EnrichmentFailed:   enrichFailed,
		ReconstructionTier: reconstructionTier,
		QuickFeedback:      feedback,
		Duration:           time.Since(started).Round(time.Millisecond).String(),
	})
}

// runDemographicsBackfill retries only the demographics collection within
// the grace window, backfilling the existing snapshot
func (p *Pipeline) runDemographicsBackfill(ctx context.Context, account *models.Account, plan *Plan, token string, started time.Time) {
	jobID := plan.JobID
	snapshot := plan.TargetSnapshot

	p.registry.Progress(jobID, models.JobFetching, 20, "retrying demographics collection")

	demo, err := p.platform.GetDemographics(ctx, token, account.ExternalID)
	if err != nil {
		p.registry.Fail(jobID, errCodeFetchFailed, err.Error())
		return
	}

	ApplyDemographics(snapshot, demo)

	if snapshot.HasDemographics() {
		if err := p.snapshots.UpdateDemographics(ctx, snapshot); err != nil {
			p.registry.Fail(jobID, errCodePersistenceFailed, err.Error())
			return
		}
	}

	p.registry.Progress(jobID, models.JobAggregating, 90, "demographics backfilled")

	p.registry.Complete(jobID, &models.JobSummary{
		JobID:       jobID,
		AccountID:   account.ID,
		SyncNumbers: []int{snapshot.SyncNumber},
		Duration:    time.Since(started).Round(time.Millisecond).String(),
	})
}

// cleanupPlaceholders removes the pending rows reserved for this job so the
// sync numbers are safely recomputed on the next attempt
func (p *Pipeline) cleanupPlaceholders(ctx context.Context, accountID int64, plan *Plan) {
	if plan.DemographicsOnly {
		return
	}
	if err := p.snapshots.DeletePending(ctx, accountID, plan.SyncNumbers()); err != nil {
		p.logger.Error("Failed to clean up placeholder snapshots",
			zap.Int64("account_id", accountID),
			zap.Error(err))
	}
}

// LatestSnapshot returns the account's most recent completed snapshot, or nil
func (p *Pipeline) LatestSnapshot(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error) {
	return p.snapshots.GetLatestComplete(ctx, accountID)
}

// GrowthComparison computes the growth between the account's two most recent
// completed snapshots, or nil when fewer than two exist
func (p *Pipeline) GrowthComparison(ctx context.Context, accountID int64) (*models.GrowthComparison, error) {
	current, err := p.snapshots.GetLatestComplete(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.SyncNumber < 2 {
		return nil, nil
	}

	previous, err := p.snapshots.GetBySyncNumber(ctx, accountID, current.SyncNumber-1)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, nil
	}

	return Compare(previous, current), nil
}
