package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/platform"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

// Aggregator rolls a period's MediaInsight rows plus the reconstructed
// follower count into one ProfileSnapshot
type Aggregator struct {
	platform  PlatformAPI
	insights  InsightStore
	snapshots SnapshotStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewAggregator creates a new snapshot aggregator
func NewAggregator(api PlatformAPI, insights InsightStore, snapshots SnapshotStore) *Aggregator {
	return &Aggregator{
		platform:  api,
		insights:  insights,
		snapshots: snapshots,
		logger:    logging.GetLogger().With(zap.String("component", "aggregator")),
		now:       time.Now,
	}
}

// Aggregate computes the period's metrics and persists the snapshot row.
// Persistence failure is fatal to the job; demographic absence is not.
//
// Engagement rate is computed against the reconstructed follower count while
// the active-follower percentage uses the current active-follower signal for
// every snapshot, including historical ones. This is an intentional
// approximation: the platform exposes no historical version of the active
// signal. Do not "fix" it.
func (a *Aggregator) Aggregate(ctx context.Context, token string, account *models.Account, period Period, totalFollowers int64, tier string, collectDemographics bool) (*models.ProfileSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.aggregate")
	defer span.End()

	rows, err := a.insights.ListForPeriod(ctx, account.ID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to scan insights for period: %w", err)
	}

	var totalLikes, totalComments, totalShares, totalSaves, totalReach, totalEngagement int64
	for _, row := range rows {
		totalLikes += row.Likes
		totalComments += row.Comments
		totalShares += row.Shares
		totalSaves += row.Saved
		totalReach += row.Reach
		totalEngagement += row.Engagement()
	}

	postsAnalyzed := len(rows)

	var engagementRate, avgReach float64
	if postsAnalyzed > 0 && totalFollowers > 0 {
		engagementRate = round2(float64(totalEngagement) / float64(postsAnalyzed) / float64(totalFollowers) * 100)
	}
	if postsAnalyzed > 0 {
		avgReach = round2(float64(totalReach) / float64(postsAnalyzed))
	}

	// Point-in-time proxy; see the method comment
	var activeFollowers int64
	var activePct float64
	active, err := a.platform.GetActiveFollowers(ctx, token, account.ExternalID)
	if err != nil {
		a.logger.Warn("Active follower signal unavailable",
			zap.Int64("account_id", account.ID),
			zap.Error(err))
	} else {
		activeFollowers = active
		if totalFollowers > 0 {
			activePct = round2(float64(activeFollowers) / float64(totalFollowers) * 100)
		}
	}

	// Fill the pending placeholder when the planner reserved one
	snapshot, err := a.snapshots.GetBySyncNumber(ctx, account.ID, period.SyncNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load placeholder snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = &models.ProfileSnapshot{
			AccountID:  account.ID,
			SyncNumber: period.SyncNumber,
			CreatedAt:  a.now().UTC(),
		}
	}

	snapshot.PeriodStart = period.Start
	snapshot.PeriodEnd = period.End
	snapshot.PostsAnalyzed = postsAnalyzed
	snapshot.TotalFollowers = totalFollowers
	snapshot.ActiveFollowers = activeFollowers
	snapshot.ActiveFollowerPct = activePct
	snapshot.EngagementRate = engagementRate
	snapshot.AvgReach = avgReach
	snapshot.TotalLikes = totalLikes
	snapshot.TotalComments = totalComments
	snapshot.TotalShares = totalShares
	snapshot.TotalSaves = totalSaves
	snapshot.ReconstructionTier = sql.NullString{String: tier, Valid: tier != ""}

	if collectDemographics {
		a.attachDemographics(ctx, token, account, snapshot)
	}

	if snapshot.ID == 0 {
		err = a.snapshots.Create(ctx, snapshot)
	} else {
		err = a.snapshots.Fill(ctx, snapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist snapshot %d: %w", period.SyncNumber, err)
	}

	a.logger.Info("Snapshot persisted",
		zap.Int64("account_id", account.ID),
		zap.Int("sync_number", snapshot.SyncNumber),
		zap.Int("posts_analyzed", postsAnalyzed),
		zap.Int64("total_followers", totalFollowers),
		zap.Float64("engagement_rate", engagementRate))

	return snapshot, nil
}

// attachDemographics fetches audience breakdowns onto the snapshot.
// Breakdowns may legitimately be empty without failing the snapshot.
func (a *Aggregator) attachDemographics(ctx context.Context, token string, account *models.Account, snapshot *models.ProfileSnapshot) {
	demo, err := a.platform.GetDemographics(ctx, token, account.ExternalID)
	if err != nil {
		if platform.IsPermission(err) {
			a.logger.Warn("Demographics scope not granted for account",
				zap.Int64("account_id", account.ID),
				zap.Error(err))
		} else {
			a.logger.Warn("Demographics unavailable",
				zap.Int64("account_id", account.ID),
				zap.Error(err))
		}
		return
	}
	ApplyDemographics(snapshot, demo)
}

// ApplyDemographics writes the non-empty breakdowns onto the snapshot
func ApplyDemographics(snapshot *models.ProfileSnapshot, demo *platform.Demographics) {
	if demo.Empty() {
		return
	}
	if len(demo.AgeGender) > 0 {
		if raw, err := json.Marshal(demo.AgeGender); err == nil {
			snapshot.AgeGenderJSON = sql.NullString{String: string(raw), Valid: true}
		}
	}
	if len(demo.City) > 0 {
		if raw, err := json.Marshal(demo.City); err == nil {
			snapshot.CityJSON = sql.NullString{String: string(raw), Valid: true}
		}
	}
	if len(demo.Country) > 0 {
		if raw, err := json.Marshal(demo.Country); err == nil {
			snapshot.CountryJSON = sql.NullString{String: string(raw), Valid: true}
		}
	}
}
