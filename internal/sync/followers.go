package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

// Reconstruction tiers, from most to least accurate
const (
	TierDeltaSeries  = "delta_series"
	TierFollowerLog  = "follower_log"
	TierCurrentCount = "current_count"
)

// plausibleFloor rejects reconstructed counts at or below this value as
// implausible and moves on to the next tier
const plausibleFloor = 10

// Reconstructor estimates an account's total follower count as of a
// historical period end. The platform only exposes the current total plus a
// daily-delta series, never a point-in-time historical total, so this is a
// best-effort estimate. The result is stored verbatim on the snapshot and
// never retroactively corrected.
type Reconstructor struct {
	platform     PlatformAPI
	followerLogs FollowerLogStore
	logger       *zap.Logger
	now          func() time.Time
}

// NewReconstructor creates a new follower reconstructor
func NewReconstructor(api PlatformAPI, followerLogs FollowerLogStore) *Reconstructor {
	return &Reconstructor{
		platform:     api,
		followerLogs: followerLogs,
		logger:       logging.GetLogger().With(zap.String("component", "follower-reconstructor")),
		now:          time.Now,
	}
}

// reconstructionTier is one strategy in the ordered fallback chain
type reconstructionTier struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

// Reconstruct estimates the follower count at periodEnd and reports which
// tier produced it. It never fails: the current count is the final fallback.
func (r *Reconstructor) Reconstruct(ctx context.Context, token string, account *models.Account, period Period, currentFollowers int64) (int64, string) {
	tiers := []reconstructionTier{
		{name: TierDeltaSeries, run: func(ctx context.Context) (int64, error) {
			return r.fromDeltaSeries(ctx, token, account, period.End, currentFollowers)
		}},
		{name: TierFollowerLog, run: func(ctx context.Context) (int64, error) {
			return r.fromFollowerLog(ctx, account.ID, period)
		}},
	}

	for _, tier := range tiers {
		count, err := tier.run(ctx)
		if err != nil {
			r.logger.Warn("Reconstruction tier failed, falling through",
				zap.Int64("account_id", account.ID),
				zap.String("tier", tier.name),
				zap.Error(err))
			continue
		}
		if count <= plausibleFloor {
			r.logger.Warn("Reconstruction tier yielded implausible count, falling through",
				zap.Int64("account_id", account.ID),
				zap.String("tier", tier.name),
				zap.Int64("count", count))
			continue
		}
		return count, tier.name
	}

	// Least accurate: certain account tiers never expose historical deltas
	r.logger.Warn("Falling back to current follower count for historical period",
		zap.Int64("account_id", account.ID),
		zap.Time("period_end", period.End))

	return currentFollowers, TierCurrentCount
}

// fromDeltaSeries subtracts the followers gained after the period from the
// current total: estimated = current - sum(deltas in (periodEnd, now])
func (r *Reconstructor) fromDeltaSeries(ctx context.Context, token string, account *models.Account, periodEnd time.Time, currentFollowers int64) (int64, error) {
	now := r.now().UTC()
	if !periodEnd.Before(toDate(now)) {
		// Period ends today; nothing was gained "after" it
		return currentFollowers, nil
	}

	deltas, err := r.platform.GetFollowerDeltas(ctx, token, account.ExternalID, periodEnd, now)
	if err != nil {
		return 0, err
	}
	if len(deltas) == 0 {
		return 0, fmt.Errorf("empty follower delta series")
	}

	var gainedAfter int64
	for _, d := range deltas {
		gainedAfter += d.Value
	}

	return currentFollowers - gainedAfter, nil
}

// fromFollowerLog uses the closest periodic sample recorded inside the
// target period
func (r *Reconstructor) fromFollowerLog(ctx context.Context, accountID int64, period Period) (int64, error) {
	sample, err := r.followerLogs.ClosestInPeriod(ctx, accountID, period.Start, period.End)
	if err != nil {
		return 0, err
	}
	if sample == nil {
		return 0, fmt.Errorf("no follower log sample in period")
	}
	return sample.Followers, nil
}
