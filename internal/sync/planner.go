package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

// Period is one planned snapshot window, dates inclusive
type Period struct {
	Start      time.Time
	End        time.Time
	SyncNumber int
}

// Plan is the output of the throttle gate and period planner
type Plan struct {
	JobID   string
	Periods []Period
	// Bootstrap marks a first-ever sync, which plans two windows so an
	// immediate growth comparison is possible
	Bootstrap bool
	// DemographicsOnly marks a grace-window retry that backfills the
	// demographic breakdowns of an existing snapshot without a full resync
	DemographicsOnly bool
	// TargetSnapshot is set for demographics-only plans
	TargetSnapshot *models.ProfileSnapshot
}

// SyncNumbers lists the sync numbers the plan will produce
func (p *Plan) SyncNumbers() []int {
	nums := make([]int, 0, len(p.Periods))
	for _, period := range p.Periods {
		nums = append(nums, period.SyncNumber)
	}
	return nums
}

// Planner gates the start of a new sync and computes the exact period(s) it
// will cover. Planning itself is pure; Reserve writes the placeholder rows.
type Planner struct {
	snapshots SnapshotStore
	cfg       *config.SyncConfig
	logger    *zap.Logger
	// now is swappable for tests
	now func() time.Time
}

// NewPlanner creates a new planner
func NewPlanner(snapshots SnapshotStore, cfg *config.SyncConfig) *Planner {
	return &Planner{
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logging.GetLogger().With(zap.String("component", "sync-planner")),
		now:       time.Now,
	}
}

// PlanSync validates eligibility and computes the snapshot period(s).
// Throttle violations are returned before any work starts.
func (p *Planner) PlanSync(ctx context.Context, account *models.Account) (*Plan, error) {
	today := toDate(p.now().UTC())

	latest, err := p.snapshots.GetLatest(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest snapshot: %w", err)
	}

	// Cold start: plan a 30-day baseline window followed by the current
	// window, both ending today. No throttle check applies.
	if latest == nil {
		window := p.cfg.BootstrapWindow
		plan := &Plan{
			JobID:     uuid.NewString(),
			Bootstrap: true,
			Periods: []Period{
				{
					Start:      today.AddDate(0, 0, -2*window),
					End:        today.AddDate(0, 0, -(window + 1)),
					SyncNumber: 1,
				},
				{
					Start:      today.AddDate(0, 0, -window),
					End:        today,
					SyncNumber: 2,
				},
			},
		}
		p.logger.Info("Planned bootstrap sync",
			zap.Int64("account_id", account.ID),
			zap.String("job_id", plan.JobID))
		return plan, nil
	}

	// A pending placeholder means another sync already reserved the next
	// sync number and has not finished
	if latest.Pending {
		return nil, ErrSyncInFlight
	}

	lastEnd := toDate(latest.PeriodEnd)
	daysSince := daysBetween(lastEnd, today)

	if daysSince < p.cfg.ThrottleDays {
		// Grace window: a snapshot missing demographics may retry just the
		// demographics collection without a full resync
		if !latest.HasDemographics() && daysSince <= p.cfg.DemographicsGrace {
			p.logger.Info("Planned demographics-grace retry",
				zap.Int64("account_id", account.ID),
				zap.Int("sync_number", latest.SyncNumber))
			return &Plan{
				JobID:            uuid.NewString(),
				DemographicsOnly: true,
				TargetSnapshot:   latest,
			}, nil
		}

		return nil, &ThrottleError{
			LastSnapshotDate: lastEnd,
			NextAllowedDate:  lastEnd.AddDate(0, 0, p.cfg.ThrottleDays),
			DaysRemaining:    p.cfg.ThrottleDays - daysSince,
		}
	}

	// Progressive sync: the new period starts the day after the previous
	// one ended, keeping periods contiguous and non-overlapping
	plan := &Plan{
		JobID: uuid.NewString(),
		Periods: []Period{
			{
				Start:      lastEnd.AddDate(0, 0, 1),
				End:        today,
				SyncNumber: latest.SyncNumber + 1,
			},
		},
	}

	p.logger.Info("Planned progressive sync",
		zap.Int64("account_id", account.ID),
		zap.Int("sync_number", plan.Periods[0].SyncNumber),
		zap.String("job_id", plan.JobID))

	return plan, nil
}

// Reserve writes zero-valued pending placeholder rows for the planned sync
// numbers so a concurrent "is a sync needed" query does not race with the
// running sync
func (p *Planner) Reserve(ctx context.Context, accountID int64, plan *Plan) error {
	for _, period := range plan.Periods {
		placeholder := &models.ProfileSnapshot{
			AccountID:   accountID,
			SyncNumber:  period.SyncNumber,
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
			Pending:     true,
			CreatedAt:   p.now().UTC(),
		}
		if err := p.snapshots.Create(ctx, placeholder); err != nil {
			// Roll back earlier reservations so a retry starts clean
			if delErr := p.snapshots.DeletePending(ctx, accountID, plan.SyncNumbers()); delErr != nil {
				p.logger.Error("Failed to roll back placeholder snapshots", zap.Error(delErr))
			}
			return fmt.Errorf("failed to reserve snapshot %d: %w", period.SyncNumber, err)
		}
	}
	return nil
}

// toDate truncates a timestamp to its UTC calendar date
func toDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole days from a to b
func daysBetween(a, b time.Time) int {
	return int(toDate(b).Sub(toDate(a)).Hours() / 24)
}
