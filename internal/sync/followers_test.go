package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/platform"
)

func testReconstructor(api PlatformAPI, logs FollowerLogStore, today time.Time) *Reconstructor {
	r := NewReconstructor(api, logs)
	r.now = func() time.Time { return today }
	return r
}

func TestReconstructFromDeltaSeries(t *testing.T) {
	today := date(2026, 3, 15)
	api := &fakePlatform{
		followerDeltas: func(_ context.Context, _, _ string, since, until time.Time) ([]platform.DayCount, error) {
			return []platform.DayCount{
				{Date: since.AddDate(0, 0, 1), Value: 30},
				{Date: since.AddDate(0, 0, 2), Value: 20},
			}, nil
		},
	}
	r := testReconstructor(api, &memFollowerLogs{}, today)

	period := Period{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31), SyncNumber: 1}
	count, tier := r.Reconstruct(context.Background(), "token", &models.Account{ID: 1}, period, 1000)

	if tier != TierDeltaSeries {
		t.Errorf("tier = %q, want %q", tier, TierDeltaSeries)
	}
	// current 1000 minus 50 gained after the period
	if count != 950 {
		t.Errorf("count = %d, want 950", count)
	}
}

func TestReconstructPeriodEndingTodayUsesCurrent(t *testing.T) {
	today := date(2026, 3, 15)
	api := &fakePlatform{
		followerDeltas: func(context.Context, string, string, time.Time, time.Time) ([]platform.DayCount, error) {
			t.Error("delta series must not be queried when the period ends today")
			return nil, fmt.Errorf("unexpected call")
		},
	}
	r := testReconstructor(api, &memFollowerLogs{}, today)

	period := Period{Start: today.AddDate(0, 0, -30), End: today, SyncNumber: 2}
	count, tier := r.Reconstruct(context.Background(), "token", &models.Account{ID: 1}, period, 1000)

	if tier != TierDeltaSeries {
		t.Errorf("tier = %q, want %q", tier, TierDeltaSeries)
	}
	if count != 1000 {
		t.Errorf("count = %d, want 1000", count)
	}
}

func TestReconstructFallsBackToFollowerLog(t *testing.T) {
	today := date(2026, 3, 15)
	api := &fakePlatform{
		followerDeltas: func(context.Context, string, string, time.Time, time.Time) ([]platform.DayCount, error) {
			return nil, fmt.Errorf("account tier does not expose deltas")
		},
	}
	logs := &memFollowerLogs{samples: []*models.FollowerLog{
		{AccountID: 1, Followers: 870, RecordedAt: today.AddDate(0, 0, -40)},
		{AccountID: 1, Followers: 890, RecordedAt: today.AddDate(0, 0, -33)},
	}}
	r := testReconstructor(api, logs, today)

	period := Period{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31), SyncNumber: 1}
	count, tier := r.Reconstruct(context.Background(), "token", &models.Account{ID: 1}, period, 1000)

	if tier != TierFollowerLog {
		t.Errorf("tier = %q, want %q", tier, TierFollowerLog)
	}
	// The sample closest to the period end wins
	if count != 890 {
		t.Errorf("count = %d, want 890", count)
	}
}

func TestReconstructFallsBackToCurrentCount(t *testing.T) {
	today := date(2026, 3, 15)
	api := &fakePlatform{
		followerDeltas: func(context.Context, string, string, time.Time, time.Time) ([]platform.DayCount, error) {
			return nil, fmt.Errorf("unavailable")
		},
	}
	r := testReconstructor(api, &memFollowerLogs{}, today)

	period := Period{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31), SyncNumber: 1}
	count, tier := r.Reconstruct(context.Background(), "token", &models.Account{ID: 1}, period, 1000)

	if tier != TierCurrentCount {
		t.Errorf("tier = %q, want %q", tier, TierCurrentCount)
	}
	if count != 1000 {
		t.Errorf("count = %d, want 1000", count)
	}
}

func TestReconstructRejectsImplausibleEstimate(t *testing.T) {
	today := date(2026, 3, 15)
	api := &fakePlatform{
		// A delta sum larger than the current count yields a nonsense estimate
		followerDeltas: func(_ context.Context, _, _ string, since, _ time.Time) ([]platform.DayCount, error) {
			return []platform.DayCount{{Date: since, Value: 995}}, nil
		},
	}
	logs := &memFollowerLogs{samples: []*models.FollowerLog{
		{AccountID: 1, Followers: 940, RecordedAt: today.AddDate(0, 0, -35)},
	}}
	r := testReconstructor(api, logs, today)

	period := Period{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31), SyncNumber: 1}
	count, tier := r.Reconstruct(context.Background(), "token", &models.Account{ID: 1}, period, 1000)

	if tier != TierFollowerLog {
		t.Errorf("tier = %q, want %q", tier, TierFollowerLog)
	}
	if count != 940 {
		t.Errorf("count = %d, want 940", count)
	}
}
