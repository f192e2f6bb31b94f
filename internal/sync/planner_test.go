package sync

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/config"
)

var testSyncConfig = config.SyncConfig{
	ThrottleDays:      15,
	BootstrapWindow:   30,
	DemographicsGrace: 3,
	EnrichConcurrency: 4,
	VisualSampleSize:  5,
}

func testPlanner(snapshots SnapshotStore, today time.Time) *Planner {
	cfg := testSyncConfig
	planner := NewPlanner(snapshots, &cfg)
	planner.now = func() time.Time { return today }
	return planner
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanSyncBootstrap(t *testing.T) {
	today := date(2026, 3, 15)
	planner := testPlanner(newMemSnapshots(), today)

	plan, err := planner.PlanSync(context.Background(), &models.Account{ID: 1})
	if err != nil {
		t.Fatalf("PlanSync() error = %v", err)
	}
	if !plan.Bootstrap {
		t.Error("expected bootstrap plan for first-ever sync")
	}
	if plan.JobID == "" {
		t.Error("expected a job id")
	}
	if len(plan.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(plan.Periods))
	}

	baseline, current := plan.Periods[0], plan.Periods[1]
	if baseline.SyncNumber != 1 || current.SyncNumber != 2 {
		t.Errorf("sync numbers = %d, %d, want 1, 2", baseline.SyncNumber, current.SyncNumber)
	}
	if got, want := baseline.Start, today.AddDate(0, 0, -60); !got.Equal(want) {
		t.Errorf("baseline start = %v, want %v", got, want)
	}
	if got, want := baseline.End, today.AddDate(0, 0, -31); !got.Equal(want) {
		t.Errorf("baseline end = %v, want %v", got, want)
	}
	if got, want := current.Start, today.AddDate(0, 0, -30); !got.Equal(want) {
		t.Errorf("current start = %v, want %v", got, want)
	}
	if !current.End.Equal(today) {
		t.Errorf("current end = %v, want %v", current.End, today)
	}
	// The two windows must not overlap
	if !baseline.End.Before(current.Start) {
		t.Error("bootstrap windows overlap")
	}
}

func TestPlanSyncThrottled(t *testing.T) {
	today := date(2026, 3, 15)
	snapshots := newMemSnapshots()
	snapshots.rows[2] = &models.ProfileSnapshot{
		AccountID:     1,
		SyncNumber:    2,
		PeriodEnd:     today.AddDate(0, 0, -5),
		AgeGenderJSON: sql.NullString{String: `{"f.18-24":10}`, Valid: true},
	}
	planner := testPlanner(snapshots, today)

	_, err := planner.PlanSync(context.Background(), &models.Account{ID: 1})
	var throttle *ThrottleError
	if !errors.As(err, &throttle) {
		t.Fatalf("PlanSync() error = %v, want ThrottleError", err)
	}
	if throttle.DaysRemaining != 10 {
		t.Errorf("DaysRemaining = %d, want 10", throttle.DaysRemaining)
	}
	if want := today.AddDate(0, 0, 10); !throttle.NextAllowedDate.Equal(want) {
		t.Errorf("NextAllowedDate = %v, want %v", throttle.NextAllowedDate, want)
	}
	if !IsThrottle(err) {
		t.Error("IsThrottle() = false, want true")
	}
}

func TestPlanSyncDemographicsGrace(t *testing.T) {
	today := date(2026, 3, 15)

	tests := []struct {
		name            string
		daysSince       int
		hasDemographics bool
		wantGrace       bool
	}{
		{"missing demographics inside grace", 2, false, true},
		{"missing demographics at grace boundary", 3, false, true},
		{"missing demographics past grace", 4, false, false},
		{"demographics present inside grace", 2, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots := newMemSnapshots()
			row := &models.ProfileSnapshot{
				AccountID:  1,
				SyncNumber: 3,
				PeriodEnd:  today.AddDate(0, 0, -tt.daysSince),
			}
			if tt.hasDemographics {
				row.CityJSON = sql.NullString{String: `{"Berlin":5}`, Valid: true}
			}
			snapshots.rows[3] = row
			planner := testPlanner(snapshots, today)

			plan, err := planner.PlanSync(context.Background(), &models.Account{ID: 1})
			if tt.wantGrace {
				if err != nil {
					t.Fatalf("PlanSync() error = %v, want grace plan", err)
				}
				if !plan.DemographicsOnly {
					t.Error("expected a demographics-only plan")
				}
				if plan.TargetSnapshot == nil || plan.TargetSnapshot.SyncNumber != 3 {
					t.Error("grace plan must target the latest snapshot")
				}
				if len(plan.Periods) != 0 {
					t.Error("grace plan must not reserve new periods")
				}
			} else if !IsThrottle(err) {
				t.Fatalf("PlanSync() error = %v, want ThrottleError", err)
			}
		})
	}
}

func TestPlanSyncProgressive(t *testing.T) {
	today := date(2026, 3, 15)
	lastEnd := today.AddDate(0, 0, -20)
	snapshots := newMemSnapshots()
	snapshots.rows[3] = &models.ProfileSnapshot{
		AccountID:  1,
		SyncNumber: 3,
		PeriodEnd:  lastEnd,
	}
	planner := testPlanner(snapshots, today)

	plan, err := planner.PlanSync(context.Background(), &models.Account{ID: 1})
	if err != nil {
		t.Fatalf("PlanSync() error = %v", err)
	}
	if plan.Bootstrap {
		t.Error("progressive sync must not be a bootstrap")
	}
	if len(plan.Periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(plan.Periods))
	}

	period := plan.Periods[0]
	if period.SyncNumber != 4 {
		t.Errorf("sync number = %d, want 4", period.SyncNumber)
	}
	// Contiguous: the new period starts the day after the last one ended
	if want := lastEnd.AddDate(0, 0, 1); !period.Start.Equal(want) {
		t.Errorf("period start = %v, want %v", period.Start, want)
	}
	if !period.End.Equal(today) {
		t.Errorf("period end = %v, want %v", period.End, today)
	}
}

func TestPlanSyncPendingBlocksNewSync(t *testing.T) {
	today := date(2026, 3, 15)
	snapshots := newMemSnapshots()
	snapshots.rows[4] = &models.ProfileSnapshot{
		AccountID:  1,
		SyncNumber: 4,
		PeriodEnd:  today,
		Pending:    true,
	}
	planner := testPlanner(snapshots, today)

	_, err := planner.PlanSync(context.Background(), &models.Account{ID: 1})
	if !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("PlanSync() error = %v, want ErrSyncInFlight", err)
	}
}

func TestReserveRollsBackOnFailure(t *testing.T) {
	today := date(2026, 3, 15)
	snapshots := newMemSnapshots()
	// A pre-existing row with sync number 2 makes the second reservation fail
	snapshots.rows[2] = &models.ProfileSnapshot{AccountID: 1, SyncNumber: 2}
	planner := testPlanner(snapshots, today)

	plan := &Plan{
		JobID: "job-1",
		Periods: []Period{
			{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31), SyncNumber: 1},
			{Start: today.AddDate(0, 0, -30), End: today, SyncNumber: 2},
		},
	}

	if err := planner.Reserve(context.Background(), 1, plan); err == nil {
		t.Fatal("Reserve() expected error on duplicate sync number")
	}
	if _, exists := snapshots.rows[1]; exists {
		t.Error("first placeholder must be rolled back after a later failure")
	}
}
