package sync

import (
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

func TestCompareMetric(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		wantPct  float64
	}{
		{"growth", 100, 150, 50},
		{"decline", 200, 150, -25},
		{"flat", 80, 80, 0},
		{"zero baseline with growth", 0, 5, 100},
		{"zero baseline stays zero", 0, 0, 0},
		{"rounding", 3, 4, 33.33},
		{"drop to zero", 50, 0, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareMetric(tt.previous, tt.current)
			if got.ChangePercentage != tt.wantPct {
				t.Errorf("ChangePercentage = %v, want %v", got.ChangePercentage, tt.wantPct)
			}
			if got.Previous != tt.previous || got.Current != tt.current {
				t.Errorf("values not carried through: %+v", got)
			}
			if want := round2(tt.current - tt.previous); got.Change != want {
				t.Errorf("Change = %v, want %v", got.Change, want)
			}
		})
	}
}

func TestCompareSnapshots(t *testing.T) {
	previous := &models.ProfileSnapshot{
		AccountID:         1,
		SyncNumber:        1,
		TotalFollowers:    1000,
		EngagementRate:    2.5,
		AvgReach:          400,
		ActiveFollowerPct: 60,
		PostsAnalyzed:     20,
	}
	current := &models.ProfileSnapshot{
		AccountID:         1,
		SyncNumber:        2,
		TotalFollowers:    1200,
		EngagementRate:    3.0,
		AvgReach:          300,
		ActiveFollowerPct: 60,
		PostsAnalyzed:     25,
	}

	growth := Compare(previous, current)

	if growth.PreviousSyncNumber != 1 || growth.CurrentSyncNumber != 2 {
		t.Errorf("sync numbers = %d, %d, want 1, 2", growth.PreviousSyncNumber, growth.CurrentSyncNumber)
	}
	if growth.Followers.ChangePercentage != 20 {
		t.Errorf("followers change = %v, want 20", growth.Followers.ChangePercentage)
	}
	if growth.EngagementRate.ChangePercentage != 20 {
		t.Errorf("engagement change = %v, want 20", growth.EngagementRate.ChangePercentage)
	}
	if growth.AvgReach.ChangePercentage != -25 {
		t.Errorf("reach change = %v, want -25", growth.AvgReach.ChangePercentage)
	}
	if growth.ActiveFollowerPct.ChangePercentage != 0 {
		t.Errorf("active pct change = %v, want 0", growth.ActiveFollowerPct.ChangePercentage)
	}
	if growth.PostsAnalyzedChange != 5 {
		t.Errorf("posts change = %d, want 5", growth.PostsAnalyzedChange)
	}
}
