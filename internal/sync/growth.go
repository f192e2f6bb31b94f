package sync

import (
	"math"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// CompareMetric computes the delta and percentage change between a previous
// and current value. A zero baseline yields 100% when the value appeared and
// 0% when it stayed at zero.
func CompareMetric(previous, current float64) models.MetricChange {
	change := round2(current - previous)

	var pct float64
	switch {
	case previous == 0 && current > 0:
		pct = 100
	case previous == 0:
		pct = 0
	default:
		pct = round2((current - previous) / previous * 100)
	}

	return models.MetricChange{
		Previous:         previous,
		Current:          current,
		Change:           change,
		ChangePercentage: pct,
	}
}

// Compare computes the period-over-period growth between two consecutive
// snapshots. The result is transient and never persisted on its own.
func Compare(previous, current *models.ProfileSnapshot) *models.GrowthComparison {
	return &models.GrowthComparison{
		AccountID:          current.AccountID,
		PreviousSyncNumber: previous.SyncNumber,
		CurrentSyncNumber:  current.SyncNumber,
		Followers:          CompareMetric(float64(previous.TotalFollowers), float64(current.TotalFollowers)),
		EngagementRate:     CompareMetric(previous.EngagementRate, current.EngagementRate),
		AvgReach:           CompareMetric(previous.AvgReach, current.AvgReach),
		ActiveFollowerPct:  CompareMetric(previous.ActiveFollowerPct, current.ActiveFollowerPct),

		PostsAnalyzedPrevious: previous.PostsAnalyzed,
		PostsAnalyzedCurrent:  current.PostsAnalyzed,
		PostsAnalyzedChange:   current.PostsAnalyzed - previous.PostsAnalyzed,
	}
}

// round2 rounds to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
