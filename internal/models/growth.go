package models

// MetricChange holds the previous/current pair for one tracked metric
// together with its absolute and percentage deltas
type MetricChange struct {
	Previous         float64 `json:"previous"`
	Current          float64 `json:"current"`
	Change           float64 `json:"change"`
	ChangePercentage float64 `json:"change_percentage"`
}

// GrowthComparison is computed on demand from two consecutive snapshots.
// It is transient: returned to callers, never persisted on its own.
type GrowthComparison struct {
	AccountID          int64        `json:"account_id"`
	PreviousSyncNumber int          `json:"previous_sync_number"`
	CurrentSyncNumber  int          `json:"current_sync_number"`
	Followers          MetricChange `json:"followers"`
	EngagementRate     MetricChange `json:"engagement_rate"`
	AvgReach           MetricChange `json:"avg_reach"`
	ActiveFollowerPct  MetricChange `json:"active_follower_pct"`
	// Post count tracks the absolute change only, no percentage
	PostsAnalyzedPrevious int `json:"posts_analyzed_previous"`
	PostsAnalyzedCurrent  int `json:"posts_analyzed_current"`
	PostsAnalyzedChange   int `json:"posts_analyzed_change"`
}
