package models

import (
	"database/sql"
	"time"
)

// ProfileSnapshot is an immutable, period-scoped aggregate of an account's
// performance. One row per (account, sync number); periods are progressive
// and non-overlapping except for the two bootstrap windows.
type ProfileSnapshot struct {
	ID        int64 `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID int64 `gorm:"not null;uniqueIndex:pulse_snapshots_ux1,priority:1;column:account_id"`
	// SyncNumber is strictly increasing per account, starting at 1
	SyncNumber int `gorm:"not null;uniqueIndex:pulse_snapshots_ux1,priority:2;column:sync_number"`

	PeriodStart time.Time `gorm:"type:date;not null;column:period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null;index;column:period_end"`

	// Pending marks a placeholder row reserved by the planner and not yet
	// filled by the aggregator. Failed jobs delete their pending rows.
	Pending bool `gorm:"not null;default:false;column:pending"`

	PostsAnalyzed int `gorm:"not null;default:0;column:posts_analyzed"`

	// TotalFollowers is reconstructed for historical periods and is
	// best-effort, not necessarily exact
	TotalFollowers    int64   `gorm:"not null;default:0;column:total_followers"`
	ActiveFollowers   int64   `gorm:"not null;default:0;column:active_followers"`
	ActiveFollowerPct float64 `gorm:"type:decimal(6,2);not null;default:0;column:active_follower_pct"`

	EngagementRate float64 `gorm:"type:decimal(8,2);not null;default:0;column:engagement_rate"`
	AvgReach       float64 `gorm:"type:decimal(14,2);not null;default:0;column:avg_reach"`

	TotalLikes    int64 `gorm:"not null;default:0;column:total_likes"`
	TotalComments int64 `gorm:"not null;default:0;column:total_comments"`
	TotalShares   int64 `gorm:"not null;default:0;column:total_shares"`
	TotalSaves    int64 `gorm:"not null;default:0;column:total_saves"`

	// ReconstructionTier records which fallback tier produced TotalFollowers
	ReconstructionTier sql.NullString `gorm:"type:varchar(32);column:reconstruction_tier"`

	// Audience demographics, each optional; raw platform breakdowns as JSON
	AgeGenderJSON sql.NullString `gorm:"type:text;column:age_gender_json"`
	CityJSON      sql.NullString `gorm:"type:text;column:city_json"`
	CountryJSON   sql.NullString `gorm:"type:text;column:country_json"`

	// Enrichment analyses, each independently nullable
	Niche              sql.NullString  `gorm:"type:varchar(64);column:niche"`
	Language           sql.NullString  `gorm:"type:varchar(16);column:language"`
	VisualQuality      sql.NullFloat64 `gorm:"type:decimal(5,2);column:visual_quality"`
	Sentiment          sql.NullFloat64 `gorm:"type:decimal(5,2);column:sentiment"`
	HashtagScore       sql.NullFloat64 `gorm:"type:decimal(5,2);column:hashtag_score"`
	CTAScore           sql.NullFloat64 `gorm:"type:decimal(5,2);column:cta_score"`
	ColorMood          sql.NullString  `gorm:"type:varchar(64);column:color_mood"`
	TrendRelevance     sql.NullFloat64 `gorm:"type:decimal(5,2);column:trend_relevance"`
	MonetizationScore  sql.NullFloat64 `gorm:"type:decimal(8,2);column:monetization_score"`
	PayoutEstimate     sql.NullFloat64 `gorm:"type:decimal(12,2);column:payout_estimate"`
	AudienceSentiment  sql.NullString  `gorm:"type:varchar(32);column:audience_sentiment"`
	RetentionCurveJSON sql.NullString  `gorm:"type:text;column:retention_curve_json"`

	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for ProfileSnapshot
func (ProfileSnapshot) TableName() string {
	return "pulse_profile_snapshots"
}

// HasDemographics reports whether any demographic breakdown was collected
func (s *ProfileSnapshot) HasDemographics() bool {
	return s.AgeGenderJSON.Valid || s.CityJSON.Valid || s.CountryJSON.Valid
}
