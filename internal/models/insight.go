package models

import (
	"database/sql"
	"time"
)

// MediaInsight is a per-post metric row scoped to one calendar day of
// observation. Refetching the same post on the same day updates the
// existing row instead of duplicating it.
type MediaInsight struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID int64  `gorm:"not null;uniqueIndex:pulse_media_insights_ux1,priority:1;column:account_id"`
	MediaID   string `gorm:"type:varchar(64);not null;uniqueIndex:pulse_media_insights_ux1,priority:2;column:media_id"`
	// ObservedOn is the calendar day (UTC date) the metrics were fetched
	ObservedOn time.Time `gorm:"type:date;not null;uniqueIndex:pulse_media_insights_ux1,priority:3;column:observed_on"`

	MediaType   string `gorm:"type:varchar(32);not null;column:media_type"`
	ProductType string `gorm:"type:varchar(32);not null;default:'';column:product_type"`

	Caption  sql.NullString `gorm:"type:text;column:caption"`
	MediaURL sql.NullString `gorm:"type:varchar(1024);column:media_url"`

	// PostedAt is the post's own timestamp; snapshots scan rows whose
	// PostedAt falls within the snapshot period
	PostedAt time.Time `gorm:"not null;index;column:posted_at"`

	Reach    int64 `gorm:"not null;default:0;column:reach"`
	Saved    int64 `gorm:"not null;default:0;column:saved"`
	Likes    int64 `gorm:"not null;default:0;column:likes"`
	Comments int64 `gorm:"not null;default:0;column:comments"`
	Shares   int64 `gorm:"not null;default:0;column:shares"`

	// Video-only metrics, zero for image/carousel media
	Views       int64 `gorm:"not null;default:0;column:views"`
	WatchTimeMs int64 `gorm:"not null;default:0;column:watch_time_ms"`

	FetchedAt time.Time `gorm:"not null;column:fetched_at"`
}

// TableName specifies the table name for MediaInsight
func (MediaInsight) TableName() string {
	return "pulse_media_insights"
}

// Engagement returns the combined engagement count for the row
func (m *MediaInsight) Engagement() int64 {
	return m.Likes + m.Comments + m.Shares + m.Saved
}

// FollowerLog is a periodic sample of an account's observed follower count.
// Follower reconstruction uses it as the second fallback tier when the
// platform's daily-delta series is unavailable.
type FollowerLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID  int64     `gorm:"not null;index:pulse_follower_logs_ix1;column:account_id"`
	Followers  int64     `gorm:"not null;column:followers"`
	RecordedAt time.Time `gorm:"not null;index:pulse_follower_logs_ix1;column:recorded_at"`
}

// TableName specifies the table name for FollowerLog
func (FollowerLog) TableName() string {
	return "pulse_follower_logs"
}
