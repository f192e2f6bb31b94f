package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByExternalID retrieves an account by its platform identifier
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// UpdateProfile refreshes the cached profile fields on an account
func (r *AccountRepository) UpdateProfile(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Model(account).
		Select("handle", "bio", "profile_image", "followers", "following", "post_count", "updated_at").
		Updates(account).Error
}

// SnapshotRepository provides profile-snapshot database operations
type SnapshotRepository struct {
	*Repository
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(repo *Repository) *SnapshotRepository {
	return &SnapshotRepository{Repository: repo}
}

// GetLatest retrieves the most recent snapshot for an account by period end.
// Pending placeholder rows count: a concurrently running sync must be seen.
func (r *SnapshotRepository) GetLatest(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error) {
	var snapshot models.ProfileSnapshot
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("period_end DESC, sync_number DESC").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// GetLatestComplete retrieves the most recent non-pending snapshot
func (r *SnapshotRepository) GetLatestComplete(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error) {
	var snapshot models.ProfileSnapshot
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND pending = false", accountID).
		Order("period_end DESC, sync_number DESC").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// GetBySyncNumber retrieves a snapshot by its per-account sync number
func (r *SnapshotRepository) GetBySyncNumber(ctx context.Context, accountID int64, syncNumber int) (*models.ProfileSnapshot, error) {
	var snapshot models.ProfileSnapshot
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND sync_number = ?", accountID, syncNumber).
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// Create creates a new snapshot row
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// Fill replaces a pending placeholder with the aggregated snapshot in place
func (r *SnapshotRepository) Fill(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	snapshot.Pending = false
	return r.db.WithContext(ctx).Save(snapshot).Error
}

// UpdateDemographics backfills demographic breakdowns on an existing snapshot
func (r *SnapshotRepository) UpdateDemographics(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	return r.db.WithContext(ctx).Model(snapshot).
		Select("age_gender_json", "city_json", "country_json").
		Updates(snapshot).Error
}

// UpdateEnrichment backfills enrichment results on an existing snapshot
func (r *SnapshotRepository) UpdateEnrichment(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	return r.db.WithContext(ctx).Model(snapshot).
		Select("niche", "language", "visual_quality", "sentiment", "hashtag_score",
			"cta_score", "color_mood", "trend_relevance", "monetization_score",
			"payout_estimate", "audience_sentiment", "retention_curve_json").
		Updates(snapshot).Error
}

// DeletePending removes pending placeholder rows left by a failed job so the
// next attempt safely recomputes the same sync numbers
func (r *SnapshotRepository) DeletePending(ctx context.Context, accountID int64, syncNumbers []int) error {
	if len(syncNumbers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("account_id = ? AND sync_number IN ? AND pending = true", accountID, syncNumbers).
		Delete(&models.ProfileSnapshot{}).Error
}

// InsightRepository provides media-insight database operations
type InsightRepository struct {
	*Repository
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(repo *Repository) *InsightRepository {
	return &InsightRepository{Repository: repo}
}

// Upsert inserts or updates the insight row for (account, media, observed day)
func (r *InsightRepository) Upsert(ctx context.Context, insight *models.MediaInsight) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "media_id"},
			{Name: "observed_on"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"media_type", "product_type", "caption", "media_url", "posted_at",
			"reach", "saved", "likes", "comments", "shares",
			"views", "watch_time_ms", "fetched_at",
		}),
	}).Create(insight).Error
}

// ListForPeriod retrieves insight rows whose post timestamp falls inside the
// inclusive [periodStart, periodEnd] date range. The latest observation per
// media wins when a post was fetched on several days.
func (r *InsightRepository) ListForPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) ([]*models.MediaInsight, error) {
	var rows []*models.MediaInsight
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND posted_at >= ? AND posted_at < ?",
			accountID, periodStart, periodEnd.AddDate(0, 0, 1)).
		Order("media_id, observed_on DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	// Keep only the most recent observation of each media
	latest := make([]*models.MediaInsight, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if seen[row.MediaID] {
			continue
		}
		seen[row.MediaID] = true
		latest = append(latest, row)
	}
	return latest, nil
}

// FollowerLogRepository provides follower-log database operations
type FollowerLogRepository struct {
	*Repository
}

// NewFollowerLogRepository creates a new follower-log repository
func NewFollowerLogRepository(repo *Repository) *FollowerLogRepository {
	return &FollowerLogRepository{Repository: repo}
}

// Record appends an observed follower count sample
func (r *FollowerLogRepository) Record(ctx context.Context, log *models.FollowerLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ClosestInPeriod retrieves the sample recorded closest to periodEnd within
// [periodStart, periodEnd], or nil when no sample exists in the window
func (r *FollowerLogRepository) ClosestInPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (*models.FollowerLog, error) {
	var log models.FollowerLog
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND recorded_at >= ? AND recorded_at < ?",
			accountID, periodStart, periodEnd.AddDate(0, 0, 1)).
		Order("recorded_at DESC").
		First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}
