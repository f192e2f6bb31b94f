package sync

import (
	"context"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// AccountStore is the account persistence the pipeline needs
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	UpdateProfile(ctx context.Context, account *models.Account) error
}

// SnapshotStore is the snapshot persistence the pipeline needs
type SnapshotStore interface {
	GetLatest(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error)
	GetLatestComplete(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error)
	GetBySyncNumber(ctx context.Context, accountID int64, syncNumber int) (*models.ProfileSnapshot, error)
	Create(ctx context.Context, snapshot *models.ProfileSnapshot) error
	Fill(ctx context.Context, snapshot *models.ProfileSnapshot) error
	UpdateDemographics(ctx context.Context, snapshot *models.ProfileSnapshot) error
	UpdateEnrichment(ctx context.Context, snapshot *models.ProfileSnapshot) error
	DeletePending(ctx context.Context, accountID int64, syncNumbers []int) error
}

// InsightStore is the per-post metric persistence the pipeline needs
type InsightStore interface {
	Upsert(ctx context.Context, insight *models.MediaInsight) error
	ListForPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) ([]*models.MediaInsight, error)
}

// FollowerLogStore is the follower sample persistence the pipeline needs
type FollowerLogStore interface {
	Record(ctx context.Context, log *models.FollowerLog) error
	ClosestInPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (*models.FollowerLog, error)
}
