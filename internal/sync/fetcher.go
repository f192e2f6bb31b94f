package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/platform"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

// Fetcher retrieves the raw material for a snapshot from the external
// platform and persists per-post metric rows
type Fetcher struct {
	platform PlatformAPI
	accounts AccountStore
	insights InsightStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewFetcher creates a new fetcher
func NewFetcher(api PlatformAPI, accounts AccountStore, insights InsightStore) *Fetcher {
	return &Fetcher{
		platform: api,
		accounts: accounts,
		insights: insights,
		logger:   logging.GetLogger().With(zap.String("component", "fetcher")),
		now:      time.Now,
	}
}

// RefreshProfile fetches the current profile summary and writes the cached
// counters back onto the account row
func (f *Fetcher) RefreshProfile(ctx context.Context, token string, account *models.Account) (*platform.Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.refresh_profile")
	defer span.End()

	profile, err := f.platform.GetProfile(ctx, token, account.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh profile: %w", err)
	}

	account.Handle = profile.Username
	account.Bio = sql.NullString{String: profile.Biography, Valid: profile.Biography != ""}
	account.ProfileImage = profile.ProfilePictureURL
	account.Followers = profile.FollowersCount
	account.Following = profile.FollowsCount
	account.PostCount = profile.MediaCount
	account.UpdatedAt = f.now().UTC()

	if err := f.accounts.UpdateProfile(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist profile refresh: %w", err)
	}

	return profile, nil
}

// FetchPosts retrieves the account's post list and per-post insight metrics,
// upserting one MediaInsight row per post. Per-post calls are strictly
// sequential; the platform client enforces the inter-request delay.
//
// Failures are classified per post: skippable errors (post predates the
// account's conversion to a trackable type) are expected and counted
// separately; real errors are counted and reported but do not abort the
// batch. onProgress is invoked after each post with (done, total).
func (f *Fetcher) FetchPosts(ctx context.Context, token string, account *models.Account, limit int, onProgress func(done, total int)) (*models.FetchSummary, []platform.Media, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.fetch_posts")
	defer span.End()

	media, err := f.platform.ListMedia(ctx, token, account.ExternalID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list media: %w", err)
	}

	summary := &models.FetchSummary{Total: len(media)}
	observedOn := toDate(f.now().UTC())
	fetched := make([]platform.Media, 0, len(media))

	for i, m := range media {
		metrics, err := f.platform.GetMediaInsights(ctx, token, m)
		if err != nil {
			if platform.IsSkippable(err) {
				summary.Skipped++
				f.logger.Debug("Skipping pre-conversion post",
					zap.Int64("account_id", account.ID),
					zap.String("media_id", m.ID))
			} else {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", m.ID, err))
				f.logger.Warn("Failed to fetch insights for post",
					zap.Int64("account_id", account.ID),
					zap.String("media_id", m.ID),
					zap.Error(err))
			}
			if onProgress != nil {
				onProgress(i+1, len(media))
			}
			continue
		}

		insight := &models.MediaInsight{
			AccountID:   account.ID,
			MediaID:     m.ID,
			ObservedOn:  observedOn,
			MediaType:   m.MediaType,
			ProductType: m.MediaProductType,
			Caption:     sql.NullString{String: m.Caption, Valid: m.Caption != ""},
			MediaURL:    sql.NullString{String: m.MediaURL, Valid: m.MediaURL != ""},
			PostedAt:    m.Timestamp,
			Reach:       metrics.Reach,
			Saved:       metrics.Saved,
			Likes:       metrics.Likes,
			Comments:    metrics.Comments,
			Shares:      metrics.Shares,
			Views:       metrics.Views,
			WatchTimeMs: metrics.WatchTimeMs,
			FetchedAt:   f.now().UTC(),
		}

		if err := f.insights.Upsert(ctx, insight); err != nil {
			return nil, nil, fmt.Errorf("failed to upsert insight for %s: %w", m.ID, err)
		}

		summary.Synced++
		fetched = append(fetched, m)

		if onProgress != nil {
			onProgress(i+1, len(media))
		}
	}

	f.logger.Info("Fetched post insights",
		zap.Int64("account_id", account.ID),
		zap.Int("total", summary.Total),
		zap.Int("synced", summary.Synced),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	return summary, fetched, nil
}
