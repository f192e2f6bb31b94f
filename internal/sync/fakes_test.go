package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/analysis"
	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/platform"
)

// fakePlatform implements PlatformAPI with per-method function hooks
type fakePlatform struct {
	profile         func(ctx context.Context, token, userID string) (*platform.Profile, error)
	listMedia       func(ctx context.Context, token, userID string, limit int) ([]platform.Media, error)
	mediaInsights   func(ctx context.Context, token string, media platform.Media) (*platform.MediaMetrics, error)
	followerDeltas  func(ctx context.Context, token, userID string, since, until time.Time) ([]platform.DayCount, error)
	activeFollowers func(ctx context.Context, token, userID string) (int64, error)
	demographics    func(ctx context.Context, token, userID string) (*platform.Demographics, error)
}

func (f *fakePlatform) GetProfile(ctx context.Context, token, userID string) (*platform.Profile, error) {
	if f.profile == nil {
		return &platform.Profile{ID: userID}, nil
	}
	return f.profile(ctx, token, userID)
}

func (f *fakePlatform) ListMedia(ctx context.Context, token, userID string, limit int) ([]platform.Media, error) {
	if f.listMedia == nil {
		return nil, nil
	}
	return f.listMedia(ctx, token, userID, limit)
}

func (f *fakePlatform) GetMediaInsights(ctx context.Context, token string, media platform.Media) (*platform.MediaMetrics, error) {
	if f.mediaInsights == nil {
		return &platform.MediaMetrics{}, nil
	}
	return f.mediaInsights(ctx, token, media)
}

func (f *fakePlatform) GetFollowerDeltas(ctx context.Context, token, userID string, since, until time.Time) ([]platform.DayCount, error) {
	if f.followerDeltas == nil {
		return nil, fmt.Errorf("follower deltas unavailable")
	}
	return f.followerDeltas(ctx, token, userID, since, until)
}

func (f *fakePlatform) GetActiveFollowers(ctx context.Context, token, userID string) (int64, error) {
	if f.activeFollowers == nil {
		return 0, fmt.Errorf("active followers unavailable")
	}
	return f.activeFollowers(ctx, token, userID)
}

func (f *fakePlatform) GetDemographics(ctx context.Context, token, userID string) (*platform.Demographics, error) {
	if f.demographics == nil {
		return &platform.Demographics{}, nil
	}
	return f.demographics(ctx, token, userID)
}

// memSnapshots is an in-memory SnapshotStore keyed by sync number
type memSnapshots struct {
	rows    map[int]*models.ProfileSnapshot
	nextID  int64
	failOps map[string]error
	// failBySync fails GetBySyncNumber for specific sync numbers only
	failBySync map[int]error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		rows:       make(map[int]*models.ProfileSnapshot),
		failOps:    make(map[string]error),
		failBySync: make(map[int]error),
	}
}

func (m *memSnapshots) GetLatest(_ context.Context, accountID int64) (*models.ProfileSnapshot, error) {
	if err := m.failOps["GetLatest"]; err != nil {
		return nil, err
	}
	var latest *models.ProfileSnapshot
	for _, row := range m.rows {
		if row.AccountID != accountID {
			continue
		}
		if latest == nil || row.SyncNumber > latest.SyncNumber {
			latest = row
		}
	}
	return latest, nil
}

func (m *memSnapshots) GetLatestComplete(ctx context.Context, accountID int64) (*models.ProfileSnapshot, error) {
	var latest *models.ProfileSnapshot
	for _, row := range m.rows {
		if row.AccountID != accountID || row.Pending {
			continue
		}
		if latest == nil || row.SyncNumber > latest.SyncNumber {
			latest = row
		}
	}
	return latest, nil
}

func (m *memSnapshots) GetBySyncNumber(_ context.Context, accountID int64, syncNumber int) (*models.ProfileSnapshot, error) {
	if err := m.failBySync[syncNumber]; err != nil {
		return nil, err
	}
	row := m.rows[syncNumber]
	if row == nil || row.AccountID != accountID {
		return nil, nil
	}
	return row, nil
}

func (m *memSnapshots) Create(_ context.Context, snapshot *models.ProfileSnapshot) error {
	if err := m.failOps["Create"]; err != nil {
		return err
	}
	if _, exists := m.rows[snapshot.SyncNumber]; exists {
		return fmt.Errorf("duplicate sync number %d", snapshot.SyncNumber)
	}
	m.nextID++
	snapshot.ID = m.nextID
	m.rows[snapshot.SyncNumber] = snapshot
	return nil
}

func (m *memSnapshots) Fill(_ context.Context, snapshot *models.ProfileSnapshot) error {
	if err := m.failOps["Fill"]; err != nil {
		return err
	}
	snapshot.Pending = false
	m.rows[snapshot.SyncNumber] = snapshot
	return nil
}

func (m *memSnapshots) UpdateDemographics(_ context.Context, snapshot *models.ProfileSnapshot) error {
	m.rows[snapshot.SyncNumber] = snapshot
	return nil
}

func (m *memSnapshots) UpdateEnrichment(_ context.Context, snapshot *models.ProfileSnapshot) error {
	if err := m.failOps["UpdateEnrichment"]; err != nil {
		return err
	}
	m.rows[snapshot.SyncNumber] = snapshot
	return nil
}

func (m *memSnapshots) DeletePending(_ context.Context, accountID int64, syncNumbers []int) error {
	for _, n := range syncNumbers {
		if row := m.rows[n]; row != nil && row.AccountID == accountID && row.Pending {
			delete(m.rows, n)
		}
	}
	return nil
}

// memInsights is an in-memory InsightStore
type memInsights struct {
	rows      []*models.MediaInsight
	upsertErr error
}

func (m *memInsights) Upsert(_ context.Context, insight *models.MediaInsight) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.rows = append(m.rows, insight)
	return nil
}

func (m *memInsights) ListForPeriod(_ context.Context, accountID int64, periodStart, periodEnd time.Time) ([]*models.MediaInsight, error) {
	var out []*models.MediaInsight
	for _, row := range m.rows {
		if row.AccountID != accountID {
			continue
		}
		if row.PostedAt.Before(periodStart) || !row.PostedAt.Before(periodEnd.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// memFollowerLogs is an in-memory FollowerLogStore
type memFollowerLogs struct {
	samples []*models.FollowerLog
}

func (m *memFollowerLogs) Record(_ context.Context, log *models.FollowerLog) error {
	m.samples = append(m.samples, log)
	return nil
}

func (m *memFollowerLogs) ClosestInPeriod(_ context.Context, accountID int64, periodStart, periodEnd time.Time) (*models.FollowerLog, error) {
	var closest *models.FollowerLog
	for _, s := range m.samples {
		if s.AccountID != accountID {
			continue
		}
		if s.RecordedAt.Before(periodStart) || !s.RecordedAt.Before(periodEnd.AddDate(0, 0, 1)) {
			continue
		}
		if closest == nil || s.RecordedAt.After(closest.RecordedAt) {
			closest = s
		}
	}
	return closest, nil
}

// memAccounts is an in-memory AccountStore
type memAccounts struct {
	accounts map[int64]*models.Account
}

func (m *memAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	return m.accounts[id], nil
}

func (m *memAccounts) UpdateProfile(_ context.Context, _ *models.Account) error {
	return nil
}

// fakeAnalyzer implements analysis.Analyzer with function hooks
type fakeAnalyzer struct {
	analyze  func(ctx context.Context, kind string, input analysis.Input) (json.RawMessage, error)
	generate func(ctx context.Context, kind, prompt string) (string, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, kind string, input analysis.Input) (json.RawMessage, error) {
	if f.analyze == nil {
		return json.RawMessage(`{"score": 5}`), nil
	}
	return f.analyze(ctx, kind, input)
}

func (f *fakeAnalyzer) Generate(ctx context.Context, kind, prompt string) (string, error) {
	if f.generate == nil {
		return "", fmt.Errorf("generation unavailable")
	}
	return f.generate(ctx, kind, prompt)
}
