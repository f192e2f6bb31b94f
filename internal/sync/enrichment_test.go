package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/analysis"
	"github.com/creatorpulse/creatorpulse/internal/models"
)

func testEnricher(analyzer analysis.Analyzer, snapshots SnapshotStore) *Enricher {
	cfg := testSyncConfig
	return NewEnricher(analyzer, snapshots, nil, &cfg)
}

func enrichmentRows() []*models.MediaInsight {
	return []*models.MediaInsight{
		{AccountID: 1, MediaID: "m1", Caption: sql.NullString{String: "first post", Valid: true}, MediaURL: sql.NullString{String: "https://cdn/m1.jpg", Valid: true}},
		{AccountID: 1, MediaID: "m2", Caption: sql.NullString{String: "second post", Valid: true}},
	}
}

// analyzeByKind answers each analysis kind with a plausible result, failing
// the kinds listed in failKinds
func analyzeByKind(failKinds ...string) func(context.Context, string, analysis.Input) (json.RawMessage, error) {
	failing := make(map[string]bool, len(failKinds))
	for _, k := range failKinds {
		failing[k] = true
	}
	return func(_ context.Context, kind string, _ analysis.Input) (json.RawMessage, error) {
		if failing[kind] {
			return nil, fmt.Errorf("%s analysis unavailable", kind)
		}
		switch kind {
		case "niche":
			return json.RawMessage(`{"niche":"fitness"}`), nil
		case "language":
			return json.RawMessage(`{"language":"en"}`), nil
		case "color_mood":
			return json.RawMessage(`{"mood":"warm"}`), nil
		case "audience_sentiment":
			return json.RawMessage(`{"label":"positive"}`), nil
		default:
			return json.RawMessage(`{"score":7.5}`), nil
		}
	}
}

func TestEnrichSettlesAllTasks(t *testing.T) {
	snapshots := newMemSnapshots()
	snapshot := &models.ProfileSnapshot{AccountID: 1, SyncNumber: 2, PostsAnalyzed: 2}
	snapshots.rows[2] = snapshot

	analyzer := &fakeAnalyzer{analyze: analyzeByKind("sentiment")}
	enricher := testEnricher(analyzer, snapshots)

	attached, failed := enricher.Enrich(context.Background(), snapshot, enrichmentRows(), nil)

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	// Ten of eleven analyses succeed, plus the derived retention curve
	if attached != 11 {
		t.Errorf("attached = %d, want 11", attached)
	}
	if snapshot.Sentiment.Valid {
		t.Error("failed analysis must leave its field null")
	}
	if !snapshot.Niche.Valid || snapshot.Niche.String != "fitness" {
		t.Errorf("niche = %+v, want valid 'fitness'", snapshot.Niche)
	}
	if !snapshot.VisualQuality.Valid || snapshot.VisualQuality.Float64 != 7.5 {
		t.Errorf("visual quality = %+v, want valid 7.5", snapshot.VisualQuality)
	}
	if !snapshot.RetentionCurveJSON.Valid {
		t.Error("retention curve must derive from the visual-quality result")
	}
}

func TestEnrichAllTasksFail(t *testing.T) {
	snapshots := newMemSnapshots()
	snapshot := &models.ProfileSnapshot{AccountID: 1, SyncNumber: 2}
	snapshots.rows[2] = snapshot

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string, analysis.Input) (json.RawMessage, error) {
		return nil, fmt.Errorf("analysis backend down")
	}}
	enricher := testEnricher(analyzer, snapshots)

	attached, failed := enricher.Enrich(context.Background(), snapshot, enrichmentRows(), nil)

	if attached != 0 {
		t.Errorf("attached = %d, want 0", attached)
	}
	if failed != 11 {
		t.Errorf("failed = %d, want 11", failed)
	}
	if snapshot.RetentionCurveJSON.Valid {
		t.Error("retention curve must not derive without a visual-quality result")
	}
}

func TestEnrichCarriesPriorForwardWithoutNewContent(t *testing.T) {
	snapshots := newMemSnapshots()
	prior := &models.ProfileSnapshot{
		AccountID:     1,
		SyncNumber:    2,
		Niche:         sql.NullString{String: "travel", Valid: true},
		VisualQuality: sql.NullFloat64{Float64: 6, Valid: true},
	}
	current := &models.ProfileSnapshot{AccountID: 1, SyncNumber: 3}
	snapshots.rows[3] = current

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string, analysis.Input) (json.RawMessage, error) {
		t.Error("no analysis may run when there is no new content")
		return nil, fmt.Errorf("unexpected analysis call")
	}}
	enricher := testEnricher(analyzer, snapshots)

	attached, failed := enricher.Enrich(context.Background(), current, nil, prior)

	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if attached != 2 {
		t.Errorf("attached = %d, want 2", attached)
	}
	if current.Niche.String != "travel" {
		t.Errorf("niche = %q, want carried-forward 'travel'", current.Niche.String)
	}
}

func TestEstimateRetentionCurve(t *testing.T) {
	curve := estimateRetentionCurve(10)

	if len(curve) != 6 {
		t.Fatalf("curve length = %d, want 6", len(curve))
	}
	if curve[0] != 100 {
		t.Errorf("curve[0] = %v, want 100", curve[0])
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] >= curve[i-1] {
			t.Errorf("curve must strictly decrease, got %v", curve)
			break
		}
	}

	// Lower quality drops off faster
	low := estimateRetentionCurve(0)
	if low[5] >= curve[5] {
		t.Errorf("low quality tail %v must fall below high quality tail %v", low[5], curve[5])
	}
}

func TestQuickFeedbackFallsBackToTemplates(t *testing.T) {
	snapshots := newMemSnapshots()
	snapshot := &models.ProfileSnapshot{AccountID: 1, SyncNumber: 2, TotalFollowers: 500}

	analyzer := &fakeAnalyzer{generate: func(_ context.Context, kind, _ string) (string, error) {
		if kind == "growth_feedback" {
			return "Strong follower growth this period.", nil
		}
		return "", fmt.Errorf("generation failed")
	}}
	enricher := testEnricher(analyzer, snapshots)

	feedback := enricher.QuickFeedback(context.Background(), snapshot, nil)

	if len(feedback) != len(quickFeedbackKinds) {
		t.Fatalf("feedback entries = %d, want %d", len(feedback), len(quickFeedbackKinds))
	}
	if feedback["growth_feedback"] != "Strong follower growth this period." {
		t.Errorf("generated text not used: %q", feedback["growth_feedback"])
	}
	for kind, fallback := range quickFeedbackKinds {
		if kind == "growth_feedback" {
			continue
		}
		if feedback[kind] != fallback {
			t.Errorf("feedback[%q] = %q, want template fallback", kind, feedback[kind])
		}
	}
}
