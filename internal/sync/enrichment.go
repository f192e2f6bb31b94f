package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/analysis"
	"github.com/creatorpulse/creatorpulse/internal/cache"
	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

const enrichmentCacheTTL = 7 * 24 * time.Hour

// Enricher runs the battery of independent content-analysis tasks over a
// period's posts and attaches results to the snapshot. Each task is isolated:
// a failure is logged and its field left null, never failing the job or
// blocking sibling tasks.
type Enricher struct {
	analyzer  analysis.Analyzer
	snapshots SnapshotStore
	cache     *cache.Cache
	cfg       *config.SyncConfig
	logger    *zap.Logger
}

// NewEnricher creates a new enricher. cache may be nil when Redis is disabled.
func NewEnricher(analyzer analysis.Analyzer, snapshots SnapshotStore, c *cache.Cache, cfg *config.SyncConfig) *Enricher {
	return &Enricher{
		analyzer:  analyzer,
		snapshots: snapshots,
		cache:     c,
		cfg:       cfg,
		logger:    logging.GetLogger().With(zap.String("component", "enricher")),
	}
}

// enrichTask is one independent analysis in the fan-out batch
type enrichTask struct {
	name string
	run  func(ctx context.Context) error
}

// Enrich runs the fan-out over the snapshot's posts and backfills the
// results. Returns how many analyses attached and how many failed.
func (e *Enricher) Enrich(ctx context.Context, snapshot *models.ProfileSnapshot, rows []*models.MediaInsight, prior *models.ProfileSnapshot) (attached, failed int) {
	ctx, span := telemetry.StartSpan(ctx, "sync.enrich")
	defer span.End()

	captions, mediaURLs := corpus(rows)

	// A progressive sync with no newly observed content reuses the prior
	// snapshot's cached analyses instead of recomputing them
	if len(rows) == 0 && prior != nil {
		copyEnrichment(prior, snapshot)
		if err := e.snapshots.UpdateEnrichment(ctx, snapshot); err != nil {
			e.logger.Error("Failed to carry enrichment forward", zap.Error(err))
			return 0, 0
		}
		e.logger.Info("Carried prior enrichment forward, no new content",
			zap.Int64("account_id", snapshot.AccountID),
			zap.Int("sync_number", snapshot.SyncNumber))
		return countAttached(snapshot), 0
	}

	cacheKey := e.corpusKey(snapshot.AccountID, rows)
	if e.tryCached(ctx, cacheKey, snapshot) {
		return countAttached(snapshot), 0
	}

	var mu sync.Mutex
	tasks := e.buildTasks(snapshot, captions, mediaURLs, &mu)

	// Settle-all join: every task runs to success or failure before we
	// proceed; no task can block or fail its siblings
	sem := make(chan struct{}, e.cfg.EnrichConcurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task enrichTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					e.logger.Error("Enrichment task panicked",
						zap.String("task", task.name),
						zap.Any("panic", r))
				}
			}()

			if err := task.run(ctx); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				e.logger.Warn("Enrichment task failed",
					zap.String("task", task.name),
					zap.Int64("account_id", snapshot.AccountID),
					zap.Error(err))
				return
			}
			mu.Lock()
			attached++
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	// The retention estimate derives from the visual-quality result, so it
	// runs after the join
	if snapshot.VisualQuality.Valid {
		curve := estimateRetentionCurve(snapshot.VisualQuality.Float64)
		if raw, err := json.Marshal(curve); err == nil {
			snapshot.RetentionCurveJSON = sql.NullString{String: string(raw), Valid: true}
			attached++
		}
	}

	if err := e.snapshots.UpdateEnrichment(ctx, snapshot); err != nil {
		e.logger.Error("Failed to persist enrichment results",
			zap.Int64("account_id", snapshot.AccountID),
			zap.Error(err))
		return attached, failed
	}

	e.storeCached(cacheKey, snapshot)

	e.logger.Info("Enrichment settled",
		zap.Int64("account_id", snapshot.AccountID),
		zap.Int("sync_number", snapshot.SyncNumber),
		zap.Int("attached", attached),
		zap.Int("failed", failed))

	return attached, failed
}

// buildTasks assembles the independent analyses. Each writes its result onto
// the snapshot under mu.
func (e *Enricher) buildTasks(snapshot *models.ProfileSnapshot, captions, mediaURLs []string, mu *sync.Mutex) []enrichTask {
	input := analysis.Input{Captions: captions}

	visualSample := mediaURLs
	if len(visualSample) > e.cfg.VisualSampleSize {
		visualSample = visualSample[:e.cfg.VisualSampleSize]
	}

	metricsInput := analysis.Input{Metrics: map[string]any{
		"posts_analyzed":  snapshot.PostsAnalyzed,
		"total_followers": snapshot.TotalFollowers,
		"engagement_rate": snapshot.EngagementRate,
		"avg_reach":       snapshot.AvgReach,
	}}

	setString := func(dst *sql.NullString, value string) {
		mu.Lock()
		*dst = sql.NullString{String: value, Valid: value != ""}
		mu.Unlock()
	}
	setFloat := func(dst *sql.NullFloat64, value float64) {
		mu.Lock()
		*dst = sql.NullFloat64{Float64: value, Valid: true}
		mu.Unlock()
	}

	return []enrichTask{
		{name: "niche", run: e.stringTask("niche", input, "niche", func(v string) { setString(&snapshot.Niche, v) })},
		{name: "language", run: e.stringTask("language", input, "language", func(v string) { setString(&snapshot.Language, v) })},
		{name: "visual_quality", run: e.scoreTask("visual_quality", analysis.Input{MediaURLs: visualSample}, func(v float64) { setFloat(&snapshot.VisualQuality, v) })},
		{name: "sentiment", run: e.scoreTask("sentiment", input, func(v float64) { setFloat(&snapshot.Sentiment, v) })},
		{name: "hashtag_effectiveness", run: e.scoreTask("hashtag_effectiveness", input, func(v float64) { setFloat(&snapshot.HashtagScore, v) })},
		{name: "cta_usage", run: e.scoreTask("cta_usage", input, func(v float64) { setFloat(&snapshot.CTAScore, v) })},
		{name: "color_mood", run: e.stringTask("color_mood", analysis.Input{MediaURLs: visualSample}, "mood", func(v string) { setString(&snapshot.ColorMood, v) })},
		{name: "trend_relevance", run: e.scoreTask("trend_relevance", input, func(v float64) { setFloat(&snapshot.TrendRelevance, v) })},
		{name: "monetization_potential", run: e.scoreTask("monetization_potential", metricsInput, func(v float64) { setFloat(&snapshot.MonetizationScore, v) })},
		{name: "payout_estimate", run: e.scoreTask("payout_estimate", metricsInput, func(v float64) { setFloat(&snapshot.PayoutEstimate, v) })},
		{name: "audience_sentiment", run: e.stringTask("audience_sentiment", input, "label", func(v string) { setString(&snapshot.AudienceSentiment, v) })},
	}
}

// stringTask builds a task that extracts one string field from the result
func (e *Enricher) stringTask(kind string, input analysis.Input, field string, apply func(string)) func(context.Context) error {
	return func(ctx context.Context) error {
		raw, err := e.analyzer.Analyze(ctx, kind, input)
		if err != nil {
			return err
		}
		var result map[string]json.RawMessage
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("malformed %s result: %w", kind, err)
		}
		var value string
		if err := json.Unmarshal(result[field], &value); err != nil {
			return fmt.Errorf("missing %q in %s result: %w", field, kind, err)
		}
		apply(value)
		return nil
	}
}

// scoreTask builds a task that extracts a numeric score from the result
func (e *Enricher) scoreTask(kind string, input analysis.Input, apply func(float64)) func(context.Context) error {
	return func(ctx context.Context) error {
		raw, err := e.analyzer.Analyze(ctx, kind, input)
		if err != nil {
			return err
		}
		var result struct {
			Score float64 `json:"score"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("malformed %s result: %w", kind, err)
		}
		apply(round2(result.Score))
		return nil
	}
}

// Quick feedback kinds and their fallback templates. These degrade to a
// generic message instead of being omitted.
var quickFeedbackKinds = map[string]string{
	"growth_feedback":      "Your follower base is evolving; keep posting consistently to sustain growth.",
	"consistency_feedback": "A steady posting schedule is the strongest lever for reach; aim for a regular cadence.",
	"engagement_feedback":  "Engagement tracks how well content resonates; reply to comments to lift it further.",
	"content_feedback":     "Mix formats and topics to learn what your audience responds to best.",
}

// QuickFeedback generates the lightweight, always-available feedback texts
// keyed to the metrics just computed
func (e *Enricher) QuickFeedback(ctx context.Context, snapshot *models.ProfileSnapshot, growth *models.GrowthComparison) map[string]string {
	prompt := fmt.Sprintf(
		"posts=%d followers=%d engagement_rate=%.2f avg_reach=%.2f",
		snapshot.PostsAnalyzed, snapshot.TotalFollowers, snapshot.EngagementRate, snapshot.AvgReach)
	if growth != nil {
		prompt += fmt.Sprintf(" follower_change_pct=%.2f engagement_change_pct=%.2f",
			growth.Followers.ChangePercentage, growth.EngagementRate.ChangePercentage)
	}

	feedback := make(map[string]string, len(quickFeedbackKinds))
	for kind, fallback := range quickFeedbackKinds {
		text, err := e.analyzer.Generate(ctx, kind, prompt)
		if err != nil || text == "" {
			e.logger.Debug("Quick feedback degraded to template",
				zap.String("kind", kind),
				zap.Error(err))
			text = fallback
		}
		feedback[kind] = text
	}

	return feedback
}

// corpusKey derives a deterministic cache key from the analyzed content
func (e *Enricher) corpusKey(accountID int64, rows []*models.MediaInsight) string {
	parts := make([]string, 0, len(rows)+1)
	parts = append(parts, fmt.Sprintf("enrichment:%d", accountID))
	for _, row := range rows {
		parts = append(parts, row.MediaID)
	}
	return "enrichment:" + cache.HashKey(parts...)
}

// enrichmentBundle is the cached form of a snapshot's analysis results
type enrichmentBundle struct {
	Niche              *string  `json:"niche,omitempty"`
	Language           *string  `json:"language,omitempty"`
	VisualQuality      *float64 `json:"visual_quality,omitempty"`
	Sentiment          *float64 `json:"sentiment,omitempty"`
	HashtagScore       *float64 `json:"hashtag_score,omitempty"`
	CTAScore           *float64 `json:"cta_score,omitempty"`
	ColorMood          *string  `json:"color_mood,omitempty"`
	TrendRelevance     *float64 `json:"trend_relevance,omitempty"`
	MonetizationScore  *float64 `json:"monetization_score,omitempty"`
	PayoutEstimate     *float64 `json:"payout_estimate,omitempty"`
	AudienceSentiment  *string  `json:"audience_sentiment,omitempty"`
	RetentionCurveJSON *string  `json:"retention_curve_json,omitempty"`
}

// tryCached applies cached results for an identical corpus, if present
func (e *Enricher) tryCached(ctx context.Context, key string, snapshot *models.ProfileSnapshot) bool {
	if e.cache == nil {
		return false
	}
	var bundle enrichmentBundle
	if err := e.cache.GetJSON(key, &bundle); err != nil {
		return false
	}
	bundle.apply(snapshot)
	if err := e.snapshots.UpdateEnrichment(ctx, snapshot); err != nil {
		e.logger.Error("Failed to persist cached enrichment", zap.Error(err))
		return false
	}
	e.logger.Info("Reused cached enrichment for unchanged corpus",
		zap.Int64("account_id", snapshot.AccountID),
		zap.Int("sync_number", snapshot.SyncNumber))
	return true
}

func (e *Enricher) storeCached(key string, snapshot *models.ProfileSnapshot) {
	if e.cache == nil {
		return
	}
	bundle := bundleFrom(snapshot)
	if err := e.cache.SetJSON(key, bundle, enrichmentCacheTTL); err != nil && err != cache.ErrCacheDisabled {
		e.logger.Warn("Failed to cache enrichment results", zap.Error(err))
	}
}

func (b *enrichmentBundle) apply(s *models.ProfileSnapshot) {
	if b.Niche != nil {
		s.Niche = sql.NullString{String: *b.Niche, Valid: true}
	}
	if b.Language != nil {
		s.Language = sql.NullString{String: *b.Language, Valid: true}
	}
	if b.VisualQuality != nil {
		s.VisualQuality = sql.NullFloat64{Float64: *b.VisualQuality, Valid: true}
	}
	if b.Sentiment != nil {
		s.Sentiment = sql.NullFloat64{Float64: *b.Sentiment, Valid: true}
	}
	if b.HashtagScore != nil {
		s.HashtagScore = sql.NullFloat64{Float64: *b.HashtagScore, Valid: true}
	}
	if b.CTAScore != nil {
		s.CTAScore = sql.NullFloat64{Float64: *b.CTAScore, Valid: true}
	}
	if b.ColorMood != nil {
		s.ColorMood = sql.NullString{String: *b.ColorMood, Valid: true}
	}
	if b.TrendRelevance != nil {
		s.TrendRelevance = sql.NullFloat64{Float64: *b.TrendRelevance, Valid: true}
	}
	if b.MonetizationScore != nil {
		s.MonetizationScore = sql.NullFloat64{Float64: *b.MonetizationScore, Valid: true}
	}
	if b.PayoutEstimate != nil {
		s.PayoutEstimate = sql.NullFloat64{Float64: *b.PayoutEstimate, Valid: true}
	}
	if b.AudienceSentiment != nil {
		s.AudienceSentiment = sql.NullString{String: *b.AudienceSentiment, Valid: true}
	}
	if b.RetentionCurveJSON != nil {
		s.RetentionCurveJSON = sql.NullString{String: *b.RetentionCurveJSON, Valid: true}
	}
}

func bundleFrom(s *models.ProfileSnapshot) *enrichmentBundle {
	b := &enrichmentBundle{}
	if s.Niche.Valid {
		b.Niche = &s.Niche.String
	}
	if s.Language.Valid {
		b.Language = &s.Language.String
	}
	if s.VisualQuality.Valid {
		b.VisualQuality = &s.VisualQuality.Float64
	}
	if s.Sentiment.Valid {
		b.Sentiment = &s.Sentiment.Float64
	}
	if s.HashtagScore.Valid {
		b.HashtagScore = &s.HashtagScore.Float64
	}
	if s.CTAScore.Valid {
		b.CTAScore = &s.CTAScore.Float64
	}
	if s.ColorMood.Valid {
		b.ColorMood = &s.ColorMood.String
	}
	if s.TrendRelevance.Valid {
		b.TrendRelevance = &s.TrendRelevance.Float64
	}
	if s.MonetizationScore.Valid {
		b.MonetizationScore = &s.MonetizationScore.Float64
	}
	if s.PayoutEstimate.Valid {
		b.PayoutEstimate = &s.PayoutEstimate.Float64
	}
	if s.AudienceSentiment.Valid {
		b.AudienceSentiment = &s.AudienceSentiment.String
	}
	if s.RetentionCurveJSON.Valid {
		b.RetentionCurveJSON = &s.RetentionCurveJSON.String
	}
	return b
}

// copyEnrichment carries the prior snapshot's analysis results forward
func copyEnrichment(prior, current *models.ProfileSnapshot) {
	current.Niche = prior.Niche
	current.Language = prior.Language
	current.VisualQuality = prior.VisualQuality
	current.Sentiment = prior.Sentiment
	current.HashtagScore = prior.HashtagScore
	current.CTAScore = prior.CTAScore
	current.ColorMood = prior.ColorMood
	current.TrendRelevance = prior.TrendRelevance
	current.MonetizationScore = prior.MonetizationScore
	current.PayoutEstimate = prior.PayoutEstimate
	current.AudienceSentiment = prior.AudienceSentiment
	current.RetentionCurveJSON = prior.RetentionCurveJSON
}

// countAttached counts non-null enrichment fields on the snapshot
func countAttached(s *models.ProfileSnapshot) int {
	count := 0
	for _, valid := range []bool{
		s.Niche.Valid, s.Language.Valid, s.VisualQuality.Valid, s.Sentiment.Valid,
		s.HashtagScore.Valid, s.CTAScore.Valid, s.ColorMood.Valid, s.TrendRelevance.Valid,
		s.MonetizationScore.Valid, s.PayoutEstimate.Valid, s.AudienceSentiment.Valid,
		s.RetentionCurveJSON.Valid,
	} {
		if valid {
			count++
		}
	}
	return count
}

// estimateRetentionCurve derives an expected view-retention curve from the
// visual-quality score. Higher quality flattens the early drop-off.
func estimateRetentionCurve(visualQuality float64) []float64 {
	if visualQuality < 0 {
		visualQuality = 0
	}
	if visualQuality > 10 {
		visualQuality = 10
	}
	// Quality 0 decays ~35% per step, quality 10 ~10% per step
	decay := 0.35 - 0.025*visualQuality
	curve := make([]float64, 6)
	retention := 100.0
	for i := range curve {
		curve[i] = round2(retention)
		retention *= 1 - decay
	}
	return curve
}

// corpus extracts the caption and media URL lists from the period's rows
func corpus(rows []*models.MediaInsight) (captions, mediaURLs []string) {
	for _, row := range rows {
		if row.Caption.Valid {
			captions = append(captions, row.Caption.String)
		}
		if row.MediaURL.Valid {
			mediaURLs = append(mediaURLs, row.MediaURL.String)
		}
	}
	return captions, mediaURLs
}
