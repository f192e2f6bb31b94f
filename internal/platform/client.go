package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

// Metric sets requested per media type. The minimal set is the fallback when
// the platform rejects the full set for a particular post.
var (
	videoMetrics   = []string{"reach", "saved", "likes", "comments", "shares", "views", "ig_reels_video_view_total_time"}
	imageMetrics   = []string{"reach", "saved", "likes", "comments", "shares"}
	minimalMetrics = []string{"reach", "likes", "comments"}
)

// Client wraps the external platform HTTP API. Per-post calls are throttled
// with a fixed inter-request delay: the upstream penalizes bursts, so this is
// a hard sequential delay, not a concurrency pool.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	requestDelay time.Duration
	logger       *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new platform client
func New(cfg *config.PlatformConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "platform-client"))

	client := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		requestDelay: cfg.RequestDelay,
		logger:       logger,
	}

	logger.Info("Platform client initialized",
		zap.String("url", cfg.BaseURL),
		zap.Duration("request_delay", cfg.RequestDelay))

	return client, nil
}

// GetProfile fetches the account's current profile summary
func (c *Client) GetProfile(ctx context.Context, token, userID string) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.get_profile")
	defer span.End()

	params := url.Values{}
	params.Set("fields", "id,username,biography,profile_picture_url,followers_count,follows_count,media_count")

	var profile Profile
	if err := c.get(ctx, token, "/"+userID, params, &profile); err != nil {
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}

	return &profile, nil
}

// ListMedia fetches the account's post list with cursor pagination, bounded
// by limit (capped upstream at roughly 100 per account)
func (c *Client) ListMedia(ctx context.Context, token, userID string, limit int) ([]Media, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.list_media")
	defer span.End()

	if limit <= 0 {
		return nil, fmt.Errorf("invalid media limit: %d", limit)
	}

	media := make([]Media, 0, limit)
	after := ""

	for len(media) < limit {
		params := url.Values{}
		params.Set("fields", "id,caption,media_type,media_product_type,media_url,permalink,timestamp")
		params.Set("limit", strconv.Itoa(min(limit-len(media), 50)))
		if after != "" {
			params.Set("after", after)
		}

		var page struct {
			Data   []mediaPayload `json:"data"`
			Paging struct {
				Cursors struct {
					After string `json:"after"`
				} `json:"cursors"`
				Next string `json:"next"`
			} `json:"paging"`
		}
		if err := c.get(ctx, token, "/"+userID+"/media", params, &page); err != nil {
			return nil, fmt.Errorf("failed to list media for %s: %w", userID, err)
		}

		for _, p := range page.Data {
			media = append(media, p.toMedia())
		}

		if page.Paging.Next == "" || len(page.Data) == 0 {
			break
		}
		after = page.Paging.Cursors.After
	}

	if len(media) > limit {
		media = media[:limit]
	}

	return media, nil
}

// GetMediaInsights fetches insight metrics for one post. The metric set
// depends on media type; on a metric-not-supported rejection it retries once
// with the minimal set before giving up.
func (c *Client) GetMediaInsights(ctx context.Context, token string, media Media) (*MediaMetrics, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.get_media_insights")
	defer span.End()

	metrics := imageMetrics
	if media.IsVideo() {
		metrics = videoMetrics
	}

	result, err := c.fetchInsights(ctx, token, media.ID, metrics)
	if err != nil && IsMetricUnsupported(err) {
		c.logger.Debug("Metric set rejected, retrying with minimal set",
			zap.String("media_id", media.ID), zap.Error(err))
		result, err = c.fetchInsights(ctx, token, media.ID, minimalMetrics)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetFollowerDeltas fetches the daily new-follower series for (since, until]
func (c *Client) GetFollowerDeltas(ctx context.Context, token, userID string, since, until time.Time) ([]DayCount, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.get_follower_deltas")
	defer span.End()

	params := url.Values{}
	params.Set("metric", "follower_count")
	params.Set("period", "day")
	params.Set("since", strconv.FormatInt(since.Unix(), 10))
	params.Set("until", strconv.FormatInt(until.Unix(), 10))

	var resp insightsResponse
	if err := c.get(ctx, token, "/"+userID+"/insights", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get follower deltas for %s: %w", userID, err)
	}

	for _, series := range resp.Data {
		if series.Name != "follower_count" {
			continue
		}
		deltas := make([]DayCount, 0, len(series.Values))
		for _, v := range series.Values {
			deltas = append(deltas, DayCount{Date: v.EndTime, Value: v.Value})
		}
		return deltas, nil
	}

	return nil, nil
}

// GetActiveFollowers fetches the current count of recently active followers.
// The platform exposes no historical version of this signal.
func (c *Client) GetActiveFollowers(ctx context.Context, token, userID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.get_active_followers")
	defer span.End()

	params := url.Values{}
	params.Set("metric", "online_followers")
	params.Set("period", "lifetime")

	var resp insightsResponse
	if err := c.get(ctx, token, "/"+userID+"/insights", params, &resp); err != nil {
		return 0, fmt.Errorf("failed to get active followers for %s: %w", userID, err)
	}

	var peak int64
	for _, series := range resp.Data {
		for _, v := range series.Values {
			if v.Value > peak {
				peak = v.Value
			}
		}
	}

	return peak, nil
}

// GetDemographics fetches audience breakdowns. Breakdowns may legitimately
// come back empty (e.g. account not linked to a secondary business page).
func (c *Client) GetDemographics(ctx context.Context, token, userID string) (*Demographics, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.get_demographics")
	defer span.End()

	params := url.Values{}
	params.Set("metric", "audience_gender_age,audience_city,audience_country")
	params.Set("period", "lifetime")

	var resp struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value map[string]int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := c.get(ctx, token, "/"+userID+"/insights", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get demographics for %s: %w", userID, err)
	}

	demo := &Demographics{}
	for _, series := range resp.Data {
		if len(series.Values) == 0 {
			continue
		}
		switch series.Name {
		case "audience_gender_age":
			demo.AgeGender = series.Values[len(series.Values)-1].Value
		case "audience_city":
			demo.City = series.Values[len(series.Values)-1].Value
		case "audience_country":
			demo.Country = series.Values[len(series.Values)-1].Value
		}
	}

	return demo, nil
}

func (c *Client) fetchInsights(ctx context.Context, token, mediaID string, metrics []string) (*MediaMetrics, error) {
	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))

	var resp insightsResponse
	if err := c.get(ctx, token, "/"+mediaID+"/insights", params, &resp); err != nil {
		return nil, err
	}

	result := &MediaMetrics{}
	for _, series := range resp.Data {
		var value int64
		if len(series.Values) > 0 {
			value = series.Values[len(series.Values)-1].Value
		}
		switch series.Name {
		case "reach":
			result.Reach = value
		case "saved":
			result.Saved = value
		case "likes":
			result.Likes = value
		case "comments":
			result.Comments = value
		case "shares":
			result.Shares = value
		case "views":
			result.Views = value
		case "ig_reels_video_view_total_time":
			result.WatchTimeMs = value
		}
	}

	return result, nil
}

// get performs one throttled GET request against the platform API
func (c *Client) get(ctx context.Context, token, path string, params url.Values, out interface{}) error {
	c.throttle()

	params.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error *APIError `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
			return errResp.Error
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// throttle enforces the fixed inter-request delay
func (c *Client) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.requestDelay {
		time.Sleep(c.requestDelay - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value   int64     `json:"value"`
			EndTime time.Time `json:"end_time"`
		} `json:"values"`
	} `json:"data"`
}

// mediaPayload decodes the platform's media list entry; timestamps arrive in
// ISO 8601 with a numeric zone offset
type mediaPayload struct {
	ID               string `json:"id"`
	Caption          string `json:"caption"`
	MediaType        string `json:"media_type"`
	MediaProductType string `json:"media_product_type"`
	MediaURL         string `json:"media_url"`
	Permalink        string `json:"permalink"`
	Timestamp        string `json:"timestamp"`
}

func (p mediaPayload) toMedia() Media {
	ts, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		ts, _ = time.Parse("2006-01-02T15:04:05-0700", p.Timestamp)
	}
	return Media{
		ID:               p.ID,
		Caption:          p.Caption,
		MediaType:        p.MediaType,
		MediaProductType: p.MediaProductType,
		MediaURL:         p.MediaURL,
		Permalink:        p.Permalink,
		Timestamp:        ts,
	}
}
