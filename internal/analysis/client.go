package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

// Analyzer is the generative-analysis backend consumed by enrichment tasks.
// Implementations return structured JSON and are expected to be fallible.
type Analyzer interface {
	// Analyze runs one named analysis over the given input and returns the
	// backend's structured JSON result
	Analyze(ctx context.Context, kind string, input Input) (json.RawMessage, error)
	// Generate produces a short free-text generation for quick feedback
	Generate(ctx context.Context, kind string, prompt string) (string, error)
}

// Input is the content corpus handed to an analysis task
type Input struct {
	Captions  []string `json:"captions,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Metrics   any      `json:"metrics,omitempty"`
}

// Client calls the analysis backend over HTTP with a primary model and one
// fallback-model retry
type Client struct {
	url           string
	model         string
	fallbackModel string
	httpClient    *http.Client
	logger        *zap.Logger
}

// New creates a new analysis client
func New(cfg *config.AnalysisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("analysis_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "analysis-client"))

	client := &Client{
		url:           cfg.URL,
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}

	logger.Info("Analysis client initialized",
		zap.String("url", cfg.URL),
		zap.String("model", cfg.Model))

	return client, nil
}

// Analyze runs one analysis, falling back to the secondary model when the
// primary fails
func (c *Client) Analyze(ctx context.Context, kind string, input Input) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "analysis."+kind)
	defer span.End()

	result, err := c.call(ctx, c.model, kind, input, "")
	if err != nil && c.fallbackModel != "" {
		c.logger.Warn("Primary analysis model failed, retrying with fallback",
			zap.String("kind", kind),
			zap.String("fallback_model", c.fallbackModel),
			zap.Error(err))
		result, err = c.call(ctx, c.fallbackModel, kind, input, "")
	}
	if err != nil {
		return nil, fmt.Errorf("analysis %s failed: %w", kind, err)
	}

	return result, nil
}

// Generate produces a short free-text generation
func (c *Client) Generate(ctx context.Context, kind string, prompt string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "analysis.generate."+kind)
	defer span.End()

	result, err := c.call(ctx, c.model, kind, Input{}, prompt)
	if err != nil && c.fallbackModel != "" {
		result, err = c.call(ctx, c.fallbackModel, kind, Input{}, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("generation %s failed: %w", kind, err)
	}

	var text struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(result, &text); err != nil {
		return "", fmt.Errorf("failed to unmarshal generation result: %w", err)
	}

	return text.Text, nil
}

func (c *Client) call(ctx context.Context, model, kind string, input Input, prompt string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  model,
		"kind":   kind,
		"input":  input,
		"prompt": prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return envelope.Result, nil
}
