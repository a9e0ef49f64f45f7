package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCrossEncoderURL is the default scoring service endpoint.
	DefaultCrossEncoderURL = "http://localhost:8081"

	// DefaultCrossEncoderModel is the model the scoring service is expected to serve.
	DefaultCrossEncoderModel = "cross-encoder/ms-marco-MiniLM-L-6-v2"

	// DefaultCrossEncoderTimeout bounds one scoring request.
	DefaultCrossEncoderTimeout = 30 * time.Second
)

// CrossEncoderConfig holds configuration for the HTTP cross-encoder client.
type CrossEncoderConfig struct {
	// BaseURL is the scoring service URL.
	BaseURL string

	// Model is reported by ModelName and sent with each request.
	Model string

	// Timeout is the HTTP client timeout.
	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	// Logger receives per-call debug records (default: slog.Default()).
	Logger *slog.Logger
}

// CrossEncoder scores passages through a text-embeddings-inference style
// /rerank endpoint.
type CrossEncoder struct {
	client  *http.Client
	baseURL string
	model   string
	logger  *slog.Logger
}

// NewCrossEncoder creates a new cross-encoder client.
func NewCrossEncoder(cfg CrossEncoderConfig) *CrossEncoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCrossEncoderURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCrossEncoderModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCrossEncoderTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CrossEncoder{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
	}
}

type crossEncoderRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type crossEncoderResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score sends all passages in one request and returns scores in passage order.
func (c *CrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(crossEncoderRequest{
		Query:     query,
		Texts:     passages,
		Model:     c.model,
		RawScores: true,
		Truncate:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cross-encoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var results []crossEncoderResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("cross-encoder returned out-of-range index %d", r.Index)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("cross-encoder returned no score for passage %d", i)
		}
	}

	c.logger.Debug("cross_encoder_scored",
		slog.String("model", c.model),
		slog.Int("passages", len(passages)),
		slog.Duration("elapsed", time.Since(start)))

	return scores, nil
}

// ModelName returns the configured model name.
func (c *CrossEncoder) ModelName() string {
	return c.model
}

var _ Scorer = (*CrossEncoder)(nil)
