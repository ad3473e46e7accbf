package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the fraud decision API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// FraudClient is a pure HTTP client for the fraud decision API.
type FraudClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewFraudClient creates a new client for the fraud decision API.
func NewFraudClient(cfg Config) *FraudClient {
	return &FraudClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *FraudClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ScoreTransaction submits one transaction for a fraud decision.
func (c *FraudClient) ScoreTransaction(ctx context.Context, record map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/v1/predict", nil, record)
}

// GetThreshold returns the active decision threshold and its provenance.
func (c *FraudClient) GetThreshold(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/model/threshold", nil, nil)
}

// SetThreshold manually updates the decision threshold.
func (c *FraudClient) SetThreshold(ctx context.Context, value float64) (json.RawMessage, error) {
	body := map[string]float64{"threshold": value}
	return c.doRequest(ctx, http.MethodPut, "/api/v1/model/threshold", nil, body)
}

// GetModelInfo returns loaded model metadata and calibration metrics.
func (c *FraudClient) GetModelInfo(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/model/info", nil, nil)
}

// GetDriftReport returns the current PSI drift report.
func (c *FraudClient) GetDriftReport(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/monitoring/drift", nil, nil)
}

// ListDecisions returns the most recent audited decisions.
func (c *FraudClient) ListDecisions(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/v1/decisions", q, nil)
}
