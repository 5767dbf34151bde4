package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the SpendPulse API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// SpendPulseClient is a pure HTTP client for the SpendPulse API.
type SpendPulseClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSpendPulseClient creates a new client for the SpendPulse API.
func NewSpendPulseClient(cfg Config) *SpendPulseClient {
	return &SpendPulseClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *SpendPulseClient) doRequest(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
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

// ListEntities returns the entity listing for a dataset.
func (c *SpendPulseClient) ListEntities(ctx context.Context, datasetID string) (json.RawMessage, error) {
	path := "/v1/datasets/" + url.PathEscape(datasetID) + "/entities"
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

// AnalyzeEntity runs a full risk analysis for one entity.
func (c *SpendPulseClient) AnalyzeEntity(ctx context.Context, datasetID, entityID string) (json.RawMessage, error) {
	path := "/v1/datasets/" + url.PathEscape(datasetID) +
		"/entities/" + url.PathEscape(entityID) + "/analysis"
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

// GetInsights returns global insights for a trained dataset.
func (c *SpendPulseClient) GetInsights(ctx context.Context, datasetID string) (json.RawMessage, error) {
	path := "/v1/datasets/" + url.PathEscape(datasetID) + "/insights"
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

// LoadDemoDataset asks the API to load its configured demo dataset.
func (c *SpendPulseClient) LoadDemoDataset(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("demo", "1")
	return c.doRequest(ctx, http.MethodPost, "/v1/datasets", q)
}

// DemoStatus polls the demo bootstrap state.
func (c *SpendPulseClient) DemoStatus(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/demo/status", nil)
}
