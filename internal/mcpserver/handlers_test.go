package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewSpendPulseClient(Config{APIURL: ts.URL})
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_found",
			"message": "dataset not found",
		})
	}))
	defer ts.Close()

	client := NewSpendPulseClient(Config{APIURL: ts.URL})
	_, err := client.GetInsights(context.Background(), "8f14e45f-ceea-467f-a6d3-7c6f1f4e0b2a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "dataset not found")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewSpendPulseClient(Config{APIURL: ts.URL})
	_, err := client.DemoStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_EntityIDEscaped(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewSpendPulseClient(Config{APIURL: ts.URL})
	_, err := client.AnalyzeEntity(context.Background(), "ds-1", "user/01")
	require.NoError(t, err)
	assert.Contains(t, gotPath, "user%2F01")
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleListEntities_MissingDatasetID(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer done()

	result, err := h.HandleListEntities(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "dataset_id is required")
}

func TestHandleListEntities_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets/ds-1/entities", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{
				{"entity_id": "C1001", "tx_count": 42},
				{"entity_id": "C1002", "tx_count": 7},
			},
		})
	}))
	defer done()

	result, err := h.HandleListEntities(context.Background(), makeRequest(map[string]any{
		"dataset_id": "ds-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "C1001")
	assert.Contains(t, text, "42 transactions")
}

func TestHandleAnalyzeEntity_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets/ds-1/entities/C1001/analysis", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entity_id":  "C1001",
			"risk_score": 67.4,
			"risk_band":  "High",
			"score_breakdown": map[string]any{
				"spike": 0.8, "burst": 0.7, "eom": 0.5, "timing": 0.4, "category": 0.3,
			},
			"top_drivers": []string{"Spending spikes", "Burst buying"},
			"profile": map[string]any{
				"profile_label":  "Impulse burst buyer",
				"interpretation": "Many purchases occur in rapid bursts.",
			},
			"evidence": []string{"Largest 2-hour window had 9 transactions."},
		})
	}))
	defer done()

	result, err := h.HandleAnalyzeEntity(context.Background(), makeRequest(map[string]any{
		"dataset_id": "ds-1",
		"entity_id":  "C1001",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "67.4 / 100 (High)")
	assert.Contains(t, text, "Impulse burst buyer")
	assert.Contains(t, text, "Largest 2-hour window had 9 transactions.")
	assert.Contains(t, text, "spike")
}

func TestHandleAnalyzeEntity_MissingEntityID(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer done()

	result, err := h.HandleAnalyzeEntity(context.Background(), makeRequest(map[string]any{
		"dataset_id": "ds-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "entity_id is required")
}

func TestHandleGetDatasetInsights_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dataset_id":         "ds-1",
			"trained_user_count": 120,
			"insights": map[string]any{
				"mean_score": 38.2,
				"p50_score":  35.0,
				"p75_score":  51.5,
				"p90_score":  66.0,
				"band_counts": map[string]any{
					"Low": 40, "Medium": 55, "High": 20, "Critical": 5,
				},
				"cluster_counts": map[string]any{
					"Steady spender": 80, "Impulse burst buyer": 40,
				},
			},
		})
	}))
	defer done()

	result, err := h.HandleGetDatasetInsights(context.Background(), makeRequest(map[string]any{
		"dataset_id": "ds-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Mean risk score: 38.2")
	assert.Contains(t, text, "p90 66.0")
	assert.Contains(t, text, "Steady spender: 80")
}

func TestHandleGetDatasetInsights_NotTrained(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_trained",
			"message": "dataset has not been trained",
		})
	}))
	defer done()

	result, err := h.HandleGetDatasetInsights(context.Background(), makeRequest(map[string]any{
		"dataset_id": "ds-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "has not been trained")
}

func TestHandleLoadDemoDataset_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("demo"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dataset_id": "8f14e45f-ceea-467f-a6d3-7c6f1f4e0b2a",
			"rows":       5000,
			"users":      250,
			"date_range": []string{"2024-01-01", "2024-06-30"},
		})
	}))
	defer done()

	result, err := h.HandleLoadDemoDataset(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "8f14e45f-ceea-467f-a6d3-7c6f1f4e0b2a")
	assert.Contains(t, text, "Rows: 5000")
	assert.Contains(t, text, "2024-01-01 to 2024-06-30")
}
