package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SpendPulseClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SpendPulseClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListEntities lists the entities of a dataset.
func (h *Handlers) HandleListEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasetID := req.GetString("dataset_id", "")
	if datasetID == "" {
		return mcp.NewToolResultError("dataset_id is required"), nil
	}

	raw, err := h.client.ListEntities(ctx, datasetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list entities: %v", err)), nil
	}

	text, err := formatEntityList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse entities: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAnalyzeEntity runs a risk analysis for one entity.
func (h *Handlers) HandleAnalyzeEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasetID := req.GetString("dataset_id", "")
	if datasetID == "" {
		return mcp.NewToolResultError("dataset_id is required"), nil
	}
	entityID := req.GetString("entity_id", "")
	if entityID == "" {
		return mcp.NewToolResultError("entity_id is required"), nil
	}

	raw, err := h.client.AnalyzeEntity(ctx, datasetID, entityID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetDatasetInsights returns global insights for a trained dataset.
func (h *Handlers) HandleGetDatasetInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasetID := req.GetString("dataset_id", "")
	if datasetID == "" {
		return mcp.NewToolResultError("dataset_id is required"), nil
	}

	raw, err := h.client.GetInsights(ctx, datasetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get insights: %v", err)), nil
	}

	text, err := formatInsights(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse insights: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleLoadDemoDataset loads the server's demo dataset.
func (h *Handlers) HandleLoadDemoDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.LoadDemoDataset(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load demo dataset: %v", err)), nil
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Demo dataset loaded.\n")
	fmt.Fprintf(&sb, "  Dataset ID: %s\n", getString(resp, "dataset_id"))
	if v, ok := getFloat(resp, "rows"); ok {
		fmt.Fprintf(&sb, "  Rows: %.0f\n", v)
	}
	if v, ok := getFloat(resp, "users"); ok {
		fmt.Fprintf(&sb, "  Entities: %.0f\n", v)
	}
	if dr, ok := resp["date_range"].([]any); ok && len(dr) == 2 {
		fmt.Fprintf(&sb, "  Date range: %v to %v\n", dr[0], dr[1])
	}
	sb.WriteString("\nUse list_entities with this dataset id to browse entities.")

	return mcp.NewToolResultText(sb.String()), nil
}

// -----------------------------------------------------------------------------
// Formatting helpers
// -----------------------------------------------------------------------------

func formatEntityList(raw json.RawMessage) (string, error) {
	var resp struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected entities response format")
	}
	if len(resp.Users) == 0 {
		return "No entities in this dataset.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d entit(ies):\n\n", len(resp.Users))
	const maxListed = 50
	for i, u := range resp.Users {
		if i == maxListed {
			fmt.Fprintf(&sb, "... and %d more\n", len(resp.Users)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, getString(u, "entity_id"))
		if v, ok := getFloat(u, "tx_count"); ok {
			fmt.Fprintf(&sb, " (%.0f transactions)", v)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func formatAnalysis(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("unexpected analysis response format")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis for entity %s:\n", getString(m, "entity_id"))
	if v, ok := getFloat(m, "risk_score"); ok {
		fmt.Fprintf(&sb, "  Risk score: %.1f / 100 (%s)\n", v, getString(m, "risk_band"))
	}

	if profile, ok := m["profile"].(map[string]any); ok {
		fmt.Fprintf(&sb, "  Profile: %s\n", getString(profile, "profile_label"))
		if interp := getString(profile, "interpretation"); interp != "" {
			fmt.Fprintf(&sb, "  %s\n", interp)
		}
	}

	if drivers, ok := m["top_drivers"].([]any); ok && len(drivers) > 0 {
		sb.WriteString("\nTop drivers:\n")
		for i, d := range drivers {
			fmt.Fprintf(&sb, "  %d. %v\n", i+1, d)
		}
	}

	if evidence, ok := m["evidence"].([]any); ok && len(evidence) > 0 {
		sb.WriteString("\nEvidence:\n")
		for _, e := range evidence {
			fmt.Fprintf(&sb, "  - %v\n", e)
		}
	}

	if breakdown, ok := m["score_breakdown"].(map[string]any); ok {
		sb.WriteString("\nScore breakdown (0-1 per component):\n")
		for _, key := range []string{"spike", "burst", "eom", "timing", "category"} {
			if v, ok := getFloat(breakdown, key); ok {
				fmt.Fprintf(&sb, "  %-8s %.2f\n", key, v)
			}
		}
	}

	return sb.String(), nil
}

func formatInsights(raw json.RawMessage) (string, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected insights response format")
	}

	insights, ok := resp["insights"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("no insights in response")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset insights (%s):\n", getString(resp, "dataset_id"))
	if v, ok := getFloat(resp, "trained_user_count"); ok {
		fmt.Fprintf(&sb, "  Entities sampled: %.0f\n", v)
	}
	if v, ok := getFloat(insights, "mean_score"); ok {
		fmt.Fprintf(&sb, "  Mean risk score: %.1f\n", v)
	}
	if p50, ok := getFloat(insights, "p50_score"); ok {
		p75, _ := getFloat(insights, "p75_score")
		p90, _ := getFloat(insights, "p90_score")
		fmt.Fprintf(&sb, "  Percentiles: p50 %.1f | p75 %.1f | p90 %.1f\n", p50, p75, p90)
	}

	if bands, ok := insights["band_counts"].(map[string]any); ok {
		sb.WriteString("\nRisk bands:\n")
		for _, band := range []string{"Low", "Medium", "High", "Critical"} {
			if v, ok := getFloat(bands, band); ok {
				fmt.Fprintf(&sb, "  %-9s %.0f\n", band, v)
			}
		}
	}

	if clusters, ok := insights["cluster_counts"].(map[string]any); ok && len(clusters) > 0 {
		sb.WriteString("\nBehavioural profiles:\n")
		for label, v := range clusters {
			if f, ok := v.(float64); ok {
				fmt.Fprintf(&sb, "  %s: %.0f\n", label, f)
			}
		}
	}

	return sb.String(), nil
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
