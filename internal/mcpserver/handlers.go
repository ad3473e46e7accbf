package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FraudClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FraudClient) *Handlers {
	return &Handlers{client: client}
}

// HandleScoreTransaction scores one transaction.
func (h *Handlers) HandleScoreTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetArguments()["transaction"]
	record, ok := raw.(map[string]any)
	if !ok || len(record) == 0 {
		return mcp.NewToolResultError("transaction object is required"), nil
	}

	resp, err := h.client.ScoreTransaction(ctx, record)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Scoring failed: %v", err)), nil
	}

	text, err := formatDecision(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetThreshold returns the active threshold.
func (h *Handlers) HandleGetThreshold(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetThreshold(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get threshold: %v", err)), nil
	}

	text, err := formatThreshold(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse threshold: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleSetThreshold overrides the active threshold.
func (h *Handlers) HandleSetThreshold(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value := req.GetFloat("threshold", -1)
	if value < 0 || value > 1 {
		return mcp.NewToolResultError("threshold must be a number between 0 and 1"), nil
	}

	raw, err := h.client.SetThreshold(ctx, value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to set threshold: %v", err)), nil
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Threshold updated.\n")
	if v, ok := getFloat(resp, "old_threshold"); ok {
		fmt.Fprintf(&sb, "  Old: %.4f\n", v)
	}
	if v, ok := getFloat(resp, "new_threshold"); ok {
		fmt.Fprintf(&sb, "  New: %.4f\n", v)
	}
	sb.WriteString("\nTransactions scoring at or above the new threshold will now be flagged as fraud.")
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetModelInfo returns model metadata.
func (h *Handlers) HandleGetModelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetModelInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get model info: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetDriftReport returns the PSI drift report.
func (h *Handlers) HandleGetDriftReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetDriftReport(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get drift report: %v", err)), nil
	}

	text, err := formatDrift(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse drift report: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListDecisions lists recent audited decisions.
func (h *Handlers) HandleListDecisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListDecisions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list decisions: %v", err)), nil
	}

	text, err := formatDecisionList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decisions: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatDecision(raw json.RawMessage) (string, error) {
	var d map[string]any
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction: %s\n", getString(d, "transaction_id"))
	if v, ok := getFloat(d, "fraud_probability"); ok {
		fmt.Fprintf(&sb, "Fraud probability: %.4f\n", v)
	}
	if flagged, ok := d["is_fraud"].(bool); ok {
		if flagged {
			sb.WriteString("Decision: FRAUD\n")
		} else {
			sb.WriteString("Decision: legitimate\n")
		}
	}
	fmt.Fprintf(&sb, "Risk level: %s\n", getString(d, "risk_level"))
	if v, ok := getFloat(d, "threshold_used"); ok {
		fmt.Fprintf(&sb, "Threshold used: %.4f\n", v)
	}
	return sb.String(), nil
}

func formatThreshold(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	if v, ok := getFloat(m, "threshold"); ok {
		fmt.Fprintf(&sb, "Active threshold: %.4f\n", v)
	}
	fmt.Fprintf(&sb, "Source: %s\n", getString(m, "source"))
	if cal, ok := m["calibration"].(map[string]any); ok {
		sb.WriteString("Calibration metrics at adoption:\n")
		if v, ok := getFloat(cal, "precision"); ok {
			fmt.Fprintf(&sb, "  Precision: %.4f\n", v)
		}
		if v, ok := getFloat(cal, "recall"); ok {
			fmt.Fprintf(&sb, "  Recall: %.4f\n", v)
		}
		if v, ok := getFloat(cal, "f1_score"); ok {
			fmt.Fprintf(&sb, "  F1: %.4f\n", v)
		}
	}
	return sb.String(), nil
}

func formatDrift(raw json.RawMessage) (string, error) {
	var m struct {
		Status   string `json:"status"`
		Features map[string]struct {
			PSI      float64 `json:"psi"`
			Severity string  `json:"severity"`
			Samples  int     `json:"samples"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Drift status: %s\n\n", m.Status)
	for name, f := range m.Features {
		fmt.Fprintf(&sb, "%s: PSI %.4f (%s, %d samples)\n", name, f.PSI, f.Severity, f.Samples)
	}
	return sb.String(), nil
}

func formatDecisionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Decisions []map[string]any `json:"decisions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected decisions response format")
	}

	if len(resp.Decisions) == 0 {
		return "No decisions recorded yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d decision(s):\n\n", len(resp.Decisions))
	for i, d := range resp.Decisions {
		verdict := "legit"
		if flagged, ok := d["is_fraud"].(bool); ok && flagged {
			verdict = "FRAUD"
		}
		score, _ := getFloat(d, "fraud_probability")
		fmt.Fprintf(&sb, "%d. %s  %.4f -> %s (%s)\n",
			i+1, getString(d, "transaction_id"), score, verdict, getString(d, "risk_level"))
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
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
