package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the fraud decision MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScoreTransaction = mcp.NewTool("score_transaction",
	mcp.WithDescription(
		"Score a credit card transaction for fraud. "+
			"Returns the fraud probability, a binary is_fraud decision against the active threshold, "+
			"and a low/medium/high risk level. "+
			"The transaction must carry all 30 schema fields: Time, V1 through V28, and Amount."),
	mcp.WithObject("transaction",
		mcp.Required(),
		mcp.Description("The transaction record: {\"Time\": 0, \"V1\": -1.36, ..., \"V28\": -0.02, \"Amount\": 149.62}")),
)

var ToolGetThreshold = mcp.NewTool("get_threshold",
	mcp.WithDescription(
		"Get the currently active fraud decision threshold, how it was adopted "+
			"(manual or calibration), and the precision/recall metrics measured at adoption."),
)

var ToolSetThreshold = mcp.NewTool("set_threshold",
	mcp.WithDescription(
		"Manually override the fraud decision threshold. "+
			"Transactions scoring at or above the threshold are flagged as fraud. "+
			"Lower thresholds catch more fraud but create more false positives. "+
			"Returns the old and new values."),
	mcp.WithNumber("threshold",
		mcp.Required(),
		mcp.Description("The new threshold, between 0 and 1 (e.g. 0.5)")),
)

var ToolGetModelInfo = mcp.NewTool("get_model_info",
	mcp.WithDescription(
		"Get metadata about the loaded fraud model: type, version, feature count, "+
			"training date, and the active threshold with its calibration metrics."),
)

var ToolGetDriftReport = mcp.NewTool("get_drift_report",
	mcp.WithDescription(
		"Get the data drift report comparing live traffic against the calibration "+
			"reference. Reports PSI per monitored feature with a none/moderate/significant "+
			"severity. Significant drift means the model is scoring traffic it was not calibrated for."),
)

var ToolListDecisions = mcp.NewTool("list_decisions",
	mcp.WithDescription(
		"List the most recent fraud decisions from the audit trail, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of decisions to return (default 20)")),
)
