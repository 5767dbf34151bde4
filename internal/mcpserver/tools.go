package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the SpendPulse MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListEntities = mcp.NewTool("list_entities",
	mcp.WithDescription(
		"List the entities (card holders) in a loaded SpendPulse dataset. "+
			"Returns each entity id with its transaction count and date range. "+
			"Use this to find an entity before analyzing it."),
	mcp.WithString("dataset_id",
		mcp.Required(),
		mcp.Description("The dataset id returned by a previous upload or load_demo_dataset")),
)

var ToolAnalyzeEntity = mcp.NewTool("analyze_entity",
	mcp.WithDescription(
		"Run a full impulse-spending risk analysis for one entity. "+
			"Returns the 0-100 risk score, risk band (Low/Medium/High/Critical), "+
			"score breakdown, behavioural profile, top drivers, and evidence sentences. "+
			"Trains the dataset first if it has not been trained yet."),
	mcp.WithString("dataset_id",
		mcp.Required(),
		mcp.Description("The dataset id the entity belongs to")),
	mcp.WithString("entity_id",
		mcp.Required(),
		mcp.Description("The entity id from list_entities (e.g. 'C4028')")),
)

var ToolGetDatasetInsights = mcp.NewTool("get_dataset_insights",
	mcp.WithDescription(
		"Get global insights for a trained dataset: mean and percentile risk scores, "+
			"risk band distribution, and behavioural profile distribution across sampled entities. "+
			"The dataset must be trained first (analyze_entity trains on demand)."),
	mcp.WithString("dataset_id",
		mcp.Required(),
		mcp.Description("The dataset id to summarize")),
)

var ToolLoadDemoDataset = mcp.NewTool("load_demo_dataset",
	mcp.WithDescription(
		"Load the server's built-in demo transaction dataset and return its dataset id. "+
			"Use this when no dataset has been uploaded yet."),
)
