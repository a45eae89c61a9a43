package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createRunPipelineTool returns the run_pipeline tool definition
func createRunPipelineTool() mcp.Tool {
	return mcp.NewTool("run_pipeline",
		mcp.WithDescription("Trigger a pipeline run on the Petitor daemon. The run executes in the background; poll pipeline_status for the outcome."),
		mcp.WithString("source",
			mcp.Description("Job source: apify, gmail or manual (default: configured source)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max jobs to ingest (default: no cap)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Prefilter threshold 0-100 (default: configured threshold)"),
		),
		mcp.WithBoolean("mock",
			mcp.Description("Disable external side effects for this run"),
		),
	)
}

// createPipelineStatusTool returns the pipeline_status tool definition
func createPipelineStatusTool() mcp.Tool {
	return mcp.NewTool("pipeline_status",
		mcp.WithDescription("Report whether a run is in progress and summarize recent run results"),
		mcp.WithNumber("history",
			mcp.Description("How many past runs to include (default: 5)"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Retrieve one job record from the sheet by its job ID"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job identifier (the ~token from the posting URL)"),
		),
	)
}

// createSubmitJobsTool returns the submit_jobs tool definition
func createSubmitJobsTool() mcp.Tool {
	return mcp.NewTool("submit_jobs",
		mcp.WithDescription("Run the pipeline over inline job postings via the manual source"),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Posting URLs to process"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Prefilter threshold 0-100 (default: configured threshold)"),
		),
		mcp.WithBoolean("mock",
			mcp.Description("Disable external side effects for this run"),
		),
	)
}
