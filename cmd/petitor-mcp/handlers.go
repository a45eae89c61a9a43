package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
)

// handleRunPipeline implements the run_pipeline tool
func handleRunPipeline(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := runRequest{
			Source: request.GetString("source", ""),
			Limit:  request.GetInt("limit", 0),
			Mock:   request.GetBool("mock", false),
		}
		if minScore := request.GetInt("min_score", -1); minScore >= 0 {
			req.MinScore = &minScore
		}

		message, err := client.RunPipeline(ctx, req)
		if err != nil {
			logger.Error().Err(err).Msg("run_pipeline failed")
			return textResult(fmt.Sprintf("Run not started: %v", err)), nil
		}
		return textResult(message), nil
	}
}

// handlePipelineStatus implements the pipeline_status tool
func handlePipelineStatus(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		history := request.GetInt("history", 5)
		if history > 50 {
			history = 50
		}

		status, err := client.Status(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("pipeline_status failed")
			return textResult(fmt.Sprintf("Status error: %v", err)), nil
		}

		results, err := client.Results(ctx, history)
		if err != nil {
			// Status alone is still useful
			logger.Warn().Err(err).Msg("Failed to fetch run history")
		}

		return textResult(formatStatus(status, results)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		job, err := client.GetJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("get_job failed")
			return textResult(fmt.Sprintf("Job not found: %v", err)), nil
		}
		return textResult(formatJob(job)), nil
	}
}

// handleSubmitJobs implements the submit_jobs tool
func handleSubmitJobs(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls := request.GetStringSlice("urls", nil)
		if len(urls) == 0 {
			return textResult("Error: urls parameter is required"), nil
		}

		jobs := make([]models.RawJob, 0, len(urls))
		for _, u := range urls {
			jobs = append(jobs, models.RawJob{URL: u})
		}

		req := runRequest{
			Source: "manual",
			Mock:   request.GetBool("mock", false),
			Jobs:   jobs,
		}
		if minScore := request.GetInt("min_score", -1); minScore >= 0 {
			req.MinScore = &minScore
		}

		message, err := client.RunPipeline(ctx, req)
		if err != nil {
			logger.Error().Err(err).Msg("submit_jobs failed")
			return textResult(fmt.Sprintf("Run not started: %v", err)), nil
		}
		return textResult(fmt.Sprintf("%s (%d inline jobs)", message, len(jobs))), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
