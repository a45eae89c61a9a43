package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/petitor/internal/common"
)

func main() {
	apiURL := os.Getenv("PETITOR_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	client := newAPIClient(apiURL)

	mcpServer := server.NewMCPServer(
		"petitor",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createRunPipelineTool(), handleRunPipeline(client, logger))
	mcpServer.AddTool(createPipelineStatusTool(), handlePipelineStatus(client, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(client, logger))
	mcpServer.AddTool(createSubmitJobsTool(), handleSubmitJobs(client, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
