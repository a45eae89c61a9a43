package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/app"
	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/pipeline"
	"github.com/ternarybob/petitor/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// One-shot mode: run the pipeline once and exit instead of serving
	runOnce   = flag.Bool("run", false, "Run the pipeline once and exit")
	runSource = flag.String("source", "", "Source for the one-shot run (overrides config)")
	runLimit  = flag.Int("limit", 0, "Max jobs to ingest in the one-shot run")
	runScore  = flag.Int("min-score", -1, "Prefilter threshold for the one-shot run")
	runMock   = flag.Bool("mock", false, "Disable external side effects")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Petitor version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Startup order: config (defaults -> files -> env) -> CLI overrides
	// -> logger -> banner.
	if len(configFiles) == 0 {
		if _, err := os.Stat("petitor.toml"); err == nil {
			configFiles = append(configFiles, "petitor.toml")
		} else if _, err := os.Stat("deployments/local/petitor.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/petitor.toml")
		}
	}

	// {key} replacement happens later, in app.New, once storage is up
	config, err := common.LoadFromFiles(nil, configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)
	if *runMock {
		config.Pipeline.Mock = true
	}

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler("logs")

	logger.Info().
		Strs("config_files", configFiles).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if *runOnce {
		os.Exit(runPipelineOnce(application, logger))
	}

	srv := server.New(application)

	go func() {
		defer common.RecoverWithCrashFile()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	if application.SchedulerService != nil {
		if err := application.SchedulerService.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Give goroutine a moment to start
	time.Sleep(100 * time.Millisecond)

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	logger.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runPipelineOnce executes a single pipeline pass and reports its outcome.
// Returns the process exit code.
func runPipelineOnce(application *app.App, logger arbor.ILogger) int {
	opts := pipeline.Options{
		Source:   application.Config.Pipeline.Source,
		Limit:    application.Config.Pipeline.Limit,
		MinScore: application.Config.Pipeline.MinScore,
		Workers:  application.Config.Pipeline.WorkerCount,
		Mock:     application.Config.Pipeline.Mock,
	}
	if *runSource != "" {
		opts.Source = *runSource
	}
	if *runLimit > 0 {
		opts.Limit = *runLimit
	}
	if *runScore >= 0 {
		opts.MinScore = *runScore
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := application.PipelineService.Run(ctx, opts)
	if err != nil {
		logger.Error().Err(err).Str("source", opts.Source).Msg("Pipeline run failed")
		return 1
	}

	fmt.Println(result.Summary())
	if len(result.Errors) > 0 {
		logger.Warn().Int("errors", len(result.Errors)).Msg("Run finished with errors")
		return 1
	}
	return 0
}
