package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/handlers"
	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/pipeline"
	"github.com/ternarybob/petitor/internal/services/approval"
	"github.com/ternarybob/petitor/internal/services/boost"
	"github.com/ternarybob/petitor/internal/services/deliverables"
	"github.com/ternarybob/petitor/internal/services/events"
	"github.com/ternarybob/petitor/internal/services/extraction"
	"github.com/ternarybob/petitor/internal/services/kv"
	"github.com/ternarybob/petitor/internal/services/llm"
	"github.com/ternarybob/petitor/internal/services/scheduler"
	"github.com/ternarybob/petitor/internal/services/scoring"
	"github.com/ternarybob/petitor/internal/services/sheets"
	"github.com/ternarybob/petitor/internal/services/sources"
	"github.com/ternarybob/petitor/internal/storage/badger"
)

// mockDriverResponse satisfies every driver schema at once so mock runs
// traverse the full pipeline without an API key.
const mockDriverResponse = `{"score": 82, "reasoning": "Mock scoring run.", ` +
	`"proposal": "Mock proposal draft.", "cover_letter": "Mock cover letter.", ` +
	`"boost": false, "confidence": "medium"}`

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService
	KVService    *kv.Service

	// Pipeline collaborators
	LLMProvider    llm.Provider
	SheetStore     interfaces.SheetStore
	SourceRegistry *sources.Registry
	Browser        *extraction.Browser // nil in mock mode
	Verifier       *approval.Verifier
	Notifier       interfaces.ApprovalNotifier

	// Orchestration
	PipelineService  *pipeline.Service
	SchedulerService *scheduler.Service // nil unless scheduler.enabled

	// HTTP handlers
	ApprovalHandler *handlers.ApprovalHandler
	PipelineHandler *handlers.PipelineHandler
	JobsHandler     *handlers.JobsHandler
	StatusHandler   *handlers.StatusHandler
	WSHandler       *handlers.WebSocketHandler

	wsWriter *handlers.WebSocketWriter
	logRelay chan []arbormodels.LogEvent
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus and WebSocket handler come up before the services so the
	// live log stream catches initialization output.
	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &cfg.WebSocket)
	if err := app.initLogStream(); err != nil {
		return nil, fmt.Errorf("failed to initialize log stream: %w", err)
	}

	app.KVService = kv.NewService(app.StorageManager.KeyValueStorage(), app.Logger)

	// Approved jobs are handed to the submission queue; the engine's
	// responsibility ends with the enqueue.
	if err := app.EventService.Subscribe(interfaces.EventTriggerSubmission, app.enqueueSubmission); err != nil {
		return nil, fmt.Errorf("failed to subscribe submission queue: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}

	app.initHandlers()

	logger.Info().
		Str("source", cfg.Pipeline.Source).
		Bool("mock", cfg.Pipeline.Mock).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes Badger, seeds the KV store and resolves {key}
// references in the loaded configuration.
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	ctx := context.Background()

	if err := manager.SeedDefaults(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to seed default KV values")
	}

	// Key files (API tokens, signing secrets) load before config
	// replacement so {key} references resolve against them.
	if err := manager.LoadVariablesFromFiles(ctx, a.Config.Variables.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load variables from files")
	}

	kvMap, err := manager.KeyValueStorage().GetAll(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
	} else if len(kvMap) > 0 {
		if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
		} else {
			a.Logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
		}
	}

	return nil
}

// initLogStream relays logger output into the WebSocket writer so
// connected clients see the live console.
func (a *App) initLogStream() error {
	writer, err := handlers.NewWebSocketWriter(a.WSHandler, arbormodels.WriterConfiguration{
		TimeFormat: a.Config.Logging.TimeFormat,
	}, &a.Config.WebSocket)
	if err != nil {
		return err
	}
	a.wsWriter = writer

	a.logRelay = make(chan []arbormodels.LogEvent, 256)
	a.Logger.SetChannel("websocket", a.logRelay)

	go func() {
		for batch := range a.logRelay {
			for _, event := range batch {
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				_, _ = writer.Write(data)
			}
		}
	}()

	return nil
}

// enqueueSubmission is the trigger_submission subscriber
func (a *App) enqueueSubmission(ctx context.Context, event interfaces.Event) error {
	trigger, ok := event.Payload.(models.SubmissionTrigger)
	if !ok {
		return fmt.Errorf("trigger_submission payload is %T, not SubmissionTrigger", event.Payload)
	}
	return a.KVService.EnqueueSubmission(ctx, trigger)
}

// initServices initializes the pipeline collaborators in dependency order
func (a *App) initServices() error {
	cfg := a.Config
	mock := cfg.Pipeline.Mock

	// LLM provider. Mock runs use canned responses; real runs route
	// through the factory which picks Claude or Gemini per model string.
	if mock {
		a.LLMProvider = llm.NewMockProvider(mockDriverResponse)
		a.Logger.Info().Msg("Mock mode: LLM calls return canned responses")
	} else {
		a.LLMProvider = llm.NewProviderFactory(
			&cfg.Gemini,
			&cfg.Claude,
			&cfg.LLM,
			a.StorageManager.KeyValueStorage(),
			a.Logger,
		)
	}
	model := a.defaultModel()

	// Sheet store. Without a sheet ID the in-memory backend keeps the
	// pipeline runnable, but rows do not survive a restart.
	if mock || cfg.Sheets.SheetID == "" {
		if !mock {
			a.Logger.Warn().Msg("No sheet_id configured - job records are held in memory only")
		}
		a.SheetStore = sheets.NewStore(sheets.NewMemoryValues(models.SheetColumns), cfg.Sheets.Tab, a.Logger)
	} else {
		values, err := sheets.NewGoogleValues(context.Background(), &cfg.Sheets)
		if err != nil {
			return fmt.Errorf("failed to initialize sheets backend: %w", err)
		}
		a.SheetStore = sheets.NewStore(values, cfg.Sheets.Tab, a.Logger)
	}

	a.SourceRegistry = sources.NewRegistry(&cfg.Sources, a.Logger)

	scorer := scoring.NewScorer(a.LLMProvider, model, a.Logger)

	// Extraction. The browser only starts for real runs; mock runs parse
	// a synthetic posting page.
	var extractor *extraction.Extractor
	if mock {
		extractor = extraction.NewExtractor(extraction.MockFetcher{}, cfg.Storage.Filesystem.Attachments, a.Logger)
	} else {
		browser, err := extraction.NewBrowser(a.Logger)
		if err != nil {
			return fmt.Errorf("failed to start headless browser: %w", err)
		}
		a.Browser = browser
		extractor = extraction.NewExtractor(browser, cfg.Storage.Filesystem.Attachments, a.Logger)
	}

	// Deliverables. Docs and video are optional collaborators; the
	// generator degrades to local-only output when they are absent.
	writer := deliverables.NewProposalWriter(a.LLMProvider, model, a.Logger)
	renderer := deliverables.NewPDFRenderer(a.Logger)

	var docs *deliverables.DocsClient
	if !mock && cfg.Deliverables.DocsEndpoint != "" {
		token, err := common.ResolveAPIKey(context.Background(), a.StorageManager.KeyValueStorage(), "docs_token", cfg.Deliverables.DocsToken)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Docs token unresolved - document creation disabled")
		} else {
			docs = deliverables.NewDocsClient(
				cfg.Deliverables.DocsEndpoint,
				token,
				parseDuration(cfg.Deliverables.DocsTimeout, 60*time.Second),
				a.Logger,
			)
		}
	}

	var video *deliverables.VideoClient
	if !mock && cfg.Deliverables.VideoEnabled && cfg.Deliverables.VideoEndpoint != "" {
		token, err := common.ResolveAPIKey(context.Background(), a.StorageManager.KeyValueStorage(), "video_token", cfg.Deliverables.VideoToken)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Video token unresolved - video rendering disabled")
		} else {
			video = deliverables.NewVideoClient(
				cfg.Deliverables.VideoEndpoint,
				token,
				parseDuration(cfg.Deliverables.VideoPollInterval, 10*time.Second),
				parseDuration(cfg.Deliverables.VideoTimeout, 5*time.Minute),
				a.Logger,
			)
		}
	}

	generator := deliverables.NewGenerator(
		writer,
		renderer,
		docs,
		video,
		pipeline.NewGate(),
		cfg.Storage.Filesystem.Deliverables,
		a.Logger,
	)

	booster := boost.NewDecider(a.LLMProvider, model, a.Logger)

	// Approval channel. The verifier is always real - mock runs still
	// accept signed callbacks - but notifications stay in-process when no
	// workspace is configured.
	a.Verifier = approval.NewVerifier(cfg.Approval.SigningSecret, parseDuration(cfg.Approval.ReplayWindow, approval.DefaultReplayWindow))
	if mock || cfg.Approval.Endpoint == "" {
		if !mock {
			a.Logger.Warn().Msg("No approval endpoint configured - review messages are logged only")
		}
		a.Notifier = approval.NewMockNotifier(a.Logger)
	} else {
		token, err := common.ResolveAPIKey(context.Background(), a.StorageManager.KeyValueStorage(), "approval_bot_token", cfg.Approval.BotToken)
		if err != nil {
			return fmt.Errorf("approval bot token unresolved: %w", err)
		}
		a.Notifier = approval.NewNotifier(
			cfg.Approval.Endpoint,
			token,
			cfg.Approval.ChannelID,
			a.Logger,
			approval.WithNotifierRateLimit(cfg.Approval.RateLimit),
		)
	}

	a.PipelineService = pipeline.NewService(
		a.SheetStore,
		a.StorageManager.DedupStore(),
		a.SourceRegistry,
		scorer,
		extractor,
		generator,
		booster,
		a.Notifier,
		a.EventService,
		a.KVService,
		a.Logger,
	)

	if cfg.Scheduler.Enabled {
		sourceNames := cfg.Scheduler.Sources
		if len(sourceNames) == 0 {
			sourceNames = []string{cfg.Pipeline.Source}
		}
		a.SchedulerService = scheduler.NewService(
			a.PipelineService,
			cfg.Scheduler.Schedule,
			sourceNames,
			a.defaultOptions(),
			a.Logger,
		)
	}

	return nil
}

// initHandlers wires the HTTP handlers over the services
func (a *App) initHandlers() {
	a.ApprovalHandler = handlers.NewApprovalHandler(a.Verifier, a.SheetStore, a.Notifier, a.EventService, a.Logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.PipelineService, a.KVService, a.defaultOptions(), a.Logger)
	a.JobsHandler = handlers.NewJobsHandler(a.SheetStore, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler()
}

// defaultOptions builds run options from the configured defaults
func (a *App) defaultOptions() pipeline.Options {
	return pipeline.Options{
		Source:   a.Config.Pipeline.Source,
		Limit:    a.Config.Pipeline.Limit,
		MinScore: a.Config.Pipeline.MinScore,
		Workers:  a.Config.Pipeline.WorkerCount,
		Mock:     a.Config.Pipeline.Mock,
	}
}

// defaultModel picks the model string for the configured default provider
func (a *App) defaultModel() string {
	if a.Config.LLM.DefaultProvider == common.LLMProviderGemini {
		return a.Config.Gemini.Model
	}
	return a.Config.Claude.Model
}

// Close shuts down all application components in reverse order
func (a *App) Close() error {
	var firstErr error

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.Browser != nil {
		if err := a.Browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.LLMProvider != nil {
		if err := a.LLMProvider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.wsWriter != nil {
		if err := a.wsWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.logRelay != nil {
		close(a.logRelay)
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// parseDuration parses a duration string with a fallback for empty or
// malformed values.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
