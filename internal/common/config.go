package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Variables    KeysDirConfig      `toml:"variables"` // Key/value files (./keys/*.toml) seeded into the KV store
	Logging      LoggingConfig      `toml:"logging"`
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Sheets       SheetsConfig       `toml:"sheets"`
	Sources      SourcesConfig      `toml:"sources"`
	Gemini       GeminiConfig       `toml:"gemini"`
	Claude       ClaudeConfig       `toml:"claude"`
	LLM          LLMConfig          `toml:"llm"`
	Deliverables DeliverablesConfig `toml:"deliverables"`
	Approval     ApprovalConfig     `toml:"approval"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
	WebSocket    WebSocketConfig    `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Attachments  string `toml:"attachments"`  // Scratch directory for downloaded attachments
	Deliverables string `toml:"deliverables"` // Output directory for rendered PDFs
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05")
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to broadcast to UI clients
}

// PipelineConfig holds the orchestration knobs of a run
type PipelineConfig struct {
	Source      string `toml:"source"`       // Default source when none requested: apify, gmail or manual
	MinScore    int    `toml:"min_score" validate:"min=0,max=100"`
	WorkerCount int    `toml:"worker_count" validate:"min=1,max=32"` // Per-stage concurrency bound W
	Limit       int    `toml:"limit"`                                // Max jobs ingested per run, 0 = no cap
	Mock        bool   `toml:"mock"`                                 // Disable all external side effects
}

// SheetsConfig addresses the external spreadsheet that is the durable store
type SheetsConfig struct {
	SheetID         string `toml:"sheet_id"`         // Spreadsheet identifier (required unless mock)
	Tab             string `toml:"tab"`              // Worksheet name (default: "jobs")
	CredentialsFile string `toml:"credentials_file"` // Service account JSON path
	Timeout         string `toml:"timeout"`          // Per-request timeout as duration string
}

type SourcesConfig struct {
	Apify ApifyConfig `toml:"apify"`
	Gmail GmailConfig `toml:"gmail"`
}

// ApifyConfig configures the actor dataset source
type ApifyConfig struct {
	Token     string `toml:"token"`      // API token; {apify_token} KV reference supported
	DatasetID string `toml:"dataset_id"` // Dataset holding scraped postings
	Endpoint  string `toml:"endpoint"`   // API base URL
	Timeout   string `toml:"timeout"`    // HTTP timeout as duration string
	RateLimit int    `toml:"rate_limit"` // Requests per second
}

// GmailConfig configures the IMAP job-alert source
type GmailConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"` // App password; {gmail_password} KV reference supported
	UseTLS        bool   `toml:"use_tls"`
	Folder        string `toml:"folder"`         // Mailbox to scan (default: "INBOX")
	SubjectFilter string `toml:"subject_filter"` // Only messages whose subject contains this
	MarkSeen      bool   `toml:"mark_seen"`      // Mark ingested alerts as read
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Default: "gemini-3-flash-preview"
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // Default: "claude-haiku-3-5-20241022"
	MaxTokens   int     `toml:"max_tokens"` // Default: 4096
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// DeliverablesConfig configures the generator's external collaborators
type DeliverablesConfig struct {
	DocsEndpoint      string `toml:"docs_endpoint"`       // Document-creation API base URL
	DocsToken         string `toml:"docs_token"`          // Bearer token for the docs API
	DocsTimeout       string `toml:"docs_timeout"`        // Per-request timeout (default: "60s")
	VideoEnabled      bool   `toml:"video_enabled"`       // Render the avatar video (optional deliverable)
	VideoEndpoint     string `toml:"video_endpoint"`      // Render API base URL
	VideoToken        string `toml:"video_token"`         // Bearer token for the render API
	VideoPollInterval string `toml:"video_poll_interval"` // Poll cadence (default: "10s")
	VideoTimeout      string `toml:"video_timeout"`       // Poll deadline (default: "5m")
}

// ApprovalConfig configures the human-review channel and its webhook
type ApprovalConfig struct {
	Endpoint      string `toml:"endpoint"`       // Chat API base URL
	BotToken      string `toml:"bot_token"`      // Bearer token for posting messages
	ChannelID     string `toml:"channel_id"`     // Channel that hosts review messages
	SigningSecret string `toml:"signing_secret"` // Shared HMAC key for webhook verification
	ReplayWindow  string `toml:"replay_window"`  // Webhook timestamp tolerance (default: "5m")
	RateLimit     int    `toml:"rate_limit"`     // Chat API requests per second
}

// SchedulerConfig drives unattended pipeline runs
type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"` // Cron expression (default: "*/30 * * * *")
	Sources  []string `toml:"sources"`  // Sources to run on each tick (default: pipeline.source)
}

// WebSocketConfig contains configuration for live status streaming
type WebSocketConfig struct {
	MinLevel          string            `toml:"min_level"`          // Minimum log level to broadcast
	ExcludePatterns   []string          `toml:"exclude_patterns"`   // Log message patterns never broadcast
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Per-event minimum broadcast interval
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here; only user-facing settings
// belong in petitor.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Attachments:  "./data/attachments",
				Deliverables: "./data/deliverables",
			},
		},
		Variables: KeysDirConfig{
			Dir: "./keys",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			TimeFormat:    "15:04:05",
			MinEventLevel: "info",
		},
		Pipeline: PipelineConfig{
			Source:      "apify",
			MinScore:    70, // Jobs scoring below this are filtered out
			WorkerCount: 4,  // Per-stage parallelism
			Limit:       0,
			Mock:        false,
		},
		Sheets: SheetsConfig{
			Tab:     "jobs",
			Timeout: "30s",
		},
		Sources: SourcesConfig{
			Apify: ApifyConfig{
				Endpoint:  "https://api.apify.com/v2",
				Timeout:   "30s",
				RateLimit: 5,
			},
			Gmail: GmailConfig{
				Port:     993,
				UseTLS:   true,
				Folder:   "INBOX",
				MarkSeen: false,
			},
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "60s",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "60s",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Deliverables: DeliverablesConfig{
			DocsTimeout:       "60s",
			VideoEnabled:      false,
			VideoPollInterval: "10s",
			VideoTimeout:      "5m", // Video render polls never exceed five minutes
		},
		Approval: ApprovalConfig{
			ReplayWindow: "5m", // Webhooks older than this are replays
			RateLimit:    1,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false, // Unattended runs are opt-in
			Schedule: "*/30 * * * *",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"Publishing event",
			},
			ThrottleIntervals: map[string]string{
				"pipeline_stage": "500ms",
			},
		},
	}
}

// LoadFromFile loads configuration from a single file.
// kvStorage can be nil; {key} replacement is then skipped.
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files. Later files
// override earlier files; environment variables override all files.
// Priority: CLI flags > environment > last file > ... > first file > defaults.
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Resolve {key} references against the KV store when available
	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			}
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks range and enum constraints on the loaded configuration.
// Returns a ConfigError naming the first offending field.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return &interfaces.ConfigError{
				Field:  first.Namespace(),
				Reason: fmt.Sprintf("failed %s constraint", first.Tag()),
			}
		}
		return &interfaces.ConfigError{Field: "config", Reason: err.Error()}
	}
	return nil
}

// applyEnvOverrides applies PETITOR_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PETITOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PETITOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PETITOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("PETITOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("PETITOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("PETITOR_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("PETITOR_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitAndTrim(output, ",")
	}

	// Pipeline configuration
	if source := os.Getenv("PETITOR_PIPELINE_SOURCE"); source != "" {
		config.Pipeline.Source = source
	}
	if minScore := os.Getenv("PETITOR_MIN_SCORE"); minScore != "" {
		if m, err := strconv.Atoi(minScore); err == nil {
			config.Pipeline.MinScore = m
		}
	}
	if workers := os.Getenv("PETITOR_WORKER_COUNT"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Pipeline.WorkerCount = w
		}
	}
	if limit := os.Getenv("PETITOR_PIPELINE_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Pipeline.Limit = l
		}
	}
	if mock := os.Getenv("PETITOR_PIPELINE_MOCK"); mock != "" {
		if m, err := strconv.ParseBool(mock); err == nil {
			config.Pipeline.Mock = m
		}
	}

	// Sheets configuration
	if sheetID := os.Getenv("PETITOR_SHEET_ID"); sheetID != "" {
		config.Sheets.SheetID = sheetID
	}
	if tab := os.Getenv("PETITOR_SHEET_TAB"); tab != "" {
		config.Sheets.Tab = tab
	}
	if creds := os.Getenv("PETITOR_SHEETS_CREDENTIALS_FILE"); creds != "" {
		config.Sheets.CredentialsFile = creds
	}

	// Source configuration
	if token := os.Getenv("PETITOR_APIFY_TOKEN"); token != "" {
		config.Sources.Apify.Token = token
	}
	if dataset := os.Getenv("PETITOR_APIFY_DATASET"); dataset != "" {
		config.Sources.Apify.DatasetID = dataset
	}
	if host := os.Getenv("PETITOR_GMAIL_HOST"); host != "" {
		config.Sources.Gmail.Host = host
	}
	if port := os.Getenv("PETITOR_GMAIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Sources.Gmail.Port = p
		}
	}
	if user := os.Getenv("PETITOR_GMAIL_USERNAME"); user != "" {
		config.Sources.Gmail.Username = user
	}
	if pass := os.Getenv("PETITOR_GMAIL_PASSWORD"); pass != "" {
		config.Sources.Gmail.Password = pass
	}

	// LLM configuration
	if key := os.Getenv("PETITOR_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("PETITOR_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if provider := os.Getenv("PETITOR_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	// Deliverables configuration
	if endpoint := os.Getenv("PETITOR_DOCS_ENDPOINT"); endpoint != "" {
		config.Deliverables.DocsEndpoint = endpoint
	}
	if token := os.Getenv("PETITOR_DOCS_TOKEN"); token != "" {
		config.Deliverables.DocsToken = token
	}
	if endpoint := os.Getenv("PETITOR_VIDEO_ENDPOINT"); endpoint != "" {
		config.Deliverables.VideoEndpoint = endpoint
	}
	if enabled := os.Getenv("PETITOR_VIDEO_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Deliverables.VideoEnabled = e
		}
	}

	// Approval configuration
	if endpoint := os.Getenv("PETITOR_APPROVAL_ENDPOINT"); endpoint != "" {
		config.Approval.Endpoint = endpoint
	}
	if token := os.Getenv("PETITOR_APPROVAL_BOT_TOKEN"); token != "" {
		config.Approval.BotToken = token
	}
	if channel := os.Getenv("PETITOR_APPROVAL_CHANNEL"); channel != "" {
		config.Approval.ChannelID = channel
	}
	if secret := os.Getenv("PETITOR_APPROVAL_SIGNING_SECRET"); secret != "" {
		config.Approval.SigningSecret = secret
	}

	// Scheduler configuration
	if enabled := os.Getenv("PETITOR_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("PETITOR_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Command-line flags have the highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves a secret by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":          {"PETITOR_GEMINI_API_KEY"},
		"anthropic_api_key":       {"PETITOR_CLAUDE_API_KEY"},
		"claude_api_key":          {"PETITOR_CLAUDE_API_KEY"},
		"apify_token":             {"PETITOR_APIFY_TOKEN"},
		"gmail_password":          {"PETITOR_GMAIL_PASSWORD"},
		"docs_token":              {"PETITOR_DOCS_TOKEN"},
		"video_token":             {"PETITOR_VIDEO_TOKEN"},
		"approval_bot_token":      {"PETITOR_APPROVAL_BOT_TOKEN"},
		"approval_signing_secret": {"PETITOR_APPROVAL_SIGNING_SECRET"},
	}

	// The standard Anthropic variable also works for Claude keys
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("secret '%s' not found in environment, KV store, or config", name)
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
