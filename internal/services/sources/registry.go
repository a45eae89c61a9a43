package sources

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// Registry resolves source names to adapters at run start. The name set
// is fixed; resolving an unknown name is a configuration error that
// aborts the run before ingestion.
type Registry struct {
	config *common.SourcesConfig
	logger arbor.ILogger
}

// NewRegistry creates a source registry over the configured adapters
func NewRegistry(config *common.SourcesConfig, logger arbor.ILogger) *Registry {
	return &Registry{
		config: config,
		logger: logger,
	}
}

// Resolve returns the adapter for a source name. Manual jobs ride along
// for the manual source and are ignored for the rest.
func (r *Registry) Resolve(name string, manualJobs []models.RawJob) (interfaces.JobSource, error) {
	switch name {
	case models.SourceApify:
		return r.apify(), nil
	case models.SourceGmail:
		return NewGmailSource(&r.config.Gmail, r.logger), nil
	case models.SourceManual:
		return NewManualSource(manualJobs), nil
	}
	return nil, &interfaces.ConfigError{
		Field:  "source",
		Reason: "unknown source " + name + " (valid: " + models.SourceNames() + ")",
	}
}

func (r *Registry) apify() *ApifySource {
	cfg := r.config.Apify
	opts := []ApifyOption{
		WithApifyBaseURL(cfg.Endpoint),
		WithApifyRateLimit(cfg.RateLimit),
	}
	if cfg.Timeout != "" {
		if timeout, err := time.ParseDuration(cfg.Timeout); err == nil {
			opts = append(opts, WithApifyTimeout(timeout))
		}
	}
	return NewApifySource(cfg.Token, cfg.DatasetID, r.logger, opts...)
}
