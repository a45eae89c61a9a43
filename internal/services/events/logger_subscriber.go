package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		var jobID, runID, stage string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["job_id"].(string); ok {
				jobID = id
			}
			if id, ok := payload["run_id"].(string); ok {
				runID = id
			}
			if s, ok := payload["stage"].(string); ok {
				stage = s
			}
		}

		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if jobID != "" {
			logEvent = logEvent.Str("job_id", jobID)
		}
		if runID != "" {
			logEvent = logEvent.Str("run_id", runID)
		}
		if stage != "" {
			logEvent = logEvent.Str("stage", stage)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventPipelineStarted,
		interfaces.EventPipelineStage,
		interfaces.EventPipelineCompleted,
		interfaces.EventJobApproved,
		interfaces.EventJobRejected,
		interfaces.EventTriggerSubmission,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Info().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
