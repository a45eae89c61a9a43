package interfaces

import "fmt"

// StatusError carries an HTTP status code returned by an external service.
// The retry executor classifies it: 5xx, 429 and 408 are retryable, other
// 4xx are not.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// ConfigError indicates missing or invalid configuration. It aborts a
// pipeline run before any stage executes.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// ValidationError indicates a malformed payload from an external
// collaborator (bad JSON, schema violation). Never retried.
type ValidationError struct {
	Source string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error from %s: %s", e.Source, e.Reason)
}

// AuthError indicates rejected credentials. Never retried.
type AuthError struct {
	Service string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s", e.Service)
}
