package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestReplaceKeyReferences_Simple(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"apify_token": "apify_api_abc123"}

	input := "token = {apify_token}"
	expected := "token = apify_api_abc123"

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_Multiple(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"key1": "val1",
		"key2": "val2",
	}

	input := "key1={key1}, key2={key2}"
	expected := "key1=val1, key2=val2"

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_MissingKey(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"other-key": "value"}

	input := "token = {missing-key}"
	expected := "token = {missing-key}" // Unchanged

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_InvalidSyntax(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"invalid key": "value"}

	// Space in key name - doesn't match regex
	input := "token = {invalid key}"
	expected := "token = {invalid key}" // Unchanged

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_EmptyInput(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	result := ReplaceKeyReferences("", kvMap, logger)
	assert.Equal(t, "", result)
}

func TestReplaceInStruct_ConfigSecrets(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"apify_token":    "apify_api_secret",
		"gmail_password": "app-password-xyz",
		"docs_token":     "docs-bearer-123",
	}

	config := NewDefaultConfig()
	config.Sources.Apify.Token = "{apify_token}"
	config.Sources.Gmail.Password = "{gmail_password}"
	config.Deliverables.DocsToken = "{docs_token}"

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "apify_api_secret", config.Sources.Apify.Token)
	assert.Equal(t, "app-password-xyz", config.Sources.Gmail.Password)
	assert.Equal(t, "docs-bearer-123", config.Deliverables.DocsToken)
}

func TestReplaceInStruct_SliceFields(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"primary-source": "apify"}

	config := NewDefaultConfig()
	config.Scheduler.Sources = []string{"{primary-source}", "gmail"}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"apify", "gmail"}, config.Scheduler.Sources)
}

func TestReplaceInStruct_MapFields(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"stage-throttle": "250ms"}

	config := NewDefaultConfig()
	config.WebSocket.ThrottleIntervals = map[string]string{
		"pipeline_stage": "{stage-throttle}",
	}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "250ms", config.WebSocket.ThrottleIntervals["pipeline_stage"])
}

func TestReplaceInStruct_RequiresPointer(t *testing.T) {
	logger := createTestLogger()

	err := ReplaceInStruct(Config{}, map[string]string{}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a pointer")
}

func TestReplaceInStruct_UntouchedWithoutReferences(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"apify_token": "secret"}

	config := NewDefaultConfig()
	config.Sources.Apify.Token = "literal-token"

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "literal-token", config.Sources.Apify.Token)
}
