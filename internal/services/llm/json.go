package llm

import "strings"

// ExtractJSON pulls the JSON object or array out of a model response.
// Providers without structured output wrap JSON in markdown fences or
// lead-in prose; this strips both.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.LastIndex(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return trimmed
	}

	var closer byte
	if trimmed[start] == '{' {
		closer = '}'
	} else {
		closer = ']'
	}
	end := strings.LastIndexByte(trimmed, closer)
	if end <= start {
		return trimmed[start:]
	}
	return trimmed[start : end+1]
}
