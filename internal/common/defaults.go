package common

// DefaultKVValue represents a default key/value pair that is seeded on startup.
type DefaultKVValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// GetDefaultKVValues returns the list of default KV values seeded on startup.
// This is the single source of truth for default values. Seeding uses Upsert,
// so operator edits survive restarts.
func GetDefaultKVValues() []DefaultKVValue {
	return []DefaultKVValue{
		{
			Key:         "profile_name",
			Value:       "Alex",
			Description: "Freelancer name used to sign generated proposals",
		},
		{
			Key:         "profile_summary",
			Value:       "Full-stack engineer specializing in automation, integrations, and data pipelines.",
			Description: "Short bio injected into proposal generation prompts",
		},
	}
}
