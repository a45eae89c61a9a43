package interfaces

// Message is a provider-agnostic chat message passed to an LLM provider.
// Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}
