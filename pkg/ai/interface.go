package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient is the interface for LLM chat completion.
// Implement this interface to add new AI providers (OpenRouter, Gemini, etc.)
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []Message) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderGemini     ProviderType = "gemini"
)
