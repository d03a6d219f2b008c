package ai

import (
	"context"
	"fmt"
	"time"

	"welcome-agent/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "openrouter" or "gemini"

	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	GeminiAPIKey string

	// Timeout bounds every outbound LLM call.
	Timeout time.Duration
}

// NewChatClient creates a ChatClient based on the config
// This is the factory function - switch AI provider by changing config.Provider
func NewChatClient(ctx context.Context, cfg Config) (ChatClient, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		svc, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return withTimeout(&geminiChat{svc: svc}, cfg.Timeout), nil

	case ProviderOpenRouter, "":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required for OpenRouter provider")
		}
		primary := NewOpenRouterService(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.Timeout)
		if cfg.GeminiAPIKey == "" {
			return primary, nil
		}
		// With a Gemini key present, Gemini backs OpenRouter up during outages and rate limits.
		svc, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return NewFallbackChat(primary, withTimeout(&geminiChat{svc: svc}, cfg.Timeout)), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// geminiChat adapts the Gemini SDK wrapper to ChatClient.
type geminiChat struct {
	svc *gemini.GeminiService
}

func (g *geminiChat) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	var system string
	turns := make([]gemini.Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			turns = append(turns, gemini.Turn{Model: true, Text: m.Content})
		default:
			turns = append(turns, gemini.Turn{Text: m.Content})
		}
	}
	return g.svc.Generate(ctx, model, system, turns)
}

type timeoutChat struct {
	next    ChatClient
	timeout time.Duration
}

func withTimeout(next ChatClient, timeout time.Duration) ChatClient {
	if timeout <= 0 {
		return next
	}
	return &timeoutChat{next: next, timeout: timeout}
}

func (t *timeoutChat) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Chat(ctx, model, messages)
}
