package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when the requested model is not a Gemini model,
// e.g. an OpenRouter model name kept in the runtime settings.
const DefaultModel = "gemini-2.5-flash"

// Turn is one message of a conversation. Model marks turns written by the model.
type Turn struct {
	Model bool
	Text  string
}

type GeminiService struct {
	client *genai.Client
}

func NewGeminiService(ctx context.Context, apiKey string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiService{client: client}, nil
}

// ResolveModel maps a configured model name onto a Gemini model id.
func ResolveModel(model string) string {
	model = strings.TrimPrefix(model, "google/")
	if strings.HasPrefix(model, "gemini-") {
		return model
	}
	return DefaultModel
}

func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Model {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

// Generate runs a single generateContent call and returns the concatenated text parts.
func (g *GeminiService) Generate(ctx context.Context, model, system string, turns []Turn) (string, error) {
	contents := toContents(turns)

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, ResolveModel(model), contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
