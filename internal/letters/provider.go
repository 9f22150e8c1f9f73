// Package letters generates cover-letter text with an LLM and saves it as a
// PDF artifact.
package letters

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Provider is an abstraction over LLM backends.
type Provider interface {
	// Generate returns the model's text completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Close releases any resources held by the provider.
	Close() error
}

// NewProvider creates a provider for the configured backend.
func NewProvider(ctx context.Context, provider, model, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for provider %q", provider)
	}

	switch strings.ToLower(provider) {
	case "gemini":
		return newGeminiProvider(ctx, model, apiKey)
	case "anthropic":
		return newAnthropicProvider(model, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, model, apiKey string) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.7)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractTextFromResponse(resp)
}

func (p *geminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// extractTextFromResponse flattens the text parts of a Gemini response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model, apiKey string) *anthropicProvider {
	return &anthropicProvider{
		client: anthropic.NewClient(anthropicopt.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *anthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   1000,
		Temperature: anthropic.Float(0.7),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}

func (p *anthropicProvider) Close() error { return nil }
