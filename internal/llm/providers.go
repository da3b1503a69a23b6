package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	openai "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	googleoption "google.golang.org/api/option"
)

// maxReviewTokens bounds the reviewer output regardless of what the caller
// asks for. A review is a short summary plus a handful of suggestions; more
// output than this is the model rambling.
const maxReviewTokens = 2048

// defaultNewProvider dispatches to the review backend named by providerName.
func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		return newAnthropicProvider(model)
	case "openai":
		return newOpenAIProvider(model)
	case "google":
		return newGoogleProvider(model)
	default:
		return nil, fmt.Errorf("llm: unknown review provider %q", providerName)
	}
}

// reviewerKey reads the backend's API key from the environment.
func reviewerKey(envVar, backend string) (string, error) {
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("llm: %s reviewer requires %s to be set", backend, envVar)
	}
	return key, nil
}

// capReviewTokens clamps the requested output budget to the reviewer bound.
func capReviewTokens(n int) int {
	if n <= 0 || n > maxReviewTokens {
		return maxReviewTokens
	}
	return n
}

// anthropicProvider backs the reviewer with the Anthropic Messages API.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	key, err := reviewerKey("ANTHROPIC_API_KEY", "anthropic")
	if err != nil {
		return nil, err
	}
	return &anthropicProvider{client: anthropic.NewClient(option.WithAPIKey(key)), model: model}, nil
}

func (p *anthropicProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(capReviewTokens(maxTokens)),
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic review request: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		// "text" is the only content type that carries assistant text output.
		// The SDK does not expose a typed constant for content block types in
		// this version.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("llm: anthropic review returned no text blocks")
	}
	return strings.Join(parts, ""), nil
}

// openaiProvider backs the reviewer with the OpenAI Chat Completions API.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(model string) (Provider, error) {
	key, err := reviewerKey("OPENAI_API_KEY", "openai")
	if err != nil {
		return nil, err
	}
	return &openaiProvider{client: openai.NewClient(openaioption.WithAPIKey(key)), model: model}, nil
}

func (p *openaiProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(capReviewTokens(maxTokens))),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai review request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai review returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("llm: openai review returned empty content")
	}
	return content, nil
}

// googleProvider backs the reviewer with the Google Generative AI SDK. The
// key is held at construction; a genai.Client is created per Complete call so
// the caller's context governs the connection and the client is always closed.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(model string) (Provider, error) {
	key, err := reviewerKey("GOOGLE_API_KEY", "google")
	if err != nil {
		return nil, err
	}
	return &googleProvider{apiKey: key, model: model}, nil
}

func (p *googleProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("llm: google review client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	maxOut := int32(capReviewTokens(maxTokens))
	m.MaxOutputTokens = &maxOut
	temp32 := float32(temperature)
	m.Temperature = &temp32
	// JSON output mode keeps the review out of markdown code fences.
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("llm: google review request: %w", err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("llm: google review returned no text content")
	}
	return strings.Join(parts, ""), nil
}
