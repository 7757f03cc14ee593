package translate

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// GoogleAIModel implements llms.Model for the Gemini API using google.golang.org/genai
type GoogleAIModel struct {
	client *genai.Client
	model  string
}

// NewGoogleAIModel creates a new GoogleAIModel instance
func NewGoogleAIModel(ctx context.Context, model string, apiKey string) (*GoogleAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLEAI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai client: %w", err)
	}

	return &GoogleAIModel{client: client, model: model}, nil
}

// GenerateText sends a text generation request to Gemini API
func (p *GoogleAIModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("googleai client not initialized")
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", fmt.Errorf("googleai GenerateContent API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("googleai GenerateContent API returned empty response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("googleai GenerateContent API returned a candidate with no content parts")
	}
	if candidate.Content.Parts[0].Text == "" {
		return "", fmt.Errorf("googleai GenerateContent API returned a candidate with empty text")
	}

	return candidate.Content.Parts[0].Text, nil
}

// GenerateContent adapts a single-message prompt to the Gemini API and wraps the result.
func (p *GoogleAIModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) == 0 || len(messages[0].Parts) == 0 {
		return nil, fmt.Errorf("no prompt provided")
	}
	textPart, ok := messages[0].Parts[0].(llms.TextContent)
	if !ok {
		return nil, fmt.Errorf("first message part is not TextContent")
	}
	result, err := p.GenerateText(ctx, textPart.Text)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: result,
			},
		},
	}, nil
}

// Call implements the llms.Model interface for compatibility with langchaingo.
func (p *GoogleAIModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return p.GenerateText(ctx, prompt)
}
