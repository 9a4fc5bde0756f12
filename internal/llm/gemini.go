package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when the gemini backend has no model configured
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates scenes through the Gemini API with a response schema
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini backend
func NewGemini(ctx context.Context, config *Config) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Gemini{client: client, model: model, maxTokens: maxTokens}, nil
}

// Name returns the backend name
func (g *Gemini) Name() string {
	return "gemini"
}

// Generate requests a JSON answer constrained by the visualization schema
func (g *Gemini) Generate(ctx context.Context, system, user string) (*Visualization, Usage, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		MaxOutputTokens:   int32(g.maxTokens),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"manim_code":  {Type: genai.TypeString},
				"description": {Type: genai.TypeString},
			},
			Required: []string{"manim_code", "description"},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("gemini API error: %w", err)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.CacheReadTokens = int(resp.UsageMetadata.CachedContentTokenCount)
	}

	v, err := parseVisualization(resp.Text())
	return v, usage, err
}

// ListModels returns the model names visible to the API key
func (g *Gemini) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for model, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list gemini models: %w", err)
		}
		names = append(names, model.Name)
	}
	return names, nil
}
