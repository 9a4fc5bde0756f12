package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAnthropicModel is the Claude model scenes were tuned against
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"

	anthropicBaseURL       = "https://api.anthropic.com"
	anthropicVersion       = "2023-06-01"
	anthropicClientTimeout = 5 * time.Minute

	// visualizationTool is the single tool the model is forced to call, so the
	// tool input carries the structured answer
	visualizationTool = "emit_visualization"
)

// Anthropic talks to the Claude Messages API
type Anthropic struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewAnthropic creates a Claude backend
func NewAnthropic(config *Config) *Anthropic {
	a := &Anthropic{
		apiKey:    config.APIKey,
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		model:     config.Model,
		maxTokens: config.MaxTokens,
		client:    config.HTTPClient,
	}
	if a.baseURL == "" {
		a.baseURL = anthropicBaseURL
	}
	if a.model == "" {
		a.model = DefaultAnthropicModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: anthropicClientTimeout}
	}
	return a
}

// Name returns the backend name
func (a *Anthropic) Name() string {
	return "anthropic"
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicTextBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicMessage struct {
	Role    string               `json:"role"`
	Content []anthropicTextBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicRequest struct {
	Model      string               `json:"model"`
	MaxTokens  int                  `json:"max_tokens"`
	System     []anthropicTextBlock `json:"system"`
	Messages   []anthropicMessage   `json:"messages"`
	Tools      []anthropicTool      `json:"tools"`
	ToolChoice anthropicToolChoice  `json:"tool_choice"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Name  string          `json:"name"`
		Text  string          `json:"text"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompts with the system prompt marked cacheable and the
// visualization tool forced
func (a *Anthropic) Generate(ctx context.Context, system, user string) (*Visualization, Usage, error) {
	reqBody := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropicTextBlock{{
			Type:         "text",
			Text:         system,
			CacheControl: &anthropicCacheControl{Type: "ephemeral"},
		}},
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicTextBlock{{Type: "text", Text: user}},
		}},
		Tools: []anthropicTool{{
			Name:        visualizationTool,
			Description: "Return the generated Manim scene and its description",
			InputSchema: visualizationSchema(),
		}},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: visualizationTool},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, Usage{}, fmt.Errorf("anthropic API error (status %d, %s): %s",
				resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, Usage{}, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, Usage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	usage := Usage{
		InputTokens:         parsed.Usage.InputTokens,
		OutputTokens:        parsed.Usage.OutputTokens,
		CacheCreationTokens: parsed.Usage.CacheCreationInputTokens,
		CacheReadTokens:     parsed.Usage.CacheReadInputTokens,
	}

	for _, block := range parsed.Content {
		if block.Type == "tool_use" && block.Name == visualizationTool {
			var v Visualization
			if err := json.Unmarshal(block.Input, &v); err != nil {
				return nil, usage, fmt.Errorf("failed to decode tool input: %w", err)
			}
			return &v, usage, nil
		}
	}

	if parsed.StopReason == "max_tokens" {
		return nil, usage, fmt.Errorf("%w: response hit max_tokens", ErrTruncated)
	}
	return nil, usage, ErrEmptyResponse
}

type anthropicModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

// ListModels returns the model ids visible to the API key
func (a *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	afterID := ""
	for {
		url := a.baseURL + "/v1/models?limit=100"
		if afterID != "" {
			url += "&after_id=" + afterID
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("anthropic request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
		}

		var page anthropicModelList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode model list: %w", err)
		}
		for _, m := range page.Data {
			ids = append(ids, m.ID)
		}
		if !page.HasMore || page.LastID == "" {
			return ids, nil
		}
		afterID = page.LastID
	}
}
