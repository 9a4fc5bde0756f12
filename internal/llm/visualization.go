package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MinCodeLength is the shortest source accepted as a plausible scene
const MinCodeLength = 100

// MainGuard must appear in generated code; its absence means the model output was cut off
const MainGuard = "if __name__ == "

var (
	// ErrCodeTooShort is returned when the generated code is shorter than MinCodeLength
	ErrCodeTooShort = errors.New("generated code is too short to be valid")

	// ErrTruncated is returned when the generated code lacks the main block
	ErrTruncated = errors.New("generated code appears to be truncated (missing main block)")

	// ErrGenerationFailed is returned once every generation attempt failed
	ErrGenerationFailed = errors.New("failed to generate valid scene code after all retries")

	// ErrEmptyResponse is returned when a backend answers without content
	ErrEmptyResponse = errors.New("empty response from language model")
)

// Visualization is the generated source artifact
type Visualization struct {
	Code        string `json:"manim_code"`
	Description string `json:"description"`
}

// Usage reports token accounting for one completion
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Validate checks the length and shape of generated code
func Validate(v *Visualization) error {
	if v == nil {
		return ErrEmptyResponse
	}
	if len(v.Code) < MinCodeLength {
		return ErrCodeTooShort
	}
	if !strings.Contains(v.Code, MainGuard) {
		return ErrTruncated
	}
	return nil
}

// parseVisualization decodes the JSON object models return in structured mode.
// Models occasionally wrap the object in a markdown fence; that is stripped.
func parseVisualization(raw string) (*Visualization, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}

	var v Visualization
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode visualization: %w", err)
	}
	return &v, nil
}

// visualizationSchema is the JSON schema shared by the structured-output backends
func visualizationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"manim_code": map[string]any{
				"type":        "string",
				"description": "Complete Python source of the Manim scene",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Short plain-language summary of the video",
			},
		},
		"required": []string{"manim_code", "description"},
	}
}
