// Package prompt holds the instruction text sent to the language model when
// generating a scene.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed system_prompt.txt
var systemPrompt string

// SystemPrompt returns the fixed scene-generation instructions
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt wraps a user query into the per-request instruction
func UserPrompt(query string) string {
	return fmt.Sprintf("Generate a concise but complete Manim visualization for: %s. "+
		"Keep the explanation focused and the code efficient to stay within token limits (4000 tokens).",
		strings.TrimSpace(query))
}
