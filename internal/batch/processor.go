package batch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Prompt is one question read from a batch file
type Prompt struct {
	Line int
	Text string
}

// ReadPromptFile reads prompts from a file, one per line.
// Blank lines and lines starting with '#' are skipped. A trailing
// backslash continues the prompt on the next line.
func ReadPromptFile(filename string) ([]Prompt, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	defer f.Close()

	var (
		prompts []Prompt
		pending []string
		start   int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if len(pending) == 0 && (line == "" || strings.HasPrefix(line, "#")) {
			continue
		}
		if len(pending) == 0 {
			start = lineNo
		}

		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending = append(pending, strings.TrimSpace(cont))
			continue
		}

		pending = append(pending, line)
		if text := joinParts(pending); text != "" {
			prompts = append(prompts, Prompt{Line: start, Text: text})
		}
		pending = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	if text := joinParts(pending); text != "" {
		prompts = append(prompts, Prompt{Line: start, Text: text})
	}

	return prompts, nil
}

// joinParts joins continued lines with single spaces
func joinParts(parts []string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
