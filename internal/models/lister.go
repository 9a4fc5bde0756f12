package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"codeberg.org/snonux/clarity/internal/llm"
)

// Source returns the model ids of one backend
type Source interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Lister prints the models available to a backend
type Lister struct {
	backend string
	source  Source
	out     io.Writer
}

// NewLister creates a lister for the backend described by config
func NewLister(ctx context.Context, config *llm.Config) (*Lister, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key not found. Set it in the environment or the keys section of .clarity.yaml", config.Backend)
	}

	backend, err := llm.NewBackend(ctx, config)
	if err != nil {
		return nil, err
	}
	source, ok := backend.(Source)
	if !ok {
		return nil, fmt.Errorf("backend %s cannot list models", config.Backend)
	}
	return &Lister{backend: config.Backend, source: source, out: os.Stdout}, nil
}

// Groups splits model ids into scene generation candidates, speech models
// and everything else, each sorted
func Groups(backend string, ids []string) (generation, speech, other []string) {
	for _, id := range ids {
		name := strings.TrimPrefix(id, "models/")
		switch {
		case strings.Contains(name, "tts") || strings.Contains(name, "audio") || strings.Contains(name, "whisper"):
			speech = append(speech, id)
		case isGenerationModel(backend, name):
			generation = append(generation, id)
		default:
			other = append(other, id)
		}
	}

	sort.Strings(generation)
	sort.Strings(speech)
	sort.Strings(other)
	return generation, speech, other
}

func isGenerationModel(backend, name string) bool {
	switch backend {
	case "anthropic":
		return strings.HasPrefix(name, "claude")
	case "gemini":
		return strings.HasPrefix(name, "gemini") && !strings.Contains(name, "embedding")
	default:
		return strings.HasPrefix(name, "gpt") || strings.HasPrefix(name, "o1") ||
			strings.HasPrefix(name, "o3") || strings.HasPrefix(name, "o4") ||
			strings.Contains(name, "chat")
	}
}

// ListAvailableModels prints the backend's models grouped by use
func (l *Lister) ListAvailableModels(ctx context.Context) error {
	ids, err := l.source.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	generation, speech, other := Groups(l.backend, ids)

	fmt.Fprintf(l.out, "Available %s models:\n", l.backend)
	printGroup(l.out, "Scene generation models", generation)
	if len(speech) > 0 {
		printGroup(l.out, "Speech models", speech)
	}
	if len(other) > 0 {
		fmt.Fprintf(l.out, "\n  ... and %d other models\n", len(other))
	}
	fmt.Fprintf(l.out, "\nDefault: %s\n", llm.DefaultModel(l.backend))

	return nil
}

func printGroup(w io.Writer, title string, ids []string) {
	fmt.Fprintf(w, "\n%s:\n", title)
	if len(ids) == 0 {
		fmt.Fprintln(w, "  No models found")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
