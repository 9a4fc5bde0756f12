package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"codeberg.org/snonux/clarity/internal/logging"
	"codeberg.org/snonux/clarity/internal/prompt"
)

const (
	// DefaultMaxRetries bounds generation attempts per request
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the pause between generation attempts
	DefaultRetryDelay = 2 * time.Second
)

// Generator produces validated scene code, retrying failed or invalid completions
type Generator struct {
	backend    Backend
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Generator
type Option func(*Generator)

// WithMaxRetries sets how many completions are attempted
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts
func WithRetryDelay(d time.Duration) Option {
	return func(g *Generator) {
		if d >= 0 {
			g.retryDelay = d
		}
	}
}

// NewGenerator creates a generator on top of a backend
func NewGenerator(backend Backend, opts ...Option) *Generator {
	g := &Generator{
		backend:    backend,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the underlying backend name
func (g *Generator) Backend() string {
	return g.backend.Name()
}

// Generate asks the model for a scene explaining query
func (g *Generator) Generate(ctx context.Context, query string) (*Visualization, error) {
	system := prompt.SystemPrompt()
	user := prompt.UserPrompt(query)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		log.Info("Generating scene code", "backend", g.backend.Name(), "attempt", attempt, "of", g.maxRetries)

		v, usage, err := g.backend.Generate(ctx, system, user)
		log.Info("Code generation finished", "took", logging.Seconds(time.Since(start)))
		log.Info("Token usage",
			"input", usage.InputTokens,
			"output", usage.OutputTokens,
			"cache_write", usage.CacheCreationTokens,
			"cache_read", usage.CacheReadTokens)

		if err == nil {
			err = Validate(v)
		}
		if err == nil {
			return v, nil
		}

		log.Error("Error generating code", "attempt", attempt, "err", err)
		lastErr = err

		if attempt < g.maxRetries {
			if err := sleepContext(ctx, g.retryDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
