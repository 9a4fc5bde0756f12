package llm

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker placed in front of a backend
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker once reached
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns conservative breaker defaults
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// breakerBackend fails fast while the wrapped backend keeps erroring
type breakerBackend struct {
	backend Backend
	cb      *gobreaker.CircuitBreaker
}

type generation struct {
	visualization *Visualization
	usage         Usage
}

// WithBreaker wraps a backend in a circuit breaker. Only transport and API
// errors count as failures; rejected code does not.
func WithBreaker(backend Backend, settings BreakerSettings) Backend {
	if settings.ConsecutiveFailures == 0 {
		settings = DefaultBreakerSettings()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + backend.Name(),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &breakerBackend{backend: backend, cb: cb}
}

func (b *breakerBackend) Name() string {
	return b.backend.Name()
}

func (b *breakerBackend) Generate(ctx context.Context, system, user string) (*Visualization, Usage, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		v, usage, err := b.backend.Generate(ctx, system, user)
		if err != nil {
			return generation{usage: usage}, err
		}
		return generation{visualization: v, usage: usage}, nil
	})
	if err != nil {
		if g, ok := result.(generation); ok {
			return nil, g.usage, err
		}
		return nil, Usage{}, err
	}

	g := result.(generation)
	return g.visualization, g.usage, nil
}
