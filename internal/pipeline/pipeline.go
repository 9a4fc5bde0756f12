package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"codeberg.org/snonux/clarity/internal/llm"
	"codeberg.org/snonux/clarity/internal/logging"
	"codeberg.org/snonux/clarity/internal/metrics"
	"codeberg.org/snonux/clarity/internal/patch"
	"codeberg.org/snonux/clarity/internal/render"
	"codeberg.org/snonux/clarity/internal/scaffold"
	"codeberg.org/snonux/clarity/internal/speech"
)

// DefaultMaxAttempts bounds generate-and-render attempts per run
const DefaultMaxAttempts = 3

// ErrAttemptsExhausted is returned when no attempt produced a video
var ErrAttemptsExhausted = errors.New("all attempts failed")

// Generator produces scene code for a question
type Generator interface {
	Generate(ctx context.Context, query string) (*llm.Visualization, error)
	Backend() string
}

// Renderer renders a scene script and finds the video it produced
type Renderer interface {
	Render(ctx context.Context, script, outputName string) error
	Locate(script, outputName string) (string, error)
}

// Patcher rewrites generated code before it is rendered
type Patcher interface {
	Apply(code string) string
}

// RendererFactory builds the renderer for one workspace. env holds extra
// KEY=VALUE pairs the render subprocess needs.
type RendererFactory func(ws *scaffold.Workspace, env []string) Renderer

// ManimRenderer returns a factory configuring a copy of template for each workspace
func ManimRenderer(template render.Manim) RendererFactory {
	return func(ws *scaffold.Workspace, env []string) Renderer {
		m := template
		m.Dir = ws.Dir
		m.MediaDir = ws.MediaDir
		m.Env = append(append([]string(nil), template.Env...), env...)
		return &m
	}
}

// Artifact is the outcome of a successful run
type Artifact struct {
	Query       string
	VideoPath   string
	Description string
	Code        string
	ScriptPath  string
	Backend     string
	Attempts    int
	Duration    time.Duration
}

// Pipeline runs the generate-and-render loop
type Pipeline struct {
	generator   Generator
	renderers   RendererFactory
	patcher     Patcher
	speech      *speech.Service
	maxAttempts int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithPatcher replaces the default LaTeX patcher
func WithPatcher(p Patcher) Option {
	return func(pl *Pipeline) {
		pl.patcher = p
	}
}

// WithSpeech serves narration from service to the renderer during a run
func WithSpeech(service *speech.Service) Option {
	return func(pl *Pipeline) {
		pl.speech = service
	}
}

// WithMaxAttempts sets the number of attempts per run
func WithMaxAttempts(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.maxAttempts = n
		}
	}
}

// New creates a pipeline
func New(generator Generator, renderers RendererFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		generator:   generator,
		renderers:   renderers,
		patcher:     patch.New(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run generates a video for query inside dir
func (p *Pipeline) Run(ctx context.Context, query, dir string) (artifact *Artifact, err error) {
	start := time.Now()
	log.Info("Starting visualization generation", "query", query, "dir", dir)

	metrics.RunStarted()
	defer func() {
		metrics.RunFinished(err, time.Since(start))
	}()

	ws, err := scaffold.Prepare(dir)
	if err != nil {
		return nil, err
	}

	var env []string
	if p.speech != nil {
		sidecar, err := speech.StartSidecar(p.speech, ws.Dir)
		if err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sidecar.Close(shutdownCtx); err != nil {
				log.Warn("Failed to stop speech sidecar", "err", err)
			}
		}()
		env = append(env, scaffold.SpeechURLEnv+"="+sidecar.URL())
	}
	renderer := p.renderers(ws, env)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptStart := time.Now()
		log.Info("Starting attempt", "attempt", attempt, "of", p.maxAttempts)

		artifact, err := p.attempt(ctx, ws, renderer, query)
		if err == nil {
			artifact.Attempts = attempt
			artifact.Duration = time.Since(start)
			if err := writeManifest(ws.ManifestPath, artifact); err != nil {
				log.Warn("Failed to write manifest", "err", err)
			}
			log.Info("Visualization completed", "video", artifact.VideoPath, "took", logging.Seconds(artifact.Duration))
			return artifact, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		log.Error("Attempt failed", "attempt", attempt, "took", logging.Seconds(time.Since(attemptStart)), "err", err)
		if attempt < p.maxAttempts {
			log.Info("Retrying...")
		}
	}

	log.Error("Visualization failed", "took", logging.Seconds(time.Since(start)))
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.maxAttempts, lastErr)
}

// attempt runs one generate, patch, render and locate cycle
func (p *Pipeline) attempt(ctx context.Context, ws *scaffold.Workspace, renderer Renderer, query string) (*Artifact, error) {
	stepStart := time.Now()
	v, err := p.generator.Generate(ctx, query)
	metrics.ObserveStep("generate", time.Since(stepStart))
	if err != nil {
		metrics.Attempt("generate_error")
		return nil, err
	}
	log.Info("Code generation completed", "took", logging.Seconds(time.Since(stepStart)))

	code := p.patcher.Apply(v.Code)

	stepStart = time.Now()
	if err := ws.WriteScript(code); err != nil {
		return nil, err
	}
	log.Debug("Code saved", "path", ws.ScriptPath, "took", logging.Seconds(time.Since(stepStart)))

	outputName := "output_" + uuid.NewString()[:8]
	stepStart = time.Now()
	err = renderer.Render(ctx, ws.ScriptPath, outputName)
	metrics.ObserveStep("render", time.Since(stepStart))
	if err != nil {
		metrics.Attempt("render_error")
		return nil, fmt.Errorf("manim test failed: %w", err)
	}

	videoPath, err := renderer.Locate(ws.ScriptPath, outputName)
	if err != nil {
		metrics.Attempt("missing_video")
		log.Warn("No video file found in the expected directory")
		return nil, err
	}

	if err := ws.WriteDescription(v.Description); err != nil {
		return nil, err
	}
	log.Info("Description saved", "path", ws.DescriptionPath)

	metrics.Attempt("success")
	return &Artifact{
		Query:       query,
		VideoPath:   videoPath,
		Description: v.Description,
		Code:        code,
		ScriptPath:  ws.ScriptPath,
		Backend:     p.generator.Backend(),
	}, nil
}
