package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/clarity/internal"
	"codeberg.org/snonux/clarity/internal/batch"
	"codeberg.org/snonux/clarity/internal/cli"
	"codeberg.org/snonux/clarity/internal/history"
	"codeberg.org/snonux/clarity/internal/logging"
	"codeberg.org/snonux/clarity/internal/pipeline"
	"codeberg.org/snonux/clarity/internal/scaffold"
)

// Runner renders one question into a work directory
type Runner interface {
	Run(ctx context.Context, query, dir string) (*pipeline.Artifact, error)
}

// Processor handles single questions and batch files
type Processor struct {
	runner      Runner
	history     *history.Store
	outputDir   string
	concurrency int
	out         io.Writer
	closer      func() error
}

// Option configures a Processor
type Option func(*Processor)

// WithHistory records every run in store
func WithHistory(store *history.Store) Option {
	return func(p *Processor) {
		p.history = store
	}
}

// WithConcurrency bounds the number of parallel runs in batch mode
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithOutput sets where progress and summaries are printed
func WithOutput(w io.Writer) Option {
	return func(p *Processor) {
		p.out = w
	}
}

// New creates a processor around runner writing runs below outputDir
func New(runner Runner, outputDir string, opts ...Option) *Processor {
	p := &Processor{
		runner:      runner,
		outputDir:   outputDir,
		concurrency: 1,
		out:         os.Stdout,
		closer:      func() error { return nil },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProcessor builds all components from flags
func NewProcessor(ctx context.Context, flags *cli.Flags, creds cli.Credentials) (*Processor, error) {
	c, err := Build(ctx, flags, creds)
	if err != nil {
		return nil, err
	}

	p := New(c.Pipeline, flags.OutputDir,
		WithHistory(c.History),
		WithConcurrency(flags.Concurrency),
	)
	p.closer = c.Close
	return p, nil
}

// Close releases the processor's components
func (p *Processor) Close() error {
	return p.closer()
}

// ProcessSingle renders one question into a fresh run directory
func (p *Processor) ProcessSingle(ctx context.Context, query string) (*pipeline.Artifact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	// Create output directory (including parent directories)
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runDir := filepath.Join(p.outputDir, internal.GenerateRunID(query))
	return p.run(ctx, query, runDir)
}

// run executes the pipeline and records the run in the history store
func (p *Processor) run(ctx context.Context, query, runDir string) (*pipeline.Artifact, error) {
	var record *history.Run
	if p.history != nil {
		var err error
		if record, err = p.history.Start(ctx, query); err != nil {
			log.Warn("Failed to record run", "err", err)
		}
	}

	artifact, err := p.runner.Run(ctx, query, runDir)

	if record != nil {
		attempts, videoPath := 0, ""
		if artifact != nil {
			attempts, videoPath = artifact.Attempts, artifact.VideoPath
		}
		if ferr := p.history.Finish(context.WithoutCancel(ctx), record.ID, attempts, videoPath, err); ferr != nil {
			log.Warn("Failed to finish run record", "id", record.ID, "err", ferr)
		}
	}

	return artifact, err
}

// Summary counts the outcome of a batch
type Summary struct {
	Total     int
	Processed  int
	Skipped    int // already rendered by an earlier run
	Duplicates int // repeated within the batch file
	Failed     int
	Duration   time.Duration
}

// ProcessBatch renders every question of a batch file. Questions that
// already have a rendered video in the output directory are skipped.
func (p *Processor) ProcessBatch(ctx context.Context, filename string) (*Summary, error) {
	prompts, err := batch.ReadPromptFile(filename)
	if err != nil {
		return nil, err
	}

	// Create output directory (including parent directories)
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	start := time.Now()
	summary := &Summary{Total: len(prompts)}
	done := p.renderedQueries()
	seen := make(map[string]bool)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, prompt := range prompts {
		if dir, ok := done[prompt.Text]; ok {
			fmt.Fprintf(p.out, "  ✓ Skipping '%s' - already rendered in %s\n", internal.Truncate(prompt.Text, 60), filepath.Base(dir))
			summary.Skipped++
			continue
		}
		if seen[prompt.Text] {
			fmt.Fprintf(p.out, "  ✓ Skipping '%s' - duplicate of an earlier line\n", internal.Truncate(prompt.Text, 60))
			summary.Duplicates++
			continue
		}
		seen[prompt.Text] = true

		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			mu.Lock()
			fmt.Fprintf(p.out, "\nProcessing %d/%d (line %d): %s\n", i+1, len(prompts), prompt.Line, internal.Truncate(prompt.Text, 60))
			mu.Unlock()

			runDir := filepath.Join(p.outputDir, internal.GenerateRunID(prompt.Text))
			artifact, err := p.run(gctx, prompt.Text, runDir)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				fmt.Fprintf(os.Stderr, "Error processing line %d: %v\n", prompt.Line, err)
				summary.Failed++
				return nil
			}
			fmt.Fprintf(p.out, "  Video: %s\n", artifact.VideoPath)
			summary.Processed++
			return nil
		})
	}

	err = g.Wait()
	summary.Duration = time.Since(start)
	p.printSummary(summary)

	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

func (p *Processor) printSummary(s *Summary) {
	fmt.Fprintf(p.out, "\n=== Batch Processing Summary ===\n")
	fmt.Fprintf(p.out, "Total questions: %d\n", s.Total)
	fmt.Fprintf(p.out, "Processed: %d\n", s.Processed)
	fmt.Fprintf(p.out, "Skipped (already rendered): %d\n", s.Skipped)
	if s.Duplicates > 0 {
		fmt.Fprintf(p.out, "Duplicates: %d\n", s.Duplicates)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", s.Failed)
	}
	fmt.Fprintf(p.out, "Took: %s\n", logging.Seconds(s.Duration))
	fmt.Fprintf(p.out, "================================\n")
}

// renderedQueries maps questions with a finished video to their run directory
func (p *Processor) renderedQueries() map[string]string {
	done := make(map[string]string)

	entries, err := os.ReadDir(p.outputDir)
	if err != nil {
		return done
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dirPath := filepath.Join(p.outputDir, entry.Name())
		m, err := pipeline.ReadManifest(filepath.Join(dirPath, scaffold.ManifestName))
		if err != nil {
			continue
		}
		if _, err := os.Stat(m.Video); err != nil {
			log.Debug("Manifest without video", "dir", dirPath)
			continue
		}
		done[m.Query] = dirPath
	}

	return done
}
