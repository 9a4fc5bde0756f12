package speech

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"codeberg.org/snonux/clarity/internal/metrics"
)

// Request asks for narration of Text. The audio is written to CacheDir,
// named Path when set or after the request fingerprint otherwise.
type Request struct {
	Text     string `json:"text"`
	CacheDir string `json:"cache_dir"`
	Path     string `json:"path,omitempty"`
}

// Result describes synthesized narration in the shape the scene renderer's
// voiceover plugin expects. Audio paths are relative to the cache dir.
type Result struct {
	InputText      string         `json:"input_text"`
	InputData      map[string]any `json:"input_data"`
	OriginalAudio  string         `json:"original_audio"`
	WordBoundaries []WordBoundary `json:"word_boundaries"`
	FinalAudio     string         `json:"final_audio"`
	Duration       float64        `json:"duration"`
}

// Service synthesizes narration through a provider and caches the results
type Service struct {
	provider Provider
	cache    *Cache
}

// NewService creates a service. cache may be nil to disable caching.
func NewService(provider Provider, cache *Cache) *Service {
	return &Service{provider: provider, cache: cache}
}

// Provider returns the underlying provider
func (s *Service) Provider() Provider {
	return s.provider
}

// inputData builds the fingerprinted description of a request
func (s *Service) inputData(ctx context.Context, inputText string) (map[string]any, error) {
	var config map[string]any
	if f, ok := s.provider.(Fingerprinter); ok {
		var err error
		if config, err = f.Fingerprint(ctx); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"input_text": inputText,
		"service":    s.provider.Name(),
		"config":     config,
	}, nil
}

// Generate returns narration for req, from the cache when possible
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	inputText := RemoveBookmarks(req.Text)
	if strings.TrimSpace(inputText) == "" {
		return nil, ErrEmptyText
	}
	if req.CacheDir == "" {
		return nil, fmt.Errorf("cache_dir is required")
	}
	if req.Path != "" && !filepath.IsLocal(req.Path) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, req.Path)
	}

	inputData, err := s.inputData(ctx, inputText)
	if err != nil {
		metrics.Speech(s.provider.Name(), "error")
		return nil, fmt.Errorf("failed to resolve voice: %w", err)
	}
	key := Fingerprint(inputData)

	audioName := req.Path
	if audioName == "" {
		audioName = AudioBasename(inputData) + ".mp3"
	}
	audioPath := filepath.Join(req.CacheDir, audioName)

	if s.cache != nil {
		if audio, cached, ok := s.cache.Get(key); ok {
			if err := os.MkdirAll(filepath.Dir(audioPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
			if err := os.WriteFile(audioPath, audio, 0644); err != nil {
				return nil, fmt.Errorf("failed to restore cached audio: %w", err)
			}
			log.Debug("Narration cache hit", "key", key[:12], "audio", audioName)
			metrics.Speech(s.provider.Name(), "hit")

			result := *cached
			result.InputText = req.Text
			result.OriginalAudio = audioName
			result.FinalAudio = audioName
			return &result, nil
		}
	}

	start := time.Now()
	producedBy, err := s.synthesize(ctx, inputText, audioPath)
	if err != nil {
		metrics.Speech(s.provider.Name(), "error")
		log.Error("Speech synthesis failed", "provider", s.provider.Name(), "err", err)
		return nil, fmt.Errorf("failed to generate audio with %s: %w", s.provider.Name(), err)
	}
	metrics.Speech(producedBy, "miss")

	// audio from a fallback provider must not be served for the primary's key
	cacheable := producedBy == s.provider.Name()
	if !cacheable {
		inputData = maps.Clone(inputData)
		inputData["service"] = producedBy
	}

	boundaries, duration := WordBoundaries(inputText)
	result := &Result{
		InputText:      req.Text,
		InputData:      inputData,
		OriginalAudio:  audioName,
		WordBoundaries: boundaries,
		FinalAudio:     audioName,
		Duration:       duration,
	}
	log.Info("Synthesized narration",
		"provider", producedBy,
		"words", len(boundaries),
		"duration", fmt.Sprintf("%.2fs", duration),
		"took", time.Since(start).Round(time.Millisecond))

	if s.cache != nil && cacheable {
		audio, err := os.ReadFile(audioPath)
		if err == nil {
			err = s.cache.Put(key, audio, result)
		}
		if err != nil {
			log.Warn("Failed to cache narration", "err", err)
		}
	}

	return result, nil
}

// synthesize writes audioPath and returns the name of the provider that did
func (s *Service) synthesize(ctx context.Context, text, audioPath string) (string, error) {
	if p, ok := s.provider.(producer); ok {
		return p.synthesize(ctx, text, audioPath)
	}
	if err := s.provider.Synthesize(ctx, text, audioPath); err != nil {
		return "", err
	}
	return s.provider.Name(), nil
}
