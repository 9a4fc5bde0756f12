package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"codeberg.org/snonux/clarity/internal/cli"
	"codeberg.org/snonux/clarity/internal/history"
	"codeberg.org/snonux/clarity/internal/llm"
	"codeberg.org/snonux/clarity/internal/pipeline"
	"codeberg.org/snonux/clarity/internal/render"
	"codeberg.org/snonux/clarity/internal/speech"
)

// Components are the long-lived pieces a pipeline is built from
type Components struct {
	Pipeline *pipeline.Pipeline
	Speech   *speech.Service
	Cache    *speech.Cache
	History  *history.Store
}

// Close releases the narration cache and the history database
func (c *Components) Close() error {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.History != nil {
		errs = append(errs, c.History.Close())
	}
	return errors.Join(errs...)
}

// Build creates all components from the resolved flags
func Build(ctx context.Context, flags *cli.Flags, creds cli.Credentials) (*Components, error) {
	paths, err := cli.DefaultPaths()
	if err != nil {
		return nil, err
	}

	generator, err := BuildGenerator(ctx, flags, creds)
	if err != nil {
		return nil, err
	}

	if err := render.ValidateQuality(flags.Quality); err != nil {
		return nil, err
	}
	manim := render.Manim{
		Binary:  flags.ManimBinary,
		Quality: flags.Quality,
		Timeout: flags.RenderTimeout,
	}
	if err := manim.Available(); err != nil {
		return nil, err
	}

	c := &Components{}

	cacheDir := flags.CacheDir
	if cacheDir == "" {
		cacheDir = paths.CacheDir
	}
	c.Cache, err = speech.OpenCache(cacheDir)
	if err != nil {
		return nil, err
	}

	provider, err := speech.NewProvider(SpeechConfig(flags, creds))
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := provider.IsAvailable(); err != nil {
		c.Close()
		return nil, fmt.Errorf("speech provider %s unavailable: %w", provider.Name(), err)
	}
	c.Speech = speech.NewService(provider, c.Cache)

	historyDB := flags.HistoryDB
	if historyDB == "" {
		historyDB = paths.HistoryDB
	}
	if c.History, err = history.Open(historyDB); err != nil {
		log.Warn("Run history disabled", "path", historyDB, "err", err)
		c.History = nil
	}

	c.Pipeline = pipeline.New(generator, pipeline.ManimRenderer(manim),
		pipeline.WithSpeech(c.Speech),
		pipeline.WithMaxAttempts(flags.Attempts),
	)

	return c, nil
}

// BuildGenerator creates the scene generator for the selected backend
func BuildGenerator(ctx context.Context, flags *cli.Flags, creds cli.Credentials) (*llm.Generator, error) {
	backend, err := llm.NewBackend(ctx, LLMConfig(flags, creds))
	if err != nil {
		return nil, err
	}
	backend = llm.WithBreaker(backend, llm.DefaultBreakerSettings())
	return llm.NewGenerator(backend, llm.WithMaxRetries(flags.Retries)), nil
}

// LLMConfig returns the backend configuration for flags
func LLMConfig(flags *cli.Flags, creds cli.Credentials) *llm.Config {
	return &llm.Config{
		Backend:   flags.Backend,
		Model:     flags.Model,
		APIKey:    creds.ForBackend(flags.Backend),
		BaseURL:   viper.GetString("llm.base_url"),
		MaxTokens: flags.MaxTokens,
	}
}

// SpeechConfig returns the narration configuration for flags. Settings not
// exposed as flags come from the speech section of the config file.
func SpeechConfig(flags *cli.Flags, creds cli.Credentials) *speech.Config {
	config := speech.DefaultConfig()
	config.Provider = flags.SpeechProvider
	config.Fallback = flags.SpeechFallback
	config.ElevenLabsKey = creds.ElevenLabsKey
	config.OpenAIKey = creds.OpenAIKey

	switch flags.SpeechProvider {
	case "openai":
		config.OpenAIVoice = flags.Voice
	case "espeak":
		if flags.Voice != "" {
			config.ESpeakVoice = flags.Voice
		}
	default:
		config.VoiceName = flags.Voice
		config.VoiceID = flags.VoiceID
	}

	if v := viper.GetString("speech.model"); v != "" {
		config.Model = v
	}
	if v := viper.GetString("speech.output_format"); v != "" {
		config.OutputFormat = v
	}
	if v := viper.GetString("speech.base_url"); v != "" {
		config.ElevenLabsURL = v
	}
	if v := viper.GetInt("speech.requests_per_minute"); v > 0 {
		config.RequestsPerMinute = v
	}
	if v := viper.GetString("speech.openai_model"); v != "" {
		config.OpenAIModel = v
	}
	if v := viper.GetFloat64("speech.openai_speed"); v > 0 {
		config.OpenAISpeed = v
	}
	if v := viper.GetInt("speech.espeak_speed"); v > 0 {
		config.ESpeakSpeed = v
	}
	if viper.IsSet("speech.settings") {
		var settings speech.VoiceSettings
		if err := viper.UnmarshalKey("speech.settings", &settings); err != nil {
			log.Warn("Ignoring invalid voice settings", "err", err)
		} else {
			config.Settings = &settings
		}
	}

	return config
}
