package speech

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Provider defines the interface for text-to-speech providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Synthesize generates audio from text and saves it to outputFile
	Synthesize(ctx context.Context, text string, outputFile string) error

	// IsAvailable checks if the provider is properly configured and available
	IsAvailable() error
}

// Fingerprinter is implemented by providers whose output depends on
// settings beyond the text. The returned map becomes part of the cache key.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (map[string]any, error)
}

// producer is implemented by providers that may hand synthesis to another
// provider. It reports the name of the provider that wrote outputFile.
type producer interface {
	synthesize(ctx context.Context, text string, outputFile string) (string, error)
}

// Config holds configuration for all providers
type Config struct {
	Provider string // "elevenlabs", "openai" or "espeak"
	Fallback string // optional provider used when the primary fails

	// ElevenLabs settings
	ElevenLabsKey     string
	ElevenLabsURL     string
	VoiceName         string
	VoiceID           string
	Model             string
	OutputFormat      string
	Settings          *VoiceSettings
	RequestsPerMinute int

	// OpenAI settings
	OpenAIKey   string
	OpenAIModel string
	OpenAIVoice string
	OpenAISpeed float64

	// espeak-ng settings
	ESpeakVoice string
	ESpeakSpeed int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:          "elevenlabs",
		Model:             DefaultElevenLabsModel,
		OutputFormat:      DefaultOutputFormat,
		RequestsPerMinute: 60,
		OpenAIModel:       "tts-1",
		OpenAISpeed:       1.0,
		ESpeakVoice:       "en-us",
		ESpeakSpeed:       160,
	}
}

// NewProvider creates the configured provider, wrapped with the fallback
// provider when one is set
func NewProvider(config *Config) (Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	primary, err := newProvider(config.Provider, config)
	if err != nil {
		return nil, err
	}
	if config.Fallback == "" || config.Fallback == config.Provider {
		return primary, nil
	}

	fallback, err := newProvider(config.Fallback, config)
	if err != nil {
		log.Warn("Fallback speech provider unavailable", "provider", config.Fallback, "err", err)
		return primary, nil
	}
	return WithFallback(primary, fallback), nil
}

func newProvider(name string, config *Config) (Provider, error) {
	switch name {
	case "elevenlabs":
		if config.ElevenLabsKey == "" {
			return nil, fmt.Errorf("ELEVEN_API_KEY environment variable not set")
		}
		if config.Settings != nil {
			if err := config.Settings.Validate(); err != nil {
				return nil, err
			}
		}
		opts := []ElevenLabsOption{
			WithVoiceName(config.VoiceName),
			WithVoiceID(config.VoiceID),
			WithModel(config.Model),
			WithOutputFormat(config.OutputFormat),
			WithVoiceSettings(config.Settings),
			WithRequestsPerMinute(config.RequestsPerMinute),
		}
		if config.ElevenLabsURL != "" {
			opts = append(opts, WithBaseURL(config.ElevenLabsURL))
		}
		return NewElevenLabs(config.ElevenLabsKey, opts...), nil

	case "openai":
		if config.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return NewOpenAI(&OpenAIConfig{
			APIKey: config.OpenAIKey,
			Model:  config.OpenAIModel,
			Voice:  config.OpenAIVoice,
			Speed:  config.OpenAISpeed,
		}), nil

	case "espeak":
		return NewESpeak(&ESpeakConfig{
			Voice: config.ESpeakVoice,
			Speed: config.ESpeakSpeed,
		}), nil

	default:
		return nil, fmt.Errorf("unknown speech provider: %s", name)
	}
}

// fallbackProvider wraps a primary provider with a fallback option
type fallbackProvider struct {
	primary  Provider
	fallback Provider
}

// WithFallback creates a provider that falls back to secondary if primary fails
func WithFallback(primary, fallback Provider) Provider {
	return &fallbackProvider{
		primary:  primary,
		fallback: fallback,
	}
}

// Synthesize tries the primary provider first, falls back to secondary on error
func (p *fallbackProvider) Synthesize(ctx context.Context, text string, outputFile string) error {
	_, err := p.synthesize(ctx, text, outputFile)
	return err
}

func (p *fallbackProvider) synthesize(ctx context.Context, text string, outputFile string) (string, error) {
	err := p.primary.Synthesize(ctx, text, outputFile)
	if err == nil {
		return p.primary.Name(), nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	log.Warn("Primary speech provider failed, falling back",
		"primary", p.primary.Name(), "fallback", p.fallback.Name(), "err", err)
	if err := p.fallback.Synthesize(ctx, text, outputFile); err != nil {
		return "", err
	}
	return p.fallback.Name(), nil
}

// Name returns the provider name
func (p *fallbackProvider) Name() string {
	return p.primary.Name()
}

// Fingerprint reports the primary provider's settings, or the fallback's when
// the primary cannot resolve them
func (p *fallbackProvider) Fingerprint(ctx context.Context) (map[string]any, error) {
	f, ok := p.primary.(Fingerprinter)
	if !ok {
		return nil, nil
	}
	fp, err := f.Fingerprint(ctx)
	if err == nil {
		return fp, nil
	}
	if fb, ok := p.fallback.(Fingerprinter); ok {
		log.Warn("Using fallback speech settings", "primary", p.primary.Name(), "err", err)
		return fb.Fingerprint(ctx)
	}
	return nil, err
}

// IsAvailable checks if at least one provider is available
func (p *fallbackProvider) IsAvailable() error {
	primaryErr := p.primary.IsAvailable()
	if primaryErr == nil {
		return nil
	}

	fallbackErr := p.fallback.IsAvailable()
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("both providers unavailable: primary=%v, fallback=%v",
		primaryErr, fallbackErr)
}
