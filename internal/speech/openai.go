package speech

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

// OpenAIVoices are picked from at random when no voice is configured
var OpenAIVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// OpenAIConfig configures the OpenAI provider
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string  // "tts-1", "tts-1-hd" or "gpt-4o-mini-tts"
	Voice   string  // empty picks one of OpenAIVoices
	Speed   float64 // 0.25 to 4.0
}

// OpenAI implements Provider for OpenAI TTS
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAI creates a new OpenAI TTS provider
func NewOpenAI(config *OpenAIConfig) *OpenAI {
	c := *config
	if c.Model == "" {
		c.Model = string(openai.TTSModel1)
	}
	if c.Voice == "" {
		c.Voice = OpenAIVoices[rand.IntN(len(OpenAIVoices))]
		log.Info("Randomly selected voice", "voice", c.Voice)
	}
	if c.Speed == 0 {
		c.Speed = 1.0
	}

	clientConfig := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		clientConfig.BaseURL = c.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		config: c,
	}
}

// Name returns the provider name
func (p *OpenAI) Name() string {
	return "openai"
}

// IsAvailable checks that an API key is configured
func (p *OpenAI) IsAvailable() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}
	return nil
}

// Fingerprint returns the model, voice and speed that shape the audio
func (p *OpenAI) Fingerprint(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"model": p.config.Model,
		"voice": p.config.Voice,
		"speed": p.config.Speed,
	}, nil
}

// Synthesize generates audio using OpenAI TTS. The response format follows
// the extension of outputFile.
func (p *OpenAI) Synthesize(ctx context.Context, text string, outputFile string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	req := openai.CreateSpeechRequest{
		Model: openai.SpeechModel(p.config.Model),
		Input: text,
		Voice: openai.SpeechVoice(p.config.Voice),
		Speed: p.config.Speed,
	}

	switch strings.ToLower(filepath.Ext(outputFile)) {
	case ".wav":
		req.ResponseFormat = openai.SpeechResponseFormatWav
	case ".opus":
		req.ResponseFormat = openai.SpeechResponseFormatOpus
	case ".aac":
		req.ResponseFormat = openai.SpeechResponseFormatAac
	case ".flac":
		req.ResponseFormat = openai.SpeechResponseFormatFlac
	default:
		req.ResponseFormat = openai.SpeechResponseFormatMp3
	}

	response, err := p.client.CreateSpeech(ctx, req)
	if err != nil {
		return &SynthesisError{Provider: p.Name(), Message: "OpenAI TTS API error", Cause: err}
	}
	defer response.Close()

	if dir := filepath.Dir(outputFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, response)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("no audio data received from OpenAI")
	}

	return nil
}
