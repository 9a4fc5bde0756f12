package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ESpeakConfig holds configuration for espeak-ng audio generation
type ESpeakConfig struct {
	Voice     string // Voice variant (e.g., "en-us", "en+m3")
	Speed     int    // Speech speed in words per minute (80 to 450)
	Pitch     int    // Pitch adjustment, 0 to 99
	Amplitude int    // Volume/amplitude, 0 to 200
}

// ESpeak implements Provider with the espeak-ng command line synthesizer.
// Output other than wav is converted with ffmpeg.
type ESpeak struct {
	config ESpeakConfig
}

// NewESpeak creates an espeak-ng provider
func NewESpeak(config *ESpeakConfig) *ESpeak {
	c := ESpeakConfig{Voice: "en-us", Speed: 160, Pitch: 50, Amplitude: 100}
	if config != nil {
		if config.Voice != "" {
			c.Voice = config.Voice
		}
		if config.Speed != 0 {
			c.Speed = min(max(config.Speed, 80), 450)
		}
		if config.Pitch != 0 {
			c.Pitch = min(max(config.Pitch, 0), 99)
		}
		if config.Amplitude != 0 {
			c.Amplitude = min(max(config.Amplitude, 0), 200)
		}
	}
	return &ESpeak{config: c}
}

// Name returns the provider name
func (p *ESpeak) Name() string {
	return "espeak-ng"
}

// IsAvailable checks if espeak-ng and ffmpeg are installed
func (p *ESpeak) IsAvailable() error {
	if _, err := exec.LookPath("espeak-ng"); err != nil {
		return fmt.Errorf("espeak-ng is not installed or not in PATH: %w", err)
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg is not installed or not in PATH: %w", err)
	}
	return nil
}

// Fingerprint returns the voice parameters that shape the audio
func (p *ESpeak) Fingerprint(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"voice": p.config.Voice,
		"speed": p.config.Speed,
		"pitch": p.config.Pitch,
	}, nil
}

func (p *ESpeak) args(text, wavFile string) []string {
	return []string{
		"-v", p.config.Voice,
		"-s", fmt.Sprintf("%d", p.config.Speed),
		"-p", fmt.Sprintf("%d", p.config.Pitch),
		"-a", fmt.Sprintf("%d", p.config.Amplitude),
		"-w", wavFile,
		text,
	}
}

// Synthesize generates a wav with espeak-ng and converts it when outputFile
// is not a wav
func (p *ESpeak) Synthesize(ctx context.Context, text string, outputFile string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	if dir := filepath.Dir(outputFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if strings.EqualFold(filepath.Ext(outputFile), ".wav") {
		return p.generateWAV(ctx, text, outputFile)
	}

	tempWAV := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + "_temp.wav"
	defer os.Remove(tempWAV)

	if err := p.generateWAV(ctx, text, tempWAV); err != nil {
		return err
	}
	return convertWAV(ctx, tempWAV, outputFile)
}

func (p *ESpeak) generateWAV(ctx context.Context, text, wavFile string) error {
	cmd := exec.CommandContext(ctx, "espeak-ng", p.args(text, wavFile)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("espeak-ng failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// convertWAV converts a wav file with ffmpeg, picking the codec from the
// destination extension
func convertWAV(ctx context.Context, wavFile, outFile string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-loglevel", "error", "-i", wavFile, "-y", outFile)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
