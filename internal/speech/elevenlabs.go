package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultElevenLabsModel is the multilingual v2 model
	DefaultElevenLabsModel = "eleven_multilingual_v2"
	// DefaultOutputFormat is 44.1kHz mp3 at 128kbps
	DefaultOutputFormat = "mp3_44100_128"

	defaultElevenLabsTimeout = 120 * time.Second
)

// PresetVoiceIDs are picked from at random when no voice is configured
var PresetVoiceIDs = []string{
	"repzAAjoKlgcT2oOAIWt",
	"1BUhH8aaMvGMUdGAmWVM",
}

// Voice is an ElevenLabs voice
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// VoiceSettings tune an ElevenLabs voice. Stability and SimilarityBoost are
// required; UseSpeakerBoost defaults to true when nil.
type VoiceSettings struct {
	Stability       float64 `mapstructure:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost"`
	Style           float64 `mapstructure:"style"`
	UseSpeakerBoost *bool   `mapstructure:"use_speaker_boost"`
}

// Validate checks the required settings are present
func (s *VoiceSettings) Validate() error {
	if s.Stability == 0 || s.SimilarityBoost == 0 {
		return fmt.Errorf("%w: required for setting voice setting", ErrInvalidSettings)
	}
	return nil
}

type voiceSettingsPayload struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func (s *VoiceSettings) payload() *voiceSettingsPayload {
	if s == nil {
		return nil
	}
	boost := true
	if s.UseSpeakerBoost != nil {
		boost = *s.UseSpeakerBoost
	}
	return &voiceSettingsPayload{
		Stability:       s.Stability,
		SimilarityBoost: s.SimilarityBoost,
		Style:           s.Style,
		UseSpeakerBoost: boost,
	}
}

// ElevenLabs implements Provider with the ElevenLabs REST API
type ElevenLabs struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	limiter      *rate.Limiter
	voiceName    string
	voiceID      string
	model        string
	outputFormat string
	settings     *VoiceSettings
	pick         func(n int) int

	mu    sync.Mutex
	voice *Voice
}

// ElevenLabsOption configures the ElevenLabs provider
type ElevenLabsOption func(*ElevenLabs)

// WithBaseURL sets a custom API base URL
func WithBaseURL(url string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if client != nil {
			e.client = client
		}
	}
}

// WithVoiceName selects the voice by display name
func WithVoiceName(name string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.voiceName = name
	}
}

// WithVoiceID selects the voice by id
func WithVoiceID(id string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.voiceID = id
	}
}

// WithModel sets the synthesis model
func WithModel(model string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if model != "" {
			e.model = model
		}
	}
}

// WithOutputFormat sets the audio output format
func WithOutputFormat(format string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if format != "" {
			e.outputFormat = format
		}
	}
}

// WithVoiceSettings sets the voice settings sent with every request
func WithVoiceSettings(settings *VoiceSettings) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.settings = settings
	}
}

// WithRequestsPerMinute limits how often the API is called. Zero disables the limit.
func WithRequestsPerMinute(n int) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if n <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// NewElevenLabs creates an ElevenLabs provider
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) *ElevenLabs {
	e := &ElevenLabs{
		apiKey:       apiKey,
		baseURL:      elevenLabsBaseURL,
		client:       &http.Client{Timeout: defaultElevenLabsTimeout},
		model:        DefaultElevenLabsModel,
		outputFormat: DefaultOutputFormat,
		pick:         rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the provider name
func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// IsAvailable checks that an API key is configured
func (e *ElevenLabs) IsAvailable() error {
	if e.apiKey == "" {
		return fmt.Errorf("ELEVEN_API_KEY environment variable not set")
	}
	return nil
}

func (e *ElevenLabs) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *ElevenLabs) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	return req, nil
}

// ListVoices fetches the voices available to the API key
func (e *ElevenLabs) ListVoices(ctx context.Context) ([]Voice, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	req, err := e.newRequest(ctx, http.MethodGet, "/voices", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &SynthesisError{Provider: e.Name(), Message: "failed to fetch voices", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(resp, "failed to fetch voices")
	}

	var body struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode voices: %w", err)
	}
	return body.Voices, nil
}

// SelectVoice picks a voice by configured name, else by id, else at random
// from PresetVoiceIDs. When nothing matches the first voice is used.
func (e *ElevenLabs) SelectVoice(voices []Voice) (*Voice, error) {
	if len(voices) == 0 {
		return nil, ErrNoVoices
	}

	var match func(v Voice) bool
	switch {
	case e.voiceName != "":
		match = func(v Voice) bool { return v.Name == e.voiceName }
	case e.voiceID != "":
		match = func(v Voice) bool { return v.ID == e.voiceID }
	default:
		id := PresetVoiceIDs[e.pick(len(PresetVoiceIDs))]
		log.Info("Randomly selected voice", "voice_id", id)
		match = func(v Voice) bool { return v.ID == id }
	}

	for i := range voices {
		if match(voices[i]) {
			log.Info("Using voice", "name", voices[i].Name, "voice_id", voices[i].ID)
			return &voices[i], nil
		}
	}

	log.Warn("Given voice_name/voice_id not found or random selection failed", "default", voices[0].Name)
	return &voices[0], nil
}

// Voice returns the voice used for synthesis, resolving it on first use
func (e *ElevenLabs) Voice(ctx context.Context) (*Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.voice != nil {
		return e.voice, nil
	}

	voices, err := e.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	voice, err := e.SelectVoice(voices)
	if err != nil {
		return nil, err
	}
	e.voice = voice
	return voice, nil
}

// Fingerprint returns the model and voice settings that shape the audio
func (e *ElevenLabs) Fingerprint(ctx context.Context) (map[string]any, error) {
	voice, err := e.Voice(ctx)
	if err != nil {
		return nil, err
	}

	var settings any
	if p := e.settings.payload(); p != nil {
		settings = p
	}
	return map[string]any{
		"model": e.model,
		"voice": map[string]any{
			"voice_id": voice.ID,
			"settings": settings,
		},
	}, nil
}

type ttsRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	OutputFormat  string                `json:"output_format"`
	VoiceSettings *voiceSettingsPayload `json:"voice_settings,omitempty"`
}

// Synthesize converts text to audio and writes it to outputFile
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, outputFile string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	voice, err := e.Voice(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       e.model,
		OutputFormat:  e.outputFormat,
		VoiceSettings: e.settings.payload(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := e.wait(ctx); err != nil {
		return err
	}

	req, err := e.newRequest(ctx, http.MethodPost, "/text-to-speech/"+voice.ID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return &SynthesisError{Provider: e.Name(), Message: "request failed", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.statusError(resp, "API request failed")
	}

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

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		return &SynthesisError{Provider: e.Name(), StatusCode: resp.StatusCode, Message: "no audio data received"}
	}

	log.Debug("Synthesized narration", "voice", voice.Name, "bytes", written, "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// statusError turns a non-200 response into a SynthesisError carrying the body
func (e *ElevenLabs) statusError(resp *http.Response, message string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	}

	return &SynthesisError{
		Provider:   e.Name(),
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%s (status %d): %s", message, resp.StatusCode, strings.TrimSpace(string(body))),
		Cause:      cause,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
	}
}
