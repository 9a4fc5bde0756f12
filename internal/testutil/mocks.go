package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/snonux/clarity/internal/llm"
)

// MockBackend mocks a language model backend. Responses are returned in
// order; the last one repeats once the list is exhausted.
type MockBackend struct {
	Responses []*llm.Visualization
	Errors    []error

	mu    sync.Mutex
	Calls []string
}

// Name returns the mock backend name
func (m *MockBackend) Name() string {
	return "mock"
}

// Generate mocks a completion
func (m *MockBackend) Generate(ctx context.Context, system, user string) (*llm.Visualization, llm.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.Calls)
	m.Calls = append(m.Calls, user)

	if err := ctx.Err(); err != nil {
		return nil, llm.Usage{}, err
	}

	usage := llm.Usage{InputTokens: len(system) / 4, OutputTokens: 100}
	if len(m.Errors) > 0 {
		if err := m.Errors[min(i, len(m.Errors)-1)]; err != nil {
			return nil, usage, err
		}
	}
	if len(m.Responses) == 0 {
		return &llm.Visualization{Code: ValidScene, Description: "mock description"}, usage, nil
	}
	return m.Responses[min(i, len(m.Responses)-1)], usage, nil
}

// CallCount returns how often Generate was called
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockSpeechProvider mocks a text-to-speech provider
type MockSpeechProvider struct {
	ProviderName string
	Audio        []byte
	Err          error
	Unavailable  error

	mu    sync.Mutex
	Calls []string
}

// Name returns the provider name
func (m *MockSpeechProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Synthesize writes the configured audio bytes to outputFile
func (m *MockSpeechProvider) Synthesize(ctx context.Context, text, outputFile string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return err
	}
	audio := m.Audio
	if audio == nil {
		audio = GenerateAudioData()
	}
	return os.WriteFile(outputFile, audio, 0644)
}

// IsAvailable reports the configured availability error
func (m *MockSpeechProvider) IsAvailable() error {
	return m.Unavailable
}

// CallCount returns how often Synthesize was called
func (m *MockSpeechProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockRenderer records render calls and can fail on chosen attempts
type MockRenderer struct {
	// Fail maps a 1-based call number to the error it returns
	Fail map[int]error
	// Missing maps a 1-based call number to a locate failure
	Missing map[int]bool

	mu      sync.Mutex
	Scripts []string
	Outputs []string
}

// Render records the call and returns the configured error
func (m *MockRenderer) Render(ctx context.Context, script, outputName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Scripts = append(m.Scripts, script)
	m.Outputs = append(m.Outputs, outputName)
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Fail[len(m.Scripts)]
}

// Locate writes a fake video next to the script unless configured missing
func (m *MockRenderer) Locate(script, outputName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.Scripts)
	if m.Missing[n] {
		return "", fmt.Errorf("no video for render %d", n)
	}

	path := filepath.Join(filepath.Dir(script), outputName+".mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// GenerateAudioData generates mock audio data
func GenerateAudioData() []byte {
	// Simple mock MP3 header
	return []byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00}
}
