package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/snonux/clarity/internal/testutil"
)

func TestServiceGenerate(t *testing.T) {
	provider := &testutil.MockSpeechProvider{ProviderName: "elevenlabs"}
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	defer cache.Close()

	service := NewService(provider, cache)
	media := t.TempDir()
	text := `Let's look at <bookmark mark="A"/>slopes`

	first, err := service.Generate(context.Background(), Request{Text: text, CacheDir: media})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if first.InputText != text {
		t.Errorf("InputText = %q, want the original text", first.InputText)
	}
	if first.InputData["input_text"] != "Let's look at slopes" {
		t.Errorf("input_text = %v, want bookmarks removed", first.InputData["input_text"])
	}
	if first.OriginalAudio != first.FinalAudio || filepath.Ext(first.OriginalAudio) != ".mp3" {
		t.Errorf("audio names = %q / %q", first.OriginalAudio, first.FinalAudio)
	}
	if len(first.WordBoundaries) != 4 {
		t.Errorf("got %d word boundaries, want 4", len(first.WordBoundaries))
	}
	testutil.AssertFileExists(t, filepath.Join(media, first.OriginalAudio))

	// A second render directory gets the audio from the cache
	other := t.TempDir()
	second, err := service.Generate(context.Background(), Request{Text: text, CacheDir: other})
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if provider.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.CallCount())
	}
	if second.Duration != first.Duration || second.OriginalAudio != first.OriginalAudio {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	testutil.AssertFileContent(t, filepath.Join(other, second.OriginalAudio), testutil.GenerateAudioData())
}

func TestServiceGenerateExplicitPath(t *testing.T) {
	service := NewService(&testutil.MockSpeechProvider{}, nil)
	media := t.TempDir()

	result, err := service.Generate(context.Background(), Request{Text: "one two", CacheDir: media, Path: "intro.mp3"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.OriginalAudio != "intro.mp3" {
		t.Errorf("OriginalAudio = %q, want intro.mp3", result.OriginalAudio)
	}
	testutil.AssertFileExists(t, filepath.Join(media, "intro.mp3"))
}

func TestServiceGenerateErrors(t *testing.T) {
	media := t.TempDir()

	service := NewService(&testutil.MockSpeechProvider{}, nil)
	if _, err := service.Generate(context.Background(), Request{Text: `<bookmark mark="A"/>`, CacheDir: media}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("bookmark-only text error = %v, want ErrEmptyText", err)
	}
	if _, err := service.Generate(context.Background(), Request{Text: "hi"}); err == nil {
		t.Error("missing cache dir should fail")
	}
	for _, path := range []string{"../intro.mp3", "/tmp/intro.mp3", "a/../../intro.mp3"} {
		if _, err := service.Generate(context.Background(), Request{Text: "hi", CacheDir: media, Path: path}); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("path %q error = %v, want ErrInvalidPath", path, err)
		}
	}

	failing := &testutil.MockSpeechProvider{Err: &SynthesisError{Provider: "mock", Message: "down", Retryable: true}}
	service = NewService(failing, nil)
	_, err := service.Generate(context.Background(), Request{Text: "hi", CacheDir: media})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Errorf("error = %v, want *SynthesisError", err)
	}

	entries, _ := os.ReadDir(media)
	if len(entries) != 0 {
		t.Errorf("failed synthesis left %d files behind", len(entries))
	}
}

func TestServiceGenerateFallbackIsNotCached(t *testing.T) {
	primary := &testutil.MockSpeechProvider{ProviderName: "elevenlabs", Err: errors.New("quota exceeded"), Audio: []byte("VOICE")}
	fallback := &testutil.MockSpeechProvider{ProviderName: "espeak-ng", Audio: []byte("ROBOT")}
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	defer cache.Close()

	service := NewService(WithFallback(primary, fallback), cache)

	media := t.TempDir()
	first, err := service.Generate(context.Background(), Request{Text: "hello world", CacheDir: media})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	testutil.AssertFileContent(t, filepath.Join(media, first.FinalAudio), []byte("ROBOT"))
	if first.InputData["service"] != "espeak-ng" {
		t.Errorf("service = %v, want espeak-ng", first.InputData["service"])
	}

	// The primary recovers; its audio replaces the fallback narration
	primary.Err = nil
	other := t.TempDir()
	second, err := service.Generate(context.Background(), Request{Text: "hello world", CacheDir: other})
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	testutil.AssertFileContent(t, filepath.Join(other, second.FinalAudio), []byte("VOICE"))
	if primary.CallCount() != 2 || fallback.CallCount() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 2 and 1", primary.CallCount(), fallback.CallCount())
	}

	// From now on the primary's narration comes from the cache
	third := t.TempDir()
	if _, err := service.Generate(context.Background(), Request{Text: "hello world", CacheDir: third}); err != nil {
		t.Fatalf("third Generate() error = %v", err)
	}
	if primary.CallCount() != 2 {
		t.Errorf("primary called %d times, want 2", primary.CallCount())
	}
}
