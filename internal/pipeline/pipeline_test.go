package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/snonux/clarity/internal/llm"
	"codeberg.org/snonux/clarity/internal/render"
	"codeberg.org/snonux/clarity/internal/scaffold"
	"codeberg.org/snonux/clarity/internal/speech"
	"codeberg.org/snonux/clarity/internal/testutil"
)

func newGenerator(backend llm.Backend) *llm.Generator {
	return llm.NewGenerator(backend, llm.WithRetryDelay(0), llm.WithMaxRetries(1))
}

func mockFactory(r *testutil.MockRenderer) RendererFactory {
	return func(ws *scaffold.Workspace, env []string) Renderer {
		return r
	}
}

func TestRunSuccess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	backend := &testutil.MockBackend{}
	renderer := &testutil.MockRenderer{}

	p := New(newGenerator(backend), mockFactory(renderer))
	artifact, err := p.Run(context.Background(), "What is a circle?", dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if artifact.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", artifact.Attempts)
	}
	if artifact.Backend != "mock" {
		t.Errorf("Backend = %q, want mock", artifact.Backend)
	}
	if artifact.Description != "mock description" {
		t.Errorf("Description = %q", artifact.Description)
	}
	testutil.AssertFileExists(t, artifact.VideoPath)
	testutil.AssertFileExists(t, filepath.Join(dir, scaffold.ScriptName))
	testutil.AssertFileContent(t, filepath.Join(dir, scaffold.DescriptionName), []byte("mock description"))

	if !strings.HasPrefix(renderer.Outputs[0], "output_") || len(renderer.Outputs[0]) != len("output_")+8 {
		t.Errorf("output name = %q, want output_ plus 8 chars", renderer.Outputs[0])
	}

	m, err := ReadManifest(filepath.Join(dir, scaffold.ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.Query != "What is a circle?" || m.Attempts != 1 || m.Video != artifact.VideoPath {
		t.Errorf("unexpected manifest: %+v", m)
	}
}

func TestRunPatchesCode(t *testing.T) {
	dir := t.TempDir()
	code := testutil.ValidScene + "\n# \\\\frac{1}{2}\n"
	backend := &testutil.MockBackend{Responses: []*llm.Visualization{{Code: code, Description: "d"}}}

	p := New(newGenerator(backend), mockFactory(&testutil.MockRenderer{}))
	artifact, err := p.Run(context.Background(), "q", dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if strings.Contains(artifact.Code, `\\frac`) {
		t.Errorf("code still contains double-escaped frac:\n%s", artifact.Code)
	}
	written, err := os.ReadFile(artifact.ScriptPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != artifact.Code {
		t.Error("written script differs from patched code")
	}
}

type upperPatcher struct{}

func (upperPatcher) Apply(code string) string { return code + "\n# patched\n" }

func TestRunCustomPatcher(t *testing.T) {
	p := New(newGenerator(&testutil.MockBackend{}), mockFactory(&testutil.MockRenderer{}), WithPatcher(upperPatcher{}))
	artifact, err := p.Run(context.Background(), "q", t.TempDir())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasSuffix(artifact.Code, "# patched\n") {
		t.Errorf("custom patcher not applied")
	}
}

func TestRunRetries(t *testing.T) {
	tests := []struct {
		name     string
		renderer *testutil.MockRenderer
		backend  *testutil.MockBackend
		attempts int
	}{
		{
			name:     "render failure then success",
			renderer: &testutil.MockRenderer{Fail: map[int]error{1: errors.New("exit status 1")}},
			backend:  &testutil.MockBackend{},
			attempts: 2,
		},
		{
			name:     "missing video then success",
			renderer: &testutil.MockRenderer{Missing: map[int]bool{1: true, 2: true}},
			backend:  &testutil.MockBackend{},
			attempts: 3,
		},
		{
			name:     "generation failure then success",
			renderer: &testutil.MockRenderer{},
			backend:  &testutil.MockBackend{Errors: []error{errors.New("boom"), nil}},
			attempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(newGenerator(tt.backend), mockFactory(tt.renderer))
			artifact, err := p.Run(context.Background(), "q", t.TempDir())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if artifact.Attempts != tt.attempts {
				t.Errorf("Attempts = %d, want %d", artifact.Attempts, tt.attempts)
			}
		})
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	renderErr := errors.New("exit status 1")
	renderer := &testutil.MockRenderer{Fail: map[int]error{1: renderErr, 2: renderErr}}
	backend := &testutil.MockBackend{}

	p := New(newGenerator(backend), mockFactory(renderer), WithMaxAttempts(2))
	_, err := p.Run(context.Background(), "q", t.TempDir())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Run() error = %v, want ErrAttemptsExhausted", err)
	}
	if !errors.Is(err, renderErr) {
		t.Errorf("Run() error = %v, want to wrap the last render error", err)
	}
	if got := backend.CallCount(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
	if len(renderer.Scripts) != 2 {
		t.Errorf("render calls = %d, want 2", len(renderer.Scripts))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &testutil.MockBackend{}
	p := New(newGenerator(backend), mockFactory(&testutil.MockRenderer{}))
	_, err := p.Run(ctx, "q", t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if backend.CallCount() != 0 {
		t.Errorf("backend called %d times after cancel", backend.CallCount())
	}
}

func TestWithMaxAttemptsIgnoresNonPositive(t *testing.T) {
	p := New(nil, nil, WithMaxAttempts(0))
	if p.maxAttempts != DefaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", p.maxAttempts, DefaultMaxAttempts)
	}
}

// speechRenderer calls the speech sidecar the way the scene helper does
type speechRenderer struct {
	testutil.MockRenderer
	env    []string
	result speech.Result
}

func (r *speechRenderer) Render(ctx context.Context, script, outputName string) error {
	var url string
	for _, kv := range r.env {
		if v, ok := strings.CutPrefix(kv, scaffold.SpeechURLEnv+"="); ok {
			url = v
		}
	}
	if url == "" {
		return errors.New("speech url not set")
	}

	body, _ := json.Marshal(speech.Request{Text: "Hello world", CacheDir: filepath.Join(filepath.Dir(script), "voiceovers")})
	resp, err := http.Post(url+"/speech", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&r.result); err != nil {
		return err
	}
	return r.MockRenderer.Render(ctx, script, outputName)
}

func TestRunWithSpeech(t *testing.T) {
	provider := &testutil.MockSpeechProvider{}
	service := speech.NewService(provider, nil)
	renderer := &speechRenderer{}

	factory := func(ws *scaffold.Workspace, env []string) Renderer {
		renderer.env = env
		return renderer
	}

	p := New(newGenerator(&testutil.MockBackend{}), factory, WithSpeech(service))
	if _, err := p.Run(context.Background(), "q", t.TempDir()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if provider.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.CallCount())
	}
	if renderer.result.InputText != "Hello world" {
		t.Errorf("InputText = %q", renderer.result.InputText)
	}
	if len(renderer.result.WordBoundaries) != 2 {
		t.Errorf("word boundaries = %d, want 2", len(renderer.result.WordBoundaries))
	}
}

func TestManimRendererFactory(t *testing.T) {
	ws := &scaffold.Workspace{Dir: "/tmp/run", MediaDir: "/tmp/run/media"}
	template := render.Manim{Binary: "manim", Quality: render.QualityHigh, Env: []string{"A=1"}}

	r := ManimRenderer(template)(ws, []string{"B=2"})
	m, ok := r.(*render.Manim)
	if !ok {
		t.Fatalf("renderer type = %T", r)
	}
	if m.Dir != ws.Dir || m.MediaDir != ws.MediaDir {
		t.Errorf("dirs = %q %q", m.Dir, m.MediaDir)
	}
	if len(m.Env) != 2 || m.Env[0] != "A=1" || m.Env[1] != "B=2" {
		t.Errorf("Env = %v", m.Env)
	}
	if len(template.Env) != 1 {
		t.Errorf("template env mutated: %v", template.Env)
	}
}

func TestRunWithFakeManim(t *testing.T) {
	binDir := t.TempDir()
	bin := testutil.WriteFakeRenderer(t, binDir, testutil.FakeRenderer{})

	p := New(newGenerator(&testutil.MockBackend{}), ManimRenderer(render.Manim{Binary: bin, Quality: render.QualityLow}))
	dir := filepath.Join(t.TempDir(), "run")
	artifact, err := p.Run(context.Background(), "q", dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := filepath.Join(dir, scaffold.MediaName, "videos", "generated_manim_code", "480p15")
	if filepath.Dir(artifact.VideoPath) != want {
		t.Errorf("VideoPath = %q, want in %q", artifact.VideoPath, want)
	}
	testutil.AssertFileExists(t, artifact.VideoPath)
}
