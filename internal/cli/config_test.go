package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestInitConfig(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
	}{
		{
			name: "with config file",
			setupFunc: func(t *testing.T) string {
				cfgPath := filepath.Join(t.TempDir(), "test-config.yaml")
				content := `llm:
  backend: gemini
output:
  directory: /test/output`
				if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
					t.Fatalf("Failed to create test config: %v", err)
				}
				return cfgPath
			},
		},
		{
			name: "without config file",
			setupFunc: func(t *testing.T) string {
				return ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			t.Setenv("CLARITY_CONFIG_HOME", t.TempDir())

			cfgPath := tt.setupFunc(t)
			InitConfig(cfgPath)

			// Test environment variable prefix
			t.Setenv("CLARITY_TEST_VAR", "test-value")
			if viper.GetString("test_var") != "test-value" {
				t.Error("Environment variable not properly loaded")
			}

			if cfgPath != "" && viper.GetString("llm.backend") != "gemini" {
				t.Errorf("llm.backend = %q, want gemini", viper.GetString("llm.backend"))
			}
		})
	}
}

func TestInitConfigEnvOverrides(t *testing.T) {
	resetViper(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm:\n  backend: gemini\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLARITY_LLM_BACKEND", "openai")
	t.Setenv("CLARITY_RENDER_QUALITY", "high")
	t.Setenv("CLARITY_PIPELINE_ATTEMPTS", "5")

	flags := NewFlags()
	CreateRootCommand(flags)
	InitConfig(cfgPath)
	ApplyConfig(flags)

	if flags.Backend != "openai" {
		t.Errorf("Backend = %q, want openai from the environment", flags.Backend)
	}
	if flags.Quality != "high" {
		t.Errorf("Quality = %q, want high", flags.Quality)
	}
	if flags.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", flags.Attempts)
	}
	if flags.OutputDir != "./output_videos" {
		t.Errorf("OutputDir = %q, want the default", flags.OutputDir)
	}
}

func TestInitConfigSearchesConfigHome(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	t.Setenv("CLARITY_CONFIG_HOME", dir)
	content := "render:\n  quality: high\n"
	if err := os.WriteFile(filepath.Join(dir, ".clarity.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	InitConfig("")
	if got := viper.GetString("render.quality"); got != "high" {
		t.Errorf("render.quality = %q, want high", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "CLARITY_DOTENV_TEST=from-file\nCLARITY_DOTENV_KEEP=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CLARITY_DOTENV_KEEP", "from-env")
	t.Setenv("CLARITY_DOTENV_TEST", "")
	os.Unsetenv("CLARITY_DOTENV_TEST")

	loadDotEnv(path)

	if got := os.Getenv("CLARITY_DOTENV_TEST"); got != "from-file" {
		t.Errorf("CLARITY_DOTENV_TEST = %q, want from-file", got)
	}
	if got := os.Getenv("CLARITY_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("CLARITY_DOTENV_KEEP = %q, want from-env", got)
	}

	// Missing files are ignored
	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name      string
		envKey    string
		configKey string
		expected  string
	}{
		{
			name:      "from environment",
			envKey:    "env-test-key",
			configKey: "config-test-key",
			expected:  "env-test-key",
		},
		{
			name:      "from config when no env",
			envKey:    "",
			configKey: "config-test-key",
			expected:  "config-test-key",
		},
		{
			name:     "empty when neither set",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)

			t.Setenv("ANTHROPIC_API_KEY", tt.envKey)
			if tt.envKey == "" {
				os.Unsetenv("ANTHROPIC_API_KEY")
			}
			if tt.configKey != "" {
				viper.Set("keys.anthropic", tt.configKey)
			}

			creds, err := LoadCredentials()
			if err != nil {
				t.Fatalf("LoadCredentials() error = %v", err)
			}
			if got := creds.ForBackend("anthropic"); got != tt.expected {
				t.Errorf("ForBackend(anthropic) = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCredentialsForBackend(t *testing.T) {
	creds := Credentials{AnthropicKey: "a", OpenAIKey: "o", GeminiKey: "g", ElevenLabsKey: "e"}
	for backend, want := range map[string]string{"anthropic": "a", "openai": "o", "gemini": "g", "other": ""} {
		if got := creds.ForBackend(backend); got != want {
			t.Errorf("ForBackend(%q) = %q, want %q", backend, got, want)
		}
	}
}

func TestDefaultPaths(t *testing.T) {
	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	for name, path := range map[string]string{"cache": paths.CacheDir, "history": paths.HistoryDB, "log": paths.LogFile} {
		if !strings.Contains(path, AppName) {
			t.Errorf("%s path %q does not contain %q", name, path, AppName)
		}
	}
}
