package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// AppName names the config file and the per-user directories
const AppName = "clarity"

// InitConfig loads .env, then initializes viper configuration
func InitConfig(cfgFile string) {
	loadDotEnv(".env")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		for _, dir := range configDirs() {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("." + AppName)
	}

	// Environment variables: llm.backend is read from CLARITY_LLM_BACKEND
	viper.SetEnvPrefix("CLARITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadDotEnv exports variables from path without overriding the environment
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := gotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
	}
}

// configDirs lists the directories searched for the config file
func configDirs() []string {
	var dirs []string
	if c := os.Getenv("CLARITY_CONFIG_HOME"); c != "" {
		dirs = append(dirs, c)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	scope := gap.NewScope(gap.User, AppName)
	if xdg, err := scope.ConfigDirs(); err == nil {
		dirs = append(dirs, xdg...)
	}
	return dirs
}

// Paths are the per-user locations clarity keeps state in
type Paths struct {
	CacheDir  string
	HistoryDB string
	LogFile   string
}

// DefaultPaths resolves the per-user cache and data locations
func DefaultPaths() (Paths, error) {
	scope := gap.NewScope(gap.User, AppName)

	cacheDir, err := scope.CacheDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	historyDB, err := scope.DataPath("history.db")
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	logFile, err := scope.LogPath(AppName + ".log")
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve log directory: %w", err)
	}

	return Paths{
		CacheDir:  filepath.Join(cacheDir, "speech"),
		HistoryDB: historyDB,
		LogFile:   logFile,
	}, nil
}

// Credentials are the vendor API keys read from the environment
type Credentials struct {
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	GeminiKey     string `env:"GEMINI_API_KEY"`
	ElevenLabsKey string `env:"ELEVEN_API_KEY"`
}

// LoadCredentials reads API keys from the environment, falling back to the
// keys section of the config file
func LoadCredentials() (Credentials, error) {
	creds, err := env.ParseAs[Credentials]()
	if err != nil {
		return Credentials{}, fmt.Errorf("error parsing credentials: %w", err)
	}

	fallback := func(value *string, key string) {
		if *value == "" {
			*value = viper.GetString(key)
		}
	}
	fallback(&creds.AnthropicKey, "keys.anthropic")
	fallback(&creds.OpenAIKey, "keys.openai")
	fallback(&creds.GeminiKey, "keys.gemini")
	fallback(&creds.ElevenLabsKey, "keys.elevenlabs")

	return creds, nil
}

// ForBackend returns the key of a language model backend
func (c Credentials) ForBackend(backend string) string {
	switch backend {
	case "anthropic":
		return c.AnthropicKey
	case "openai":
		return c.OpenAIKey
	case "gemini":
		return c.GeminiKey
	default:
		return ""
	}
}
