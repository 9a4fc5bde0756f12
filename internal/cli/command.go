package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/clarity/internal"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clarity [question]",
		Short: "Educational video generator",
		Long: `clarity turns a question into a narrated, animated explainer video.

A language model writes a Manim scene for the question, the scene is
rendered with Manim and narrated through a text-to-speech provider.

Examples:
  clarity "How does binary search work?"   # Render one video
  clarity --batch questions.txt            # Render one video per line
  clarity serve                            # Serve the HTTP API`,
		Args:    cobra.MaximumNArgs(1),
		Version: internal.Version,
	}

	// Set up flags
	setupFlags(rootCmd, flags)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.clarity.yaml)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "Also append logs to this file")
	cmd.PersistentFlags().StringVar(&flags.HistoryDB, "history-db", "", "Run history database (default in the user data directory)")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Narration cache directory (default in the user cache directory)")

	// Language model flags
	cmd.PersistentFlags().StringVar(&flags.Backend, "backend", flags.Backend, "Language model backend: anthropic, openai, gemini")
	cmd.PersistentFlags().StringVar(&flags.Model, "model", "", "Model name (default depends on the backend)")
	cmd.PersistentFlags().IntVar(&flags.MaxTokens, "max-tokens", flags.MaxTokens, "Completion token budget per scene")
	cmd.PersistentFlags().IntVar(&flags.Retries, "retries", flags.Retries, "Code generation attempts per render attempt")
	cmd.PersistentFlags().IntVar(&flags.Attempts, "attempts", flags.Attempts, "Generate-and-render attempts per video")

	// Render flags
	cmd.PersistentFlags().StringVarP(&flags.Quality, "quality", "q", flags.Quality, "Render quality: low, medium, high, fourk")
	cmd.PersistentFlags().StringVar(&flags.ManimBinary, "manim", flags.ManimBinary, "Manim executable")
	cmd.PersistentFlags().DurationVar(&flags.RenderTimeout, "render-timeout", flags.RenderTimeout, "Maximum time for one render")

	// Narration flags
	cmd.PersistentFlags().StringVar(&flags.SpeechProvider, "speech-provider", flags.SpeechProvider, "Speech provider: elevenlabs, openai, espeak")
	cmd.PersistentFlags().StringVar(&flags.SpeechFallback, "speech-fallback", "", "Speech provider used when the primary fails")
	cmd.PersistentFlags().StringVar(&flags.Voice, "voice", "", "Voice name (default: random preset voice)")
	cmd.PersistentFlags().StringVar(&flags.VoiceID, "voice-id", "", "ElevenLabs voice id, overrides --voice")

	// Local flags
	cmd.Flags().StringVarP(&flags.OutputDir, "output", "o", flags.OutputDir, "Output directory")
	cmd.Flags().StringVar(&flags.BatchFile, "batch", "", "Process questions from file (one per line)")
	cmd.Flags().IntVarP(&flags.Concurrency, "concurrency", "j", flags.Concurrency, "Videos rendered in parallel in batch mode")
	cmd.Flags().BoolVar(&flags.Archive, "archive", false, "Move the output directory into the archive and exit")
	cmd.Flags().BoolVar(&flags.ListModels, "list-models", false, "List available models for the selected backend")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

// viperKeys maps flag names to configuration keys
var viperKeys = map[string]string{
	"log-level":       "log.level",
	"log-file":        "log.file",
	"history-db":      "history.path",
	"cache-dir":       "speech.cache_dir",
	"backend":         "llm.backend",
	"model":           "llm.model",
	"max-tokens":      "llm.max_tokens",
	"retries":         "llm.retries",
	"attempts":        "pipeline.attempts",
	"quality":         "render.quality",
	"manim":           "render.binary",
	"render-timeout":  "render.timeout",
	"speech-provider": "speech.provider",
	"speech-fallback": "speech.fallback",
	"voice":           "speech.voice",
	"voice-id":        "speech.voice_id",
	"output":          "output.directory",
	"concurrency":     "batch.concurrency",
}

func bindFlagsToViper(cmd *cobra.Command) {
	for name, key := range viperKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag != nil {
			viper.BindPFlag(key, flag)
		}
	}
}

// ApplyConfig copies configured values into flags. Explicitly set flags
// take precedence over the config file and environment.
func ApplyConfig(flags *Flags) {
	flags.LogLevel = viper.GetString("log.level")
	flags.LogFile = viper.GetString("log.file")
	flags.HistoryDB = viper.GetString("history.path")
	flags.CacheDir = viper.GetString("speech.cache_dir")

	flags.Backend = viper.GetString("llm.backend")
	flags.Model = viper.GetString("llm.model")
	flags.MaxTokens = viper.GetInt("llm.max_tokens")
	flags.Retries = viper.GetInt("llm.retries")
	flags.Attempts = viper.GetInt("pipeline.attempts")

	flags.Quality = viper.GetString("render.quality")
	flags.ManimBinary = viper.GetString("render.binary")
	flags.RenderTimeout = viper.GetDuration("render.timeout")

	flags.SpeechProvider = viper.GetString("speech.provider")
	flags.SpeechFallback = viper.GetString("speech.fallback")
	flags.Voice = viper.GetString("speech.voice")
	flags.VoiceID = viper.GetString("speech.voice_id")

	flags.OutputDir = viper.GetString("output.directory")
	flags.Concurrency = viper.GetInt("batch.concurrency")
}

// CreateServeCommand creates the serve subcommand
func CreateServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the video API over HTTP",
		Args:  cobra.NoArgs,
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", flags.Addr, "Listen address")
	cmd.Flags().StringVar(&flags.AllowedOrigin, "allowed-origin", flags.AllowedOrigin, "CORS origin allowed to call the API")
	cmd.Flags().IntVar(&flags.MaxRenders, "max-renders", flags.MaxRenders, "Videos rendered concurrently")

	viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.allowed_origin", cmd.Flags().Lookup("allowed-origin"))
	viper.BindPFlag("server.max_renders", cmd.Flags().Lookup("max-renders"))

	return cmd
}

// ApplyServeConfig copies configured server values into flags
func ApplyServeConfig(flags *ServeFlags) {
	flags.Addr = viper.GetString("server.addr")
	flags.AllowedOrigin = viper.GetString("server.allowed_origin")
	flags.MaxRenders = viper.GetInt("server.max_renders")
}

// CreateVoicesCommand creates the voices subcommand
func CreateVoicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the configured speech provider",
		Args:  cobra.NoArgs,
	}
}

// CreateHistoryCommand creates the history subcommand
func CreateHistoryCommand(flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs or the details of one run",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().IntVarP(&flags.Limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

// CreateCacheCommand creates the cache subcommand with its stats and clear children
func CreateCacheCommand() (cache, stats, clearCmd *cobra.Command) {
	cache = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the narration cache",
	}
	stats = &cobra.Command{
		Use:   "stats",
		Short: "Show narration cache size",
		Args:  cobra.NoArgs,
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached narration",
		Args:  cobra.NoArgs,
	}
	cache.AddCommand(stats, clearCmd)
	return cache, stats, clearCmd
}
