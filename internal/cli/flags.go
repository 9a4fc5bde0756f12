package cli

import "time"

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile     string
	OutputDir   string
	BatchFile   string
	Concurrency int
	Archive     bool
	ListModels  bool

	// Language model flags
	Backend   string
	Model     string
	MaxTokens int
	Retries   int
	Attempts  int

	// Render flags
	Quality       string
	ManimBinary   string
	RenderTimeout time.Duration

	// Narration flags
	SpeechProvider string
	SpeechFallback string
	Voice          string
	VoiceID        string
	CacheDir       string

	// Logging and state
	LogLevel  string
	LogFile   string
	HistoryDB string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		OutputDir:      "./output_videos",
		Concurrency:    1,
		Backend:        "anthropic",
		MaxTokens:      8000,
		Retries:        3,
		Attempts:       3,
		Quality:        "low",
		ManimBinary:    "manim",
		RenderTimeout:  10 * time.Minute,
		SpeechProvider: "elevenlabs",
		LogLevel:       "info",
	}
}

// ServeFlags holds the flags of the serve command
type ServeFlags struct {
	Addr          string
	AllowedOrigin string
	MaxRenders    int
}

// NewServeFlags creates serve flags with default values
func NewServeFlags() *ServeFlags {
	return &ServeFlags{
		Addr:          ":8000",
		AllowedOrigin: "http://localhost:3000",
		MaxRenders:    2,
	}
}

// HistoryFlags holds the flags of the history command
type HistoryFlags struct {
	Limit int
}
