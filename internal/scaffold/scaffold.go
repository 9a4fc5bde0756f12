package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"codeberg.org/snonux/clarity/internal/logging"
)

// File names inside a workspace
const (
	ScriptName      = "generated_manim_code.py"
	DescriptionName = "visualization_description.txt"
	ManifestName    = "manifest.yaml"
	MediaName       = "media"
)

// SpeechURLEnv names the variable the narration shim reads the sidecar URL from
const SpeechURLEnv = "CLARITY_SPEECH_URL"

//go:embed files/*.py
var helpers embed.FS

// Workspace is a prepared render directory
type Workspace struct {
	Dir             string
	ScriptPath      string
	MediaDir        string
	DescriptionPath string
	ManifestPath    string
}

// Prepare deletes stale media under dir, creates dir and writes the helper
// modules generated scenes import
func Prepare(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory: %w", err)
	}

	ws := &Workspace{
		Dir:             abs,
		ScriptPath:      filepath.Join(abs, ScriptName),
		MediaDir:        filepath.Join(abs, MediaName),
		DescriptionPath: filepath.Join(abs, DescriptionName),
		ManifestPath:    filepath.Join(abs, ManifestName),
	}

	if _, err := os.Stat(ws.MediaDir); err == nil {
		log.Info("Deleting existing media folder", "path", ws.MediaDir)
		if err := os.RemoveAll(ws.MediaDir); err != nil {
			return nil, fmt.Errorf("failed to delete media folder: %w", err)
		}
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	entries, err := helpers.ReadDir("files")
	if err != nil {
		return nil, fmt.Errorf("failed to list helper modules: %w", err)
	}
	for _, entry := range entries {
		start := time.Now()
		data, err := helpers.ReadFile("files/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read helper %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(abs, entry.Name()), data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write helper %s: %w", entry.Name(), err)
		}
		log.Debug("Wrote helper module", "file", entry.Name(), "took", logging.Seconds(time.Since(start)))
	}

	return ws, nil
}

// WriteScript stores the scene source
func (w *Workspace) WriteScript(code string) error {
	if err := os.WriteFile(w.ScriptPath, []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}
	return nil
}

// WriteDescription stores the scene description
func (w *Workspace) WriteDescription(description string) error {
	if err := os.WriteFile(w.DescriptionPath, []byte(description), 0644); err != nil {
		return fmt.Errorf("failed to save description: %w", err)
	}
	return nil
}
