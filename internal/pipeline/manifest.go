package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codeberg.org/snonux/clarity/internal"
)

// Manifest records how a video was made
type Manifest struct {
	Query       string    `yaml:"query"`
	Video       string    `yaml:"video"`
	Script      string    `yaml:"script"`
	Description string    `yaml:"description"`
	Backend     string    `yaml:"backend"`
	Attempts    int       `yaml:"attempts"`
	Duration    string    `yaml:"duration"`
	CreatedAt   time.Time `yaml:"created_at"`
	Version     string    `yaml:"version"`
}

func writeManifest(path string, a *Artifact) error {
	m := Manifest{
		Query:       a.Query,
		Video:       a.VideoPath,
		Script:      a.ScriptPath,
		Description: a.Description,
		Backend:     a.Backend,
		Attempts:    a.Attempts,
		Duration:    a.Duration.Round(time.Millisecond).String(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Version:     internal.Version,
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest written next to a rendered video
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
