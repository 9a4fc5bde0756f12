package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"codeberg.org/snonux/clarity/internal/logging"
)

// DefaultBinary is the renderer executable looked up on PATH
const DefaultBinary = "manim"

const waitDelay = time.Second

// ErrVideoNotFound is returned when a render left no video behind
var ErrVideoNotFound = errors.New("no video file found in the expected directory")

// RenderError reports a renderer run that exited unsuccessfully
type RenderError struct {
	ExitCode int
	Stderr   string
}

func (e *RenderError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("manim exited with code %d", e.ExitCode)
	}
	lines := strings.Split(stderr, "\n")
	return fmt.Sprintf("manim exited with code %d: %s", e.ExitCode, lines[len(lines)-1])
}

// Manim renders scene scripts with the manim command
type Manim struct {
	Binary   string        // executable, defaults to "manim"
	Quality  string        // low, medium, high or fourk
	MediaDir string        // passed as --media_dir
	Dir      string        // working directory of the subprocess
	Timeout  time.Duration // zero means no limit beyond ctx
	Env      []string      // extra KEY=VALUE pairs added to the environment
}

// Available checks that the renderer binary can be found
func (m *Manim) Available() error {
	if _, err := exec.LookPath(m.binary()); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", m.binary(), err)
	}
	return nil
}

func (m *Manim) binary() string {
	if m.Binary == "" {
		return DefaultBinary
	}
	return m.Binary
}

func (m *Manim) args(script, outputName string) []string {
	args := []string{
		qualityFlag(m.Quality),
		"-o", outputName,
		script,
		"--disable_caching",
		"--write_to_movie",
	}
	if m.MediaDir != "" {
		args = append(args, "--media_dir", m.MediaDir)
	}
	return args
}

// Render runs the renderer on script, naming the movie outputName
func (m *Manim) Render(ctx context.Context, script, outputName string) error {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.binary(), m.args(script, outputName)...)
	cmd.Dir = m.Dir
	// manim spawns ffmpeg; do not wait on grandchildren holding the pipes
	cmd.WaitDelay = waitDelay
	if len(m.Env) > 0 {
		cmd.Env = append(os.Environ(), m.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Info("Rendering scene", "script", filepath.Base(script), "output", outputName, "quality", m.Quality)
	err := cmd.Run()
	took := logging.Seconds(time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Error("Render aborted", "took", took, "err", ctxErr)
			return fmt.Errorf("render aborted: %w", ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Error("Render failed", "took", took, "exit_code", exitErr.ExitCode())
			log.Error("Manim error output:\n" + stderr.String())
			return &RenderError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return fmt.Errorf("failed to run %s: %w", m.binary(), err)
	}

	log.Info("Render finished", "took", took)
	log.Info("Manim output:\n" + stdout.String())
	return nil
}

// Locate finds the video rendered from script, preferring the file named
// outputName over any other mp4 in the quality directory
func (m *Manim) Locate(script, outputName string) (string, error) {
	mediaDir := m.MediaDir
	if mediaDir == "" {
		mediaDir = filepath.Join(m.Dir, "media")
	}

	if outputName != "" {
		stem := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
		path := filepath.Join(mediaDir, "videos", stem, QualityDir(m.Quality), outputName+".mp4")
		if _, err := os.Stat(path); err == nil {
			log.Info("Video file found", "path", path)
			return path, nil
		}
	}
	return FindVideo(mediaDir, script, m.Quality)
}

// FindVideo returns the first mp4 under <mediaDir>/videos/<script stem>/<quality dir>
func FindVideo(mediaDir, script, quality string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	videoDir := filepath.Join(mediaDir, "videos", stem, QualityDir(quality))

	entries, err := os.ReadDir(videoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrVideoNotFound, videoDir)
		}
		return "", fmt.Errorf("failed to read video directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s", ErrVideoNotFound, videoDir)
	}

	path := filepath.Join(videoDir, names[0])
	log.Info("Video file found", "path", path)
	return path, nil
}
