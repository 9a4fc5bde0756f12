package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// ValidScene is generated code that passes length and main block validation
const ValidScene = `from manim import *
from custom_voiceover_scene import CustomVoiceoverScene

class Explainer(CustomVoiceoverScene):
    def construct(self):
        title = Text("Hello")
        self.play(Write(title))

if __name__ == "__main__":
    Explainer().render()
`

// CreateTestDirectory creates a temporary workspace with the default output,
// speech cache and media directories
func CreateTestDirectory(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()

	dirs := []string{
		"output_videos",
		"cache",
		"media",
	}

	for _, dir := range dirs {
		path := filepath.Join(tempDir, dir)
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatalf("Failed to create test directory %s: %v", path, err)
		}
	}

	return tempDir
}

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// FakeRenderer describes a shell script standing in for the manim binary
type FakeRenderer struct {
	ExitCode  int    // exit status of the script
	Stderr    string // printed to stderr before exiting
	SkipVideo bool   // exit successfully without writing a video
	Sleep     int    // seconds to sleep before doing anything
}

// WriteFakeRenderer writes an executable that accepts manim's arguments and
// writes <media_dir>/videos/<stem>/<quality dir>/<name>.mp4. The path of the
// script is returned. Tests using it are skipped on Windows.
func WriteFakeRenderer(t *testing.T, dir string, fake FakeRenderer) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake renderer needs a POSIX shell")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if fake.Sleep > 0 {
		fmt.Fprintf(&b, "sleep %d\n", fake.Sleep)
	}
	b.WriteString(`out=""; media="media"; script=""; quality="480p15"
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    --media_dir) media="$2"; shift 2 ;;
    -ql) quality="480p15"; shift ;;
    -qm) quality="720p30"; shift ;;
    -qh) quality="1080p60"; shift ;;
    -qk) quality="2160p60"; shift ;;
    -*) shift ;;
    *) script="$1"; shift ;;
  esac
done
echo "rendering $script"
`)
	if fake.Stderr != "" {
		fmt.Fprintf(&b, "echo %q >&2\n", fake.Stderr)
	}
	if fake.ExitCode != 0 {
		fmt.Fprintf(&b, "exit %d\n", fake.ExitCode)
	}
	if !fake.SkipVideo {
		b.WriteString(`stem=$(basename "$script" .py)
mkdir -p "$media/videos/$stem/$quality"
echo "fake video" > "$media/videos/$stem/$quality/$out.mp4"
`)
	}
	b.WriteString("exit 0\n")

	path := filepath.Join(dir, "fake-manim")
	if err := os.WriteFile(path, []byte(b.String()), 0755); err != nil {
		t.Fatalf("Failed to write fake renderer: %v", err)
	}
	return path
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent checks if a file has expected content
func AssertFileContent(t *testing.T, path string, expected []byte) {
	t.Helper()

	actual, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("File content mismatch in %s\nExpected: %q\nActual: %q", path, expected, actual)
	}
}

// AssertFileContains checks if a file contains a substring
func AssertFileContains(t *testing.T, path string, substring string) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !strings.Contains(string(content), substring) {
		t.Errorf("File %s does not contain expected substring: %q", path, substring)
	}
}
