package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/snonux/clarity/internal/testutil"
)

func TestArchiveOutputs(t *testing.T) {
	tmpDir := t.TempDir()

	// Create an output directory with one run in it
	outputDir := filepath.Join(tmpDir, "output_videos")
	runDir := filepath.Join(outputDir, "1700000000000_abcd1234")
	videoDir := filepath.Join(runDir, "media", "videos", "generated_manim_code", "480p15")
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		t.Fatalf("Failed to create run directory: %v", err)
	}

	files := map[string]string{
		filepath.Join(runDir, "generated_manim_code.py"):      "from manim import *",
		filepath.Join(runDir, "visualization_description.txt"): "desc",
		filepath.Join(videoDir, "output_1a2b3c4d.mp4"):          "fake video",
	}
	var wantBytes int64
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		wantBytes += int64(len(content))
	}

	result, err := ArchiveOutputs(outputDir)
	if err != nil {
		t.Fatalf("ArchiveOutputs failed: %v", err)
	}

	if _, err := os.Stat(outputDir); !os.IsNotExist(err) {
		t.Error("Output directory still exists after archiving")
	}

	archiveDir := filepath.Join(tmpDir, "archive")
	if filepath.Dir(result.Path) != archiveDir {
		t.Errorf("archive path %s not in %s", result.Path, archiveDir)
	}
	if !strings.HasPrefix(filepath.Base(result.Path), "outputs-") {
		t.Errorf("Archived directory name doesn't start with 'outputs-': %s", result.Path)
	}
	if result.Videos != 1 {
		t.Errorf("Videos = %d, want 1", result.Videos)
	}
	if result.Bytes != wantBytes {
		t.Errorf("Bytes = %d, want %d", result.Bytes, wantBytes)
	}
	if !strings.Contains(result.String(), "1 videos") {
		t.Errorf("String() = %q", result.String())
	}

	archivedVideo := filepath.Join(result.Path, "1700000000000_abcd1234", "media", "videos", "generated_manim_code", "480p15", "output_1a2b3c4d.mp4")
	if _, err := os.Stat(archivedVideo); err != nil {
		t.Errorf("Video not found in archive: %v", err)
	}
}

func TestArchiveOutputs_NonExistentDirectory(t *testing.T) {
	_, err := ArchiveOutputs(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("Expected error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected 'does not exist' error, got: %v", err)
	}
}

func TestArchiveOutputs_MultipleArchives(t *testing.T) {
	tmpDir := testutil.CreateTestDirectory(t)
	outputDir := filepath.Join(tmpDir, "output_videos")

	for i := 0; i < 2; i++ {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			t.Fatalf("Failed to create output directory: %v", err)
		}
		if _, err := ArchiveOutputs(outputDir); err != nil {
			t.Fatalf("ArchiveOutputs failed on iteration %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(tmpDir, "archive"))
	if err != nil {
		t.Fatalf("Failed to read archive directory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries in archive directory, got %d", len(entries))
	}
	testutil.AssertFileExists(t, filepath.Join(tmpDir, "cache"))
	if entries[0].Name() == entries[1].Name() {
		t.Error("Archive names are not unique")
	}
}
