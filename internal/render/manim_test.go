package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/clarity/internal/testutil"
)

func TestQualityDir(t *testing.T) {
	tests := []struct {
		quality string
		want    string
	}{
		{QualityLow, "480p15"},
		{QualityMedium, "720p30"},
		{QualityHigh, "1080p60"},
		{QualityFourK, "2160p60"},
		{"unknown", "480p15"},
	}

	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			if got := QualityDir(tt.quality); got != tt.want {
				t.Errorf("QualityDir(%q) = %q, want %q", tt.quality, got, tt.want)
			}
		})
	}
}

func TestValidateQuality(t *testing.T) {
	for _, q := range []string{QualityLow, QualityMedium, QualityHigh, QualityFourK} {
		if err := ValidateQuality(q); err != nil {
			t.Errorf("ValidateQuality(%q) error = %v", q, err)
		}
	}
	if err := ValidateQuality("ultra"); err == nil {
		t.Error("ValidateQuality(ultra) should fail")
	}
}

func TestArgs(t *testing.T) {
	m := &Manim{Quality: QualityHigh, MediaDir: "/tmp/media"}
	got := strings.Join(m.args("scene.py", "output_1234abcd"), " ")
	want := "-qh -o output_1234abcd scene.py --disable_caching --write_to_movie --media_dir /tmp/media"
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}

	m = &Manim{}
	got = strings.Join(m.args("scene.py", "out"), " ")
	if got != "-ql -o out scene.py --disable_caching --write_to_movie" {
		t.Errorf("default args = %q", got)
	}
}

func TestRenderAndLocate(t *testing.T) {
	dir := t.TempDir()
	binary := testutil.WriteFakeRenderer(t, dir, testutil.FakeRenderer{})

	script := filepath.Join(dir, "generated_manim_code.py")
	testutil.CreateTestFile(t, script, []byte(testutil.ValidScene))

	m := &Manim{
		Binary:   binary,
		Quality:  QualityMedium,
		MediaDir: filepath.Join(dir, "media"),
		Dir:      dir,
	}

	if err := m.Render(context.Background(), script, "output_abc"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	path, err := m.Locate(script, "output_abc")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	want := filepath.Join(dir, "media", "videos", "generated_manim_code", "720p30", "output_abc.mp4")
	if path != want {
		t.Errorf("Locate() = %q, want %q", path, want)
	}

	// A leftover video sorting first must not shadow the named output
	testutil.CreateTestFile(t, filepath.Join(filepath.Dir(want), "output_0000.mp4"), []byte("old"))
	if path, _ := m.Locate(script, "output_abc"); path != want {
		t.Errorf("Locate() with leftovers = %q, want %q", path, want)
	}
}

func TestRenderFailure(t *testing.T) {
	dir := t.TempDir()
	binary := testutil.WriteFakeRenderer(t, dir, testutil.FakeRenderer{
		ExitCode: 2,
		Stderr:   "NameError: name 'Circel' is not defined",
	})

	m := &Manim{Binary: binary, Quality: QualityLow, Dir: dir}
	err := m.Render(context.Background(), filepath.Join(dir, "scene.py"), "out")

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("error = %v, want *RenderError", err)
	}
	if renderErr.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", renderErr.ExitCode)
	}
	if !strings.Contains(renderErr.Error(), "Circel") {
		t.Errorf("Error() = %q, want stderr tail", renderErr.Error())
	}
}

func TestRenderTimeout(t *testing.T) {
	dir := t.TempDir()
	binary := testutil.WriteFakeRenderer(t, dir, testutil.FakeRenderer{Sleep: 5})

	m := &Manim{Binary: binary, Dir: dir, Timeout: 100 * time.Millisecond}
	err := m.Render(context.Background(), filepath.Join(dir, "scene.py"), "out")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestRenderMissingBinary(t *testing.T) {
	m := &Manim{Binary: filepath.Join(t.TempDir(), "no-such-manim")}
	if err := m.Available(); err == nil {
		t.Error("Available() should fail for a missing binary")
	}

	err := m.Render(context.Background(), "scene.py", "out")
	var renderErr *RenderError
	if err == nil || errors.As(err, &renderErr) {
		t.Errorf("error = %v, want a start failure", err)
	}
}

func TestFindVideo(t *testing.T) {
	media := t.TempDir()
	videoDir := filepath.Join(media, "videos", "scene", "480p15")

	if _, err := FindVideo(media, "scene.py", QualityLow); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("missing dir error = %v, want ErrVideoNotFound", err)
	}

	testutil.CreateTestFile(t, filepath.Join(videoDir, "partial_movie_file_list.txt"), []byte("x"))
	if _, err := FindVideo(media, "scene.py", QualityLow); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("dir without mp4 error = %v, want ErrVideoNotFound", err)
	}

	testutil.CreateTestFile(t, filepath.Join(videoDir, "output_b.mp4"), []byte("b"))
	testutil.CreateTestFile(t, filepath.Join(videoDir, "output_a.mp4"), []byte("a"))
	if err := os.MkdirAll(filepath.Join(videoDir, "partial_movie_files.mp4"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindVideo(media, "/some/where/scene.py", QualityLow)
	if err != nil {
		t.Fatalf("FindVideo() error = %v", err)
	}
	if filepath.Base(got) != "output_a.mp4" {
		t.Errorf("FindVideo() = %q, want output_a.mp4", got)
	}
}
