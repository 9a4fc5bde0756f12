package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Result describes an archived output directory
type Result struct {
	Path   string
	Videos int
	Bytes  int64
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%d videos, %s)", r.Path, r.Videos, humanize.Bytes(uint64(r.Bytes)))
}

// ArchiveOutputs moves the output directory to <parent>/archive/outputs-<timestamp>
func ArchiveOutputs(outputDir string) (Result, error) {
	// Check if output directory exists
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		return Result{}, fmt.Errorf("output directory does not exist: %s", outputDir)
	}

	videos, size, err := usage(outputDir)
	if err != nil {
		return Result{}, err
	}

	// Get parent directory and create archive path
	parentDir := filepath.Dir(filepath.Clean(outputDir))
	archiveDir := filepath.Join(parentDir, "archive")

	// Create archive directory if it doesn't exist
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	archivePath := filepath.Join(archiveDir, "outputs-"+timestamp)

	// Check if archive already exists (unlikely but possible)
	if _, err := os.Stat(archivePath); err == nil {
		timestamp = time.Now().Format("20060102-150405.000000")
		archivePath = filepath.Join(archiveDir, "outputs-"+timestamp)
	}

	if err := os.Rename(outputDir, archivePath); err != nil {
		return Result{}, fmt.Errorf("failed to archive output directory: %w", err)
	}

	result := Result{Path: archivePath, Videos: videos, Bytes: size}
	log.Info("Output directory archived", "path", archivePath, "videos", videos, "size", humanize.Bytes(uint64(size)))
	return result, nil
}

// usage counts rendered videos and total bytes below dir
func usage(dir string) (videos int, size int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		if strings.EqualFold(filepath.Ext(path), ".mp4") {
			videos++
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to scan output directory: %w", err)
	}
	return videos, size, nil
}
