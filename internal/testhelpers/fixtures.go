// Package testhelpers provides shared fixtures for segmenter tests.
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xiaot623/gogo/segmenter/internal/config"
)

// NewTestConfig returns a config rooted in fresh temp directories.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	return &config.Config{
		UploadsDir:         filepath.Join(root, "uploads"),
		OutputDir:          filepath.Join(root, "output"),
		ToolCommand:        "python",
		ToolScript:         "yolov5/segment/predict.py",
		ToolArgsTemplate:   config.DefaultToolArgs,
		WeightsPath:        "current_best.pt",
		ImageSize:          640,
		LineThickness:      1,
		Confidence:         0.7,
		ToolTimeout:        5 * time.Second,
		FailOnToolExit:     true,
		WorkerQueueSize:    4,
		RunDirPrefix:       "exp",
		ArtifactExtensions: []string{".jpg"},
		BindHost:           "127.0.0.1",
		HTTPPort:           8000,
		PublicScheme:       "http",
		AdvertisedHost:     "192.168.1.238",
		AdvertisedPort:     8000,
		StaticPrefix:       "/images",
		MaxUploadBytes:     1 << 20,
		WSPingInterval:     time.Second,
		WSWriteTimeout:     time.Second,
		LogLevel:           "debug",
	}
}

// MakeRun creates a run directory under root with the given mtime.
// Call it after writing the run's files, since adding files bumps the mtime.
func MakeRun(t *testing.T, root, name string, modTime time.Time) string {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create run dir: %v", err)
	}
	if err := os.Chtimes(dir, modTime, modTime); err != nil {
		t.Fatalf("chtimes run dir: %v", err)
	}
	return dir
}

// WriteArtifact writes a file into root/run with the given mtime.
func WriteArtifact(t *testing.T, root, run, name string, data []byte, modTime time.Time) string {
	t.Helper()

	dir := filepath.Join(root, run)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create run dir: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := os.Chtimes(p, modTime, modTime); err != nil {
		t.Fatalf("chtimes artifact: %v", err)
	}
	return p
}
