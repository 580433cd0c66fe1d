// Package artifact locates images written by the segmentation tool.
//
// The output root holds one directory per tool invocation (exp, exp2, ...).
// The newest artifact is the most recently modified image inside the most
// recently modified run directory. Neither level is searched recursively.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Run is a run directory under the output root.
type Run struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Artifact is an image file inside a run directory.
type Artifact struct {
	Run     string
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// RelPath returns the slash-separated path relative to the output root.
func (a *Artifact) RelPath() string {
	return path.Join(a.Run, a.Name)
}

// Store reads run directories and artifacts under an output root.
type Store struct {
	root       string
	prefix     string
	extensions []string
}

// NewStore creates a store rooted at root. Only directories whose name starts
// with prefix are runs, and only files with one of extensions are artifacts.
func NewStore(root, prefix string, extensions []string) *Store {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &Store{root: root, prefix: prefix, extensions: exts}
}

// Root returns the output root directory.
func (s *Store) Root() string {
	return s.root
}

// Runs lists run directories directly under the output root.
// A missing root is treated as empty.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output root: %w", err)
	}

	dirs := lo.Filter(entries, func(e fs.DirEntry, _ int) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), s.prefix)
	})

	runs := make([]Run, 0, len(dirs))
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat run %s: %w", d.Name(), err)
		}
		runs = append(runs, Run{
			Name:    d.Name(),
			Path:    filepath.Join(s.root, d.Name()),
			ModTime: info.ModTime(),
		})
	}
	return runs, nil
}

// Artifacts lists image files directly inside run.
func (s *Store) Artifacts(ctx context.Context, run Run) ([]Artifact, error) {
	entries, err := os.ReadDir(run.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run %s: %w", run.Name, err)
	}

	files := lo.Filter(entries, func(e fs.DirEntry, _ int) bool {
		return e.Type().IsRegular() && s.matchesExtension(e.Name())
	})

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := f.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat artifact %s/%s: %w", run.Name, f.Name(), err)
		}
		artifacts = append(artifacts, Artifact{
			Run:     run.Name,
			Name:    f.Name(),
			Path:    filepath.Join(run.Path, f.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return artifacts, nil
}

// LatestRun returns the most recently modified run directory.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRunDirectories
	}
	latest := lo.MaxBy(runs, func(a, b Run) bool {
		return a.ModTime.After(b.ModTime)
	})
	return &latest, nil
}

// LatestIn returns the most recently modified artifact inside run.
func (s *Store) LatestIn(ctx context.Context, run Run) (*Artifact, error) {
	artifacts, err := s.Artifacts(ctx, run)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%s: %w", run.Name, ErrNoArtifacts)
	}
	latest := lo.MaxBy(artifacts, func(a, b Artifact) bool {
		return a.ModTime.After(b.ModTime)
	})
	return &latest, nil
}

// Latest resolves the newest artifact: newest run first, then the newest
// image inside it.
func (s *Store) Latest(ctx context.Context) (*Artifact, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.LatestIn(ctx, *run)
}

func (s *Store) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return lo.Contains(s.extensions, ext)
}
