// Package upload persists inbound images before they are handed to the
// segmentation tool.
package upload

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/xiaot623/gogo/segmenter/internal/domain"
)

// Store writes uploads under <dir>/<id>/<filename>.
type Store struct {
	dir string
}

// NewStore creates an upload store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the uploads root.
func (s *Store) Dir() string {
	return s.dir
}

// Save copies r to a file named filename inside a directory unique to id and
// returns the absolute path written. The filename keeps the client's name
// once stripped of any directory components.
func (s *Store) Save(id, filename string, r io.Reader) (string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if _, err := SanitizeFilename(id); err != nil {
		return "", fmt.Errorf("upload id %q: %w", id, err)
	}

	root, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve uploads dir: %w", err)
	}
	dest, err := securejoin.SecureJoin(root, filepath.Join(id, name))
	if err != nil {
		return "", fmt.Errorf("join upload path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return dest, nil
}

// SanitizeFilename reduces a client-supplied name to its last path element.
// Names that are empty, refer to a directory, or contain control characters
// are rejected with domain.ErrInvalidFilename.
func SanitizeFilename(filename string) (string, error) {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%q: %w", filename, domain.ErrInvalidFilename)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%q: %w", filename, domain.ErrInvalidFilename)
	}
	return name, nil
}
