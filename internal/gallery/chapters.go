// Package gallery stores ingested images on disk, one directory per
// chapter. Chapters are created the first time a batch targets them and
// are never removed automatically.
package gallery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidFilename rejects names that would escape the chapter directory.
var ErrInvalidFilename = errors.New("invalid image filename")

// Store manages chapter directories under a base uploads directory.
type Store struct {
	baseDir string
	logger  *slog.Logger
}

// NewStore creates the store and its base directory.
func NewStore(baseDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// cleanName reduces a name to a bare file name and rejects anything that
// still carries path structure. Telegram file paths look like
// "photos/file_42.jpg"; only the base name is kept.
func cleanName(name string) (string, error) {
	name = filepath.Base(filepath.Clean(name))
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// Ensure creates the chapter directory if it does not exist yet.
func (s *Store) Ensure(chapter string) error {
	chapter, err := cleanName(chapter)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.baseDir, chapter), 0755); err != nil {
		return fmt.Errorf("create chapter %q: %w", chapter, err)
	}
	return nil
}

// SaveImage writes an image blob into the chapter, creating the chapter
// on demand. An existing file with the same name is overwritten; the
// upstream platform derives filenames from distinct source files, so
// last-write-wins is acceptable.
func (s *Store) SaveImage(chapter, filename string, data []byte) error {
	chapter, err := cleanName(chapter)
	if err != nil {
		return err
	}
	filename, err = cleanName(filename)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.baseDir, chapter)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create chapter %q: %w", chapter, err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return fmt.Errorf("write image %s/%s: %w", chapter, filename, err)
	}

	s.logger.Info("image stored", "chapter", chapter, "filename", filename, "bytes", len(data))
	return nil
}

// Chapters lists all chapter names, sorted.
func (s *Store) Chapters() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	var chapters []string
	for _, e := range entries {
		if e.IsDir() {
			chapters = append(chapters, e.Name())
		}
	}
	sort.Strings(chapters)
	return chapters, nil
}

// Images lists the image filenames in a chapter, sorted. A chapter that
// was never created yields an empty list, not an error.
func (s *Store) Images(chapter string) ([]string, error) {
	chapter, err := cleanName(chapter)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.baseDir, chapter))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list chapter %q: %w", chapter, err)
	}
	var images []string
	for _, e := range entries {
		if !e.IsDir() {
			images = append(images, e.Name())
		}
	}
	sort.Strings(images)
	return images, nil
}
