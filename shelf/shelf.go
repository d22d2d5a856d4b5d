// Package shelf manages the local PDF store: a directory tree where papers
// live under first-letter subdirectories, like papers/s/smith2020widgets.pdf.
package shelf

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// wellNamedPattern is the AuthorYearBlurb convention, with no punctuation.
var wellNamedPattern = regexp.MustCompile(`(?i)^[a-z]+[0-9]{4}[0-9a-z]+(\.pdf)?$`)

// WellNamed reports whether a file name follows the AuthorYearBlurb
// convention.
func WellNamed(name string) bool {
	return wellNamedPattern.MatchString(name)
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Shelf is a local file store rooted at the library directory.
type Shelf struct {
	root   string
	logger *slog.Logger
}

// Option configures a Shelf.
type Option func(*Shelf)

// WithLogger sets the logger for store events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shelf) {
		s.logger = logger
	}
}

// New creates a shelf rooted at the given directory, creating it if needed.
func New(root string, opts ...Option) (*Shelf, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving library root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating library root: %w", err)
	}
	s := &Shelf{root: absRoot, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the library root directory.
func (s *Shelf) Root() string {
	return s.root
}

// ErrEmptyStem is returned for file names with no stem, like ".pdf".
var ErrEmptyStem = errors.New("shelf: empty file stem")

// PathFor returns the canonical path of a paper inside the shelf layout.
func (s *Shelf) PathFor(stem string) (string, error) {
	if stem == "" {
		return "", ErrEmptyStem
	}
	letter := strings.ToLower(stem[:1])
	return filepath.Join(s.root, letter, stem+".pdf"), nil
}

// Index walks the library tree and returns a stem-to-path index of every
// .pdf file.
func (s *Shelf) Index() (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) != ".pdf" {
			return nil
		}
		index[Stem(path)] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking library: %w", err)
	}
	return index, nil
}

// Store moves a PDF into its canonical location in the shelf layout and
// returns the stem. Storing a file already in place is a no-op.
func (s *Shelf) Store(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	stem := Stem(abs)
	if stem == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyStem, path)
	}
	if !WellNamed(filepath.Base(abs)) {
		s.logger.Warn("file name does not follow AuthorYearBlurb convention", "file", filepath.Base(abs))
	}

	dst, err := s.PathFor(stem)
	if err != nil {
		return "", err
	}
	if abs == dst {
		return stem, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating shelf directory: %w", err)
	}
	if err := move(abs, dst); err != nil {
		return "", fmt.Errorf("storing %s: %w", path, err)
	}
	s.logger.Debug("stored paper", "stem", stem, "path", dst)
	return stem, nil
}

// Remove deletes the local copy of a paper. Removing a paper that is not on
// the shelf is not an error.
func (s *Shelf) Remove(stem string) error {
	path, err := s.PathFor(stem)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", stem, err)
	}
	return nil
}

// move renames src to dst, falling back to copy-and-delete across
// filesystems.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Remove(src)
}
