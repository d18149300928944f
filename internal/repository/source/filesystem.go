package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
)

// ErrPathEscapes is returned for a path template that resolves outside the
// store root.
var ErrPathEscapes = errors.New("tile path escapes store root")

// templateSamples are substituted into a template by ValidateTemplate. The
// negative coordinate catches templates that only escape with a leading "-".
var templateSamples = []tile.Coordinate{
	{X: 0, Y: 0, Z: 0},
	{X: -1, Y: -1, Z: 30},
}

// ValidateTemplate rejects templates whose filled paths are not local to the
// store root: absolute paths, ".." segments, or an empty result.
func ValidateTemplate(template string) error {
	for _, c := range templateSamples {
		if !filepath.IsLocal(filepath.FromSlash(tile.Fill(template, c))) {
			return fmt.Errorf("%w: %q", ErrPathEscapes, template)
		}
	}
	return nil
}

// FilesystemStore reads one encoded image per file, located by substituting
// the coordinate into a path template below a root directory.
type FilesystemStore struct {
	root     string
	template string
	maxBytes int64
}

var _ Store = (*FilesystemStore)(nil)

func NewFilesystemStore(root, template string, maxBytes int64) *FilesystemStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FilesystemStore{
		root:     root,
		template: template,
		maxBytes: maxBytes,
	}
}

// WithTemplate returns a copy of the store using another path template.
func (s *FilesystemStore) WithTemplate(template string) *FilesystemStore {
	return &FilesystemStore{
		root:     s.root,
		template: template,
		maxBytes: s.maxBytes,
	}
}

func (s *FilesystemStore) Template() string {
	return s.template
}

func (s *FilesystemStore) Name() string {
	return "filesystem"
}

// pathFor returns the path of c relative to the store root.
func (s *FilesystemStore) pathFor(c tile.Coordinate) (string, error) {
	name := filepath.FromSlash(tile.Fill(s.template, c))
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return name, nil
}

// open resolves c inside the root. Symlinks pointing out of the root fail
// like any other escape. A missing file yields a nil file and no error.
func (s *FilesystemStore) open(c tile.Coordinate) (*os.File, string, error) {
	path, err := s.pathFor(c)
	if err != nil {
		return nil, "", err
	}

	f, err := os.OpenInRoot(s.root, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, path, nil
		}
		return nil, path, err
	}
	return f, path, nil
}

func (s *FilesystemStore) Exists(_ context.Context, c tile.Coordinate) (bool, error) {
	f, _, err := s.open(c)
	if err != nil || f == nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *FilesystemStore) Get(_ context.Context, c tile.Coordinate) ([]byte, bool, error) {
	f, path, err := s.open(c)
	if err != nil || f == nil {
		return nil, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	if info.Size() > s.maxBytes {
		return nil, false, fmt.Errorf("%s: %d bytes: %w", path, info.Size(), ErrTooLarge)
	}

	content, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, false, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	return content, true, nil
}
