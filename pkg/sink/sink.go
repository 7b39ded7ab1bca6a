// Package sink provides output destinations for generated artifacts.
package sink

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// DefaultFileMode is used when a write does not ask for a specific mode.
const DefaultFileMode fs.FileMode = 0o644

// OutputSink receives generated file content.
// Paths are slash-separated and relative to the sink's root.
// Implementations must be safe for concurrent calls.
type OutputSink interface {
	// EnsureDir creates dir and all missing parents. It does not fail when
	// dir already exists.
	EnsureDir(ctx context.Context, dir string) error
	// WriteFile writes content to path, replacing any previous content.
	// A zero mode means DefaultFileMode.
	WriteFile(ctx context.Context, path string, content []byte, mode fs.FileMode) error
}

// FilesystemSink writes to a directory on the local filesystem.
type FilesystemSink struct {
	// Root is the base directory for all writes.
	Root string

	// SkipUnchanged leaves files whose content hash already matches untouched,
	// so re-running a generation keeps modification times stable.
	SkipUnchanged bool
}

// NewFilesystemSink creates a new FilesystemSink writing below root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root}
}

// Resolve returns the filesystem location of a sink-relative path.
func (s *FilesystemSink) Resolve(path string) string {
	return filepath.Join(s.Root, filepath.FromSlash(path))
}

// EnsureDir creates dir below Root.
func (s *FilesystemSink) EnsureDir(ctx context.Context, dir string) error {
	if err := ValidatePath(dir); err != nil {
		return errors.Wrapf(err, "invalid directory %q", dir)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Resolve(dir), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

// WriteFile writes content to path within Root.
// Writes go through a temp file and a rename so readers never see partial content.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte, mode fs.FileMode) error {
	if err := ValidatePath(path); err != nil {
		return errors.Wrapf(err, "invalid path %q", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == 0 {
		mode = DefaultFileMode
	}

	fullPath := s.Resolve(path)
	if s.SkipUnchanged && sameContent(fullPath, content) {
		return errors.Wrapf(os.Chmod(fullPath, mode), "failed to set mode of %s", path)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}

	tempFile, err := os.CreateTemp(dir, ".svcgen-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", path)
	}
	tempPath := tempFile.Name()
	cleanup := func() { _ = os.Remove(tempPath) }

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()
	if writeErr != nil {
		cleanup()
		return errors.Wrapf(writeErr, "failed to write %s", path)
	}
	if closeErr != nil {
		cleanup()
		return errors.Wrapf(closeErr, "failed to close %s", path)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to set mode of %s", path)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to move %s into place", path)
	}
	return nil
}

func sameContent(path string, content []byte) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return len(existing) == len(content) && xxhash.Sum64(existing) == xxhash.Sum64(content)
}

// File is a file held by a MemorySink
type File struct {
	Content []byte
	Mode    fs.FileMode
}

// MemorySink stores generated files in memory.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string]File
	dirs  map[string]bool
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string]File),
		dirs:  make(map[string]bool),
	}
}

// EnsureDir records dir and its parents.
func (s *MemorySink) EnsureDir(ctx context.Context, dir string) error {
	if err := ValidatePath(dir); err != nil {
		return errors.Wrapf(err, "invalid directory %q", dir)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for d := dir; d != "." && d != "/"; d = filepath.ToSlash(filepath.Dir(d)) {
		s.dirs[d] = true
	}
	return nil
}

// WriteFile stores a copy of content. The parent directory must have been
// ensured first, mirroring the filesystem contract the stages rely on.
func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte, mode fs.FileMode) error {
	if err := ValidatePath(path); err != nil {
		return errors.Wrapf(err, "invalid path %q", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == 0 {
		mode = DefaultFileMode
	}
	contentCopy := make([]byte, len(content))
	copy(contentCopy, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if parent := filepath.ToSlash(filepath.Dir(path)); parent != "." && !s.dirs[parent] {
		return errors.Newf("directory %s does not exist", parent)
	}
	s.files[path] = File{Content: contentCopy, Mode: mode}
	return nil
}

// Get returns the content of a single file, or nil if not found.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[path]
	if !ok {
		return nil
	}
	out := make([]byte, len(f.Content))
	copy(out, f.Content)
	return out
}

// Mode returns the mode a file was written with.
func (s *MemorySink) Mode(path string) (fs.FileMode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[path]
	return f.Mode, ok
}

// Paths returns all written paths in ascending order.
func (s *MemorySink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasDir reports whether dir was ensured.
func (s *MemorySink) HasDir(dir string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirs[dir]
}

// ValidatePath checks if a path is valid for output.
// Paths must be relative, use / as separator, not contain .. components and be clean.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return errors.New("absolute paths not allowed")
	}
	if len(path) >= 2 && path[1] == ':' && ((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		return errors.New("absolute paths not allowed")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned != path {
		return errors.Newf("path is not clean (expected %q, got %q)", cleaned, path)
	}
	return nil
}
