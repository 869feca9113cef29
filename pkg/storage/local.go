package storage

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// First-level directories under the asset root. Originals land in UploadsDir;
// transcoded derivatives keep the same filename under CompressedDir, which is
// what pairs the two variants of an asset.
const (
	UploadsDir    = "uploads"
	CompressedDir = "compressed"
)

// PublicPrefix is the URL path prefix under which assets are served.
// Reference extraction scans document text for this exact prefix.
const PublicPrefix = "/static/"

// maxNameAttempts bounds the allocation retry loop. The timestamp suffix makes
// collisions rare; the counter only matters for same-second races.
const maxNameAttempts = 100

// LocalStorage stores assets on the local filesystem.
// All operations are confined to baseDir to prevent path traversal attacks.
type LocalStorage struct {
	baseDir   string // Absolute path - all files stored within this directory
	serverURL string // Server base URL used to build public asset URLs
	now       func() time.Time
}

// LocalOption configures LocalStorage.
type LocalOption func(*LocalStorage)

// WithClock overrides the time source used for name allocation suffixes.
// Intended for tests that need deterministic filenames.
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStorage) {
		s.now = now
	}
}

// NewLocalStorage creates a local filesystem storage rooted at baseDir.
// baseDir is resolved to an absolute path; the root and its uploads/ and
// compressed/ subdirectories are created if missing. serverURL is the public
// base URL of the host service (e.g. "https://blog.example.com").
func NewLocalStorage(baseDir, serverURL string, opts ...LocalOption) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}

	// Must resolve to absolute path for security - prevents relative path confusion
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve base directory: %v", ErrFailedToGetAbsolutePath, err)
	}

	for _, dir := range []string{absBaseDir, filepath.Join(absBaseDir, UploadsDir), filepath.Join(absBaseDir, CompressedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
		}
	}

	// Canonicalize the root itself so the containment check in Resolve
	// compares symlink-free paths on both sides.
	absBaseDir, err = filepath.EvalSymlinks(absBaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToGetAbsolutePath, err)
	}

	s := &LocalStorage{
		baseDir:   absBaseDir,
		serverURL: strings.TrimSuffix(serverURL, "/"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// BaseDir returns the absolute asset root directory.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// Resolve validates a root-relative path and returns its absolute location.
// The path is percent-decoded, cleaned, joined to the root and resolved
// through any symlinks; the result must stay within the root or
// ErrInvalidPath is returned. Nothing is resolved partially: any escape
// attempt, lexical or via symlink, fails before filesystem access.
func (s *LocalStorage) Resolve(path string) (string, error) {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	// An absolute input replaces the root instead of joining under it, so it
	// only survives the containment check below if it already points inside.
	clean := filepath.Clean(decoded)
	joined := clean
	if !filepath.IsAbs(clean) {
		joined = filepath.Join(s.baseDir, clean)
	}

	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToGetAbsolutePath, err)
	}

	// Lexical cleaning alone cannot see a symlink that leaves the root, so
	// the containment check runs on the symlink-resolved path.
	resolved, err := resolveExisting(absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	// Security check: ensure path stays within baseDir (prevents ../ attacks)
	if !strings.HasPrefix(resolved, s.baseDir+string(filepath.Separator)) && resolved != s.baseDir {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return resolved, nil
}

// resolveExisting canonicalizes path with symlinks resolved. The path itself
// may not exist yet (Write targets new files), so symlinks are evaluated on
// the deepest existing ancestor and the missing tail is rejoined lexically.
func resolveExisting(path string) (string, error) {
	existing := path
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}
}

// Write stores data at the given root-relative path, creating parent
// directories as needed. Existing files are overwritten; callers that must not
// overwrite go through AllocateName first.
func (s *LocalStorage) Write(ctx context.Context, path string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := s.Resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	return nil
}

// Read returns the full content of the file at the given root-relative path.
func (s *LocalStorage) Read(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	absPath, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}

	return data, nil
}

// Open opens the file at the given root-relative path for streaming reads.
// Returns ErrFileNotFound for missing paths and ErrIsDirectory when the target
// is not a regular file. The caller owns the returned file handle.
func (s *LocalStorage) Open(ctx context.Context, path string) (*os.File, os.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	absPath, err := s.Resolve(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}

	if info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}

	return f, info, nil
}

// Delete removes a single file.
// Verifies the target is a file, not a directory, to prevent accidental data loss.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := s.Resolve(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}

	// Safety check - prevent accidental directory deletion
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	if err := os.Remove(absPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}

	return nil
}

// Exists checks if a file or directory exists at the given root-relative path.
// Returns false for invalid paths or on context cancellation.
func (s *LocalStorage) Exists(ctx context.Context, path string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	absPath, err := s.Resolve(path)
	if err != nil {
		return false
	}

	_, err = os.Stat(absPath)
	return err == nil
}

// Walk returns the root-relative slash-separated paths of every regular file
// under the asset root, recursively. Context cancellation is checked per entry
// to handle large trees.
func (s *LocalStorage) Walk(ctx context.Context) ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToWalkDirectory, err)
	}

	return files, nil
}

// AllocateName returns a filename that does not collide with any existing file
// under dir. The base name is used as-is when free; otherwise a second
// resolution timestamp is appended, then an incrementing counter for
// same-second collisions. The check-then-create sequence is not atomic; the
// retry loop is bounded and ErrNameExhausted is returned when it runs out.
func (s *LocalStorage) AllocateName(ctx context.Context, dir, base string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if !s.Exists(ctx, filepath.Join(dir, base)) {
		return base, nil
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	timestamp := s.now().Format("20060102_150405")

	for counter := 1; counter <= maxNameAttempts; counter++ {
		name := fmt.Sprintf("%s_%s%s", stem, timestamp, ext)
		if counter > 1 {
			name = fmt.Sprintf("%s_%s_%d%s", stem, timestamp, counter, ext)
		}
		if !s.Exists(ctx, filepath.Join(dir, name)) {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNameExhausted, base)
}

// URL returns the public URL for a root-relative asset path.
func (s *LocalStorage) URL(path string) string {
	return s.serverURL + PublicPrefix + filepath.ToSlash(filepath.Clean(path))
}
