// Package files implements core.FileStore on the local filesystem.
//
// All access goes through Resolve: stored paths are canonicalized and checked
// for exact prefix containment inside the store root, which defends against
// `..` traversal, absolute paths smuggled in as references, and symlink
// escapes. Stored files are immutable once written (new uploads always create
// new files), so concurrent readers never observe a write in progress.
package files

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

type Store struct {
	root string
}

var _ core.FileStore = (*Store)(nil) // interface compliance check

// NewStore canonicalizes root (creating it if needed) and returns a guarded store.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	// resolve symlinks once so the containment check compares real locations
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing storage root")
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string { return s.root }

// Resolve canonicalizes path (relative paths are taken as relative to the
// root) and rejects any result escaping the root with core.ErrPathViolation.
func (s *Store) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.Wrap(err, "resolving path")
	}
	// follow symlinks on the deepest existing ancestor so a link inside the
	// root cannot point a reference outside of it
	if resolved, err := evalExisting(abs); err == nil {
		abs = resolved
	}
	if !s.contains(abs) {
		return "", core.ErrPathViolation
	}
	return abs, nil
}

func (s *Store) contains(abs string) bool {
	if abs == s.root {
		return true
	}
	return strings.HasPrefix(abs, s.root+string(os.PathSeparator))
}

// evalExisting resolves symlinks over the longest existing prefix of abs and
// re-joins the not-yet-existing remainder.
func evalExisting(abs string) (string, error) {
	remainder := ""
	dir := abs
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(errors.Cause(err)) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		remainder = filepath.Join(filepath.Base(dir), remainder)
		dir = parent
	}
}

// Save streams src into a new uniquely-named file under root/subdir and
// returns its metadata. The display filename is sanitized; the on-disk name is
// prefixed with the upload timestamp so re-submissions never overwrite.
func (s *Store) Save(subdir, filename string, src io.Reader) (core.StoredFile, error) {
	safe := core.SanitizeFilename(filename)
	if safe == "" {
		safe = "file"
	}

	dir, err := s.Resolve(subdir)
	if err != nil {
		return core.StoredFile{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating upload dir")
	}

	now := time.Now().UTC()
	path := filepath.Join(dir, strconv.FormatInt(now.UnixNano(), 10)+"-"+safe)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating upload file")
	}
	size, err := io.Copy(dst, src)
	if cErr := dst.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(path)
		return core.StoredFile{}, errors.Wrap(err, "writing upload file")
	}

	return core.StoredFile{
		Filename:   safe,
		Path:       path,
		Size:       size,
		UploadedAt: now,
	}, nil
}

func (s *Store) Open(path string) (io.ReadCloser, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, errors.Wrap(err, "opening stored file")
	}
	return f, nil
}

// Hash streams the file's bytes through SHA-256 and returns the hex digest.
// Two byte-identical files always hash alike regardless of name, owner or
// upload time; the file is never loaded into memory at once.
func (s *Store) Hash(path string) (string, error) {
	f, err := s.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "hashing stored file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) Remove(path string) error {
	abs, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return errors.Wrap(err, "removing stored file")
	}
	return nil
}
