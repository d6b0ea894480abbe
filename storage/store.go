// Package storage keeps uploaded files on disk under names derived from their content hash.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
)

// ContentChecker validates a staged file before it gets its canonical name.
type ContentChecker interface {
	CheckContent(path string) bool
}

var (
	storedNamePattern = regexp.MustCompile(`^[0-9a-f]{64}(\.[A-Za-z0-9]{1,16})?$`)
	extensionPattern  = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)
)

// ValidExtension reports whether ext (without dot) can appear in a stored name.
func ValidExtension(ext string) bool {
	return extensionPattern.MatchString(ext)
}

// ValidName reports whether name has the shape of a stored file name: a 64-character lowercase hex
// digest, optionally followed by a short alphanumeric extension.
func ValidName(name string) bool {
	return storedNamePattern.MatchString(name)
}

// Store is a content-addressed file store rooted at a directory.
type Store struct {
	root    string
	newHash func() hash.Hash
	checker ContentChecker
	log     *zap.Logger
}

// NewStore creates the root directory if needed. algorithm is "sha256" (default) or "blake3".
func NewStore(root, algorithm string, checker ContentChecker, log *zap.Logger) (*Store, error) {
	var newHash func() hash.Hash
	switch strings.ToLower(algorithm) {
	case "", "sha256":
		newHash = sha256.New
	case "blake3":
		newHash = func() hash.Hash { return blake3.New() }
	default:
		return nil, fmt.Errorf("storage: unsupported hash algorithm %q", algorithm)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Storage("mkdir", root, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{root: root, newHash: newHash, checker: checker, log: log}, nil
}

// Root returns the directory files are stored in.
func (s *Store) Root() string { return s.root }

// Put stores the content read from r and returns its stored name, digest plus the extension of
// originalName. Content already present is not rewritten. Content failing the checker is removed
// and reported as apperr.ErrInvalidContent.
func (s *Store) Put(ctx context.Context, r io.Reader, originalName string) (string, error) {
	staging := filepath.Join(s.root, "."+uuid.NewString()+".part")
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Storage("create", staging, err)
	}
	keep := false
	defer func() {
		if !keep {
			if rmErr := os.Remove(staging); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.log.Error("remove staging file", zap.String("path", staging), zap.Error(rmErr))
			}
		}
	}()

	h := s.newHash()
	_, copyErr := io.Copy(io.MultiWriter(f, h), contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperr.Storage("write", staging, copyErr)
	}
	if closeErr != nil {
		return "", apperr.Storage("close", staging, closeErr)
	}

	name := StoredName(hex.EncodeToString(h.Sum(nil)), originalName)
	final := filepath.Join(s.root, name)

	if _, err := os.Stat(final); err == nil {
		s.log.Info("upload deduplicated", zap.String("original", originalName), zap.String("stored", name))
		return name, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", apperr.Storage("stat", final, err)
	}

	if s.checker != nil && !s.checker.CheckContent(staging) {
		s.log.Info("upload rejected", zap.String("original", originalName), zap.String("reason", "invalid content"))
		return "", apperr.ErrInvalidContent
	}

	if err := os.Rename(staging, final); err != nil {
		return "", apperr.Storage("rename", final, err)
	}
	keep = true
	s.log.Info("upload stored", zap.String("original", originalName), zap.String("stored", name))
	return name, nil
}

// Get returns the path of a stored file.
func (s *Store) Get(name string) (string, error) {
	if !ValidName(name) {
		return "", apperr.ErrInvalidName
	}
	path := filepath.Join(s.root, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", apperr.Storage("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", apperr.ErrNotFound
	}
	return path, nil
}

// Has reports whether a file with the stored name exists.
func (s *Store) Has(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// StoredName joins a hex digest with the extension of originalName, keeping the extension's case.
func StoredName(digest, originalName string) string {
	return digest + splitExt(originalName)
}

// splitExt returns the extension including its dot. Leading dots of the base name do not start an
// extension, so ".mp3" has none.
func splitExt(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndex(name, ".")
	if i <= 0 || strings.Trim(name[:i], ".") == "" {
		return ""
	}
	return name[i:]
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
