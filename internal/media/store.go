// Package media stores user uploaded images on the local filesystem.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Store saves and deletes uploaded files
type Store interface {
	Save(ctx context.Context, dir, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

// LocalStore keeps files under a root directory served at urlPrefix
type LocalStore struct {
	logger    *zap.Logger
	root      string
	urlPrefix string
	maxBytes  int64
}

// NewLocalStore creates a filesystem store
func NewLocalStore(logger *zap.Logger, root, urlPrefix string, maxBytes int64) *LocalStore {
	return &LocalStore{
		logger:    logger,
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
	}
}

// Save writes r under dir with a random name keeping the original extension.
// It returns the storage name relative to the root.
func (s *LocalStore) Save(_ context.Context, dir, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperrors.NewField(apperrors.ErrInvalid, "profile_img", "Unsupported image type %q", ext)
	}

	name := path.Join(dir, uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > limit {
		err = apperrors.NewField(apperrors.ErrInvalid, "profile_img", "Image exceeds %d bytes", limit)
	}
	if err != nil {
		_ = os.Remove(full)
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return name, nil
}

// Delete removes a stored file; missing files are not an error
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if name == "" {
		return nil
	}
	clean := path.Clean("/" + name)[1:]
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to delete media file", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// URL returns the public path of a stored file
func (s *LocalStore) URL(name string) string {
	return s.urlPrefix + "/" + strings.TrimLeft(name, "/")
}
