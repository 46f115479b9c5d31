package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-api/internal/platform/storage"
	"github.com/fleetworks/fleet-api/pkg/logger"
)

// Upload is a file received on a multipart request, ready to be pushed to
// object storage.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// uploadObject stores an upload under a prefixed random key and returns the
// public URL.
func uploadObject(ctx context.Context, store storage.ObjectStore, prefix string, up *Upload) (string, error) {
	ext := strings.ToLower(path.Ext(up.Filename))
	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)

	url, err := store.Upload(ctx, key, up.Reader, up.Size, up.ContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", up.Filename, err)
	}
	return url, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// cleanupObjects best-effort deletes uploaded objects after a failed write,
// so a rolled-back record does not leak storage.
func cleanupObjects(ctx context.Context, store storage.ObjectStore, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		key := store.KeyFromURL(url)
		if key == "" {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			logger.ErrorContext(ctx, "Failed to clean up uploaded object", "key", key, "error", err)
		}
	}
}
