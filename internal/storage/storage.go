package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrStorageDisabled = errors.New("media storage is not configured")

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// LessonVideoKey builds a unique object key for a lesson video upload,
// e.g. lessons/<courseId>/<lessonId>/<uuid>.mp4
func LessonVideoKey(courseID, lessonID, contentType string) string {
	ext := "bin"
	if parts := strings.SplitN(contentType, "/", 2); len(parts) == 2 && parts[1] != "" {
		ext = parts[1]
	}
	return path.Join("lessons", courseID, lessonID, fmt.Sprintf("%s.%s", uuid.NewString(), ext))
}

// IsLessonVideoKey reports whether key belongs to the lesson's key space.
func IsLessonVideoKey(key, courseID, lessonID string) bool {
	return strings.HasPrefix(key, path.Join("lessons", courseID, lessonID)+"/")
}

// disabledStorage is used when no bucket is configured.
type disabledStorage struct{}

func NewDisabledStorage() FileStorage { return disabledStorage{} }

func (disabledStorage) GeneratePresignedUploadURL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledStorage) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledStorage) DeleteObject(context.Context, string) error {
	return ErrStorageDisabled
}
