package storage

import (
	"alcyxob/course-marketplace/internal/config"
	"alcyxob/course-marketplace/internal/logger"
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonVideoKey(t *testing.T) {
	key := LessonVideoKey("c1", "l1", "video/mp4")
	assert.True(t, strings.HasPrefix(key, "lessons/c1/l1/"))
	assert.True(t, strings.HasSuffix(key, ".mp4"))
	assert.True(t, IsLessonVideoKey(key, "c1", "l1"))
	assert.False(t, IsLessonVideoKey(key, "c1", "l2"))

	assert.NotEqual(t, key, LessonVideoKey("c1", "l1", "video/mp4"))
	assert.True(t, strings.HasSuffix(LessonVideoKey("c1", "l1", "garbage"), ".bin"))
}

func TestDisabledStorage(t *testing.T) {
	s := NewDisabledStorage()
	_, err := s.GeneratePresignedDownloadURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.ErrorIs(t, s.DeleteObject(context.Background(), "k"), ErrStorageDisabled)
}

func TestS3PresignedURLsAreOffline(t *testing.T) {
	s, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		BucketName:      "media",
	}, logger.NewNop())
	require.NoError(t, err)

	raw, err := s.GeneratePresignedUploadURL(context.Background(), "lessons/c/l/x.mp4", "video/mp4", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/media/lessons/c/l/x.mp4", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
