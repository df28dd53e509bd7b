package cache

import (
	"alcyxob/course-marketplace/internal/config"
	"alcyxob/course-marketplace/internal/logger"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultCatalogTTL = 5 * time.Minute

// Lookup is the catalog read path the progress tracker depends on.
type Lookup interface {
	TotalLessons(ctx context.Context, courseID primitive.ObjectID) (int, error)
	LessonCourse(ctx context.Context, lessonID primitive.ObjectID) (primitive.ObjectID, error)
}

// CatalogCache is a read-through Redis cache in front of a Lookup.
// Redis failures degrade to the underlying lookup; errors from the lookup
// itself are returned unchanged and never cached.
type CatalogCache struct {
	inner Lookup
	rdb   *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewCatalogCache(inner Lookup, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogCache{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With("component", "CatalogCache"),
	}
}

func lessonCountKey(courseID primitive.ObjectID) string {
	return "catalog:course:" + courseID.Hex() + ":lessons"
}

func lessonCourseKey(lessonID primitive.ObjectID) string {
	return "catalog:lesson:" + lessonID.Hex() + ":course"
}

// TotalLessons returns the published lesson count of a course.
func (c *CatalogCache) TotalLessons(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	key := lessonCountKey(courseID)
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			return n, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("catalog cache read failed", "key", key, "error", err)
	}

	n, err := c.inner.TotalLessons(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, key, n, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return n, nil
}

// LessonCourse resolves the owning course of a lesson. The mapping never changes.
func (c *CatalogCache) LessonCourse(ctx context.Context, lessonID primitive.ObjectID) (primitive.ObjectID, error) {
	key := lessonCourseKey(lessonID)
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if id, convErr := primitive.ObjectIDFromHex(raw); convErr == nil {
			return id, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("catalog cache read failed", "key", key, "error", err)
	}

	courseID, err := c.inner.LessonCourse(ctx, lessonID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if err := c.rdb.Set(ctx, key, courseID.Hex(), c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return courseID, nil
}

// InvalidateCourse drops the cached lesson count of a course.
func (c *CatalogCache) InvalidateCourse(ctx context.Context, courseID primitive.ObjectID) error {
	return c.rdb.Del(ctx, lessonCountKey(courseID)).Err()
}
