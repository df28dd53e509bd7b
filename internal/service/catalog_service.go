package service

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/repository"
	"alcyxob/course-marketplace/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrNotCourseOwner   = errors.New("access denied: course belongs to another instructor")
	ErrInvalidCourse    = errors.New("course validation failed")
	ErrInvalidLesson    = errors.New("lesson validation failed")
	ErrNoVideo          = errors.New("lesson has no video")
	ErrInvalidVideoKey  = errors.New("object key does not belong to this lesson")
	ErrInvalidVideoType = errors.New("content type must be a video type")
	ErrMediaUnavailable = errors.New("media storage is not available")
)

// CatalogInvalidator drops cached catalog facts after a course changes.
type CatalogInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID primitive.ObjectID) error
}

type CourseInput struct {
	Title       string
	Description string
	Category    string
	Level       string
	Price       int64
	Currency    string
}

type LessonInput struct {
	Title           string
	Description     string
	Sequence        int
	DurationSeconds int
}

// VideoUploadURL is returned to instructors before a direct-to-bucket upload.
type VideoUploadURL struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// --- Catalog lookup ---

type catalogLookup struct {
	courseRepo repository.CourseRepository
	lessonRepo repository.LessonRepository
}

// NewCatalogLookup answers the tracker's catalog questions straight from the repositories.
func NewCatalogLookup(courseRepo repository.CourseRepository, lessonRepo repository.LessonRepository) CatalogLookup {
	return &catalogLookup{courseRepo: courseRepo, lessonRepo: lessonRepo}
}

func (l *catalogLookup) TotalLessons(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	if _, err := l.courseRepo.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrCourseNotFound
		}
		return 0, fmt.Errorf("load course: %w", err)
	}
	n, err := l.lessonRepo.CountPublished(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return n, nil
}

// LessonCourse only resolves published lessons.
func (l *catalogLookup) LessonCourse(ctx context.Context, lessonID primitive.ObjectID) (primitive.ObjectID, error) {
	lesson, err := l.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, ErrLessonNotFound
		}
		return primitive.NilObjectID, fmt.Errorf("load lesson: %w", err)
	}
	if !lesson.Published {
		return primitive.NilObjectID, ErrLessonNotFound
	}
	return lesson.CourseID, nil
}

// --- Service Interface ---

type CatalogService interface {
	CreateCourse(ctx context.Context, instructorID primitive.ObjectID, input CourseInput) (*domain.Course, error)
	AddLesson(ctx context.Context, instructorID, courseID primitive.ObjectID, input LessonInput) (*domain.Lesson, error)
	PublishCourse(ctx context.Context, instructorID, courseID primitive.ObjectID) (*domain.Course, error)
	ListPublishedCourses(ctx context.Context) ([]domain.Course, error)
	// GetCourse returns a published course, or any course to its owner.
	GetCourse(ctx context.Context, viewerID, courseID primitive.ObjectID) (*domain.Course, error)
	ListLessons(ctx context.Context, viewerID, courseID primitive.ObjectID) ([]domain.Lesson, error)

	RequestLessonVideoUpload(ctx context.Context, instructorID, lessonID primitive.ObjectID, contentType string) (*VideoUploadURL, error)
	ConfirmLessonVideo(ctx context.Context, instructorID, lessonID primitive.ObjectID, objectKey string) (*domain.Lesson, error)
	// GetLessonVideoURL issues a playback URL to an actively enrolled learner.
	GetLessonVideoURL(ctx context.Context, userID, courseID, lessonID primitive.ObjectID) (string, error)
}

// --- Service Implementation ---

type catalogService struct {
	courseRepo     repository.CourseRepository
	lessonRepo     repository.LessonRepository
	enrollmentRepo repository.EnrollmentRepository
	fileStorage    storage.FileStorage
	invalidator    CatalogInvalidator
	log            *logger.Logger
}

// NewCatalogService creates the course catalog service. invalidator may be nil
// when no catalog cache is running.
func NewCatalogService(
	courseRepo repository.CourseRepository,
	lessonRepo repository.LessonRepository,
	enrollmentRepo repository.EnrollmentRepository,
	fileStorage storage.FileStorage,
	invalidator CatalogInvalidator,
	log *logger.Logger,
) CatalogService {
	if fileStorage == nil {
		fileStorage = storage.NewDisabledStorage()
	}
	return &catalogService{
		courseRepo:     courseRepo,
		lessonRepo:     lessonRepo,
		enrollmentRepo: enrollmentRepo,
		fileStorage:    fileStorage,
		invalidator:    invalidator,
		log:            log.With("service", "CatalogService"),
	}
}

func (s *catalogService) CreateCourse(ctx context.Context, instructorID primitive.ObjectID, input CourseInput) (*domain.Course, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidCourse)
	}
	if input.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidCourse)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	course := &domain.Course{
		InstructorID: instructorID,
		Title:        title,
		Description:  input.Description,
		Category:     input.Category,
		Level:        input.Level,
		Price:        input.Price,
		Currency:     currency,
	}
	id, err := s.courseRepo.Create(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	course.ID = id
	s.log.Info("course created", "course_id", id.Hex(), "instructor_id", instructorID.Hex())
	return course, nil
}

// AddLesson appends a lesson. Lessons added to an already published course go live immediately.
func (s *catalogService) AddLesson(ctx context.Context, instructorID, courseID primitive.ObjectID, input LessonInput) (*domain.Lesson, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidLesson)
	}
	if input.DurationSeconds < 0 || input.Sequence < 0 {
		return nil, fmt.Errorf("%w: sequence and duration must not be negative", ErrInvalidLesson)
	}

	course, err := s.ownedCourse(ctx, instructorID, courseID)
	if err != nil {
		return nil, err
	}

	lesson := &domain.Lesson{
		CourseID:        courseID,
		Title:           title,
		Description:     input.Description,
		Sequence:        input.Sequence,
		DurationSeconds: input.DurationSeconds,
		Published:       course.Published,
	}
	id, err := s.lessonRepo.Create(ctx, lesson)
	if err != nil {
		return nil, fmt.Errorf("create lesson: %w", err)
	}
	lesson.ID = id

	if lesson.Published {
		s.invalidate(ctx, courseID)
	}
	return lesson, nil
}

// PublishCourse makes the course and all of its lessons visible.
func (s *catalogService) PublishCourse(ctx context.Context, instructorID, courseID primitive.ObjectID) (*domain.Course, error) {
	course, err := s.ownedCourse(ctx, instructorID, courseID)
	if err != nil {
		return nil, err
	}

	if err := s.lessonRepo.PublishByCourseID(ctx, courseID); err != nil {
		return nil, fmt.Errorf("publish lessons: %w", err)
	}
	if err := s.courseRepo.SetPublished(ctx, courseID, instructorID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("publish course: %w", err)
	}
	s.invalidate(ctx, courseID)

	course.Published = true
	s.log.Info("course published", "course_id", courseID.Hex())
	return course, nil
}

func (s *catalogService) ListPublishedCourses(ctx context.Context) ([]domain.Course, error) {
	return s.courseRepo.ListPublished(ctx)
}

func (s *catalogService) GetCourse(ctx context.Context, viewerID, courseID primitive.ObjectID) (*domain.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if !course.Published && course.InstructorID != viewerID {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

func (s *catalogService) ListLessons(ctx context.Context, viewerID, courseID primitive.ObjectID) ([]domain.Lesson, error) {
	course, err := s.GetCourse(ctx, viewerID, courseID)
	if err != nil {
		return nil, err
	}
	ownerView := course.InstructorID == viewerID
	return s.lessonRepo.GetByCourseID(ctx, courseID, !ownerView)
}

// === Lesson media ===

func (s *catalogService) RequestLessonVideoUpload(ctx context.Context, instructorID, lessonID primitive.ObjectID, contentType string) (*VideoUploadURL, error) {
	if !strings.HasPrefix(contentType, "video/") {
		return nil, ErrInvalidVideoType
	}
	lesson, err := s.ownedLesson(ctx, instructorID, lessonID)
	if err != nil {
		return nil, err
	}

	objectKey := storage.LessonVideoKey(lesson.CourseID.Hex(), lesson.ID.Hex(), contentType)
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, s.mediaError("generate upload url", err)
	}
	return &VideoUploadURL{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

// ConfirmLessonVideo links an uploaded object to the lesson and removes the
// object it replaces.
func (s *catalogService) ConfirmLessonVideo(ctx context.Context, instructorID, lessonID primitive.ObjectID, objectKey string) (*domain.Lesson, error) {
	lesson, err := s.ownedLesson(ctx, instructorID, lessonID)
	if err != nil {
		return nil, err
	}
	if !storage.IsLessonVideoKey(objectKey, lesson.CourseID.Hex(), lesson.ID.Hex()) {
		return nil, ErrInvalidVideoKey
	}

	previous := lesson.VideoObjectKey
	if err := s.lessonRepo.SetVideoObjectKey(ctx, lessonID, objectKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("set lesson video: %w", err)
	}
	lesson.VideoObjectKey = objectKey

	if previous != "" && previous != objectKey {
		if err := s.fileStorage.DeleteObject(ctx, previous); err != nil {
			// The lesson already points at the new object; an orphan is harmless.
			s.log.Warn("failed to delete replaced lesson video", "lesson_id", lessonID.Hex(), "object_key", previous, "error", err)
		}
	}
	return lesson, nil
}

func (s *catalogService) GetLessonVideoURL(ctx context.Context, userID, courseID, lessonID primitive.ObjectID) (string, error) {
	enrollment, err := s.enrollmentRepo.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotEnrolled
		}
		return "", fmt.Errorf("load enrollment: %w", err)
	}
	// Completed learners keep access to the material.
	if enrollment.Status != domain.EnrollmentActive && enrollment.Status != domain.EnrollmentCompleted {
		return "", ErrNotEnrolled
	}

	lesson, err := s.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrLessonNotFound
		}
		return "", fmt.Errorf("load lesson: %w", err)
	}
	if lesson.CourseID != courseID || !lesson.Published {
		return "", ErrLessonNotFound
	}
	if !lesson.HasVideo() {
		return "", ErrNoVideo
	}

	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, lesson.VideoObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", s.mediaError("generate playback url", err)
	}
	return url, nil
}

// --- helpers ---

func (s *catalogService) ownedCourse(ctx context.Context, instructorID, courseID primitive.ObjectID) (*domain.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course.InstructorID != instructorID {
		return nil, ErrNotCourseOwner
	}
	return course, nil
}

func (s *catalogService) ownedLesson(ctx context.Context, instructorID, lessonID primitive.ObjectID) (*domain.Lesson, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if _, err := s.ownedCourse(ctx, instructorID, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *catalogService) invalidate(ctx context.Context, courseID primitive.ObjectID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateCourse(ctx, courseID); err != nil {
		s.log.Warn("catalog cache invalidation failed", "course_id", courseID.Hex(), "error", err)
	}
}

func (s *catalogService) mediaError(op string, err error) error {
	if errors.Is(err, storage.ErrStorageDisabled) {
		return ErrMediaUnavailable
	}
	s.log.Error("media storage call failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
