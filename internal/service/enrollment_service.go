package service

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/repository"
	"alcyxob/course-marketplace/internal/tracing"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// --- Error Definitions ---
var (
	ErrNotEnrolled             = errors.New("no active enrollment for this course")
	ErrAlreadyEnrolled         = errors.New("user is already enrolled in this course")
	ErrEnrollmentNotFound      = errors.New("enrollment not found")
	ErrLessonNotFound          = errors.New("lesson not found in this course")
	ErrNotFound                = errors.New("not found")
	ErrInvalidProgress         = errors.New("invalid progress report")
	ErrInvalidNote             = errors.New("note content is required")
	ErrInvalidStatusTransition = errors.New("status transition not allowed")
	ErrProgressConflict        = errors.New("lesson progress is being updated concurrently, retry")
)

// Percentage writes lose to concurrent reports at most a few times before the
// competing writer's own recompute has already stored a fresher value.
const maxPercentageSyncAttempts = 3

const (
	EnrollmentSourceOrder = "order"
	EnrollmentSourceGrant = "grant"
)

// CatalogLookup is the read-only catalog collaborator of the tracker.
type CatalogLookup interface {
	// TotalLessons returns the number of published lessons of a course.
	TotalLessons(ctx context.Context, courseID primitive.ObjectID) (int, error)
	// LessonCourse resolves the course owning a published lesson.
	LessonCourse(ctx context.Context, lessonID primitive.ObjectID) (primitive.ObjectID, error)
}

// Metrics receives domain events worth counting.
type Metrics interface {
	LessonProgressRecorded(completed bool)
	EnrollmentCreated(source string)
	EnrollmentCompleted()
}

type nopMetrics struct{}

func (nopMetrics) LessonProgressRecorded(bool) {}
func (nopMetrics) EnrollmentCreated(string)    {}
func (nopMetrics) EnrollmentCompleted()        {}

// --- Inputs & projections ---

// LessonProgressInput is one progress report from the player.
// WatchTime is the seconds watched since the previous report.
type LessonProgressInput struct {
	WatchTime int64
	Completed bool
	Score     *float64
}

type NoteInput struct {
	LessonID  primitive.ObjectID
	Timestamp int
	Content   string
}

type BookmarkInput struct {
	LessonID  primitive.ObjectID
	Timestamp int
	Title     string
}

// EnrollmentProgress is the typed read model of an enrollment's progress.
type EnrollmentProgress struct {
	EnrollmentID       primitive.ObjectID       `json:"enrollmentId"`
	CourseID           primitive.ObjectID       `json:"courseId"`
	Status             domain.EnrollmentStatus  `json:"status"`
	CompletedLessons   []domain.CompletedLesson `json:"completedLessons"`
	CurrentLesson      *primitive.ObjectID      `json:"currentLesson,omitempty"`
	ProgressPercentage int                      `json:"progressPercentage"`
	TotalWatchTime     int64                    `json:"totalWatchTime"`
	LastAccessedAt     *time.Time               `json:"lastAccessedAt,omitempty"`
	Completion         domain.Completion        `json:"completion"`
}

// CourseSummary is the course metadata shown next to an enrollment.
type CourseSummary struct {
	ID           primitive.ObjectID `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Category     string             `json:"category,omitempty"`
	Level        string             `json:"level,omitempty"`
	InstructorID primitive.ObjectID `json:"instructorId"`
}

// DashboardEnrollment is the per-enrollment read contract of the dashboard.
type DashboardEnrollment struct {
	EnrollmentID       primitive.ObjectID      `json:"enrollmentId"`
	Course             *CourseSummary          `json:"course"`
	Status             domain.EnrollmentStatus `json:"status"`
	ProgressPercentage int                     `json:"progressPercentage"`
	IsCompleted        bool                    `json:"isCompleted"`
	CompletedAt        *time.Time              `json:"completedAt,omitempty"`
	EnrolledAt         time.Time               `json:"enrolledAt"`
}

// RecentEnrollment is one entry of the summary's recent-activity list.
type RecentEnrollment struct {
	EnrollmentID       primitive.ObjectID `json:"enrollmentId"`
	CourseID           primitive.ObjectID `json:"courseId"`
	CourseTitle        string             `json:"courseTitle,omitempty"`
	ProgressPercentage int                `json:"progressPercentage"`
	IsCompleted        bool               `json:"isCompleted"`
	LastActivityAt     *time.Time         `json:"lastActivityAt,omitempty"`
}

// ProgressSummary aggregates all enrollments of a user.
type ProgressSummary struct {
	TotalEnrolled     int                `json:"totalEnrolled"`
	TotalCompleted    int                `json:"totalCompleted"`
	TotalInProgress   int                `json:"totalInProgress"`
	TotalNotStarted   int                `json:"totalNotStarted"`
	TotalLearningTime int64              `json:"totalLearningTime"` // Seconds
	AverageProgress   float64            `json:"averageProgress"`
	RecentActivity    []RecentEnrollment `json:"recentActivity"`
}

// EnrollmentServiceConfig holds the progress rules.
type EnrollmentServiceConfig struct {
	CompletionThreshold int
	RecentLimit         int
}

// --- Service Interface ---

type EnrollmentService interface {
	CreateEnrollment(ctx context.Context, userID, courseID primitive.ObjectID, orderID *primitive.ObjectID) (*domain.Enrollment, error)
	RecordLessonProgress(ctx context.Context, userID, courseID, lessonID primitive.ObjectID, input LessonProgressInput) (*EnrollmentProgress, error)
	GetEnrollmentProgress(ctx context.Context, userID, courseID primitive.ObjectID) (*EnrollmentProgress, error)
	GetProgressSummary(ctx context.Context, userID primitive.ObjectID) (*ProgressSummary, error)
	ListMyEnrollments(ctx context.Context, userID primitive.ObjectID) ([]DashboardEnrollment, error)

	AddNote(ctx context.Context, userID, courseID primitive.ObjectID, input NoteInput) (*domain.Note, error)
	AddBookmark(ctx context.Context, userID, courseID primitive.ObjectID, input BookmarkInput) (*domain.Bookmark, error)
	ListNotes(ctx context.Context, userID, courseID primitive.ObjectID) ([]domain.Note, error)
	ListBookmarks(ctx context.Context, userID, courseID primitive.ObjectID) ([]domain.Bookmark, error)
	DeleteNote(ctx context.Context, userID, noteID primitive.ObjectID) error
	DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error

	// SetEnrollmentStatus is the administrative path for dropping, suspending
	// and reinstating enrollments.
	SetEnrollmentStatus(ctx context.Context, enrollmentID primitive.ObjectID, status domain.EnrollmentStatus) (*domain.Enrollment, error)
}

// --- Service Implementation ---

type enrollmentService struct {
	enrollmentRepo repository.EnrollmentRepository
	courseRepo     repository.CourseRepository
	catalog        CatalogLookup
	cfg            EnrollmentServiceConfig
	metrics        Metrics
	log            *logger.Logger
	now            func() time.Time
}

// NewEnrollmentService creates the enrollment progress tracker.
func NewEnrollmentService(
	enrollmentRepo repository.EnrollmentRepository,
	courseRepo repository.CourseRepository,
	catalog CatalogLookup,
	cfg EnrollmentServiceConfig,
	metrics Metrics,
	log *logger.Logger,
) EnrollmentService {
	if cfg.CompletionThreshold < 1 || cfg.CompletionThreshold > 100 {
		cfg.CompletionThreshold = domain.DefaultCompletionThreshold
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
		catalog:        catalog,
		cfg:            cfg,
		metrics:        metrics,
		log:            log.With("service", "EnrollmentService"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateEnrollment grants a user access to a course. It never overwrites an
// existing enrollment for the pair.
func (s *enrollmentService) CreateEnrollment(ctx context.Context, userID, courseID primitive.ObjectID, orderID *primitive.ObjectID) (*domain.Enrollment, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}

	enrollment := &domain.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		OrderID:  orderID,
		Status:   domain.EnrollmentActive,
	}
	id, err := s.enrollmentRepo.Create(ctx, enrollment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	enrollment.ID = id

	source := EnrollmentSourceGrant
	if orderID != nil {
		source = EnrollmentSourceOrder
	}
	s.metrics.EnrollmentCreated(source)
	s.log.Info("enrollment created", "enrollment_id", id.Hex(), "course_id", courseID.Hex(), "source", source)
	return enrollment, nil
}

// RecordLessonProgress applies one progress report and, when the completion
// threshold is first crossed, completes the enrollment.
func (s *enrollmentService) RecordLessonProgress(ctx context.Context, userID, courseID, lessonID primitive.ObjectID, input LessonProgressInput) (*EnrollmentProgress, error) {
	ctx, span := tracing.Start(ctx, "EnrollmentService.RecordLessonProgress")
	defer span.End()
	span.SetAttributes(
		attribute.String("course.id", courseID.Hex()),
		attribute.String("lesson.id", lessonID.Hex()),
		attribute.Bool("lesson.completed", input.Completed),
	)

	if input.WatchTime < 0 {
		return nil, fmt.Errorf("%w: watch time must not be negative", ErrInvalidProgress)
	}
	if input.Score != nil && (math.IsNaN(*input.Score) || *input.Score < 0 || *input.Score > 100) {
		return nil, fmt.Errorf("%w: score must be within 0..100", ErrInvalidProgress)
	}

	enrollment, err := s.activeEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	owningCourse, err := s.catalog.LessonCourse(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if owningCourse != courseID {
		return nil, ErrLessonNotFound
	}
	// Resolve everything the catalog has to say before the first write, so a
	// lookup failure leaves the enrollment untouched.
	totalLessons, err := s.catalog.TotalLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.enrollmentRepo.ApplyLessonProgress(ctx, enrollment.ID, domain.LessonProgressUpdate{
		LessonID:  lessonID,
		WatchTime: input.WatchTime,
		Completed: input.Completed,
		Score:     input.Score,
		At:        now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Dropped or suspended between the read and the update
			return nil, ErrNotEnrolled
		}
		if errors.Is(err, repository.ErrConflict) {
			// Kept losing the lesson upsert to concurrent reports; nothing was written.
			return nil, ErrProgressConflict
		}
		return nil, fmt.Errorf("apply lesson progress: %w", err)
	}
	s.metrics.LessonProgressRecorded(input.Completed)

	updated, err = s.syncProgressPercentage(ctx, updated, totalLessons)
	if err != nil {
		return nil, err
	}

	if err := s.completeIfThresholdReached(ctx, updated, now); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("progress.percentage", updated.Progress.ProgressPercentage),
		attribute.Bool("enrollment.completed", updated.Completion.IsCompleted),
	)
	return toEnrollmentProgress(updated), nil
}

// syncProgressPercentage recomputes the percentage from the stored completed
// set and writes it guarded on that set's size. On a lost race it reloads.
func (s *enrollmentService) syncProgressPercentage(ctx context.Context, e *domain.Enrollment, totalLessons int) (*domain.Enrollment, error) {
	for attempt := 0; attempt < maxPercentageSyncAttempts; attempt++ {
		completed := len(e.Progress.CompletedLessons)
		pct := domain.ProgressPercentage(completed, totalLessons)
		if pct == e.Progress.ProgressPercentage {
			return e, nil
		}

		ok, err := s.enrollmentRepo.SetProgressPercentage(ctx, e.ID, completed, pct)
		if err != nil {
			return nil, fmt.Errorf("set progress percentage: %w", err)
		}
		if ok {
			e.Progress.ProgressPercentage = pct
			return e, nil
		}

		e, err = s.enrollmentRepo.GetByID(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("reload enrollment: %w", err)
		}
	}
	// A concurrent report owns the newer snapshot and will write its own value.
	s.log.Warn("progress percentage sync gave up after concurrent updates", "enrollment_id", e.ID.Hex())
	return e, nil
}

func (s *enrollmentService) completeIfThresholdReached(ctx context.Context, e *domain.Enrollment, now time.Time) error {
	if e.Completion.IsCompleted || e.Progress.ProgressPercentage < s.cfg.CompletionThreshold {
		return nil
	}

	completedAt := now
	completion := domain.Completion{
		IsCompleted:         true,
		CompletedAt:         &completedAt,
		FinalScore:          domain.MeanScore(e.Progress.CompletedLessons),
		CertificateEligible: true,
		CertificateID:       uuid.NewString(),
	}
	ok, err := s.enrollmentRepo.MarkCompleted(ctx, e.ID, completion)
	if err != nil {
		return fmt.Errorf("mark enrollment completed: %w", err)
	}
	if !ok {
		// Another report completed it first; keep its completion block.
		current, err := s.enrollmentRepo.GetByID(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("reload enrollment: %w", err)
		}
		e.Completion = current.Completion
		e.Status = current.Status
		return nil
	}

	e.Completion = completion
	e.Status = domain.EnrollmentCompleted
	s.metrics.EnrollmentCompleted()
	s.log.Info("enrollment completed",
		"enrollment_id", e.ID.Hex(),
		"course_id", e.CourseID.Hex(),
		"progress", e.Progress.ProgressPercentage,
		"threshold", s.cfg.CompletionThreshold,
	)
	return nil
}

// GetEnrollmentProgress returns the progress projection of the user's enrollment in any status.
func (s *enrollmentService) GetEnrollmentProgress(ctx context.Context, userID, courseID primitive.ObjectID) (*EnrollmentProgress, error) {
	enrollment, err := s.enrollmentRepo.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	return toEnrollmentProgress(enrollment), nil
}

// GetProgressSummary aggregates every enrollment of the user. Pure read.
func (s *enrollmentService) GetProgressSummary(ctx context.Context, userID primitive.ObjectID) (*ProgressSummary, error) {
	enrollments, err := s.enrollmentRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	summary := summarizeProgress(enrollments, s.cfg.RecentLimit)
	if len(summary.RecentActivity) == 0 {
		return summary, nil
	}

	ids := make([]primitive.ObjectID, 0, len(summary.RecentActivity))
	for _, r := range summary.RecentActivity {
		ids = append(ids, r.CourseID)
	}
	courses, err := s.coursesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range summary.RecentActivity {
		if c, ok := courses[summary.RecentActivity[i].CourseID]; ok {
			summary.RecentActivity[i].CourseTitle = c.Title
		}
	}
	return summary, nil
}

// summarizeProgress buckets enrollments and picks the most recently touched ones.
func summarizeProgress(enrollments []domain.Enrollment, recentLimit int) *ProgressSummary {
	summary := &ProgressSummary{RecentActivity: []RecentEnrollment{}}
	if len(enrollments) == 0 {
		return summary
	}

	totalProgress := 0
	for _, e := range enrollments {
		summary.TotalEnrolled++
		summary.TotalLearningTime += e.Progress.TotalWatchTime
		totalProgress += e.Progress.ProgressPercentage

		switch {
		case e.Completion.IsCompleted:
			summary.TotalCompleted++
		case e.Progress.ProgressPercentage > 0:
			summary.TotalInProgress++
		default:
			summary.TotalNotStarted++
		}
	}
	avg := float64(totalProgress) / float64(len(enrollments))
	summary.AverageProgress = math.Round(avg*100) / 100

	sorted := make([]domain.Enrollment, len(enrollments))
	copy(sorted, enrollments)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].LastCompletedAt(), sorted[j].LastCompletedAt()
		if ti.Equal(tj) {
			return sorted[i].EnrolledAt.After(sorted[j].EnrolledAt)
		}
		return ti.After(tj)
	})
	if len(sorted) > recentLimit {
		sorted = sorted[:recentLimit]
	}
	for _, e := range sorted {
		recent := RecentEnrollment{
			EnrollmentID:       e.ID,
			CourseID:           e.CourseID,
			ProgressPercentage: e.Progress.ProgressPercentage,
			IsCompleted:        e.Completion.IsCompleted,
		}
		if last := e.LastCompletedAt(); !last.IsZero() {
			recent.LastActivityAt = &last
		}
		summary.RecentActivity = append(summary.RecentActivity, recent)
	}
	return summary
}

// ListMyEnrollments returns the dashboard projection of all enrollments.
func (s *enrollmentService) ListMyEnrollments(ctx context.Context, userID primitive.ObjectID) ([]DashboardEnrollment, error) {
	enrollments, err := s.enrollmentRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return []DashboardEnrollment{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := s.coursesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]DashboardEnrollment, 0, len(enrollments))
	for _, e := range enrollments {
		entry := DashboardEnrollment{
			EnrollmentID:       e.ID,
			Status:             e.Status,
			ProgressPercentage: e.Progress.ProgressPercentage,
			IsCompleted:        e.Completion.IsCompleted,
			CompletedAt:        e.Completion.CompletedAt,
			EnrolledAt:         e.EnrolledAt,
		}
		if c, ok := courses[e.CourseID]; ok {
			entry.Course = &CourseSummary{
				ID:           c.ID,
				Title:        c.Title,
				Description:  c.Description,
				Category:     c.Category,
				Level:        c.Level,
				InstructorID: c.InstructorID,
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// === Notes & bookmarks ===

func (s *enrollmentService) AddNote(ctx context.Context, userID, courseID primitive.ObjectID, input NoteInput) (*domain.Note, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrInvalidNote
	}
	enrollment, err := s.annotatableEnrollment(ctx, userID, courseID, input.LessonID, input.Timestamp)
	if err != nil {
		return nil, err
	}

	note := domain.Note{
		ID:        primitive.NewObjectID(),
		LessonID:  input.LessonID,
		Timestamp: input.Timestamp,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.enrollmentRepo.AddNote(ctx, enrollment.ID, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("add note: %w", err)
	}
	return &note, nil
}

func (s *enrollmentService) AddBookmark(ctx context.Context, userID, courseID primitive.ObjectID, input BookmarkInput) (*domain.Bookmark, error) {
	enrollment, err := s.annotatableEnrollment(ctx, userID, courseID, input.LessonID, input.Timestamp)
	if err != nil {
		return nil, err
	}

	bookmark := domain.Bookmark{
		ID:        primitive.NewObjectID(),
		LessonID:  input.LessonID,
		Timestamp: input.Timestamp,
		Title:     strings.TrimSpace(input.Title),
		CreatedAt: s.now(),
	}
	if err := s.enrollmentRepo.AddBookmark(ctx, enrollment.ID, bookmark); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("add bookmark: %w", err)
	}
	return &bookmark, nil
}

func (s *enrollmentService) ListNotes(ctx context.Context, userID, courseID primitive.ObjectID) ([]domain.Note, error) {
	enrollment, err := s.activeEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment.Notes == nil {
		return []domain.Note{}, nil
	}
	return enrollment.Notes, nil
}

func (s *enrollmentService) ListBookmarks(ctx context.Context, userID, courseID primitive.ObjectID) ([]domain.Bookmark, error) {
	enrollment, err := s.activeEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment.Bookmarks == nil {
		return []domain.Bookmark{}, nil
	}
	return enrollment.Bookmarks, nil
}

func (s *enrollmentService) DeleteNote(ctx context.Context, userID, noteID primitive.ObjectID) error {
	if err := s.enrollmentRepo.DeleteNote(ctx, userID, noteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (s *enrollmentService) DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error {
	if err := s.enrollmentRepo.DeleteBookmark(ctx, userID, bookmarkID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// === Administration ===

func (s *enrollmentService) SetEnrollmentStatus(ctx context.Context, enrollmentID primitive.ObjectID, status domain.EnrollmentStatus) (*domain.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if !enrollment.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, enrollment.Status, status)
	}

	if err := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, enrollment.Status, status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: enrollment changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}
	s.log.Info("enrollment status changed", "enrollment_id", enrollmentID.Hex(), "from", enrollment.Status, "to", status)
	enrollment.Status = status
	return enrollment, nil
}

// --- helpers ---

func (s *enrollmentService) activeEnrollment(ctx context.Context, userID, courseID primitive.ObjectID) (*domain.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if !enrollment.IsActive() {
		return nil, ErrNotEnrolled
	}
	return enrollment, nil
}

func (s *enrollmentService) annotatableEnrollment(ctx context.Context, userID, courseID, lessonID primitive.ObjectID, timestamp int) (*domain.Enrollment, error) {
	if timestamp < 0 {
		return nil, fmt.Errorf("%w: timestamp must not be negative", ErrInvalidProgress)
	}
	enrollment, err := s.activeEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	owningCourse, err := s.catalog.LessonCourse(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if owningCourse != courseID {
		return nil, ErrLessonNotFound
	}
	return enrollment, nil
}

func (s *enrollmentService) coursesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Course, error) {
	courses, err := s.courseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	byID := make(map[primitive.ObjectID]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	return byID, nil
}

func toEnrollmentProgress(e *domain.Enrollment) *EnrollmentProgress {
	completed := e.Progress.CompletedLessons
	if completed == nil {
		completed = []domain.CompletedLesson{}
	}
	return &EnrollmentProgress{
		EnrollmentID:       e.ID,
		CourseID:           e.CourseID,
		Status:             e.Status,
		CompletedLessons:   completed,
		CurrentLesson:      e.Progress.CurrentLesson,
		ProgressPercentage: e.Progress.ProgressPercentage,
		TotalWatchTime:     e.Progress.TotalWatchTime,
		LastAccessedAt:     e.Progress.LastAccessedAt,
		Completion:         e.Completion,
	}
}
