package repository

import (
	"alcyxob/course-marketplace/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrConflict     = RepositoryError("concurrent modification")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// CourseRepository defines the interface for interacting with course data.
type CourseRepository interface {
	Create(ctx context.Context, course *domain.Course) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Course, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Course, error)
	ListPublished(ctx context.Context) ([]domain.Course, error)
	SetPublished(ctx context.Context, id, instructorID primitive.ObjectID, published bool) error
}

// LessonRepository defines the interface for interacting with lesson data.
type LessonRepository interface {
	Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Lesson, error)
	GetByCourseID(ctx context.Context, courseID primitive.ObjectID, publishedOnly bool) ([]domain.Lesson, error)
	CountPublished(ctx context.Context, courseID primitive.ObjectID) (int, error)
	PublishByCourseID(ctx context.Context, courseID primitive.ObjectID) error
	SetVideoObjectKey(ctx context.Context, id primitive.ObjectID, objectKey string) error
}

// OrderRepository defines the interface for interacting with order data.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
	// UpdateStatus moves an order from one status to another; ErrConflict if it was not in `from`.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, paymentRef string) error
}

// EnrollmentRepository defines the interface for interacting with enrollment data.
// All mutations are single-document updates.
type EnrollmentRepository interface {
	// Create fails with ErrDuplicate if the (userId, courseId) pair already exists.
	Create(ctx context.Context, enrollment *domain.Enrollment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Enrollment, error)
	GetByUserAndCourse(ctx context.Context, userID, courseID primitive.ObjectID) (*domain.Enrollment, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Enrollment, error)

	// ApplyLessonProgress upserts the completed-lesson entry keyed by lesson id,
	// accumulates watch time and moves the current-lesson pointer in one atomic
	// step. Only active enrollments match; otherwise ErrNotFound.
	ApplyLessonProgress(ctx context.Context, enrollmentID primitive.ObjectID, update domain.LessonProgressUpdate) (*domain.Enrollment, error)
	// SetProgressPercentage writes pct only while the completed-lessons set still
	// has completedCount entries. Returns false if the guard did not match.
	SetProgressPercentage(ctx context.Context, enrollmentID primitive.ObjectID, completedCount, pct int) (bool, error)
	// MarkCompleted writes completion and status=completed if the enrollment is
	// still not completed. Returns false if it already was.
	MarkCompleted(ctx context.Context, enrollmentID primitive.ObjectID, completion domain.Completion) (bool, error)
	UpdateStatus(ctx context.Context, enrollmentID primitive.ObjectID, from, to domain.EnrollmentStatus) error

	AddNote(ctx context.Context, enrollmentID primitive.ObjectID, note domain.Note) error
	AddBookmark(ctx context.Context, enrollmentID primitive.ObjectID, bookmark domain.Bookmark) error
	// DeleteNote / DeleteBookmark only match sub-documents of the user's own
	// enrollments; ErrNotFound otherwise.
	DeleteNote(ctx context.Context, userID, noteID primitive.ObjectID) error
	DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error
}
