package domain

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EnrollmentStatus type for the enrollment lifecycle
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed" // Set by the progress path only
	EnrollmentDropped   EnrollmentStatus = "dropped"   // Administrative withdrawal
	EnrollmentSuspended EnrollmentStatus = "suspended" // Administrative hold
)

// DefaultCompletionThreshold is the progress percentage at which an enrollment
// becomes completed when no threshold is configured.
const DefaultCompletionThreshold = 100

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentActive, EnrollmentCompleted, EnrollmentDropped, EnrollmentSuspended:
		return true
	}
	return false
}

// CanTransitionTo reports whether an administrative action may move an
// enrollment from s to next. Completed enrollments are final.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentActive:
		return next == EnrollmentDropped || next == EnrollmentSuspended
	case EnrollmentSuspended, EnrollmentDropped:
		return next == EnrollmentActive
	}
	return false
}

// CompletedLesson is one entry of the completed-lessons set, unique by LessonID.
type CompletedLesson struct {
	LessonID    primitive.ObjectID `bson:"lessonId" json:"lessonId"`
	CompletedAt time.Time          `bson:"completedAt" json:"completedAt"`
	WatchTime   int64              `bson:"watchTime" json:"watchTime"` // Seconds, max of reported values
	Score       *float64           `bson:"score,omitempty" json:"score,omitempty"`
}

// Progress is the derived learning state of an enrollment.
type Progress struct {
	CompletedLessons   []CompletedLesson   `bson:"completedLessons" json:"completedLessons"`
	CurrentLesson      *primitive.ObjectID `bson:"currentLesson,omitempty" json:"currentLesson,omitempty"`
	ProgressPercentage int                 `bson:"progressPercentage" json:"progressPercentage"`
	TotalWatchTime     int64               `bson:"totalWatchTime" json:"totalWatchTime"` // Seconds, only increases
	LastAccessedAt     *time.Time          `bson:"lastAccessedAt,omitempty" json:"lastAccessedAt,omitempty"`
}

// Completion is written once, when the completion threshold is first crossed.
type Completion struct {
	IsCompleted         bool       `bson:"isCompleted" json:"isCompleted"`
	CompletedAt         *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	FinalScore          *float64   `bson:"finalScore,omitempty" json:"finalScore,omitempty"`
	CertificateEligible bool       `bson:"certificateEligible" json:"certificateEligible"`
	CertificateID       string     `bson:"certificateId,omitempty" json:"certificateId,omitempty"`
}

// Note is a learner-authored annotation at a position in a lesson.
type Note struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	LessonID  primitive.ObjectID `bson:"lessonId" json:"lessonId"`
	Timestamp int                `bson:"timestamp" json:"timestamp"` // Seconds into the lesson
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Bookmark marks a position in a lesson.
type Bookmark struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	LessonID  primitive.ObjectID `bson:"lessonId" json:"lessonId"`
	Timestamp int                `bson:"timestamp" json:"timestamp"`
	Title     string             `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Enrollment is one learner's relationship to one course. (UserID, CourseID) is unique.
type Enrollment struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	CourseID   primitive.ObjectID  `bson:"courseId" json:"courseId"`
	OrderID    *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"` // Nil when granted by an instructor
	Status     EnrollmentStatus    `bson:"status" json:"status"`
	Progress   Progress            `bson:"progress" json:"progress"`
	Completion Completion          `bson:"completion" json:"completion"`
	Notes      []Note              `bson:"notes" json:"notes"`
	Bookmarks  []Bookmark          `bson:"bookmarks" json:"bookmarks"`
	EnrolledAt time.Time           `bson:"enrolledAt" json:"enrolledAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentActive
}

// CompletedLesson returns the entry for lessonID, or nil.
func (e *Enrollment) CompletedLesson(lessonID primitive.ObjectID) *CompletedLesson {
	for i := range e.Progress.CompletedLessons {
		if e.Progress.CompletedLessons[i].LessonID == lessonID {
			return &e.Progress.CompletedLessons[i]
		}
	}
	return nil
}

// LastCompletedAt is the latest CompletedAt among completed lessons, zero if none.
func (e *Enrollment) LastCompletedAt() time.Time {
	var last time.Time
	for _, cl := range e.Progress.CompletedLessons {
		if cl.CompletedAt.After(last) {
			last = cl.CompletedAt
		}
	}
	return last
}

// LessonProgressUpdate is a single progress report for one lesson.
// WatchTime is the increment for this report, not a running total.
type LessonProgressUpdate struct {
	LessonID  primitive.ObjectID
	WatchTime int64
	Completed bool
	Score     *float64
	At        time.Time
}

// ProgressPercentage returns round(100*completed/total) clamped to [0, 100].
func ProgressPercentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if p > 100 {
		return 100
	}
	return p
}

// MeanScore is the arithmetic mean of the scored lessons, nil when none is scored.
func MeanScore(lessons []CompletedLesson) *float64 {
	var sum float64
	n := 0
	for _, cl := range lessons {
		if cl.Score == nil {
			continue
		}
		sum += *cl.Score
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
