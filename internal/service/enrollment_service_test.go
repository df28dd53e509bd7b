package service

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type trackerFixture struct {
	enrollments *fakeEnrollmentRepo
	courses     *fakeCourseRepo
	lessons     *fakeLessonRepo
	metrics     *recordingMetrics
	svc         EnrollmentService

	userID    primitive.ObjectID
	courseID  primitive.ObjectID
	lessonIDs []primitive.ObjectID
}

// newTrackerFixture creates a published course with lessonCount lessons and
// one active enrollment in it.
func newTrackerFixture(t *testing.T, lessonCount, threshold int) *trackerFixture {
	t.Helper()
	ctx := context.Background()

	f := &trackerFixture{
		enrollments: newFakeEnrollmentRepo(),
		courses:     newFakeCourseRepo(),
		lessons:     newFakeLessonRepo(),
		metrics:     newRecordingMetrics(),
		userID:      primitive.NewObjectID(),
	}

	courseID, err := f.courses.Create(ctx, &domain.Course{
		InstructorID: primitive.NewObjectID(),
		Title:        "Distributed Systems",
		Currency:     "USD",
		Published:    true,
	})
	require.NoError(t, err)
	f.courseID = courseID

	for i := 0; i < lessonCount; i++ {
		id, err := f.lessons.Create(ctx, &domain.Lesson{CourseID: courseID, Title: "Lesson", Sequence: i, Published: true})
		require.NoError(t, err)
		f.lessonIDs = append(f.lessonIDs, id)
	}

	svc := NewEnrollmentService(
		f.enrollments,
		f.courses,
		NewCatalogLookup(f.courses, f.lessons),
		EnrollmentServiceConfig{CompletionThreshold: threshold, RecentLimit: 5},
		f.metrics,
		logger.NewNop(),
	)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.(*enrollmentService).now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	f.svc = svc

	_, err = svc.CreateEnrollment(ctx, f.userID, courseID, nil)
	require.NoError(t, err)
	return f
}

func (f *trackerFixture) record(t *testing.T, lesson int, watch int64, completed bool, score *float64) *EnrollmentProgress {
	t.Helper()
	p, err := f.svc.RecordLessonProgress(context.Background(), f.userID, f.courseID, f.lessonIDs[lesson], LessonProgressInput{
		WatchTime: watch,
		Completed: completed,
		Score:     score,
	})
	require.NoError(t, err)
	return p
}

func score(v float64) *float64 { return &v }

func TestRecordLessonProgress_FourOfFiveLessons(t *testing.T) {
	f := newTrackerFixture(t, 5, 100)

	var p *EnrollmentProgress
	for i := 0; i < 4; i++ {
		p = f.record(t, i, 60, true, nil)
	}

	assert.Equal(t, 80, p.ProgressPercentage)
	assert.Len(t, p.CompletedLessons, 4)
	assert.False(t, p.Completion.IsCompleted)
	assert.Equal(t, domain.EnrollmentActive, p.Status)
	require.NotNil(t, p.CurrentLesson)
	assert.Equal(t, f.lessonIDs[3], *p.CurrentLesson)
	assert.Equal(t, int64(240), p.TotalWatchTime)
}

func TestRecordLessonProgress_RepeatedLessonKeepsMaxWatchTime(t *testing.T) {
	f := newTrackerFixture(t, 5, 100)

	f.record(t, 0, 20, true, nil)
	p := f.record(t, 0, 30, true, nil)

	require.Len(t, p.CompletedLessons, 1)
	assert.Equal(t, int64(30), p.CompletedLessons[0].WatchTime)
	assert.Equal(t, int64(50), p.TotalWatchTime)
	assert.Equal(t, 20, p.ProgressPercentage)

	p = f.record(t, 0, 10, false, nil)
	require.Len(t, p.CompletedLessons, 1)
	assert.Equal(t, int64(30), p.CompletedLessons[0].WatchTime)
	assert.Equal(t, int64(60), p.TotalWatchTime)
}

func TestRecordLessonProgress_IncompleteReportOnlyAccumulatesTime(t *testing.T) {
	f := newTrackerFixture(t, 5, 100)

	p := f.record(t, 2, 15, false, nil)

	assert.Empty(t, p.CompletedLessons)
	assert.Equal(t, int64(15), p.TotalWatchTime)
	assert.Equal(t, 0, p.ProgressPercentage)
	require.NotNil(t, p.CurrentLesson)
	assert.Equal(t, f.lessonIDs[2], *p.CurrentLesson)
	assert.NotNil(t, p.LastAccessedAt)
}

func TestRecordLessonProgress_NotEnrolledLeavesNoTrace(t *testing.T) {
	f := newTrackerFixture(t, 3, 100)
	stranger := primitive.NewObjectID()

	_, err := f.svc.RecordLessonProgress(context.Background(), stranger, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 10, Completed: true})

	assert.ErrorIs(t, err, ErrNotEnrolled)
	assert.Zero(t, f.enrollments.applyCalls)
	enrollments, _ := f.enrollments.GetByUserID(context.Background(), stranger)
	assert.Empty(t, enrollments)
}

// flakyCatalog fails TotalLessons a set number of times before delegating.
type flakyCatalog struct {
	CatalogLookup
	failures int
}

var errCatalogDown = errors.New("catalog unavailable")

func (c *flakyCatalog) TotalLessons(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	if c.failures > 0 {
		c.failures--
		return 0, errCatalogDown
	}
	return c.CatalogLookup.TotalLessons(ctx, courseID)
}

func TestRecordLessonProgress_CatalogFailureLeavesEnrollmentUnchanged(t *testing.T) {
	f := newTrackerFixture(t, 4, 100)
	ctx := context.Background()
	tracker := f.svc.(*enrollmentService)
	tracker.catalog = &flakyCatalog{CatalogLookup: tracker.catalog, failures: 1}

	before, err := f.enrollments.GetByUserAndCourse(ctx, f.userID, f.courseID)
	require.NoError(t, err)

	_, err = f.svc.RecordLessonProgress(ctx, f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 30, Completed: true})
	require.ErrorIs(t, err, errCatalogDown)
	assert.Zero(t, f.enrollments.applyCalls)

	after, err := f.enrollments.GetByUserAndCourse(ctx, f.userID, f.courseID)
	require.NoError(t, err)
	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	// The client retry is the only report that counts.
	p := f.record(t, 0, 30, true, nil)
	assert.Equal(t, int64(30), p.TotalWatchTime)
	assert.Len(t, p.CompletedLessons, 1)
	assert.Equal(t, 25, p.ProgressPercentage)
}

func TestRecordLessonProgress_UpsertConflictIsRetryable(t *testing.T) {
	f := newTrackerFixture(t, 2, 100)
	f.enrollments.applyErr = repository.ErrConflict

	_, err := f.svc.RecordLessonProgress(context.Background(), f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 5, Completed: true})

	assert.ErrorIs(t, err, ErrProgressConflict)
	assert.Zero(t, f.metrics.progress)
}

func TestRecordLessonProgress_RejectsForeignAndUnpublishedLessons(t *testing.T) {
	f := newTrackerFixture(t, 3, 100)
	ctx := context.Background()

	foreign, err := f.lessons.Create(ctx, &domain.Lesson{CourseID: primitive.NewObjectID(), Title: "Elsewhere", Published: true})
	require.NoError(t, err)
	draft, err := f.lessons.Create(ctx, &domain.Lesson{CourseID: f.courseID, Title: "Draft"})
	require.NoError(t, err)

	for name, lessonID := range map[string]primitive.ObjectID{
		"other course": foreign,
		"unpublished":  draft,
		"unknown":      primitive.NewObjectID(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RecordLessonProgress(ctx, f.userID, f.courseID, lessonID, LessonProgressInput{WatchTime: 5, Completed: true})
			assert.ErrorIs(t, err, ErrLessonNotFound)
		})
	}
	assert.Zero(t, f.enrollments.applyCalls)
}

func TestRecordLessonProgress_ValidatesInput(t *testing.T) {
	f := newTrackerFixture(t, 3, 100)
	ctx := context.Background()

	_, err := f.svc.RecordLessonProgress(ctx, f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: -1})
	assert.ErrorIs(t, err, ErrInvalidProgress)

	_, err = f.svc.RecordLessonProgress(ctx, f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 1, Score: score(101)})
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestRecordLessonProgress_CompletesAtFullProgress(t *testing.T) {
	f := newTrackerFixture(t, 3, 100)

	f.record(t, 0, 60, true, score(80))
	f.record(t, 1, 60, true, nil)
	p := f.record(t, 2, 60, true, score(100))

	assert.Equal(t, 100, p.ProgressPercentage)
	assert.Equal(t, domain.EnrollmentCompleted, p.Status)
	assert.True(t, p.Completion.IsCompleted)
	assert.True(t, p.Completion.CertificateEligible)
	assert.NotEmpty(t, p.Completion.CertificateID)
	require.NotNil(t, p.Completion.CompletedAt)
	require.NotNil(t, p.Completion.FinalScore)
	assert.InDelta(t, 90.0, *p.Completion.FinalScore, 1e-9)
	assert.Equal(t, 1, f.metrics.completions)

	// A completed enrollment accepts no further progress and stays completed.
	_, err := f.svc.RecordLessonProgress(context.Background(), f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 5, Completed: true})
	assert.ErrorIs(t, err, ErrNotEnrolled)

	stored, err := f.svc.GetEnrollmentProgress(context.Background(), f.userID, f.courseID)
	require.NoError(t, err)
	assert.True(t, stored.Completion.IsCompleted)
	assert.Equal(t, p.Completion.CertificateID, stored.Completion.CertificateID)
}

func TestRecordLessonProgress_NoFinalScoreWithoutScores(t *testing.T) {
	f := newTrackerFixture(t, 1, 100)

	p := f.record(t, 0, 60, true, nil)

	assert.True(t, p.Completion.IsCompleted)
	assert.Nil(t, p.Completion.FinalScore)
}

func TestRecordLessonProgress_ConfigurableThreshold(t *testing.T) {
	f := newTrackerFixture(t, 5, 80)

	for i := 0; i < 3; i++ {
		p := f.record(t, i, 60, true, nil)
		assert.False(t, p.Completion.IsCompleted)
	}
	p := f.record(t, 3, 60, true, nil)

	assert.Equal(t, 80, p.ProgressPercentage)
	assert.True(t, p.Completion.IsCompleted)
	assert.Equal(t, domain.EnrollmentCompleted, p.Status)
}

func TestRecordLessonProgress_PercentageFollowsConcurrentCompletion(t *testing.T) {
	f := newTrackerFixture(t, 5, 100)
	enrollment, err := f.enrollments.GetByUserAndCourse(context.Background(), f.userID, f.courseID)
	require.NoError(t, err)

	// A second report lands between this report's upsert and its percentage write.
	f.enrollments.beforeSetPercentage = func() {
		_, err := f.enrollments.ApplyLessonProgress(context.Background(), enrollment.ID, domain.LessonProgressUpdate{
			LessonID:  f.lessonIDs[1],
			WatchTime: 10,
			Completed: true,
			At:        time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	p := f.record(t, 0, 10, true, nil)

	assert.Len(t, p.CompletedLessons, 2)
	assert.Equal(t, 40, p.ProgressPercentage)
	stored, err := f.enrollments.GetByID(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress.ProgressPercentage)
}

func TestRecordLessonProgress_PercentageUsesPublishedLessonCount(t *testing.T) {
	f := newTrackerFixture(t, 4, 100)
	_, err := f.lessons.Create(context.Background(), &domain.Lesson{CourseID: f.courseID, Title: "Draft"})
	require.NoError(t, err)

	p := f.record(t, 0, 10, true, nil)

	assert.Equal(t, 25, p.ProgressPercentage)
}

func TestCreateEnrollment(t *testing.T) {
	f := newTrackerFixture(t, 1, 100)
	ctx := context.Background()

	_, err := f.svc.CreateEnrollment(ctx, f.userID, f.courseID, nil)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	_, err = f.svc.CreateEnrollment(ctx, f.userID, primitive.NewObjectID(), nil)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	orderID := primitive.NewObjectID()
	e, err := f.svc.CreateEnrollment(ctx, primitive.NewObjectID(), f.courseID, &orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	assert.Equal(t, &orderID, e.OrderID)

	assert.Equal(t, 1, f.metrics.created[EnrollmentSourceGrant])
	assert.Equal(t, 1, f.metrics.created[EnrollmentSourceOrder])
}

func TestGetProgressSummary_NoEnrollments(t *testing.T) {
	f := newTrackerFixture(t, 1, 100)

	summary, err := f.svc.GetProgressSummary(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)

	assert.Equal(t, &ProgressSummary{RecentActivity: []RecentEnrollment{}}, summary)
}

func TestGetProgressSummary_IncludesCourseTitles(t *testing.T) {
	f := newTrackerFixture(t, 2, 100)
	f.record(t, 0, 90, true, nil)

	summary, err := f.svc.GetProgressSummary(context.Background(), f.userID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalEnrolled)
	assert.Equal(t, 1, summary.TotalInProgress)
	assert.Equal(t, int64(90), summary.TotalLearningTime)
	assert.Equal(t, 50.0, summary.AverageProgress)
	require.Len(t, summary.RecentActivity, 1)
	assert.Equal(t, "Distributed Systems", summary.RecentActivity[0].CourseTitle)
	assert.NotNil(t, summary.RecentActivity[0].LastActivityAt)
}

func TestSummarizeProgress(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	completedAt := func(h int) []domain.CompletedLesson {
		return []domain.CompletedLesson{{LessonID: primitive.NewObjectID(), CompletedAt: base.Add(time.Duration(h) * time.Hour)}}
	}

	done := domain.Enrollment{ID: primitive.NewObjectID(), EnrolledAt: base,
		Progress:   domain.Progress{ProgressPercentage: 100, TotalWatchTime: 100, CompletedLessons: completedAt(1)},
		Completion: domain.Completion{IsCompleted: true}}
	started := domain.Enrollment{ID: primitive.NewObjectID(), EnrolledAt: base,
		Progress: domain.Progress{ProgressPercentage: 33, TotalWatchTime: 40, CompletedLessons: completedAt(5)}}
	untouchedOld := domain.Enrollment{ID: primitive.NewObjectID(), EnrolledAt: base.Add(time.Hour),
		Progress: domain.Progress{TotalWatchTime: 7}}
	untouchedNew := domain.Enrollment{ID: primitive.NewObjectID(), EnrolledAt: base.Add(2 * time.Hour)}

	summary := summarizeProgress([]domain.Enrollment{untouchedOld, done, untouchedNew, started}, 3)

	assert.Equal(t, 4, summary.TotalEnrolled)
	assert.Equal(t, 1, summary.TotalCompleted)
	assert.Equal(t, 1, summary.TotalInProgress)
	assert.Equal(t, 2, summary.TotalNotStarted)
	assert.Equal(t, int64(147), summary.TotalLearningTime)
	assert.Equal(t, 33.25, summary.AverageProgress)

	require.Len(t, summary.RecentActivity, 3)
	assert.Equal(t, started.ID, summary.RecentActivity[0].EnrollmentID)
	assert.Equal(t, done.ID, summary.RecentActivity[1].EnrollmentID)
	assert.Equal(t, untouchedNew.ID, summary.RecentActivity[2].EnrollmentID)
	assert.Nil(t, summary.RecentActivity[2].LastActivityAt)
}

func TestListMyEnrollments(t *testing.T) {
	f := newTrackerFixture(t, 2, 100)

	list, err := f.svc.ListMyEnrollments(context.Background(), f.userID)
	require.NoError(t, err)

	require.Len(t, list, 1)
	require.NotNil(t, list[0].Course)
	assert.Equal(t, f.courseID, list[0].Course.ID)
	assert.Equal(t, "Distributed Systems", list[0].Course.Title)
	assert.Equal(t, domain.EnrollmentActive, list[0].Status)

	empty, err := f.svc.ListMyEnrollments(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNotesAndBookmarks(t *testing.T) {
	f := newTrackerFixture(t, 2, 100)
	ctx := context.Background()

	note, err := f.svc.AddNote(ctx, f.userID, f.courseID, NoteInput{LessonID: f.lessonIDs[0], Timestamp: 42, Content: "  check the quorum math  "})
	require.NoError(t, err)
	assert.Equal(t, "check the quorum math", note.Content)

	_, err = f.svc.AddNote(ctx, f.userID, f.courseID, NoteInput{LessonID: f.lessonIDs[0], Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidNote)

	_, err = f.svc.AddNote(ctx, primitive.NewObjectID(), f.courseID, NoteInput{LessonID: f.lessonIDs[0], Content: "hi"})
	assert.ErrorIs(t, err, ErrNotEnrolled)

	bookmark, err := f.svc.AddBookmark(ctx, f.userID, f.courseID, BookmarkInput{LessonID: f.lessonIDs[1], Timestamp: 90, Title: "Raft"})
	require.NoError(t, err)

	notes, err := f.svc.ListNotes(ctx, f.userID, f.courseID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)

	// Another user cannot delete this user's bookmark.
	err = f.svc.DeleteBookmark(ctx, primitive.NewObjectID(), bookmark.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	bookmarks, err := f.svc.ListBookmarks(ctx, f.userID, f.courseID)
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1)

	require.NoError(t, f.svc.DeleteBookmark(ctx, f.userID, bookmark.ID))
	require.NoError(t, f.svc.DeleteNote(ctx, f.userID, note.ID))
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, f.userID, note.ID), ErrNotFound)

	bookmarks, err = f.svc.ListBookmarks(ctx, f.userID, f.courseID)
	require.NoError(t, err)
	assert.Empty(t, bookmarks)
}

func TestSetEnrollmentStatus(t *testing.T) {
	f := newTrackerFixture(t, 1, 100)
	ctx := context.Background()
	enrollment, err := f.enrollments.GetByUserAndCourse(ctx, f.userID, f.courseID)
	require.NoError(t, err)

	dropped, err := f.svc.SetEnrollmentStatus(ctx, enrollment.ID, domain.EnrollmentDropped)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentDropped, dropped.Status)

	_, err = f.svc.RecordLessonProgress(ctx, f.userID, f.courseID, f.lessonIDs[0], LessonProgressInput{WatchTime: 5, Completed: true})
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = f.svc.SetEnrollmentStatus(ctx, enrollment.ID, domain.EnrollmentSuspended)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.SetEnrollmentStatus(ctx, enrollment.ID, domain.EnrollmentActive)
	require.NoError(t, err)
	p := f.record(t, 0, 5, true, nil)
	assert.True(t, p.Completion.IsCompleted)

	_, err = f.svc.SetEnrollmentStatus(ctx, enrollment.ID, domain.EnrollmentActive)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.SetEnrollmentStatus(ctx, primitive.NewObjectID(), domain.EnrollmentDropped)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}
