package service

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repositories mirroring the single-document semantics of the
// Mongo implementations.

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[primitive.ObjectID]*domain.Enrollment
	seq         int

	// Hooks for driving race scenarios.
	beforeSetPercentage func()
	applyErr            error
	applyCalls          int
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: map[primitive.ObjectID]*domain.Enrollment{}}
}

func cloneEnrollment(e *domain.Enrollment) *domain.Enrollment {
	c := *e
	c.Progress.CompletedLessons = append([]domain.CompletedLesson{}, e.Progress.CompletedLessons...)
	c.Notes = append([]domain.Note{}, e.Notes...)
	c.Bookmarks = append([]domain.Bookmark{}, e.Bookmarks...)
	return &c
}

func (r *fakeEnrollmentRepo) Create(_ context.Context, e *domain.Enrollment) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	r.seq++
	stored := cloneEnrollment(e)
	stored.ID = primitive.NewObjectID()
	// Distinct, ordered enrollment times.
	stored.EnrolledAt = time.Date(2026, 1, 1, 0, 0, r.seq, 0, time.UTC)
	stored.UpdatedAt = stored.EnrolledAt
	if stored.Status == "" {
		stored.Status = domain.EnrollmentActive
	}
	r.enrollments[stored.ID] = stored
	e.EnrolledAt = stored.EnrolledAt
	return stored.ID, nil
}

func (r *fakeEnrollmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEnrollment(e), nil
}

func (r *fakeEnrollmentRepo) GetByUserAndCourse(_ context.Context, userID, courseID primitive.ObjectID) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return cloneEnrollment(e), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeEnrollmentRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Enrollment{}
	for _, e := range r.enrollments {
		if e.UserID == userID {
			out = append(out, *cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out, nil
}

func (r *fakeEnrollmentRepo) ApplyLessonProgress(_ context.Context, id primitive.ObjectID, u domain.LessonProgressUpdate) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls++
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	e, ok := r.enrollments[id]
	if !ok || e.Status != domain.EnrollmentActive {
		return nil, repository.ErrNotFound
	}

	if entry := e.CompletedLesson(u.LessonID); entry != nil {
		if u.WatchTime > entry.WatchTime {
			entry.WatchTime = u.WatchTime
		}
		if u.Score != nil {
			score := *u.Score
			entry.Score = &score
		}
	} else if u.Completed {
		e.Progress.CompletedLessons = append(e.Progress.CompletedLessons, domain.CompletedLesson{
			LessonID:    u.LessonID,
			CompletedAt: u.At,
			WatchTime:   u.WatchTime,
			Score:       u.Score,
		})
	}
	e.Progress.TotalWatchTime += u.WatchTime
	lessonID := u.LessonID
	at := u.At
	e.Progress.CurrentLesson = &lessonID
	e.Progress.LastAccessedAt = &at
	e.UpdatedAt = u.At
	return cloneEnrollment(e), nil
}

func (r *fakeEnrollmentRepo) SetProgressPercentage(_ context.Context, id primitive.ObjectID, completedCount, pct int) (bool, error) {
	if r.beforeSetPercentage != nil {
		hook := r.beforeSetPercentage
		r.beforeSetPercentage = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok || len(e.Progress.CompletedLessons) != completedCount {
		return false, nil
	}
	e.Progress.ProgressPercentage = pct
	return true, nil
}

func (r *fakeEnrollmentRepo) MarkCompleted(_ context.Context, id primitive.ObjectID, completion domain.Completion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok || e.Status != domain.EnrollmentActive || e.Completion.IsCompleted {
		return false, nil
	}
	e.Completion = completion
	e.Status = domain.EnrollmentCompleted
	return true, nil
}

func (r *fakeEnrollmentRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.EnrollmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok || e.Status != from {
		return repository.ErrConflict
	}
	e.Status = to
	return nil
}

func (r *fakeEnrollmentRepo) AddNote(_ context.Context, id primitive.ObjectID, note domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Notes = append(e.Notes, note)
	return nil
}

func (r *fakeEnrollmentRepo) AddBookmark(_ context.Context, id primitive.ObjectID, bookmark domain.Bookmark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Bookmarks = append(e.Bookmarks, bookmark)
	return nil
}

func (r *fakeEnrollmentRepo) DeleteNote(_ context.Context, userID, noteID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.UserID != userID {
			continue
		}
		for i, n := range e.Notes {
			if n.ID == noteID {
				e.Notes = append(e.Notes[:i], e.Notes[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

func (r *fakeEnrollmentRepo) DeleteBookmark(_ context.Context, userID, bookmarkID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.UserID != userID {
			continue
		}
		for i, b := range e.Bookmarks {
			if b.ID == bookmarkID {
				e.Bookmarks = append(e.Bookmarks[:i], e.Bookmarks[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

type fakeCourseRepo struct {
	mu      sync.Mutex
	courses map[primitive.ObjectID]*domain.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[primitive.ObjectID]*domain.Course{}}
}

func (r *fakeCourseRepo) Create(_ context.Context, c *domain.Course) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *c
	stored.ID = primitive.NewObjectID()
	r.courses[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeCourseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *fakeCourseRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Course{}
	for _, id := range ids {
		if c, ok := r.courses[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) ListPublished(_ context.Context) ([]domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Course{}
	for _, c := range r.courses {
		if c.Published {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) SetPublished(_ context.Context, id, instructorID primitive.ObjectID, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok || c.InstructorID != instructorID {
		return repository.ErrNotFound
	}
	c.Published = published
	return nil
}

type fakeLessonRepo struct {
	mu      sync.Mutex
	lessons map[primitive.ObjectID]*domain.Lesson
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{lessons: map[primitive.ObjectID]*domain.Lesson{}}
}

func (r *fakeLessonRepo) Create(_ context.Context, l *domain.Lesson) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *l
	stored.ID = primitive.NewObjectID()
	r.lessons[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (r *fakeLessonRepo) GetByCourseID(_ context.Context, courseID primitive.ObjectID, publishedOnly bool) ([]domain.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Lesson{}
	for _, l := range r.lessons {
		if l.CourseID == courseID && (!publishedOnly || l.Published) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeLessonRepo) CountPublished(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	lessons, _ := r.GetByCourseID(ctx, courseID, true)
	return len(lessons), nil
}

func (r *fakeLessonRepo) PublishByCourseID(_ context.Context, courseID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			l.Published = true
		}
	}
	return nil
}

func (r *fakeLessonRepo) SetVideoObjectKey(_ context.Context, id primitive.ObjectID, objectKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.VideoObjectKey = objectKey
	return nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[primitive.ObjectID]*domain.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *o
	stored.ID = primitive.NewObjectID()
	r.orders[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *o
	return &out, nil
}

func (r *fakeOrderRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.OrderStatus, paymentRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	if paymentRef != "" {
		o.PaymentRef = paymentRef
	}
	if to == domain.OrderPaid {
		now := time.Now().UTC()
		o.PaidAt = &now
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	stored := *u
	stored.ID = primitive.NewObjectID()
	r.users[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	progress    int
	created     map[string]int
	completions int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{created: map[string]int{}}
}

func (m *recordingMetrics) LessonProgressRecorded(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress++
}

func (m *recordingMetrics) EnrollmentCreated(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[source]++
}

func (m *recordingMetrics) EnrollmentCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions++
}
