package mongo

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const enrollmentCollectionName = "enrollments"

// A guarded $push loses to a concurrent insert of the same lesson at most once
// per competing writer, after which the positional update path matches.
const maxLessonUpsertAttempts = 3

// mongoEnrollmentRepository implements repository.EnrollmentRepository
type mongoEnrollmentRepository struct {
	collection *mongo.Collection
}

// NewMongoEnrollmentRepository creates a new Enrollment repository backed by MongoDB.
func NewMongoEnrollmentRepository(db *mongo.Database) repository.EnrollmentRepository {
	return &mongoEnrollmentRepository{
		collection: db.Collection(enrollmentCollectionName),
	}
}

// Create inserts a new active enrollment.
func (r *mongoEnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) (primitive.ObjectID, error) {
	// Basic validation: both halves of the unique pair are required
	if enrollment.UserID == primitive.NilObjectID || enrollment.CourseID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("enrollment requires userId and courseId")
	}

	enrollment.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	enrollment.EnrolledAt = now
	enrollment.UpdatedAt = now
	if enrollment.Status == "" { // Default status if not provided
		enrollment.Status = domain.EnrollmentActive
	}
	// Arrays must exist in the document for $push/$size to work.
	if enrollment.Progress.CompletedLessons == nil {
		enrollment.Progress.CompletedLessons = []domain.CompletedLesson{}
	}
	if enrollment.Notes == nil {
		enrollment.Notes = []domain.Note{}
	}
	if enrollment.Bookmarks == nil {
		enrollment.Bookmarks = []domain.Bookmark{}
	}

	result, err := r.collection.InsertOne(ctx, enrollment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) { // Unique (userId, courseId) index
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted enrollment ID")
	}
	return insertedID, nil
}

// GetByID retrieves an enrollment by its ID.
func (r *mongoEnrollmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Enrollment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByUserAndCourse retrieves the enrollment for a (user, course) pair in any status.
func (r *mongoEnrollmentRepository) GetByUserAndCourse(ctx context.Context, userID, courseID primitive.ObjectID) (*domain.Enrollment, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "courseId": courseID})
}

// GetByUserID retrieves all enrollments of a user, newest first.
func (r *mongoEnrollmentRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Enrollment, error) {
	enrollments := []domain.Enrollment{}
	findOptions := options.Find().SetSort(bson.D{{Key: "enrolledAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &enrollments); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// ApplyLessonProgress upserts the completed-lesson entry by lesson id without a
// read-modify-write of the array. Each attempt is one conditional update:
//  1. entry exists  -> positional $max on watchTime (and $set score)
//  2. entry missing -> $push guarded by lessonId $ne, or only counters when not completed
//
// If step 2 misses because another request inserted the entry meanwhile, the
// loop retries and step 1 matches.
func (r *mongoEnrollmentRepository) ApplyLessonProgress(ctx context.Context, enrollmentID primitive.ObjectID, u domain.LessonProgressUpdate) (*domain.Enrollment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 0; attempt < maxLessonUpsertAttempts; attempt++ {
		var updated domain.Enrollment
		// Step 1: the lesson already has an entry
		err := r.collection.FindOneAndUpdate(ctx, existingLessonFilter(enrollmentID, u.LessonID), existingLessonUpdate(u), opts).Decode(&updated)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// Step 2: no entry yet, push one (or only bump counters)
		err = r.collection.FindOneAndUpdate(ctx, missingLessonFilter(enrollmentID, u.LessonID), missingLessonUpdate(u), opts).Decode(&updated)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// Neither matched: either the enrollment is not active, or we raced.
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": enrollmentID, "status": domain.EnrollmentActive})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, repository.ErrNotFound
		}
		// Still active, so an insert of the same lesson slipped between steps; retry
	}
	return nil, repository.ErrConflict
}

// SetProgressPercentage writes pct guarded on the size of the completed-lessons set.
func (r *mongoEnrollmentRepository) SetProgressPercentage(ctx context.Context, enrollmentID primitive.ObjectID, completedCount, pct int) (bool, error) {
	filter := bson.M{
		"_id":                       enrollmentID,
		"progress.completedLessons": bson.M{"$size": completedCount}, // Snapshot the pct was computed from
	}
	update := bson.M{"$set": bson.M{"progress.progressPercentage": pct}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// MarkCompleted sets the completion block exactly once.
func (r *mongoEnrollmentRepository) MarkCompleted(ctx context.Context, enrollmentID primitive.ObjectID, completion domain.Completion) (bool, error) {
	filter := bson.M{
		"_id":                    enrollmentID,
		"status":                 domain.EnrollmentActive,
		"completion.isCompleted": false, // Completion is written once
	}
	update := bson.M{"$set": bson.M{
		"completion": completion,
		"status":     domain.EnrollmentCompleted,
		"updatedAt":  time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// UpdateStatus performs a compare-and-set on the enrollment status.
func (r *mongoEnrollmentRepository) UpdateStatus(ctx context.Context, enrollmentID primitive.ObjectID, from, to domain.EnrollmentStatus) error {
	filter := bson.M{"_id": enrollmentID, "status": from} // Only move from the status we validated
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

// AddNote appends a note to an enrollment.
func (r *mongoEnrollmentRepository) AddNote(ctx context.Context, enrollmentID primitive.ObjectID, note domain.Note) error {
	return r.pushSubdocument(ctx, enrollmentID, "notes", note)
}

// AddBookmark appends a bookmark to an enrollment.
func (r *mongoEnrollmentRepository) AddBookmark(ctx context.Context, enrollmentID primitive.ObjectID, bookmark domain.Bookmark) error {
	return r.pushSubdocument(ctx, enrollmentID, "bookmarks", bookmark)
}

// DeleteNote removes a note from one of the user's enrollments.
func (r *mongoEnrollmentRepository) DeleteNote(ctx context.Context, userID, noteID primitive.ObjectID) error {
	return r.pullSubdocument(ctx, userID, "notes", noteID)
}

// DeleteBookmark removes a bookmark from one of the user's enrollments.
func (r *mongoEnrollmentRepository) DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error {
	return r.pullSubdocument(ctx, userID, "bookmarks", bookmarkID)
}

func (r *mongoEnrollmentRepository) pushSubdocument(ctx context.Context, enrollmentID primitive.ObjectID, field string, doc interface{}) error {
	update := bson.M{
		"$push": bson.M{field: doc},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": enrollmentID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoEnrollmentRepository) pullSubdocument(ctx context.Context, userID primitive.ObjectID, field string, id primitive.ObjectID) error {
	// Owner check and lookup in one filter: another user's id simply does not match
	filter := bson.M{"userId": userID, field + "._id": id}
	update := bson.M{
		"$pull": bson.M{field: bson.M{"_id": id}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoEnrollmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := r.collection.FindOne(ctx, filter).Decode(&enrollment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

// --- Lesson progress update documents ---

func existingLessonFilter(enrollmentID, lessonID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":                                enrollmentID,
		"status":                             domain.EnrollmentActive,
		"progress.completedLessons.lessonId": lessonID,
	}
}

func missingLessonFilter(enrollmentID, lessonID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":                                enrollmentID,
		"status":                             domain.EnrollmentActive,
		"progress.completedLessons.lessonId": bson.M{"$ne": lessonID},
	}
}

// progressCounters are applied on every report regardless of the lesson entry.
func progressCounters(u domain.LessonProgressUpdate) (inc bson.M, set bson.M) {
	at := u.At.UTC()
	inc = bson.M{"progress.totalWatchTime": u.WatchTime}
	set = bson.M{
		"progress.currentLesson":  u.LessonID,
		"progress.lastAccessedAt": at,
		"updatedAt":               at,
	}
	return inc, set
}

func existingLessonUpdate(u domain.LessonProgressUpdate) bson.M {
	inc, set := progressCounters(u)
	if u.Score != nil {
		set["progress.completedLessons.$.score"] = *u.Score
	}
	return bson.M{
		"$max": bson.M{"progress.completedLessons.$.watchTime": u.WatchTime},
		"$inc": inc,
		"$set": set,
	}
}

func missingLessonUpdate(u domain.LessonProgressUpdate) bson.M {
	inc, set := progressCounters(u)
	update := bson.M{
		"$inc": inc,
		"$set": set,
	}
	if u.Completed {
		update["$push"] = bson.M{"progress.completedLessons": domain.CompletedLesson{
			LessonID:    u.LessonID,
			CompletedAt: u.At.UTC(),
			WatchTime:   u.WatchTime,
			Score:       u.Score,
		}}
	}
	return update
}

// EnsureEnrollmentIndexes creates necessary indexes for the enrollments collection.
func EnsureEnrollmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// A user enrolls in a given course at most once
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "courseId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			// Ownership lookups for note/bookmark deletion
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "notes._id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "bookmarks._id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
