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

const lessonCollectionName = "lessons"

// mongoLessonRepository implements repository.LessonRepository
type mongoLessonRepository struct {
	collection *mongo.Collection
}

// NewMongoLessonRepository creates a new Lesson repository backed by MongoDB.
func NewMongoLessonRepository(db *mongo.Database) repository.LessonRepository {
	return &mongoLessonRepository{
		collection: db.Collection(lessonCollectionName),
	}
}

// Create inserts a new lesson.
func (r *mongoLessonRepository) Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	// Basic validation: a lesson belongs to a course and has a title
	if lesson.CourseID == primitive.NilObjectID || lesson.Title == "" {
		return primitive.NilObjectID, errors.New("lesson requires courseId and title")
	}

	lesson.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	lesson.CreatedAt = now // Set creation time
	lesson.UpdatedAt = now // Set initial update time

	result, err := r.collection.InsertOne(ctx, lesson)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted lesson ID")
	}
	return insertedID, nil
}

// GetByID retrieves a lesson by its ID.
func (r *mongoLessonRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Lesson, error) {
	var lesson domain.Lesson
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&lesson)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// GetByCourseID retrieves the lessons of a course ordered by sequence.
func (r *mongoLessonRepository) GetByCourseID(ctx context.Context, courseID primitive.ObjectID, publishedOnly bool) ([]domain.Lesson, error) {
	filter := bson.M{"courseId": courseID}
	if publishedOnly { // Students never see draft lessons
		filter["published"] = true
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}) // Course order

	lessons := []domain.Lesson{} // Empty slice, not nil
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &lessons); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return lessons, nil
}

// CountPublished returns the number of published lessons in a course.
func (r *mongoLessonRepository) CountPublished(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	// Drafts are excluded so adding a draft lesson never lowers anyone's percentage
	filter := bson.M{"courseId": courseID, "published": true}

	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PublishByCourseID publishes every lesson of a course.
func (r *mongoLessonRepository) PublishByCourseID(ctx context.Context, courseID primitive.ObjectID) error {
	filter := bson.M{"courseId": courseID, "published": false} // Only touch drafts
	update := bson.M{"$set": bson.M{"published": true, "updatedAt": time.Now().UTC()}}

	// Zero matches is fine: everything was already published
	_, err := r.collection.UpdateMany(ctx, filter, update)
	return err
}

// SetVideoObjectKey links an uploaded media object to the lesson.
func (r *mongoLessonRepository) SetVideoObjectKey(ctx context.Context, id primitive.ObjectID, objectKey string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"videoObjectKey": objectKey, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 { // Lesson was deleted meanwhile
		return repository.ErrNotFound
	}
	return nil
}

// EnsureLessonIndexes creates necessary indexes for the lessons collection.
func EnsureLessonIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Ordered lesson listing per course
			Keys:    bson.D{{Key: "courseId", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index(),
		},
		{
			// Denominator of progress percentage
			Keys:    bson.D{{Key: "courseId", Value: 1}, {Key: "published", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
