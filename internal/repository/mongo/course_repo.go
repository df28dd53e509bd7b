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

const courseCollectionName = "courses"

// mongoCourseRepository implements repository.CourseRepository
type mongoCourseRepository struct {
	collection *mongo.Collection
}

// NewMongoCourseRepository creates a new Course repository backed by MongoDB.
func NewMongoCourseRepository(db *mongo.Database) repository.CourseRepository {
	return &mongoCourseRepository{
		collection: db.Collection(courseCollectionName),
	}
}

// Create inserts a new, unpublished course.
func (r *mongoCourseRepository) Create(ctx context.Context, course *domain.Course) (primitive.ObjectID, error) {
	// Basic validation: every course has an owner and a title
	if course.InstructorID == primitive.NilObjectID || course.Title == "" {
		return primitive.NilObjectID, errors.New("course requires instructorId and title")
	}

	course.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	course.CreatedAt = now // Set creation time
	course.UpdatedAt = now // Set initial update time

	result, err := r.collection.InsertOne(ctx, course)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted course ID")
	}
	return insertedID, nil
}

// GetByID retrieves a course by its ID.
func (r *mongoCourseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Course, error) {
	var course domain.Course
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&course)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

// GetByIDs retrieves all courses whose id is in ids. Missing ids are skipped.
func (r *mongoCourseRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Course, error) {
	if len(ids) == 0 { // Skip the round trip for an empty $in
		return []domain.Course{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

// ListPublished returns the public catalog, newest first.
func (r *mongoCourseRepository) ListPublished(ctx context.Context) ([]domain.Course, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"published": true}, findOptions)
}

// SetPublished toggles publication of a course owned by instructorID.
func (r *mongoCourseRepository) SetPublished(ctx context.Context, id, instructorID primitive.ObjectID, published bool) error {
	filter := bson.M{"_id": id, "instructorId": instructorID} // Owner check in the filter
	update := bson.M{"$set": bson.M{"published": published, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either missing or owned by someone else; callers cannot tell the two apart
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoCourseRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Course, error) {
	courses := []domain.Course{}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &courses); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return courses, nil
}

// EnsureCourseIndexes creates necessary indexes for the courses collection.
func EnsureCourseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Instructor dashboards
			Keys:    bson.D{{Key: "instructorId", Value: 1}},
			Options: options.Index(),
		},
		{
			// Public catalog listing
			Keys:    bson.D{{Key: "published", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
