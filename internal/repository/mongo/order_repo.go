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

const orderCollectionName = "orders"

// mongoOrderRepository implements repository.OrderRepository
type mongoOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderRepository creates a new Order repository backed by MongoDB.
func NewMongoOrderRepository(db *mongo.Database) repository.OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection(orderCollectionName),
	}
}

// Create inserts a new order. Status defaults to pending.
func (r *mongoOrderRepository) Create(ctx context.Context, order *domain.Order) (primitive.ObjectID, error) {
	// Basic validation: an order belongs to a user and buys at least one course
	if order.UserID == primitive.NilObjectID || len(order.CourseIDs) == 0 {
		return primitive.NilObjectID, errors.New("order requires userId and at least one courseId")
	}

	order.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" { // Default status if not provided
		order.Status = domain.OrderPending
	}

	result, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted order ID")
	}
	return insertedID, nil
}

// GetByID retrieves an order by its ID.
func (r *mongoOrderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	var order domain.Order
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByUserID retrieves a user's orders, newest first.
func (r *mongoOrderRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	orders := []domain.Order{} // Empty slice, not nil, so callers can encode []
	filter := bson.M{"userId": userID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}) // Newest first

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *mongoOrderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, paymentRef string) error {
	now := time.Now().UTC()
	set := bson.M{"status": to, "updatedAt": now}
	if paymentRef != "" { // Only stored once the processor returned one
		set["paymentRef"] = paymentRef
	}
	if to == domain.OrderPaid { // Record payment time
		set["paidAt"] = now
	}

	// Match on the expected current status so two payments cannot both win
	filter := bson.M{"_id": id, "status": from}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Missing, or already moved out of `from` by another request
		return repository.ErrConflict
	}
	return nil
}

// EnsureOrderIndexes creates necessary indexes for the orders collection.
func EnsureOrderIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// "My orders" listing
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Find pending or failed orders
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
