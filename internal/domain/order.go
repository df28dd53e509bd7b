package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus type for the order lifecycle
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order records a purchase of one or more courses. A paid order fulfills
// into one enrollment per course.
type Order struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID   `bson:"userId" json:"userId"`
	CourseIDs  []primitive.ObjectID `bson:"courseIds" json:"courseIds"`
	Amount     int64                `bson:"amount" json:"amount"` // Minor units
	Currency   string               `bson:"currency" json:"currency"`
	Status     OrderStatus          `bson:"status" json:"status"`
	PaymentRef string               `bson:"paymentRef,omitempty" json:"paymentRef,omitempty"`
	PaidAt     *time.Time           `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time            `bson:"updatedAt" json:"updatedAt"`
}
