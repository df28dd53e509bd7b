package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course is a purchasable unit of content owned by an instructor.
type Course struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InstructorID primitive.ObjectID `bson:"instructorId" json:"instructorId"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
	Level        string             `bson:"level,omitempty" json:"level,omitempty"` // e.g. "beginner", "advanced"
	Price        int64              `bson:"price" json:"price"`                     // Minor units (cents)
	Currency     string             `bson:"currency" json:"currency"`
	Published    bool               `bson:"published" json:"published"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Lesson is the atomic unit of course content; completion is tracked per lesson.
type Lesson struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CourseID        primitive.ObjectID `bson:"courseId" json:"courseId"`
	Title           string             `bson:"title" json:"title"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Sequence        int                `bson:"sequence" json:"sequence"` // Order within the course
	DurationSeconds int                `bson:"durationSeconds" json:"durationSeconds"`
	VideoObjectKey  string             `bson:"videoObjectKey,omitempty" json:"-"` // Key in the media bucket, internal use
	Published       bool               `bson:"published" json:"published"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (l *Lesson) HasVideo() bool {
	return l.VideoObjectKey != ""
}
