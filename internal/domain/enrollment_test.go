package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		name             string
		completed, total int
		want             int
	}{
		{"no lessons in course", 3, 0, 0},
		{"nothing completed", 0, 5, 0},
		{"four of five", 4, 5, 80},
		{"one of three rounds down", 1, 3, 33},
		{"two of three rounds up", 2, 3, 67},
		{"all", 7, 7, 100},
		{"more completed than published is clamped", 6, 5, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProgressPercentage(tc.completed, tc.total))
		})
	}
}

func TestMeanScoreIgnoresUnscoredLessons(t *testing.T) {
	s := func(v float64) *float64 { return &v }

	assert.Nil(t, MeanScore(nil))
	assert.Nil(t, MeanScore([]CompletedLesson{{}, {}}))

	mean := MeanScore([]CompletedLesson{{Score: s(90)}, {}, {Score: s(70)}})
	require.NotNil(t, mean)
	assert.InDelta(t, 80.0, *mean, 1e-9)
}

func TestEnrollmentStatusTransitions(t *testing.T) {
	assert.True(t, EnrollmentActive.CanTransitionTo(EnrollmentDropped))
	assert.True(t, EnrollmentActive.CanTransitionTo(EnrollmentSuspended))
	assert.True(t, EnrollmentSuspended.CanTransitionTo(EnrollmentActive))
	assert.True(t, EnrollmentDropped.CanTransitionTo(EnrollmentActive))

	assert.False(t, EnrollmentActive.CanTransitionTo(EnrollmentCompleted))
	assert.False(t, EnrollmentCompleted.CanTransitionTo(EnrollmentActive))
	assert.False(t, EnrollmentCompleted.CanTransitionTo(EnrollmentDropped))
	assert.False(t, EnrollmentSuspended.CanTransitionTo(EnrollmentDropped))
}

func TestEnrollmentLookups(t *testing.T) {
	l1, l2 := primitive.NewObjectID(), primitive.NewObjectID()
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	e := Enrollment{Progress: Progress{CompletedLessons: []CompletedLesson{
		{LessonID: l1, CompletedAt: t2},
		{LessonID: l2, CompletedAt: t1},
	}}}

	require.NotNil(t, e.CompletedLesson(l2))
	assert.Nil(t, e.CompletedLesson(primitive.NewObjectID()))
	assert.Equal(t, t2, e.LastCompletedAt())
	assert.True(t, (&Enrollment{}).LastCompletedAt().IsZero())
}
