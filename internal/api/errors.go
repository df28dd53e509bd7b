package api

import (
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var serviceErrorStatus = []struct {
	err    error
	status int
}{
	{service.ErrNotEnrolled, http.StatusForbidden},
	{service.ErrNotCourseOwner, http.StatusForbidden},

	{service.ErrLessonNotFound, http.StatusNotFound},
	{service.ErrCourseNotFound, http.StatusNotFound},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrEnrollmentNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrNoVideo, http.StatusNotFound},

	{service.ErrAlreadyEnrolled, http.StatusConflict},
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrOrderNotPending, http.StatusConflict},
	{service.ErrInvalidStatusTransition, http.StatusConflict},
	{service.ErrProgressConflict, http.StatusConflict},

	{service.ErrInvalidProgress, http.StatusBadRequest},
	{service.ErrInvalidNote, http.StatusBadRequest},
	{service.ErrInvalidCourse, http.StatusBadRequest},
	{service.ErrInvalidLesson, http.StatusBadRequest},
	{service.ErrInvalidVideoKey, http.StatusBadRequest},
	{service.ErrInvalidVideoType, http.StatusBadRequest},
	{service.ErrEmptyOrder, http.StatusBadRequest},
	{service.ErrMixedCurrency, http.StatusBadRequest},
	{service.ErrInvalidRegistration, http.StatusBadRequest},

	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	{service.ErrPaymentFailed, http.StatusPaymentRequired},
	{service.ErrMediaUnavailable, http.StatusServiceUnavailable},
}

// statusForError maps a service error to its HTTP status; 500 when unknown.
func statusForError(err error) int {
	for _, m := range serviceErrorStatus {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondServiceError writes the error response for err. Unexpected errors
// are logged and hidden from the client.
func respondServiceError(c *gin.Context, log *logger.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		requestID, _ := c.Get(ContextRequestIDKey)
		log.Error("unhandled service error", "path", c.FullPath(), "request_id", requestID, "error", err)
		abortWithError(c, status, "Internal server error")
		return
	}
	abortWithError(c, status, err.Error())
}
