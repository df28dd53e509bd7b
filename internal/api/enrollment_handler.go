package api

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EnrollmentHandler struct {
	enrollmentService service.EnrollmentService
	catalogService    service.CatalogService
	log               *logger.Logger
}

func NewEnrollmentHandler(enrollmentService service.EnrollmentService, catalogService service.CatalogService, log *logger.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
		catalogService:    catalogService,
		log:               log,
	}
}

// --- DTOs ---

type LessonProgressRequest struct {
	WatchTime int64    `json:"watchTime" binding:"min=0"` // Seconds since the previous report
	Completed bool     `json:"completed"`
	Score     *float64 `json:"score" binding:"omitempty,min=0,max=100"`
}

type NoteRequest struct {
	LessonID  string `json:"lessonId" binding:"required,len=24,hexadecimal"`
	Timestamp int    `json:"timestamp" binding:"min=0"`
	Content   string `json:"content" binding:"required"`
}

type BookmarkRequest struct {
	LessonID  string `json:"lessonId" binding:"required,len=24,hexadecimal"`
	Timestamp int    `json:"timestamp" binding:"min=0"`
	Title     string `json:"title"`
}

type EnrollmentStatusRequest struct {
	Status domain.EnrollmentStatus `json:"status" binding:"required,oneof=active dropped suspended"`
}

type EnrollmentResponse struct {
	ID         string                  `json:"id"`
	UserID     string                  `json:"userId"`
	CourseID   string                  `json:"courseId"`
	OrderID    string                  `json:"orderId,omitempty"`
	Status     domain.EnrollmentStatus `json:"status"`
	EnrolledAt time.Time               `json:"enrolledAt"`
}

type VideoURLResponse struct {
	URL string `json:"url"`
}

// --- Handlers ---

// ListMyEnrollments godoc
// @Summary Dashboard list of the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.DashboardEnrollment
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	list, err := h.enrollmentService.ListMyEnrollments(c.Request.Context(), session.UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetSummary godoc
// @Summary Aggregate progress across all of the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ProgressSummary
// @Router /enrollments/summary [get]
func (h *EnrollmentHandler) GetSummary(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	summary, err := h.enrollmentService.GetProgressSummary(c.Request.Context(), session.UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetProgress godoc
// @Summary Progress of the caller in one course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} service.EnrollmentProgress
// @Failure 403 {object} gin.H "Not enrolled"
// @Router /enrollments/{courseId}/progress [get]
func (h *EnrollmentHandler) GetProgress(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	progress, err := h.enrollmentService.GetEnrollmentProgress(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// RecordLessonProgress godoc
// @Summary Report watch time and completion for a lesson
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param lessonId path string true "Lesson ID"
// @Param progress body LessonProgressRequest true "Progress report"
// @Success 200 {object} service.EnrollmentProgress
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Not enrolled"
// @Failure 404 {object} gin.H "Lesson not found in course"
// @Router /enrollments/{courseId}/lessons/{lessonId}/progress [post]
func (h *EnrollmentHandler) RecordLessonProgress(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	lessonID, ok := objectIDParam(c, "lessonId")
	if !ok {
		return
	}
	var req LessonProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	progress, err := h.enrollmentService.RecordLessonProgress(c.Request.Context(), session.UserID, courseID, lessonID, service.LessonProgressInput{
		WatchTime: req.WatchTime,
		Completed: req.Completed,
		Score:     req.Score,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// GetLessonVideoURL godoc
// @Summary Presigned playback URL for a lesson video
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} VideoURLResponse
// @Failure 403 {object} gin.H "Not enrolled"
// @Router /enrollments/{courseId}/lessons/{lessonId}/video-url [get]
func (h *EnrollmentHandler) GetLessonVideoURL(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	lessonID, ok := objectIDParam(c, "lessonId")
	if !ok {
		return
	}
	url, err := h.catalogService.GetLessonVideoURL(c.Request.Context(), session.UserID, courseID, lessonID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, VideoURLResponse{URL: url})
}

// --- Notes & bookmarks ---

// AddNote godoc
// @Summary Attach a note to a lesson position
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param note body NoteRequest true "Note"
// @Success 201 {object} domain.Note
// @Router /enrollments/{courseId}/notes [post]
func (h *EnrollmentHandler) AddNote(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	lessonID, err := primitive.ObjectIDFromHex(req.LessonID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lessonId format")
		return
	}

	note, err := h.enrollmentService.AddNote(c.Request.Context(), session.UserID, courseID, service.NoteInput{
		LessonID:  lessonID,
		Timestamp: req.Timestamp,
		Content:   req.Content,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// ListNotes godoc
// @Summary List the caller's notes in a course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {array} domain.Note
// @Router /enrollments/{courseId}/notes [get]
func (h *EnrollmentHandler) ListNotes(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	notes, err := h.enrollmentService.ListNotes(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// DeleteNote godoc
// @Summary Delete one of the caller's notes
// @Tags Enrollments
// @Security BearerAuth
// @Param noteId path string true "Note ID"
// @Success 204
// @Failure 404 {object} gin.H "Note not found"
// @Router /enrollments/notes/{noteId} [delete]
func (h *EnrollmentHandler) DeleteNote(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	noteID, ok := objectIDParam(c, "noteId")
	if !ok {
		return
	}
	if err := h.enrollmentService.DeleteNote(c.Request.Context(), session.UserID, noteID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddBookmark godoc
// @Summary Bookmark a lesson position
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param bookmark body BookmarkRequest true "Bookmark"
// @Success 201 {object} domain.Bookmark
// @Router /enrollments/{courseId}/bookmarks [post]
func (h *EnrollmentHandler) AddBookmark(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	var req BookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	lessonID, err := primitive.ObjectIDFromHex(req.LessonID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lessonId format")
		return
	}

	bookmark, err := h.enrollmentService.AddBookmark(c.Request.Context(), session.UserID, courseID, service.BookmarkInput{
		LessonID:  lessonID,
		Timestamp: req.Timestamp,
		Title:     req.Title,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, bookmark)
}

// ListBookmarks godoc
// @Summary List the caller's bookmarks in a course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {array} domain.Bookmark
// @Router /enrollments/{courseId}/bookmarks [get]
func (h *EnrollmentHandler) ListBookmarks(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	bookmarks, err := h.enrollmentService.ListBookmarks(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, bookmarks)
}

// DeleteBookmark godoc
// @Summary Delete one of the caller's bookmarks
// @Tags Enrollments
// @Security BearerAuth
// @Param bookmarkId path string true "Bookmark ID"
// @Success 204
// @Failure 404 {object} gin.H "Bookmark not found"
// @Router /enrollments/bookmarks/{bookmarkId} [delete]
func (h *EnrollmentHandler) DeleteBookmark(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	bookmarkID, ok := objectIDParam(c, "bookmarkId")
	if !ok {
		return
	}
	if err := h.enrollmentService.DeleteBookmark(c.Request.Context(), session.UserID, bookmarkID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Admin ---

// SetStatus godoc
// @Summary Drop, suspend or reinstate an enrollment
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param enrollmentId path string true "Enrollment ID"
// @Param request body EnrollmentStatusRequest true "New status"
// @Success 200 {object} EnrollmentResponse
// @Failure 409 {object} gin.H "Transition not allowed"
// @Router /admin/enrollments/{enrollmentId}/status [patch]
func (h *EnrollmentHandler) SetStatus(c *gin.Context) {
	enrollmentID, ok := objectIDParam(c, "enrollmentId")
	if !ok {
		return
	}
	var req EnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	enrollment, err := h.enrollmentService.SetEnrollmentStatus(c.Request.Context(), enrollmentID, req.Status)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapEnrollmentToResponse(enrollment))
}

func MapEnrollmentToResponse(e *domain.Enrollment) EnrollmentResponse {
	resp := EnrollmentResponse{
		ID:         e.ID.Hex(),
		UserID:     e.UserID.Hex(),
		CourseID:   e.CourseID.Hex(),
		Status:     e.Status,
		EnrolledAt: e.EnrolledAt,
	}
	if e.OrderID != nil {
		resp.OrderID = e.OrderID.Hex()
	}
	return resp
}
