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

type CatalogHandler struct {
	catalogService    service.CatalogService
	enrollmentService service.EnrollmentService
	log               *logger.Logger
}

func NewCatalogHandler(catalogService service.CatalogService, enrollmentService service.EnrollmentService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService:    catalogService,
		enrollmentService: enrollmentService,
		log:               log,
	}
}

// --- DTOs ---

type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Level       string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	Price       int64  `json:"price" binding:"min=0"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
}

type CreateLessonRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Sequence        int    `json:"sequence" binding:"min=0"`
	DurationSeconds int    `json:"durationSeconds" binding:"min=0"`
}

type VideoUploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmVideoRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type GrantEnrollmentRequest struct {
	UserID string `json:"userId" binding:"required,len=24,hexadecimal"`
}

type CourseResponse struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructorId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Level        string    `json:"level,omitempty"`
	Price        int64     `json:"price"`
	Currency     string    `json:"currency"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LessonResponse struct {
	ID              string `json:"id"`
	CourseID        string `json:"courseId"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Sequence        int    `json:"sequence"`
	DurationSeconds int    `json:"durationSeconds"`
	HasVideo        bool   `json:"hasVideo"`
	Published       bool   `json:"published"`
}

// --- Public catalog ---

// ListCourses godoc
// @Summary List published courses
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} CourseResponse
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalogService.ListPublishedCourses(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapCoursesToResponse(courses))
}

// GetCourse godoc
// @Summary Get a course
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} CourseResponse
// @Failure 404 {object} gin.H "Course not found"
// @Router /courses/{courseId} [get]
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	course, err := h.catalogService.GetCourse(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapCourseToResponse(course))
}

// ListLessons godoc
// @Summary List the lessons of a course
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {array} LessonResponse
// @Failure 404 {object} gin.H "Course not found"
// @Router /courses/{courseId}/lessons [get]
func (h *CatalogHandler) ListLessons(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	lessons, err := h.catalogService.ListLessons(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapLessonsToResponse(lessons))
}

// --- Instructor ---

// CreateCourse godoc
// @Summary Create a draft course
// @Tags Instructor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course body CreateCourseRequest true "Course details"
// @Success 201 {object} CourseResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /instructor/courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	course, err := h.catalogService.CreateCourse(c.Request.Context(), session.UserID, service.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Level:       req.Level,
		Price:       req.Price,
		Currency:    req.Currency,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapCourseToResponse(course))
}

// AddLesson godoc
// @Summary Add a lesson to an owned course
// @Tags Instructor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param lesson body CreateLessonRequest true "Lesson details"
// @Success 201 {object} LessonResponse
// @Failure 403 {object} gin.H "Not the course owner"
// @Router /instructor/courses/{courseId}/lessons [post]
func (h *CatalogHandler) AddLesson(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	lesson, err := h.catalogService.AddLesson(c.Request.Context(), session.UserID, courseID, service.LessonInput{
		Title:           req.Title,
		Description:     req.Description,
		Sequence:        req.Sequence,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapLessonToResponse(lesson))
}

// PublishCourse godoc
// @Summary Publish an owned course and its lessons
// @Tags Instructor
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} CourseResponse
// @Router /instructor/courses/{courseId}/publish [post]
func (h *CatalogHandler) PublishCourse(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	course, err := h.catalogService.PublishCourse(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapCourseToResponse(course))
}

// RequestVideoUploadURL godoc
// @Summary Get a presigned URL for uploading a lesson video
// @Tags Instructor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param lessonId path string true "Lesson ID"
// @Param request body VideoUploadURLRequest true "Content type of the video"
// @Success 200 {object} service.VideoUploadURL
// @Failure 503 {object} gin.H "Media storage not configured"
// @Router /instructor/lessons/{lessonId}/video-upload-url [post]
func (h *CatalogHandler) RequestVideoUploadURL(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	lessonID, ok := objectIDParam(c, "lessonId")
	if !ok {
		return
	}
	var req VideoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	upload, err := h.catalogService.RequestLessonVideoUpload(c.Request.Context(), session.UserID, lessonID, req.ContentType)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// ConfirmVideo godoc
// @Summary Attach an uploaded video to a lesson
// @Tags Instructor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param lessonId path string true "Lesson ID"
// @Param request body ConfirmVideoRequest true "Uploaded object key"
// @Success 200 {object} LessonResponse
// @Router /instructor/lessons/{lessonId}/video [post]
func (h *CatalogHandler) ConfirmVideo(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	lessonID, ok := objectIDParam(c, "lessonId")
	if !ok {
		return
	}
	var req ConfirmVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	lesson, err := h.catalogService.ConfirmLessonVideo(c.Request.Context(), session.UserID, lessonID, req.ObjectKey)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapLessonToResponse(lesson))
}

// GrantEnrollment godoc
// @Summary Enroll a user in an owned course without an order
// @Tags Instructor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param request body GrantEnrollmentRequest true "User to enroll"
// @Success 201 {object} EnrollmentResponse
// @Failure 409 {object} gin.H "Already enrolled"
// @Router /instructor/courses/{courseId}/enrollments [post]
func (h *CatalogHandler) GrantEnrollment(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	courseID, ok := objectIDParam(c, "courseId")
	if !ok {
		return
	}
	var req GrantEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid userId format")
		return
	}

	course, err := h.catalogService.GetCourse(c.Request.Context(), session.UserID, courseID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if course.InstructorID != session.UserID {
		respondServiceError(c, h.log, service.ErrNotCourseOwner)
		return
	}

	enrollment, err := h.enrollmentService.CreateEnrollment(c.Request.Context(), userID, courseID, nil)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapEnrollmentToResponse(enrollment))
}

// --- Mappers ---

func MapCourseToResponse(course *domain.Course) CourseResponse {
	return CourseResponse{
		ID:           course.ID.Hex(),
		InstructorID: course.InstructorID.Hex(),
		Title:        course.Title,
		Description:  course.Description,
		Category:     course.Category,
		Level:        course.Level,
		Price:        course.Price,
		Currency:     course.Currency,
		Published:    course.Published,
		CreatedAt:    course.CreatedAt,
	}
}

func MapCoursesToResponse(courses []domain.Course) []CourseResponse {
	out := make([]CourseResponse, len(courses))
	for i := range courses {
		out[i] = MapCourseToResponse(&courses[i])
	}
	return out
}

func MapLessonToResponse(lesson *domain.Lesson) LessonResponse {
	return LessonResponse{
		ID:              lesson.ID.Hex(),
		CourseID:        lesson.CourseID.Hex(),
		Title:           lesson.Title,
		Description:     lesson.Description,
		Sequence:        lesson.Sequence,
		DurationSeconds: lesson.DurationSeconds,
		HasVideo:        lesson.HasVideo(),
		Published:       lesson.Published,
	}
}

func MapLessonsToResponse(lessons []domain.Lesson) []LessonResponse {
	out := make([]LessonResponse, len(lessons))
	for i := range lessons {
		out[i] = MapLessonToResponse(&lessons[i])
	}
	return out
}
