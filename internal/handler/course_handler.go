package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// CourseService is what CourseHandler needs from the course layer.
type CourseService interface {
	List(ctx context.Context, page, perPage int) ([]model.Course, int, error)
	GetByID(ctx context.Context, id int) (*model.Course, error)
	Create(ctx context.Context, teacherID int, req model.CreateCourseRequest) (*model.Course, error)
	Delete(ctx context.Context, teacherID, courseID int) error
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type CourseHandler struct {
	courseService CourseService
}

func NewCourseHandler(courseService CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// List godoc
// GET /api/v1/courses?page=1&per_page=20
func (h *CourseHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	courses, total, err := h.courseService.List(c.Request.Context(), page, perPage)
	if err != nil {
		failFromError(c, err, "List courses failed")
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"courses": courses},
		response.NewPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.GetByID(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, "Get course failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// Create godoc
// POST /api/v1/teacher/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	course, err := h.courseService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failFromError(c, err, "Create course failed")
		return
	}
	response.Created(c, gin.H{"course": course})
}

// Delete godoc
// DELETE /api/v1/teacher/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	if err := h.courseService.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		failFromError(c, err, "Delete course failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "course deleted successfully"})
}
