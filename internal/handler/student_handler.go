package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/scoring"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// Ledger is the submission side of the result ledger.
type Ledger interface {
	Submit(ctx context.Context, studentID, testID int, answers []scoring.Answer) (*service.SubmissionOutcome, error)
	GetResult(ctx context.Context, studentID, testID int) (*model.TestResult, error)
	ListResults(ctx context.Context, studentID int) ([]model.TestResultDetail, error)
}

// Enrollments is the enrollment lifecycle as seen by a student.
type Enrollments interface {
	Start(ctx context.Context, studentID, courseID int) (*service.StartOutcome, error)
	Complete(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error)
	UpdateProgress(ctx context.Context, studentID, courseID int, pct float64) (*model.Enrollment, error)
	Status(ctx context.Context, studentID, courseID int) (*model.EnrollmentStatusView, error)
	ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error)
	ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error)
}

// Status values of a start call.
const (
	startStatusEnrolled        = "ENROLLED"
	startStatusAlreadyEnrolled = "ALREADY_ENROLLED"
)

// StudentHandler handles test submission and course progress for students.
type StudentHandler struct {
	ledger      Ledger
	enrollments Enrollments
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(ledger Ledger, enrollments Enrollments) *StudentHandler {
	return &StudentHandler{ledger: ledger, enrollments: enrollments}
}

// ─── Tests ──────────────────────────────────────────────────────────

// Submit godoc
// POST /api/v1/student/tests/submit
// Grades the answers, stores the result and completes the course on a pass.
func (h *StudentHandler) Submit(c *gin.Context) {
	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	outcome, err := h.ledger.Submit(c.Request.Context(), claims.UserID, req.TestID, toScoringAnswers(req.Answers))
	if err != nil {
		failFromError(c, err, "Submit test failed")
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// Result godoc
// GET /api/v1/student/tests/:test_id/result
func (h *StudentHandler) Result(c *gin.Context) {
	testID, ok := pathID(c, "test_id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	result, err := h.ledger.GetResult(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromError(c, err, "Get result failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result": result,
		"passed": scoring.IsPassing(result.Score),
	})
}

// Results godoc
// GET /api/v1/student/results
func (h *StudentHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	results, err := h.ledger.ListResults(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err, "List results failed")
		return
	}
	if results == nil {
		results = []model.TestResultDetail{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// ─── Courses ────────────────────────────────────────────────────────

// StartCourse godoc
// POST /api/v1/student/courses/start
// Starting a course already in progress is not an error.
func (h *StudentHandler) StartCourse(c *gin.Context) {
	var req model.CourseActionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	outcome, err := h.enrollments.Start(c.Request.Context(), claims.UserID, req.CourseID)
	if err != nil {
		failFromError(c, err, "Start course failed")
		return
	}

	if outcome.AlreadyEnrolled {
		response.Success(c, http.StatusOK, gin.H{
			"status":     startStatusAlreadyEnrolled,
			"enrollment": outcome.Enrollment,
		})
		return
	}
	response.Created(c, gin.H{
		"status":     startStatusEnrolled,
		"enrollment": outcome.Enrollment,
	})
}

// CompleteCourse godoc
// POST /api/v1/student/courses/complete
func (h *StudentHandler) CompleteCourse(c *gin.Context) {
	var req model.CourseActionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	finished, err := h.enrollments.Complete(c.Request.Context(), claims.UserID, req.CourseID)
	if err != nil {
		failFromError(c, err, "Complete course failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"finished_course": finished})
}

// UpdateProgress godoc
// PUT /api/v1/student/courses/progress
func (h *StudentHandler) UpdateProgress(c *gin.Context) {
	var req model.UpdateProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	enrollment, err := h.enrollments.UpdateProgress(c.Request.Context(), claims.UserID, req.CourseID, *req.ProgressPercentage)
	if err != nil {
		failFromError(c, err, "Update progress failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"enrollment": enrollment})
}

// CourseStatus godoc
// GET /api/v1/student/courses/:course_id/status
func (h *StudentHandler) CourseStatus(c *gin.Context) {
	courseID, ok := pathID(c, "course_id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	status, err := h.enrollments.Status(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failFromError(c, err, "Get course status failed")
		return
	}
	response.Success(c, http.StatusOK, status)
}

// InProgress godoc
// GET /api/v1/student/courses/in-progress
func (h *StudentHandler) InProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	list, err := h.enrollments.ListInProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err, "List in-progress courses failed")
		return
	}
	if list == nil {
		list = []model.EnrollmentDetail{}
	}
	response.Success(c, http.StatusOK, gin.H{"courses": list})
}

// Completed godoc
// GET /api/v1/student/courses/completed
func (h *StudentHandler) Completed(c *gin.Context) {
	claims := middleware.GetClaims(c)
	list, err := h.enrollments.ListCompleted(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err, "List completed courses failed")
		return
	}
	if list == nil {
		list = []model.FinishedCourseDetail{}
	}
	response.Success(c, http.StatusOK, gin.H{"courses": list})
}

func toScoringAnswers(in []model.SubmissionAnswer) []scoring.Answer {
	out := make([]scoring.Answer, len(in))
	for i, a := range in {
		out[i] = scoring.Answer{QuestionID: a.QuestionID, Label: a.Answer}
	}
	return out
}
