package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// TestService is what TestHandler needs for test authoring.
type TestService interface {
	Create(ctx context.Context, teacherID, courseID int, req model.CreateTestRequest) (*model.TestWithQuestions, error)
	GetForTeacher(ctx context.Context, teacherID, testID int) (*model.TestWithQuestions, error)
	GetForStudent(ctx context.Context, testID int) (*model.TestPaper, error)
	ReplaceQuestions(ctx context.Context, teacherID, testID int, input []model.QuestionInput) (*model.TestWithQuestions, error)
	Delete(ctx context.Context, teacherID, testID int) error
}

// TeacherResults lists results of a test for its owner.
type TeacherResults interface {
	ListResultsForTest(ctx context.Context, teacherID, testID int) ([]model.StudentResult, error)
}

// TestHandler serves test authoring to teachers and test papers to students.
type TestHandler struct {
	testService TestService
	results     TeacherResults
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService TestService, results TeacherResults) *TestHandler {
	return &TestHandler{testService: testService, results: results}
}

// Create godoc
// POST /api/v1/teacher/courses/:id/test
func (h *TestHandler) Create(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	test, err := h.testService.Create(c.Request.Context(), claims.UserID, courseID, req)
	if err != nil {
		failFromError(c, err, "Create test failed")
		return
	}
	response.Created(c, gin.H{"test": test})
}

// Get godoc
// GET /api/v1/teacher/tests/:id
// Returns the test with correct answers to the course owner.
func (h *TestHandler) Get(c *gin.Context) {
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	test, err := h.testService.GetForTeacher(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromError(c, err, "Get test failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/tests/:id/questions
func (h *TestHandler) ReplaceQuestions(c *gin.Context) {
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	test, err := h.testService.ReplaceQuestions(c.Request.Context(), claims.UserID, testID, req.Questions)
	if err != nil {
		failFromError(c, err, "Replace questions failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// Delete godoc
// DELETE /api/v1/teacher/tests/:id
func (h *TestHandler) Delete(c *gin.Context) {
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	if err := h.testService.Delete(c.Request.Context(), claims.UserID, testID); err != nil {
		failFromError(c, err, "Delete test failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "test deleted successfully"})
}

// Results godoc
// GET /api/v1/teacher/tests/:id/results
func (h *TestHandler) Results(c *gin.Context) {
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	results, err := h.results.ListResultsForTest(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromError(c, err, "List test results failed")
		return
	}
	if results == nil {
		results = []model.StudentResult{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// Paper godoc
// GET /api/v1/student/tests/:test_id
// Returns the questions without their answers.
func (h *TestHandler) Paper(c *gin.Context) {
	testID, ok := pathID(c, "test_id")
	if !ok {
		return
	}

	paper, err := h.testService.GetForStudent(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, err, "Get test paper failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": paper})
}
