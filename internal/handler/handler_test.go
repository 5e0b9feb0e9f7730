package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/scoring"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	m.Run()
}

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeLedger struct {
	submitted []scoring.Answer
	outcome   *service.SubmissionOutcome
	err       error
	result    *model.TestResult
}

func (f *fakeLedger) Submit(ctx context.Context, studentID, testID int, answers []scoring.Answer) (*service.SubmissionOutcome, error) {
	f.submitted = answers
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeLedger) GetResult(ctx context.Context, studentID, testID int) (*model.TestResult, error) {
	if f.result == nil {
		return nil, service.ErrResultNotFound
	}
	return f.result, nil
}

func (f *fakeLedger) ListResults(ctx context.Context, studentID int) ([]model.TestResultDetail, error) {
	return nil, f.err
}

type fakeEnrollments struct {
	start    *service.StartOutcome
	err      error
	progress float64
}

func (f *fakeEnrollments) Start(ctx context.Context, studentID, courseID int) (*service.StartOutcome, error) {
	return f.start, f.err
}

func (f *fakeEnrollments) Complete(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.FinishedCourse{ID: 1, StudentID: studentID, CourseID: courseID, CompletedAt: time.Now()}, nil
}

func (f *fakeEnrollments) UpdateProgress(ctx context.Context, studentID, courseID int, pct float64) (*model.Enrollment, error) {
	f.progress = pct
	return &model.Enrollment{StudentID: studentID, CourseID: courseID, ProgressPercentage: pct}, f.err
}

func (f *fakeEnrollments) Status(ctx context.Context, studentID, courseID int) (*model.EnrollmentStatusView, error) {
	return &model.EnrollmentStatusView{State: model.EnrollmentStateAbsent}, f.err
}

func (f *fakeEnrollments) ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error) {
	return nil, f.err
}

func (f *fakeEnrollments) ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error) {
	return nil, f.err
}

type fakeCourses struct {
	total   int
	page    int
	perPage int
}

func (f *fakeCourses) List(ctx context.Context, page, perPage int) ([]model.Course, int, error) {
	f.page, f.perPage = page, perPage
	return nil, f.total, nil
}

func (f *fakeCourses) GetByID(ctx context.Context, id int) (*model.Course, error) {
	if id != 3 {
		return nil, service.ErrCourseNotFound
	}
	return &model.Course{ID: 3, Title: "Go"}, nil
}

func (f *fakeCourses) Create(ctx context.Context, teacherID int, req model.CreateCourseRequest) (*model.Course, error) {
	return &model.Course{ID: 9, Title: req.Title, TeacherID: teacherID}, nil
}

func (f *fakeCourses) Delete(ctx context.Context, teacherID, courseID int) error {
	return service.ErrNotCourseOwner
}

// ─── Helpers ────────────────────────────────────────────────────────

func asUser(id int, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: id, Role: role})
		c.Next()
	}
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func dataMap(t *testing.T, env response.Response) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

// ─── Student ────────────────────────────────────────────────────────

func studentRouter(ledger *fakeLedger, enrollments *fakeEnrollments) *gin.Engine {
	h := NewStudentHandler(ledger, enrollments)
	r := gin.New()
	r.Use(asUser(7, model.RoleStudent))
	r.POST("/tests/submit", h.Submit)
	r.GET("/tests/:test_id/result", h.Result)
	r.GET("/results", h.Results)
	r.POST("/courses/start", h.StartCourse)
	r.POST("/courses/complete", h.CompleteCourse)
	r.PUT("/courses/progress", h.UpdateProgress)
	r.GET("/courses/:course_id/status", h.CourseStatus)
	return r
}

func TestSubmit(t *testing.T) {
	t.Run("passes answers through and returns the outcome", func(t *testing.T) {
		ledger := &fakeLedger{outcome: &service.SubmissionOutcome{
			Result:   &model.TestResult{Score: 15, CorrectAnswers: 3, TotalQuestions: 4},
			MaxScore: 20,
		}}
		w, env := do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"test_id": 1,
			"answers": []gin.H{{"question_id": 1, "answer": "a"}, {"question_id": 2, "answer": "x"}},
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []scoring.Answer{{QuestionID: 1, Label: "a"}, {QuestionID: 2, Label: "x"}}, ledger.submitted)
		assert.Equal(t, float64(20), dataMap(t, env)["max_score"])
	})

	t.Run("malformed answers reach scoring instead of failing the request", func(t *testing.T) {
		ledger := &fakeLedger{outcome: &service.SubmissionOutcome{Result: &model.TestResult{}, MaxScore: 20}}
		long := "not-an-option-label"
		w, _ := do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"test_id": 1,
			"answers": []gin.H{{"question_id": 0, "answer": "a"}, {"question_id": 2, "answer": long}},
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []scoring.Answer{{QuestionID: 0, Label: "a"}, {QuestionID: 2, Label: long}}, ledger.submitted)
	})

	t.Run("rejects a payload without test id", func(t *testing.T) {
		w, env := do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"answers": []gin.H{},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrValidation, env.Error.Code)
		assert.Contains(t, env.Error.Fields, "test_id")
	})

	t.Run("already passed is a conflict", func(t *testing.T) {
		ledger := &fakeLedger{err: service.ErrAlreadyPassed}
		w, env := do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"test_id": 1, "answers": []gin.H{},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, response.ErrAlreadyPassed, env.Error.Code)
	})

	t.Run("unknown test", func(t *testing.T) {
		ledger := &fakeLedger{err: service.ErrTestNotFound}
		w, env := do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"test_id": 99, "answers": []gin.H{},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrTestNotFound, env.Error.Code)
	})

	t.Run("infrastructure errors are generic", func(t *testing.T) {
		ledger := &fakeLedger{err: errors.New("connection reset")}
		w, env := do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodPost, "/tests/submit", gin.H{
			"test_id": 1, "answers": []gin.H{},
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, response.ErrInternal, env.Error.Code)
		assert.NotContains(t, env.Error.Message, "connection reset")
	})
}

func TestResult(t *testing.T) {
	w, env := do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}), http.MethodGet, "/tests/abc/result", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)

	w, env = do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}), http.MethodGet, "/tests/1/result", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrNotFound, env.Error.Code)

	ledger := &fakeLedger{result: &model.TestResult{Score: 12}}
	w, env = do(t, studentRouter(ledger, &fakeEnrollments{}), http.MethodGet, "/tests/1/result", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataMap(t, env)["passed"])
}

func TestResultsListIsNeverNull(t *testing.T) {
	w, env := do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}), http.MethodGet, "/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, dataMap(t, env)["results"])
}

func TestStartCourse(t *testing.T) {
	cases := []struct {
		name   string
		fake   *fakeEnrollments
		status int
		want   string
		code   response.ErrCode
	}{
		{
			name:   "new enrollment",
			fake:   &fakeEnrollments{start: &service.StartOutcome{Enrollment: &model.Enrollment{ID: 1}}},
			status: http.StatusCreated,
			want:   "ENROLLED",
		},
		{
			name:   "already enrolled is a success",
			fake:   &fakeEnrollments{start: &service.StartOutcome{Enrollment: &model.Enrollment{ID: 1}, AlreadyEnrolled: true}},
			status: http.StatusOK,
			want:   "ALREADY_ENROLLED",
		},
		{
			name:   "completed course",
			fake:   &fakeEnrollments{err: service.ErrAlreadyCompleted},
			status: http.StatusConflict,
			code:   response.ErrAlreadyCompleted,
		},
		{
			name:   "missing course",
			fake:   &fakeEnrollments{err: service.ErrCourseNotFound},
			status: http.StatusNotFound,
			code:   response.ErrCourseNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := do(t, studentRouter(&fakeLedger{}, tc.fake), http.MethodPost, "/courses/start", gin.H{"course_id": 3})
			require.Equal(t, tc.status, w.Code)
			if tc.want != "" {
				assert.Equal(t, tc.want, dataMap(t, env)["status"])
				return
			}
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestCompleteCourse(t *testing.T) {
	w, env := do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{err: service.ErrNotEnrolled}),
		http.MethodPost, "/courses/complete", gin.H{"course_id": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrNotEnrolled, env.Error.Code)

	w, env = do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}),
		http.MethodPost, "/courses/complete", gin.H{"course_id": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, dataMap(t, env), "finished_course")
}

func TestUpdateProgress(t *testing.T) {
	fake := &fakeEnrollments{}
	w, _ := do(t, studentRouter(&fakeLedger{}, fake), http.MethodPut, "/courses/progress",
		gin.H{"course_id": 3, "progress_percentage": 0})
	require.Equal(t, http.StatusOK, w.Code, "zero progress is a value")
	assert.Equal(t, float64(0), fake.progress)

	w, env := do(t, studentRouter(&fakeLedger{}, fake), http.MethodPut, "/courses/progress",
		gin.H{"course_id": 3, "progress_percentage": 120})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Fields, "progress_percentage")
}

func TestCourseStatus(t *testing.T) {
	w, env := do(t, studentRouter(&fakeLedger{}, &fakeEnrollments{}), http.MethodGet, "/courses/3/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "absent", dataMap(t, env)["state"])
}

// ─── Courses ────────────────────────────────────────────────────────

func TestCourseList(t *testing.T) {
	fake := &fakeCourses{total: 45}
	h := NewCourseHandler(fake)
	r := gin.New()
	r.GET("/courses", h.List)

	w, env := do(t, r, http.MethodGet, "/courses?page=2&per_page=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, fake.page)
	assert.Equal(t, defaultPerPage, fake.perPage)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.Equal(t, []any{}, dataMap(t, env)["courses"])
}

func TestCourseOwnership(t *testing.T) {
	h := NewCourseHandler(&fakeCourses{})
	r := gin.New()
	r.Use(asUser(2, model.RoleTeacher))
	r.GET("/courses/:id", h.Get)
	r.POST("/courses", h.Create)
	r.DELETE("/courses/:id", h.Delete)

	w, env := do(t, r, http.MethodGet, "/courses/4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrCourseNotFound, env.Error.Code)

	w, env = do(t, r, http.MethodPost, "/courses", gin.H{"title": "Concurrency in Go"})
	require.Equal(t, http.StatusCreated, w.Code)
	course := dataMap(t, env)["course"].(map[string]any)
	assert.Equal(t, float64(2), course["teacher_id"])

	w, env = do(t, r, http.MethodDelete, "/courses/3", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrNotCourseOwner, env.Error.Code)
}
