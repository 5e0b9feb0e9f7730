package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/scoring"
)

// Result ledger errors.
var (
	// ErrAlreadyPassed is returned when a student resubmits a test whose
	// stored score is already above the passing threshold.
	ErrAlreadyPassed = errors.New("test already passed")
	// ErrResultNotFound is returned when a student has no result for a test.
	ErrResultNotFound = errors.New("no result for this test")
)

// ResultStore is the result persistence ResultLedgerService depends on.
type ResultStore interface {
	Get(ctx context.Context, studentID, testID int) (*model.TestResult, error)
	SaveUnlessPassed(ctx context.Context, res *model.TestResult, passingScore float64) error
	ListByStudent(ctx context.Context, studentID int) ([]model.TestResultDetail, error)
	ListByTest(ctx context.Context, testID int) ([]model.StudentResult, error)
}

// TestLookup resolves a test by ID.
type TestLookup interface {
	GetByID(ctx context.Context, id int) (*model.Test, error)
}

// AnswerKeyProvider supplies the answer key of a test.
type AnswerKeyProvider interface {
	GetAnswerKey(ctx context.Context, testID int) ([]scoring.KeyEntry, error)
}

// CourseCompleter performs the enrollment completion transition.
type CourseCompleter interface {
	Complete(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error)
}

// OwnershipChecker verifies a teacher owns a course.
type OwnershipChecker interface {
	EnsureOwner(ctx context.Context, teacherID, courseID int) (*model.Course, error)
}

// SubmissionOutcome is what a student sees after submitting a test.
type SubmissionOutcome struct {
	Result            *model.TestResult     `json:"result"`
	MaxScore          float64               `json:"max_score"`
	PointsPerQuestion float64               `json:"points_per_question"`
	Passed            bool                  `json:"passed"`
	CourseCompleted   bool                  `json:"course_completed"`
	FinishedCourse    *model.FinishedCourse `json:"finished_course,omitempty"`
}

// ResultLedgerService scores submissions and keeps one result per
// (student, test): retakes overwrite it until a passing score is stored.
type ResultLedgerService struct {
	tests      TestLookup
	answerKeys AnswerKeyProvider
	results    ResultStore
	completer  CourseCompleter
	owners     OwnershipChecker
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewResultLedgerService creates a new ResultLedgerService.
func NewResultLedgerService(
	tests TestLookup,
	answerKeys AnswerKeyProvider,
	results ResultStore,
	completer CourseCompleter,
	owners OwnershipChecker,
	rdb *redis.Client,
	log zerolog.Logger,
) *ResultLedgerService {
	return &ResultLedgerService{
		tests:      tests,
		answerKeys: answerKeys,
		results:    results,
		completer:  completer,
		owners:     owners,
		rdb:        rdb,
		log:        log.With().Str("component", "result_ledger").Logger(),
	}
}

// Submit grades a submission and records it. A stored passing result is
// never overwritten. A passing score completes the test's course; that step
// is best-effort and never fails the submission.
func (s *ResultLedgerService) Submit(ctx context.Context, studentID, testID int, answers []scoring.Answer) (*SubmissionOutcome, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	key, err := s.answerKeys.GetAnswerKey(ctx, testID)
	if err != nil {
		return nil, err
	}
	graded := scoring.Score(key, answers)

	prior, err := s.results.Get(ctx, studentID, testID)
	switch {
	case err == nil:
		if scoring.IsPassing(prior.Score) {
			return nil, ErrAlreadyPassed
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get prior result: %w", err)
	}

	responses, err := json.Marshal(graded.Responses)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}

	res := &model.TestResult{
		StudentID:      studentID,
		TestID:         testID,
		Score:          graded.Score,
		TotalQuestions: graded.TotalQuestions,
		CorrectAnswers: graded.CorrectCount,
		Responses:      responses,
	}
	if err := s.results.SaveUnlessPassed(ctx, res, scoring.PassingScore); err != nil {
		if errors.Is(err, repository.ErrResultLocked) {
			return nil, ErrAlreadyPassed
		}
		return nil, fmt.Errorf("save result: %w", err)
	}

	out := &SubmissionOutcome{
		Result:            res,
		MaxScore:          scoring.MaxScore,
		PointsPerQuestion: graded.PointsPerQuestion,
		Passed:            scoring.IsPassing(res.Score),
	}

	s.log.Info().
		Int("student_id", studentID).
		Int("test_id", testID).
		Float64("score", res.Score).
		Bool("passed", out.Passed).
		Msg("Test submitted")

	if out.Passed {
		out.FinishedCourse = s.completeCourse(ctx, studentID, test)
		out.CourseCompleted = out.FinishedCourse != nil
	}
	return out, nil
}

// completeCourse runs the auto-completion. Business conflicts are logged and
// dropped; infrastructure failures are queued for the completion worker.
func (s *ResultLedgerService) completeCourse(ctx context.Context, studentID int, test *model.Test) *model.FinishedCourse {
	finished, err := s.completer.Complete(ctx, studentID, test.CourseID)
	if err == nil {
		return finished
	}

	logEvt := s.log.Warn().Err(err).Int("student_id", studentID).Int("course_id", test.CourseID)
	if errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrNotEnrolled) {
		logEvt.Msg("Auto-completion skipped")
		return nil
	}
	logEvt.Msg("Auto-completion failed, queueing retry")

	s.EnqueueCompletionRetry(ctx, model.CompletionRetry{
		StudentID: studentID,
		CourseID:  test.CourseID,
		TestID:    test.ID,
		Attempt:   1,
	})
	return nil
}

// EnqueueCompletionRetry pushes a failed completion onto the retry queue.
func (s *ResultLedgerService) EnqueueCompletionRetry(ctx context.Context, job model.CompletionRetry) {
	raw, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode completion retry")
		return
	}
	// Detached from the request so a client disconnect does not lose the retry.
	if err := s.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.RetryCompletionQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).
			Int("student_id", job.StudentID).
			Int("course_id", job.CourseID).
			Msg("Failed to queue completion retry")
	}
}

// GetResult returns the stored result of a student on a test.
func (s *ResultLedgerService) GetResult(ctx context.Context, studentID, testID int) (*model.TestResult, error) {
	res, err := s.results.Get(ctx, studentID, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

// HasPassed reports whether the stored result of a student on a test passed.
func (s *ResultLedgerService) HasPassed(ctx context.Context, studentID, testID int) (bool, error) {
	res, err := s.GetResult(ctx, studentID, testID)
	if errors.Is(err, ErrResultNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return scoring.IsPassing(res.Score), nil
}

// ListResults returns every result of a student.
func (s *ResultLedgerService) ListResults(ctx context.Context, studentID int) ([]model.TestResultDetail, error) {
	list, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return list, nil
}

// ListResultsForTest returns every student's result on a test to the
// teacher owning its course.
func (s *ResultLedgerService) ListResultsForTest(ctx context.Context, teacherID, testID int) ([]model.StudentResult, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if _, err := s.owners.EnsureOwner(ctx, teacherID, test.CourseID); err != nil {
		return nil, err
	}

	list, err := s.results.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return list, nil
}
