package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/scoring"
)

var (
	ErrTestNotFound       = errors.New("test not found")
	ErrTestAlreadyExists  = errors.New("course already has a test")
	ErrInvalidAnswerLabel = errors.New("correct answer must be one of a, b, c, d")
	ErrQuestionNotInTest  = errors.New("question does not belong to this test")
)

// TestStore is the test persistence TestService depends on.
type TestStore interface {
	GetByID(ctx context.Context, id int) (*model.Test, error)
	Create(ctx context.Context, t *model.Test, questions []model.QuestionInput) error
	ListQuestions(ctx context.Context, testID int) ([]model.Question, error)
	ReplaceQuestions(ctx context.Context, testID int, questions []model.QuestionInput) error
	Delete(ctx context.Context, id int) error
}

// TestService handles test authoring and delivery.
type TestService struct {
	tests      TestStore
	courses    *CourseService
	answerKeys *AnswerKeyService
	log        zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, courses *CourseService, answerKeys *AnswerKeyService, log zerolog.Logger) *TestService {
	return &TestService{
		tests:      tests,
		courses:    courses,
		answerKeys: answerKeys,
		log:        log.With().Str("component", "test_service").Logger(),
	}
}

// GetTest retrieves a test by ID.
func (s *TestService) GetTest(ctx context.Context, testID int) (*model.Test, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

// Create attaches a new test to a course owned by teacherID.
func (s *TestService) Create(ctx context.Context, teacherID, courseID int, req model.CreateTestRequest) (*model.TestWithQuestions, error) {
	if _, err := s.courses.EnsureOwner(ctx, teacherID, courseID); err != nil {
		return nil, err
	}
	questions, err := normalizeQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	t := &model.Test{Title: req.Title, Description: req.Description, CourseID: courseID}
	if err := s.tests.Create(ctx, t, questions); err != nil {
		if errors.Is(err, repository.ErrDuplicateTest) {
			return nil, ErrTestAlreadyExists
		}
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().Int("test_id", t.ID).Int("course_id", courseID).Int("questions", len(questions)).Msg("Test created")
	return s.withQuestions(ctx, t)
}

// GetForTeacher returns a test with its answers to the owning teacher.
func (s *TestService) GetForTeacher(ctx context.Context, teacherID, testID int) (*model.TestWithQuestions, error) {
	t, err := s.ownedTest(ctx, teacherID, testID)
	if err != nil {
		return nil, err
	}
	return s.withQuestions(ctx, t)
}

// GetForStudent returns a test with its questions stripped of answers.
func (s *TestService) GetForStudent(ctx context.Context, testID int) (*model.TestPaper, error) {
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	questions, err := s.tests.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	paper := &model.TestPaper{Test: *t, Questions: make([]model.QuestionForStudent, 0, len(questions))}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, model.QuestionForStudent{
			ID:      q.ID,
			Prompt:  q.Prompt,
			OptionA: q.OptionA,
			OptionB: q.OptionB,
			OptionC: q.OptionC,
			OptionD: q.OptionD,
		})
	}
	return paper, nil
}

// ReplaceQuestions makes the question set of a test equal to the payload.
func (s *TestService) ReplaceQuestions(ctx context.Context, teacherID, testID int, input []model.QuestionInput) (*model.TestWithQuestions, error) {
	t, err := s.ownedTest(ctx, teacherID, testID)
	if err != nil {
		return nil, err
	}
	questions, err := normalizeQuestions(input)
	if err != nil {
		return nil, err
	}

	if err := s.tests.ReplaceQuestions(ctx, testID, questions); err != nil {
		if errors.Is(err, repository.ErrQuestionNotInTest) {
			return nil, ErrQuestionNotInTest
		}
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	s.answerKeys.Invalidate(ctx, testID)

	s.log.Info().Int("test_id", testID).Int("questions", len(questions)).Msg("Test questions replaced")
	return s.withQuestions(ctx, t)
}

// Delete removes a test owned by teacherID with its questions and results.
func (s *TestService) Delete(ctx context.Context, teacherID, testID int) error {
	if _, err := s.ownedTest(ctx, teacherID, testID); err != nil {
		return err
	}
	if err := s.tests.Delete(ctx, testID); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	s.answerKeys.Invalidate(ctx, testID)

	s.log.Info().Int("test_id", testID).Msg("Test deleted")
	return nil
}

func (s *TestService) ownedTest(ctx context.Context, teacherID, testID int) (*model.Test, error) {
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if _, err := s.courses.EnsureOwner(ctx, teacherID, t.CourseID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TestService) withQuestions(ctx context.Context, t *model.Test) (*model.TestWithQuestions, error) {
	questions, err := s.tests.ListQuestions(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return &model.TestWithQuestions{Test: *t, Questions: questions}, nil
}

// normalizeQuestions lower-cases correct answers and rejects anything outside a-d.
func normalizeQuestions(in []model.QuestionInput) ([]model.QuestionInput, error) {
	out := make([]model.QuestionInput, len(in))
	for i, q := range in {
		label, ok := scoring.NormalizeLabel(q.CorrectAnswer)
		if !ok {
			return nil, fmt.Errorf("question %d: %w", i+1, ErrInvalidAnswerLabel)
		}
		q.CorrectAnswer = label
		out[i] = q
	}
	return out, nil
}
