package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
)

// ErrResultLocked is returned by SaveUnlessPassed when the stored result
// already passed, so the write was refused.
var ErrResultLocked = errors.New("stored result already passed")

// ResultRepository handles test result data access.
type ResultRepository struct {
	db database.DB
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db database.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Get retrieves the stored result of a student on a test.
func (r *ResultRepository) Get(ctx context.Context, studentID, testID int) (*model.TestResult, error) {
	res := &model.TestResult{}
	var responses []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, etudiant_id, test_id, score, total_questions, correct_answers, responses, submitted_at
		 FROM test_results
		 WHERE etudiant_id = $1 AND test_id = $2`, studentID, testID,
	).Scan(&res.ID, &res.StudentID, &res.TestID, &res.Score, &res.TotalQuestions, &res.CorrectAnswers, &responses, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}
	res.Responses = responses
	return res, nil
}

// SaveUnlessPassed inserts the result, or overwrites the stored one as long as
// its score is not above passingScore. The check and the write are a single
// statement, so two concurrent submissions cannot both overwrite a pass.
func (r *ResultRepository) SaveUnlessPassed(ctx context.Context, res *model.TestResult, passingScore float64) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO test_results (etudiant_id, test_id, score, total_questions, correct_answers, responses, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (etudiant_id, test_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     total_questions = EXCLUDED.total_questions,
		     correct_answers = EXCLUDED.correct_answers,
		     responses = EXCLUDED.responses,
		     submitted_at = EXCLUDED.submitted_at
		 WHERE test_results.score <= $7
		 RETURNING id, submitted_at`,
		res.StudentID, res.TestID, res.Score, res.TotalQuestions, res.CorrectAnswers, []byte(res.Responses), passingScore,
	).Scan(&res.ID, &res.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrResultLocked
	}
	return err
}

// ListByStudent returns every result of a student with test and course titles.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.TestResultDetail, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tr.id, tr.etudiant_id, tr.test_id, tr.score, tr.total_questions, tr.correct_answers, tr.responses, tr.submitted_at,
		        t.titre, c.id, c.titre
		 FROM test_results tr
		 JOIN tests t ON t.id = tr.test_id
		 JOIN cours c ON c.id = t.cours_id
		 WHERE tr.etudiant_id = $1
		 ORDER BY tr.submitted_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.TestResultDetail{}
	for rows.Next() {
		var d model.TestResultDetail
		var responses []byte
		if err := rows.Scan(&d.ID, &d.StudentID, &d.TestID, &d.Score, &d.TotalQuestions, &d.CorrectAnswers, &responses, &d.SubmittedAt,
			&d.TestTitle, &d.CourseID, &d.CourseTitle); err != nil {
			return nil, err
		}
		d.Responses = responses
		results = append(results, d)
	}
	return results, rows.Err()
}

// ListByTest returns every student's result on a test, best score first.
func (r *ResultRepository) ListByTest(ctx context.Context, testID int) ([]model.StudentResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tr.id, tr.etudiant_id, tr.test_id, tr.score, tr.total_questions, tr.correct_answers, tr.responses, tr.submitted_at,
		        e.username, e.email
		 FROM test_results tr
		 JOIN etudiants e ON e.id = tr.etudiant_id
		 WHERE tr.test_id = $1
		 ORDER BY tr.score DESC, e.username`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.StudentResult{}
	for rows.Next() {
		var s model.StudentResult
		var responses []byte
		if err := rows.Scan(&s.ID, &s.StudentID, &s.TestID, &s.Score, &s.TotalQuestions, &s.CorrectAnswers, &responses, &s.SubmittedAt,
			&s.StudentUsername, &s.StudentEmail); err != nil {
			return nil, err
		}
		s.Responses = responses
		results = append(results, s)
	}
	return results, rows.Err()
}
