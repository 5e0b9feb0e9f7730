package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/scoring"
)

var (
	ErrDuplicateTest     = errors.New("course already has a test")
	ErrQuestionNotInTest = errors.New("question does not belong to this test")
)

// TestRepository handles test and question data access.
type TestRepository struct {
	db database.DB
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(db database.DB) *TestRepository {
	return &TestRepository{db: db}
}

// GetByID retrieves a test by ID.
func (r *TestRepository) GetByID(ctx context.Context, id int) (*model.Test, error) {
	t := &model.Test{}
	err := r.db.QueryRow(ctx,
		`SELECT id, titre, description, cours_id, created_at FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.CourseID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a test and its initial questions in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.Test, questions []model.QuestionInput) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO tests (titre, description, cours_id)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			t.Title, t.Description, t.CourseID,
		).Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateTest
			}
			return err
		}

		for _, q := range questions {
			if err := insertQuestion(ctx, tx, t.ID, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListQuestions returns the questions of a test ordered by ID.
func (r *TestRepository) ListQuestions(ctx context.Context, testID int) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, test_id, question, option_a, option_b, option_c, option_d, answer
		 FROM test_questions
		 WHERE test_id = $1
		 ORDER BY id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Prompt, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AnswerKey returns the (question id, correct label) pairs of a test ordered by
// question ID. A test without questions yields an empty, non-nil slice.
func (r *TestRepository) AnswerKey(ctx context.Context, testID int) ([]scoring.KeyEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, answer FROM test_questions WHERE test_id = $1 ORDER BY id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := []scoring.KeyEntry{}
	for rows.Next() {
		var e scoring.KeyEntry
		if err := rows.Scan(&e.QuestionID, &e.Correct); err != nil {
			return nil, err
		}
		key = append(key, e)
	}
	return key, rows.Err()
}

// ReplaceQuestions makes the stored question set of a test equal to the
// payload: questions carrying an ID are updated, the others inserted, and
// stored questions missing from the payload deleted.
func (r *TestRepository) ReplaceQuestions(ctx context.Context, testID int, questions []model.QuestionInput) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		keep := make([]int, 0, len(questions))
		for _, q := range questions {
			if q.ID == nil {
				continue
			}
			tag, err := tx.Exec(ctx,
				`UPDATE test_questions
				 SET question = $1, option_a = $2, option_b = $3, option_c = $4, option_d = $5, answer = $6
				 WHERE id = $7 AND test_id = $8`,
				q.Prompt, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, *q.ID, testID,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrQuestionNotInTest
			}
			keep = append(keep, *q.ID)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM test_questions WHERE test_id = $1 AND NOT (id = ANY($2))`,
			testID, keep,
		); err != nil {
			return err
		}

		for _, q := range questions {
			if q.ID != nil {
				continue
			}
			if err := insertQuestion(ctx, tx, testID, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a test; questions and results cascade.
func (r *TestRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

func insertQuestion(ctx context.Context, tx pgx.Tx, testID int, q model.QuestionInput) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO test_questions (test_id, question, option_a, option_b, option_c, option_d, answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		testID, q.Prompt, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer,
	)
	return err
}
