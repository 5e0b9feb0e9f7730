package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
)

// EnrollmentTx is the set of enrollment operations available while the
// (student, course) pair lock is held.
type EnrollmentTx interface {
	FindEnrollment(ctx context.Context, studentID, courseID int) (*model.Enrollment, error)
	FindFinished(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error)
	InsertEnrollment(ctx context.Context, e *model.Enrollment) error
	UpdateProgress(ctx context.Context, enrollmentID int, pct float64) error
	DeleteEnrollment(ctx context.Context, enrollmentID int) error
	InsertFinished(ctx context.Context, f *model.FinishedCourse) error
}

// EnrollmentRepository handles enrollment and finished course data access.
type EnrollmentRepository struct {
	db database.DB
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(db database.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// WithPairLock runs fn in a transaction holding a transaction-scoped advisory
// lock on (studentID, courseID). Concurrent calls for the same pair run one
// after another; fn returning an error rolls back everything it wrote.
func (r *EnrollmentRepository) WithPairLock(ctx context.Context, studentID, courseID int, fn func(tx EnrollmentTx) error) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, int32(studentID), int32(courseID)); err != nil {
			return err
		}
		return fn(&enrollmentTx{tx: tx})
	})
}

type enrollmentTx struct {
	tx pgx.Tx
}

func (t *enrollmentTx) FindEnrollment(ctx context.Context, studentID, courseID int) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, etudiant_id, cours_id, status, progress_percentage, started_at, updated_at
		 FROM student_enrollments
		 WHERE etudiant_id = $1 AND cours_id = $2
		 FOR UPDATE`, studentID, courseID,
	).Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Status, &e.ProgressPercentage, &e.StartedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (t *enrollmentTx) FindFinished(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error) {
	f := &model.FinishedCourse{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, etudiant_id, cours_id, final_grade, completed_at
		 FROM finished_courses
		 WHERE etudiant_id = $1 AND cours_id = $2`, studentID, courseID,
	).Scan(&f.ID, &f.StudentID, &f.CourseID, &f.FinalGrade, &f.CompletedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (t *enrollmentTx) InsertEnrollment(ctx context.Context, e *model.Enrollment) error {
	return t.tx.QueryRow(ctx,
		`INSERT INTO student_enrollments (etudiant_id, cours_id, status, progress_percentage)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, started_at, updated_at`,
		e.StudentID, e.CourseID, e.Status, e.ProgressPercentage,
	).Scan(&e.ID, &e.StartedAt, &e.UpdatedAt)
}

func (t *enrollmentTx) UpdateProgress(ctx context.Context, enrollmentID int, pct float64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE student_enrollments SET progress_percentage = $1, updated_at = NOW() WHERE id = $2`,
		pct, enrollmentID,
	)
	return err
}

func (t *enrollmentTx) DeleteEnrollment(ctx context.Context, enrollmentID int) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM student_enrollments WHERE id = $1`, enrollmentID)
	return err
}

func (t *enrollmentTx) InsertFinished(ctx context.Context, f *model.FinishedCourse) error {
	if f.CompletedAt.IsZero() {
		f.CompletedAt = time.Now()
	}
	return t.tx.QueryRow(ctx,
		`INSERT INTO finished_courses (etudiant_id, cours_id, final_grade, completed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		f.StudentID, f.CourseID, f.FinalGrade, f.CompletedAt,
	).Scan(&f.ID)
}

const courseInfoColumns = `c.titre, COALESCE(c.description, ''), e.username`

// GetEnrollment returns the in-progress enrollment of a pair with course metadata.
func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, studentID, courseID int) (*model.EnrollmentDetail, error) {
	d := &model.EnrollmentDetail{}
	err := r.db.QueryRow(ctx,
		`SELECT se.id, se.etudiant_id, se.cours_id, se.status, se.progress_percentage, se.started_at, se.updated_at, `+courseInfoColumns+`
		 FROM student_enrollments se
		 JOIN cours c ON c.id = se.cours_id
		 JOIN enseignants e ON e.id = c.enseignant_id
		 WHERE se.etudiant_id = $1 AND se.cours_id = $2`, studentID, courseID,
	).Scan(&d.ID, &d.StudentID, &d.CourseID, &d.Status, &d.ProgressPercentage, &d.StartedAt, &d.UpdatedAt,
		&d.CourseTitle, &d.CourseDescription, &d.TeacherUsername)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetFinishedCourse returns the finished record of a pair with course metadata.
func (r *EnrollmentRepository) GetFinishedCourse(ctx context.Context, studentID, courseID int) (*model.FinishedCourseDetail, error) {
	d := &model.FinishedCourseDetail{}
	err := r.db.QueryRow(ctx,
		`SELECT fc.id, fc.etudiant_id, fc.cours_id, fc.final_grade, fc.completed_at, `+courseInfoColumns+`
		 FROM finished_courses fc
		 JOIN cours c ON c.id = fc.cours_id
		 JOIN enseignants e ON e.id = c.enseignant_id
		 WHERE fc.etudiant_id = $1 AND fc.cours_id = $2`, studentID, courseID,
	).Scan(&d.ID, &d.StudentID, &d.CourseID, &d.FinalGrade, &d.CompletedAt,
		&d.CourseTitle, &d.CourseDescription, &d.TeacherUsername)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListInProgress returns a student's in-progress enrollments, most recently updated first.
func (r *EnrollmentRepository) ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error) {
	rows, err := r.db.Query(ctx,
		`SELECT se.id, se.etudiant_id, se.cours_id, se.status, se.progress_percentage, se.started_at, se.updated_at, `+courseInfoColumns+`
		 FROM student_enrollments se
		 JOIN cours c ON c.id = se.cours_id
		 JOIN enseignants e ON e.id = c.enseignant_id
		 WHERE se.etudiant_id = $1
		 ORDER BY se.updated_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.EnrollmentDetail{}
	for rows.Next() {
		var d model.EnrollmentDetail
		if err := rows.Scan(&d.ID, &d.StudentID, &d.CourseID, &d.Status, &d.ProgressPercentage, &d.StartedAt, &d.UpdatedAt,
			&d.CourseTitle, &d.CourseDescription, &d.TeacherUsername); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// ListCompleted returns a student's finished courses, most recent first.
func (r *EnrollmentRepository) ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error) {
	rows, err := r.db.Query(ctx,
		`SELECT fc.id, fc.etudiant_id, fc.cours_id, fc.final_grade, fc.completed_at, `+courseInfoColumns+`
		 FROM finished_courses fc
		 JOIN cours c ON c.id = fc.cours_id
		 JOIN enseignants e ON e.id = c.enseignant_id
		 WHERE fc.etudiant_id = $1
		 ORDER BY fc.completed_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.FinishedCourseDetail{}
	for rows.Next() {
		var d model.FinishedCourseDetail
		if err := rows.Scan(&d.ID, &d.StudentID, &d.CourseID, &d.FinalGrade, &d.CompletedAt,
			&d.CourseTitle, &d.CourseDescription, &d.TeacherUsername); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
