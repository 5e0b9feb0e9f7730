package repository

import (
	"context"

	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
)

// CourseRepository handles course data access.
type CourseRepository struct {
	db database.DB
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(db database.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListPaginated returns a page of courses with their teacher's username and
// the total number of courses.
func (r *CourseRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Course, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cours`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.titre, c.description, c.category, c.enseignant_id, e.username, c.created_at
		 FROM cours c
		 JOIN enseignants e ON e.id = c.enseignant_id
		 ORDER BY c.created_at DESC, c.id DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.TeacherID, &c.TeacherUsername, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		courses = append(courses, c)
	}
	return courses, total, rows.Err()
}

// GetByID retrieves a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id int) (*model.Course, error) {
	c := &model.Course{}
	err := r.db.QueryRow(ctx,
		`SELECT c.id, c.titre, c.description, c.category, c.enseignant_id, e.username, c.created_at
		 FROM cours c
		 JOIN enseignants e ON e.id = c.enseignant_id
		 WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.TeacherID, &c.TeacherUsername, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO cours (titre, description, category, enseignant_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.Title, c.Description, c.Category, c.TeacherID,
	).Scan(&c.ID, &c.CreatedAt)
}

// Delete removes a course by ID.
func (r *CourseRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cours WHERE id = $1`, id)
	return err
}
