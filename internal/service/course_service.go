package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/model"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrNotCourseOwner = errors.New("teacher does not own this course")
)

const (
	defaultCoursesPerPage = 20
	maxCoursesPerPage     = 100
)

// CourseStore is the course persistence CourseService depends on.
type CourseStore interface {
	ListPaginated(ctx context.Context, limit, offset int) ([]model.Course, int, error)
	GetByID(ctx context.Context, id int) (*model.Course, error)
	Create(ctx context.Context, c *model.Course) error
	Delete(ctx context.Context, id int) error
}

// CourseService handles course business logic.
type CourseService struct {
	courses CourseStore
	log     zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(courses CourseStore, log zerolog.Logger) *CourseService {
	return &CourseService{
		courses: courses,
		log:     log.With().Str("component", "course_service").Logger(),
	}
}

// List returns one page of courses and the total count. page starts at 1.
func (s *CourseService) List(ctx context.Context, page, perPage int) ([]model.Course, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxCoursesPerPage {
		perPage = defaultCoursesPerPage
	}
	courses, total, err := s.courses.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	return courses, total, nil
}

func (s *CourseService) GetByID(ctx context.Context, id int) (*model.Course, error) {
	c, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// Create stores a course owned by teacherID.
func (s *CourseService) Create(ctx context.Context, teacherID int, req model.CreateCourseRequest) (*model.Course, error) {
	c := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		TeacherID:   teacherID,
	}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Info().Int("course_id", c.ID).Int("teacher_id", teacherID).Msg("Course created")
	return c, nil
}

// EnsureOwner returns the course if teacherID authored it.
func (s *CourseService) EnsureOwner(ctx context.Context, teacherID, courseID int) (*model.Course, error) {
	c, err := s.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.TeacherID != teacherID {
		return nil, ErrNotCourseOwner
	}
	return c, nil
}

// Delete removes a course owned by teacherID. Tests, results and
// enrollments of the course cascade.
func (s *CourseService) Delete(ctx context.Context, teacherID, courseID int) error {
	if _, err := s.EnsureOwner(ctx, teacherID, courseID); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, courseID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	s.log.Info().Int("course_id", courseID).Msg("Course deleted")
	return nil
}
