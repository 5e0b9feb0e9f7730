package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
)

var (
	ErrNotEnrolled      = errors.New("student is not enrolled in this course")
	ErrAlreadyCompleted = errors.New("course already completed")
	ErrInvalidProgress  = errors.New("progress must be between 0 and 100")
)

// EnrollmentStore is the enrollment persistence EnrollmentService depends on.
type EnrollmentStore interface {
	WithPairLock(ctx context.Context, studentID, courseID int, fn func(tx repository.EnrollmentTx) error) error
	GetEnrollment(ctx context.Context, studentID, courseID int) (*model.EnrollmentDetail, error)
	GetFinishedCourse(ctx context.Context, studentID, courseID int) (*model.FinishedCourseDetail, error)
	ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error)
	ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error)
}

// CourseLookup resolves a course by ID.
type CourseLookup interface {
	GetByID(ctx context.Context, id int) (*model.Course, error)
}

// StartOutcome is the result of starting a course.
type StartOutcome struct {
	Enrollment      *model.Enrollment `json:"enrollment"`
	AlreadyEnrolled bool              `json:"already_enrolled"`
}

// EnrollmentService drives the absent -> in_progress -> completed lifecycle of
// a (student, course) pair. Every transition runs under the pair lock, so a
// pair is never both enrolled and finished.
type EnrollmentService struct {
	store   EnrollmentStore
	courses CourseLookup
	log     zerolog.Logger
}

// NewEnrollmentService creates a new EnrollmentService.
func NewEnrollmentService(store EnrollmentStore, courses CourseLookup, log zerolog.Logger) *EnrollmentService {
	return &EnrollmentService{
		store:   store,
		courses: courses,
		log:     log.With().Str("component", "enrollment_service").Logger(),
	}
}

// Start enrolls a student in a course. Starting again while in progress is a
// no-op reported through AlreadyEnrolled; starting a completed course fails.
func (s *EnrollmentService) Start(ctx context.Context, studentID, courseID int) (*StartOutcome, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	var out StartOutcome
	err := s.store.WithPairLock(ctx, studentID, courseID, func(tx repository.EnrollmentTx) error {
		if _, err := tx.FindFinished(ctx, studentID, courseID); err == nil {
			return ErrAlreadyCompleted
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("find finished course: %w", err)
		}

		existing, err := tx.FindEnrollment(ctx, studentID, courseID)
		if err == nil {
			out = StartOutcome{Enrollment: existing, AlreadyEnrolled: true}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("find enrollment: %w", err)
		}

		e := &model.Enrollment{
			StudentID:          studentID,
			CourseID:           courseID,
			Status:             model.EnrollmentStatusInProgress,
			ProgressPercentage: 0,
		}
		if err := tx.InsertEnrollment(ctx, e); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		out = StartOutcome{Enrollment: e}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.AlreadyEnrolled {
		s.log.Info().Int("student_id", studentID).Int("course_id", courseID).Msg("Course started")
	}
	return &out, nil
}

// Complete moves an in-progress enrollment to finished_courses, carrying its
// progress over as the final grade. The delete and the insert commit together.
func (s *EnrollmentService) Complete(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error) {
	var finished *model.FinishedCourse
	err := s.store.WithPairLock(ctx, studentID, courseID, func(tx repository.EnrollmentTx) error {
		e, err := tx.FindEnrollment(ctx, studentID, courseID)
		if errors.Is(err, pgx.ErrNoRows) {
			if _, ferr := tx.FindFinished(ctx, studentID, courseID); ferr == nil {
				return ErrAlreadyCompleted
			} else if !errors.Is(ferr, pgx.ErrNoRows) {
				return fmt.Errorf("find finished course: %w", ferr)
			}
			return ErrNotEnrolled
		}
		if err != nil {
			return fmt.Errorf("find enrollment: %w", err)
		}

		if err := tx.DeleteEnrollment(ctx, e.ID); err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}
		finished = &model.FinishedCourse{
			StudentID:   studentID,
			CourseID:    courseID,
			FinalGrade:  e.ProgressPercentage,
			CompletedAt: time.Now(),
		}
		if err := tx.InsertFinished(ctx, finished); err != nil {
			return fmt.Errorf("insert finished course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("student_id", studentID).
		Int("course_id", courseID).
		Float64("final_grade", finished.FinalGrade).
		Msg("Course completed")
	return finished, nil
}

// UpdateProgress sets the progress of an in-progress enrollment.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, studentID, courseID int, pct float64) (*model.Enrollment, error) {
	if pct < 0 || pct > 100 {
		return nil, ErrInvalidProgress
	}

	var updated *model.Enrollment
	err := s.store.WithPairLock(ctx, studentID, courseID, func(tx repository.EnrollmentTx) error {
		e, err := tx.FindEnrollment(ctx, studentID, courseID)
		if errors.Is(err, pgx.ErrNoRows) {
			if _, ferr := tx.FindFinished(ctx, studentID, courseID); ferr == nil {
				return ErrAlreadyCompleted
			} else if !errors.Is(ferr, pgx.ErrNoRows) {
				return fmt.Errorf("find finished course: %w", ferr)
			}
			return ErrNotEnrolled
		}
		if err != nil {
			return fmt.Errorf("find enrollment: %w", err)
		}
		if err := tx.UpdateProgress(ctx, e.ID, pct); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		e.ProgressPercentage = pct
		e.UpdatedAt = time.Now()
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Status reports where a student stands on a course.
func (s *EnrollmentService) Status(ctx context.Context, studentID, courseID int) (*model.EnrollmentStatusView, error) {
	e, err := s.GetEnrollment(ctx, studentID, courseID)
	if err == nil {
		return &model.EnrollmentStatusView{State: model.EnrollmentStateInProgress, Enrollment: e}, nil
	}
	if !errors.Is(err, ErrNotEnrolled) {
		return nil, err
	}

	f, err := s.GetFinishedCourse(ctx, studentID, courseID)
	if err == nil {
		return &model.EnrollmentStatusView{State: model.EnrollmentStateCompleted, Finished: f}, nil
	}
	if !errors.Is(err, ErrNotEnrolled) {
		return nil, err
	}
	return &model.EnrollmentStatusView{State: model.EnrollmentStateAbsent}, nil
}

// GetEnrollment returns the in-progress enrollment or ErrNotEnrolled.
func (s *EnrollmentService) GetEnrollment(ctx context.Context, studentID, courseID int) (*model.EnrollmentDetail, error) {
	e, err := s.store.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// GetFinishedCourse returns the finished record or ErrNotEnrolled.
func (s *EnrollmentService) GetFinishedCourse(ctx context.Context, studentID, courseID int) (*model.FinishedCourseDetail, error) {
	f, err := s.store.GetFinishedCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("get finished course: %w", err)
	}
	return f, nil
}

func (s *EnrollmentService) ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error) {
	list, err := s.store.ListInProgress(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list in-progress courses: %w", err)
	}
	return list, nil
}

func (s *EnrollmentService) ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error) {
	list, err := s.store.ListCompleted(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return list, nil
}
