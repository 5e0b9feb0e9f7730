package model

import "time"

// EnrollmentStatus is the only status an Enrollment row ever carries;
// completed pairs live in finished_courses instead.
const EnrollmentStatusInProgress = "in_progress"

// EnrollmentState is the lifecycle position of a (student, course) pair.
type EnrollmentState string

const (
	EnrollmentStateAbsent     EnrollmentState = "absent"
	EnrollmentStateInProgress EnrollmentState = "in_progress"
	EnrollmentStateCompleted  EnrollmentState = "completed"
)

// Enrollment is a student's in-progress relationship to a course.
type Enrollment struct {
	ID                 int       `json:"id"`
	StudentID          int       `json:"student_id"`
	CourseID           int       `json:"course_id"`
	Status             string    `json:"status"`
	ProgressPercentage float64   `json:"progress_percentage"`
	StartedAt          time.Time `json:"started_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FinishedCourse is the terminal record replacing an Enrollment.
type FinishedCourse struct {
	ID          int       `json:"id"`
	StudentID   int       `json:"student_id"`
	CourseID    int       `json:"course_id"`
	FinalGrade  float64   `json:"final_grade"`
	CompletedAt time.Time `json:"completed_at"`
}

// CourseInfo is the course metadata joined into enrollment projections.
type CourseInfo struct {
	CourseTitle       string `json:"course_title"`
	CourseDescription string `json:"course_description"`
	TeacherUsername   string `json:"teacher_username"`
}

// EnrollmentDetail is an Enrollment with its course metadata.
type EnrollmentDetail struct {
	Enrollment
	CourseInfo
}

// FinishedCourseDetail is a FinishedCourse with its course metadata.
type FinishedCourseDetail struct {
	FinishedCourse
	CourseInfo
}

// EnrollmentStatusView is the answer to "where is this student on this course".
type EnrollmentStatusView struct {
	State      EnrollmentState       `json:"state"`
	Enrollment *EnrollmentDetail     `json:"enrollment,omitempty"`
	Finished   *FinishedCourseDetail `json:"finished,omitempty"`
}

// CourseActionRequest carries the course of a start/complete call.
type CourseActionRequest struct {
	CourseID int `json:"course_id" binding:"required,min=1"`
}

// UpdateProgressRequest sets the progress of an in-progress enrollment.
type UpdateProgressRequest struct {
	CourseID           int      `json:"course_id" binding:"required,min=1"`
	ProgressPercentage *float64 `json:"progress_percentage" binding:"required,min=0,max=100"`
}

// CompletionRetry is a queued auto-completion that failed after a passing
// submission and must be retried.
type CompletionRetry struct {
	StudentID int `json:"student_id"`
	CourseID  int `json:"course_id"`
	TestID    int `json:"test_id"`
	Attempt   int `json:"attempt"`
}
