package model

import "time"

// Course is authored and owned by one teacher.
type Course struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	TeacherID       int       `json:"teacher_id"`
	TeacherUsername string    `json:"teacher_username,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=255"`
	Description string `json:"description" binding:"max=5000"`
	Category    string `json:"category" binding:"max=100"`
}
