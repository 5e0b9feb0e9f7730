package model

import (
	"encoding/json"
	"time"
)

// TestResult is the stored attempt of a student on a test. There is at most
// one per (student, test); it is overwritten on retake until it passes.
type TestResult struct {
	ID             int             `json:"id"`
	StudentID      int             `json:"student_id"`
	TestID         int             `json:"test_id"`
	Score          float64         `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	CorrectAnswers int             `json:"correct_answers"`
	Responses      json.RawMessage `json:"responses"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// TestResultDetail joins a result with its test and course titles.
type TestResultDetail struct {
	TestResult
	TestTitle   string `json:"test_title"`
	CourseID    int    `json:"course_id"`
	CourseTitle string `json:"course_title"`
}

// StudentResult is one row of a teacher's results listing.
type StudentResult struct {
	TestResult
	StudentUsername string `json:"student_username"`
	StudentEmail    string `json:"student_email"`
}

// SubmissionAnswer is one answer of a submission. Neither field is validated:
// unknown questions and invalid labels score as unanswered.
type SubmissionAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// SubmitTestRequest is the payload for submitting a test.
type SubmitTestRequest struct {
	TestID  int                `json:"test_id" binding:"required,min=1"`
	Answers []SubmissionAnswer `json:"answers" binding:"required"`
}
