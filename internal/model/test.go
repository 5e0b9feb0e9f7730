package model

import "time"

// Test is the single assessment attached to a course.
type Test struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CourseID    int       `json:"course_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Question is a four-option multiple-choice question of a test.
type Question struct {
	ID            int    `json:"id"`
	TestID        int    `json:"test_id"`
	Prompt        string `json:"question"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"answer"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID      int    `json:"id"`
	Prompt  string `json:"question"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// TestWithQuestions is the teacher view of a test.
type TestWithQuestions struct {
	Test
	Questions []Question `json:"questions"`
}

// TestPaper is the student view of a test.
type TestPaper struct {
	Test
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionInput is one question of an authoring payload. ID is set when
// updating an existing question and omitted for new ones.
type QuestionInput struct {
	ID            *int   `json:"id" binding:"omitempty,min=1"`
	Prompt        string `json:"question" binding:"required,min=1,max=2000"`
	OptionA       string `json:"option_a" binding:"required,max=500"`
	OptionB       string `json:"option_b" binding:"required,max=500"`
	OptionC       string `json:"option_c" binding:"required,max=500"`
	OptionD       string `json:"option_d" binding:"required,max=500"`
	CorrectAnswer string `json:"answer" binding:"required,option_label"`
}

// CreateTestRequest is the payload for creating a course's test.
type CreateTestRequest struct {
	Title       string          `json:"title" binding:"required,min=3,max=255"`
	Description string          `json:"description" binding:"max=5000"`
	Questions   []QuestionInput `json:"questions" binding:"dive"`
}

// ReplaceQuestionsRequest replaces the full question set of a test.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" binding:"required,dive"`
}
