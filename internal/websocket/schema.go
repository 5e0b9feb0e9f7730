package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SubmittedAnswer is one answer of a SubmitRequest.
type SubmittedAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// SubmitRequest is sent by the client to grade the test it is connected to.
type SubmitRequest struct {
	Action  Action            `json:"action"`
	Answers []SubmittedAnswer `json:"answers"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type GradedResponse struct {
	Event             Event   `json:"event"`
	ResultID          int     `json:"result_id"`
	Score             float64 `json:"score"`
	MaxScore          float64 `json:"max_score"`
	PointsPerQuestion float64 `json:"points_per_question"`
	CorrectAnswers    int     `json:"correct_answers"`
	TotalQuestions    int     `json:"total_questions"`
	Passed            bool    `json:"passed"`
	CourseCompleted   bool    `json:"course_completed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
