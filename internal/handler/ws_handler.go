package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/scoring"
	ws "github.com/stemsi/elearn-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// TestFinder resolves the test a stream is opened for.
type TestFinder interface {
	GetTest(ctx context.Context, testID int) (*model.Test, error)
}

// WSHandler streams test submissions over WebSocket. Grading goes through
// the same ledger as the REST submit.
type WSHandler struct {
	tests    TestFinder
	ledger   Ledger
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(tests TestFinder, ledger Ledger, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		tests:    tests,
		ledger:   ledger,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/student/tests/:test_id/stream?token=...
// Upgrades to WebSocket; accepts "submit" and "ping" actions.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.Role != model.RoleStudent {
		response.Fail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
		return
	}

	testID, ok := pathID(c, "test_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.tests.GetTest(ctx, testID); err != nil {
		failFromError(c, err, "Resolve stream test failed")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Int("test_id", testID).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		action, raw, err := ws.ReadEnvelope(conn)
		if err != nil {
			var decodeErr *ws.DecodeError
			if errors.As(err, &decodeErr) {
				_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "message is not valid JSON")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, studentID, testID, raw)
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(action))
		}
	}
}

// handleSubmit grades one submission and reports the outcome as a graded event.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, studentID, testID int, raw []byte) {
	var req ws.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "invalid submit payload")
		return
	}

	answers := make([]scoring.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = scoring.Answer{QuestionID: a.QuestionID, Label: a.Answer}
	}

	outcome, err := h.ledger.Submit(ctx, studentID, testID, answers)
	if err != nil {
		_, code, known := classify(err)
		if !known {
			wsLog.Error().Err(err).Msg("Stream submission failed")
		}
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}

	_ = ws.WriteTyped(conn, ws.GradedResponse{
		Event:             ws.EventGraded,
		ResultID:          outcome.Result.ID,
		Score:             outcome.Result.Score,
		MaxScore:          outcome.MaxScore,
		PointsPerQuestion: outcome.PointsPerQuestion,
		CorrectAnswers:    outcome.Result.CorrectAnswers,
		TotalQuestions:    outcome.Result.TotalQuestions,
		Passed:            outcome.Passed,
		CourseCompleted:   outcome.CourseCompleted,
	})
}
