package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds how long a test stream may stay silent.
	readWait = 5 * time.Minute
	// maxMessageSize fits a submission for a few hundred questions.
	maxMessageSize = 64 << 10
)

// Prepare applies the read limits every stream connection shares.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadEnvelope reads one message and returns its action with the raw
// payload for a second, action-specific decode.
func ReadEnvelope(conn *websocket.Conn) (Action, []byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", raw, &DecodeError{Err: err}
	}
	return env.Action, raw, nil
}

// DecodeError reports a message that was received but is not valid JSON.
// The connection is still usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode message: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
