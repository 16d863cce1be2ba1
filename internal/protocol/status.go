package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/drover-dev/drover/internal/domain"
)

type MessageType string

const (
	MsgRunStarted   MessageType = "run_started"
	MsgTurnStarted  MessageType = "turn_started"
	MsgAction       MessageType = "action"
	MsgObservation  MessageType = "observation"
	MsgRunCompleted MessageType = "run_completed"
	MsgLog          MessageType = "log"
	MsgError        MessageType = "error"
)

// StatusMessage is one line of the machine-readable run status stream.
// The stream goes to stdout; logs go elsewhere, so a consumer can decode
// stdout without filtering.
type StatusMessage struct {
	Type      MessageType    `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Turn      int            `json:"turn,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Result    string         `json:"result,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type StatusWriter struct {
	w     io.Writer
	enc   *json.Encoder
	runID string
}

func NewStatusWriter(w io.Writer, runID string) *StatusWriter {
	return &StatusWriter{w: w, enc: json.NewEncoder(w), runID: runID}
}

func (s *StatusWriter) RunStarted(agent string) {
	s.write(StatusMessage{Type: MsgRunStarted, Agent: agent})
}

func (s *StatusWriter) TurnStarted(turn int) {
	s.write(StatusMessage{Type: MsgTurnStarted, Turn: turn})
}

func (s *StatusWriter) Action(turn int, a domain.Action) {
	s.write(StatusMessage{Type: MsgAction, Turn: turn, Kind: a.Kind(), Payload: a.ToMap(), Message: a.Message()})
}

func (s *StatusWriter) Observation(turn int, o domain.Observation) {
	s.write(StatusMessage{Type: MsgObservation, Turn: turn, Kind: o.Kind(), Payload: o.ToMap(), Message: o.Message()})
}

func (s *StatusWriter) RunCompleted(result string) {
	s.write(StatusMessage{Type: MsgRunCompleted, Result: result})
}

func (s *StatusWriter) Log(message string) {
	s.write(StatusMessage{Type: MsgLog, Message: message})
}

func (s *StatusWriter) Error(message string) {
	s.write(StatusMessage{Type: MsgError, Message: message})
}

func (s *StatusWriter) write(msg StatusMessage) {
	msg.RunID = s.runID
	msg.Timestamp = time.Now()
	_ = s.enc.Encode(msg)
}

// ParseStatusStream decodes a captured status stream back into messages.
func ParseStatusStream(data []byte) ([]StatusMessage, error) {
	var msgs []StatusMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var msg StatusMessage
		if err := dec.Decode(&msg); err != nil {
			return msgs, fmt.Errorf("failed to decode status message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
