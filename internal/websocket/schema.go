package websocket

import "encoding/json"

// Action is a client→server message type.
type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Event is a server→client message type.
type Event string

const (
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventTick      Event = "tick"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// ClientMessage is the envelope for messages from the exam client.
type ClientMessage struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AutosavePayload carries one answer change. A null selected_answer clears
// the buffered entry.
type AutosavePayload struct {
	QuestionID     int  `json:"question_id"`
	SelectedAnswer *int `json:"selected_answer"`
}

// ServerMessage is the envelope for messages to the exam client.
type ServerMessage struct {
	Event   Event       `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// TickPayload reports the remaining time on the attempt clock.
type TickPayload struct {
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// SavedPayload acknowledges one autosaved answer.
type SavedPayload struct {
	QuestionID int `json:"question_id"`
}

// ErrorPayload reports a recoverable protocol or domain error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
