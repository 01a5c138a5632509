package types

import "time"

// Message types surfaced to the host UI.
const (
	MessageTypeError        = "error"
	MessageTypeProgress     = "progress"
	MessageTypeConfirmation = "confirmation"
	MessageTypeStatus       = "status"
)

// Well-known action identifiers.
const (
	ActionQueue       = "queue"
	ActionCancel      = "cancel"
	ActionOpenBrowser = "open_browser"
)

// MessageAction is a user-facing action offered on a message, e.g. the Queue
// action on the printer-busy error.
type MessageAction struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Tooltip string `json:"tooltip,omitempty"`
}

// UIMessage is one user-facing message. Progress is a percentage in [0,100]
// or -1 when the message has no progress bar.
type UIMessage struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Progress  float64         `json:"progress"`
	Actions   []MessageAction `json:"actions,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Notification is the envelope pushed to host-UI subscribers over the
// websocket channel when a message appears, updates or is hidden.
type Notification struct {
	Event   string         `json:"event"` // "show", "update", "hide"
	Message UIMessage      `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
