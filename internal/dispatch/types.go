package dispatch

import (
	"time"

	"sioux/internal/message"
)

// Config controls presentation timing.
type Config struct {
	// DefaultDisplayDuration applies when a notification carries none (seconds).
	DefaultDisplayDuration int
}

// Presentation is what the display boundary receives for one notification.
// Ack must be called once the close time has elapsed; extra calls are ignored.
type Presentation struct {
	ID         string
	Header     string
	Parts      []message.Part
	Visible    time.Duration
	CloseAfter time.Duration
	Ack        func()
}

// Event is published on the bus for queue lifecycle changes.
type Event struct {
	ID      string    `json:"id"`
	Header  string    `json:"header"`
	Pending int       `json:"pending"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

const (
	EventQueued       = "dispatch.queued"
	EventPresented    = "dispatch.presented"
	EventAcknowledged = "dispatch.acknowledged"
	EventFailed       = "dispatch.failed"
	EventAbandoned    = "dispatch.abandoned"
)

// Timing derives the visible window and close time for a display duration
// in seconds: visible for d+1 seconds, closed one second after that.
func Timing(displaySeconds int) (visible, closeAfter time.Duration) {
	visible = time.Duration(displaySeconds+1) * time.Second
	return visible, visible + time.Second
}
