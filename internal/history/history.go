package history

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state a request ended in.
type Outcome string

const (
	OutcomeExists    Outcome = "exists"
	OutcomeCompleted Outcome = "completed"
	OutcomeError     Outcome = "error"
)

// Record is one finished download request.
type Record struct {
	ID         uuid.UUID `json:"id"`
	URL        string    `json:"url"`
	Directory  string    `json:"directory"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Outcome    Outcome   `json:"outcome"`
	Downloaded int64     `json:"downloaded,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
