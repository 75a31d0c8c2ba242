package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ContentType is the content type of a progress event stream.
const ContentType = "application/jsonl; charset=utf-8"

var ErrUnknownKind = errors.New("unknown event kind")

// Kind tags a progress event. The wire field is "status" to match the
// synchronous response shape ({"status": "exists", ...}).
type Kind string

const (
	KindStart     Kind = "start"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Event is one entry of the line-delimited progress stream. Total is a
// pointer so "unknown size" survives a round trip as JSON null.
type Event struct {
	Kind       Kind
	Total      *int64
	Downloaded int64
	Path       string
	Message    string
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindError
}

func Start(total *int64, path string) Event {
	return Event{Kind: KindStart, Total: total, Path: path}
}

func Progress(downloaded int64, total *int64) Event {
	return Event{Kind: KindProgress, Downloaded: downloaded, Total: total}
}

func Completed(path string, downloaded int64) Event {
	return Event{Kind: KindCompleted, Path: path, Downloaded: downloaded}
}

func Error(message string) Event {
	return Event{Kind: KindError, Message: message}
}

type wireEvent struct {
	Status     Kind   `json:"status"`
	Total      *int64 `json:"total"`
	Downloaded *int64 `json:"downloaded,omitempty"`
	Path       string `json:"path,omitempty"`
	Message    string `json:"message,omitempty"`
}

// MarshalJSON emits only the fields that belong to the event's kind.
// A start or progress event always carries "total", null when unknown.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindStart:
		return json.Marshal(struct {
			Status Kind   `json:"status"`
			Total  *int64 `json:"total"`
			Path   string `json:"path"`
		}{e.Kind, e.Total, e.Path})
	case KindProgress:
		return json.Marshal(struct {
			Status     Kind   `json:"status"`
			Downloaded int64  `json:"downloaded"`
			Total      *int64 `json:"total"`
		}{e.Kind, e.Downloaded, e.Total})
	case KindCompleted:
		return json.Marshal(struct {
			Status     Kind   `json:"status"`
			Path       string `json:"path"`
			Downloaded int64  `json:"downloaded,omitempty"`
		}{e.Kind, e.Path, e.Downloaded})
	case KindError:
		return json.Marshal(struct {
			Status  Kind   `json:"status"`
			Message string `json:"message"`
		}{e.Kind, e.Message})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Status {
	case KindStart, KindProgress, KindCompleted, KindError:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, w.Status)
	}

	e.Kind = w.Status
	e.Total = w.Total
	e.Path = w.Path
	e.Message = w.Message
	e.Downloaded = 0

	if w.Downloaded != nil {
		e.Downloaded = *w.Downloaded
	}

	return nil
}

// Encode renders the event as a single JSONL line, newline included.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return append(b, '\n'), nil
}
