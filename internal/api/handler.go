package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/history"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
)

const (
	// DownloadRoute is the streaming download endpoint.
	DownloadRoute = "/internal/download_model"
	// HistoryRoute lists finished download requests.
	HistoryRoute = "/internal/download_history"
)

// Status values of the synchronous (non-streaming) response.
const (
	StatusExists     = "exists"
	StatusDownloaded = "downloaded"
)

// SyncResponse is the single-object response for outcomes that need no
// streaming, e.g. the target file already being present.
type SyncResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the model download API.
type Handler struct {
	exec *executor.Executor
	repo *history.BboltRepository
}

// NewHandler creates a Handler. repo may be nil to disable history.
func NewHandler(exec *executor.Executor, repo *history.BboltRepository) *Handler {
	return &Handler{exec: exec, repo: repo}
}

// Register attaches the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(DownloadRoute, h.DownloadModel)
	mux.HandleFunc(HistoryRoute, h.DownloadHistory)
}

// DownloadModel performs one streamed model download. The target
// already existing short-circuits to a synchronous JSON response;
// otherwise the response is a JSONL event stream, flushed per event,
// terminated by exactly one completed or error event.
func (h *Handler) DownloadModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req executor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	started := time.Now()

	path, exists, err := h.exec.Check(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if exists && !req.Overwrite {
		logger.Debugf("Target %s already exists, skipping fetch", path)
		h.record(req, path, history.OutcomeExists, 0, "", started)
		writeJSON(w, http.StatusOK, SyncResponse{Status: StatusExists, Path: path})

		return
	}

	release, err := h.exec.Acquire(path)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", event.ContentType)
	w.WriteHeader(http.StatusOK)

	emit := func(ev event.Event) error {
		line, err := event.Encode(ev)
		if err != nil {
			return err
		}

		if _, err := w.Write(line); err != nil {
			return err
		}

		flusher.Flush()

		return nil
	}

	downloaded, runErr := h.exec.Run(r.Context(), req.URL, path, emit)
	if runErr != nil {
		h.record(req, path, history.OutcomeError, downloaded, runErr.Error(), started)
		return
	}

	h.record(req, path, history.OutcomeCompleted, downloaded, "", started)
}

// DownloadHistory returns every recorded request, most recent first.
func (h *Handler) DownloadHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusOK, []*history.Record{})
		return
	}

	records, err := h.repo.FindAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if records == nil {
		records = []*history.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) record(req executor.Request, path string, outcome history.Outcome, downloaded int64, message string, started time.Time) {
	if h.repo == nil {
		return
	}

	err := h.repo.Save(&history.Record{
		URL:        req.URL,
		Directory:  req.Directory,
		Filename:   req.Filename,
		Path:       path,
		Outcome:    outcome,
		Downloaded: downloaded,
		Message:    message,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err != nil {
		logger.Errorf("Failed to record download history: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
