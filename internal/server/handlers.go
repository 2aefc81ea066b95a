package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiotoolbox/internal/grouping"
	"github.com/maauso/audiotoolbox/internal/history"
	"github.com/maauso/audiotoolbox/internal/recording"
	"github.com/maauso/audiotoolbox/internal/task"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *task.Service
	workDir   string
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance. workDir is scanned when a
// scan request names no directory.
func NewHandlers(service *task.Service, workDir string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		workDir:   workDir,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	engine := h.service.Engine()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Busy:   engine.Busy(),
		Files:  engine.Registry().Len(),
	})
}

// Groups handles GET /groups requests.
func (h *Handlers) Groups(w http.ResponseWriter, r *http.Request) {
	groups := h.service.Engine().Groups()
	resp := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Scan handles POST /scan requests. The body is optional.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = h.workDir
	}

	n, err := h.service.Scan(r.Context(), dir)
	if err != nil {
		if errors.Is(err, task.ErrBusy) {
			writeError(w, http.StatusConflict, "a task is running", "BUSY")
			return
		}
		h.logger.Warn("scan failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "SCAN_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Dir: dir, Files: n})
}

// CreateTask handles POST /tasks requests.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var body CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(body); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	req, err := h.buildRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TARGETS")
		return
	}

	// Run in background with a detached context so the task outlives the request.
	taskID, err := h.service.Start(context.WithoutCancel(r.Context()), req)
	if err != nil {
		if errors.Is(err, task.ErrBusy) {
			writeError(w, http.StatusConflict, "a task is running", "BUSY")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start task", "TASK_START_FAILED")
		return
	}

	h.logger.Info("task started",
		slog.String("task_id", taskID),
		slog.String("kind", body.Kind),
		slog.Int("targets", len(req.Targets)),
	)
	writeJSON(w, http.StatusAccepted, CreateTaskResponse{
		ID:     taskID,
		Status: string(history.StatusRunning),
	})
}

func (h *Handlers) buildRequest(body CreateTaskRequest) (task.Request, error) {
	kind, err := task.ParseKind(body.Kind)
	if err != nil {
		return task.Request{}, err
	}
	engine := h.service.Engine()

	var req task.Request
	if kind == task.KindMerge && body.Date != "" {
		req, err = engine.MergeByDate(body.Date, body.OutputDir)
		if err != nil {
			return task.Request{}, err
		}
	} else {
		targets, err := engine.Targets(body.Files, body.All)
		if err != nil {
			return task.Request{}, err
		}
		if len(targets) == 0 && kind != task.KindImport {
			return task.Request{}, task.ErrNoTargets
		}
		req = task.Request{Kind: kind, Targets: targets, OutputDir: body.OutputDir}
	}
	req.Params = task.Params{
		SourceDir:     body.SourceDir,
		ThresholdDB:   body.ThresholdDB,
		MinSilence:    body.MinSilence,
		Archive:       body.Archive,
		ArchiveFormat: body.ArchiveFormat,
	}
	return req, nil
}

// CurrentTask handles GET /tasks/current requests.
func (h *Handlers) CurrentTask(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "no task is running", "NO_CURRENT_TASK")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(rec))
}

// GetTask handles GET /tasks/{id} requests.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return
	}

	rec, err := h.service.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, history.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(rec))
}

func toTaskResponse(rec *history.Record) TaskResponse {
	resp := TaskResponse{
		ID:        rec.ID,
		Kind:      rec.Kind,
		Status:    string(rec.Status),
		Targets:   rec.Targets,
		Processed: rec.Processed,
		Failed:    rec.Failed,
		Outputs:   rec.Outputs,
		Error:     rec.Error,
		Log:       rec.Log,
		StartedAt: rec.StartedAt,
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

func toGroupResponse(g grouping.Group) GroupResponse {
	files := make([]FileResponse, 0, len(g.Files))
	for _, f := range g.Files {
		files = append(files, toFileResponse(f))
	}
	return GroupResponse{
		Key:   g.Key,
		Day:   g.Day.Format(time.DateOnly),
		Color: g.Color,
		Files: files,
	}
}

func toFileResponse(f *recording.File) FileResponse {
	return FileResponse{
		Path:      f.Path,
		Name:      f.Name(),
		Format:    f.Format,
		State:     f.State().String(),
		Timestamp: f.Timestamp(),
		Size:      f.Size,
		Duration:  f.Duration,
		Title:     f.Title,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
