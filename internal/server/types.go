// Package server provides the HTTP adapter for audiotoolbox.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// ScanRequest is the optional HTTP request body for POST /scan.
type ScanRequest struct {
	// Dir overrides the configured work directory.
	Dir string `json:"dir"`
}

// ScanResponse is the HTTP response after a scan.
type ScanResponse struct {
	// Dir is the scanned directory.
	Dir string `json:"dir"`
	// Files is the number of registered recordings.
	Files int `json:"files"`
}

// CreateTaskRequest is the HTTP request body for submitting an operation.
type CreateTaskRequest struct {
	// Kind selects the operation.
	Kind string `json:"kind" validate:"required,oneof=IMPORT CONVERT MERGE REMOVE_SILENCE ORGANIZE"`
	// Files are registry paths to operate on.
	Files []string `json:"files" validate:"omitempty,dive,required"`
	// All targets every registered recording.
	All bool `json:"all"`
	// Date builds a merge-by-date request for a 2006-01-02 key (MERGE only).
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	// OutputDir overrides the configured output directory.
	OutputDir string `json:"output_dir"`
	// SourceDir is the IMPORT source folder.
	SourceDir string `json:"source_dir"`
	// ThresholdDB is the REMOVE_SILENCE loudness threshold. Omit it for the default.
	ThresholdDB *float64 `json:"threshold_db,omitempty" validate:"omitempty,max=0"`
	// MinSilence is the REMOVE_SILENCE minimum silent run, in seconds.
	MinSilence float64 `json:"min_silence" validate:"min=0"`
	// Archive requests an archive of each ORGANIZE folder.
	Archive bool `json:"archive"`
	// ArchiveFormat overrides the configured archive format.
	ArchiveFormat string `json:"archive_format" validate:"omitempty,oneof=zip tar.gz tgz tar.zst 7z"`
}

// CreateTaskResponse is the HTTP response after submitting a task.
type CreateTaskResponse struct {
	// ID is the unique identifier for the created task.
	ID string `json:"id"`
	// Status is the initial task status.
	Status string `json:"status"`
}

// TaskResponse is the HTTP response for task details.
type TaskResponse struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Targets    int        `json:"targets"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Outputs    []string   `json:"outputs,omitempty"`
	Error      string     `json:"error,omitempty"`
	Log        []string   `json:"log,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FileResponse describes one registered recording.
type FileResponse struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Duration  float64   `json:"duration,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// GroupResponse is one session day of recordings.
type GroupResponse struct {
	Key   string         `json:"key"`
	Day   string         `json:"day"`
	Color string         `json:"color"`
	Files []FileResponse `json:"files"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Busy reports whether a scan or task is running.
	Busy bool `json:"busy"`
	// Files is the number of registered recordings.
	Files int `json:"files"`
}
