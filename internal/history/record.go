// Package history keeps a record of submitted tasks: their status, progress
// log and outcome, in memory or in SQLite.
package history

import (
	"errors"
	"sync"
	"time"
)

// MaxLogLines caps the progress log kept per record.
const MaxLogLines = 500

// Status represents the current state of a task record.
type Status string

const (
	// StatusRunning indicates the task is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the task finished without success.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Record is the history entry of one task.
type Record struct {
	mu sync.RWMutex

	ID         string
	Kind       string
	Status     Status
	Targets    int
	Processed  int
	Failed     int
	Outputs    []string
	Error      string
	Log        []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRecord creates a RUNNING record.
func NewRecord(id, kind string, targets int) *Record {
	return &Record{
		ID:        id,
		Kind:      kind,
		Status:    StatusRunning,
		Targets:   targets,
		StartedAt: time.Now(),
	}
}

// AppendLog adds a progress line, dropping the oldest beyond MaxLogLines.
func (r *Record) AppendLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Log = append(r.Log, line)
	if over := len(r.Log) - MaxLogLines; over > 0 {
		r.Log = append([]string(nil), r.Log[over:]...)
	}
}

// Finish moves the record to its terminal status with the task outcome.
// Returns ErrInvalidTransition if the record already finished.
func (r *Record) Finish(success bool, processed, failed int, outputs []string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	to := StatusCompleted
	if !success {
		to = StatusFailed
	}
	if !canTransition(r.Status, to) {
		return ErrInvalidTransition
	}
	r.Status = to
	r.Processed = processed
	r.Failed = failed
	r.Outputs = append([]string(nil), outputs...)
	r.Error = errMsg
	r.FinishedAt = time.Now()
	return nil
}

// GetStatus returns the current status (thread-safe).
func (r *Record) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true once the task finished.
func (r *Record) IsTerminal() bool {
	s := r.GetStatus()
	return s == StatusCompleted || s == StatusFailed
}

// Clone creates a deep copy of the record for safe reads.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Record{
		ID:         r.ID,
		Kind:       r.Kind,
		Status:     r.Status,
		Targets:    r.Targets,
		Processed:  r.Processed,
		Failed:     r.Failed,
		Outputs:    append([]string(nil), r.Outputs...),
		Error:      r.Error,
		Log:        append([]string(nil), r.Log...),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
