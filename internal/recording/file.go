// Package recording models the scanned recording collection: the per-file
// lifecycle state machine, filename timestamp extraction and the in-memory
// registry that indexes a scan generation by date and by state.
package recording

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// State represents where a file is in its processing lifecycle.
type State string

const (
	// StateUnprocessed is the initial state of a scanned file.
	StateUnprocessed State = "UNPROCESSED"
	// StateProcessing marks a file targeted by the in-flight request.
	StateProcessing State = "PROCESSING"
	// StateProcessed indicates the request targeting the file succeeded.
	StateProcessed State = "PROCESSED"
	// StateFailed indicates the request, or this file's part of it, failed.
	StateFailed State = "FAILED"
	// StateConverted marks a video source that was transcoded to MP3.
	StateConverted State = "CONVERTED"
	// StateMerged marks a source consumed by a successful merge.
	StateMerged State = "MERGED"
	// StateMergedOutput marks a file produced by a merge. It may be assigned at scan time.
	StateMergedOutput State = "MERGED_OUTPUT"
)

// States lists every state in declaration order.
var States = []State{
	StateUnprocessed,
	StateProcessing,
	StateProcessed,
	StateFailed,
	StateConverted,
	StateMerged,
	StateMergedOutput,
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if s is one of the declared states.
func (s State) IsValid() bool {
	for _, st := range States {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states a request may leave a file in.
func (s State) IsTerminal() bool {
	switch s {
	case StateProcessed, StateFailed, StateConverted, StateMerged, StateMergedOutput:
		return true
	default:
		return false
	}
}

var (
	videoFormats = map[string]bool{"mp4": true, "avi": true, "mov": true, "mkv": true}
	audioFormats = map[string]bool{"mp3": true, "wav": true, "m4a": true, "flac": true, "ogg": true}
)

// FormatOf returns the lowercase extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// IsMediaPath returns true if path has one of the supported audio or video extensions.
func IsMediaPath(path string) bool {
	f := FormatOf(path)
	return videoFormats[f] || audioFormats[f]
}

// IsVideoFormat returns true for container formats that carry video.
func IsVideoFormat(format string) bool {
	return videoFormats[format]
}

// IsAudioFormat returns true for audio-only formats.
func IsAudioFormat(format string) bool {
	return audioFormats[format]
}

// File is one recording in the collection. Its identity is its path.
// State is owned by the Registry and changes only through Registry.UpdateState.
type File struct {
	// Path is the absolute path of the file.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Format is the lowercase extension without the dot.
	Format string
	// Source is the path this file was derived from, empty if none.
	Source string
	// Outputs lists the paths this file produced.
	Outputs []string
	// Duration is the playback length in seconds, 0 when unknown.
	Duration float64
	// Title comes from embedded tags and may be empty.
	Title string

	timestamp time.Time

	mu    sync.RWMutex
	state State
}

// NewFile creates a File for path with a fixed capture timestamp.
func NewFile(path string, ts time.Time, state State) *File {
	return &File{
		Path:      path,
		Format:    FormatOf(path),
		timestamp: ts,
		state:     state,
	}
}

// Timestamp returns the capture time. It never changes after construction.
func (f *File) Timestamp() time.Time {
	return f.timestamp
}

// State returns the current lifecycle state.
func (f *File) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *File) setState(state State) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

// Name returns the base name of the file.
func (f *File) Name() string {
	return filepath.Base(f.Path)
}

// Stem returns the base name without its extension.
func (f *File) Stem() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// DateKey returns the raw calendar date of the timestamp as 2006-01-02.
func (f *File) DateKey() string {
	return f.timestamp.Format(DateKeyLayout)
}

// IsVideo returns true for video container formats.
func (f *File) IsVideo() bool {
	return IsVideoFormat(f.Format)
}

// IsAudio returns true for audio-only formats.
func (f *File) IsAudio() bool {
	return IsAudioFormat(f.Format)
}

// AddOutput records a path produced from this file.
func (f *File) AddOutput(path string) {
	f.Outputs = append(f.Outputs, path)
}
