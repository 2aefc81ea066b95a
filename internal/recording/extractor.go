package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/afero"
)

// DefaultDatePattern matches "2024-01-15_14-30-00" and "2024-01-15 14-30" style stamps.
const DefaultDatePattern = `(\d{4}-\d{2}-\d{2})[_ ](\d{2}-\d{2}(?:-\d{2})?)`

const (
	// DateKeyLayout is the layout of raw date keys.
	DateKeyLayout = "2006-01-02"
	// StampLayout is the full filename timestamp layout.
	StampLayout = "2006-01-02 15-04-05"
	// ShortStampLayout is the filename timestamp layout without seconds.
	ShortStampLayout = "2006-01-02 15-04"
	// MergeStampLayout is the prefix layout of merge output names.
	MergeStampLayout = "20060102 15-04"
)

// ErrInvalidPattern is returned when a date pattern lacks its two capture groups.
var ErrInvalidPattern = errors.New("date pattern must have two capture groups")

var mergeOutputPattern = regexp.MustCompile(`(?i)^(\d{8} \d{2}-\d{2})( \[[^\]]*\])*( \(\d+\))?\.mp3$`)

// IsMergeOutputName reports whether name follows the merge output convention.
// Scan-time state assignment and Organize's exclusion filter both use it.
func IsMergeOutputName(name string) bool {
	return mergeOutputPattern.MatchString(name)
}

// Extractor derives capture timestamps from filenames.
type Extractor struct {
	pattern  *regexp.Regexp
	location *time.Location
	fs       afero.Fs
	logger   *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLocation sets the zone filename timestamps are interpreted in.
func WithLocation(loc *time.Location) ExtractorOption {
	return func(e *Extractor) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithLogger sets the logger used for parse fallbacks.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor compiles pattern and returns an Extractor reading mtimes from fsys.
// An empty pattern selects DefaultDatePattern.
func NewExtractor(pattern string, fsys afero.Fs, opts ...ExtractorOption) (*Extractor, error) {
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile date pattern: %w", err)
	}
	if re.NumSubexp() < 2 {
		return nil, ErrInvalidPattern
	}
	e := &Extractor{
		pattern:  re,
		location: time.UTC,
		fs:       fsys,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Location returns the zone timestamps are produced in.
func (e *Extractor) Location() *time.Location {
	return e.location
}

// Extract returns the capture timestamp of path and the state a freshly
// scanned file should start in. Parse problems fall back to the file's
// modification time and are never reported as errors.
func (e *Extractor) Extract(path string) (time.Time, State) {
	name := filepath.Base(path)

	if m := mergeOutputPattern.FindStringSubmatch(name); m != nil {
		ts, err := time.ParseInLocation(MergeStampLayout, m[1], e.location)
		if err != nil {
			e.logger.Debug("merge output stamp unparsable, using mtime",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			ts = e.modTime(path)
		}
		return ts, StateMergedOutput
	}

	if ts, ok := e.ParseName(name); ok {
		return ts, StateUnprocessed
	}

	e.logger.Debug("no timestamp in filename, using mtime", slog.String("file", name))
	return e.modTime(path), StateUnprocessed
}

// ParseName extracts the timestamp embedded in name, if any.
func (e *Extractor) ParseName(name string) (time.Time, bool) {
	m := e.pattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	stamp := m[1] + " " + m[2]
	for _, layout := range []string{StampLayout, ShortStampLayout} {
		if ts, err := time.ParseInLocation(layout, stamp, e.location); err == nil {
			return ts, true
		}
	}
	e.logger.Debug("timestamp match did not parse",
		slog.String("file", name),
		slog.String("stamp", stamp),
	)
	return time.Time{}, false
}

func (e *Extractor) modTime(path string) time.Time {
	info, err := e.fs.Stat(path)
	if err != nil {
		e.logger.Warn("stat failed, using current time",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
		return time.Now().In(e.location)
	}
	return info.ModTime().In(e.location)
}
