// Package grouping buckets recordings into session days. A session day is the
// calendar day of a recording in the target zone, shifted back one day for
// recordings made before the cutoff hour, so late-night sessions stay with
// the evening they started in.
package grouping

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/maauso/audiotoolbox/internal/recording"
)

// DefaultPalette holds the pastel display colours assigned to groups in order.
var DefaultPalette = []string{
	"#FFB3B3", "#B3D9FF", "#B3FFB3", "#FFFFB3", "#E6B3FF",
	"#FFB3E6", "#B3FFE6", "#FFE6B3", "#B3B3FF", "#E6FFB3",
}

const (
	// DefaultCutoffHour is the hour before which recordings count toward the previous day.
	DefaultCutoffHour = 4
	// DayKeyLayout formats adjusted days as group keys.
	DayKeyLayout = "2006-01-02"
)

// ErrInvalidCutoff is returned when the cutoff hour is outside 0..23.
var ErrInvalidCutoff = errors.New("cutoff hour must be between 0 and 23")

// Group is the files of one adjusted day.
type Group struct {
	// Key is the adjusted day as 2006-01-02.
	Key string
	// Day is midnight UTC of the adjusted day.
	Day time.Time
	// Color is the display colour of the group.
	Color string
	// Files are ordered by timestamp.
	Files []*recording.File
}

// Grouper computes adjusted days for a fixed zone and cutoff configuration.
type Grouper struct {
	reference *time.Location
	target    *time.Location
	cutoff    int
	palette   []string
}

// Option configures a Grouper.
type Option func(*Grouper)

// WithPalette replaces the display palette. An empty palette is ignored.
func WithPalette(colors []string) Option {
	return func(g *Grouper) {
		if len(colors) > 0 {
			g.palette = colors
		}
	}
}

// New creates a Grouper that reads wall clocks in reference and groups them
// by day in target.
func New(reference, target *time.Location, cutoffHour int, opts ...Option) (*Grouper, error) {
	if cutoffHour < 0 || cutoffHour > 23 {
		return nil, ErrInvalidCutoff
	}
	if reference == nil {
		reference = time.UTC
	}
	if target == nil {
		target = time.UTC
	}
	g := &Grouper{
		reference: reference,
		target:    target,
		cutoff:    cutoffHour,
		palette:   DefaultPalette,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// AdjustedDay returns the session day of t as midnight UTC of that date.
// The wall clock of t is read in the reference zone regardless of t's location.
func (g *Grouper) AdjustedDay(t time.Time) time.Time {
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), g.reference).In(g.target)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if local.Hour() < g.cutoff {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// DayKey returns AdjustedDay formatted as a group key.
func (g *Grouper) DayKey(t time.Time) string {
	return g.AdjustedDay(t).Format(DayKeyLayout)
}

// Group buckets files by adjusted day. Groups come back in chronological
// order; each group's colour is picked by the rank of its day among the
// distinct days present in files.
func (g *Grouper) Group(files []*recording.File) []Group {
	buckets := make(map[string]*Group)
	for _, f := range files {
		day := g.AdjustedDay(f.Timestamp())
		key := day.Format(DayKeyLayout)
		b, ok := buckets[key]
		if !ok {
			b = &Group{Key: key, Day: day}
			buckets[key] = b
		}
		b.Files = append(b.Files, f)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for rank, k := range keys {
		b := buckets[k]
		recording.SortByTimestamp(b.Files)
		b.Color = g.palette[rank%len(g.palette)]
		groups = append(groups, *b)
	}
	return groups
}

// PrepareForDisplay hides video files that already have an mp3 sibling with
// the same stem and returns the rest ordered by timestamp.
func PrepareForDisplay(files []*recording.File) []*recording.File {
	mp3Stems := make(map[string]bool)
	for _, f := range files {
		if f.Format == "mp3" {
			mp3Stems[strings.ToLower(f.Stem())] = true
		}
	}
	out := make([]*recording.File, 0, len(files))
	for _, f := range files {
		if f.IsVideo() && mp3Stems[strings.ToLower(f.Stem())] {
			continue
		}
		out = append(out, f)
	}
	recording.SortByTimestamp(out)
	return out
}
