package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiotoolbox/internal/recording"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func file(path string, ts time.Time) *recording.File {
	return recording.NewFile(path, ts, recording.StateUnprocessed)
}

func TestAdjustedDay_Cutoff(t *testing.T) {
	g, err := New(time.UTC, time.UTC, 4)
	require.NoError(t, err)

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"before midnight", time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC), "2024-01-01"},
		{"after midnight before cutoff", time.Date(2024, 1, 2, 0, 10, 0, 0, time.UTC), "2024-01-01"},
		{"just before cutoff", time.Date(2024, 1, 2, 3, 59, 0, 0, time.UTC), "2024-01-01"},
		{"at cutoff", time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), "2024-01-02"},
		{"year boundary", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), "2023-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.DayKey(tt.ts))
		})
	}
}

func TestAdjustedDay_ConvertsZones(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	g, err := New(shanghai, time.UTC, 4)
	require.NoError(t, err)

	// 10:00 in Shanghai is 02:00 UTC, before the cutoff.
	assert.Equal(t, "2024-01-01", g.DayKey(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	// 13:00 in Shanghai is 05:00 UTC.
	assert.Equal(t, "2024-01-02", g.DayKey(time.Date(2024, 1, 2, 13, 0, 0, 0, shanghai)))
}

func TestAdjustedDay_Monotonic(t *testing.T) {
	g, err := New(mustLoad(t, "Asia/Shanghai"), mustLoad(t, "America/New_York"), 4)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	prev := g.AdjustedDay(start)
	for i := 1; i < 24*60; i++ {
		cur := g.AdjustedDay(start.Add(time.Duration(i) * 37 * time.Minute))
		assert.False(t, cur.Before(prev), "adjusted day went backwards at step %d", i)
		prev = cur
	}
}

func TestGroup_SessionSpanningMidnight(t *testing.T) {
	g, err := New(time.UTC, time.UTC, 4)
	require.NoError(t, err)

	a := file("/w/2024-01-01_23-50-00.mp3", time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC))
	b := file("/w/2024-01-02_00-10-00.mp3", time.Date(2024, 1, 2, 0, 10, 0, 0, time.UTC))

	groups := g.Group([]*recording.File{b, a})

	require.Len(t, groups, 1)
	assert.Equal(t, "2024-01-01", groups[0].Key)
	assert.Equal(t, []*recording.File{a, b}, groups[0].Files)
	assert.Equal(t, "#FFB3B3", groups[0].Color)
}

func TestDefaultPalette(t *testing.T) {
	require.Len(t, DefaultPalette, 10)
	assert.Equal(t, "#FFB3B3", DefaultPalette[0])
	assert.Equal(t, "#B3D9FF", DefaultPalette[1])
	assert.Equal(t, "#E6FFB3", DefaultPalette[9])
}

func TestGroup_ChronologicalWithColours(t *testing.T) {
	g, err := New(time.UTC, time.UTC, 4, WithPalette([]string{"red", "blue"}))
	require.NoError(t, err)

	var files []*recording.File
	for d := 3; d >= 1; d-- {
		files = append(files, file("/w/x.mp3", time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)))
	}

	groups := g.Group(files)

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, []string{groups[0].Key, groups[1].Key, groups[2].Key})
	assert.Equal(t, []string{"red", "blue", "red"}, []string{groups[0].Color, groups[1].Color, groups[2].Color})
}

func TestGroup_Idempotent(t *testing.T) {
	g, err := New(time.UTC, time.UTC, 4)
	require.NoError(t, err)
	files := []*recording.File{
		file("/w/a.mp3", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		file("/w/b.mp3", time.Date(2024, 1, 5, 2, 0, 0, 0, time.UTC)),
	}

	assert.Equal(t, g.Group(files), g.Group(files))
	assert.Empty(t, g.Group(nil))
}

func TestNew_RejectsBadCutoff(t *testing.T) {
	_, err := New(time.UTC, time.UTC, 24)
	assert.ErrorIs(t, err, ErrInvalidCutoff)
	_, err = New(time.UTC, time.UTC, -1)
	assert.ErrorIs(t, err, ErrInvalidCutoff)
}

func TestPrepareForDisplay(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	video := file("/w/talk.mp4", ts)
	audio := file("/w/talk.mp3", ts.Add(time.Minute))
	lone := file("/w/other.mkv", ts.Add(-time.Minute))

	out := PrepareForDisplay([]*recording.File{video, audio, lone})

	assert.Equal(t, []*recording.File{lone, audio}, out)
}
