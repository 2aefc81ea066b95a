package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"new recording", fsnotify.Event{Name: "/rec/a.mp3", Op: fsnotify.Create}, true},
		{"removed video", fsnotify.Event{Name: "/rec/a.mkv", Op: fsnotify.Remove}, true},
		{"renamed", fsnotify.Event{Name: "/rec/a.wav", Op: fsnotify.Rename}, true},
		{"chmod only", fsnotify.Event{Name: "/rec/a.mp3", Op: fsnotify.Chmod}, false},
		{"not media", fsnotify.Event{Name: "/rec/notes.txt", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestRun_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w := New(dir, func(context.Context) error {
		calls.Add(1)
		return nil
	}, WithDebounce(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_RetriesWhenBusy(t *testing.T) {
	dir := t.TempDir()
	errBusy := errors.New("busy")
	var calls atomic.Int32
	w := New(dir, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errBusy
		}
		return nil
	}, WithDebounce(50*time.Millisecond), WithRetry(func(err error) bool { return errors.Is(err, errBusy) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 20*time.Millisecond)
}

func TestRun_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), func(context.Context) error { return nil })

	err := w.Run(context.Background())
	require.Error(t, err)
}
