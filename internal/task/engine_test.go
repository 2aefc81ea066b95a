package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiotoolbox/internal/grouping"
	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/recording"
)

// mockFacade implements media.Facade for testing.
type mockFacade struct {
	mock.Mock
}

var _ media.Facade = (*mockFacade)(nil)

func (m *mockFacade) CanTranscode() bool {
	return m.Called().Bool(0)
}

func (m *mockFacade) CanArchive() bool {
	return m.Called().Bool(0)
}

func (m *mockFacade) TranscodeToMP3(ctx context.Context, input, output string) bool {
	return m.Called(ctx, input, output).Bool(0)
}

func (m *mockFacade) TrimSilence(ctx context.Context, input, output string, thresholdDB, minDuration float64) bool {
	return m.Called(ctx, input, output, thresholdDB, minDuration).Bool(0)
}

func (m *mockFacade) MergeSequential(ctx context.Context, inputs []string, output string) bool {
	return m.Called(ctx, inputs, output).Bool(0)
}

func (m *mockFacade) CreateArchive(ctx context.Context, sourceDir, outputArchive string) bool {
	return m.Called(ctx, sourceDir, outputArchive).Bool(0)
}

const workDir = "/work"

func newTestEngine(t *testing.T, facade media.Facade, opts ...Option) (*Engine, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(workDir, 0o755))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	extractor, err := recording.NewExtractor("", fs, recording.WithLocation(time.UTC), recording.WithLogger(logger))
	require.NoError(t, err)
	grouper, err := grouping.New(time.UTC, time.UTC, 4)
	require.NoError(t, err)
	base := []Option{WithLogger(logger), WithProbe(false), WithImportCandidates(nil), WithWorkers(4)}
	return NewEngine(fs, extractor, grouper, facade, append(base, opts...)...), fs
}

// addFile creates name in the work dir and registers it.
func addFile(t *testing.T, e *Engine, fs afero.Fs, name string, ts time.Time) *recording.File {
	t.Helper()
	path := filepath.Join(workDir, name)
	require.NoError(t, afero.WriteFile(fs, path, []byte(name), 0o644))
	f := recording.NewFile(path, ts, recording.StateUnprocessed)
	e.Registry().Add(f)
	return f
}

func jan1(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestSubmit_MergeOrdersChronologically(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "2024-01-01_10-00-00.mp3", jan1(10, 0))
	b := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	want := filepath.Join(workDir, "20240101 09-00.mp3")

	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, []string{b.Path, a.Path}, want).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a, b}}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{want}, res.Outputs)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, recording.StateMerged, a.State())
	assert.Equal(t, recording.StateMerged, b.State())
	out, err := e.Registry().Get(want)
	require.NoError(t, err)
	assert.Equal(t, recording.StateMergedOutput, out.State())
	facade.AssertExpectations(t)
}

func TestSubmit_MergeNameHarvestsComments(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	t2 := addFile(t, e, fs, "2024-01-01_11-00-00 [retro].mp3", jan1(11, 0))
	t1 := addFile(t, e, fs, "2024-01-01_08-30-00 [standup] [retro].mp3", jan1(8, 30))
	t3 := addFile(t, e, fs, "2024-01-01_12-00-00 [lunch].mp3", jan1(12, 0))
	want := filepath.Join(workDir, "20240101 08-30 [standup] [retro] [lunch].mp3")

	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, []string{t1.Path, t2.Path, t3.Path}, want).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{t2, t1, t3}}, nil)

	require.True(t, res.Success, res.Error)
	facade.AssertExpectations(t)
}

func TestSubmit_MergeCollisionSafeName(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(workDir, "20240101 09-00.mp3"), nil, 0o644))
	want := filepath.Join(workDir, "20240101 09-00 (1).mp3")

	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, []string{a.Path}, want).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a}}, nil)

	require.True(t, res.Success, res.Error)
	assert.True(t, recording.IsMergeOutputName(filepath.Base(want)))
}

func TestSubmit_MergeFailureMarksFailed(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	b := addFile(t, e, fs, "2024-01-01_10-00-00.mp3", jan1(10, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, mock.Anything, mock.Anything).Return(false)

	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a, b}}, nil)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, recording.StateFailed, a.State())
	assert.Equal(t, 2, e.Registry().Len())
}

func TestSubmit_ConvertPartialFailure(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	good := addFile(t, e, fs, "good.mp4", jan1(9, 0))
	bad := addFile(t, e, fs, "bad.mp4", jan1(10, 0))
	audio := addFile(t, e, fs, "note.mp3", jan1(11, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, good.Path, filepath.Join(workDir, "good.mp3")).Return(true)
	facade.On("TranscodeToMP3", mock.Anything, bad.Path, filepath.Join(workDir, "bad.mp3")).Return(false)

	res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: []*recording.File{good, bad, audio}}, nil)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, recording.StateConverted, good.State())
	assert.Equal(t, recording.StateFailed, bad.State())
	assert.Equal(t, recording.StateProcessed, audio.State())

	derived, err := e.Registry().Get(filepath.Join(workDir, "good.mp3"))
	require.NoError(t, err)
	assert.Equal(t, good.Path, derived.Source)
	assert.True(t, derived.Timestamp().Equal(good.Timestamp()))
	_, err = e.Registry().Get(filepath.Join(workDir, "bad.mp3"))
	assert.ErrorIs(t, err, recording.ErrFileNotFound)
}

func TestSubmit_ConvertAllFail(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	v := addFile(t, e, fs, "clip.mp4", jan1(9, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, mock.Anything, mock.Anything).Return(false)

	res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: []*recording.File{v}}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, recording.StateFailed, v.State())
	assert.Equal(t, 1, e.Registry().Len())
}

func TestSubmit_ConvertExistingOutputGetsSuffix(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	v := addFile(t, e, fs, "clip.mp4", jan1(9, 0))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(workDir, "clip.mp3"), nil, 0o644))

	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, v.Path, filepath.Join(workDir, "clip (1).mp3")).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: []*recording.File{v}}, nil)

	require.True(t, res.Success)
	facade.AssertExpectations(t)
}

func TestSubmit_ConvertDeterministicUnderConcurrency(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade, WithWorkers(3))
	var targets []*recording.File
	facade.On("CanTranscode").Return(true)
	for i := 0; i < 20; i++ {
		f := addFile(t, e, fs, fmt.Sprintf("clip%02d.mp4", i), jan1(9, i))
		targets = append(targets, f)
		facade.On("TranscodeToMP3", mock.Anything, f.Path, mock.Anything).Return(i%2 == 0)
	}

	for run := 0; run < 3; run++ {
		for _, f := range targets {
			e.Registry().UpdateState(f, recording.StateUnprocessed)
		}
		res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: targets}, nil)
		assert.Equal(t, 10, res.Processed)
		assert.Equal(t, 10, res.Failed)
	}
}

func TestSubmit_ToolUnavailable(t *testing.T) {
	for _, kind := range []Kind{KindConvert, KindMerge, KindRemoveSilence} {
		t.Run(string(kind), func(t *testing.T) {
			facade := &mockFacade{}
			e, fs := newTestEngine(t, facade)
			f := addFile(t, e, fs, "clip.mp4", jan1(9, 0))
			facade.On("CanTranscode").Return(false)

			res := e.Submit(context.Background(), Request{Kind: kind, Targets: []*recording.File{f}}, nil)

			assert.False(t, res.Success)
			assert.Contains(t, res.Error, media.ErrToolUnavailable.Error())
			assert.Equal(t, recording.StateFailed, f.State())
			facade.AssertNotCalled(t, "TranscodeToMP3", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_RemoveSilenceDefaults(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	f := addFile(t, e, fs, "talk.wav", jan1(9, 0))
	want := filepath.Join(workDir, "nosilence_talk.mp3")

	facade.On("CanTranscode").Return(true)
	facade.On("TrimSilence", mock.Anything, f.Path, want, DefaultThresholdDB, DefaultMinSilence).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindRemoveSilence, Targets: []*recording.File{f}}, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{want}, res.Outputs)
	assert.Equal(t, recording.StateProcessed, f.State())
	facade.AssertExpectations(t)
}

func TestSubmit_RemoveSilenceParams(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	f := addFile(t, e, fs, "talk.mp3", jan1(9, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("TrimSilence", mock.Anything, f.Path, mock.Anything, -40.0, 0.5).Return(true)

	res := e.Submit(context.Background(), Request{
		Kind:    KindRemoveSilence,
		Targets: []*recording.File{f},
		Params:  Params{ThresholdDB: ptr(-40.0), MinSilence: 0.5},
	}, nil)

	require.True(t, res.Success)
	facade.AssertExpectations(t)
}

func TestSubmit_RemoveSilenceZeroThreshold(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	f := addFile(t, e, fs, "talk.mp3", jan1(9, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("TrimSilence", mock.Anything, f.Path, mock.Anything, 0.0, DefaultMinSilence).Return(true)

	res := e.Submit(context.Background(), Request{
		Kind:    KindRemoveSilence,
		Targets: []*recording.File{f},
		Params:  Params{ThresholdDB: ptr(0.0)},
	}, nil)

	require.True(t, res.Success)
	facade.AssertExpectations(t)
}

func ptr[T any](v T) *T {
	return &v
}

func TestSubmit_OrganizeTwice(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	b := addFile(t, e, fs, "2024-01-01_10-00-00.mp3", jan1(10, 0))
	c := addFile(t, e, fs, "2024-01-02_08-15-00.mp3", time.Date(2024, 1, 2, 8, 15, 0, 0, time.UTC))
	targets := []*recording.File{a, b, c}

	res := e.Submit(context.Background(), Request{Kind: KindOrganize, Targets: targets}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Processed)
	folder1 := filepath.Join(workDir, "20240101 09-00")
	folder2 := filepath.Join(workDir, "20240102 08-15")
	assert.Equal(t, []string{folder1, folder2}, res.Outputs)
	for _, p := range []string{
		filepath.Join(folder1, a.Name()),
		filepath.Join(folder1, b.Name()),
		filepath.Join(folder2, c.Name()),
	} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, exists, p)
	}
	assert.Equal(t, recording.StateProcessed, a.State())
	assert.Equal(t, []string{filepath.Join(folder1, a.Name())}, a.Outputs)

	again := e.Submit(context.Background(), Request{Kind: KindOrganize, Targets: targets}, nil)

	assert.False(t, again.Success)
	assert.Equal(t, 3, again.Failed)
	for _, f := range targets {
		assert.Equal(t, recording.StateFailed, f.State())
	}
}

func TestSubmit_OrganizeSkipsMergeOutputs(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	raw := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	merged := addFile(t, e, fs, "20240101 09-00 [notes].mp3", jan1(9, 0))
	e.Registry().UpdateState(merged, recording.StateMergedOutput)

	res := e.Submit(context.Background(), Request{Kind: KindOrganize, Targets: []*recording.File{raw, merged}}, nil)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, recording.StateMergedOutput, merged.State())
	exists, _ := afero.Exists(fs, merged.Path)
	assert.True(t, exists)
}

func TestSubmit_OrganizeArchives(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade, WithArchiveFormat("tar.gz"))
	a := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	folder := filepath.Join(workDir, "20240101 09-00")

	facade.On("CanArchive").Return(true)
	facade.On("CreateArchive", mock.Anything, folder, folder+".tar.gz").Return(true)

	res := e.Submit(context.Background(), Request{
		Kind:    KindOrganize,
		Targets: []*recording.File{a},
		Params:  Params{Archive: true},
	}, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{folder, folder + ".tar.gz"}, res.Outputs)
	facade.AssertExpectations(t)
}

func TestSubmit_Import(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	src := "/obs"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(src, "2024-01-01_09-00-00.mp4"), []byte("v"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(src, "notes.txt"), []byte("t"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(src, "dup.mp3"), []byte("new"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(workDir, "dup.mp3"), []byte("old"), 0o644))

	res := e.Submit(context.Background(), Request{
		Kind:      KindImport,
		OutputDir: workDir,
		Params:    Params{SourceDir: src},
	}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Processed)
	assert.ElementsMatch(t, []string{
		filepath.Join(workDir, "2024-01-01_09-00-00.mp4"),
		filepath.Join(workDir, "dup (1).mp3"),
	}, res.Outputs)
	data, err := afero.ReadFile(fs, filepath.Join(workDir, "dup.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	exists, _ := afero.Exists(fs, filepath.Join(src, "notes.txt"))
	assert.True(t, exists)
}

func TestSubmit_ImportAutoLocate(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade, WithImportCandidates([]string{"/home/Movies", "/home/Videos"}), WithOutputDir(workDir))
	require.NoError(t, afero.WriteFile(fs, "/home/Movies/readme.txt", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/home/Videos/rec.mp4", []byte("v"), 0o644))

	res := e.Submit(context.Background(), Request{Kind: KindImport}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{filepath.Join(workDir, "rec.mp4")}, res.Outputs)
}

func TestSubmit_ImportNoSource(t *testing.T) {
	e, _ := newTestEngine(t, &mockFacade{})

	res := e.Submit(context.Background(), Request{Kind: KindImport}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, ErrNoSourceDir.Error(), res.Error)
}

func TestSubmit_UnknownKind(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	f := addFile(t, e, fs, "a.mp3", jan1(9, 0))

	res := e.Submit(context.Background(), Request{Kind: "EXPLODE", Targets: []*recording.File{f}}, nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrUnknownKind.Error())
	assert.Equal(t, recording.StateUnprocessed, f.State())
}

func TestSubmit_PanicMarksTargetsFailed(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "a.mp3", jan1(9, 0))
	b := addFile(t, e, fs, "b.mp3", jan1(10, 0))

	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("codec exploded")
	}).Return(true)

	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a, b}}, nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrHandlerPanic.Error())
	assert.Equal(t, recording.StateFailed, a.State())
	assert.Equal(t, recording.StateFailed, b.State())
	assert.Empty(t, e.Registry().ByState(recording.StateProcessing))
	assert.False(t, e.Busy())
}

func TestSubmit_BusyRejectsSecondRequest(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "a.mp3", jan1(9, 0))

	started := make(chan struct{})
	unblock := make(chan struct{})
	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-unblock
	}).Return(true)

	done := make(chan Result)
	go func() {
		done <- e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a}}, nil)
	}()
	<-started

	assert.True(t, e.Busy())
	second := e.Submit(context.Background(), Request{Kind: KindOrganize, Targets: []*recording.File{a}}, nil)
	assert.False(t, second.Success)
	assert.Equal(t, ErrBusy.Error(), second.Error)
	_, err := e.Scan(context.Background(), workDir)
	assert.ErrorIs(t, err, ErrBusy)

	close(unblock)
	first := <-done
	assert.True(t, first.Success)
	assert.False(t, e.Busy())
}

func TestSubmit_ProgressThroughChannel(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	a := addFile(t, e, fs, "a.mp3", jan1(9, 0))
	facade.On("CanTranscode").Return(true)
	facade.On("MergeSequential", mock.Anything, mock.Anything, mock.Anything).Return(true)

	reporter := NewChannelReporter(16)
	res := e.Submit(context.Background(), Request{Kind: KindMerge, Targets: []*recording.File{a}}, reporter)
	reporter.Close()

	require.True(t, res.Success)
	var lines []string
	for l := range reporter.Lines() {
		lines = append(lines, l)
	}
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "merging 1 files")
	assert.NotPanics(t, func() { reporter.Report("late") })
}

func TestScan(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	for _, name := range []string{
		"2024-01-01_23-50-00.mp3",
		"2024-01-02_00-10-00.mp3",
		"2024-01-02 00-20-00.mp3",
		"20240101 23-50 [night].mp3",
		"notes.txt",
	} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(workDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, fs.MkdirAll(filepath.Join(workDir, "sub.mp3"), 0o755))

	n, err := e.Scan(context.Background(), workDir)

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, e.Registry().ByState(recording.StateMergedOutput), 1)
	groups := e.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "2024-01-01", groups[0].Key)
	assert.Len(t, groups[0].Files, 4)
}

func TestScan_KeepsSessionStates(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(workDir, "clip.mp4"), []byte("v"), 0o644))
	_, err := e.Scan(context.Background(), workDir)
	require.NoError(t, err)
	clip, err := e.Registry().Get(filepath.Join(workDir, "clip.mp4"))
	require.NoError(t, err)

	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, clip.Path, mock.Anything).Run(func(args mock.Arguments) {
		_ = afero.WriteFile(fs, args.String(2), []byte("a"), 0o644)
	}).Return(true)
	res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: []*recording.File{clip}}, nil)
	require.True(t, res.Success)

	n, err := e.Scan(context.Background(), workDir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	rescanned, err := e.Registry().Get(clip.Path)
	require.NoError(t, err)
	assert.Equal(t, recording.StateConverted, rescanned.State())
}

func TestScan_ForgetsSessionStateOfRemovedFiles(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	clipPath := filepath.Join(workDir, "clip.mp4")
	require.NoError(t, afero.WriteFile(fs, clipPath, []byte("v"), 0o644))
	_, err := e.Scan(context.Background(), workDir)
	require.NoError(t, err)
	clip, err := e.Registry().Get(clipPath)
	require.NoError(t, err)

	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, clipPath, mock.Anything).Return(true)
	res := e.Submit(context.Background(), Request{Kind: KindConvert, Targets: []*recording.File{clip}}, nil)
	require.True(t, res.Success)

	require.NoError(t, fs.Remove(clipPath))
	_, err = e.Scan(context.Background(), workDir)
	require.NoError(t, err)
	assert.Empty(t, e.session)

	require.NoError(t, afero.WriteFile(fs, clipPath, []byte("new"), 0o644))
	_, err = e.Scan(context.Background(), workDir)
	require.NoError(t, err)
	reused, err := e.Registry().Get(clipPath)
	require.NoError(t, err)
	assert.Equal(t, recording.StateUnprocessed, reused.State())
}

func TestGroups_WhileTaskRuns(t *testing.T) {
	facade := &mockFacade{}
	e, fs := newTestEngine(t, facade)
	var files []*recording.File
	for i := 0; i < 8; i++ {
		files = append(files, addFile(t, e, fs, fmt.Sprintf("2024-01-01_09-0%d-00.mp4", i), jan1(9, i)))
	}
	facade.On("CanTranscode").Return(true)
	facade.On("TranscodeToMP3", mock.Anything, mock.Anything, mock.Anything).Return(true)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, g := range e.Groups() {
				for _, f := range g.Files {
					_ = f.State()
				}
			}
		}
	}()

	for i := 0; i < 5; i++ {
		e.Submit(context.Background(), Request{Kind: KindConvert, Targets: files}, nil)
	}
	close(done)
	wg.Wait()

	for _, f := range files {
		assert.True(t, f.State().IsTerminal(), f.Path)
	}
}

func TestScan_MissingDir(t *testing.T) {
	e, _ := newTestEngine(t, &mockFacade{})
	_, err := e.Scan(context.Background(), "/nope")
	assert.Error(t, err)
	assert.False(t, e.Busy())
}

func TestMergeByDate(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	a := addFile(t, e, fs, "2024-01-01_09-00-00.mp3", jan1(9, 0))
	b := addFile(t, e, fs, "2024-01-01_08-00-00.wav", jan1(8, 0))
	addFile(t, e, fs, "2024-01-01_07-00-00.mp4", jan1(7, 0))
	done := addFile(t, e, fs, "2024-01-01_06-00-00.mp3", jan1(6, 0))
	e.Registry().UpdateState(done, recording.StateMerged)

	req, err := e.MergeByDate("2024-01-01", workDir)

	require.NoError(t, err)
	assert.Equal(t, KindMerge, req.Kind)
	assert.Equal(t, []*recording.File{b, a}, req.Targets)

	_, err = e.MergeByDate("2023-05-05", workDir)
	assert.ErrorIs(t, err, ErrNothingToMerge)
}

func TestMergeByDate_FallsBackToSessionDay(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	late := addFile(t, e, fs, "2024-01-02_01-00-00.mp3", time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC))

	req, err := e.MergeByDate("2024-01-01", workDir)

	require.NoError(t, err)
	assert.Equal(t, []*recording.File{late}, req.Targets)
}

func TestResolve(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	a := addFile(t, e, fs, "a.mp3", jan1(9, 0))

	files, err := e.Resolve([]string{a.Path})
	require.NoError(t, err)
	assert.Equal(t, []*recording.File{a}, files)

	_, err = e.Resolve([]string{"/work/missing.mp3"})
	assert.ErrorIs(t, err, recording.ErrFileNotFound)
}

func TestTargets_All(t *testing.T) {
	e, fs := newTestEngine(t, &mockFacade{})
	addFile(t, e, fs, "a.mp3", jan1(9, 0))
	addFile(t, e, fs, "b.mp4", jan1(10, 0))

	files, err := e.Targets([]string{"/work/ignored.mp3"}, true)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("remove-silence")
	require.NoError(t, err)
	assert.Equal(t, KindRemoveSilence, k)

	_, err = ParseKind("explode")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestWithWorkersClamps(t *testing.T) {
	e, _ := newTestEngine(t, &mockFacade{}, WithWorkers(0))
	assert.Equal(t, 1, e.workers)
	e, _ = newTestEngine(t, &mockFacade{}, WithWorkers(99))
	assert.Equal(t, MaxWorkers, e.workers)
}
