// Package task runs operations against the recording registry. The Engine
// accepts one request at a time, moves its targets through the lifecycle
// state machine and dispatches to one handler per operation kind.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/maauso/audiotoolbox/internal/grouping"
	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/metrics"
	"github.com/maauso/audiotoolbox/internal/naming"
	"github.com/maauso/audiotoolbox/internal/probe"
	"github.com/maauso/audiotoolbox/internal/recording"
	"github.com/maauso/audiotoolbox/internal/task/id"
)

// Static errors for engine operations.
var (
	// ErrBusy is returned when a request arrives while another is running.
	ErrBusy = errors.New("engine busy")
	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("task handler panicked")
	// ErrNoTargets is returned when a request needs targets and has none.
	ErrNoTargets = errors.New("no target files")
	// ErrNothingProcessed is returned when every target of a request failed.
	ErrNothingProcessed = errors.New("no files processed")
	// ErrNoSourceDir is returned when Import has no source and none was found.
	ErrNoSourceDir = errors.New("no import source directory found")
	// ErrNothingToMerge is returned when a date has no unmerged recordings.
	ErrNothingToMerge = errors.New("no unmerged recordings for date")
)

// Defaults applied when neither configuration nor request set a value.
const (
	DefaultWorkers     = 4
	MaxWorkers         = 16
	DefaultThresholdDB = -55.0
	DefaultMinSilence  = 0.1
)

// DefaultImportCandidates returns the folders Import searches, in order,
// when no source directory is given.
func DefaultImportCandidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "Movies"),
		filepath.Join(home, "Videos"),
		filepath.Join(home, "Documents", "OBS"),
		filepath.Join(home, "Desktop"),
	}
}

// Engine coordinates scans and operation requests over one Registry.
type Engine struct {
	mu   sync.Mutex
	busy bool

	registry  *recording.Registry
	extractor *recording.Extractor
	grouper   *grouping.Grouper
	facade    media.Facade
	fs        afero.Fs
	logger    *slog.Logger
	metrics   *metrics.Metrics

	workers          int
	outputDir        string
	thresholdDB      float64
	minSilence       float64
	archiveFormat    string
	probe            bool
	importCandidates []string

	// session keeps handler-assigned states across rescans for paths that
	// are still present.
	session map[string]recording.State
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size, clamped to 1..MaxWorkers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = min(max(n, 1), MaxWorkers)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOutputDir sets the directory used when a request has no OutputDir.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outputDir = dir
	}
}

// WithSilenceDefaults sets the RemoveSilence threshold and minimum duration.
func WithSilenceDefaults(thresholdDB, minSilence float64) Option {
	return func(e *Engine) {
		e.thresholdDB = thresholdDB
		e.minSilence = minSilence
	}
}

// WithArchiveFormat sets the archive extension Organize uses, e.g. "zip".
func WithArchiveFormat(format string) Option {
	return func(e *Engine) {
		e.archiveFormat = format
	}
}

// WithProbe toggles duration and tag probing during scans.
func WithProbe(enabled bool) Option {
	return func(e *Engine) {
		e.probe = enabled
	}
}

// WithImportCandidates replaces the folders Import auto-locates from.
func WithImportCandidates(dirs []string) Option {
	return func(e *Engine) {
		e.importCandidates = dirs
	}
}

// NewEngine creates an Engine over an empty Registry.
func NewEngine(fsys afero.Fs, extractor *recording.Extractor, grouper *grouping.Grouper, facade media.Facade, opts ...Option) *Engine {
	e := &Engine{
		registry:         recording.NewRegistry(),
		extractor:        extractor,
		grouper:          grouper,
		facade:           facade,
		fs:               fsys,
		logger:           slog.Default(),
		workers:          DefaultWorkers,
		thresholdDB:      DefaultThresholdDB,
		minSilence:       DefaultMinSilence,
		archiveFormat:    "zip",
		probe:            true,
		importCandidates: DefaultImportCandidates(),
		session:          make(map[string]recording.State),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *recording.Registry {
	return e.registry
}

// Facade returns the media collaborator.
func (e *Engine) Facade() media.Facade {
	return e.facade
}

// Busy reports whether a scan or request is running.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Groups returns the registry grouped by session day for display.
func (e *Engine) Groups() []grouping.Group {
	return e.grouper.Group(grouping.PrepareForDisplay(e.registry.All()))
}

// Resolve maps paths to their registry files.
func (e *Engine) Resolve(paths []string) ([]*recording.File, error) {
	files := make([]*recording.File, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		f, err := e.registry.Get(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, p)
		}
		files = append(files, f)
	}
	return files, nil
}

// Targets resolves paths, or returns every registered file when all is set.
func (e *Engine) Targets(paths []string, all bool) ([]*recording.File, error) {
	if all {
		return e.registry.All(), nil
	}
	return e.Resolve(paths)
}

// GroupFiles returns the files of the session day key, or nil.
func (e *Engine) GroupFiles(key string) []*recording.File {
	for _, g := range e.Groups() {
		if g.Key == key {
			return g.Files
		}
	}
	return nil
}

// MergeByDate builds a Merge request for the unmerged audio recordings of a
// raw date key, falling back to the unprocessed audio of the session day
// with the same key.
func (e *Engine) MergeByDate(key, outputDir string) (Request, error) {
	pick := func(files []*recording.File) []*recording.File {
		var out []*recording.File
		for _, f := range files {
			if f.IsAudio() && f.State() == recording.StateUnprocessed {
				out = append(out, f)
			}
		}
		return out
	}
	targets := pick(e.registry.UnmergedForDate(key))
	if len(targets) == 0 {
		targets = pick(e.GroupFiles(key))
	}
	if len(targets) == 0 {
		return Request{}, fmt.Errorf("%w: %s", ErrNothingToMerge, key)
	}
	return Request{Kind: KindMerge, Targets: targets, OutputDir: outputDir}, nil
}

// Scan replaces the registry contents with the media files found directly
// in dir and returns how many were registered.
func (e *Engine) Scan(ctx context.Context, dir string) (int, error) {
	if !e.acquire() {
		e.metrics.ObserveBusy()
		return 0, ErrBusy
	}
	defer e.release()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("resolve scan dir: %w", err)
	}
	entries, err := afero.ReadDir(e.fs, abs)
	if err != nil {
		return 0, fmt.Errorf("read scan dir: %w", err)
	}

	for _, f := range e.registry.All() {
		switch f.State() {
		case recording.StateConverted, recording.StateMerged:
			e.session[f.Path] = f.State()
		}
	}
	e.registry.Clear()

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return e.registry.Len(), err
		}
		if entry.IsDir() || !recording.IsMediaPath(entry.Name()) {
			continue
		}
		path := filepath.Join(abs, entry.Name())
		seen[path] = true
		ts, state := e.extractor.Extract(path)
		if remembered, ok := e.session[path]; ok && state == recording.StateUnprocessed {
			state = remembered
		}
		f := recording.NewFile(path, ts, state)
		f.Size = entry.Size()
		if e.probe {
			e.inspect(f)
		}
		e.registry.Add(f)
	}

	for path := range e.session {
		if !seen[path] {
			delete(e.session, path)
		}
	}

	n := e.registry.Len()
	e.metrics.SetRegistrySize(n)
	e.logger.Info("scan complete", slog.String("dir", abs), slog.Int("files", n))
	return n, nil
}

func (e *Engine) inspect(f *recording.File) {
	info, err := probe.Inspect(e.fs, f.Path, f.Format)
	if err != nil {
		e.logger.Debug("probe failed", slog.String("file", f.Path), slog.String("error", err.Error()))
	}
	f.Duration = info.Duration
	f.Title = info.Title
}

// Submit runs req to completion and returns its Result. A request arriving
// while another runs is refused with ErrBusy.
func (e *Engine) Submit(ctx context.Context, req Request, progress Reporter) Result {
	if progress == nil {
		progress = Discard
	}
	if req.ID == "" {
		req.ID = id.Generate()
	}
	if !e.acquire() {
		e.metrics.ObserveBusy()
		return Result{TaskID: req.ID, Kind: req.Kind, Error: ErrBusy.Error()}
	}
	defer e.release()

	start := time.Now()
	res := e.execute(ctx, req, progress)
	res.Elapsed = time.Since(start)

	e.metrics.ObserveTask(string(req.Kind), res.Success, res.Processed, res.Failed, res.Elapsed)
	level := slog.LevelInfo
	if !res.Success {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "task finished",
		slog.String("task_id", res.TaskID),
		slog.String("kind", string(res.Kind)),
		slog.Bool("success", res.Success),
		slog.Int("processed", res.Processed),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", res.Elapsed),
		slog.String("error", res.Error),
	)
	return res
}

func (e *Engine) execute(ctx context.Context, req Request, progress Reporter) Result {
	res := Result{TaskID: req.ID, Kind: req.Kind}

	h, err := handlerFor(req.Kind)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	targets := uniqueTargets(req.Targets)
	prior := make(map[*recording.File]recording.State, len(targets))
	for _, f := range targets {
		prior[f] = f.State()
		e.registry.UpdateState(f, recording.StateProcessing)
	}

	x := &execution{
		engine:   e,
		req:      req,
		targets:  targets,
		prior:    prior,
		names:    naming.NewReserver(e.fs),
		progress: progress,
	}
	out := e.dispatch(ctx, h, x)

	for _, f := range targets {
		if f.State() != recording.StateProcessing {
			continue
		}
		if out.success {
			e.registry.UpdateState(f, recording.StateProcessed)
		} else {
			e.registry.UpdateState(f, recording.StateFailed)
		}
	}
	for _, f := range targets {
		if f.State() == recording.StateFailed {
			res.Failed++
		}
	}

	res.Success = out.success
	res.Outputs = out.outputs
	res.Processed = out.processed
	switch {
	case out.err != nil:
		res.Error = out.err.Error()
	case !out.success:
		res.Error = ErrNothingProcessed.Error()
	}
	return res
}

// dispatch runs the handler, converting a panic into a failed outcome.
func (e *Engine) dispatch(ctx context.Context, h handler, x *execution) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task handler panicked",
				slog.String("kind", string(x.req.Kind)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			out = outcome{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()
	return h.handle(ctx, x)
}

func uniqueTargets(files []*recording.File) []*recording.File {
	seen := make(map[*recording.File]bool, len(files))
	out := make([]*recording.File, 0, len(files))
	for _, f := range files {
		if f == nil || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
