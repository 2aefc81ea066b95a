package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maauso/audiotoolbox/internal/history"
	"github.com/maauso/audiotoolbox/internal/task/id"
)

// progressBuffer is the channel capacity between workers and the record log.
const progressBuffer = 256

// Service runs engine requests and keeps a history record for each of them.
// It is the entry point the CLI and HTTP adapters share.
type Service struct {
	engine *Engine
	repo   history.Repository
	logger *slog.Logger

	rescanDir string

	mu      sync.Mutex
	current *history.Record
	wg      sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRescanDir makes the Service rescan dir after every task so the
// registry reflects produced and moved files.
func WithRescanDir(dir string) ServiceOption {
	return func(s *Service) {
		s.rescanDir = dir
	}
}

// NewService creates a Service over engine that stores records in repo.
func NewService(engine *Engine, repo history.Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		engine: engine,
		repo:   repo,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Scan rescans dir. It fails with ErrBusy while a task runs.
func (s *Service) Scan(ctx context.Context, dir string) (int, error) {
	s.mu.Lock()
	running := s.current != nil
	s.mu.Unlock()
	if running {
		s.engine.metrics.ObserveBusy()
		return 0, ErrBusy
	}
	return s.engine.Scan(ctx, dir)
}

// Run executes req synchronously. Every progress line is appended to the
// task record and, when onLine is not nil, passed to onLine.
func (s *Service) Run(ctx context.Context, req Request, onLine func(string)) (Result, error) {
	rec, err := s.begin(ctx, &req)
	if err != nil {
		return Result{TaskID: req.ID, Kind: req.Kind, Error: err.Error()}, err
	}
	return s.run(ctx, req, rec, onLine), nil
}

// Start executes req in the background and returns its task ID. ctx should
// outlive the caller's request; use context.WithoutCancel for HTTP handlers.
func (s *Service) Start(ctx context.Context, req Request) (string, error) {
	rec, err := s.begin(ctx, &req)
	if err != nil {
		return "", err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, req, rec, nil)
	}()
	return req.ID, nil
}

// Wait blocks until every background task has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Current returns a snapshot of the running task's record, or
// history.ErrRecordNotFound when idle.
func (s *Service) Current() (*history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, history.ErrRecordNotFound
	}
	return s.current.Clone(), nil
}

// Get returns the record of a task. The running task is served from memory
// so its log is up to date.
func (s *Service) Get(ctx context.Context, taskID string) (*history.Record, error) {
	s.mu.Lock()
	if s.current != nil && s.current.ID == taskID {
		rec := s.current.Clone()
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()
	return s.repo.FindByID(ctx, taskID)
}

// List returns the most recent records, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*history.Record, error) {
	return s.repo.List(ctx, limit)
}

// begin claims the single task slot and persists a RUNNING record.
func (s *Service) begin(ctx context.Context, req *Request) (*history.Record, error) {
	if req.ID == "" {
		req.ID = id.Generate()
	}

	s.mu.Lock()
	if s.current != nil || s.engine.Busy() {
		s.mu.Unlock()
		s.engine.metrics.ObserveBusy()
		return nil, ErrBusy
	}
	rec := history.NewRecord(req.ID, string(req.Kind), len(req.Targets))
	s.current = rec
	s.mu.Unlock()

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("failed to save task record",
			slog.String("task_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	return rec, nil
}

func (s *Service) run(ctx context.Context, req Request, rec *history.Record, onLine func(string)) Result {
	reporter := NewChannelReporter(progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range reporter.Lines() {
			rec.AppendLog(line)
			if onLine != nil {
				onLine(line)
			}
		}
	}()

	res := s.engine.Submit(ctx, req, reporter)
	reporter.Close()
	<-done

	if err := rec.Finish(res.Success, res.Processed, res.Failed, res.Outputs, res.Error); err != nil {
		s.logger.Warn("failed to finish task record", slog.String("task_id", rec.ID), slog.String("error", err.Error()))
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to save task record",
			slog.String("task_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	// The slot is still held, so no other task can start before the rescan.
	if s.rescanDir != "" {
		if _, err := s.engine.Scan(context.WithoutCancel(ctx), s.rescanDir); err != nil {
			s.logger.Warn("rescan after task failed",
				slog.String("task_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	if s.current == rec {
		s.current = nil
	}
	s.mu.Unlock()
	return res
}
