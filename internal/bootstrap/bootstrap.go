// Package bootstrap provides dependency initialization for audiotoolbox.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/maauso/audiotoolbox/internal/archive"
	"github.com/maauso/audiotoolbox/internal/config"
	"github.com/maauso/audiotoolbox/internal/grouping"
	"github.com/maauso/audiotoolbox/internal/history"
	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/metrics"
	"github.com/maauso/audiotoolbox/internal/recording"
	"github.com/maauso/audiotoolbox/internal/task"
)

// Dependencies holds all initialized dependencies for the CLI and the HTTP server.
type Dependencies struct {
	Config   *config.Config
	Fs       afero.Fs
	Toolbox  *media.Toolbox
	Engine   *task.Engine
	Service  *task.Service
	History  history.Repository
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	return newDependencies(cfg, logger, afero.NewOsFs())
}

func newDependencies(cfg *config.Config, logger *slog.Logger, fsys afero.Fs) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	extractor, err := recording.NewExtractor(cfg.DatePattern, fsys,
		recording.WithLocation(cfg.ReferenceLocation()),
		recording.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	grouper, err := grouping.New(cfg.ReferenceLocation(), cfg.TargetLocation(), cfg.CutoffHour)
	if err != nil {
		return nil, fmt.Errorf("create grouper: %w", err)
	}

	format, err := archive.ParseFormat(cfg.ArchiveFormat)
	if err != nil {
		return nil, fmt.Errorf("archive format: %w", err)
	}
	toolbox := media.NewToolbox(media.ToolPaths{
		FFmpeg:   cfg.FFmpegPath,
		SevenZip: cfg.SevenZipPath,
	}, format, logger)

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	outputDir, err := filepath.Abs(cfg.EffectiveOutputDir())
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	engine := task.NewEngine(fsys, extractor, grouper, toolbox,
		task.WithLogger(logger),
		task.WithMetrics(m),
		task.WithWorkers(cfg.Workers),
		task.WithOutputDir(outputDir),
		task.WithSilenceDefaults(cfg.SilenceThresholdDB, cfg.SilenceMinDuration),
		task.WithArchiveFormat(string(format)),
	)

	repo, err := initHistory(cfg, logger)
	if err != nil {
		return nil, err
	}

	caps := toolbox.Capabilities()
	logger.Info("dependencies ready",
		slog.String("ffmpeg", caps.FFmpegPath),
		slog.String("7z", caps.SevenZipPath),
		slog.String("archive_format", string(format)),
		slog.Int("workers", cfg.Workers),
		slog.String("work_dir", workDir),
		slog.String("output_dir", outputDir),
	)

	return &Dependencies{
		Config:   cfg,
		Fs:       fsys,
		Toolbox:  toolbox,
		Engine:   engine,
		Service:  task.NewService(engine, repo, logger, task.WithRescanDir(workDir)),
		History:  repo,
		Metrics:  m,
		Registry: reg,
	}, nil
}

// Close waits for background tasks and releases the history store.
func (d *Dependencies) Close() error {
	if d.Service != nil {
		d.Service.Wait()
	}
	var errs []error
	if d.History != nil {
		errs = append(errs, d.History.Close())
	}
	return errors.Join(errs...)
}

// initHistory opens the SQLite store when HISTORY_DB is set, else keeps
// records in memory.
func initHistory(cfg *config.Config, logger *slog.Logger) (history.Repository, error) {
	if cfg.HistoryDB == "" {
		logger.Debug("task history kept in memory")
		return history.NewMemoryRepository(), nil
	}
	repo, err := history.OpenSQLite(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	logger.Info("task history configured", slog.String("path", cfg.HistoryDB))
	return repo, nil
}
