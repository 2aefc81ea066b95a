package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/maauso/audiotoolbox/internal/recording"
)

type importHandler struct{}

func (importHandler) handle(_ context.Context, x *execution) outcome {
	e := x.engine
	src := x.req.Params.SourceDir
	if src == "" {
		src = e.locateImportDir()
	}
	if src == "" {
		return outcome{err: ErrNoSourceDir}
	}

	entries, err := afero.ReadDir(e.fs, src)
	if err != nil {
		return outcome{err: fmt.Errorf("read import dir: %w", err)}
	}
	dest := x.outputDirFor(nil)
	if err := e.fs.MkdirAll(dest, 0o755); err != nil {
		return outcome{err: fmt.Errorf("create output dir: %w", err)}
	}

	x.reportf("importing from %s", src)
	var out outcome
	for _, entry := range entries {
		if entry.IsDir() || !recording.IsMediaPath(entry.Name()) {
			continue
		}
		from := filepath.Join(src, entry.Name())
		to, err := x.names.Reserve(filepath.Join(dest, entry.Name()))
		if err == nil {
			err = moveFile(e.fs, from, to)
		}
		if err != nil {
			e.logger.Warn("import move failed", slog.String("file", from), slog.String("error", err.Error()))
			x.reportf("failed to import %s", entry.Name())
			continue
		}
		x.reportf("imported %s", filepath.Base(to))
		out.outputs = append(out.outputs, to)
		out.processed++
	}
	out.success = out.processed > 0
	return out
}

// locateImportDir returns the first candidate folder holding mp4 recordings.
func (e *Engine) locateImportDir() string {
	for _, dir := range e.importCandidates {
		entries, err := afero.ReadDir(e.fs, dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
				e.logger.Info("import source located", slog.String("dir", dir))
				return dir
			}
		}
	}
	return ""
}
