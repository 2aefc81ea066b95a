package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/maauso/audiotoolbox/internal/naming"
	"github.com/maauso/audiotoolbox/internal/recording"
)

// handler implements one operation kind.
type handler interface {
	handle(ctx context.Context, x *execution) outcome
}

// handlerFor selects the handler for kind.
func handlerFor(kind Kind) (handler, error) {
	switch kind {
	case KindImport:
		return importHandler{}, nil
	case KindConvert:
		return convertHandler{}, nil
	case KindMerge:
		return mergeHandler{}, nil
	case KindRemoveSilence:
		return silenceHandler{}, nil
	case KindOrganize:
		return organizeHandler{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// outcome is what a handler reports back to the engine.
type outcome struct {
	success   bool
	outputs   []string
	processed int
	err       error
}

// execution is the per-request context handed to a handler.
type execution struct {
	engine   *Engine
	req      Request
	targets  []*recording.File
	prior    map[*recording.File]recording.State
	names    *naming.Reserver
	progress Reporter
}

// outputDirFor returns where outputs derived from f are written.
func (x *execution) outputDirFor(f *recording.File) string {
	if x.req.OutputDir != "" {
		return x.req.OutputDir
	}
	if x.engine.outputDir != "" {
		return x.engine.outputDir
	}
	if f != nil {
		return filepath.Dir(f.Path)
	}
	return "."
}

func (x *execution) reportf(format string, args ...any) {
	x.progress.Report(fmt.Sprintf(format, args...))
}

// fanOut runs fn for indexes 0..n-1 on the bounded worker pool and returns
// each unit's result by index. A panicking unit counts as failed.
func (e *Engine) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) bool) []bool {
	results := make([]bool, n)
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("worker panicked",
						slog.Int("unit", i),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					results[i] = false
				}
			}()
			results[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// registerDerived adds a file produced from src to the registry. A merge
// output has several sources, so it records none.
func (x *execution) registerDerived(path string, src *recording.File, state recording.State) *recording.File {
	derived := recording.NewFile(path, src.Timestamp(), state)
	if state != recording.StateMergedOutput {
		derived.Source = src.Path
	}
	if info, err := x.engine.fs.Stat(path); err == nil {
		derived.Size = info.Size()
	}
	x.engine.registry.Add(derived)
	return derived
}

// moveFile renames src to dst, copying across filesystems when rename fails.
func moveFile(fsys afero.Fs, src, dst string) error {
	if _, err := fsys.Stat(src); err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := fsys.Rename(src, dst); err == nil {
		return nil
	}

	in, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = fsys.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = fsys.Remove(dst)
		return fmt.Errorf("close destination: %w", err)
	}
	if err := fsys.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}
