package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/audiotoolbox/internal/archive"
	"github.com/maauso/audiotoolbox/internal/recording"
)

type organizeHandler struct{}

func (organizeHandler) handle(ctx context.Context, x *execution) outcome {
	e := x.engine

	byDate := make(map[string][]*recording.File)
	for _, f := range x.targets {
		if x.prior[f] == recording.StateMergedOutput || recording.IsMergeOutputName(f.Name()) {
			// merge outputs stay where they are, in the state they had
			e.registry.UpdateState(f, x.prior[f])
			continue
		}
		byDate[f.DateKey()] = append(byDate[f.DateKey()], f)
	}
	if len(byDate) == 0 {
		return outcome{err: fmt.Errorf("%w: nothing to organize", ErrNoTargets)}
	}

	archiveExt, archiveOK := "", false
	if x.req.Params.Archive {
		archiveExt, archiveOK = x.archiveExt()
	}

	var out outcome
	for _, key := range sortedKeys(byDate) {
		files := byDate[key]
		recording.SortByTimestamp(files)

		folder, moved := x.organizeDate(files)
		if moved == 0 {
			continue
		}
		out.processed += moved
		out.outputs = append(out.outputs, folder)

		if archiveOK {
			if path, ok := x.archiveFolder(ctx, folder, archiveExt); ok {
				out.outputs = append(out.outputs, path)
			}
		}
	}
	out.success = out.processed > 0
	return out
}

// organizeDate moves files into their date folder and returns the folder and
// the number of files moved. Files that fail to move are marked Failed.
func (x *execution) organizeDate(files []*recording.File) (string, int) {
	e := x.engine
	base := files[0].Timestamp().Format(recording.MergeStampLayout)
	folder, err := x.names.ReserveDir(filepath.Join(x.outputDirFor(files[0]), base))
	if err == nil {
		err = e.fs.MkdirAll(folder, 0o755)
	}
	if err != nil {
		e.logger.Warn("cannot create date folder", slog.String("folder", base), slog.String("error", err.Error()))
		for _, f := range files {
			e.registry.UpdateState(f, recording.StateFailed)
		}
		return folder, 0
	}

	moved := 0
	for _, f := range files {
		dest, err := x.names.Reserve(filepath.Join(folder, f.Name()))
		if err == nil {
			err = moveFile(e.fs, f.Path, dest)
		}
		if err != nil {
			e.logger.Warn("organize move failed", slog.String("file", f.Path), slog.String("error", err.Error()))
			x.reportf("failed to move %s", f.Name())
			e.registry.UpdateState(f, recording.StateFailed)
			continue
		}
		f.AddOutput(dest)
		moved++
	}
	x.reportf("organized %d files into %s", moved, filepath.Base(folder))
	return folder, moved
}

func (x *execution) archiveExt() (string, bool) {
	e := x.engine
	name := x.req.Params.ArchiveFormat
	if name == "" {
		name = e.archiveFormat
	}
	format, err := archive.ParseFormat(name)
	if err != nil {
		e.logger.Warn("archive skipped", slog.String("error", err.Error()))
		return "", false
	}
	configured, _ := archive.ParseFormat(e.archiveFormat)
	if format == configured && !e.facade.CanArchive() {
		x.reportf("archiving unavailable, folders left unarchived")
		return "", false
	}
	return format.Ext(), true
}

func (x *execution) archiveFolder(ctx context.Context, folder, ext string) (string, bool) {
	path, err := x.names.Reserve(folder + ext)
	if err != nil {
		return "", false
	}
	x.reportf("archiving %s", filepath.Base(folder))
	if !x.engine.facade.CreateArchive(ctx, folder, path) {
		x.names.Release(path)
		x.reportf("failed to archive %s", filepath.Base(folder))
		return "", false
	}
	return path, true
}
