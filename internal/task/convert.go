package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/recording"
)

type convertHandler struct{}

func (convertHandler) handle(ctx context.Context, x *execution) outcome {
	e := x.engine
	if !e.facade.CanTranscode() {
		return outcome{err: media.ErrToolUnavailable}
	}

	var videos []*recording.File
	for _, f := range x.targets {
		if f.IsVideo() {
			videos = append(videos, f)
		}
	}
	if len(videos) == 0 {
		return outcome{err: fmt.Errorf("%w: no video recordings to convert", ErrNoTargets)}
	}

	plan := make([]string, len(videos))
	for i, f := range videos {
		p, err := x.names.Reserve(filepath.Join(x.outputDirFor(f), f.Stem()+".mp3"))
		if err != nil {
			e.logger.Warn("no output name", slog.String("file", f.Path), slog.String("error", err.Error()))
			continue
		}
		plan[i] = p
	}

	results := e.fanOut(ctx, len(videos), func(ctx context.Context, i int) bool {
		if plan[i] == "" {
			return false
		}
		name := videos[i].Name()
		x.reportf("converting %s", name)
		ok := e.facade.TranscodeToMP3(ctx, videos[i].Path, plan[i])
		if ok {
			x.reportf("converted %s", name)
		} else {
			x.reportf("failed to convert %s", name)
		}
		return ok
	})

	var out outcome
	for i, f := range videos {
		if !results[i] {
			e.registry.UpdateState(f, recording.StateFailed)
			continue
		}
		e.registry.UpdateState(f, recording.StateConverted)
		f.AddOutput(plan[i])
		x.registerDerived(plan[i], f, recording.StateUnprocessed)
		out.outputs = append(out.outputs, plan[i])
		out.processed++
	}
	out.success = out.processed > 0
	return out
}
