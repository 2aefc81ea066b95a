package task

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/recording"
)

// silencePrefix marks files produced by RemoveSilence.
const silencePrefix = "nosilence_"

type silenceHandler struct{}

func (silenceHandler) handle(ctx context.Context, x *execution) outcome {
	e := x.engine
	if !e.facade.CanTranscode() {
		return outcome{err: media.ErrToolUnavailable}
	}
	if len(x.targets) == 0 {
		return outcome{err: ErrNoTargets}
	}

	threshold := e.thresholdDB
	if x.req.Params.ThresholdDB != nil {
		threshold = *x.req.Params.ThresholdDB
	}
	minSilence := x.req.Params.MinSilence
	if minSilence <= 0 {
		minSilence = e.minSilence
	}

	plan := make([]string, len(x.targets))
	for i, f := range x.targets {
		p, err := x.names.Reserve(filepath.Join(x.outputDirFor(f), silencePrefix+f.Stem()+".mp3"))
		if err != nil {
			e.logger.Warn("no output name", slog.String("file", f.Path), slog.String("error", err.Error()))
			continue
		}
		plan[i] = p
	}

	results := e.fanOut(ctx, len(x.targets), func(ctx context.Context, i int) bool {
		if plan[i] == "" {
			return false
		}
		name := x.targets[i].Name()
		x.reportf("trimming silence from %s", name)
		ok := e.facade.TrimSilence(ctx, x.targets[i].Path, plan[i], threshold, minSilence)
		if !ok {
			x.reportf("failed to trim %s", name)
		}
		return ok
	})

	var out outcome
	for i, f := range x.targets {
		if !results[i] {
			e.registry.UpdateState(f, recording.StateFailed)
			continue
		}
		f.AddOutput(plan[i])
		x.registerDerived(plan[i], f, recording.StateUnprocessed)
		out.outputs = append(out.outputs, plan[i])
		out.processed++
	}
	out.success = out.processed > 0
	return out
}
