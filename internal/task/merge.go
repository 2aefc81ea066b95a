package task

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maauso/audiotoolbox/internal/media"
	"github.com/maauso/audiotoolbox/internal/recording"
)

var commentToken = regexp.MustCompile(`\[([^\]]*)\]`)

type mergeHandler struct{}

func (mergeHandler) handle(ctx context.Context, x *execution) outcome {
	e := x.engine
	if !e.facade.CanTranscode() {
		return outcome{err: media.ErrToolUnavailable}
	}
	if len(x.targets) == 0 {
		return outcome{err: ErrNoTargets}
	}

	ordered := make([]*recording.File, len(x.targets))
	copy(ordered, x.targets)
	recording.SortByTimestamp(ordered)

	desired := filepath.Join(x.outputDirFor(ordered[0]), MergeOutputName(ordered))
	output, err := x.names.Reserve(desired)
	if err != nil {
		return outcome{err: err}
	}

	inputs := make([]string, len(ordered))
	for i, f := range ordered {
		inputs[i] = f.Path
	}
	x.reportf("merging %d files into %s", len(inputs), filepath.Base(output))
	if !e.facade.MergeSequential(ctx, inputs, output) {
		x.reportf("merge failed")
		return outcome{err: fmt.Errorf("merge into %s failed", filepath.Base(output))}
	}

	for _, f := range ordered {
		e.registry.UpdateState(f, recording.StateMerged)
		f.AddOutput(output)
	}
	x.registerDerived(output, ordered[0], recording.StateMergedOutput)
	x.reportf("merged into %s", filepath.Base(output))
	return outcome{success: true, outputs: []string{output}, processed: len(ordered)}
}

// MergeOutputName names the merge of ordered (earliest first): the earliest
// timestamp as "20060102 15-04", then every distinct bracketed comment found
// in the input names, in first-seen order.
func MergeOutputName(ordered []*recording.File) string {
	var b strings.Builder
	b.WriteString(ordered[0].Timestamp().Format(recording.MergeStampLayout))
	seen := make(map[string]bool)
	for _, f := range ordered {
		for _, m := range commentToken.FindAllStringSubmatch(f.Stem(), -1) {
			tok := strings.TrimSpace(m[1])
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			b.WriteString(" [" + tok + "]")
		}
	}
	b.WriteString(".mp3")
	return b.String()
}
