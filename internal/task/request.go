package task

import (
	"time"

	"github.com/maauso/audiotoolbox/internal/recording"
)

// Params carries the kind-specific knobs of a Request. Zero values select
// the engine defaults.
type Params struct {
	// SourceDir is the Import source. Empty triggers auto-location.
	SourceDir string
	// ThresholdDB is the RemoveSilence loudness threshold. Nil selects the
	// engine default; 0 dB is a valid threshold.
	ThresholdDB *float64
	// MinSilence is the RemoveSilence minimum silent run, in seconds.
	MinSilence float64
	// Archive requests an archive of each Organize folder.
	Archive bool
	// ArchiveFormat overrides the configured archive format.
	ArchiveFormat string
}

// Request is one operation submitted to the engine.
type Request struct {
	// ID identifies the task. Empty lets the engine generate one.
	ID string
	// Kind selects the handler.
	Kind Kind
	// Targets are registry files. Import ignores them.
	Targets []*recording.File
	// OutputDir receives produced files. Empty selects the engine default.
	OutputDir string
	// Params holds kind-specific settings.
	Params Params
}

// Result is the uniform outcome of a Request. It is not modified after
// Submit returns.
type Result struct {
	TaskID    string
	Kind      Kind
	Success   bool
	Outputs   []string
	Processed int
	Failed    int
	Error     string
	Elapsed   time.Duration
}
