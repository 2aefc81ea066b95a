// Package media wraps the external codec and archive tools behind a
// success/failure contract. Callers only learn whether an operation worked;
// details of failures are logged here.
package media

import "context"

// Facade is the contract the task engine consumes.
type Facade interface {
	// CanTranscode reports whether an ffmpeg binary is available.
	CanTranscode() bool

	// CanArchive reports whether archives in the configured format can be produced.
	CanArchive() bool

	// TranscodeToMP3 extracts the audio of input into a new MP3 at output.
	// It refuses to overwrite an existing output.
	TranscodeToMP3(ctx context.Context, input, output string) bool

	// TrimSilence writes input to output with every silent run removed.
	TrimSilence(ctx context.Context, input, output string, thresholdDB, minDuration float64) bool

	// MergeSequential concatenates inputs, in the given order, into output.
	// A stream copy is attempted first and a re-encode second.
	MergeSequential(ctx context.Context, inputs []string, output string) bool

	// CreateArchive packs sourceDir into outputArchive, choosing the format
	// from the output extension.
	CreateArchive(ctx context.Context, sourceDir, outputArchive string) bool
}
