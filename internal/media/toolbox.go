package media

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"

	"github.com/maauso/audiotoolbox/internal/archive"
)

// Compile-time check that Toolbox implements Facade.
var _ Facade = (*Toolbox)(nil)

// Toolbox implements Facade on top of ffmpeg and the archive writers.
type Toolbox struct {
	ffmpeg        *FFmpegProcessor
	sevenZipPath  string
	archiver      *archive.Writer
	archiveFormat archive.Format
	logger        *slog.Logger
}

// ToolPaths names the executables a Toolbox may use. Empty values are
// resolved through PATH.
type ToolPaths struct {
	FFmpeg   string
	SevenZip string
}

// Capabilities describes which external tools were found.
type Capabilities struct {
	FFmpegPath   string
	SevenZipPath string
	Transcode    bool
	Archive      bool
}

// ResolveTool returns the absolute path of an executable, preferring the
// configured value and falling back to a PATH lookup of name.
func ResolveTool(configured, name string) string {
	candidate := configured
	if candidate == "" {
		candidate = name
	}
	path, err := exec.LookPath(candidate)
	if err != nil {
		return ""
	}
	return path
}

// NewToolbox resolves the tool paths and returns a Toolbox producing
// archives in format.
func NewToolbox(paths ToolPaths, format archive.Format, logger *slog.Logger) *Toolbox {
	if logger == nil {
		logger = slog.Default()
	}
	sevenZip := ResolveTool(paths.SevenZip, "7z")
	t := &Toolbox{
		sevenZipPath:  sevenZip,
		archiver:      archive.NewWriter(sevenZip),
		archiveFormat: format,
		logger:        logger,
	}
	if ffmpegPath := ResolveTool(paths.FFmpeg, "ffmpeg"); ffmpegPath != "" {
		t.ffmpeg = NewFFmpegProcessor(ffmpegPath)
	}
	return t
}

// Capabilities reports the resolved tools.
func (t *Toolbox) Capabilities() Capabilities {
	c := Capabilities{
		Transcode:    t.CanTranscode(),
		Archive:      t.CanArchive(),
		SevenZipPath: t.sevenZipPath,
	}
	if t.ffmpeg != nil {
		c.FFmpegPath = t.ffmpeg.Path()
	}
	return c
}

// ArchiveFormat returns the format CanArchive refers to.
func (t *Toolbox) ArchiveFormat() archive.Format {
	return t.archiveFormat
}

// CanTranscode reports whether ffmpeg was found.
func (t *Toolbox) CanTranscode() bool {
	return t.ffmpeg != nil
}

// CanArchive reports whether the configured archive format can be produced.
func (t *Toolbox) CanArchive() bool {
	return t.archiver.Supports(t.archiveFormat)
}

// TranscodeToMP3 implements Facade.
func (t *Toolbox) TranscodeToMP3(ctx context.Context, input, output string) bool {
	if t.ffmpeg == nil {
		return t.fail("transcode", ErrToolUnavailable, slog.String("input", input))
	}
	if err := t.ffmpeg.TranscodeToMP3(ctx, input, output); err != nil {
		return t.fail("transcode", err, slog.String("input", input), slog.String("output", output))
	}
	return true
}

// TrimSilence implements Facade.
func (t *Toolbox) TrimSilence(ctx context.Context, input, output string, thresholdDB, minDuration float64) bool {
	if t.ffmpeg == nil {
		return t.fail("trim silence", ErrToolUnavailable, slog.String("input", input))
	}
	if err := t.ffmpeg.TrimSilence(ctx, input, output, thresholdDB, minDuration); err != nil {
		return t.fail("trim silence", err,
			slog.String("input", input),
			slog.Float64("threshold_db", thresholdDB),
			slog.Float64("min_duration", minDuration),
		)
	}
	return true
}

// MergeSequential implements Facade.
func (t *Toolbox) MergeSequential(ctx context.Context, inputs []string, output string) bool {
	if t.ffmpeg == nil {
		return t.fail("merge", ErrToolUnavailable, slog.String("output", output))
	}
	if err := t.ffmpeg.MergeSequential(ctx, inputs, output); err != nil {
		return t.fail("merge", err, slog.Int("inputs", len(inputs)), slog.String("output", output))
	}
	return true
}

// CreateArchive implements Facade.
func (t *Toolbox) CreateArchive(ctx context.Context, sourceDir, outputArchive string) bool {
	if err := t.archiver.Create(ctx, sourceDir, outputArchive); err != nil {
		return t.fail("archive", err, slog.String("source", sourceDir), slog.String("output", outputArchive))
	}
	return true
}

func (t *Toolbox) fail(op string, err error, attrs ...slog.Attr) bool {
	args := []any{slog.String("op", op), slog.String("error", err.Error())}
	var ffErr *FFmpegError
	if errors.As(err, &ffErr) {
		args = append(args, slog.String("stderr", ffErr.Stderr))
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	t.logger.Error("media operation failed", args...)
	return false
}
