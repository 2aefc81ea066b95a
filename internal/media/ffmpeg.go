package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoInputs is returned when no input paths are provided for merging.
	ErrNoInputs = errors.New("no input paths provided")
	// ErrOutputExists is returned when a transcode target already exists.
	ErrOutputExists = errors.New("output already exists")
	// ErrToolUnavailable is returned when the required executable is missing.
	ErrToolUnavailable = errors.New("tool unavailable")
)

// Re-encode settings shared by transcode, trim and the merge fallback.
const (
	mp3Codec      = "libmp3lame"
	mp3Bitrate    = "192k"
	mp3SampleRate = "44100"
	mp3Channels   = "2"
)

// FFmpegProcessor runs audio operations through the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// Path returns the configured ffmpeg binary.
func (p *FFmpegProcessor) Path() string {
	return p.ffmpegPath
}

// TranscodeToMP3 extracts the audio stream of input into an MP3 file.
// It returns ErrOutputExists rather than overwriting.
func (p *FFmpegProcessor) TranscodeToMP3(ctx context.Context, input, output string) error {
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, output)
	}
	args := []string{
		"-n",
		"-i", input,
		"-vn",
		"-acodec", mp3Codec,
		"-b:a", mp3Bitrate,
		output,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		removePartial(output)
		return err
	}
	return nil
}

// TrimSilence removes every silent run longer than minDuration seconds and
// quieter than thresholdDB from input.
func (p *FFmpegProcessor) TrimSilence(ctx context.Context, input, output string, thresholdDB, minDuration float64) error {
	filter := fmt.Sprintf("silenceremove=stop_periods=-1:stop_duration=%g:stop_threshold=%gdB", minDuration, thresholdDB)
	args := []string{
		"-y",
		"-i", input,
		"-af", filter,
		"-acodec", mp3Codec,
		"-b:a", mp3Bitrate,
		output,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		removePartial(output)
		return err
	}
	return nil
}

// MergeSequential concatenates inputs into output in the given order.
// It first attempts a fast copy (no re-encoding) and falls back to
// re-encoding with libmp3lame if the copy fails.
func (p *FFmpegProcessor) MergeSequential(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	listFile, err := p.createConcatList(inputs)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	copyErr := p.joinWithCopy(ctx, listFile, output)
	if copyErr == nil {
		return nil
	}
	removePartial(output)
	if ctx.Err() != nil {
		return copyErr
	}

	if err := p.joinWithReencode(ctx, listFile, output); err != nil {
		removePartial(output)
		return errors.Join(copyErr, err)
	}
	return nil
}

// joinWithCopy concatenates using stream copy.
func (p *FFmpegProcessor) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// joinWithReencode concatenates by decoding every input and encoding a
// uniform MP3 stream.
func (p *FFmpegProcessor) joinWithReencode(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-vn",
		"-acodec", mp3Codec,
		"-b:a", mp3Bitrate,
		"-ar", mp3SampleRate,
		"-ac", mp3Channels,
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// createConcatList writes the input list in the format of ffmpeg's concat demuxer.
func (p *FFmpegProcessor) createConcatList(inputs []string) (string, error) {
	f, err := os.CreateTemp("", "audiotoolbox-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range inputs {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

func removePartial(path string) {
	_ = os.Remove(path)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
