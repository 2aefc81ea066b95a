// Package probe reads playback duration and tag metadata from audio files
// without shelling out to external tools.
package probe

import (
	"errors"
	"fmt"
	"io"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/spf13/afero"
)

// ErrInvalidWAV is returned when a .wav file has no valid RIFF/WAVE header.
var ErrInvalidWAV = errors.New("invalid wav file")

// Info is the metadata gathered for one file.
type Info struct {
	// Duration is the playback length in seconds, 0 when unknown.
	Duration float64
	// Title is the embedded title tag, if any.
	Title string
}

// mp3 frames decode to 16-bit stereo PCM.
const mp3BytesPerSample = 4

// Inspect gathers Info for path. format is the lowercase extension without the dot.
// Formats without a duration decoder only contribute their tags.
func Inspect(fsys afero.Fs, path, format string) (Info, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var info Info
	switch format {
	case "mp3", "m4a", "flac", "ogg":
		if m, err := tag.ReadFrom(f); err == nil {
			info.Title = m.Title()
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("rewind %s: %w", path, err)
	}

	switch format {
	case "mp3":
		d, err := mp3Duration(f)
		if err != nil {
			return info, err
		}
		info.Duration = d
	case "wav":
		d, err := wavDuration(f)
		if err != nil {
			return info, err
		}
		info.Duration = d
	}
	return info, nil
}

func mp3Duration(r io.ReadSeeker) (float64, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, nil
	}
	return float64(length) / float64(mp3BytesPerSample*dec.SampleRate()), nil
}

func wavDuration(r io.ReadSeeker) (float64, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, ErrInvalidWAV
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return d.Seconds(), nil
}
