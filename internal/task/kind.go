package task

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an operation the engine can run.
type Kind string

const (
	// KindImport moves recordings from a source folder into the output directory.
	KindImport Kind = "IMPORT"
	// KindConvert extracts MP3 audio from video recordings.
	KindConvert Kind = "CONVERT"
	// KindMerge concatenates recordings chronologically into one MP3.
	KindMerge Kind = "MERGE"
	// KindRemoveSilence trims silent runs from each recording.
	KindRemoveSilence Kind = "REMOVE_SILENCE"
	// KindOrganize moves recordings into one folder per date.
	KindOrganize Kind = "ORGANIZE"
)

// Kinds lists every operation kind.
var Kinds = []Kind{KindImport, KindConvert, KindMerge, KindRemoveSilence, KindOrganize}

// ErrUnknownKind is returned for operation kinds the engine has no handler for.
var ErrUnknownKind = errors.New("unknown operation kind")

// ParseKind maps user input such as "remove_silence" to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	return string(k)
}
