// Package naming hands out output paths that collide neither with existing
// files nor with paths already promised to other work in the same request.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// maxAttempts bounds the " (N)" search for a free name.
const maxAttempts = 10000

// ErrNoFreeName is returned when no free candidate exists within maxAttempts.
var ErrNoFreeName = errors.New("no free name available")

// Reserver resolves name collisions. A path it returns is reserved until the
// Reserver is discarded, so concurrent workers never receive the same path.
type Reserver struct {
	mu       sync.Mutex
	fs       afero.Fs
	reserved map[string]struct{}
}

// NewReserver creates a Reserver checking existence against fsys.
func NewReserver(fsys afero.Fs) *Reserver {
	return &Reserver{
		fs:       fsys,
		reserved: make(map[string]struct{}),
	}
}

// Reserve returns desired if it is free, otherwise the first free
// "stem (N).ext" sibling, and reserves the result.
func (r *Reserver) Reserve(desired string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(desired)
	base := filepath.Base(desired)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := desired
	for n := 1; n <= maxAttempts; n++ {
		if r.free(candidate) {
			r.reserved[candidate] = struct{}{}
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreeName, desired)
}

// ReserveDir returns dir unchanged when it already exists as a directory, so
// repeated work can share it. Otherwise it behaves like Reserve.
func (r *Reserver) ReserveDir(dir string) (string, error) {
	r.mu.Lock()
	if isDir, err := afero.IsDir(r.fs, dir); err == nil && isDir {
		r.reserved[dir] = struct{}{}
		r.mu.Unlock()
		return dir, nil
	}
	r.mu.Unlock()
	return r.Reserve(dir)
}

// Release forgets a reservation, typically after the work that claimed it failed.
func (r *Reserver) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, path)
}

func (r *Reserver) free(path string) bool {
	if _, taken := r.reserved[path]; taken {
		return false
	}
	// A failed existence check counts as taken.
	exists, err := afero.Exists(r.fs, path)
	return err == nil && !exists
}
