package recording

import (
	"errors"
	"sort"
	"sync"
)

// ErrFileNotFound is returned when a path is not in the registry.
var ErrFileNotFound = errors.New("file not found")

// Registry holds the files of one scan generation, indexed by raw date key
// and by state. Every file sits in exactly one state bucket and in the date
// bucket of its timestamp. Mutations are expected from a single goroutine
// while readers such as the HTTP adapter may run concurrently; a File's
// state is read through its own lock.
type Registry struct {
	mu      sync.RWMutex
	files   map[string]*File
	byDate  map[string]map[string]*File
	byState map[State]map[string]*File
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.files = make(map[string]*File)
	r.byDate = make(map[string]map[string]*File)
	r.byState = make(map[State]map[string]*File)
}

// Add inserts f. A file already registered under the same path is replaced.
func (r *Registry) Add(f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.files[f.Path]; ok {
		r.unindex(old)
	}
	r.files[f.Path] = f
	r.index(f)
}

// Remove drops f from every index. Removing an unknown file is a no-op.
func (r *Registry) Remove(f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.files[f.Path]
	if !ok {
		return
	}
	r.unindex(old)
	delete(r.files, f.Path)
}

// UpdateState moves f to state, keeping the state index consistent.
// Files outside the registry only have their state field updated.
func (r *Registry) UpdateState(f *File, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := f.State()
	if prev == state {
		return
	}
	registered, ok := r.files[f.Path]
	if !ok || registered != f {
		f.setState(state)
		return
	}
	removeFrom(r.byState, prev, f.Path)
	f.setState(state)
	addTo(r.byState, state, f)
}

// Get returns the file registered at path.
func (r *Registry) Get(path string) (*File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[path]
	if !ok {
		return nil, ErrFileNotFound
	}
	return f, nil
}

// ByDate returns the files whose raw date key is key, ordered by timestamp.
func (r *Registry) ByDate(key string) []*File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.byDate[key])
}

// ByState returns the files currently in state, ordered by timestamp.
func (r *Registry) ByState(state State) []*File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.byState[state])
}

// UnmergedForDate returns the unprocessed files of date key, ordered by timestamp.
func (r *Registry) UnmergedForDate(key string) []*File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*File
	for _, f := range sorted(r.byDate[key]) {
		if f.State() == StateUnprocessed {
			out = append(out, f)
		}
	}
	return out
}

// DateKeys returns the raw date keys present, in ascending order.
func (r *Registry) DateKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byDate))
	for k := range r.byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every file ordered by timestamp, then path.
func (r *Registry) All() []*File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.files)
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// Clear empties the registry for a new scan generation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *Registry) index(f *File) {
	addTo(r.byDate, f.DateKey(), f)
	addTo(r.byState, f.State(), f)
}

func (r *Registry) unindex(f *File) {
	removeFrom(r.byDate, f.DateKey(), f.Path)
	removeFrom(r.byState, f.State(), f.Path)
}

func addTo[K comparable](idx map[K]map[string]*File, key K, f *File) {
	bucket, ok := idx[key]
	if !ok {
		bucket = make(map[string]*File)
		idx[key] = bucket
	}
	bucket[f.Path] = f
}

func removeFrom[K comparable](idx map[K]map[string]*File, key K, path string) {
	bucket, ok := idx[key]
	if !ok {
		return
	}
	delete(bucket, path)
	if len(bucket) == 0 {
		delete(idx, key)
	}
}

func sorted(set map[string]*File) []*File {
	out := make([]*File, 0, len(set))
	for _, f := range set {
		out = append(out, f)
	}
	SortByTimestamp(out)
	return out
}

// SortByTimestamp orders files by capture time, breaking ties by path.
func SortByTimestamp(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, tj := files[i].timestamp, files[j].timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return files[i].Path < files[j].Path
	})
}
