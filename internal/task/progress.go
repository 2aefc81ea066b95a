package task

import "sync"

// Reporter receives human-readable progress lines. Report may be called from
// any worker goroutine.
type Reporter interface {
	Report(msg string)
}

type discard struct{}

func (discard) Report(string) {}

// Discard drops every progress line.
var Discard Reporter = discard{}

// ChannelReporter forwards progress lines into a buffered channel that the
// presentation layer drains. Lines are dropped while the buffer is full.
type ChannelReporter struct {
	mu     sync.RWMutex
	ch     chan string
	closed bool
}

// NewChannelReporter creates a ChannelReporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelReporter{ch: make(chan string, buffer)}
}

// Report implements Reporter.
func (r *ChannelReporter) Report(msg string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- msg:
	default:
	}
}

// Lines returns the channel to drain. It is closed by Close.
func (r *ChannelReporter) Lines() <-chan string {
	return r.ch
}

// Close stops delivery and closes the channel. It is safe to call twice.
func (r *ChannelReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.ch)
}
