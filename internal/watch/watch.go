// Package watch reports writes to a set of files. It backs `tilc watch`,
// which rebuilds the root file whenever it or one of its imports changes.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// DefaultDebounce coalesces the bursts of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// backend is the platform notification mechanism.
type backend interface {
	add(abs string) error
	// wait blocks until some watched files changed or ctx is done.
	wait(ctx context.Context) ([]string, error)
	close() error
}

type Watcher struct {
	// Debounce is the quiet period after the last event before onChange
	// runs. Set it before Run.
	Debounce time.Duration

	be       backend
	onChange func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New returns a watcher on the native notification facility of the
// platform, inotify or kqueue, falling back to polling elsewhere.
func New(onChange func(path string)) (*Watcher, error) {
	be, err := newNative()
	if err != nil {
		return nil, err
	}
	return newWatcher(be, onChange), nil
}

// NewPolling returns a watcher that compares modification times every
// interval.
func NewPolling(onChange func(path string), interval time.Duration) *Watcher {
	return newWatcher(newPoller(interval), onChange)
}

func newWatcher(be backend, onChange func(string)) *Watcher {
	return &Watcher{
		Debounce: DefaultDebounce,
		be:       be,
		onChange: onChange,
		timers:   map[string]*time.Timer{},
	}
}

func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return w.be.add(abs)
}

// Run delivers change notifications until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		paths, err := w.be.wait(ctx)
		if ctx.Err() != nil {
			w.stopTimers()
			return nil
		}
		if err != nil {
			return err
		}
		for _, p := range paths {
			w.fire(p)
		}
	}
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.onChange(path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}

func (w *Watcher) Close() error {
	w.stopTimers()
	return w.be.close()
}
