package watch

import (
	"context"
	"os"
	"sync"
	"time"
)

type poller struct {
	interval time.Duration

	mu    sync.Mutex
	mtime map[string]time.Time
}

func newPoller(interval time.Duration) *poller {
	return &poller{interval: interval, mtime: map[string]time.Time{}}
}

func (p *poller) add(abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.mtime[abs] = info.ModTime()
	p.mu.Unlock()
	return nil
}

func (p *poller) wait(ctx context.Context) ([]string, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if changed := p.check(); len(changed) > 0 {
			return changed, nil
		}
	}
}

func (p *poller) check() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var changed []string
	for path, last := range p.mtime {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(last) {
			changed = append(changed, path)
		}
		p.mtime[path] = info.ModTime()
	}
	return changed
}

func (p *poller) close() error { return nil }
