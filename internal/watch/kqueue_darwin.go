//go:build darwin

package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type kqueue struct {
	kq int

	mu    sync.Mutex
	paths map[int]string
}

func newNative() (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &kqueue{kq: kq, paths: map[int]string{}}, nil
}

func (k *kqueue) add(abs string) error {
	k.mu.Lock()
	for _, p := range k.paths {
		if p == abs {
			k.mu.Unlock()
			return nil
		}
	}
	k.mu.Unlock()
	fd, err := unix.Open(abs, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", abs, err)
	}
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_ATTRIB,
	}
	if _, err := unix.Kevent(k.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(fd)
		return fmt.Errorf("kevent %s: %w", abs, err)
	}
	k.mu.Lock()
	k.paths[fd] = abs
	k.mu.Unlock()
	return nil
}

func (k *kqueue) wait(ctx context.Context) ([]string, error) {
	events := make([]unix.Kevent_t, 16)
	timeout := unix.NsecToTimespec(int64(100 * time.Millisecond))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := unix.Kevent(k.kq, nil, events, &timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read kevents: %w", err)
		}
		var changed []string
		for _, ev := range events[:n] {
			k.mu.Lock()
			p := k.paths[int(ev.Ident)]
			k.mu.Unlock()
			if p != "" {
				changed = append(changed, p)
			}
		}
		if len(changed) > 0 {
			return changed, nil
		}
	}
}

func (k *kqueue) close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for fd := range k.paths {
		unix.Close(fd)
	}
	return unix.Close(k.kq)
}
