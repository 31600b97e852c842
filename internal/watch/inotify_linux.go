//go:build linux

package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_ATTRIB

type inotify struct {
	fd int

	mu    sync.Mutex
	paths map[int]string
}

func newNative() (backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init: %w", err)
	}
	return &inotify{fd: fd, paths: map[int]string{}}, nil
}

func (in *inotify) add(abs string) error {
	wd, err := unix.InotifyAddWatch(in.fd, abs, inotifyMask)
	if err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	in.mu.Lock()
	in.paths[wd] = abs
	in.mu.Unlock()
	return nil
}

func (in *inotify) wait(ctx context.Context) ([]string, error) {
	buf := make([]byte, (unix.SizeofInotifyEvent+unix.NAME_MAX+1)*16)
	for {
		n, err := unix.Read(in.fd, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read inotify events: %w", err)
		}

		var changed []string
		for off := 0; off+unix.SizeofInotifyEvent <= n; {
			ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
			off += unix.SizeofInotifyEvent + int(ev.Len)
			if ev.Mask&inotifyMask == 0 {
				continue
			}
			in.mu.Lock()
			p := in.paths[int(ev.Wd)]
			in.mu.Unlock()
			if p != "" {
				changed = append(changed, p)
			}
		}
		if len(changed) > 0 {
			return changed, nil
		}
	}
}

func (in *inotify) close() error { return unix.Close(in.fd) }
