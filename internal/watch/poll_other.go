//go:build !linux && !darwin

package watch

import "time"

const fallbackInterval = 500 * time.Millisecond

func newNative() (backend, error) { return newPoller(fallbackInterval), nil }
