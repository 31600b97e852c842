// Package config reads the driver settings from the environment.
package config

import (
	"strings"

	"github.com/xyproto/env/v2"
)

const (
	DefaultCC     = "cc"
	DefaultCFlags = "-std=c11 -O0 -g"
	DefaultOutDir = "target"
)

type Config struct {
	// CC is the C compiler invoked by build and run.
	CC     string
	CFlags []string
	// OutDir is relative to the directory of the root file unless absolute.
	OutDir  string
	Verbose bool
	// KeepC keeps the generated C next to the binary.
	KeepC bool
}

// Load reads TILC_CC, TILC_CFLAGS, TILC_OUT, TILC_VERBOSE and TILC_KEEP_C.
// The env package caches the environment, so each call refreshes it first.
func Load() Config {
	env.Load()
	return Config{
		CC:      env.Str("TILC_CC", DefaultCC),
		CFlags:  strings.Fields(env.Str("TILC_CFLAGS", DefaultCFlags)),
		OutDir:  env.Str("TILC_OUT", DefaultOutDir),
		Verbose: env.Bool("TILC_VERBOSE"),
		KeepC:   !env.Has("TILC_KEEP_C") || env.Bool("TILC_KEEP_C"),
	}
}
