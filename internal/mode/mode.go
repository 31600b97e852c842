// Package mode defines the file-level modes that gate what a compilation
// unit may contain at its top level.
package mode

import "fmt"

type Mode struct {
	Name               string
	AllowsProcs        bool
	AllowsBaseMut      bool
	AllowsBaseCalls    bool
	AllowsBaseAnything bool
	NeedsMainProc      bool
	Importable         bool
	// AllowedProcsInFuncs lists procs callable from func bodies, by unqualified name.
	AllowedProcsInFuncs []string
	// Imports are implicitly imported before the file's own declarations.
	Imports []string
}

var modes = map[string]Mode{
	"cli": {
		Name:          "cli",
		AllowsProcs:   true,
		AllowsBaseMut: true,
		NeedsMainProc: true,
	},
	"script": {
		Name:               "script",
		AllowsProcs:        true,
		AllowsBaseMut:      true,
		AllowsBaseCalls:    true,
		AllowsBaseAnything: true,
	},
	"safe_script": {
		Name:               "safe_script",
		AllowsProcs:        true,
		AllowsBaseMut:      true,
		AllowsBaseCalls:    true,
		AllowsBaseAnything: true,
		Imports:            []string{"core/modes/safe_script"},
	},
	"lib": {
		Name:        "lib",
		AllowsProcs: true,
		Importable:  true,
	},
	"pure": {
		Name:       "pure",
		Importable: true,
	},
	"external": {
		Name:        "external",
		AllowsProcs: true,
		Importable:  true,
	},
	"test": {
		Name:            "test",
		AllowsProcs:     true,
		AllowsBaseCalls: true,
		Imports:         []string{"core/modes/test"},
		// Assertions report through the same channel as panics.
		AllowedProcsInFuncs: []string{"panic", "assert", "assertm"},
	},
}

// Lookup returns the named mode.
func Lookup(name string) (Mode, error) {
	m, ok := modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("unsupported mode '%s'", name)
	}
	return m, nil
}

// Names returns the recognized mode names in table order.
func Names() []string {
	return []string{"cli", "script", "safe_script", "lib", "pure", "external", "test"}
}

// CanBeImported reports whether files of this mode can be imported.
func (m Mode) CanBeImported() bool { return m.Importable }

// ProcAllowedInFunc reports whether the proc may be called from a func body.
func (m Mode) ProcAllowedInFunc(name string) bool {
	for _, p := range m.AllowedProcsInFuncs {
		if p == name {
			return true
		}
	}
	return false
}
