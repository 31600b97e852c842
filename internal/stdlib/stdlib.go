// Package stdlib embeds the core library: the prelude every root imports,
// the mode preludes and the C runtime the generated code includes.
package stdlib

import (
	"io/fs"
	"testing/fstest"

	"tilc/internal/names"
)

const (
	testModePath       = "core/modes/test" + names.Ext
	safeScriptModePath = "core/modes/safe_script" + names.Ext
)

// Files returns the core sources keyed by import path.
func Files() map[string]string {
	return map[string]string{
		names.CorePrelude:  coreSrc,
		testModePath:       testModeSrc,
		safeScriptModePath: safeScriptModeSrc,
	}
}

// FS serves the core sources as a read-only file system.
func FS() fs.FS {
	m := fstest.MapFS{}
	for p, src := range Files() {
		m[p] = &fstest.MapFile{Data: []byte(src), Mode: 0o444}
	}
	return m
}

const coreSrc = `mode external

// Primitive types I64, U8, Bool, Dynamic and Type are built in.

Str := struct {
    mut c_string: I64 = 0
    mut cap: I64 = 0
    eq := ext_func(a: Str, b: Str) returns Bool
    len := ext_func(self: Str) returns I64
    clone := ext_func(self: Str) returns Str
    concat := ext_func(a: Str, b: Str) returns Str
}

BadAlloc := struct {
    mut msg: Str = ""
}

IndexOutOfBoundsError := struct {
    mut msg: Str = ""
}

Array := struct {
    mut type_name: Str = ""
    mut type_size: I64 = 0
    mut ptr: I64 = 0
    mut _len: I64 = 0
    new := ext_func(T: Type, capacity: I64) returns Array throws BadAlloc
    set := ext_proc(mut self: Array, index: I64, value: Dynamic) throws IndexOutOfBoundsError
    get := ext_func(self: Array, index: I64, mut dest: Dynamic) throws IndexOutOfBoundsError
    delete := ext_proc(mut self: Array)
    len := ext_func(self: Array) returns I64
}

HeapState := struct {
    namespace {
        enable := ext_proc()
        disable := ext_proc()
        add := ext_proc(ptr: I64)
        remove := ext_proc(ptr: I64)
        report := ext_proc()
    }
}

size_of := ext_func(T: Type) returns I64

add := ext_func(a: I64, b: I64) returns I64
sub := ext_func(a: I64, b: I64) returns I64
mul := ext_func(a: I64, b: I64) returns I64
mod := ext_func(a: I64, b: I64) returns I64

eq := ext_func(a: I64, b: I64) returns Bool
lt := ext_func(a: I64, b: I64) returns Bool
gt := ext_func(a: I64, b: I64) returns Bool
lteq := ext_func(a: I64, b: I64) returns Bool
gteq := ext_func(a: I64, b: I64) returns Bool

not := ext_func(b: Bool) returns Bool
and := ext_func(a: Bool, b: Bool) returns Bool
or := ext_func(a: Bool, b: Bool) returns Bool

concat := ext_func(a: Str, b: Str) returns Str
to_str := ext_func(i: I64) returns Str

println := ext_proc(args: Str..)
panic := ext_proc(msg: Str)
exit := ext_proc(code: I64)
`

const testModeSrc = `mode external

assert := proc(cond: Bool) {
    if not(cond) {
        panic("assertion failed")
    }
}

assertm := proc(cond: Bool, msg: Str) {
    if not(cond) {
        panic(msg)
    }
}
`

const safeScriptModeSrc = `mode external

// Scripts in safe mode report leaked allocations on exit.
check_heap := proc() {
    HeapState.report()
}
`
