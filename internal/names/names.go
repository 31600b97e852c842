// Package names holds the naming rules shared by the passes: import path
// resolution and C name mangling.
package names

import (
	"fmt"
	"path"
	"strings"
)

// CorePrefix marks import paths served from the embedded core library.
const CorePrefix = "core/"

// Ext is the source file extension.
const Ext = ".til"

// CorePrelude is the file implicitly imported by every compilation root.
const CorePrelude = "core/core" + Ext

// ResolveImport maps the argument of import("a/b") written in importer to
// a slash separated file path. Core paths are absolute; every other path
// is relative to the directory of importer.
func ResolveImport(importer, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("empty import path")
	}
	if strings.HasPrefix(arg, "/") {
		return "", fmt.Errorf("import path '%s' must be relative", arg)
	}
	if strings.HasSuffix(arg, Ext) {
		arg = strings.TrimSuffix(arg, Ext)
	}
	if IsCore(arg) {
		return path.Clean(arg) + Ext, nil
	}
	p := path.Join(path.Dir(importer), arg)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("import path '%s' escapes the source root", arg)
	}
	return p + Ext, nil
}

func IsCore(p string) bool { return strings.HasPrefix(p, CorePrefix) }

// ModuleName is the import argument that designates file p.
func ModuleName(p string) string { return strings.TrimSuffix(p, Ext) }

// CPrefix is prepended to every language-level name in generated C.
const CPrefix = "til_"

// Mangle returns the C identifier of a possibly dotted name: "Vec.new"
// becomes "til_Vec_new".
func Mangle(name string) string {
	return CPrefix + strings.ReplaceAll(name, ".", "_")
}

// Qualify joins a type name and a member name.
func Qualify(typ, member string) string { return typ + "." + member }

// SplitQualified splits "T.m" into "T" and "m". ok is false for plain names.
func SplitQualified(name string) (typ, member string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}
