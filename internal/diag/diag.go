package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Level classifies a diagnostic. The printed form is "<level> error".
type Level string

const (
	Type         Level = "type"
	Mode         Level = "mode"
	Syntax       Level = "syntax"
	Import       Level = "import"
	Lang         Level = "lang"
	Todo         Level = "todo"
	Scavenger    Level = "scavenger"
	ResolveTypes Level = "resolve_types"
)

// Fatal reports whether a diagnostic of this level stops the current pass.
func (l Level) Fatal() bool {
	return l == Lang || l == Todo || l == Scavenger
}

type Item struct {
	Filename string
	Line     int
	Col      int
	Level    Level
	Msg      string
}

func (it Item) String() string {
	return fmt.Sprintf("%s:%d:%d: %s error: %s", it.Filename, it.Line, it.Col, it.Level, it.Msg)
}

type Bag struct {
	Items []Item
}

func (b *Bag) Add(filename string, line int, col int, level Level, msg string) {
	b.Items = append(b.Items, Item{Filename: filename, Line: line, Col: col, Level: level, Msg: msg})
}

func (b *Bag) AddAt(loc Loc, level Level, msg string) {
	b.Add(loc.Filename, loc.Line, loc.Col, level, msg)
}

// Merge appends the items of o. A nil o is a no-op.
func (b *Bag) Merge(o *Bag) {
	if o == nil {
		return
	}
	b.Items = append(b.Items, o.Items...)
}

func (b *Bag) HasErrors() bool { return b != nil && len(b.Items) > 0 }

func (b *Bag) Has(level Level) bool {
	if b == nil {
		return false
	}
	for _, it := range b.Items {
		if it.Level == level {
			return true
		}
	}
	return false
}

// Contains reports whether some item message contains substr.
func (b *Bag) Contains(substr string) bool {
	if b == nil {
		return false
	}
	for _, it := range b.Items {
		if strings.Contains(it.Msg, substr) {
			return true
		}
	}
	return false
}

type Loc struct {
	Filename string
	Line     int
	Col      int
}

func Print(w io.Writer, b *Bag) {
	if b == nil || len(b.Items) == 0 {
		return
	}
	items := make([]Item, 0, len(b.Items))
	items = append(items, b.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Filename != items[j].Filename {
			return items[i].Filename < items[j].Filename
		}
		if items[i].Line != items[j].Line {
			return items[i].Line < items[j].Line
		}
		return items[i].Col < items[j].Col
	})
	for _, it := range items {
		fmt.Fprintln(w, it.String())
	}
}
