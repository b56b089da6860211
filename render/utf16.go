package render

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// utf16Index maps UTF-16 code unit offsets reported by the browser to byte
// offsets of the UTF-8 text.
type utf16Index struct {
	runes []wideRune // non-ASCII runes in text order
	size  int
	total int
}

type wideRune struct {
	unit  int // UTF-16 offset
	pos   int // byte offset
	units int // UTF-16 length
	bytes int // UTF-8 length
}

func newUTF16Index(text string) utf16Index {
	idx := utf16Index{size: len(text)}
	var unit int
	for pos, r := range text {
		n := utf16.RuneLen(r)
		if n <= 0 {
			// invalid sequence decodes as replacement character
			n = 1
		}
		if r >= utf8.RuneSelf {
			_, size := utf8.DecodeRuneInString(text[pos:])
			idx.runes = append(idx.runes, wideRune{unit: unit, pos: pos, units: n, bytes: size})
		}
		unit += n
	}
	idx.total = unit
	return idx
}

// byteOffset converts offset, offsets inside surrogate pair are moved to the
// start of the rune.
func (idx utf16Index) byteOffset(unit int) int {
	switch {
	case unit <= 0:
		return 0
	case unit >= idx.total:
		return idx.size
	}
	// last non-ASCII rune starting at or before unit
	i := sort.Search(len(idx.runes), func(i int) bool { return idx.runes[i].unit > unit }) - 1
	if i < 0 {
		return unit
	}
	r := idx.runes[i]
	if unit < r.unit+r.units {
		return r.pos
	}
	return r.pos + r.bytes + (unit - r.unit - r.units)
}
