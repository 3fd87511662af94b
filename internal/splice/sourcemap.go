package splice

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// SourceMap is a Source Map revision 3 document
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// MapOptions controls source map generation
type MapOptions struct {
	// File is the name of the generated file
	File string
	// Source is the name of the original file
	Source string
	// IncludeContent embeds the original text in sourcesContent
	IncludeContent bool
}

// location is a 0-based line and UTF-16 column
type location struct {
	line   int
	column int
}

// Map builds a source map for the rendered text. Retained original text is
// mapped character by character; replacement text maps its first character
// to the start of the range it replaced; inserted text is left unmapped.
func (b *Buffer) Map(opts MapOptions) *SourceMap {
	sm := &SourceMap{
		Version: 3,
		File:    opts.File,
		Sources: []string{opts.Source},
		Names:   []string{},
	}
	if opts.IncludeContent {
		sm.SourcesContent = []string{string(b.old)}
	}

	idx := newLineIndex(b.old)
	enc := &mappingEncoder{}

	for _, seg := range b.segments() {
		switch {
		case seg.retained:
			offset := seg.origin
			for _, r := range seg.text {
				if r == '\n' {
					enc.newline()
				} else {
					enc.add(idx.position(offset))
					enc.advance(r)
				}
				offset += utf8.RuneLen(r)
			}
		case seg.origin >= 0:
			first := true
			for _, r := range seg.text {
				if r == '\n' {
					enc.newline()
					continue
				}
				if first {
					enc.add(idx.position(seg.origin))
					first = false
				}
				enc.advance(r)
			}
		default:
			for _, r := range seg.text {
				if r == '\n' {
					enc.newline()
				} else {
					enc.advance(r)
				}
			}
		}
	}

	sm.Mappings = enc.String()
	return sm
}

// ToJSON serializes the source map
func (sm *SourceMap) ToJSON() ([]byte, error) {
	return json.Marshal(sm)
}

// lineIndex converts byte offsets of the original text into line / UTF-16
// column positions.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (li *lineIndex) position(offset int) location {
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return location{line: lo, column: utf16Len(li.src[li.starts[lo]:offset])}
}

func utf16Len(b []byte) int {
	n := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		n += runeUTF16Len(r)
		b = b[size:]
	}
	return n
}

func runeUTF16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// mappingEncoder writes the VLQ "mappings" field. Generated columns are
// relative within a line; source index and original position are relative
// across the whole map.
type mappingEncoder struct {
	sb        strings.Builder
	col       int
	lastCol   int
	lastLine  int
	lastOCol  int
	lineStart bool
	started   bool
}

func (e *mappingEncoder) add(orig location) {
	if e.started && !e.lineStart {
		e.sb.WriteByte(',')
	}
	e.started = true
	e.lineStart = false

	writeVLQ(&e.sb, e.col-e.lastCol)
	writeVLQ(&e.sb, 0)
	writeVLQ(&e.sb, orig.line-e.lastLine)
	writeVLQ(&e.sb, orig.column-e.lastOCol)

	e.lastCol = e.col
	e.lastLine = orig.line
	e.lastOCol = orig.column
}

func (e *mappingEncoder) advance(r rune) {
	e.col += runeUTF16Len(r)
}

func (e *mappingEncoder) newline() {
	e.sb.WriteByte(';')
	e.col = 0
	e.lastCol = 0
	e.lineStart = true
}

func (e *mappingEncoder) String() string {
	return e.sb.String()
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqShift    = 5
	vlqMask     = 1<<vlqShift - 1
	vlqContinue = 1 << vlqShift
)

func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v)<<1 | 1
	}
	for {
		digit := u & vlqMask
		u >>= vlqShift
		if u > 0 {
			digit |= vlqContinue
		}
		sb.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}
