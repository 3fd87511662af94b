// Package splice applies byte-range edits to an immutable original text and
// tracks where every output character came from.
package splice

import (
	"fmt"
	"sort"
	"strings"
)

// edit replaces old[start:end] with text. start == end is a pure insertion.
type edit struct {
	start int
	end   int
	text  string
	seq   int
}

// Buffer queues edits against the original text. Edits are recorded, not
// applied, so every offset always refers to the original text. Edits must
// not overlap; insertions at the same offset render in the order queued.
type Buffer struct {
	old   []byte
	edits []edit
}

// NewBuffer returns a buffer over src. src is not copied and must not change.
func NewBuffer(src []byte) *Buffer {
	return &Buffer{old: src}
}

// Original returns the text the buffer was created from
func (b *Buffer) Original() []byte {
	return b.old
}

// Insert queues text to be written at pos, after any original text ending there
func (b *Buffer) Insert(pos int, text string) {
	if text == "" {
		return
	}
	b.add(pos, pos, text)
}

// Delete queues removal of old[start:end]
func (b *Buffer) Delete(start, end int) {
	if start == end {
		return
	}
	b.add(start, end, "")
}

// Replace queues replacement of old[start:end] with text
func (b *Buffer) Replace(start, end int, text string) {
	b.add(start, end, text)
}

func (b *Buffer) add(start, end int, text string) {
	if start < 0 || end < start || end > len(b.old) {
		panic(fmt.Sprintf("splice: invalid range [%d,%d) for text of length %d", start, end, len(b.old)))
	}
	b.edits = append(b.edits, edit{start: start, end: end, text: text, seq: len(b.edits)})
}

// Len returns the number of queued edits
func (b *Buffer) Len() int {
	return len(b.edits)
}

// sorted returns the edits in application order. It panics on overlap.
func (b *Buffer) sorted() []edit {
	out := make([]edit, len(b.edits))
	copy(out, b.edits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		if out[i].end != out[j].end {
			return out[i].end < out[j].end
		}
		return out[i].seq < out[j].seq
	})

	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if cur.start < prev.end {
			panic(fmt.Sprintf("splice: overlapping edits at [%d,%d) and [%d,%d)", prev.start, prev.end, cur.start, cur.end))
		}
	}
	return out
}

// segment is one run of output text: either retained original text
// starting at origin, or edit text whose origin is the replaced range start
// (or -1 for pure insertions).
type segment struct {
	text     string
	origin   int
	retained bool
}

func (b *Buffer) segments() []segment {
	var segs []segment
	pos := 0
	for _, e := range b.sorted() {
		if pos < e.start {
			segs = append(segs, segment{text: string(b.old[pos:e.start]), origin: pos, retained: true})
		}
		if e.text != "" {
			origin := -1
			if e.end > e.start {
				origin = e.start
			}
			segs = append(segs, segment{text: e.text, origin: origin})
		}
		pos = e.end
	}
	if pos < len(b.old) {
		segs = append(segs, segment{text: string(b.old[pos:]), origin: pos, retained: true})
	}
	return segs
}

// String renders the edited text
func (b *Buffer) String() string {
	if len(b.edits) == 0 {
		return string(b.old)
	}
	var sb strings.Builder
	sb.Grow(len(b.old))
	for _, s := range b.segments() {
		sb.WriteString(s.text)
	}
	return sb.String()
}

// Bytes renders the edited text
func (b *Buffer) Bytes() []byte {
	return []byte(b.String())
}

// HasChanged reports whether the rendered text differs from the original.
// Edits that rewrite a range with identical text do not count.
func (b *Buffer) HasChanged() bool {
	if len(b.edits) == 0 {
		return false
	}
	return b.String() != string(b.old)
}
