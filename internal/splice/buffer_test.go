package splice

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-sourcemap/sourcemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Edits(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		apply func(b *Buffer)
		want  string
	}{
		{
			name:  "no edits",
			src:   "abc",
			apply: func(b *Buffer) {},
			want:  "abc",
		},
		{
			name:  "delete",
			src:   "a = 1; b = 2;",
			apply: func(b *Buffer) { b.Delete(0, 6) },
			want:  " b = 2;",
		},
		{
			name:  "replace",
			src:   "x = y;",
			apply: func(b *Buffer) { b.Replace(4, 5, "void 0") },
			want:  "x = void 0;",
		},
		{
			name: "insert after a deleted range",
			src:  "class A { s = 1; }\nexport default A;",
			apply: func(b *Buffer) {
				b.Delete(10, 16)
				b.Insert(18, "\nA.s = 1;")
			},
			want: "class A {  }\nA.s = 1;\nexport default A;",
		},
		{
			name: "inserts at one offset keep queue order",
			src:  "ab",
			apply: func(b *Buffer) {
				b.Insert(1, "1")
				b.Insert(1, "2")
			},
			want: "a12b",
		},
		{
			name: "insert before a replacement at the same offset",
			src:  "abc",
			apply: func(b *Buffer) {
				b.Replace(1, 2, "X")
				b.Insert(1, "-")
			},
			want: "a-Xc",
		},
		{
			name: "edits queued out of order",
			src:  "0123456789",
			apply: func(b *Buffer) {
				b.Delete(8, 10)
				b.Replace(0, 2, "ab")
				b.Delete(4, 6)
			},
			want: "ab2367",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer([]byte(tt.src))
			tt.apply(b)
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.want != tt.src, b.HasChanged())
		})
	}
}

func TestBuffer_IdentityReplaceIsUnchanged(t *testing.T) {
	b := NewBuffer([]byte("abc"))
	b.Replace(0, 3, "abc")
	assert.Equal(t, 1, b.Len())
	assert.False(t, b.HasChanged())
}

func TestBuffer_OverlapPanics(t *testing.T) {
	b := NewBuffer([]byte("0123456789"))
	b.Delete(2, 6)
	b.Delete(4, 8)
	assert.Panics(t, func() { _ = b.String() })
}

func TestBuffer_InvalidRangePanics(t *testing.T) {
	b := NewBuffer([]byte("abc"))
	assert.Panics(t, func() { b.Delete(2, 1) })
	assert.Panics(t, func() { b.Insert(4, "x") })
}

// lookup resolves a 0-based generated position through an independent
// source map consumer and returns the 0-based original position
func lookup(t *testing.T, sm *SourceMap, line, column int) (location, bool) {
	t.Helper()
	data, err := sm.ToJSON()
	require.NoError(t, err)
	consumer, err := sourcemap.Parse("", data)
	require.NoError(t, err)
	_, _, origLine, origColumn, ok := consumer.Source(line+1, column)
	if !ok {
		return location{}, false
	}
	return location{line: origLine - 1, column: origColumn}, true
}

func TestSourceMap_RetainedText(t *testing.T) {
	src := "const a = 1;\nFoo.propTypes = {};\nexport default a;\n"
	b := NewBuffer([]byte(src))
	start := strings.Index(src, "Foo")
	end := strings.Index(src, "export")
	b.Delete(start, end)

	out := b.String()
	require.Equal(t, "const a = 1;\nexport default a;\n", out)

	sm := b.Map(MapOptions{File: "a.js", Source: "a.js", IncludeContent: true})
	assert.Equal(t, 3, sm.Version)
	assert.Equal(t, []string{"a.js"}, sm.Sources)
	assert.Equal(t, []string{src}, sm.SourcesContent)

	// "export" now sits on generated line 1, column 0; it came from line 2
	pos, ok := lookup(t, sm, 1, 0)
	require.True(t, ok)
	assert.Equal(t, location{line: 2, column: 0}, pos)

	pos, ok = lookup(t, sm, 1, 7)
	require.True(t, ok)
	assert.Equal(t, location{line: 2, column: 7}, pos)

	pos, ok = lookup(t, sm, 0, 6)
	require.True(t, ok)
	assert.Equal(t, location{line: 0, column: 6}, pos)
}

func TestSourceMap_ReplacementAndInsertion(t *testing.T) {
	src := "x = y;"
	b := NewBuffer([]byte(src))
	b.Replace(4, 5, "cond ? y : {}")
	b.Insert(6, "\nz();")

	require.Equal(t, "x = cond ? y : {};\nz();", b.String())
	sm := b.Map(MapOptions{Source: "in.js"})

	// Every character of the replacement resolves to the replaced range start
	pos, ok := lookup(t, sm, 0, 9)
	require.True(t, ok)
	assert.Equal(t, location{line: 0, column: 4}, pos)

	// The trailing semicolon is retained text
	pos, ok = lookup(t, sm, 0, 17)
	require.True(t, ok)
	assert.Equal(t, location{line: 0, column: 5}, pos)

	// Inserted text has no mapping
	_, ok = lookup(t, sm, 1, 0)
	assert.False(t, ok)
}

func TestSourceMap_UTF16Columns(t *testing.T) {
	src := "s = \"😀\"; t = 1;"
	b := NewBuffer([]byte(src))
	sm := b.Map(MapOptions{Source: "u.js"})

	// The emoji takes two UTF-16 units, so "t" sits at column 10
	pos, ok := lookup(t, sm, 0, 10)
	require.True(t, ok)
	assert.Equal(t, location{line: 0, column: 10}, pos)
}

func TestSourceMap_JSON(t *testing.T) {
	b := NewBuffer([]byte("a;\nb;"))
	b.Delete(0, 3)
	sm := b.Map(MapOptions{File: "out.js", Source: "in.js"})

	data, err := sm.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":3`)

	consumer, err := sourcemap.Parse("", data)
	require.NoError(t, err)
	assert.Equal(t, "out.js", consumer.File())

	source, _, line, column, ok := consumer.Source(1, 0)
	require.True(t, ok)
	assert.Equal(t, "in.js", source)
	assert.Equal(t, 2, line)
	assert.Equal(t, 0, column)
}

func TestSourceMap_LargeOffsets(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("/*" + strings.Repeat("x", 3000) + "*/ a;\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "const value%d = %d;\n", i, i)
	}
	src := sb.String()

	b := NewBuffer([]byte(src))
	b.Delete(strings.Index(src, "const value10 "), strings.Index(src, "const value190 "))
	sm := b.Map(MapOptions{Source: "big.js"})

	pos, ok := lookup(t, sm, 0, 3004)
	require.True(t, ok)
	assert.Equal(t, location{line: 0, column: 3004}, pos)

	// value9 keeps its line; value190 moves up from line 191 to line 11
	pos, ok = lookup(t, sm, 10, 6)
	require.True(t, ok)
	assert.Equal(t, location{line: 10, column: 6}, pos)

	pos, ok = lookup(t, sm, 11, 6)
	require.True(t, ok)
	assert.Equal(t, location{line: 191, column: 6}, pos)
}
