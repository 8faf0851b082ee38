package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMap_SetEscapesStrings verifies that markup written through a store is
// stored in entity form and that storing the escaped value again is stable.
func TestMap_SetEscapesStrings(t *testing.T) {
	m := NewMap(nil, nil)

	m.Set("msg", "<script>alert('x')</script>")
	escaped := m.Get("msg")
	assert.Equal(t, "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;", escaped)

	m.Set("msg", escaped)
	assert.Equal(t, escaped, m.Get("msg"), "re-assigning an escaped value must not double-escape")
}

// TestMap_UnsetKeyIsBlank verifies that reading a missing key never panics
// and yields the nil blank sentinel.
func TestMap_UnsetKeyIsBlank(t *testing.T) {
	var nilMap *Map
	m := NewMap(nil, nil)

	assert.Nil(t, m.Get("missing"))
	assert.Nil(t, nilMap.Get("missing"))
	assert.False(t, m.Has("missing"))
}

// TestMap_NotifyOncePerWrite verifies the notify callback fires exactly once
// for every write, including writes to lazily wrapped children.
func TestMap_NotifyOncePerWrite(t *testing.T) {
	calls := 0
	m := NewMap(map[string]any{
		"user": map[string]any{"name": "ada"},
		"tags": []any{"a"},
	}, func() { calls++ })

	m.Set("count", 1)
	require.Equal(t, 1, calls)

	user, ok := m.Get("user").(*Map)
	require.True(t, ok, "nested map should be wrapped on first read")
	user.Set("name", "grace")
	assert.Equal(t, 2, calls)

	tags, ok := m.Get("tags").(*List)
	require.True(t, ok, "nested slice should be wrapped on first read")
	tags.Push("b", "c")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, tags.Len())

	m.Delete("count")
	assert.Equal(t, 4, calls)
}

// TestMap_LazyWrapIsCached verifies a nested structure is wrapped once and
// the same wrapper is returned on later reads.
func TestMap_LazyWrapIsCached(t *testing.T) {
	m := NewMap(map[string]any{"user": map[string]any{"name": "ada"}}, nil)

	first := m.Get("user")
	second := m.Get("user")
	assert.Same(t, first.(*Map), second.(*Map))
}

// TestMap_NestedStringsEscaped verifies nested structures are escaped when
// assigned and that the caller's data is not aliased.
func TestMap_NestedStringsEscaped(t *testing.T) {
	src := map[string]any{"title": "<b>", "items": []any{"<i>"}}
	m := NewMap(nil, nil)

	m.Set("doc", src)
	src["title"] = "changed"

	raw := m.Raw()["doc"].(map[string]any)
	assert.Equal(t, "&lt;b&gt;", raw["title"])
	assert.Equal(t, []any{"&lt;i&gt;"}, raw["items"])
}

// TestList_PopAndBounds verifies list reads outside the range are blank and
// Pop returns the last item.
func TestList_PopAndBounds(t *testing.T) {
	calls := 0
	l := NewList([]any{1, 2}, func() { calls++ })

	assert.Nil(t, l.At(5))
	assert.Nil(t, l.At(-1))
	assert.Equal(t, 2, l.Pop())
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, calls)

	require.NoError(t, l.Set(3, "x"))
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []any{1, nil, nil, "x"}, l.Raw())
}

// TestList_SetFarPastEnd refuses to grow a list by an unbounded amount.
func TestList_SetFarPastEnd(t *testing.T) {
	calls := 0
	l := NewList([]any{"a"}, func() { calls++ })

	assert.ErrorIs(t, l.Set(1e12, "x"), ErrIndexRange)
	assert.ErrorIs(t, l.Set(-1, "x"), ErrIndexRange)
	assert.Equal(t, 1, l.Len())
	assert.Zero(t, calls)

	require.NoError(t, l.Set(1+MaxGrowth, "y"))
	assert.Equal(t, MaxGrowth+2, l.Len())
}

// TestUnescape verifies the decode helper reverses Escape.
func TestUnescape(t *testing.T) {
	in := `<a href="x">'q'</a>`
	assert.Equal(t, in, Unescape(Escape(in)))
}
