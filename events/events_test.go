package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/vcrobe/cove/vdom"
)

func tree(t *testing.T, markup string) *html.Node {
	t.Helper()
	root, err := vdom.ParseFragment(markup)
	require.NoError(t, err)
	return root
}

// recorder compiles every handler into one that logs its source.
type recorder struct {
	compiled int
	calls    []string
}

func (r *recorder) compile(src string) (Handler, error) {
	r.compiled++
	if src == "bad(" {
		return nil, errors.New("syntax error")
	}
	return func(*Event) error {
		r.calls = append(r.calls, src)
		return nil
	}, nil
}

func TestRebind_DispatchesToHandler(t *testing.T) {
	rec := &recorder{}
	b := NewBinder(Options{Compile: rec.compile})
	root := tree(t, `<div><button :click="this.n++">+</button><button :click="this.n--">-</button></div>`)

	st, err := b.Rebind(root)
	require.NoError(t, err)
	assert.True(t, st.Recompiled)
	assert.Equal(t, 2, st.Handlers)

	buttons := vdom.Elements(root)[1:]
	require.NoError(t, b.Dispatch(buttons[1], &Event{Type: "click"}))
	require.NoError(t, b.Dispatch(buttons[0], &Event{Type: "click"}))
	assert.Equal(t, []string{"this.n--", "this.n++"}, rec.calls)
}

// TestRebind_UnchangedTableSkipsRecompile rebinds the same tree twice.
func TestRebind_UnchangedTableSkipsRecompile(t *testing.T) {
	rec := &recorder{}
	b := NewBinder(Options{Compile: rec.compile})
	root := tree(t, `<button :click="go()">x</button><input :input="typed()">`)

	_, err := b.Rebind(root)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.compiled)

	st, err := b.Rebind(root)
	require.NoError(t, err)
	assert.False(t, st.Recompiled)
	assert.Equal(t, 2, rec.compiled)

	// Changing one source reloads the table.
	vdom.SetAttr(vdom.Elements(root)[0], ":click", "stop()")
	st, err = b.Rebind(root)
	require.NoError(t, err)
	assert.True(t, st.Recompiled)
	assert.Equal(t, 4, rec.compiled)
}

// TestRebind_OneListenerPerSlot checks that rebinding replaces rather than
// stacks listeners.
func TestRebind_OneListenerPerSlot(t *testing.T) {
	rec := &recorder{}
	b := NewBinder(Options{Compile: rec.compile})
	root := tree(t, `<button :click="a()" :mouseover="b()">x</button>`)
	btn := vdom.Elements(root)[0]

	for range 3 {
		_, err := b.Rebind(root)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, b.Listeners(btn))

	st, err := b.Rebind(root)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Removed)
	assert.Equal(t, 2, st.Attached)

	require.NoError(t, b.Dispatch(btn, &Event{Type: "click"}))
	assert.Equal(t, []string{"a()"}, rec.calls)
}

func TestDispatch_MissingHandlerIsNoop(t *testing.T) {
	rec := &recorder{}
	b := NewBinder(Options{Compile: rec.compile})
	root := tree(t, `<p>plain</p><button :click="bad(">x</button>`)

	_, err := b.Rebind(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":click on <button>")

	els := vdom.Elements(root)
	assert.NoError(t, b.Dispatch(els[0], &Event{Type: "click"}))
	assert.NoError(t, b.Dispatch(els[1], &Event{Type: "click"}))
	assert.NoError(t, b.Dispatch(vdom.Element("p", nil), &Event{Type: "click"}))
	assert.Empty(t, rec.calls)
}

func TestRebind_PrunesDetachedNodes(t *testing.T) {
	rec := &recorder{}
	b := NewBinder(Options{Compile: rec.compile})
	root := tree(t, `<button :click="a()">1</button><button :click="b()">2</button>`)
	_, err := b.Rebind(root)
	require.NoError(t, err)

	second := vdom.Elements(root)[1]
	root.RemoveChild(second)
	st, err := b.Rebind(root)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pruned)
	assert.Zero(t, b.Listeners(second))
}

func TestRebind_StyleBinding(t *testing.T) {
	b := NewBinder(Options{})
	root := tree(t, `<p :style="color: red; Font-Weight: bold" style="width: 10px; color: blue"></p>`)

	_, err := b.Rebind(root)
	require.NoError(t, err)
	v, _ := vdom.GetAttr(vdom.Elements(root)[0], "style")
	assert.Equal(t, "width: 10px; color: red; font-weight: bold", v)
}

func TestRebind_Bind(t *testing.T) {
	got := map[string]any{}
	b := NewBinder(Options{Bind: func(expr string, v any) error {
		got[expr] = v
		return nil
	}})
	root := tree(t, `<input bind="this.name"><input type="checkbox" bind="this.done"><textarea bind:change="this.note"></textarea>`)
	_, err := b.Rebind(root)
	require.NoError(t, err)

	els := vdom.Elements(root)
	require.NoError(t, b.Dispatch(els[0], &Event{Type: "input", Value: "ada"}))
	require.NoError(t, b.Dispatch(els[1], &Event{Type: "change", Checked: true}))
	require.NoError(t, b.Dispatch(els[2], &Event{Type: "input", Value: "ignored"}))
	require.NoError(t, b.Dispatch(els[2], &Event{Type: "change", Value: "hi"}))

	assert.Equal(t, map[string]any{"this.name": "ada", "this.done": true, "this.note": "hi"}, got)
}

func TestRebind_SelectBinding(t *testing.T) {
	b := NewBinder(Options{Eval: func(expr string) (any, error) { return float64(2), nil }})
	root := tree(t, `<select bind="this.pick"><option value="1" selected>one</option><option value="2">two</option><option>3</option></select>`)

	_, err := b.Rebind(root)
	require.NoError(t, err)
	opts := vdom.Elements(root)[1:]
	_, sel0 := vdom.GetAttr(opts[0], "selected")
	_, sel1 := vdom.GetAttr(opts[1], "selected")
	assert.False(t, sel0)
	assert.True(t, sel1)
}

func TestRebind_RouteLink(t *testing.T) {
	var went string
	b := NewBinder(Options{Navigate: func(p string) error { went = p; return nil }})
	root := tree(t, `<a href="/about" data-route-link>About</a>`)
	_, err := b.Rebind(root)
	require.NoError(t, err)

	require.NoError(t, b.Dispatch(vdom.Elements(root)[0], &Event{Type: "click"}))
	assert.Equal(t, "/about", went)
}

func TestMergeStyle(t *testing.T) {
	assert.Equal(t, "color: red", mergeStyle("", "color: red;"))
	assert.Equal(t, "a: 1; b: 3", mergeStyle("a: 1; b: 2", "b: 3"))
	assert.Equal(t, "a: 1", mergeStyle("a: 1; b: 2", "b:"))
	assert.Equal(t, "a: 1", mergeStyle("a: 1", "garbage"))
}
