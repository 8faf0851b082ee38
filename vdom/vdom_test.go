package vdom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	root, err := ParseFragment(markup)
	require.NoError(t, err)
	return root
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// TestPatch_SingleTextChange changes one text node and checks that no other
// live node is touched or replaced.
func TestPatch_SingleTextChange(t *testing.T) {
	live := parse(t, `<ul><li>a</li><li>b</li><li>c</li></ul><p>tail</p>`)
	before := Elements(live)
	beforeText := children(before[2]) // the <li>b</li> text node

	st := Reconcile(live, parse(t, `<ul><li>a</li><li>B!</li><li>c</li></ul><p>tail</p>`))

	assert.Equal(t, 1, st.TextUpdates)
	assert.Equal(t, 1, st.Mutations())
	after := Elements(live)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Same(t, before[i], after[i], "element %d replaced", i)
	}
	assert.Same(t, beforeText[0], children(after[2])[0])
	assert.Equal(t, "B!", beforeText[0].Data)
}

func TestPatch_Cases(t *testing.T) {
	tests := []struct {
		name   string
		live   string
		render string
		check  func(t *testing.T, st Stats)
	}{
		{"truncate", `<i>1</i><i>2</i><i>3</i>`, `<i>1</i>`, func(t *testing.T, st Stats) {
			assert.Equal(t, 2, st.Removed)
		}},
		{"append", `<i>1</i>`, `<i>1</i><i>2</i>text`, func(t *testing.T, st Stats) {
			assert.Equal(t, 2, st.Appended)
		}},
		{"replace kind", `<i>1</i>`, `<b>1</b>`, func(t *testing.T, st Stats) {
			assert.Equal(t, 1, st.Replaced)
		}},
		{"replace text with element", `hello`, `<b>hello</b>`, func(t *testing.T, st Stats) {
			assert.Equal(t, 1, st.Replaced)
		}},
		{"comment", `<!--a-->`, `<!--b-->`, func(t *testing.T, st Stats) {
			assert.Equal(t, 1, st.TextUpdates)
		}},
		{"clear", `<div><p>x</p><p>y</p></div>`, `<div></div>`, func(t *testing.T, st Stats) {
			assert.Equal(t, 1, st.Cleared)
		}},
		{"fill", `<div></div>`, `<div><p>x</p><p>y</p></div>`, func(t *testing.T, st Stats) {
			assert.Equal(t, 1, st.Filled)
			assert.Zero(t, st.Appended)
		}},
		{"unchanged", `<div id="a"><p>x</p></div>`, `<div id="a"><p>x</p></div>`, func(t *testing.T, st Stats) {
			assert.Zero(t, st.Mutations())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live, render := parse(t, tt.live), parse(t, tt.render)
			st := Reconcile(live, render)
			tt.check(t, st)
			assert.Equal(t, RenderChildren(render), RenderChildren(live))
			assert.True(t, Equal(live, render))
		})
	}
}

// TestPatch_Positional reorders a list: the live nodes stay in place and
// take the new content.
func TestPatch_Positional(t *testing.T) {
	live := parse(t, `<li>a</li><li>b</li>`)
	first := live.FirstChild

	st := Patch(live, parse(t, `<li>b</li><li>a</li>`))

	assert.Equal(t, 2, st.TextUpdates)
	assert.Same(t, first, live.FirstChild)
	assert.Equal(t, "b", TextContent(first))
}

// TestPatch_RecoversNodeFailure corrupts a live node so its removal fails
// and checks that the rest of the pass still runs.
func TestPatch_RecoversNodeFailure(t *testing.T) {
	live := NewRoot()
	live.AppendChild(Text("a"))
	live.AppendChild(Element("p", nil, Text("x")))
	live.AppendChild(Text("stale"))
	live.LastChild.Parent = nil

	st := Patch(live, parse(t, `a<p>y</p>`))

	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 1, st.TextUpdates)
	assert.Equal(t, "y", TextContent(live.FirstChild.NextSibling))
}

func TestCopyAttributes(t *testing.T) {
	live := parse(t, `<div id="a" class="old" data-x="1"><span title="t"></span></div>`)
	render := parse(t, `<div id="a" class="new"><span title="t"></span></div>`)

	st := CopyAttributes(live, render)

	div := live.FirstChild
	assert.Equal(t, 1, st.AttrUpdates)
	v, _ := GetAttr(div, "class")
	assert.Equal(t, "new", v)
	_, ok := GetAttr(div, "data-x")
	assert.False(t, ok)
}

func TestCopyAttributes_Style(t *testing.T) {
	t.Run("bound style is left to the rebinder", func(t *testing.T) {
		live := parse(t, `<p :style="color: red" style="color: red; opacity: 0.5"></p>`)
		CopyAttributes(live, parse(t, `<p :style="color: blue"></p>`))
		v, _ := GetAttr(live.FirstChild, "style")
		assert.Equal(t, "color: red; opacity: 0.5", v)
		v, _ = GetAttr(live.FirstChild, ":style")
		assert.Equal(t, "color: blue", v)
	})
	t.Run("undeclared style keeps width and height", func(t *testing.T) {
		live := parse(t, `<p class="a" style="color: red; width: 10px; height:2em"></p>`)
		CopyAttributes(live, parse(t, `<p class="b"></p>`))
		v, _ := GetAttr(live.FirstChild, "style")
		assert.Equal(t, "width: 10px; height:2em", v)
	})
	t.Run("undeclared style without sizes is removed", func(t *testing.T) {
		live := parse(t, `<p class="a" style="color: red"></p>`)
		CopyAttributes(live, parse(t, `<p class="b"></p>`))
		_, ok := GetAttr(live.FirstChild, "style")
		assert.False(t, ok)
	})
	t.Run("declared style is copied", func(t *testing.T) {
		live := parse(t, `<p style="color: red"></p>`)
		CopyAttributes(live, parse(t, `<p style="color: green"></p>`))
		v, _ := GetAttr(live.FirstChild, "style")
		assert.Equal(t, "color: green", v)
	})
}

func TestCloneAndEqual(t *testing.T) {
	src := parse(t, `<div a="1" b="2"><p>x</p><!--c--></div>`)
	cp := Clone(src)
	assert.NotSame(t, src.FirstChild, cp.FirstChild)
	assert.True(t, Equal(src, cp))

	// Attribute order does not matter.
	other := parse(t, `<div b="2" a="1"><p>x</p><!--c--></div>`)
	assert.True(t, Equal(src, other))

	cp.FirstChild.FirstChild.FirstChild.Data = "y"
	assert.False(t, Equal(src, cp))
}

func TestHelpers(t *testing.T) {
	root := Element("div", map[string]string{"id": "r"},
		Element("span", map[string]string{"id": "s"}, Text("hi")),
		Text(" there"),
	)
	assert.Equal(t, `<div id="r"><span id="s">hi</span> there</div>`, Render(root))
	assert.Equal(t, "hi there", TextContent(root))
	require.NotNil(t, FindByID(root, "s"))
	assert.True(t, Contains(root, FindByID(root, "s").FirstChild))
	assert.Len(t, Elements(root), 1)

	SetAttr(root, "class", "x")
	assert.True(t, RemoveAttr(root, "class"))
	assert.False(t, RemoveAttr(root, "class"))
}
