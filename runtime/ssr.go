package runtime

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vcrobe/cove/vdom"
)

// Snapshot returns a copy of n in which every instance host carries its
// render root as a declarative shadow root:
//
//	<x-card cove><template shadowrootmode="open"><style>…</style>…</template>light content</x-card>
//
// Nested instances are expanded the same way.
func (rt *Runtime) Snapshot(n *html.Node) *html.Node {
	cp := vdom.Clone(n)
	rt.expand(n, cp)
	return cp
}

// expand walks orig and its clone in step, attaching shadow templates to
// the clones of instance hosts.
func (rt *Runtime) expand(orig, cp *html.Node) {
	if orig.Type == html.ElementNode {
		if inst, ok := rt.InstanceAt(orig); ok {
			cp.InsertBefore(rt.shadow(inst), cp.FirstChild)
		}
	}
	o, c := orig.FirstChild, cp.FirstChild
	if orig.Type == html.ElementNode {
		if _, ok := rt.InstanceAt(orig); ok {
			c = c.NextSibling
		}
	}
	for ; o != nil && c != nil; o, c = o.NextSibling, c.NextSibling {
		rt.expand(o, c)
	}
}

func (rt *Runtime) shadow(inst *Instance) *html.Node {
	tpl := &html.Node{
		Type:     html.ElementNode,
		Data:     "template",
		DataAtom: atom.Template,
		Attr:     []html.Attribute{{Key: "shadowrootmode", Val: "open"}},
	}
	if css := inst.Style(); css != "" {
		style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
		tpl.AppendChild(style)
	}
	root := rt.Snapshot(inst.Root)
	for c := root.FirstChild; c != nil; c = root.FirstChild {
		root.RemoveChild(c)
		tpl.AppendChild(c)
	}
	return tpl
}

// Component renders n, with every mounted instance expanded, as a templ
// component. For a detached element such as a render root or a parsed
// fragment only the children are written.
func (rt *Runtime) Component(n *html.Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		snap := rt.Snapshot(n)
		if n.Type != html.ElementNode || n.Parent != nil {
			return html.Render(w, snap)
		}
		// A detached element is a fragment root; only its content is output.
		for c := snap.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(w, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// InstanceComponent renders one instance as its host element with the
// declarative shadow root attached.
func (rt *Runtime) InstanceComponent(inst *Instance) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return html.Render(w, rt.Snapshot(inst.Host))
	})
}

// RenderString renders n the way Component does.
func (rt *Runtime) RenderString(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := rt.Component(n).Render(context.Background(), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
