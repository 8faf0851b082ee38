package vdom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/vcrobe/cove/console"
)

// StyleBinding is the attribute carrying a computed style. Its target
// element's style attribute belongs to the event and style rebinder, so
// attribute copying leaves it alone.
const StyleBinding = ":style"

// Stats counts the mutations made by one pass.
type Stats struct {
	Appended    int // render nodes cloned onto the end of a live parent
	Replaced    int // live nodes swapped for a clone of a different kind
	Removed     int // trailing live children dropped
	TextUpdates int // text or comment nodes whose content changed
	Cleared     int // live elements emptied because the render node is empty
	Filled      int // empty live elements given the render node's children
	AttrUpdates int // elements whose attributes changed
	Failures    int // nodes skipped after a mutation failed
}

// Mutations returns the total number of node mutations in s.
func (s Stats) Mutations() int {
	return s.Appended + s.Replaced + s.Removed + s.TextUpdates + s.Cleared + s.Filled + s.AttrUpdates
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Appended += o.Appended
	s.Replaced += o.Replaced
	s.Removed += o.Removed
	s.TextUpdates += o.TextUpdates
	s.Cleared += o.Cleared
	s.Filled += o.Filled
	s.AttrUpdates += o.AttrUpdates
	s.Failures += o.Failures
}

// Reconcile patches the children of live to match render and then copies
// attributes. live and render are both roots; only their children are
// compared.
func Reconcile(live, render *html.Node) Stats {
	st := Patch(live, render)
	st.Add(CopyAttributes(live, render))
	return st
}

// Patch aligns the children of live with the children of render by
// position. Nodes that already match are left untouched, so their identity
// and any state hanging off them survive the pass. Attributes are not
// examined; see CopyAttributes.
func Patch(live, render *html.Node) Stats {
	var st Stats
	patchChildren(live, render, &st)
	return st
}

func patchChildren(live, render *html.Node, st *Stats) {
	want := 0
	for c := render.FirstChild; c != nil; c = c.NextSibling {
		want++
	}

	// Truncate trailing live children.
	have := 0
	for c := live.FirstChild; c != nil; c = c.NextSibling {
		have++
	}
	for ; have > want; have-- {
		guard(st, "truncate", func() {
			live.RemoveChild(live.LastChild)
			st.Removed++
		})
	}

	lc := live.FirstChild
	for rc := render.FirstChild; rc != nil; rc = rc.NextSibling {
		if lc == nil {
			guard(st, "append", func() {
				live.AppendChild(Clone(rc))
				st.Appended++
			})
			continue
		}
		next := lc.NextSibling
		cur := lc
		guard(st, "patch", func() { patchNode(live, cur, rc, st) })
		lc = next
	}
}

func patchNode(parent, lc, rc *html.Node, st *Stats) {
	switch {
	case !sameKind(lc, rc):
		parent.InsertBefore(Clone(rc), lc)
		parent.RemoveChild(lc)
		st.Replaced++
	case lc.Type == html.TextNode || lc.Type == html.CommentNode:
		if lc.Data != rc.Data {
			lc.Data = rc.Data
			st.TextUpdates++
		}
	case rc.FirstChild == nil:
		if lc.FirstChild != nil {
			for lc.FirstChild != nil {
				lc.RemoveChild(lc.FirstChild)
			}
			st.Cleared++
		}
	case lc.FirstChild == nil:
		// Build the subtree detached, then attach it in one step.
		frag := &html.Node{Type: html.DocumentNode}
		patchChildren(frag, rc, &Stats{})
		for c := frag.FirstChild; c != nil; c = frag.FirstChild {
			frag.RemoveChild(c)
			lc.AppendChild(c)
		}
		st.Filled++
	default:
		patchChildren(lc, rc, st)
	}
}

// guard runs one node mutation, recovering from a failure so the rest of
// the pass can continue.
func guard(st *Stats, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			st.Failures++
			console.L().Warn().Str("op", op).Str("error", fmt.Sprint(r)).Msg("vdom: node mutation failed")
		}
	}()
	fn()
}

func sameKind(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.Data == b.Data && a.Namespace == b.Namespace
	}
	return true
}

// CopyAttributes walks live and render together in document order and
// makes every live element carry the render element's attributes. The
// style attribute is skipped where the render element has a :style
// binding; where neither declares a style, the live style is reduced to
// its width and height.
func CopyAttributes(live, render *html.Node) Stats {
	var st Stats
	copyChildren(live, render, &st)
	return st
}

func copyChildren(live, render *html.Node, st *Stats) {
	lc, rc := live.FirstChild, render.FirstChild
	for ; lc != nil && rc != nil; lc, rc = lc.NextSibling, rc.NextSibling {
		if lc.Type != html.ElementNode || !sameKind(lc, rc) {
			continue
		}
		l, r := lc, rc
		guard(st, "attributes", func() {
			if copyAttrs(l, r) {
				st.AttrUpdates++
			}
		})
		copyChildren(lc, rc, st)
	}
}

// copyAttrs updates l's attributes from r and reports whether anything
// changed.
func copyAttrs(l, r *html.Node) bool {
	if attrsEqual(l.Attr, r.Attr) {
		return false
	}
	_, bound := GetAttr(r, StyleBinding)
	_, declared := GetAttr(r, "style")

	changed := false
	for _, a := range r.Attr {
		if a.Key == "style" && bound {
			continue
		}
		if v, ok := GetAttr(l, a.Key); !ok || v != a.Val {
			SetAttr(l, a.Key, a.Val)
			changed = true
		}
	}
	for i := 0; i < len(l.Attr); i++ {
		key := l.Attr[i].Key
		if key == "style" {
			continue
		}
		if _, ok := GetAttr(r, key); !ok {
			l.Attr = append(l.Attr[:i], l.Attr[i+1:]...)
			i--
			changed = true
		}
	}
	if !bound && !declared {
		if cur, ok := GetAttr(l, "style"); ok {
			if kept := SizeDeclarations(cur); kept == "" {
				RemoveAttr(l, "style")
				changed = true
			} else if kept != cur {
				SetAttr(l, "style", kept)
				changed = true
			}
		}
	}
	return changed
}

// SizeDeclarations keeps only the width and height declarations of a style
// attribute value.
func SizeDeclarations(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		name, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "width", "height":
			kept = append(kept, strings.TrimSpace(decl))
		}
	}
	return strings.Join(kept, "; ")
}

func attrsEqual(a, b []html.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
outer:
	for _, x := range a {
		for _, y := range b {
			if x.Namespace == y.Namespace && x.Key == y.Key {
				if x.Val != y.Val {
					return false
				}
				continue outer
			}
		}
		return false
	}
	return true
}
