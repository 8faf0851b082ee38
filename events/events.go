// Package events re-establishes declarative bindings on a live tree after
// every reconciliation pass.
//
// Elements declare handlers with ":<event>" attributes, computed styles
// with ":style", two-way bindings with "bind" and navigation with
// "data-route-link". A Binder keeps exactly one listener per element and
// event type, and only recompiles handlers when their sources change.
package events

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/html"

	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/vdom"
)

// Event is delivered to a listener.
type Event struct {
	Type   string
	Target *html.Node
	// Value is the control's new value for input and change events.
	Value string
	// Checked is the new state of a checkbox or radio button.
	Checked bool
	// Detail carries arbitrary data for custom events.
	Detail any
}

// Handler runs in response to an event.
type Handler func(ev *Event) error

// Options wires a Binder to its component.
type Options struct {
	// Compile turns the source of a ":<event>" attribute into a handler.
	Compile func(src string) (Handler, error)
	// Bind writes a control's value back through the expression of its
	// bind attribute.
	Bind func(expr string, value any) error
	// Eval evaluates a bind expression; select bindings use it to mark the
	// current option.
	Eval func(expr string) (any, error)
	// Navigate follows a route link.
	Navigate func(path string) error
}

// Stats describes the work done by Rebind.
type Stats struct {
	Recompiled bool
	Handlers   int
	Attached   int
	Removed    int
	Pruned     int
}

// tableEntry is one handler source, keyed by the element's index among the
// root's elements and the attribute name.
type tableEntry struct {
	Index  int    `msgpack:"i"`
	Attr   string `msgpack:"a"`
	Source string `msgpack:"s"`
}

type slotKey struct {
	index int
	attr  string
}

// Binder owns the listeners of one component's live tree. It is not safe
// for concurrent use.
type Binder struct {
	opts Options

	table    []byte
	handlers map[slotKey]Handler
	slots    map[*html.Node]map[string]Handler
}

// NewBinder returns a Binder with no listeners.
func NewBinder(opts Options) *Binder {
	return &Binder{
		opts:     opts,
		handlers: make(map[slotKey]Handler),
		slots:    make(map[*html.Node]map[string]Handler),
	}
}

// Rebind scans root and re-establishes its bindings. Handlers whose
// compilation fails are reported together; the remaining bindings are
// still installed.
func (b *Binder) Rebind(root *html.Node) (Stats, error) {
	var st Stats
	var errs []error

	elements := vdom.Elements(root)
	var entries []tableEntry
	for i, el := range elements {
		for _, a := range el.Attr {
			switch {
			case a.Key == vdom.StyleBinding:
				cur, _ := vdom.GetAttr(el, "style")
				if merged := mergeStyle(cur, a.Val); merged != cur {
					vdom.SetAttr(el, "style", merged)
				}
			case strings.HasPrefix(a.Key, ":") && len(a.Key) > 1:
				entries = append(entries, tableEntry{Index: i, Attr: a.Key, Source: a.Val})
			}
		}
	}

	packed, err := msgpack.Marshal(entries)
	if err != nil {
		return st, fmt.Errorf("events: encode handler table: %w", err)
	}
	if !bytes.Equal(packed, b.table) {
		b.table = packed
		b.handlers = make(map[slotKey]Handler, len(entries))
		for _, e := range entries {
			if b.opts.Compile == nil {
				continue
			}
			h, err := b.opts.Compile(e.Source)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s on <%s> #%d: %w", e.Attr, elements[e.Index].Data, e.Index, err))
				continue
			}
			b.handlers[slotKey{e.Index, e.Attr}] = h
		}
		st.Recompiled = true
	}
	st.Handlers = len(b.handlers)

	for _, e := range entries {
		key := slotKey{e.Index, e.Attr}
		b.attach(elements[e.Index], e.Attr[1:], func(ev *Event) error {
			h := b.handlers[key]
			if h == nil {
				return nil
			}
			return h(ev)
		}, &st)
	}

	for _, el := range elements {
		if expr, eventType, ok := bindAttr(el); ok {
			b.attach(el, eventType, b.bindListener(el, expr), &st)
		}
		if _, ok := vdom.GetAttr(el, "data-route-link"); ok && b.opts.Navigate != nil {
			href, _ := vdom.GetAttr(el, "href")
			b.attach(el, "click", func(*Event) error { return b.opts.Navigate(href) }, &st)
		}
		if el.Data == "select" {
			if err := b.markSelected(el); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for node := range b.slots {
		if !vdom.Contains(root, node) {
			delete(b.slots, node)
			st.Pruned++
		}
	}

	return st, errors.Join(errs...)
}

// attach installs fn as the listener for eventType on el, replacing the
// slot's previous listener.
func (b *Binder) attach(el *html.Node, eventType string, fn Handler, st *Stats) {
	slots := b.slots[el]
	if slots == nil {
		slots = make(map[string]Handler)
		b.slots[el] = slots
	}
	if _, ok := slots[eventType]; ok {
		st.Removed++
	}
	slots[eventType] = fn
	st.Attached++
}

// Listeners returns the number of event types with a listener on el.
func (b *Binder) Listeners(el *html.Node) int {
	return len(b.slots[el])
}

// Dispatch delivers ev to the listener for ev.Type on node. A node or event
// type without a listener is ignored.
func (b *Binder) Dispatch(node *html.Node, ev *Event) error {
	fn := b.slots[node][ev.Type]
	if fn == nil {
		return nil
	}
	ev.Target = node
	return fn(ev)
}

// Reset drops every listener and the cached handler table.
func (b *Binder) Reset() {
	b.table = nil
	b.handlers = make(map[slotKey]Handler)
	b.slots = make(map[*html.Node]map[string]Handler)
}

// bindAttr returns the bind expression of el and the event it listens to:
// "bind" listens to input (change for select, checkbox and radio), while
// "bind:<event>" names the event.
func bindAttr(el *html.Node) (expr, eventType string, ok bool) {
	for _, a := range el.Attr {
		switch {
		case a.Key == "bind":
			eventType = "input"
			if el.Data == "select" || isToggle(el) {
				eventType = "change"
			}
			return a.Val, eventType, true
		case strings.HasPrefix(a.Key, "bind:"):
			return a.Val, strings.TrimPrefix(a.Key, "bind:"), true
		}
	}
	return "", "", false
}

func isToggle(el *html.Node) bool {
	t, _ := vdom.GetAttr(el, "type")
	t = strings.ToLower(t)
	return el.Data == "input" && (t == "checkbox" || t == "radio")
}

func (b *Binder) bindListener(el *html.Node, expr string) Handler {
	toggle := isToggle(el)
	return func(ev *Event) error {
		if b.opts.Bind == nil {
			return nil
		}
		if toggle {
			return b.opts.Bind(expr, ev.Checked)
		}
		return b.opts.Bind(expr, ev.Value)
	}
}

// markSelected sets the selected attribute on the option of a bound select
// whose value equals the bound expression.
func (b *Binder) markSelected(sel *html.Node) error {
	expr, _, ok := bindAttr(sel)
	if !ok || b.opts.Eval == nil {
		return nil
	}
	v, err := b.opts.Eval(expr)
	if err != nil {
		return fmt.Errorf("select binding %q: %w", expr, err)
	}
	want := script.Format(v)
	for _, opt := range vdom.Elements(sel) {
		if opt.Data != "option" {
			continue
		}
		val, ok := vdom.GetAttr(opt, "value")
		if !ok {
			val = strings.TrimSpace(vdom.TextContent(opt))
		}
		if val == want {
			vdom.SetAttr(opt, "selected", "")
		} else {
			vdom.RemoveAttr(opt, "selected")
		}
	}
	return nil
}
