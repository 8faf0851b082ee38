// Package store implements the observable state containers shared by the
// runtime and the script interpreter.
//
// A Map or List wraps plain Go data (map[string]any, []any and scalars).
// Every write escapes string values, stores the result and invokes the
// container's notify callback exactly once. Nested maps and slices are
// wrapped lazily, the first time they are read, and share the notify
// callback of the container they were read from. Reading a key that was
// never set yields nil, which renders as an empty string.
//
// Containers are not safe for concurrent use; the runtime confines them to
// its loop goroutine.
package store

import (
	"errors"
	"fmt"
	"sort"
)

// MaxGrowth bounds how far past the end of a List a single Set may write.
const MaxGrowth = 1 << 16

// ErrIndexRange is returned by List.Set for an index it will not grow to.
var ErrIndexRange = errors.New("store: list index out of range")

// Notify is called after every write to a container.
type Notify func()

// Map is an observable string-keyed container.
type Map struct {
	data   map[string]any
	notify Notify
}

// NewMap wraps initial (which may be nil) and reports writes to notify.
// The initial data is deep-copied and escaped.
func NewMap(initial map[string]any, notify Notify) *Map {
	m := &Map{data: make(map[string]any, len(initial)), notify: notify}
	for k, v := range initial {
		m.data[k] = normalize(v)
	}
	return m
}

// WrapMap adopts data as a Map without copying or escaping it. Later
// writes are escaped as usual.
func WrapMap(data map[string]any, notify Notify) *Map {
	if data == nil {
		data = make(map[string]any)
	}
	return &Map{data: data, notify: notify}
}

// Get returns the value stored under key, or nil when the key is unset.
// Nested maps and slices are returned wrapped as *Map and *List.
func (m *Map) Get(key string) any {
	if m == nil {
		return nil
	}
	v, ok := m.data[key]
	if !ok || v == nil {
		return nil
	}
	if w, ok := m.wrap(v); ok {
		m.data[key] = w
		return w
	}
	return v
}

// Has reports whether key has been set.
func (m *Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.data[key]
	return ok
}

// Set escapes value, stores it under key and notifies.
func (m *Map) Set(key string, value any) {
	m.data[key] = normalize(value)
	m.fire()
}

// Delete removes key and notifies.
func (m *Map) Delete(key string) {
	delete(m.data, key)
	m.fire()
}

// Keys returns the set keys in sorted order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// Raw returns a deep, unwrapped copy of the contents.
func (m *Map) Raw() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = unwrap(v)
	}
	return out
}

func (m *Map) fire() {
	if m.notify != nil {
		m.notify()
	}
}

func (m *Map) wrap(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return &Map{data: t, notify: m.notify}, true
	case []any:
		return &List{items: t, notify: m.notify}, true
	}
	return nil, false
}

// List is an observable ordered container.
type List struct {
	items  []any
	notify Notify
}

// NewList wraps initial and reports writes to notify.
func NewList(initial []any, notify Notify) *List {
	l := &List{items: make([]any, len(initial)), notify: notify}
	for i, v := range initial {
		l.items[i] = normalize(v)
	}
	return l
}

// WrapList adopts items as a List without copying or escaping them.
func WrapList(items []any, notify Notify) *List {
	return &List{items: items, notify: notify}
}

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the item at i, or nil when i is out of range.
func (l *List) At(i int) any {
	if l == nil || i < 0 || i >= len(l.items) {
		return nil
	}
	v := l.items[i]
	switch t := v.(type) {
	case map[string]any:
		w := &Map{data: t, notify: l.notify}
		l.items[i] = w
		return w
	case []any:
		w := &List{items: t, notify: l.notify}
		l.items[i] = w
		return w
	}
	return v
}

// Set stores value at i, growing the list with nils when i is past the end.
// Indexes more than MaxGrowth past the end are rejected.
func (l *List) Set(i int, value any) error {
	if i < 0 || i-len(l.items) > MaxGrowth {
		return fmt.Errorf("%w: %d (length %d)", ErrIndexRange, i, len(l.items))
	}
	for len(l.items) <= i {
		l.items = append(l.items, nil)
	}
	l.items[i] = normalize(value)
	l.fire()
	return nil
}

// Push appends values and notifies once.
func (l *List) Push(values ...any) int {
	for _, v := range values {
		l.items = append(l.items, normalize(v))
	}
	l.fire()
	return len(l.items)
}

// Pop removes and returns the last item.
func (l *List) Pop() any {
	if len(l.items) == 0 {
		return nil
	}
	last := l.At(len(l.items) - 1)
	l.items = l.items[:len(l.items)-1]
	l.fire()
	return last
}

// Raw returns a deep, unwrapped copy of the items.
func (l *List) Raw() []any {
	if l == nil {
		return nil
	}
	out := make([]any, len(l.items))
	for i, v := range l.items {
		out[i] = unwrap(v)
	}
	return out
}

func (l *List) fire() {
	if l.notify != nil {
		l.notify()
	}
}

// normalize prepares a value for storage: strings are escaped and nested
// structures are copied so the store never aliases caller-owned data.
func normalize(v any) any {
	switch t := v.(type) {
	case string:
		return Escape(t)
	case *Map:
		return normalize(t.Raw())
	case *List:
		return normalize(t.Raw())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Escape(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Escape(e)
		}
		return out
	}
	return v
}

func unwrap(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Raw()
	case *List:
		return t.Raw()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = unwrap(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = unwrap(e)
		}
		return out
	}
	return v
}
