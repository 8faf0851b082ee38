package runtime

import (
	"sort"
	"sync"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/console"
)

// Registry maps tag names to compiled definitions. It is safe for
// concurrent use.
type Registry struct {
	mu   sync.Mutex
	defs map[string]*compiler.Definition

	// OnCompile, when set, is called after every compilation.
	OnCompile func(tag string, err error)
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*compiler.Definition)}
}

// Register compiles markup as tag. A tag that is already registered is
// not compiled again; the first definition is returned. A compile error
// is logged and abandons this registration only.
func (r *Registry) Register(tag, markup string, observed []string) (*compiler.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def, ok := r.defs[tag]; ok {
		return def, nil
	}

	def, err := compiler.Compile(tag, markup, observed)
	if r.OnCompile != nil {
		r.OnCompile(tag, err)
	}
	if err != nil {
		console.L().Error().Err(err).Str("tag", tag).Msg("registration abandoned")
		return nil, err
	}
	for _, w := range def.Warnings {
		console.L().Warn().Str("tag", tag).Msg(w)
	}
	r.defs[tag] = def
	return def, nil
}

// Add registers an already compiled definition. Like Register it keeps
// the first definition for a tag.
func (r *Registry) Add(def *compiler.Definition) *compiler.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.defs[def.Tag]; ok {
		return prev
	}
	r.defs[def.Tag] = def
	return def
}

// Lookup returns the definition registered for tag.
func (r *Registry) Lookup(tag string) (*compiler.Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[tag]
	return def, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.defs))
	for t := range r.defs {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Reset forgets every definition.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.defs = make(map[string]*compiler.Definition)
	r.mu.Unlock()
}
