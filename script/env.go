package script

// Env is a lexical scope. Lookups walk the parent chain.
type Env struct {
	vars   map[string]any
	parent *Env
}

// NewEnv returns an empty scope nested in parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]any), parent: parent}
}

// Define binds name in this scope, shadowing any outer binding.
func (e *Env) Define(name string, value any) {
	e.vars[name] = value
}

// Lookup finds name in this scope or an enclosing one.
func (e *Env) Lookup(name string) (any, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Assign rebinds an existing name in the nearest scope that defines it.
func (e *Env) Assign(name string, value any) bool {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = value
			return true
		}
	}
	return false
}
