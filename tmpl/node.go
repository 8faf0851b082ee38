package tmpl

import (
	"fmt"

	"github.com/vcrobe/cove/script"
)

type tnode interface {
	exec(st *state, env *script.Env) (brk bool, err error)
}

type textNode struct{ text string }

func (n *textNode) exec(st *state, _ *script.Env) (bool, error) {
	st.w().WriteString(n.text)
	return false, nil
}

type exprNode struct{ x *script.Expr }

func (n *exprNode) exec(st *state, env *script.Env) (bool, error) {
	v, err := n.x.Eval(env)
	if err != nil {
		return false, err
	}
	st.w().WriteString(script.Format(v))
	return false, nil
}

type branch struct {
	cond *script.Expr
	body []tnode
}

type ifNode struct {
	branches []branch
	els      []tnode
}

func (n *ifNode) exec(st *state, env *script.Env) (bool, error) {
	for _, b := range n.branches {
		v, err := b.cond.Eval(env)
		if err != nil {
			return false, err
		}
		if script.Truthy(v) {
			return st.run(b.body, env)
		}
	}
	return st.run(n.els, env)
}

// rangeNode is {{map}} (with an optional separator) or {{each}}.
type rangeNode struct {
	params []string
	list   *script.Expr
	join   bool
	sep    string
	body   []tnode
}

func (n *rangeNode) exec(st *state, env *script.Env) (bool, error) {
	v, err := n.list.Eval(env)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	items, ok := script.Items(v)
	if !ok {
		return false, fmt.Errorf("%s is not an array", n.list.Source())
	}
	for i, item := range items {
		if n.join && i > 0 {
			st.w().WriteString(n.sep)
		}
		scope := script.NewEnv(env)
		values := []any{item, float64(i), v}
		for j, name := range n.params {
			if j < len(values) {
				scope.Define(name, values[j])
			}
		}
		brk, err := st.run(n.body, scope)
		if err != nil {
			return false, err
		}
		if brk {
			return true, nil
		}
	}
	return false, nil
}

type forNode struct {
	init *script.Program
	cond *script.Expr
	post *script.Program
	body []tnode
}

func (n *forNode) exec(st *state, env *script.Env) (bool, error) {
	scope := script.NewEnv(env)
	if _, err := n.init.Run(scope); err != nil {
		return false, err
	}
	for iter := 0; ; iter++ {
		if n.cond != nil {
			v, err := n.cond.Eval(scope)
			if err != nil {
				return false, err
			}
			if !script.Truthy(v) {
				return false, nil
			}
		}
		if iter >= st.prog.maxIter {
			return false, fmt.Errorf("for loop exceeded %d iterations", st.prog.maxIter)
		}
		brk, err := st.run(n.body, script.NewEnv(scope))
		if err != nil {
			return false, err
		}
		if brk {
			return true, nil
		}
		if _, err := n.post.Run(scope); err != nil {
			return false, err
		}
	}
}

type caseClause struct {
	value *script.Expr // nil for default
	body  []tnode
}

// switchNode starts at the first case equal to the value, or at default,
// and runs the following bodies in order until a {{break}}.
type switchNode struct {
	value *script.Expr
	cases []caseClause
	def   int
}

func (n *switchNode) exec(st *state, env *script.Env) (bool, error) {
	v, err := n.value.Eval(env)
	if err != nil {
		return false, err
	}
	start := n.def
	for i, c := range n.cases {
		if c.value == nil {
			continue
		}
		cv, err := c.value.Eval(env)
		if err != nil {
			return false, err
		}
		if script.StrictEqual(v, cv) {
			start = i
			break
		}
	}
	if start < 0 {
		return false, nil
	}
	for _, c := range n.cases[start:] {
		brk, err := st.run(c.body, env)
		if err != nil {
			return false, err
		}
		if brk {
			return false, nil
		}
	}
	return false, nil
}

type breakNode struct{}

func (breakNode) exec(*state, *script.Env) (bool, error) { return true, nil }

type innerNode struct{ body []tnode }

func (n *innerNode) exec(st *state, env *script.Env) (bool, error) {
	st.diverted++
	defer func() { st.diverted-- }()
	return st.run(n.body, env)
}

type withNode struct {
	name string
	x    *script.Expr
	body []tnode
}

func (n *withNode) exec(st *state, env *script.Env) (bool, error) {
	v, err := n.x.Eval(env)
	if err != nil {
		return false, err
	}
	if !script.Truthy(v) {
		return false, nil
	}
	scope := script.NewEnv(env)
	scope.Define(n.name, v)
	return st.run(n.body, scope)
}
