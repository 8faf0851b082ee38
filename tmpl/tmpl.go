// Package tmpl parses and executes compiled component templates.
//
// A template is HTML text with two kinds of dynamic content: ${expr}
// interpolations and {{...}} directives (if/else if/else, map, each, for,
// switch/case/default/break, inner, with), each block closed by {{end}}.
// Expressions are compiled once by Parse and evaluated by the script
// package on every Execute. Interpolated values are written as-is; string
// values are escaped when they are stored, not when they are rendered.
package tmpl

import (
	"fmt"
	"strings"

	"github.com/vcrobe/cove/script"
)

// DefaultMaxIterations bounds {{for}} header loops.
const DefaultMaxIterations = 10000

// Program is a parsed template. It is immutable and safe for concurrent
// use.
type Program struct {
	name    string
	src     string
	nodes   []tnode
	maxIter int
}

// Output is the result of executing a template. Inner holds whatever was
// rendered inside {{inner}} blocks.
type Output struct {
	HTML  string
	Inner string
}

// Parse parses src. name is used in error messages.
func Parse(name, src string) (*Program, error) {
	items, err := lexTemplate(name, src)
	if err != nil {
		return nil, err
	}
	p := &parser{name: name, src: src, items: items}
	nodes, _, err := p.parseList()
	if err != nil {
		return nil, err
	}
	return &Program{name: name, src: src, nodes: nodes, maxIter: DefaultMaxIterations}, nil
}

// WithMaxIterations returns a copy of p whose {{for}} loops fail after n
// iterations.
func (p *Program) WithMaxIterations(n int) *Program {
	cp := *p
	if n > 0 {
		cp.maxIter = n
	}
	return &cp
}

// Source returns the template text.
func (p *Program) Source() string { return p.src }

// Execute renders the template against env.
func (p *Program) Execute(env *script.Env) (Output, error) {
	st := &state{prog: p}
	if _, err := st.run(p.nodes, env); err != nil {
		return Output{}, fmt.Errorf("template %s: %w", p.name, err)
	}
	return Output{HTML: st.out.String(), Inner: st.inner.String()}, nil
}

type state struct {
	prog     *Program
	out      strings.Builder
	inner    strings.Builder
	diverted int
}

func (st *state) w() *strings.Builder {
	if st.diverted > 0 {
		return &st.inner
	}
	return &st.out
}

// run executes nodes. It reports true when a {{break}} was reached.
func (st *state) run(nodes []tnode, env *script.Env) (bool, error) {
	for _, n := range nodes {
		brk, err := n.exec(st, env)
		if err != nil || brk {
			return brk, err
		}
	}
	return false, nil
}
