// Package script is the expression and statement interpreter behind
// component scripts, event handlers and template expressions.
//
// The language is a small JavaScript-flavoured subset: literals, member and
// index access, calls, the usual unary, binary and conditional operators,
// assignment, let declarations and if/else blocks. Statements are separated
// by ';' or a newline. Property reads never fail: reading through nil yields
// nil, which Format renders as the empty string. Writes to *store.Map and
// *store.List go through the store so they are escaped and observed.
package script

// Func is a host function callable from scripts.
type Func func(args ...any) (any, error)

// Program is a compiled statement list. It is immutable and may be run
// concurrently against different environments.
type Program struct {
	src   string
	stmts []node
}

// Compile parses src as a statement list.
func Compile(src string) (*Program, error) {
	toks, err := lex(src, 0)
	if err != nil {
		return nil, withSource(err, src)
	}
	p := &parser{toks: toks}
	stmts, err := p.parseStmts("")
	if err != nil {
		return nil, withSource(err, src)
	}
	return &Program{src: src, stmts: stmts}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Empty reports whether the program has no statements.
func (p *Program) Empty() bool { return p == nil || len(p.stmts) == 0 }

// Run executes the program in env. The result is the value of a return
// statement, or of the last expression statement executed.
func (p *Program) Run(env *Env) (any, error) {
	if p == nil {
		return nil, nil
	}
	v, _, err := execStmts(p.stmts, env)
	if err != nil {
		return nil, withSource(err, p.src)
	}
	return v, nil
}

// Expr is a compiled single expression.
type Expr struct {
	src string
	x   node
}

// CompileExpr parses src as exactly one expression.
func CompileExpr(src string) (*Expr, error) {
	x, err := parseExprAt(src, 0)
	if err != nil {
		return nil, withSource(err, src)
	}
	return &Expr{src: src, x: x}, nil
}

// Source returns the text the expression was compiled from.
func (e *Expr) Source() string { return e.src }

// Eval evaluates the expression in env.
func (e *Expr) Eval(env *Env) (any, error) {
	v, err := eval(e.x, env)
	if err != nil {
		return nil, withSource(err, e.src)
	}
	return v, nil
}

// Eval compiles and evaluates a single expression.
func Eval(src string, env *Env) (any, error) {
	e, err := CompileExpr(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(env)
}
