package tmpl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vcrobe/cove/script"
)

// Error is a template syntax error.
type Error struct {
	Name string
	Line int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template %s:%d: %s", e.Name, e.Line, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

type itemKind int

const (
	itemText itemKind = iota
	itemExpr
	itemDirective
)

type item struct {
	kind itemKind
	text string // literal text, expression source or directive header
	pos  int    // byte offset of the source text
}

type parser struct {
	name  string
	src   string
	items []item
	i     int
}

// lexTemplate splits src into text, ${expr} and {{directive}} items.
func lexTemplate(name, src string) ([]item, error) {
	var items []item
	text := 0
	flush := func(end int) {
		if end > text {
			items = append(items, item{kind: itemText, text: src[text:end], pos: text})
		}
	}
	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], "${"):
			end := script.MatchBrace(src, i+1)
			if end < 0 {
				return nil, lineError(name, src, i, "unterminated ${")
			}
			flush(i)
			items = append(items, item{kind: itemExpr, text: src[i+2 : end], pos: i + 2})
			i = end + 1
			text = i
		case strings.HasPrefix(src[i:], "{{"):
			end := closeDirective(src, i+2)
			if end < 0 {
				return nil, lineError(name, src, i, "unterminated {{")
			}
			flush(i)
			items = append(items, item{kind: itemDirective, text: strings.TrimSpace(src[i+2 : end]), pos: i + 2})
			i = end + 2
			text = i
		default:
			i++
		}
	}
	flush(len(src))
	return items, nil
}

// closeDirective returns the index of the "}}" ending a directive header
// that starts at from, skipping quoted strings.
func closeDirective(src string, from int) int {
	for i := from; i < len(src)-1; i++ {
		switch c := src[i]; c {
		case '"', '\'', '`':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			i = j
		case '}':
			if src[i+1] == '}' {
				return i
			}
		}
	}
	return -1
}

func lineError(name, src string, pos int, format string, args ...any) *Error {
	pos = min(max(pos, 0), len(src))
	return &Error{
		Name: name,
		Line: strings.Count(src[:pos], "\n") + 1,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) errorf(it item, format string, args ...any) *Error {
	return lineError(p.name, p.src, it.pos, format, args...)
}

func (p *parser) wrap(it item, err error) *Error {
	e := p.errorf(it, "%v", err)
	e.Err = err
	return e
}

func (p *parser) expr(it item, src string) (*script.Expr, error) {
	x, err := script.CompileExpr(src)
	if err != nil {
		return nil, p.wrap(it, err)
	}
	return x, nil
}

func keyword(header string) (string, string) {
	kw, rest, _ := strings.Cut(header, " ")
	return kw, strings.TrimSpace(rest)
}

// parseList parses items until one of the stop directives. It returns the
// parsed nodes and the stop directive item (kind itemText and empty when the
// input ended).
func (p *parser) parseList(stops ...string) ([]tnode, item, error) {
	var nodes []tnode
	for p.i < len(p.items) {
		it := p.items[p.i]
		p.i++
		switch it.kind {
		case itemText:
			nodes = append(nodes, &textNode{text: it.text})
		case itemExpr:
			x, err := p.expr(it, it.text)
			if err != nil {
				return nil, it, err
			}
			nodes = append(nodes, &exprNode{x: x})
		case itemDirective:
			kw, rest := keyword(it.text)
			for _, s := range stops {
				if kw == s {
					return nodes, it, nil
				}
			}
			n, err := p.parseDirective(it, kw, rest)
			if err != nil {
				return nil, it, err
			}
			nodes = append(nodes, n)
		}
	}
	if len(stops) > 0 {
		return nil, item{}, lineError(p.name, p.src, len(p.src), "missing {{end}}")
	}
	return nodes, item{}, nil
}

// parseBody parses a block terminated by {{end}}.
func (p *parser) parseBody() ([]tnode, error) {
	nodes, _, err := p.parseList("end")
	return nodes, err
}

var joinRe = regexp.MustCompile(`^(.*?)\s+join\s+("(?:[^"\\]|\\.)*")\s*$`)

func (p *parser) parseDirective(it item, kw, rest string) (tnode, error) {
	switch kw {
	case "if":
		return p.parseIf(it, rest)
	case "map", "each":
		params, source, ok := strings.Cut(rest, " in ")
		if !ok {
			return nil, p.errorf(it, "%s: expected 'params in array'", kw)
		}
		n := &rangeNode{join: kw == "map"}
		if n.params = splitParams(params); len(n.params) == 0 {
			return nil, p.errorf(it, "%s: missing parameter names", kw)
		}
		if m := joinRe.FindStringSubmatch(source); kw == "map" && m != nil {
			sep, err := strconv.Unquote(m[2])
			if err != nil {
				return nil, p.errorf(it, "map: invalid join separator %s", m[2])
			}
			source, n.sep = m[1], sep
		}
		var err error
		if n.list, err = p.expr(it, source); err != nil {
			return nil, err
		}
		if n.body, err = p.parseBody(); err != nil {
			return nil, err
		}
		return n, nil
	case "for":
		parts := splitHeader(rest)
		if len(parts) != 3 {
			return nil, p.errorf(it, "for: expected 'init; condition; post', got %q", rest)
		}
		n := &forNode{}
		var err error
		if n.init, err = script.Compile(parts[0]); err != nil {
			return nil, p.wrap(it, err)
		}
		if strings.TrimSpace(parts[1]) != "" {
			if n.cond, err = p.expr(it, parts[1]); err != nil {
				return nil, err
			}
		}
		if n.post, err = script.Compile(parts[2]); err != nil {
			return nil, p.wrap(it, err)
		}
		if n.body, err = p.parseBody(); err != nil {
			return nil, err
		}
		return n, nil
	case "switch":
		return p.parseSwitch(it, rest)
	case "break":
		return &breakNode{}, nil
	case "inner":
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &innerNode{body: body}, nil
	case "with":
		name, source, ok := strings.Cut(rest, ":=")
		name = strings.TrimSpace(name)
		if !ok || !isIdent(name) {
			return nil, p.errorf(it, "with: expected 'name := expression'")
		}
		x, err := p.expr(it, source)
		if err != nil {
			return nil, err
		}
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &withNode{name: name, x: x, body: body}, nil
	}
	return nil, p.errorf(it, "unexpected {{%s}}", it.text)
}

func (p *parser) parseIf(it item, cond string) (tnode, error) {
	n := &ifNode{}
	for {
		x, err := p.expr(it, cond)
		if err != nil {
			return nil, err
		}
		body, stop, err := p.parseList("else", "end")
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, branch{cond: x, body: body})
		kw, rest := keyword(stop.text)
		if kw == "end" {
			return n, nil
		}
		if sub, elseRest := keyword(rest); sub == "if" {
			it, cond = stop, elseRest
			continue
		} else if rest != "" {
			return nil, p.errorf(stop, "unexpected {{%s}}", stop.text)
		}
		if n.els, err = p.parseBody(); err != nil {
			return nil, err
		}
		return n, nil
	}
}

func (p *parser) parseSwitch(it item, value string) (tnode, error) {
	x, err := p.expr(it, value)
	if err != nil {
		return nil, err
	}
	n := &switchNode{value: x, def: -1}
	for p.i < len(p.items) {
		cur := p.items[p.i]
		p.i++
		switch cur.kind {
		case itemText:
			if strings.TrimSpace(cur.text) != "" {
				return nil, p.errorf(cur, "switch: text outside of a case")
			}
			continue
		case itemExpr:
			return nil, p.errorf(cur, "switch: expression outside of a case")
		}
		kw, rest := keyword(cur.text)
		switch kw {
		case "end":
			return n, nil
		case "case":
			cx, err := p.expr(cur, rest)
			if err != nil {
				return nil, err
			}
			body, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			n.cases = append(n.cases, caseClause{value: cx, body: body})
		case "default":
			if n.def >= 0 {
				return nil, p.errorf(cur, "switch: multiple defaults")
			}
			body, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			n.def = len(n.cases)
			n.cases = append(n.cases, caseClause{body: body})
		default:
			return nil, p.errorf(cur, "switch: unexpected {{%s}}", cur.text)
		}
	}
	return nil, p.errorf(it, "switch: missing {{end}}")
}

func splitParams(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// splitHeader splits a loop header on semicolons outside quotes and
// brackets.
func splitHeader(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			j := i + 1
			for j < len(s) && s[j] != c {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			i = j
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ';':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
