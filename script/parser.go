package script

import (
	"strings"
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tPunct && t.text == s
}

func (p *parser) isKeyword(words ...string) bool {
	t := p.peek()
	if t.kind != tIdent {
		return false
	}
	for _, w := range words {
		if t.text == w {
			return true
		}
	}
	return false
}

func (p *parser) accept(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) (token, error) {
	if !p.isPunct(s) {
		t := p.peek()
		return t, newError(t.pos, "expected '%s', found %s", s, t.describe())
	}
	return p.next(), nil
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tNewline {
		p.next()
	}
}

// continues consumes newlines when the first token after them is one of
// ops, so an expression may be continued on the next line.
func (p *parser) continues(ops ...string) bool {
	i := p.pos
	for p.toks[i].kind == tNewline {
		i++
	}
	t := p.toks[i]
	if t.kind != tPunct {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos = i
			return true
		}
	}
	return false
}

func (p *parser) parseStmts(end string) ([]node, error) {
	var out []node
	for {
		for k := p.peek().kind; k == tNewline || k == tSemi; k = p.peek().kind {
			p.next()
		}
		t := p.peek()
		if t.kind == tEOF {
			if end != "" {
				return nil, newError(t.pos, "expected '%s', found end of input", end)
			}
			return out, nil
		}
		if end != "" && p.isPunct(end) {
			return out, nil
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)

		t = p.peek()
		if t.kind == tNewline || t.kind == tSemi || t.kind == tEOF || (end != "" && p.isPunct(end)) {
			continue
		}
		switch s.(type) {
		case *ifStmt, *blockStmt:
			continue
		}
		return nil, newError(t.pos, "unexpected %s", t.describe())
	}
}

func (p *parser) parseStmt() (node, error) {
	t := p.peek()
	switch {
	case p.isKeyword("let", "const", "var"):
		p.next()
		name := p.next()
		if name.kind != tIdent {
			return nil, newError(name.pos, "expected variable name, found %s", name.describe())
		}
		s := &letStmt{pos: t.pos, name: name.text}
		if p.accept("=") {
			p.skipNewlines()
			init, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			s.init = init
		}
		return s, nil
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("return"):
		p.next()
		s := &returnStmt{pos: t.pos}
		if k := p.peek().kind; k == tNewline || k == tSemi || k == tEOF || p.isPunct("}") {
			return s, nil
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s.x = x
		return s, nil
	case p.isPunct("{"):
		p.next()
		stmts, err := p.parseStmts("}")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return &blockStmt{pos: t.pos, stmts: stmts}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &exprStmt{pos: t.pos, x: x}, nil
}

func (p *parser) parseIf() (node, error) {
	pos := p.next().pos
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	s := &ifStmt{pos: pos, cond: cond}
	if s.then, err = p.parseBody(); err != nil {
		return nil, err
	}

	i := p.pos
	for p.toks[i].kind == tNewline || p.toks[i].kind == tSemi {
		i++
	}
	if t := p.toks[i]; t.kind == tIdent && t.text == "else" {
		p.pos = i + 1
		if p.isKeyword("if") {
			elif, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			s.els = []node{elif}
		} else if s.els, err = p.parseBody(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) parseBody() ([]node, error) {
	p.skipNewlines()
	if p.accept("{") {
		stmts, err := p.parseStmts("}")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return stmts, nil
	}
	s, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return []node{s}, nil
}

func (p *parser) parseExpr() (node, error) {
	return p.parseAssign()
}

var assignOps = map[string]bool{"=": true, "+=": true, "-=": true, "*=": true, "/=": true}

func (p *parser) parseAssign() (node, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tPunct || !assignOps[t.text] {
		return left, nil
	}
	if !assignable(left) {
		return nil, newError(t.pos, "invalid assignment target")
	}
	p.next()
	p.skipNewlines()
	right, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &assign{pos: t.pos, op: t.text, target: left, value: right}, nil
}

func assignable(n node) bool {
	switch n.(type) {
	case *ident, *member, *index:
		return true
	}
	return false
}

func (p *parser) parseConditional() (node, error) {
	test, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.continues("?") {
		return test, nil
	}
	q := p.next()
	p.skipNewlines()
	then, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if !p.continues(":") {
		t := p.peek()
		return nil, newError(t.pos, "expected ':' in conditional, found %s", t.describe())
	}
	p.next()
	p.skipNewlines()
	els, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &conditional{pos: q.pos, test: test, then: then, els: els}, nil
}

var binaryPrec = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"==": 4, "!=": 4, "===": 4, "!==": 4,
	"<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
}

func (p *parser) parseBinary(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.continues("&&", "||", "??")
		t := p.peek()
		if t.kind != tPunct {
			return left, nil
		}
		prec, ok := binaryPrec[t.text]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.next()
		p.skipNewlines()
		right, err := p.parseBinary(prec)
		if err != nil {
			return nil, err
		}
		left = &binary{pos: t.pos, op: t.text, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	switch {
	case p.isPunct("!"), p.isPunct("-"), p.isPunct("+"), p.isKeyword("typeof"):
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{pos: t.pos, op: t.text, x: x}, nil
	case p.isPunct("++"), p.isPunct("--"):
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !assignable(x) {
			return nil, newError(t.pos, "invalid %s operand", t.text)
		}
		return &update{pos: t.pos, op: t.text, target: x, prefix: true}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parseCallMember()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); p.isPunct("++") || p.isPunct("--") {
		if !assignable(x) {
			return nil, newError(t.pos, "invalid %s operand", t.text)
		}
		p.next()
		return &update{pos: t.pos, op: t.text, target: x}, nil
	}
	return x, nil
}

func (p *parser) parseCallMember() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.continues(".", "?."):
			dot := p.next()
			name := p.next()
			if name.kind != tIdent {
				return nil, newError(name.pos, "expected property name after '.', found %s", name.describe())
			}
			x = &member{pos: dot.pos, obj: x, name: name.text}
		case p.isPunct("["):
			open := p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &index{pos: open.pos, obj: x, key: key}
		case p.isPunct("("):
			open := p.next()
			var args []node
			for !p.isPunct(")") {
				arg, err := p.parseAssign()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.accept(",") {
					break
				}
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			x = &call{pos: open.pos, fn: x, args: args}
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tNumber:
		return &literal{pos: t.pos, value: t.num}, nil
	case tString:
		return &literal{pos: t.pos, value: t.text}, nil
	case tTemplate:
		return parseTemplate(t.text, t.pos)
	case tIdent:
		switch t.text {
		case "true":
			return &literal{pos: t.pos, value: true}, nil
		case "false":
			return &literal{pos: t.pos, value: false}, nil
		case "null", "undefined":
			return &literal{pos: t.pos, value: nil}, nil
		case "function", "class", "new", "while", "for", "else":
			return nil, newError(t.pos, "'%s' is not supported", t.text)
		}
		return &ident{pos: t.pos, name: t.text}, nil
	case tPunct:
		switch t.text {
		case "(":
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			lit := &arrayLit{pos: t.pos}
			for !p.isPunct("]") {
				e, err := p.parseAssign()
				if err != nil {
					return nil, err
				}
				lit.elems = append(lit.elems, e)
				if !p.accept(",") {
					break
				}
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			return lit, nil
		case "{":
			return p.parseObject(t.pos)
		}
	}
	return nil, newError(t.pos, "unexpected %s", t.describe())
}

func (p *parser) parseObject(pos int) (node, error) {
	lit := &objectLit{pos: pos}
	for {
		p.skipNewlines()
		if p.accept("}") {
			return lit, nil
		}
		k := p.next()
		var key string
		switch k.kind {
		case tIdent, tString:
			key = k.text
		case tNumber:
			key = Format(k.num)
		default:
			return nil, newError(k.pos, "expected property name, found %s", k.describe())
		}
		p.skipNewlines()
		var value node
		if p.accept(":") {
			p.skipNewlines()
			v, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			value = v
		} else if k.kind == tIdent {
			value = &ident{pos: k.pos, name: key}
		} else {
			return nil, newError(k.pos, "expected ':' after property name")
		}
		lit.keys = append(lit.keys, key)
		lit.values = append(lit.values, value)
		p.skipNewlines()
		if !p.accept(",") {
			p.skipNewlines()
			if _, err := p.expect("}"); err != nil {
				return nil, err
			}
			return lit, nil
		}
	}
}

// parseTemplate splits the raw body of a backtick string into literal text
// and ${...} expressions.
func parseTemplate(raw string, base int) (node, error) {
	lit := &templateLit{pos: base}
	var text strings.Builder
	flush := func(at int) {
		if text.Len() > 0 {
			lit.parts = append(lit.parts, &literal{pos: base + at, value: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == '\\' && i+1 < len(raw):
			switch raw[i+1] {
			case 'n':
				text.WriteByte('\n')
			case 't':
				text.WriteByte('\t')
			default:
				text.WriteByte(raw[i+1])
			}
			i += 2
		case c == '$' && i+1 < len(raw) && raw[i+1] == '{':
			flush(i)
			end := MatchBrace(raw, i+1)
			if end < 0 {
				return nil, newError(base+i, "unterminated ${ in template string")
			}
			x, err := parseExprAt(raw[i+2:end], base+i+2)
			if err != nil {
				return nil, err
			}
			lit.parts = append(lit.parts, x)
			i = end + 1
		default:
			text.WriteByte(c)
			i++
		}
	}
	flush(len(raw))
	return lit, nil
}

// MatchBrace returns the index of the '}' closing the '{' at open, skipping
// quoted strings and nested braces, or -1.
func MatchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseExprAt(src string, base int) (node, error) {
	toks, err := lex(src, base)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	p.skipNewlines()
	if p.peek().kind == tEOF {
		return nil, newError(base, "empty expression")
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if t := p.peek(); t.kind != tEOF {
		return nil, newError(t.pos, "unexpected %s after expression", t.describe())
	}
	return x, nil
}
