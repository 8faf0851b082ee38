package script

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tNewline
	tSemi
	tIdent
	tNumber
	tString
	tTemplate
	tPunct
)

func (k tokenKind) String() string {
	switch k {
	case tEOF:
		return "end of input"
	case tNewline:
		return "newline"
	case tSemi:
		return "';'"
	case tIdent:
		return "identifier"
	case tNumber:
		return "number"
	case tString:
		return "string"
	case tTemplate:
		return "template string"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	text string // identifier name, operator, or decoded string contents
	num  float64
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tIdent, tPunct:
		return "'" + t.text + "'"
	case tNumber:
		return strconv.FormatFloat(t.num, 'f', -1, 64)
	}
	return t.kind.String()
}

// Longest operators first.
var puncts = []string{
	"===", "!==",
	"==", "!=", "<=", ">=", "&&", "||", "??", "?.", "+=", "-=", "*=", "/=", "++", "--",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "?", ":", ".", ",", "(", ")", "[", "]", "{", "}",
}

type lexer struct {
	src   string
	base  int
	pos   int
	depth int
	toks  []token
}

// lex splits src into tokens. Newlines are significant only outside
// parentheses and brackets, and consecutive newlines collapse into one.
func lex(src string, base int) ([]token, error) {
	lx := &lexer{src: src, base: base}
	for {
		if err := lx.skipSpace(); err != nil {
			return nil, err
		}
		if lx.pos >= len(lx.src) {
			lx.emit(token{kind: tEOF, pos: lx.pos})
			return lx.toks, nil
		}
		c := lx.src[lx.pos]
		start := lx.pos
		switch {
		case c == '\n':
			lx.pos++
			if lx.depth == 0 && len(lx.toks) > 0 && lx.toks[len(lx.toks)-1].kind != tNewline {
				lx.emit(token{kind: tNewline, pos: start})
			}
		case c == ';':
			lx.pos++
			lx.emit(token{kind: tSemi, text: ";", pos: start})
		case c == '"' || c == '\'':
			s, err := lx.readString(c)
			if err != nil {
				return nil, err
			}
			lx.emit(token{kind: tString, text: s, pos: start})
		case c == '`':
			s, err := lx.readTemplate()
			if err != nil {
				return nil, err
			}
			lx.emit(token{kind: tTemplate, text: s, pos: start + 1})
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			n, err := lx.readNumber()
			if err != nil {
				return nil, err
			}
			lx.emit(token{kind: tNumber, num: n, pos: start})
		case isIdentStart(rune(c)) || c >= utf8.RuneSelf:
			r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if !isIdentStart(r) {
				return nil, lx.errorf(start, "unexpected character %q", r)
			}
			lx.emit(token{kind: tIdent, text: lx.readIdent(), pos: start})
		default:
			p := lx.readPunct()
			if p == "" {
				return nil, lx.errorf(start, "unexpected character %q", c)
			}
			switch p {
			case "(", "[":
				lx.depth++
			case ")", "]":
				if lx.depth > 0 {
					lx.depth--
				}
			}
			lx.emit(token{kind: tPunct, text: p, pos: start})
		}
	}
}

func (lx *lexer) emit(t token) {
	t.pos += lx.base
	lx.toks = append(lx.toks, t)
}

func (lx *lexer) errorf(pos int, format string, args ...any) error {
	return newError(pos+lx.base, format, args...)
}

func (lx *lexer) skipSpace() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			end := strings.IndexByte(lx.src[lx.pos:], '\n')
			if end < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += end
			}
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return lx.errorf(lx.pos, "unterminated comment")
			}
			lx.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) readString(quote byte) (string, error) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case quote:
			lx.pos++
			return sb.String(), nil
		case '\n':
			return "", lx.errorf(start, "unterminated string")
		case '\\':
			if err := lx.readEscape(&sb); err != nil {
				return "", err
			}
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	return "", lx.errorf(start, "unterminated string")
}

// readTemplate returns the raw body of a backtick string. Escapes other
// than \` are kept verbatim and decoded when the parts are parsed.
func (lx *lexer) readTemplate() (string, error) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '`':
			lx.pos++
			return sb.String(), nil
		case c == '\\' && lx.pos+1 < len(lx.src):
			sb.WriteString(lx.src[lx.pos : lx.pos+2])
			lx.pos += 2
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	return "", lx.errorf(start, "unterminated template string")
}

func (lx *lexer) readEscape(sb *strings.Builder) error {
	start := lx.pos
	lx.pos++
	if lx.pos >= len(lx.src) {
		return lx.errorf(start, "unterminated escape")
	}
	c := lx.src[lx.pos]
	lx.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '0':
		sb.WriteByte(0)
	case 'u':
		if lx.pos+4 > len(lx.src) {
			return lx.errorf(start, "invalid unicode escape")
		}
		v, err := strconv.ParseUint(lx.src[lx.pos:lx.pos+4], 16, 32)
		if err != nil {
			return lx.errorf(start, "invalid unicode escape")
		}
		sb.WriteRune(rune(v))
		lx.pos += 4
	default:
		sb.WriteByte(c)
	}
	return nil
}

func (lx *lexer) readNumber() (float64, error) {
	start := lx.pos
	for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1]) {
		lx.pos++
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		p := lx.pos + 1
		if p < len(lx.src) && (lx.src[p] == '+' || lx.src[p] == '-') {
			p++
		}
		if p < len(lx.src) && isDigit(lx.src[p]) {
			lx.pos = p
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.pos++
			}
		}
	}
	n, err := strconv.ParseFloat(lx.src[start:lx.pos], 64)
	if err != nil {
		return 0, lx.errorf(start, "invalid number %q", lx.src[start:lx.pos])
	}
	return n, nil
}

func (lx *lexer) readIdent() string {
	start := lx.pos
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		lx.pos += size
	}
	return lx.src[start:lx.pos]
}

func (lx *lexer) readPunct() string {
	rest := lx.src[lx.pos:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			// "?." followed by a digit is a conditional, not optional chaining.
			if p == "?." && len(rest) > 2 && isDigit(rest[2]) {
				continue
			}
			lx.pos += len(p)
			return p
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}
