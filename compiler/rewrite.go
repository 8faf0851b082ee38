package compiler

import (
	"strings"

	"golang.org/x/net/html"
)

// tagToken is one open or close tag of a given name in the working source.
type tagToken struct {
	start, end int
	close      bool
	selfClose  bool
}

// scanTags returns every open and close tag called name, in source order.
// Names match case-insensitively and only on a tag boundary, so scanning for
// "else" never matches "<else-if".
func scanTags(src, name string) []tagToken {
	var out []tagToken
	for i := 0; i < len(src); i++ {
		if src[i] != '<' {
			continue
		}
		j := i + 1
		closing := j < len(src) && src[j] == '/'
		if closing {
			j++
		}
		k := j + len(name)
		if k >= len(src) || !strings.EqualFold(src[j:k], name) || !isTagBoundary(src[k]) {
			continue
		}
		end := tagEnd(src, k)
		if end < 0 {
			continue
		}
		t := tagToken{start: i, end: end, close: closing}
		if !closing && src[end-2] == '/' {
			t.selfClose = true
		}
		out = append(out, t)
		i = end - 1
	}
	return out
}

func isTagBoundary(c byte) bool {
	return c == '>' || c == '/' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// tagEnd returns the offset just past the '>' closing the tag whose name
// ends at from, skipping quoted attribute values, or -1.
func tagEnd(src string, from int) int {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1
		}
	}
	return -1
}

// attr is one attribute of an open tag. value is entity-decoded; raw is
// the attribute's source text.
type attr struct {
	name  string
	value string
	raw   string
	bare  bool
}

// parseAttrs reads the attributes of an open tag.
func parseAttrs(tag string) []attr {
	i := 1
	for i < len(tag) && !isTagBoundary(tag[i]) {
		i++
	}
	var attrs []attr
	for i < len(tag) {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] == '>' || (tag[i] == '/' && i+1 < len(tag) && tag[i+1] == '>') {
			break
		}
		start := i
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '=' && tag[i] != '>' && !(tag[i] == '/' && i+1 < len(tag) && tag[i+1] == '>') {
			i++
		}
		a := attr{name: strings.ToLower(tag[start:i]), bare: true}
		if start == i {
			i++
			continue
		}
		j := i
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j < len(tag) && tag[j] == '=' {
			a.bare = false
			i = j + 1
			for i < len(tag) && isSpace(tag[i]) {
				i++
			}
			if i < len(tag) && (tag[i] == '"' || tag[i] == '\'') {
				q := tag[i]
				end := strings.IndexByte(tag[i+1:], q)
				if end < 0 {
					end = len(tag) - i - 1
				}
				a.value = html.UnescapeString(tag[i+1 : i+1+end])
				i += end + 2
			} else {
				vs := i
				for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' {
					i++
				}
				a.value = html.UnescapeString(tag[vs:i])
			}
		}
		a.raw = tag[start:min(i, len(tag))]
		attrs = append(attrs, a)
	}
	return attrs
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func findAttr(attrs []attr, name string) (attr, bool) {
	for _, a := range attrs {
		if a.name == name {
			return a, true
		}
	}
	return attr{}, false
}

// firstValue returns the value of the first of names present, falling back
// to the first attribute of the tag.
func firstValue(attrs []attr, names ...string) string {
	for _, n := range names {
		if a, ok := findAttr(attrs, n); ok {
			return a.value
		}
	}
	if len(attrs) > 0 {
		return attrs[0].value
	}
	return ""
}

// rawAttrsExcept re-emits the source text of every attribute not named in
// skip, each preceded by a space.
func rawAttrsExcept(attrs []attr, skip ...string) string {
	var sb strings.Builder
outer:
	for _, a := range attrs {
		for _, s := range skip {
			if a.name == s {
				continue outer
			}
		}
		sb.WriteByte(' ')
		sb.WriteString(a.raw)
	}
	return sb.String()
}

// leaf is an occurrence of a control tag with no nested occurrence of the
// same tag.
type leaf struct {
	open      string
	attrs     []attr
	body      string
	closeText string
	// rest is the source following the leaf.
	rest      string
	selfClose bool
}

// rewriteLeaves replaces leaf occurrences of name with fn's output until
// none remain. Every round rewrites at least one leaf, so the number of
// unresolved tags strictly decreases; when a round finds tags but no leaf
// the source is returned as is with the count of tags left.
func rewriteLeaves(src, name string, fn func(leaf) string) (string, int) {
	for {
		toks := scanTags(src, name)
		if len(toks) == 0 {
			return src, 0
		}
		type span struct{ open, close int }
		var leaves []span
		for i, t := range toks {
			switch {
			case t.close:
			case t.selfClose:
				leaves = append(leaves, span{i, -1})
			case i+1 < len(toks) && toks[i+1].close:
				leaves = append(leaves, span{i, i + 1})
			}
		}
		if len(leaves) == 0 {
			return src, len(toks)
		}
		// Back to front so earlier offsets stay valid.
		for k := len(leaves) - 1; k >= 0; k-- {
			open := toks[leaves[k].open]
			l := leaf{open: src[open.start:open.end], selfClose: open.selfClose}
			l.attrs = parseAttrs(l.open)
			end := open.end
			if leaves[k].close >= 0 {
				cl := toks[leaves[k].close]
				l.body = src[open.end:cl.start]
				l.closeText = src[cl.start:cl.end]
				end = cl.end
			}
			l.rest = src[end:]
			src = src[:open.start] + fn(l) + src[end:]
		}
	}
}
