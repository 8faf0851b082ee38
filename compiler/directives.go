package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rewriter turns one leaf of a control tag into template source. A non-nil
// error abandons compilation of the component.
type rewriter func(l leaf) (string, error)

type directive struct {
	name    string
	rewrite rewriter
}

// directives lists the control tags in rewrite order. Loops go first so an
// if inside a loop body sees the loop's directives around it, and branches
// are resolved before switch so cases may hold conditionals.
var directives = []directive{
	{"map", rewriteMap},
	{"for", rewriteFor},
	{"if", rewriteIf},
	{"else-if", rewriteElseIf},
	{"else", rewriteElse},
	{"switch", rewriteSwitch},
	{"case", rewriteCase},
	{"default", rewriteDefault},
	{"inner-html", rewriteInner},
	{"route-match", rewriteRouteMatch},
	{"route-link", rewriteRouteLink},
	{"show", rewriteShow},
}

const defaultParams = "element, index, array"

func rewriteMap(l leaf) (string, error) {
	array := attrValue(l.attrs, "array")
	if array == "" {
		return "", fmt.Errorf("<map> requires an array attribute")
	}
	params := orDefault(attrValue(l.attrs, "params"), defaultParams)
	return fmt.Sprintf("{{map %s in %s join %s}}%s{{end}}",
		params, array, strconv.Quote(rawAttrValue(l.attrs, "join")), l.body), nil
}

func rewriteFor(l leaf) (string, error) {
	if array := attrValue(l.attrs, "array"); array != "" {
		params := orDefault(attrValue(l.attrs, "params"), defaultParams)
		return fmt.Sprintf("{{each %s in %s}}%s{{end}}", params, array, l.body), nil
	}
	header, body := attrValue(l.attrs, "loop"), l.body
	if header == "" {
		// The header is the first line of the body: "(let i = 0; i < n; i++)".
		first, rest, _ := strings.Cut(strings.TrimLeft(body, " \t\r\n"), "\n")
		header, body = strings.TrimSpace(first), rest
		header = strings.TrimSuffix(strings.TrimPrefix(header, "("), ")")
	}
	if strings.Count(header, ";") < 2 {
		return "", fmt.Errorf("<for> needs an array attribute or an 'init; condition; post' header")
	}
	return fmt.Sprintf("{{for %s}}%s{{end}}", strings.TrimSpace(header), body), nil
}

// continuesBranch reports whether rest begins, past whitespace, with an
// else-if or else tag.
func continuesBranch(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n\f")
	for _, name := range []string{"else-if", "else"} {
		if len(rest) > len(name)+1 && rest[0] == '<' &&
			strings.EqualFold(rest[1:1+len(name)], name) && isTagBoundary(rest[1+len(name)]) {
			return true
		}
	}
	return false
}

func condition(l leaf, tag string) (string, error) {
	c := strings.TrimSpace(firstValue(l.attrs, "when", "condition"))
	if c == "" {
		return "", fmt.Errorf("<%s> requires a condition", tag)
	}
	return c, nil
}

func rewriteIf(l leaf) (string, error) {
	c, err := condition(l, "if")
	if err != nil {
		return "", err
	}
	if continuesBranch(l.rest) {
		return "{{if " + c + "}}" + l.body, nil
	}
	return "{{if " + c + "}}" + l.body + "{{end}}", nil
}

func rewriteElseIf(l leaf) (string, error) {
	c, err := condition(l, "else-if")
	if err != nil {
		return "", err
	}
	if continuesBranch(l.rest) {
		return "{{else if " + c + "}}" + l.body, nil
	}
	return "{{else if " + c + "}}" + l.body + "{{end}}", nil
}

func rewriteElse(l leaf) (string, error) {
	return "{{else}}" + l.body + "{{end}}", nil
}

func rewriteSwitch(l leaf) (string, error) {
	v := strings.TrimSpace(firstValue(l.attrs, "value"))
	if v == "" {
		return "", fmt.Errorf("<switch> requires a value")
	}
	return "{{switch " + v + "}}" + l.body + "{{end}}", nil
}

// rewriteCase emits a case clause. A case with an empty body falls through
// to the next clause unless it carries a break attribute; a case with
// content always ends the switch.
func rewriteCase(l leaf) (string, error) {
	var v string
	if a, ok := findAttr(l.attrs, "value"); ok {
		v = strings.TrimSpace(a.value)
	} else {
		for _, a := range l.attrs {
			if a.name != "break" {
				v = strings.TrimSpace(a.value)
				break
			}
		}
	}
	if v == "" {
		return "", fmt.Errorf("<case> requires a value")
	}
	_, brk := findAttr(l.attrs, "break")
	if strings.TrimSpace(l.body) == "" {
		if brk {
			return "{{case " + v + "}}{{break}}{{end}}", nil
		}
		return "{{case " + v + "}}{{end}}", nil
	}
	return "{{case " + v + "}}" + l.body + "{{break}}{{end}}", nil
}

func rewriteDefault(l leaf) (string, error) {
	return "{{default}}" + l.body + "{{break}}{{end}}", nil
}

func rewriteInner(l leaf) (string, error) {
	return "{{inner}}" + l.body + "{{end}}", nil
}

func rewriteRouteMatch(l leaf) (string, error) {
	path := firstValue(l.attrs, "path")
	if path == "" {
		return "", fmt.Errorf("<route-match> requires a path")
	}
	name := orDefault(attrValue(l.attrs, "params"), "params")
	return fmt.Sprintf("{{with %s := matchRoute(route.path, %s)}}%s{{end}}",
		name, strconv.Quote(path), l.body), nil
}

func rewriteRouteLink(l leaf) (string, error) {
	open := "<a" + rawAttrsExcept(l.attrs) + " data-route-link>"
	if l.selfClose {
		return open + "</a>", nil
	}
	return open + l.body + "</a>", nil
}

func rewriteShow(l leaf) (string, error) {
	c, err := condition(l, "show")
	if err != nil {
		return "", err
	}
	skip := l.attrs[0].name
	for _, name := range []string{"when", "condition"} {
		if _, ok := findAttr(l.attrs, name); ok {
			skip = name
			break
		}
	}
	return fmt.Sprintf(`<div data-show${(%s) ? "" : " hidden"}%s>%s</div>`,
		c, rawAttrsExcept(l.attrs, skip), l.body), nil
}

var (
	reBindInput    = regexp.MustCompile(`(?is)<input\b[^>]*\bbind\s*=\s*("[^"]*"|'[^']*')[^>]*>`)
	reBindTextarea = regexp.MustCompile(`(?is)(<textarea\b[^>]*\bbind\s*=\s*("[^"]*"|'[^']*')[^>]*>)\s*(</textarea\s*>)`)
	reHasValue     = regexp.MustCompile(`(?i)\s(value|checked)\s*=`)
	reCheckbox     = regexp.MustCompile(`(?i)\btype\s*=\s*["']?(checkbox|radio)\b`)
)

// rewriteBindings gives every bound form control its current value, so a
// re-render keeps the store and the control in agreement.
func rewriteBindings(src string) string {
	src = reBindInput.ReplaceAllStringFunc(src, func(m string) string {
		if reHasValue.MatchString(m) {
			return m
		}
		expr := unquote(reBindInput.FindStringSubmatch(m)[1])
		insert := ` value="${` + expr + `}"`
		if reCheckbox.MatchString(m) {
			insert = ` ${(` + expr + `) ? "checked" : ""}`
		}
		end := len(m) - 1
		if strings.HasSuffix(m, "/>") {
			end--
		}
		return m[:end] + insert + m[end:]
	})
	return reBindTextarea.ReplaceAllStringFunc(src, func(m string) string {
		sub := reBindTextarea.FindStringSubmatch(m)
		return sub[1] + "${" + unquote(sub[2]) + "}" + sub[3]
	})
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func attrValue(attrs []attr, name string) string {
	return strings.TrimSpace(rawAttrValue(attrs, name))
}

// rawAttrValue keeps surrounding whitespace, which is significant for
// separators.
func rawAttrValue(attrs []attr, name string) string {
	a, _ := findAttr(attrs, name)
	return a.value
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
