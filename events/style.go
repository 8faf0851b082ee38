package events

import "strings"

type declaration struct {
	prop  string
	value string
}

// parseStyle splits a style string on ';' and ':' into declarations.
// Property names are lower-cased; malformed entries are dropped.
func parseStyle(s string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		prop = strings.ToLower(strings.TrimSpace(prop))
		if !ok || prop == "" {
			continue
		}
		decls = append(decls, declaration{prop: prop, value: strings.TrimSpace(value)})
	}
	return decls
}

// mergeStyle assigns every declaration of bound onto current, keeping the
// position of properties that already exist and appending new ones.
func mergeStyle(current, bound string) string {
	decls := parseStyle(current)
	for _, b := range parseStyle(bound) {
		found := false
		for i := range decls {
			if decls[i].prop == b.prop {
				decls[i].value = b.value
				found = true
				break
			}
		}
		if !found {
			decls = append(decls, b)
		}
	}
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		if d.value == "" {
			continue
		}
		parts = append(parts, d.prop+": "+d.value)
	}
	return strings.Join(parts, "; ")
}
