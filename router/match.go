package router

import "strings"

// Wildcard is the Params key holding the segments matched by "*".
const Wildcard = "*"

// Params holds the values captured by a pattern's named segments.
type Params map[string]string

// Any converts p for storage in a store.Map or a script environment.
func (p Params) Any() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Match reports whether path matches pattern and returns the captured
// parameters. Pattern segments of the form ":name" (or "{name}") capture
// one path segment. A trailing "*" captures the remaining segments, which
// may be none; elsewhere "*" matches any single segment. Trailing slashes
// and any query string or fragment on path are ignored.
func Match(pattern, path string) (Params, bool) {
	patternParts := segments(pattern)
	pathParts := segments(stripQuery(path))

	params := make(Params)
	for i, part := range patternParts {
		if part == Wildcard && i == len(patternParts)-1 {
			if i > len(pathParts) {
				return nil, false
			}
			params[Wildcard] = strings.Join(pathParts[i:], "/")
			return params, true
		}
		if i >= len(pathParts) {
			return nil, false
		}
		switch {
		case part == Wildcard:
		case paramName(part) != "":
			params[paramName(part)] = pathParts[i]
		case part != pathParts[i]:
			return nil, false
		}
	}
	if len(patternParts) != len(pathParts) {
		return nil, false
	}
	return params, true
}

func paramName(part string) string {
	if len(part) > 1 && part[0] == ':' {
		return part[1:]
	}
	if len(part) > 2 && strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
		return part[1 : len(part)-1]
	}
	return ""
}

// segments splits a path on "/", ignoring leading, trailing and doubled
// slashes. The root path has no segments.
func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}

// Clean normalises p to a rooted path without a trailing slash.
func Clean(p string) string {
	return "/" + strings.Join(segments(stripQuery(p)), "/")
}
