package compiler

import (
	"regexp"
	"strings"
)

var reSelectBind = regexp.MustCompile(`(?is)<select\b[^>]*\bbind\b`)

// scanFlags records which runtime features src relies on. It runs over the
// whole markup, scripts included, since a script may read global or emit.
func scanFlags(src string) Flags {
	has := func(sentinels ...string) bool {
		for _, s := range sentinels {
			if strings.Contains(src, s) {
				return true
			}
		}
		return false
	}
	return Flags{
		UsesGlobal:       has("global.", "global["),
		UsesRoute:        has("route.", "route[", "<route-"),
		HasInnerHTML:     has("<inner-html"),
		HasSelectBinding: reSelectBind.MatchString(src),
		HasCustomEvents:  has("emit(", "receive("),
	}
}
