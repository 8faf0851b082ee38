package compiler

import (
	"fmt"
	"strings"
)

// Hook names a lifecycle script block.
type Hook string

const (
	// HookUpdate runs one tick after every reconciliation pass.
	HookUpdate Hook = "update"
	// HookRender runs before the template is evaluated on every pass.
	HookRender Hook = "render"
	// HookProps runs after an observed attribute changes.
	HookProps Hook = "props"
	// HookSlotChange runs when the host's child content changes.
	HookSlotChange Hook = "slotchange"
	// HookMount runs once, one tick after the first render.
	HookMount Hook = "mount"
)

// Hooks lists the lifecycle markers in the order they are reported.
var Hooks = []Hook{HookMount, HookRender, HookUpdate, HookProps, HookSlotChange}

// Flags records which runtime features a component uses, so the runtime
// only subscribes to what is needed.
type Flags struct {
	UsesGlobal       bool `json:"usesGlobal,omitempty"`
	UsesRoute        bool `json:"usesRoute,omitempty"`
	HasInnerHTML     bool `json:"hasInnerHTML,omitempty"`
	HasSelectBinding bool `json:"hasSelectBinding,omitempty"`
	HasCustomEvents  bool `json:"hasCustomEvents,omitempty"`
}

// Definition is the compiled form of one component's markup. It is plain
// data; the loader turns it into an executable module.
type Definition struct {
	Tag      string          `json:"tag"`
	Template string          `json:"template"`
	Style    string          `json:"style,omitempty"`
	Script   string          `json:"script,omitempty"`
	Hooks    map[Hook]string `json:"hooks,omitempty"`
	Imports  []string        `json:"imports,omitempty"`
	Observed []string        `json:"observed,omitempty"`
	Flags    Flags           `json:"flags"`
	Warnings []string        `json:"warnings,omitempty"`
}

// CompileError reports malformed markup. Line is 1-based in the source
// given to Compile; Context holds the surrounding source lines.
type CompileError struct {
	Tag     string
	Line    int
	Msg     string
	Context string
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compile <%s>", e.Tag)
	if e.Line > 0 {
		fmt.Fprintf(&sb, ":%d", e.Line)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Context != "" {
		sb.WriteString(e.Context)
	}
	return sb.String()
}

// controlTags are the reserved elements rewritten into template directives.
var controlTags = []string{
	"if", "else-if", "else", "map", "for", "switch", "case", "default",
	"inner-html", "route-match", "route-link", "show",
}

// reservedCustomNames may not be used as component tags even though they
// contain a hyphen.
var reservedCustomNames = map[string]bool{
	"annotation-xml":   true,
	"color-profile":    true,
	"font-face":        true,
	"font-face-src":    true,
	"font-face-uri":    true,
	"font-face-format": true,
	"font-face-name":   true,
	"missing-glyph":    true,
}
