// Package compiler turns component markup into a Definition: a template in
// the directive language of package tmpl, a style template, and the
// constructor and lifecycle scripts.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/tmpl"
)

// Compile compiles the markup of the component tag. Malformed markup
// yields a best-effort Definition together with a *CompileError.
func Compile(tag, markup string, observed []string) (*Definition, error) {
	if err := validateTagName(tag); err != nil {
		return nil, &CompileError{Tag: tag, Msg: err.Error()}
	}

	src, style := preprocess(markup)
	src, blocks := preprocessScripts(src)

	def := &Definition{
		Tag:      tag,
		Style:    style,
		Script:   strings.Join(blocks.constructor, "\n"),
		Imports:  blocks.imports,
		Observed: append([]string(nil), observed...),
		Flags:    scanFlags(markup),
		Warnings: checkUnknownTags(src),
	}
	if len(blocks.hooks) > 0 {
		def.Hooks = blocks.hooks
	}

	var first *CompileError
	fail := func(e *CompileError) {
		if first == nil {
			first = e
		}
	}

	if e := validateBalance(tag, src); e != nil {
		fail(e)
	}

	for _, d := range directives {
		var remaining int
		src, remaining = rewriteLeaves(src, d.name, func(l leaf) string {
			out, err := d.rewrite(l)
			if err != nil {
				line := lineAt(src, strings.Index(src, l.open))
				if n := estimateLineNumber(markup, l.open); n > 0 {
					line = n
				}
				fail(&CompileError{Tag: tag, Line: line, Msg: err.Error(), Context: getContextLines(markup, line, 2)})
				// Keep the content so the rest of the markup still compiles.
				return blankOut(l.open) + l.body + blankOut(l.closeText)
			}
			return out
		})
		if remaining > 0 {
			line := 0
			if toks := scanTags(src, d.name); len(toks) > 0 {
				line = lineAt(src, toks[0].start)
			}
			fail(&CompileError{
				Tag:     tag,
				Line:    line,
				Msg:     fmt.Sprintf("could not resolve %d <%s> tag(s); check their nesting", remaining, d.name),
				Context: getContextLines(src, line, 2),
			})
		}
	}

	src = rewriteBindings(src)
	def.Template = strings.TrimSpace(src)

	if first != nil {
		return def, first
	}
	if err := validate(def, src); err != nil {
		return def, err
	}
	return def, nil
}

// validate parses every program of def once so syntax errors surface at
// compile time rather than on first render.
func validate(def *Definition, src string) error {
	if _, err := tmpl.Parse(def.Tag, src); err != nil {
		e := &CompileError{Tag: def.Tag, Msg: err.Error()}
		var te *tmpl.Error
		if errors.As(err, &te) {
			e.Line, e.Msg = te.Line, te.Msg
			e.Context = getContextLines(src, te.Line, 2)
		}
		return e
	}
	if def.Style != "" {
		if _, err := tmpl.Parse(def.Tag+" style", def.Style); err != nil {
			return &CompileError{Tag: def.Tag, Msg: "style: " + err.Error()}
		}
	}
	if _, err := script.Compile(def.Script); err != nil {
		return &CompileError{Tag: def.Tag, Msg: "script: " + err.Error()}
	}
	for _, h := range Hooks {
		body, ok := def.Hooks[h]
		if !ok {
			continue
		}
		if _, err := script.Compile(body); err != nil {
			return &CompileError{Tag: def.Tag, Msg: fmt.Sprintf("<script %s>: %v", h, err)}
		}
	}
	return nil
}
