package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	reStyle    = regexp.MustCompile(`(?is)<style\b[^>]*>(.*?)</style\s*>`)
	reNoscript = regexp.MustCompile(`(?i)</?noscript\b[^>]*>`)
	reScript   = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
	reImport   = regexp.MustCompile(`\bimport\s+([A-Za-z_$][\w$]*)`)
)

// scriptBlocks is what preprocessScripts pulls out of the markup.
type scriptBlocks struct {
	constructor []string
	hooks       map[Hook]string
	imports     []string
}

// preprocess strips comments, extracts the first <style> block, drops
// <dsd> blocks and unwraps <noscript>. Removed blocks are replaced by their
// newlines so line numbers stay stable.
func preprocess(src string) (out, style string) {
	out = reComment.ReplaceAllStringFunc(src, blankOut)

	if loc := reStyle.FindStringSubmatchIndex(out); loc != nil {
		style = strings.TrimSpace(out[loc[2]:loc[3]])
		out = out[:loc[0]] + blankOut(out[loc[0]:loc[1]]) + out[loc[1]:]
	}

	out, _ = rewriteLeaves(out, "dsd", func(l leaf) string {
		return blankOut(l.open + l.body + l.closeText)
	})

	out = reNoscript.ReplaceAllString(out, "")
	return out, style
}

// preprocessScripts removes lifecycle and constructor scripts from the
// markup. The first attribute of a script selects its role; scripts with
// any other first attribute are left in place.
func preprocessScripts(src string) (string, scriptBlocks) {
	blocks := scriptBlocks{hooks: make(map[Hook]string)}
	out := reScript.ReplaceAllStringFunc(src, func(m string) string {
		sub := reScript.FindStringSubmatch(m)
		attrs := parseAttrs("<script" + sub[1] + ">")
		body := strings.TrimSpace(sub[2])
		if len(attrs) == 0 {
			blocks.constructor = append(blocks.constructor, body)
			return blankOut(m)
		}
		switch marker := strings.ToLower(attrs[0].name); {
		case marker == "imports":
			blocks.imports = append(blocks.imports, parseImports(body)...)
		case marker == string(HookUpdate), marker == string(HookRender), marker == string(HookProps),
			marker == string(HookSlotChange):
			blocks.hooks[Hook(marker)] = joinScript(blocks.hooks[Hook(marker)], body)
		case strings.Contains(marker, "mount"):
			blocks.hooks[HookMount] = joinScript(blocks.hooks[HookMount], body)
		default:
			return m
		}
		return blankOut(m)
	})
	return out, blocks
}

func joinScript(prev, next string) string {
	if prev == "" {
		return next
	}
	return prev + "\n" + next
}

// parseImports accepts either "import name from '...'" lines or a plain
// list of names separated by commas or whitespace.
func parseImports(body string) []string {
	if m := reImport.FindAllStringSubmatch(body, -1); m != nil {
		names := make([]string, len(m))
		for i, sub := range m {
			names[i] = sub[1]
		}
		return names
	}
	return strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}

// validateBalance counts open and close tags of every control kind and
// reports the first kind whose counts differ, listing the lines of each.
func validateBalance(tag, src string) *CompileError {
	for _, name := range controlTags {
		toks := scanTags(src, name)
		var opens, closes []int
		for _, t := range toks {
			switch {
			case t.selfClose:
			case t.close:
				closes = append(closes, lineAt(src, t.start))
			default:
				opens = append(opens, lineAt(src, t.start))
			}
		}
		if len(opens) == len(closes) {
			continue
		}
		line := 0
		var msg string
		if len(opens) > len(closes) {
			line = opens[len(opens)-1]
			msg = fmt.Sprintf("found %d <%s> tag(s) but only %d </%s> tag(s).\n"+
				"  <%s> found at line(s): %v\n"+
				"  </%s> found at line(s): %v\n"+
				"  Missing %d </%s> tag(s).",
				len(opens), name, len(closes), name, name, opens, name, closes, len(opens)-len(closes), name)
		} else {
			line = closes[len(closes)-1]
			msg = fmt.Sprintf("found %d </%s> tag(s) but only %d <%s> tag(s).\n"+
				"  <%s> found at line(s): %v\n"+
				"  </%s> found at line(s): %v\n"+
				"  Extra %d </%s> tag(s) without matching <%s>.",
				len(closes), name, len(opens), name, name, opens, name, closes, len(closes)-len(opens), name, name)
		}
		return &CompileError{Tag: tag, Line: line, Msg: msg, Context: getContextLines(src, line, 2)}
	}
	return nil
}
