package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/store"
	"github.com/vcrobe/cove/tmpl"
)

// TestCompile_Golden compiles every testdata/*.txtar input and compares the
// result with the archive's expected sections.
func TestCompile_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)

			sections := make(map[string]string)
			for _, f := range ar.Files {
				sections[f.Name] = strings.TrimSpace(string(f.Data))
			}

			def, err := Compile("golden-test", sections["input.html"], nil)
			require.NoError(t, err)

			if diff := cmp.Diff(sections["template"], def.Template); diff != "" {
				t.Errorf("template mismatch (-want +got):\n%s", diff)
			}
			if want, ok := sections["style"]; ok {
				assert.Equal(t, want, def.Style)
			}
			if want, ok := sections["script"]; ok {
				assert.Equal(t, want, def.Script)
			}
			if want, ok := sections["mount"]; ok {
				assert.Equal(t, want, def.Hooks[HookMount])
			}
		})
	}
}

func execute(t *testing.T, def *Definition, state map[string]any) string {
	t.Helper()
	p, err := tmpl.Parse(def.Tag, def.Template)
	require.NoError(t, err)
	env := script.NewEnv(nil)
	env.Define("this", store.NewMap(state, nil))
	out, err := p.Execute(env)
	require.NoError(t, err)
	return out.HTML
}

// TestCompile_IfElseRendersOneBranch renders a conditional with a sibling
// else branch under both predicate values.
func TestCompile_IfElseRendersOneBranch(t *testing.T) {
	def, err := Compile("x-cond", `<if when="this.ok">yes</if><else>no</else>`, nil)
	require.NoError(t, err)

	assert.Equal(t, "yes", execute(t, def, map[string]any{"ok": true}))
	assert.Equal(t, "no", execute(t, def, map[string]any{"ok": false}))
}

// TestCompile_SelfNesting checks that N nested tags of one kind compile to N
// balanced scopes.
func TestCompile_SelfNesting(t *testing.T) {
	kinds := []struct {
		name        string
		open, close string
		marker      string
		perLevel    int
	}{
		{"if", `<if when="this.ok">`, "</if>", "{{end}}", 1},
		{"map", `<map array="this.xs">`, "</map>", "{{end}}", 1},
		{"for", `<for array="this.xs" params="x">`, "</for>", "{{end}}", 1},
		{"switch", `<switch value="this.v"><case value="1">`, "</case></switch>", "{{end}}", 2},
		{"inner-html", `<inner-html>`, "</inner-html>", "{{end}}", 1},
		{"route-match", `<route-match path="/a/:id">`, "</route-match>", "{{end}}", 1},
		{"route-link", `<route-link href="/a">`, "</route-link>", "</a>", 1},
		{"show", `<show when="this.ok">`, "</show>", "</div>", 1},
	}
	for _, k := range kinds {
		for depth := 1; depth <= 4; depth++ {
			t.Run(fmt.Sprintf("%s/%d", k.name, depth), func(t *testing.T) {
				src := strings.Repeat(k.open, depth) + "x" + strings.Repeat(k.close, depth)

				def, err := Compile("x-nest", src, nil)
				require.NoError(t, err)
				assert.NotContains(t, def.Template, "<"+k.name)
				assert.Equal(t, depth*k.perLevel, strings.Count(def.Template, k.marker))

				_, err = tmpl.Parse("x-nest", def.Template)
				require.NoError(t, err)
			})
		}
	}
}

// TestCompile_SwitchNestedInCase runs an inner switch inside a matching case.
func TestCompile_SwitchNestedInCase(t *testing.T) {
	src := `<switch value="this.a"><case value="1"><switch value="this.b"><case value="2">deep</case><default>shallow</default></switch></case></switch>`
	def, err := Compile("x-switch", src, nil)
	require.NoError(t, err)

	assert.Equal(t, "deep", execute(t, def, map[string]any{"a": 1.0, "b": 2.0}))
	assert.Equal(t, "shallow", execute(t, def, map[string]any{"a": 1.0, "b": 3.0}))
	assert.Equal(t, "", execute(t, def, map[string]any{"a": 2.0, "b": 2.0}))
}

// TestCompile_MapJoin expects exactly two separators for three items.
func TestCompile_MapJoin(t *testing.T) {
	def, err := Compile("x-join", `<map array="this.xs" params="x" join="-">${x}</map>`, nil)
	require.NoError(t, err)

	out := execute(t, def, map[string]any{"xs": []any{"a", "b", "c"}})
	assert.Equal(t, "a-b-c", out)
	assert.Equal(t, 2, strings.Count(out, "-"))
}

// TestCompile_MapJoinKeepsWhitespace passes the separator through verbatim.
func TestCompile_MapJoinKeepsWhitespace(t *testing.T) {
	for sep, want := range map[string]string{
		" ":   "a b c",
		", ":  "a, b, c",
		" | ": "a | b | c",
	} {
		def, err := Compile("x-join", `<map array="this.xs" params="x" join="`+sep+`">${x}</map>`, nil)
		require.NoError(t, err)
		assert.Equal(t, want, execute(t, def, map[string]any{"xs": []any{"a", "b", "c"}}), "join=%q", sep)
	}
}

// TestCompile_SwitchFallThrough runs the compiled switch for each value.
func TestCompile_SwitchFallThrough(t *testing.T) {
	src := `<switch value="this.v"><case value="1">one</case><case value="2"></case><case value="3">two or three</case><default>other</default></switch>`
	def, err := Compile("x-switch", src, nil)
	require.NoError(t, err)

	for v, want := range map[float64]string{1: "one", 2: "two or three", 3: "two or three", 9: "other"} {
		assert.Equal(t, want, execute(t, def, map[string]any{"v": v}), "v=%v", v)
	}
}

// TestCompile_Errors covers markup that cannot be compiled.
func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		markup   string
		wantLine int
		wantMsg  string
	}{
		{"html tag name", "button", "<p></p>", 0, "conflicts with HTML tag"},
		{"no hyphen", "widget", "<p></p>", 0, "invalid component name"},
		{"reserved name", "font-face", "<p></p>", 0, "reserved"},
		{"missing close", "x-err", "<p>\n<if when=\"a\">\nb\n</p>", 2, "Missing 1 </if>"},
		{"extra close", "x-err", "<p></p>\n</map>", 2, "Extra 1 </map>"},
		{"no leaf", "x-err", "</if>\n<if when=\"a\">", 1, "could not resolve 2 <if>"},
		{"map without array", "x-err", "<ul>\n<map>x</map>\n</ul>", 2, "requires an array"},
		{"if without condition", "x-err", "<if>x</if>", 1, "requires a condition"},
		{"bad expression", "x-err", "<p>${1 +}</p>", 1, ""},
		{"bad script", "x-err", "<script>let = 4</script>", 0, "script:"},
		{"bad hook", "x-err", "<script update>if (</script>", 0, "<script update>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.tag, tt.markup, nil)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want *CompileError, got %T", err)
			assert.Equal(t, tt.tag, ce.Tag)
			assert.Equal(t, tt.wantLine, ce.Line)
			assert.Contains(t, ce.Msg, tt.wantMsg)
		})
	}
}

// TestCompile_BestEffortOutput keeps compiling the rest of the markup when
// one control tag is malformed.
func TestCompile_BestEffortOutput(t *testing.T) {
	def, err := Compile("x-err", `<map>kept</map><if when="a">b</if>`, nil)
	require.Error(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "kept{{if a}}b{{end}}", def.Template)
}

// TestCompile_Flags checks feature detection from sentinels.
func TestCompile_Flags(t *testing.T) {
	src := `<p>${global.theme}</p>
<select bind="this.pick"><option>a</option></select>
<inner-html><b>x</b></inner-html>
<script>emit('ready', 1)</script>`
	def, err := Compile("x-flags", src, []string{"title"})
	require.NoError(t, err)

	want := Flags{UsesGlobal: true, HasInnerHTML: true, HasSelectBinding: true, HasCustomEvents: true}
	assert.Equal(t, want, def.Flags)
	assert.Equal(t, []string{"title"}, def.Observed)

	def, err = Compile("x-route", `<route-link href="/">home</route-link>`, nil)
	require.NoError(t, err)
	assert.Equal(t, Flags{UsesRoute: true}, def.Flags)
}

// TestCompile_Scripts sorts script blocks by their marker.
func TestCompile_Scripts(t *testing.T) {
	src := `<script>this.a = 1</script>
<script>this.b = 2</script>
<script update>this.u = 1</script>
<script render>this.r = 1</script>
<script props>this.p = 1</script>
<script slotchange>this.s = 1</script>
<script onmount>this.m = 1</script>
<script imports>
import fmtDate from './dates.js'
import clamp from './math.js'
</script>
<script type="module">window.x = 1</script>
<p>body</p>`
	def, err := Compile("x-scripts", src, nil)
	require.NoError(t, err)

	assert.Equal(t, "this.a = 1\nthis.b = 2", def.Script)
	assert.Equal(t, map[Hook]string{
		HookUpdate:     "this.u = 1",
		HookRender:     "this.r = 1",
		HookProps:      "this.p = 1",
		HookSlotChange: "this.s = 1",
		HookMount:      "this.m = 1",
	}, def.Hooks)
	assert.Equal(t, []string{"fmtDate", "clamp"}, def.Imports)
	assert.Contains(t, def.Template, `<script type="module">window.x = 1</script>`)
	assert.Contains(t, def.Template, "<p>body</p>")
}

// TestCompile_Preprocess strips comments and dsd blocks and unwraps noscript.
func TestCompile_Preprocess(t *testing.T) {
	src := "<!-- note -->\n<dsd><p>server copy</p></dsd>\n<noscript><p>${this.a}</p></noscript>"
	def, err := Compile("x-pre", src, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>${this.a}</p>", def.Template)
}

// TestCompile_Warnings suggests control tags for near misses.
func TestCompile_Warnings(t *testing.T) {
	def, err := Compile("x-warn", "<p>\n<els>x</els></p>", nil)
	require.NoError(t, err)
	require.Len(t, def.Warnings, 1)
	assert.Contains(t, def.Warnings[0], "line 2")
	assert.Contains(t, def.Warnings[0], "<else>")
}

// TestCompileDir discovers markup files by extension.
func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("todo-list.cove.html", `<ul><map array="this.items">${element}</map></ul>`)
	write("nested/todo-item.cove.html", `<li>${this.label}</li>`)
	write("broken-one.cove.html", `<if when="x">`)
	write("notes.txt", "ignored")

	defs, errs, err := CompileDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "todo-item", defs[0].Tag)
	assert.Equal(t, "todo-list", defs[1].Tag)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken-one")
}

// TestDiscoverDir_SkipsBadFiles keeps walking past files that cannot name a
// component.
func TestDiscoverDir_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a/user-card.cove.html", "<b>a</b>")
	write("b/user-card.cove.html", "<b>b</b>")
	write("parts/thing.cove.html", "<i>thing</i>")
	write("parts/button.cove.html", "<i>button</i>")
	write("z/zip-code.cove.html", "<i>zip</i>")

	sources, err := DiscoverDir(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "user-card", sources[0].Tag)
	assert.Equal(t, "<b>a</b>", sources[0].Markup)
	assert.Equal(t, "zip-code", sources[1].Tag)
}

// TestDiscoverDir_MissingRoot reports a root that cannot be walked.
func TestDiscoverDir_MissingRoot(t *testing.T) {
	_, err := DiscoverDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
