package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/vcrobe/cove/runtime"
	"github.com/vcrobe/cove/vdom"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setup(t *testing.T, d *Discoverer, markup string) (*runtime.Runtime, *html.Node) {
	t.Helper()
	rt := runtime.New(runtime.Options{Discoverer: d})
	t.Cleanup(rt.Close)
	doc, err := vdom.ParseFragment(markup)
	require.NoError(t, err)
	return rt, doc
}

func settle(t *testing.T, rt *runtime.Runtime) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Settle(ctx))
}

func instanceOf(t *testing.T, rt *runtime.Runtime, doc *html.Node, tag string) *runtime.Instance {
	t.Helper()
	for _, el := range vdom.Elements(doc) {
		if el.Data == tag {
			inst, ok := rt.InstanceAt(el)
			require.True(t, ok, "no instance on <%s>", tag)
			return inst
		}
	}
	t.Fatalf("no <%s> element", tag)
	return nil
}

func TestDiscover_InlineTemplate(t *testing.T) {
	d := New("", nil)
	rt, doc := setup(t, d, `<template id="greet-card"><p>hi ${this.name}</p></template>
<greet-card cove="#greet-card" name="ada" class="x"></greet-card>`)

	require.NoError(t, rt.Discover(context.Background(), doc))
	settle(t, rt)

	inst := instanceOf(t, rt, doc, "greet-card")
	assert.Equal(t, "<p>hi ada</p>", inst.HTML())
	def, ok := rt.Registry().Lookup("greet-card")
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, def.Observed)
}

func TestDiscover_DirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cards/user-card.cove.html", `<b>${this.user}</b>`)
	writeFile(t, dir, "parts/thing.cove.html", `<i>thing</i>`)
	rt, doc := setup(t, New(dir, nil), `<user-card cove user="bob"></user-card><x-thing cove="parts/thing.cove.html"></x-thing>`)

	require.NoError(t, rt.Discover(context.Background(), doc))
	settle(t, rt)

	assert.Equal(t, "<b>bob</b>", instanceOf(t, rt, doc, "user-card").HTML())
	assert.Equal(t, "<i>thing</i>", instanceOf(t, rt, doc, "x-thing").HTML())
}

func TestDiscover_NestedPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "todo-list.cove.html", `<ul><for array="this.items" params="item"><todo-item cove label="${item}"></todo-item></for></ul>
<script>this.items = ["milk", "eggs"]</script>`)
	writeFile(t, dir, "todo-item.cove.html", `<li>${this.label}</li>`)
	rt, doc := setup(t, New(dir, nil), `<todo-list cove></todo-list>`)

	require.NoError(t, rt.Discover(context.Background(), doc))
	settle(t, rt)

	list := instanceOf(t, rt, doc, "todo-list")
	items := rt.Children(list.ID)
	require.Len(t, items, 2)
	var got []string
	for _, item := range items {
		assert.Equal(t, list.ID, item.ParentID)
		got = append(got, item.HTML())
	}
	assert.ElementsMatch(t, []string{"<li>milk</li>", "<li>eggs</li>"}, got)
	assert.Empty(t, rt.Unresolved(list.Root))
}

func TestDiscover_MissingMarkup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok-card.cove.html", `<p>ok</p>`)
	rt, doc := setup(t, New(dir, nil), `<ok-card cove></ok-card><gone-card cove></gone-card><ref-card cove="#nope"></ref-card>`)

	err := rt.Discover(context.Background(), doc)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, runtime.ErrUnresolved)
	settle(t, rt)

	assert.Equal(t, "<p>ok</p>", instanceOf(t, rt, doc, "ok-card").HTML())
	assert.Len(t, rt.Unresolved(doc), 2)
}

func TestDiscover_RefreshRescans(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, nil)
	_, err := d.lookup("late-card")
	assert.ErrorIs(t, err, ErrNotFound)

	writeFile(t, dir, "late-card.cove.html", `<p>late</p>`)
	_, err = d.lookup("late-card")
	assert.ErrorIs(t, err, ErrNotFound)

	d.Refresh()
	path, err := d.lookup("late-card")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "late-card.cove.html"), path)
}

func TestPreload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-card.cove.html", `<p>a</p>`)
	writeFile(t, dir, "b-card.cove.html", `<p>b</p>`)
	writeFile(t, dir, "bad-card.cove.html", `<if when="x"><p>never closed</p>`)
	rt := runtime.New(runtime.Options{})
	t.Cleanup(rt.Close)

	n, err := New(dir, nil).Preload(rt)
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a-card", "b-card"}, rt.Registry().Tags())
}

func TestObserved(t *testing.T) {
	doc, err := vdom.ParseFragment(`<x-card cove="#x" id="a" class="b" :click="go()" title="t" size="2"></x-card>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "size"}, observed(vdom.Elements(doc)[0], "cove"))
}
