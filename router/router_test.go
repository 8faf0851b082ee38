package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcrobe/cove/store"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          Params
		ok            bool
	}{
		{"/", "/", Params{}, true},
		{"/", "", Params{}, true},
		{"/about", "/about/", Params{}, true},
		{"/about/", "/about", Params{}, true},
		{"/about", "/contact", nil, false},
		{"/users/:id", "/users/42", Params{"id": "42"}, true},
		{"/users/:id", "/users/42?tab=posts", Params{"id": "42"}, true},
		{"/users/:id", "/users", nil, false},
		{"/users/:id", "/users/42/posts", nil, false},
		{"/blog/{year}/:slug", "/blog/2024/hello", Params{"year": "2024", "slug": "hello"}, true},
		{"/files/*", "/files/a/b/c.txt", Params{"*": "a/b/c.txt"}, true},
		{"/files/*", "/files", Params{"*": ""}, true},
		{"/files/*", "/", nil, false},
		{"/*/edit", "/doc/edit", Params{}, true},
		{"/*/edit", "/doc/view", nil, false},
		{"*", "/anything/at/all", Params{"*": "anything/at/all"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			got, ok := Match(tc.pattern, tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "/", Clean(""))
	assert.Equal(t, "/a/b", Clean("a//b/"))
	assert.Equal(t, "/a", Clean("/a?x=1#top"))
}

func TestRouter_NavigateWritesRouteStore(t *testing.T) {
	writes := 0
	st := store.NewMap(nil, func() { writes++ })
	r := New(st, []Route{
		{Name: "home", Path: "/"},
		{Name: "user", Path: "/users/:id"},
	})

	require.NoError(t, r.Navigate("/users/7/?tab=posts"))
	assert.Equal(t, "/users/7", st.Get("path"))
	assert.Equal(t, "user", st.Get("name"))
	assert.Equal(t, map[string]any{"id": "7"}, st.Raw()["params"])
	assert.Equal(t, map[string]any{"tab": "posts"}, st.Raw()["query"])
	assert.Equal(t, "/users/7?tab=posts", r.Current())
	assert.Equal(t, 4, writes)

	// Same location again is ignored.
	require.NoError(t, r.Navigate("/users/7?tab=posts"))
	assert.Equal(t, 4, writes)
	assert.Equal(t, 1, r.Depth())
}

func TestRouter_Back(t *testing.T) {
	st := store.NewMap(nil, nil)
	r := New(st, nil)

	assert.ErrorIs(t, r.Back(), ErrNoHistory)
	require.NoError(t, r.Navigate("/a"))
	require.NoError(t, r.Navigate("/b?x=1"))
	assert.Equal(t, "/b", st.Get("path"))

	require.NoError(t, r.Back())
	assert.Equal(t, "/a", st.Get("path"))
	assert.Equal(t, map[string]any{}, st.Raw()["query"])
	assert.ErrorIs(t, r.Back(), ErrNoHistory)
}

func TestRouter_UnmatchedPathClearsName(t *testing.T) {
	st := store.NewMap(nil, nil)
	r := New(st, []Route{{Name: "home", Path: "/"}})

	require.NoError(t, r.Navigate("/"))
	assert.Equal(t, "home", st.Get("name"))
	require.NoError(t, r.Navigate("/nowhere"))
	assert.Equal(t, "", st.Get("name"))
	assert.Equal(t, map[string]any{}, st.Raw()["params"])
}
