package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/store"
)

func definition(t *testing.T, tag, markup string) *compiler.Definition {
	t.Helper()
	def, err := compiler.Compile(tag, markup, nil)
	require.NoError(t, err)
	return def
}

func TestLoad_BuildsOncePerTag(t *testing.T) {
	var builds atomic.Int32
	l := New(Options{OnBuild: func(string, error) { builds.Add(1) }})
	def := definition(t, "x-count", `<p>${this.n}</p>`)

	var wg sync.WaitGroup
	mods := make([]*Module, 16)
	for i := range mods {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := l.Load(context.Background(), def)
			assert.NoError(t, err)
			mods[i] = m
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, m := range mods {
		assert.Same(t, mods[0], m)
	}
	assert.Equal(t, 1, l.Len())

	l.Reset()
	_, ok := l.Cached("x-count")
	assert.False(t, ok)
}

func TestLoad_PolicyRejection(t *testing.T) {
	l := New(Options{Policy: PolicyFunc(func(def *compiler.Definition) error {
		return errors.New("script-src does not allow blob:")
	})})

	_, err := l.Load(context.Background(), definition(t, "x-blocked", `<p>hi</p>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicy)
	assert.Contains(t, err.Error(), "blob:")
	assert.Zero(t, l.Len())
}

func TestLoad_BuildErrorIsNotPolicy(t *testing.T) {
	l := New(Options{})
	def := &compiler.Definition{Tag: "x-bad", Template: "{{if a}}"}

	_, err := l.Load(context.Background(), def)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPolicy)

	// Errors are not cached.
	def.Template = "ok"
	_, err = l.Load(context.Background(), def)
	assert.NoError(t, err)
}

func TestLoad_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	l := New(Options{Policy: PolicyFunc(func(*compiler.Definition) error {
		<-release
		return nil
	})})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := l.Load(ctx, &compiler.Definition{Tag: "x-slow", Template: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestBound_InstancesShareModule runs one module for two instances and
// checks that each sees only its own state and identifiers.
func TestBound_InstancesShareModule(t *testing.T) {
	l := New(Options{})
	m, err := l.Load(context.Background(), definition(t, "x-greet", `
<style>p { color: ${this.color}; }</style>
<p>${$id}: ${this.greeting}</p>
<script>this.greeting = "hi " + el.name</script>
<script update>this.updates = (this.updates ?? 0) + 1</script>`))
	require.NoError(t, err)

	render := func(id, name string) (string, string, *store.Map) {
		state := store.NewMap(map[string]any{"color": "red"}, nil)
		env := script.NewEnv(nil)
		env.Define("this", state)
		env.Define("el", map[string]any{"name": name})
		b := m.Bind(Invocation{InstanceID: id}, env)
		require.NoError(t, b.Construct())
		require.NoError(t, b.RunHook(compiler.HookUpdate))
		require.NoError(t, b.RunHook(compiler.HookMount))
		out, err := b.RenderTemplate()
		require.NoError(t, err)
		css, err := b.RenderStyle()
		require.NoError(t, err)
		return out.HTML, css, state
	}

	a, css, stA := render("a1", "ada")
	b, _, _ := render("b2", "bob")
	assert.Equal(t, "<p>a1: hi ada</p>", a)
	assert.Equal(t, "<p>b2: hi bob</p>", b)
	assert.Equal(t, "p { color: red; }", css)
	assert.Equal(t, float64(1), stA.Get("updates"))
	assert.True(t, m.Bind(Invocation{}, nil).HasHook(compiler.HookUpdate))
	assert.False(t, m.Bind(Invocation{}, nil).HasHook(compiler.HookMount))
}

// TestBound_Compile runs a handler in a scope holding per-call variables
// while writes still reach the instance state.
func TestBound_Compile(t *testing.T) {
	l := New(Options{})
	m, err := l.Load(context.Background(), definition(t, "x-click", `<p>${this.last}</p>`))
	require.NoError(t, err)

	state := store.NewMap(nil, nil)
	env := script.NewEnv(nil)
	env.Define("this", state)
	b := m.Bind(Invocation{InstanceID: "c1"}, env)

	run, err := b.Compile(`this.last = e.type + " " + $id`)
	require.NoError(t, err)
	_, err = run(map[string]any{"e": map[string]any{"type": "click"}})
	require.NoError(t, err)
	assert.Equal(t, "click c1", state.Get("last"))

	_, err = b.Compile("this.last = ")
	assert.Error(t, err)
}
