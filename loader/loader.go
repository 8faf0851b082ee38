// Package loader turns compiled definitions into executable modules.
//
// A Module is built at most once per tag. Concurrent loads of the same tag
// share one build, and the finished module is immutable, so one module
// serves every instance of its tag. Instances reach the module through a
// Bound value carrying their own identifiers; a module never consults
// process-wide state to find out who is calling it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/tmpl"
)

// ErrPolicy marks a load refused by the Policy. Instances whose load fails
// with ErrPolicy degrade instead of rendering.
var ErrPolicy = errors.New("loader: blocked by policy")

// Policy decides whether a definition may be turned into executable code.
type Policy interface {
	Allow(def *compiler.Definition) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(def *compiler.Definition) error

func (f PolicyFunc) Allow(def *compiler.Definition) error { return f(def) }

// Options configures a Loader.
type Options struct {
	Policy Policy
	// MaxIterations bounds header loops in templates. Zero keeps the
	// template default.
	MaxIterations int
	// OnBuild is called after every build attempt.
	OnBuild func(tag string, err error)
}

// Loader caches modules by tag. It is safe for concurrent use.
type Loader struct {
	opts Options

	mu      sync.Mutex
	modules map[string]*Module
	flight  singleflight.Group
}

// New returns an empty Loader.
func New(opts Options) *Loader {
	return &Loader{opts: opts, modules: make(map[string]*Module)}
}

// Load returns the module for def.Tag, building it on first use. A build
// error is returned to every caller waiting on that build and is not
// cached; the next Load tries again.
func (l *Loader) Load(ctx context.Context, def *compiler.Definition) (*Module, error) {
	if m, ok := l.Cached(def.Tag); ok {
		return m, nil
	}

	ch := l.flight.DoChan(def.Tag, func() (any, error) {
		if m, ok := l.Cached(def.Tag); ok {
			return m, nil
		}
		m, err := l.build(def)
		if l.opts.OnBuild != nil {
			l.opts.OnBuild(def.Tag, err)
		}
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.modules[def.Tag] = m
		l.mu.Unlock()
		console.L().Debug().Str("tag", def.Tag).Msg("loader: module built")
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Module), nil
	}
}

// Cached returns the module for tag if it has been built.
func (l *Loader) Cached(tag string) (*Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[tag]
	return m, ok
}

// Len returns the number of cached modules.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.modules)
}

// Reset drops every cached module.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.modules = make(map[string]*Module)
	l.mu.Unlock()
}

func (l *Loader) build(def *compiler.Definition) (*Module, error) {
	if l.opts.Policy != nil {
		if err := l.opts.Policy.Allow(def); err != nil {
			if errors.Is(err, ErrPolicy) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: <%s>: %w", ErrPolicy, def.Tag, err)
		}
	}

	m := &Module{
		Tag:      def.Tag,
		Imports:  def.Imports,
		Observed: def.Observed,
		Flags:    def.Flags,
		Hooks:    make(map[compiler.Hook]*script.Program, len(def.Hooks)),
	}

	var err error
	if m.Template, err = tmpl.Parse(def.Tag, def.Template); err != nil {
		return nil, fmt.Errorf("loader: <%s> template: %w", def.Tag, err)
	}
	if def.Style != "" {
		if m.Style, err = tmpl.Parse(def.Tag+" style", def.Style); err != nil {
			return nil, fmt.Errorf("loader: <%s> style: %w", def.Tag, err)
		}
	}
	if l.opts.MaxIterations > 0 {
		m.Template = m.Template.WithMaxIterations(l.opts.MaxIterations)
		if m.Style != nil {
			m.Style = m.Style.WithMaxIterations(l.opts.MaxIterations)
		}
	}
	if m.Script, err = script.Compile(def.Script); err != nil {
		return nil, fmt.Errorf("loader: <%s> script: %w", def.Tag, err)
	}
	for hook, src := range def.Hooks {
		p, err := script.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("loader: <%s> <script %s>: %w", def.Tag, hook, err)
		}
		m.Hooks[hook] = p
	}
	return m, nil
}
