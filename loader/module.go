package loader

import (
	"strings"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/tmpl"
)

// Module is the executable form of a definition.
type Module struct {
	Tag      string
	Template *tmpl.Program
	// Style is nil when the component declares no style.
	Style    *tmpl.Program
	Script   *script.Program
	Hooks    map[compiler.Hook]*script.Program
	Imports  []string
	Observed []string
	Flags    compiler.Flags
}

// Invocation identifies the instance a module runs for.
type Invocation struct {
	InstanceID string
	ParentID   string
}

// Bind returns the entry points of m for one instance. The instance's
// identifiers are visible to its code as $id and $parent.
func (m *Module) Bind(inv Invocation, env *script.Env) *Bound {
	scope := script.NewEnv(env)
	scope.Define("$id", inv.InstanceID)
	scope.Define("$parent", inv.ParentID)
	return &Bound{Module: m, Invocation: inv, env: scope}
}

// Bound is a module bound to one instance's environment.
type Bound struct {
	*Module
	Invocation Invocation
	env        *script.Env
}

// Env returns the environment the instance's code runs in.
func (b *Bound) Env() *script.Env { return b.env }

// Construct runs the constructor script.
func (b *Bound) Construct() error {
	_, err := b.Script.Run(b.env)
	return err
}

// HasHook reports whether the component declares hook.
func (b *Bound) HasHook(hook compiler.Hook) bool {
	return !b.Hooks[hook].Empty()
}

// RunHook runs the script for hook. A missing hook is a no-op.
func (b *Bound) RunHook(hook compiler.Hook) error {
	p := b.Hooks[hook]
	if p.Empty() {
		return nil
	}
	_, err := p.Run(b.env)
	return err
}

// RenderTemplate executes the template in a fresh scope.
func (b *Bound) RenderTemplate() (tmpl.Output, error) {
	return b.Template.Execute(script.NewEnv(b.env))
}

// RenderStyle executes the style template and returns the CSS text, or ""
// when the component has no style.
func (b *Bound) RenderStyle() (string, error) {
	if b.Style == nil {
		return "", nil
	}
	out, err := b.Style.Execute(script.NewEnv(b.env))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.HTML), nil
}

// Compile compiles an event handler or bind expression against the
// instance's environment. Each call of the result runs in a fresh scope
// holding vars.
func (b *Bound) Compile(src string) (func(vars map[string]any) (any, error), error) {
	p, err := script.Compile(src)
	if err != nil {
		return nil, err
	}
	return func(vars map[string]any) (any, error) {
		scope := script.NewEnv(b.env)
		for name, v := range vars {
			scope.Define(name, v)
		}
		return p.Run(scope)
	}, nil
}
