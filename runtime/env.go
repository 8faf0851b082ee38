package runtime

import (
	"fmt"
	"strings"

	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/router"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/store"
)

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// builtins returns the scope shared by every instance environment.
func builtins() *script.Env {
	env := script.NewEnv(nil)
	fns := map[string]script.Func{
		"encode": func(args ...any) (any, error) {
			return store.Escape(script.Format(arg(args, 0))), nil
		},
		"decode": func(args ...any) (any, error) {
			return store.Unescape(script.Format(arg(args, 0))), nil
		},
		"matchRoute": func(args ...any) (any, error) {
			params, ok := router.Match(script.Format(arg(args, 1)), script.Format(arg(args, 0)))
			if !ok {
				return nil, nil
			}
			return params.Any(), nil
		},
		"len": func(args ...any) (any, error) {
			v := arg(args, 0)
			if items, ok := script.Items(v); ok {
				return float64(len(items)), nil
			}
			switch t := v.(type) {
			case *store.Map:
				return float64(t.Len()), nil
			case map[string]any:
				return float64(len(t)), nil
			}
			return script.Get(v, "length"), nil
		},
		"keys": func(args ...any) (any, error) {
			var keys []string
			switch t := arg(args, 0).(type) {
			case *store.Map:
				keys = t.Keys()
			case map[string]any:
				for k := range t {
					keys = append(keys, k)
				}
			}
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		},
		"join": func(args ...any) (any, error) {
			items, ok := script.Items(arg(args, 0))
			if !ok {
				return "", nil
			}
			sep := ","
			if len(args) > 1 {
				sep = script.Format(args[1])
			}
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = script.Format(it)
			}
			return strings.Join(parts, sep), nil
		},
		"str": func(args ...any) (any, error) {
			return script.Format(arg(args, 0)), nil
		},
		"num": func(args ...any) (any, error) {
			return script.ToNumber(arg(args, 0)), nil
		},
		"upper": func(args ...any) (any, error) {
			return strings.ToUpper(script.Format(arg(args, 0))), nil
		},
		"lower": func(args ...any) (any, error) {
			return strings.ToLower(script.Format(arg(args, 0))), nil
		},
		"trim": func(args ...any) (any, error) {
			return strings.TrimSpace(script.Format(arg(args, 0))), nil
		},
		"includes": func(args ...any) (any, error) {
			hay, needle := arg(args, 0), arg(args, 1)
			if items, ok := script.Items(hay); ok {
				for _, it := range items {
					if script.StrictEqual(it, needle) {
						return true, nil
					}
				}
				return false, nil
			}
			return strings.Contains(script.Format(hay), script.Format(needle)), nil
		},
	}
	for name, fn := range fns {
		env.Define(name, fn)
	}
	env.Define("console", map[string]any{
		"log":   consoleFunc(console.Log),
		"warn":  consoleFunc(console.Warn),
		"error": consoleFunc(console.Error),
	})
	return env
}

// consoleFunc adapts a console writer to script: arguments are formatted
// the way templates print them and joined with spaces.
func consoleFunc(write func(args ...any)) script.Func {
	return func(args ...any) (any, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = script.Format(a)
		}
		write(strings.Join(parts, " "))
		return nil, nil
	}
}

// newEnv builds the environment an instance's code runs in.
func (rt *Runtime) newEnv(inst *Instance) *script.Env {
	env := script.NewEnv(rt.builtins)
	env.Define("this", inst.State)
	env.Define("global", rt.global)
	env.Define("route", rt.route)
	env.Define("parent", nil)
	env.Define("el", map[string]any{})

	env.Define("emit", script.Func(func(args ...any) (any, error) {
		name := script.Format(arg(args, 0))
		if name == "" {
			return nil, fmt.Errorf("emit: event name is required")
		}
		rt.hub.Publish(eventTopic(name), arg(args, 1))
		return nil, nil
	}))
	env.Define("receive", script.Func(func(args ...any) (any, error) {
		name, key := script.Format(arg(args, 0)), script.Format(arg(args, 1))
		if name == "" || key == "" {
			return nil, fmt.Errorf("receive: event name and key are required")
		}
		inst.receive(name, key)
		return nil, nil
	}))
	env.Define("navigate", script.Func(func(args ...any) (any, error) {
		return nil, rt.Navigate(script.Format(arg(args, 0)))
	}))

	rt.mu.Lock()
	for _, name := range inst.module.Imports {
		v, ok := rt.imports[name]
		if !ok {
			console.L().Warn().Str("tag", inst.Tag).Str("import", name).Msg("import is not registered")
		}
		env.Define(name, v)
	}
	rt.mu.Unlock()
	return env
}

// refresh rebinds the values that are snapshots rather than live stores:
// the parent's state and the host attributes. Attribute values are escaped
// the way store writes are.
func (rt *Runtime) refresh(inst *Instance, env *script.Env) {
	var parent any
	if p, ok := rt.Instance(inst.ParentID); ok {
		parent = p.State.Raw()
	}
	env.Assign("parent", parent)

	el := make(map[string]any, len(inst.Host.Attr))
	for _, a := range inst.Host.Attr {
		el[a.Key] = store.Escape(a.Val)
	}
	env.Assign("el", el)
}

func eventTopic(name string) string { return "event:" + name }
