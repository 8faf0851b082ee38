package script

import (
	"errors"
	"math"
	"strings"

	"github.com/vcrobe/cove/store"
)

func execStmts(stmts []node, env *Env) (last any, returned bool, err error) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *exprStmt:
			if last, err = eval(s.x, env); err != nil {
				return nil, false, err
			}
		case *letStmt:
			var v any
			if s.init != nil {
				if v, err = eval(s.init, env); err != nil {
					return nil, false, err
				}
			}
			env.Define(s.name, v)
			last = nil
		case *ifStmt:
			c, err := eval(s.cond, env)
			if err != nil {
				return nil, false, err
			}
			branch := s.els
			if Truthy(c) {
				branch = s.then
			}
			if last, returned, err = execStmts(branch, NewEnv(env)); err != nil || returned {
				return last, returned, err
			}
		case *blockStmt:
			if last, returned, err = execStmts(s.stmts, NewEnv(env)); err != nil || returned {
				return last, returned, err
			}
		case *returnStmt:
			if s.x == nil {
				return nil, true, nil
			}
			v, err := eval(s.x, env)
			return v, true, err
		}
	}
	return last, false, nil
}

func eval(n node, env *Env) (any, error) {
	switch n := n.(type) {
	case *literal:
		return n.value, nil
	case *ident:
		v, _ := env.Lookup(n.name)
		return v, nil
	case *member:
		obj, err := eval(n.obj, env)
		if err != nil {
			return nil, err
		}
		return Get(obj, n.name), nil
	case *index:
		obj, err := eval(n.obj, env)
		if err != nil {
			return nil, err
		}
		key, err := eval(n.key, env)
		if err != nil {
			return nil, err
		}
		return getIndex(obj, key), nil
	case *call:
		return evalCall(n, env)
	case *unary:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			return !Truthy(x), nil
		case "-":
			return -ToNumber(x), nil
		case "+":
			return ToNumber(x), nil
		case "typeof":
			return typeOf(x), nil
		}
	case *binary:
		return evalBinary(n, env)
	case *conditional:
		test, err := eval(n.test, env)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return eval(n.then, env)
		}
		return eval(n.els, env)
	case *arrayLit:
		items := make([]any, len(n.elems))
		for i, e := range n.elems {
			v, err := eval(e, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return store.WrapList(items, nil), nil
	case *objectLit:
		data := make(map[string]any, len(n.keys))
		for i, k := range n.keys {
			v, err := eval(n.values[i], env)
			if err != nil {
				return nil, err
			}
			data[k] = v
		}
		return store.WrapMap(data, nil), nil
	case *templateLit:
		var sb strings.Builder
		for _, part := range n.parts {
			v, err := eval(part, env)
			if err != nil {
				return nil, err
			}
			sb.WriteString(Format(v))
		}
		return sb.String(), nil
	case *assign:
		v, err := eval(n.value, env)
		if err != nil {
			return nil, err
		}
		if n.op != "=" {
			cur, err := eval(n.target, env)
			if err != nil {
				return nil, err
			}
			if v, err = arith(n.op[:1], cur, v, n.pos); err != nil {
				return nil, err
			}
		}
		return v, setTarget(n.target, v, env)
	case *update:
		cur, err := eval(n.target, env)
		if err != nil {
			return nil, err
		}
		old := ToNumber(cur)
		nv := old + 1
		if n.op == "--" {
			nv = old - 1
		}
		if err := setTarget(n.target, nv, env); err != nil {
			return nil, err
		}
		if n.prefix {
			return nv, nil
		}
		return old, nil
	}
	return nil, newError(n.position(), "cannot evaluate %T", n)
}

func evalBinary(n *binary, env *Env) (any, error) {
	l, err := eval(n.l, env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "&&":
		if !Truthy(l) {
			return l, nil
		}
		return eval(n.r, env)
	case "||":
		if Truthy(l) {
			return l, nil
		}
		return eval(n.r, env)
	case "??":
		if l != nil {
			return l, nil
		}
		return eval(n.r, env)
	}
	r, err := eval(n.r, env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "==":
		return LooseEqual(l, r), nil
	case "!=":
		return !LooseEqual(l, r), nil
	case "===":
		return StrictEqual(l, r), nil
	case "!==":
		return !StrictEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r), nil
	}
	return arith(n.op, l, r, n.pos)
}

func arith(op string, l, r any, pos int) (any, error) {
	if op == "+" {
		if isTextual(l) || isTextual(r) {
			return Format(l) + Format(r), nil
		}
		return ToNumber(l) + ToNumber(r), nil
	}
	a, b := ToNumber(l), ToNumber(r)
	switch op {
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		return a / b, nil
	case "%":
		return math.Mod(a, b), nil
	}
	return nil, newError(pos, "unknown operator %s", op)
}

func isTextual(v any) bool {
	switch v.(type) {
	case string, *store.List, *store.Map, []any, map[string]any:
		return true
	}
	return false
}

func compare(op string, l, r any) bool {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			switch op {
			case "<":
				return ls < rs
			case "<=":
				return ls <= rs
			case ">":
				return ls > rs
			default:
				return ls >= rs
			}
		}
	}
	a, b := ToNumber(l), ToNumber(r)
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

func evalCall(c *call, env *Env) (any, error) {
	args := make([]any, len(c.args))
	if m, ok := c.fn.(*member); ok {
		obj, err := eval(m.obj, env)
		if err != nil {
			return nil, err
		}
		for i, a := range c.args {
			if args[i], err = eval(a, env); err != nil {
				return nil, err
			}
		}
		if f, ok := asFunc(Get(obj, m.name)); ok {
			return invoke(f, args, c.pos)
		}
		v, err := callMethod(obj, m.name, args)
		if err != nil {
			return nil, wrapCallError(err, c.pos)
		}
		return v, nil
	}

	fn, err := eval(c.fn, env)
	if err != nil {
		return nil, err
	}
	for i, a := range c.args {
		if args[i], err = eval(a, env); err != nil {
			return nil, err
		}
	}
	f, ok := asFunc(fn)
	if !ok {
		name := "value"
		if id, ok := c.fn.(*ident); ok {
			name = id.name
		}
		return nil, newError(c.pos, "%s is not a function", name)
	}
	return invoke(f, args, c.pos)
}

func asFunc(v any) (Func, bool) {
	switch f := v.(type) {
	case Func:
		return f, f != nil
	case func(...any) (any, error):
		return f, f != nil
	case func(...any) any:
		if f == nil {
			return nil, false
		}
		return func(args ...any) (any, error) { return f(args...), nil }, true
	}
	return nil, false
}

func invoke(f Func, args []any, pos int) (any, error) {
	v, err := f(args...)
	if err != nil {
		return nil, wrapCallError(err, pos)
	}
	return v, nil
}

func wrapCallError(err error, pos int) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Pos: pos, Msg: err.Error(), Err: err}
}

func setTarget(target node, v any, env *Env) error {
	switch t := target.(type) {
	case *ident:
		if !env.Assign(t.name, v) {
			return newError(t.pos, "assignment to undeclared variable %q", t.name)
		}
		return nil
	case *member:
		obj, err := eval(t.obj, env)
		if err != nil {
			return err
		}
		return setMember(obj, t.name, v, t.pos)
	case *index:
		obj, err := eval(t.obj, env)
		if err != nil {
			return err
		}
		key, err := eval(t.key, env)
		if err != nil {
			return err
		}
		if i, ok := toIndex(key); ok {
			switch o := obj.(type) {
			case *store.List:
				if err := o.Set(i, v); err != nil {
					return newError(t.pos, "%v", err)
				}
				return nil
			case []any:
				if i < len(o) {
					o[i] = v
					return nil
				}
				return newError(t.pos, "index %d out of range", i)
			}
		}
		return setMember(obj, Format(key), v, t.pos)
	}
	return newError(target.position(), "invalid assignment target")
}

func setMember(obj any, name string, v any, pos int) error {
	switch o := obj.(type) {
	case *store.Map:
		o.Set(name, v)
		return nil
	case map[string]any:
		o[name] = v
		return nil
	case nil:
		return newError(pos, "cannot set property %q of undefined", name)
	}
	return newError(pos, "cannot set property %q of %s", name, typeOf(obj))
}
