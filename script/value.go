package script

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vcrobe/cove/store"
)

// Format renders v the way it appears in markup. nil renders as the empty
// string and integral numbers render without a fractional part.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case *store.List, []any:
		items, _ := Items(t)
		parts := make([]string, len(items))
		for i, e := range items {
			parts[i] = Format(e)
		}
		return strings.Join(parts, ",")
	case *store.Map, map[string]any:
		return "[object Object]"
	case Func:
		return "function"
	case error:
		return t.Error()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if isNumber(v) {
		n := ToNumber(v)
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		return true
	}
	return false
}

// ToNumber converts v to a float64. Strings that do not parse yield NaN.
func ToNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int16:
		return float64(t)
	case int8:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case uint32:
		return float64(t)
	case uint16:
		return float64(t)
	case uint8:
		return float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	}
	return math.NaN()
}

// LooseEqual is the == operator: numbers, strings and booleans compare by
// numeric value when their kinds differ.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	if scalar(a) && scalar(b) {
		return ToNumber(a) == ToNumber(b)
	}
	return identical(a, b)
}

// StrictEqual is the === operator.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch {
	case isNumber(a) && isNumber(b):
		return ToNumber(a) == ToNumber(b)
	case isNumber(a) || isNumber(b):
		return false
	}
	return identical(a, b)
}

func scalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	return isNumber(v)
}

func identical(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func typeOf(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case Func, func(...any) (any, error), func(...any) any:
		return "function"
	}
	if isNumber(v) {
		return "number"
	}
	return "object"
}

// Items returns the elements of a list value. Elements of a *store.List are
// returned wrapped so writes through them are observed.
func Items(v any) ([]any, bool) {
	switch t := v.(type) {
	case *store.List:
		out := make([]any, t.Len())
		for i := range out {
			out[i] = t.At(i)
		}
		return out, true
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Get reads a property of obj. Missing properties and nil objects yield nil.
func Get(obj any, name string) any {
	switch o := obj.(type) {
	case nil:
		return nil
	case *store.Map:
		return o.Get(name)
	case map[string]any:
		return o[name]
	case map[string]string:
		if s, ok := o[name]; ok {
			return s
		}
		return nil
	case *store.List:
		if name == "length" {
			return float64(o.Len())
		}
	case []any:
		if name == "length" {
			return float64(len(o))
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(o))
		}
	}
	return nil
}

func getIndex(obj, key any) any {
	if i, ok := toIndex(key); ok {
		switch o := obj.(type) {
		case *store.List:
			return o.At(i)
		case []any:
			if i < len(o) {
				return o[i]
			}
			return nil
		case string:
			r := []rune(o)
			if i < len(r) {
				return string(r[i])
			}
			return nil
		}
	}
	return Get(obj, Format(key))
}

func toIndex(key any) (int, bool) {
	if !isNumber(key) {
		return 0, false
	}
	f := ToNumber(key)
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, false
	}
	return int(f), true
}

func callMethod(obj any, name string, args []any) (any, error) {
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	if l, ok := obj.(*store.List); ok {
		switch name {
		case "push":
			return float64(l.Push(args...)), nil
		case "pop":
			return l.Pop(), nil
		}
	}
	if items, ok := Items(obj); ok {
		switch name {
		case "includes":
			return indexOf(items, arg(0)) >= 0, nil
		case "indexOf":
			return float64(indexOf(items, arg(0))), nil
		case "join":
			sep := ","
			if len(args) > 0 && args[0] != nil {
				sep = Format(args[0])
			}
			parts := make([]string, len(items))
			for i, e := range items {
				parts[i] = Format(e)
			}
			return strings.Join(parts, sep), nil
		case "toString":
			return Format(obj), nil
		}
		return nil, fmt.Errorf("%s is not a function", name)
	}
	if s, ok := obj.(string); ok {
		a := Format(arg(0))
		switch name {
		case "toUpperCase":
			return strings.ToUpper(s), nil
		case "toLowerCase":
			return strings.ToLower(s), nil
		case "trim":
			return strings.TrimSpace(s), nil
		case "includes":
			return strings.Contains(s, a), nil
		case "startsWith":
			return strings.HasPrefix(s, a), nil
		case "endsWith":
			return strings.HasSuffix(s, a), nil
		case "indexOf":
			return float64(strings.Index(s, a)), nil
		case "split":
			parts := strings.Split(s, a)
			items := make([]any, len(parts))
			for i, p := range parts {
				items[i] = p
			}
			return store.WrapList(items, nil), nil
		case "toString":
			return s, nil
		}
	}
	if isNumber(obj) {
		switch name {
		case "toFixed":
			digits := int(ToNumber(arg(0)))
			return strconv.FormatFloat(ToNumber(obj), 'f', digits, 64), nil
		case "toString":
			return Format(obj), nil
		}
	}
	if obj == nil {
		return nil, fmt.Errorf("cannot call %s of undefined", name)
	}
	return nil, fmt.Errorf("%s is not a function", name)
}

func indexOf(items []any, v any) int {
	for i, e := range items {
		if StrictEqual(e, v) {
			return i
		}
	}
	return -1
}
