package dbtest

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/stretchr/testify/assert"
)

// Matcher is an expected value that decides equality itself.
type Matcher interface {
	Match(actual any) bool
	String() string
}

type equalsMatcher struct{ want any }

func (m equalsMatcher) Match(actual any) bool { return equal(m.want, actual) }
func (m equalsMatcher) String() string        { return "Equals(" + repr(m.want) + ")" }

type identicalMatcher struct{ ref any }

func (m identicalMatcher) Match(actual any) bool { return identical(m.ref, actual) }
func (m identicalMatcher) String() string        { return fmt.Sprintf("IdenticalTo(%p)", m.ref) }

type predicateMatcher struct {
	desc string
	pred func(any) bool
}

func (m predicateMatcher) Match(actual any) bool { return m.pred(actual) }
func (m predicateMatcher) String() string        { return m.desc }

// Equals matches values equal to want, with the same numeric tolerance as
// a plain expected value.
func Equals(want any) Matcher { return equalsMatcher{want: want} }

// IdenticalTo matches only the very same object as ref: the same pointer,
// map, channel or func, or an equal value for comparable non-reference types.
func IdenticalTo(ref any) Matcher { return identicalMatcher{ref: ref} }

// Matches wraps an arbitrary predicate. desc shows up in failure messages.
func Matches(desc string, pred func(any) bool) Matcher {
	return predicateMatcher{desc: desc, pred: pred}
}

// NotNull matches any non-nil value.
func NotNull() Matcher {
	return Matches("NotNull()", func(v any) bool { return v != nil })
}

// equal reports whether actual satisfies expected.
func equal(expected, actual any) bool {
	if m, ok := expected.(Matcher); ok {
		return m.Match(actual)
	}

	if exp, ok := sequence(expected); ok {
		act, ok := sequence(actual)
		if !ok || len(exp) != len(act) {
			return false
		}
		for i := range exp {
			if !equal(exp[i], act[i]) {
				return false
			}
		}
		return true
	}

	if ev := reflect.ValueOf(expected); ev.Kind() == reflect.Map {
		av := reflect.ValueOf(actual)
		if av.Kind() != reflect.Map || av.Len() != ev.Len() {
			return false
		}
		keyType := av.Type().Key()
		iter := ev.MapRange()
		for iter.Next() {
			k := iter.Key()
			if !k.Type().ConvertibleTo(keyType) {
				return false
			}
			got := av.MapIndex(k.Convert(keyType))
			if !got.IsValid() || !equal(iter.Value().Interface(), got.Interface()) {
				return false
			}
		}
		return true
	}

	if eq, ok := numericEqual(expected, actual); ok {
		return eq
	}

	return assert.ObjectsAreEqual(expected, actual)
}

// identical compares by reference where the type has one.
func identical(ref, actual any) bool {
	if ref == nil || actual == nil {
		return ref == nil && actual == nil
	}
	rv, av := reflect.ValueOf(ref), reflect.ValueOf(actual)
	if rv.Type() != av.Type() {
		return false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		return rv.Pointer() == av.Pointer()
	}
	if rv.Type().Comparable() {
		return ref == actual
	}
	return false
}

// sequence returns the elements of ordered collections. Byte slices and
// byte arrays (which includes UUIDs) are treated as scalars.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case Row:
		return s.values, true
	case []any:
		return s, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func numericEqual(expected, actual any) (eq bool, ok bool) {
	ev, av := reflect.ValueOf(expected), reflect.ValueOf(actual)
	if ei, eok := asInt(ev); eok {
		if ai, aok := asInt(av); aok {
			return ei == ai, true
		}
	}
	ef, eok := asFloat(ev)
	af, aok := asFloat(av)
	if !eok || !aok {
		return false, false
	}
	return ef == af, true
}

func asInt(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// repr renders values for diagnostics. Strings are quoted so that
// "1" and 1 read differently.
func repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case Matcher:
		return x.String()
	case Row:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}

	if items, ok := sequence(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map {
		parts := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			parts = append(parts, repr(iter.Key().Interface())+": "+repr(iter.Value().Interface()))
		}
		sort.Strings(parts)
		return "{" + strings.Join(parts, ", ") + "}"
	}

	return fmt.Sprintf("%v", v)
}
