package scripting

import (
	"fmt"
	"math"
	"reflect"

	"github.com/Shopify/go-lua"
)

// pushValue converts a Go value into its Lua counterpart. Values with no
// natural Lua form are pushed as userdata.
func pushValue(l *lua.State, v any) {
	if v == nil {
		l.PushNil()
		return
	}
	if s, ok := v.(fmt.Stringer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			l.PushNil()
			return
		}
		if rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Struct {
			l.PushString(s.String())
			return
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		l.PushBoolean(rv.Bool())
	case reflect.String:
		l.PushString(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l.PushInteger(int(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		l.PushInteger(int(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		l.PushNumber(rv.Float())
	case reflect.Slice, reflect.Array:
		l.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			pushValue(l, rv.Index(i).Interface())
			l.RawSetInt(-2, i+1)
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			l.PushUserData(v)
			return
		}
		l.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pushValue(l, iter.Value().Interface())
			l.SetField(-2, iter.Key().String())
		}
	default:
		l.PushUserData(v)
	}
}

// luaToGo converts the value at index into plain Go data. Tables with
// keys 1..n become []any; other tables become map[string]any.
func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	case lua.TypeUserData:
		return l.ToUserData(index)
	default:
		return nil
	}
}

func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex, count := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if i, ok := l.ToInteger(-2); ok && i > 0 {
				count++
				maxIndex = max(maxIndex, i)
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		out := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			out = append(out, luaToGo(l, -1))
			l.Pop(1)
		}
		return out
	}

	out := make(map[string]any)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

func normalizeNumber(n float64) any {
	if math.Mod(n, 1) == 0 && n >= math.MinInt64 && n <= math.MaxInt64 {
		return int(n)
	}
	return n
}
