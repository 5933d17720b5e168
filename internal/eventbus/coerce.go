package eventbus

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Coerce converts an event argument to the declared parameter type to.
//
// A value whose dynamic type is already assignable to to passes through
// unchanged. Primitive values (bools, numbers and strings, including named
// types over them) go through cty conversion, so an int binds to a float64
// parameter and "42" binds to an int one. Before that, fractional numbers
// bound to integer parameters are rounded half to even, bools and numbers
// convert as 1/0 and non-zero, and strings parse as bools with
// strconv.ParseBool. Anything else fails with a *CastError naming the event
// and both types.
func Coerce(event string, value any, to reflect.Type) (reflect.Value, error) {
	if value == nil {
		if nilable(to) {
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, &CastError{Event: event, To: to}
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(to) {
		return v, nil
	}

	if !primitive(v.Kind()) {
		return reflect.Value{}, &CastError{Event: event, From: v.Type(), To: to}
	}

	out, err := convertPrimitive(value, to)
	if err != nil {
		return reflect.Value{}, &CastError{Event: event, From: v.Type(), To: to, Err: err}
	}
	return out, nil
}

var errNaN = errors.New("NaN has no conversion")

// normalize rewrites value into a form cty converts to kind to. Pairs cty
// already handles come back unchanged.
func normalize(value any, to reflect.Kind) (any, error) {
	v := reflect.ValueOf(value)
	switch {
	case isFloat(v.Kind()) && math.IsNaN(v.Float()):
		return nil, errNaN
	case isInteger(to) && isFloat(v.Kind()):
		return math.RoundToEven(v.Float()), nil
	case isNumber(to) && v.Kind() == reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case to == reflect.Bool && isNumber(v.Kind()):
		switch {
		case isFloat(v.Kind()):
			return v.Float() != 0, nil
		case v.CanInt():
			return v.Int() != 0, nil
		default:
			return v.Uint() != 0, nil
		}
	case to == reflect.Bool && v.Kind() == reflect.String:
		return strconv.ParseBool(v.String())
	}
	return value, nil
}

// convertPrimitive round-trips value through cty to land on a value of
// type to.
func convertPrimitive(value any, to reflect.Type) (reflect.Value, error) {
	value, err := normalize(value, to.Kind())
	if err != nil {
		return reflect.Value{}, err
	}
	want, err := gocty.ImpliedType(reflect.Zero(to).Interface())
	if err != nil {
		return reflect.Value{}, fmt.Errorf("no conversion to %s: %w", to, err)
	}
	have, err := gocty.ImpliedType(value)
	if err != nil {
		return reflect.Value{}, err
	}
	cv, err := gocty.ToCtyValue(value, have)
	if err != nil {
		return reflect.Value{}, err
	}
	converted, err := convert.Convert(cv, want)
	if err != nil {
		return reflect.Value{}, err
	}
	target := reflect.New(to)
	if err := gocty.FromCtyValue(converted, target.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return target.Elem(), nil
}

func primitive(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumber(k reflect.Kind) bool {
	return isInteger(k) || isFloat(k)
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
