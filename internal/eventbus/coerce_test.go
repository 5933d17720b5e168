package eventbus

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct{ X int }

type level int

func TestCoerce(t *testing.T) {
	var (
		intType    = reflect.TypeOf(0)
		floatType  = reflect.TypeOf(0.0)
		stringType = reflect.TypeOf("")
		boolType   = reflect.TypeOf(false)
		anyType    = reflect.TypeOf((*any)(nil)).Elem()
	)

	tests := []struct {
		name  string
		value any
		to    reflect.Type
		want  any
	}{
		{name: "assignable passes through", value: "hello", to: stringType, want: "hello"},
		{name: "anything binds to any", value: thing{X: 1}, to: anyType, want: thing{X: 1}},
		{name: "int to float64", value: 3, to: floatType, want: 3.0},
		{name: "whole float64 to int", value: 7.0, to: intType, want: 7},
		{name: "numeric string to int", value: "42", to: intType, want: 42},
		{name: "int to string", value: 7, to: stringType, want: "7"},
		{name: "bool string to bool", value: "true", to: boolType, want: true},
		{name: "capitalized bool string to bool", value: "True", to: boolType, want: true},
		{name: "fractional float64 rounds half to even", value: 7.5, to: intType, want: 8},
		{name: "fractional float64 rounds down to even", value: 6.5, to: intType, want: 6},
		{name: "fractional float64 rounds to nearest", value: -2.7, to: intType, want: -3},
		{name: "fractional float64 to uint8", value: 254.6, to: reflect.TypeOf(uint8(0)), want: uint8(255)},
		{name: "true to int", value: true, to: intType, want: 1},
		{name: "false to float64", value: false, to: floatType, want: 0.0},
		{name: "non-zero int to bool", value: 1, to: boolType, want: true},
		{name: "zero int to bool", value: 0, to: boolType, want: false},
		{name: "non-zero float64 to bool", value: 0.25, to: boolType, want: true},
		{name: "non-zero uint to bool", value: uint(3), to: boolType, want: true},
		{name: "source to string", value: Source("abc"), to: stringType, want: "abc"},
		{name: "int to named int", value: 3, to: reflect.TypeOf(level(0)), want: level(3)},
		{name: "int64 to duration", value: int64(5), to: reflect.TypeOf(time.Duration(0)), want: time.Duration(5)},
		{name: "nil to pointer", value: nil, to: reflect.TypeOf((*thing)(nil)), want: (*thing)(nil)},
		{name: "nil to map", value: nil, to: reflect.TypeOf(map[string]any(nil)), want: map[string]any(nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Coerce("ev", tc.value, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Interface())
		})
	}
}

func TestCoerce_Failures(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		to       reflect.Type
		wantFrom string
		wrapped  bool
	}{
		{name: "struct to int", value: thing{}, to: reflect.TypeOf(0), wantFrom: "eventbus.thing"},
		{name: "slice to string", value: []int{1}, to: reflect.TypeOf(""), wantFrom: "[]int"},
		{name: "non-numeric string to int", value: "abc", to: reflect.TypeOf(0), wantFrom: "string", wrapped: true},
		{name: "rounded float out of range", value: 255.5, to: reflect.TypeOf(uint8(0)), wantFrom: "float64", wrapped: true},
		{name: "NaN to int", value: math.NaN(), to: reflect.TypeOf(0), wantFrom: "float64", wrapped: true},
		{name: "non-bool string to bool", value: "yes", to: reflect.TypeOf(false), wantFrom: "string", wrapped: true},
		{name: "overflowing int", value: 300, to: reflect.TypeOf(int8(0)), wantFrom: "int", wrapped: true},
		{name: "string to struct", value: "x", to: reflect.TypeOf(thing{}), wantFrom: "string", wrapped: true},
		{name: "nil to int", value: nil, to: reflect.TypeOf(0), wantFrom: "nil"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Coerce("PlayerJoined", tc.value, tc.to)
			require.Error(t, err)

			var castErr *CastError
			require.True(t, errors.As(err, &castErr))
			assert.Equal(t, "PlayerJoined", castErr.Event)
			assert.Equal(t, tc.to, castErr.To)
			assert.Contains(t, err.Error(), "could not cast event argument for PlayerJoined from "+tc.wantFrom+" to "+tc.to.String())
			if tc.wrapped {
				assert.Error(t, castErr.Unwrap())
			} else {
				assert.NoError(t, castErr.Unwrap())
			}
		})
	}
}
