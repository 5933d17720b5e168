package eventbus

import (
	"context"
	"fmt"
	"reflect"
)

// Source is the raw identifier of whatever raised an event. A callback
// parameter of this type is bound from the dispatch source instead of from
// the positional arguments.
type Source string

// ParamKind says where a callback parameter takes its value from.
type ParamKind int

const (
	// Positional parameters consume the next dispatch argument.
	Positional ParamKind = iota
	// FromSourceParam parameters are built from the dispatch source.
	FromSourceParam
	// ContextParam parameters receive the dispatch context.
	ContextParam
	// VariadicParam is a trailing ...T parameter that takes every
	// remaining argument.
	VariadicParam
)

func (k ParamKind) String() string {
	switch k {
	case Positional:
		return "positional"
	case FromSourceParam:
		return "source"
	case ContextParam:
		return "context"
	case VariadicParam:
		return "variadic"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Param describes one declared parameter of a callback.
type Param struct {
	Type reflect.Type
	Kind ParamKind
}

var (
	sourceType  = reflect.TypeOf(Source(""))
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Callback is a registered function together with its parameter descriptor
// table. The *Callback pointer is the identity used for removal, so the same
// function registered twice yields two independent callbacks.
type Callback struct {
	fn     reflect.Value
	params []Param
}

// CallbackOption customizes how NewCallback describes a function.
type CallbackOption func(*callbackOptions)

type callbackOptions struct {
	sourceIndexes []int
	sourceTypes   map[reflect.Type]struct{}
}

// FromSource marks the parameter at index i (zero based) as bound from the
// dispatch source, whatever its declared type.
func FromSource(i int) CallbackOption {
	return func(o *callbackOptions) {
		o.sourceIndexes = append(o.sourceIndexes, i)
	}
}

// withSourceTypes marks every parameter whose type is one of types as a
// source parameter. Registry.Add passes its registered source types here.
func withSourceTypes(types map[reflect.Type]struct{}) CallbackOption {
	return func(o *callbackOptions) {
		o.sourceTypes = types
	}
}

// NewCallback validates fn and builds its parameter descriptor table.
func NewCallback(fn any, opts ...CallbackOption) (*Callback, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: got %T", ErrNotFunc, fn)
	}
	if v.IsNil() {
		return nil, ErrNilCallback
	}

	var o callbackOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := v.Type()
	params := make([]Param, t.NumIn())
	for i := range params {
		in := t.In(i)
		p := Param{Type: in, Kind: Positional}
		switch {
		case t.IsVariadic() && i == t.NumIn()-1:
			p.Kind = VariadicParam
		case in == contextType:
			p.Kind = ContextParam
		case in == sourceType:
			p.Kind = FromSourceParam
		default:
			if _, ok := o.sourceTypes[in]; ok {
				p.Kind = FromSourceParam
			}
		}
		params[i] = p
	}

	for _, i := range o.sourceIndexes {
		if i < 0 || i >= len(params) || params[i].Kind == VariadicParam {
			return nil, fmt.Errorf("%w: %d (function has %d parameters)", ErrSourceIndex, i, len(params))
		}
		params[i].Kind = FromSourceParam
	}

	return &Callback{fn: v, params: params}, nil
}

// Params returns a copy of the callback's parameter descriptor table.
func (c *Callback) Params() []Param {
	out := make([]Param, len(c.params))
	copy(out, c.params)
	return out
}

// String names the underlying function type, for diagnostics.
func (c *Callback) String() string {
	return c.fn.Type().String()
}
