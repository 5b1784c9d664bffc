package frame

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/numbering"
	"github.com/specialistvlad/quire/internal/selector"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// DefaultCounterNumbering is used by counter_display when neither an
// argument nor a `<key>.numbering` style supplies a pattern.
const DefaultCounterNumbering = "1.1"

// contextual describes a function that reads from a frame.
type contextual struct {
	params   []function.Parameter
	varParam *function.Parameter
	ret      cty.Type
	impl     func(f *Frame, args []cty.Value) Result[cty.Value]
}

var (
	keyParam    = function.Parameter{Name: "key", Type: cty.String}
	selParam    = function.Parameter{Name: "selector", Type: cty.String}
	targetParam = function.Parameter{Name: "target", Type: cty.String}

	positionType = cty.Object(map[string]cty.Type{
		"page": cty.Number,
		"x":    cty.Number,
		"y":    cty.Number,
	})
	sizeType = cty.Object(map[string]cty.Type{
		"width":  cty.Number,
		"height": cty.Number,
	})
	counterType = cty.List(cty.Number)
)

var contextualFuncs = map[string]contextual{
	"here": {
		ret: cty.String,
		impl: func(f *Frame, _ []cty.Value) Result[cty.Value] {
			return Resolve(cty.StringVal(f.Here().String()))
		},
	},
	"locate": {
		params: []function.Parameter{selParam},
		ret:    cty.String,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			sel, err := selector.Parse(args[0].AsString())
			if err != nil {
				return Fail[cty.Value](err)
			}
			return Map(f.Locate(sel), func(loc location.Location) (cty.Value, error) {
				return cty.StringVal(loc.String()), nil
			})
		},
	},
	"query": {
		params: []function.Parameter{selParam},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			sel, err := selector.Parse(args[0].AsString())
			if err != nil {
				return Fail[cty.Value](err)
			}
			return Map(f.Query(sel), func(elems []*model.Element) (cty.Value, error) {
				return elementsValue(elems), nil
			})
		},
	},
	"query_one": {
		params: []function.Parameter{selParam},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			sel, err := selector.Parse(args[0].AsString())
			if err != nil {
				return Fail[cty.Value](err)
			}
			return Map(f.QueryOne(sel), func(e *model.Element) (cty.Value, error) {
				return e.Value(), nil
			})
		},
	},
	"query_count": {
		params: []function.Parameter{selParam},
		ret:    cty.Number,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			sel, err := selector.Parse(args[0].AsString())
			if err != nil {
				return Fail[cty.Value](err)
			}
			return Map(f.Query(sel), func(elems []*model.Element) (cty.Value, error) {
				return cty.NumberIntVal(int64(len(elems))), nil
			})
		},
	},
	"query_count_before": {
		params: []function.Parameter{selParam},
		ret:    cty.Number,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			sel, err := selector.Parse(args[0].AsString())
			if err != nil {
				return Fail[cty.Value](err)
			}
			return Map(f.CountBefore(sel), func(n int) (cty.Value, error) {
				return cty.NumberIntVal(int64(n)), nil
			})
		},
	},
	"counter_get": {
		params: []function.Parameter{keyParam},
		ret:    counterType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return Map(f.Counter(args[0].AsString()), counterValue)
		},
	},
	"counter_at": {
		params: []function.Parameter{keyParam, targetParam},
		ret:    counterType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return bindTarget(f, args[1].AsString(), func(loc location.Location) Result[cty.Value] {
				return Map(f.CounterAt(args[0].AsString(), loc), counterValue)
			})
		},
	},
	"counter_final": {
		params: []function.Parameter{keyParam},
		ret:    counterType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return Map(f.CounterFinal(args[0].AsString()), counterValue)
		},
	},
	"counter_display": {
		params:   []function.Parameter{keyParam},
		varParam: &function.Parameter{Name: "pattern", Type: cty.String},
		ret:      cty.String,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			key := args[0].AsString()
			pattern := f.Styles().String(key+".numbering", DefaultCounterNumbering)
			if len(args) > 1 {
				pattern = args[1].AsString()
			}
			return Map(f.Counter(key), func(numbers []int) (cty.Value, error) {
				s, err := numbering.Format(pattern, numbers)
				if err != nil {
					return cty.NilVal, err
				}
				return cty.StringVal(s), nil
			})
		},
	},
	"state_get": {
		params: []function.Parameter{keyParam},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return f.State(args[0].AsString())
		},
	},
	"state_at": {
		params: []function.Parameter{keyParam, targetParam},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return bindTarget(f, args[1].AsString(), func(loc location.Location) Result[cty.Value] {
				return f.StateAt(args[0].AsString(), loc)
			})
		},
	},
	"state_final": {
		params: []function.Parameter{keyParam},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return f.StateFinal(args[0].AsString())
		},
	},
	"position": {
		params: []function.Parameter{targetParam},
		ret:    positionType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return bindTarget(f, args[0].AsString(), func(loc location.Location) Result[cty.Value] {
				return Map(f.PositionOf(loc), func(pos model.Position) (cty.Value, error) {
					return cty.ObjectVal(map[string]cty.Value{
						"page": cty.NumberIntVal(int64(pos.Page)),
						"x":    cty.NumberIntVal(int64(pos.X)),
						"y":    cty.NumberIntVal(int64(pos.Y)),
					}), nil
				})
			})
		},
	},
	"page_of": {
		params: []function.Parameter{targetParam},
		ret:    cty.Number,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			return bindTarget(f, args[0].AsString(), func(loc location.Location) Result[cty.Value] {
				return Map(f.PageOf(loc), func(page int) (cty.Value, error) {
					return cty.NumberIntVal(int64(page)), nil
				})
			})
		},
	},
	"page_count": {
		ret: cty.Number,
		impl: func(f *Frame, _ []cty.Value) Result[cty.Value] {
			return Map(f.Pages(), func(n int) (cty.Value, error) {
				return cty.NumberIntVal(int64(n)), nil
			})
		},
	},
	"measure": {
		params: []function.Parameter{{Name: "text", Type: cty.String}},
		ret:    sizeType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			size := f.Measure(args[0].AsString())
			return Resolve(cty.ObjectVal(map[string]cty.Value{
				"width":  cty.NumberIntVal(int64(size.Width)),
				"height": cty.NumberIntVal(int64(size.Height)),
			}))
		},
	},
	"style": {
		params: []function.Parameter{{Name: "name", Type: cty.String}},
		ret:    cty.DynamicPseudoType,
		impl: func(f *Frame, args []cty.Value) Result[cty.Value] {
			if v, ok := f.Style(args[0].AsString()); ok {
				return Resolve(v)
			}
			return Resolve(cty.NullVal(cty.DynamicPseudoType))
		},
	},
}

// IsContextual reports whether the named function needs a context frame.
func IsContextual(name string) bool {
	_, ok := contextualFuncs[name]
	return ok
}

// Functions returns the function table for document expressions. The
// contextual functions read from f; with a nil frame they fail with a
// *ContextRequiredError.
func Functions(f *Frame) map[string]function.Function {
	fns := map[string]function.Function{
		"abs":        stdlib.AbsoluteFunc,
		"ceil":       stdlib.CeilFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"contains":   stdlib.ContainsFunc,
		"element":    stdlib.ElementFunc,
		"floor":      stdlib.FloorFunc,
		"format":     stdlib.FormatFunc,
		"formatlist": stdlib.FormatListFunc,
		"join":       stdlib.JoinFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"length":     stdlib.LengthFunc,
		"lookup":     stdlib.LookupFunc,
		"lower":      stdlib.LowerFunc,
		"max":        stdlib.MaxFunc,
		"merge":      stdlib.MergeFunc,
		"min":        stdlib.MinFunc,
		"range":      stdlib.RangeFunc,
		"replace":    stdlib.ReplaceFunc,
		"reverse":    stdlib.ReverseListFunc,
		"slice":      stdlib.SliceFunc,
		"split":      stdlib.SplitFunc,
		"strlen":     stdlib.StrlenFunc,
		"substr":     stdlib.SubstrFunc,
		"title":      stdlib.TitleFunc,
		"tonumber":   stdlib.MakeToFunc(cty.Number),
		"tostring":   stdlib.MakeToFunc(cty.String),
		"trimspace":  stdlib.TrimSpaceFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
		"before":     temporalFunc(false),
		"after":      temporalFunc(true),
	}
	for name, def := range contextualFuncs {
		fns[name] = bind(name, def, f)
	}
	return fns
}

// bind turns a contextual definition into a cty function reading from f.
// Deferred reads become unknown values of the declared return type.
func bind(name string, def contextual, f *Frame) function.Function {
	return function.New(&function.Spec{
		Description: fmt.Sprintf("Contextual function %s.", name),
		Params:      def.params,
		VarParam:    def.varParam,
		Type:        function.StaticReturnType(def.ret),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			if f == nil {
				return cty.NilVal, &ContextRequiredError{Function: name}
			}
			r := def.impl(f, args)
			switch r.Status {
			case Deferred:
				return cty.UnknownVal(retType), nil
			case Failed:
				return cty.NilVal, r.Err
			}
			return r.Value, nil
		},
	})
}

// temporalFunc builds before() or after(). Both are pure: they only compose
// selector text.
func temporalFunc(after bool) function.Function {
	return function.New(&function.Spec{
		Params:   []function.Parameter{selParam, targetParam},
		VarParam: &function.Parameter{Name: "inclusive", Type: cty.Bool},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			inner, err := selector.Parse(args[0].AsString())
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			target, err := ParseTarget(args[1].AsString())
			if err != nil {
				return cty.NilVal, function.NewArgError(1, err)
			}
			inclusive := true
			if len(args) > 2 {
				inclusive = args[2].True()
			}
			var sel selector.Selector = selector.Before{Inner: inner, Target: target, Inclusive: inclusive}
			if after {
				sel = selector.After{Inner: inner, Target: target, Inclusive: inclusive}
			}
			return cty.StringVal(sel.String()), nil
		},
	})
}

// ParseTarget parses a target argument: a location as returned by here(),
// or a selector.
func ParseTarget(raw string) (selector.Selector, error) {
	if strings.HasPrefix(raw, "@") {
		loc, err := location.Parse(raw)
		if err != nil {
			return nil, err
		}
		return selector.At(loc), nil
	}
	return selector.Parse(raw)
}

// bindTarget resolves a target argument to a single location and continues
// with fn.
func bindTarget(f *Frame, raw string, fn func(location.Location) Result[cty.Value]) Result[cty.Value] {
	target, err := ParseTarget(raw)
	if err != nil {
		return Fail[cty.Value](err)
	}
	if at, ok := target.(selector.Loc); ok {
		return fn(at.Location)
	}
	r := f.Locate(target)
	switch r.Status {
	case Deferred:
		return Defer[cty.Value]()
	case Failed:
		return Fail[cty.Value](r.Err)
	}
	return fn(r.Value)
}

func counterValue(numbers []int) (cty.Value, error) {
	return store.CounterValue(numbers), nil
}

func elementsValue(elems []*model.Element) cty.Value {
	if len(elems) == 0 {
		return cty.EmptyTupleVal
	}
	vals := make([]cty.Value, len(elems))
	for i, e := range elems {
		vals[i] = e.Value()
	}
	return cty.TupleVal(vals)
}
