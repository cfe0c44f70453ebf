package hostlib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/podhmo/rsl/object"
)

func builtinToJSON(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	v, err := toJSONValue(args[0], 0)
	if err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	return &object.String{Value: strings.TrimSuffix(buf.String(), "\n")}, nil
}

func builtinFromJSON(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	src, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(src)) {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: invalid JSON", ctx.Name)
	}
	// Decoding through an ordered map wrapper keeps object keys in document order
	// at every nesting level, including the top-level value.
	wrapper := orderedmap.New()
	if err := json.Unmarshal([]byte(`{"v":`+src+`}`), wrapper); err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: invalid JSON: %v", ctx.Name, err)
	}
	v, _ := wrapper.Get("v")
	return fromJSONValue(v)
}

// maxNestingDepth guards against self-referencing arrays and tables and
// against recursive YAML aliases.
const maxNestingDepth = 512

func toJSONValue(obj object.Object, depth int) (any, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("value is nested too deeply (cyclic?)")
	}
	switch o := obj.(type) {
	case *object.Null:
		return nil, nil
	case *object.Boolean:
		return o.Value, nil
	case *object.Number:
		if math.IsInf(o.Value, 0) || math.IsNaN(o.Value) {
			return nil, fmt.Errorf("unsupported number %s", o.Inspect())
		}
		return o.Value, nil
	case *object.String:
		return o.Value, nil
	case *object.Array:
		out := make([]any, len(o.Elements))
		for i, elem := range o.Elements {
			v, err := toJSONValue(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *object.Table:
		out := orderedmap.New()
		out.SetEscapeHTML(false)
		for _, k := range o.Keys() {
			elem, _ := o.Get(k)
			v, err := toJSONValue(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot encode %s as JSON", obj.Type())
}

func fromJSONValue(v any) (object.Object, error) {
	switch x := v.(type) {
	case nil:
		return object.NULL, nil
	case bool:
		return object.NativeBool(x), nil
	case float64:
		return &object.Number{Value: x}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, object.NewRuntimeError(object.CodeValue, "fromJSON: %v", err)
		}
		return &object.Number{Value: f}, nil
	case string:
		return &object.String{Value: x}, nil
	case []any:
		elems := make([]object.Object, len(x))
		for i, e := range x {
			obj, err := fromJSONValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = obj
		}
		return &object.Array{Elements: elems}, nil
	case orderedmap.OrderedMap:
		return fromOrderedMap(&x)
	case *orderedmap.OrderedMap:
		return fromOrderedMap(x)
	case map[string]any:
		om := orderedmap.New()
		for k, e := range x {
			om.Set(k, e)
		}
		om.SortKeys(sort.Strings)
		return fromOrderedMap(om)
	}
	return nil, object.NewRuntimeError(object.CodeValue, "fromJSON: unsupported value %T", v)
}

func fromOrderedMap(om *orderedmap.OrderedMap) (object.Object, error) {
	tbl := object.NewTable()
	for _, k := range om.Keys() {
		e, _ := om.Get(k)
		obj, err := fromJSONValue(e)
		if err != nil {
			return nil, err
		}
		tbl.Set(k, obj)
	}
	return tbl, nil
}
