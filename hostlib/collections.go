package hostlib

import (
	"math"

	"github.com/podhmo/rsl/object"
)

func floor(v float64) float64 { return math.Floor(v) }

func builtinCreateArray(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	elems := make([]object.Object, len(args))
	copy(elems, args)
	return &object.Array{Elements: elems}, nil
}

func builtinArrayLen(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	return number(len(arr.Elements)), nil
}

func builtinArrayGet(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	i, err := indexArg(ctx, args, 1, len(arr.Elements))
	if err != nil {
		return nil, err
	}
	return arr.Elements[i], nil
}

func builtinArraySet(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(3, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	i, err := indexArg(ctx, args, 1, len(arr.Elements))
	if err != nil {
		return nil, err
	}
	arr.Elements[i] = args[2]
	return object.NULL, nil
}

func builtinArrayPushBack(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	arr.Elements = append(arr.Elements, args[1])
	return object.NULL, nil
}

func builtinArrayPopBack(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	if len(arr.Elements) == 0 {
		return nil, object.NewRuntimeError(object.CodeRange, "%s: array is empty", ctx.Name)
	}
	last := arr.Elements[len(arr.Elements)-1]
	arr.Elements = arr.Elements[:len(arr.Elements)-1]
	return last, nil
}

func builtinArrayRemove(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	arr, err := arrayArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	i, err := indexArg(ctx, args, 1, len(arr.Elements))
	if err != nil {
		return nil, err
	}
	removed := arr.Elements[i]
	arr.Elements = append(arr.Elements[:i], arr.Elements[i+1:]...)
	return removed, nil
}

func builtinCreateTable(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(0, args); err != nil {
		return nil, err
	}
	return object.NewTable(), nil
}

func builtinTableSet(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(3, args); err != nil {
		return nil, err
	}
	tbl, err := tableArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	tbl.Set(key, args[2])
	return object.NULL, nil
}

func builtinTableGet(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	tbl, err := tableArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	if v, ok := tbl.Get(key); ok {
		return v, nil
	}
	return object.NULL, nil
}

func builtinTableKeys(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	tbl, err := tableArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	keys := tbl.Keys()
	elems := make([]object.Object, len(keys))
	for i, k := range keys {
		elems[i] = &object.String{Value: k}
	}
	return &object.Array{Elements: elems}, nil
}
