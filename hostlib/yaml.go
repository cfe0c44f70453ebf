package hostlib

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/podhmo/rsl/object"
)

// builtinToYAML renders a value as a block-style YAML document. Table keys
// keep their insertion order.
func builtinToYAML(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	node, err := toYAMLNode(args[0], 0)
	if err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	return &object.String{Value: buf.String()}, nil
}

// builtinFromYAML parses the first document of a YAML stream. An empty
// stream yields null.
func builtinFromYAML(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	src, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: invalid YAML: %v", ctx.Name, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return object.NULL, nil
	}
	obj, err := fromYAMLNode(doc.Content[0], 0)
	if err != nil {
		return nil, object.NewRuntimeError(object.CodeValue, "%s: %v", ctx.Name, err)
	}
	return obj, nil
}

func toYAMLNode(obj object.Object, depth int) (*yaml.Node, error) {
	if depth > maxNestingDepth {
		return nil, errors.New("value is nested too deeply (cyclic?)")
	}
	switch o := obj.(type) {
	case *object.Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case *object.Boolean:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: o.Inspect()}, nil
	case *object.Number:
		if math.IsInf(o.Value, 0) || math.IsNaN(o.Value) {
			return nil, fmt.Errorf("unsupported number %s", o.Inspect())
		}
		tag := "!!float"
		if o.Value == math.Trunc(o.Value) {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: o.Inspect()}, nil
	case *object.String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: o.Value}, nil
	case *object.Array:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range o.Elements {
			n, err := toYAMLNode(elem, depth+1)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case *object.Table:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range o.Keys() {
			elem, _ := o.Get(k)
			n, err := toYAMLNode(elem, depth+1)
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, n)
		}
		return m, nil
	}
	return nil, fmt.Errorf("cannot encode %s as YAML", obj.Type())
}

func fromYAMLNode(n *yaml.Node, depth int) (object.Object, error) {
	if depth > maxNestingDepth {
		return nil, errors.New("document is nested too deeply (recursive alias?)")
	}
	switch n.Kind {
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, depth+1)
	case yaml.SequenceNode:
		elems := make([]object.Object, len(n.Content))
		for i, c := range n.Content {
			obj, err := fromYAMLNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			elems[i] = obj
		}
		return &object.Array{Elements: elems}, nil
	case yaml.MappingNode:
		tbl := object.NewTable()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			obj, err := fromYAMLNode(v, depth+1)
			if err != nil {
				return nil, err
			}
			tbl.Set(k.Value, obj)
		}
		return tbl, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return object.NULL, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return object.NativeBool(b), nil
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, err
			}
			return &object.Number{Value: f}, nil
		}
		return &object.String{Value: n.Value}, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
