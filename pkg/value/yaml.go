package value

import "gopkg.in/yaml.v3"

var _ yaml.Marshaler = Value{}

// MarshalYAML renders scalars natively and composites as sequences. Keyed
// sequences become a list of {key, value} mappings since their keys may be
// composites and may repeat.
func (v Value) MarshalYAML() (any, error) {
	return v.native(), nil
}

func (v Value) native() any {
	switch k := v.Kind(); {
	case k.IsSigned():
		return v.Int()
	case k.IsInteger():
		return v.Uint()
	case k.IsFloat():
		return v.Float()
	case k == Bool:
		return v.Bool()
	case k == String:
		return v.str
	case k == Map:
		out := make([]map[string]any, len(v.elems))
		for i, p := range v.elems {
			out[i] = map[string]any{"key": p.elems[0].native(), "value": p.elems[1].native()}
		}
		return out
	case k == Invalid:
		return nil
	}
	out := make([]any, len(v.elems))
	for i, e := range v.elems {
		out[i] = e.native()
	}
	return out
}

// NamedNode builds a YAML mapping node {name: value, type: spelling} used by
// record dumps.
func NamedNode(name string, v Value) (*yaml.Node, error) {
	var val yaml.Node
	if err := val.Encode(v); err != nil {
		return nil, err
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "name"},
			{Kind: yaml.ScalarNode, Value: name},
			{Kind: yaml.ScalarNode, Value: "type"},
			{Kind: yaml.ScalarNode, Value: v.Type().String()},
			{Kind: yaml.ScalarNode, Value: "value"},
			&val,
		},
	}, nil
}
