package cohort

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// attributeTypeEnvelope tags an AttributeTypeDef with its category so it survives a
// JSON round trip
type attributeTypeEnvelope struct {
	Category   string         `json:"category"`
	Primitive  *PrimitiveDef  `json:"primitive,omitempty"`
	Collection *CollectionDef `json:"collection,omitempty"`
	Enum       *EnumDef       `json:"enum,omitempty"`
}

// MarshalAttributeTypeDef encodes an AttributeTypeDef with its category tag
func MarshalAttributeTypeDef(def AttributeTypeDef) ([]byte, error) {
	env, err := wrapAttributeType(def)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalAttributeTypeDef decodes an AttributeTypeDef written by MarshalAttributeTypeDef
func UnmarshalAttributeTypeDef(data []byte) (AttributeTypeDef, error) {
	var env attributeTypeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.unwrap()
}

func wrapAttributeType(def AttributeTypeDef) (*attributeTypeEnvelope, error) {
	switch d := def.(type) {
	case *PrimitiveDef:
		return &attributeTypeEnvelope{Category: PrimitiveCategory.String(), Primitive: d}, nil
	case *CollectionDef:
		return &attributeTypeEnvelope{Category: CollectionCategory.String(), Collection: d}, nil
	case *EnumDef:
		return &attributeTypeEnvelope{Category: EnumCategory.String(), Enum: d}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", def)
	}
}

func (env *attributeTypeEnvelope) unwrap() (AttributeTypeDef, error) {
	if env == nil {
		return nil, nil
	}
	switch {
	case env.Primitive != nil:
		return env.Primitive, nil
	case env.Collection != nil:
		return env.Collection, nil
	case env.Enum != nil:
		return env.Enum, nil
	default:
		return nil, fmt.Errorf("attribute type envelope %q carries no definition", env.Category)
	}
}

type typeDefAttributeAlias TypeDefAttribute

type typeDefAttributeJSON struct {
	typeDefAttributeAlias
	AttributeType *attributeTypeEnvelope `json:"attributeType,omitempty"`
}

// MarshalJSON encodes the attribute including its tagged attribute type
func (a TypeDefAttribute) MarshalJSON() ([]byte, error) {
	env, err := wrapAttributeType(a.Type)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typeDefAttributeJSON{typeDefAttributeAlias: typeDefAttributeAlias(a), AttributeType: env})
}

// UnmarshalJSON decodes an attribute written by MarshalJSON
func (a *TypeDefAttribute) UnmarshalJSON(data []byte) error {
	var raw typeDefAttributeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	attrType, err := raw.AttributeType.unwrap()
	if err != nil {
		return err
	}
	*a = TypeDefAttribute(raw.typeDefAttributeAlias)
	a.Type = attrType
	return nil
}

type typeDefEnvelope struct {
	Category       string             `json:"category"`
	Entity         *EntityDef         `json:"entityDef,omitempty"`
	Relationship   *RelationshipDef   `json:"relationshipDef,omitempty"`
	Classification *ClassificationDef `json:"classificationDef,omitempty"`
}

// MarshalTypeDef encodes a TypeDef with its category tag
func MarshalTypeDef(def TypeDef) ([]byte, error) {
	env := typeDefEnvelope{}
	switch d := def.(type) {
	case *EntityDef:
		env.Category, env.Entity = d.Category().String(), d
	case *RelationshipDef:
		env.Category, env.Relationship = d.Category().String(), d
	case *ClassificationDef:
		env.Category, env.Classification = d.Category().String(), d
	default:
		return nil, fmt.Errorf("unsupported typedef %T", def)
	}
	return json.Marshal(env)
}

// UnmarshalTypeDef decodes a TypeDef written by MarshalTypeDef
func UnmarshalTypeDef(data []byte) (TypeDef, error) {
	var env typeDefEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Entity != nil:
		return env.Entity, nil
	case env.Relationship != nil:
		return env.Relationship, nil
	case env.Classification != nil:
		return env.Classification, nil
	default:
		return nil, fmt.Errorf("typedef envelope %q carries no definition", env.Category)
	}
}

// propertyValueJSON is the wire form of an InstancePropertyValue
type propertyValueJSON struct {
	Category string                        `json:"category"`
	Kind     string                        `json:"primitiveDefCategory,omitempty"`
	Value    json.RawMessage               `json:"primitiveValue,omitempty"`
	Enum     *EnumPropertyValue            `json:"enum,omitempty"`
	Array    []propertyValueJSON           `json:"arrayValues,omitempty"`
	Map      map[string]*propertyValueJSON `json:"mapValues,omitempty"`
}

func encodePropertyValue(v InstancePropertyValue) (*propertyValueJSON, error) {
	switch pv := v.(type) {
	case PrimitivePropertyValue:
		raw, err := encodePrimitive(pv)
		if err != nil {
			return nil, err
		}
		return &propertyValueJSON{Category: PrimitiveProperty.String(), Kind: pv.Kind.String(), Value: raw}, nil
	case EnumPropertyValue:
		e := pv
		return &propertyValueJSON{Category: EnumProperty.String(), Enum: &e}, nil
	case ArrayPropertyValue:
		out := &propertyValueJSON{Category: ArrayProperty.String(), Array: make([]propertyValueJSON, 0, len(pv.Values))}
		for _, elem := range pv.Values {
			enc, err := encodePropertyValue(elem)
			if err != nil {
				return nil, err
			}
			out.Array = append(out.Array, *enc)
		}
		return out, nil
	case MapPropertyValue:
		out := &propertyValueJSON{Category: MapProperty.String(), Map: make(map[string]*propertyValueJSON, len(pv.Values))}
		for k, elem := range pv.Values {
			enc, err := encodePropertyValue(elem)
			if err != nil {
				return nil, err
			}
			out.Map[k] = enc
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported property value %T", v)
	}
}

func encodePrimitive(pv PrimitivePropertyValue) (json.RawMessage, error) {
	switch val := pv.Value.(type) {
	case time.Time:
		return json.Marshal(val.UTC().Format(time.RFC3339Nano))
	case *big.Int:
		return json.Marshal(val.String())
	case *big.Float:
		return json.Marshal(val.Text('g', -1))
	default:
		return json.Marshal(val)
	}
}

func (j *propertyValueJSON) decode() (InstancePropertyValue, error) {
	switch j.Category {
	case PrimitiveProperty.String():
		kind, err := ParsePrimitiveKind(j.Kind)
		if err != nil {
			return nil, err
		}
		val, err := decodePrimitive(kind, j.Value)
		if err != nil {
			return nil, err
		}
		return PrimitivePropertyValue{Kind: kind, Value: val}, nil
	case EnumProperty.String():
		if j.Enum == nil {
			return nil, fmt.Errorf("enum property value carries no enum")
		}
		return *j.Enum, nil
	case ArrayProperty.String():
		values := make([]InstancePropertyValue, 0, len(j.Array))
		for i := range j.Array {
			v, err := j.Array[i].decode()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return ArrayPropertyValue{Values: values}, nil
	case MapProperty.String():
		values := make(map[string]InstancePropertyValue, len(j.Map))
		for k, elem := range j.Map {
			v, err := elem.decode()
			if err != nil {
				return nil, err
			}
			values[k] = v
		}
		return MapPropertyValue{Values: values}, nil
	default:
		return nil, fmt.Errorf("unknown property value category %q", j.Category)
	}
}

func decodePrimitive(kind PrimitiveKind, raw json.RawMessage) (interface{}, error) {
	switch kind {
	case PrimitiveBoolean:
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case PrimitiveByte:
		var i int8
		err := json.Unmarshal(raw, &i)
		return i, err
	case PrimitiveShort:
		var i int16
		err := json.Unmarshal(raw, &i)
		return i, err
	case PrimitiveInt:
		var i int32
		err := json.Unmarshal(raw, &i)
		return i, err
	case PrimitiveLong:
		var i int64
		err := json.Unmarshal(raw, &i)
		return i, err
	case PrimitiveFloat:
		var f float32
		err := json.Unmarshal(raw, &f)
		return f, err
	case PrimitiveDouble:
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	case PrimitiveString, PrimitiveChar:
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case PrimitiveDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case PrimitiveBigInteger:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid biginteger %q", s)
		}
		return i, nil
	case PrimitiveBigDecimal:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		f, ok := new(big.Float).SetString(s)
		if !ok {
			return nil, fmt.Errorf("invalid bigdecimal %q", s)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported primitive kind %s", kind)
	}
}

// MarshalJSON encodes the property set as a name → tagged value object
func (p *InstanceProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]*propertyValueJSON, p.Len())
	for _, name := range p.Names() {
		v, _ := p.Get(name)
		enc, err := encodePropertyValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		out[name] = enc
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a property set written by MarshalJSON
func (p *InstanceProperties) UnmarshalJSON(data []byte) error {
	var raw map[string]*propertyValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.values = make(map[string]InstancePropertyValue, len(raw))
	for name, enc := range raw {
		if enc == nil {
			continue
		}
		v, err := enc.decode()
		if err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		p.values[name] = v
	}
	return nil
}
