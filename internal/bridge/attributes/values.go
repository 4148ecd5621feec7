package attributes

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

// ToNativeValue converts a cohort property value to its native JSON-compatible form.
// Dates become epoch milliseconds and enums their symbolic name.
func ToNativeValue(v cohort.InstancePropertyValue) (interface{}, error) {
	switch pv := v.(type) {
	case cohort.PrimitivePropertyValue:
		return primitiveToNative(pv)
	case cohort.EnumPropertyValue:
		return pv.Symbolic, nil
	case cohort.ArrayPropertyValue:
		out := make([]interface{}, 0, len(pv.Values))
		for _, elem := range pv.Values {
			nv, err := ToNativeValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case cohort.MapPropertyValue:
		out := make(map[string]interface{}, len(pv.Values))
		for k, elem := range pv.Values {
			nv, err := ToNativeValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported property value %T", v)
	}
}

func primitiveToNative(pv cohort.PrimitivePropertyValue) (interface{}, error) {
	switch val := pv.Value.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case time.Time:
		return val.UnixMilli(), nil
	case *big.Int:
		return val.String(), nil
	case *big.Float:
		return val.Text('g', -1), nil
	default:
		return nil, fmt.Errorf("unsupported %s value %T", pv.Kind, pv.Value)
	}
}

// ToNativeProperties converts a property set into a native attribute map
func ToNativeProperties(props *cohort.InstanceProperties) (map[string]interface{}, error) {
	out := make(map[string]interface{}, props.Len())
	for _, name := range props.Names() {
		v, _ := props.Get(name)
		nv, err := ToNativeValue(v)
		if err != nil {
			return nil, cohort.WrapKind(cohort.ErrProperty, "attributes.ToNativeProperties", name, err)
		}
		out[name] = nv
	}
	return out, nil
}

// ToProtocolValue converts a native attribute value using the declared attribute type
func ToProtocolValue(attrType cohort.AttributeTypeDef, raw interface{}) (cohort.InstancePropertyValue, error) {
	switch t := attrType.(type) {
	case *cohort.PrimitiveDef:
		val, err := primitiveFromNative(t.Kind, raw)
		if err != nil {
			return nil, err
		}
		return cohort.PrimitivePropertyValue{Kind: t.Kind, Value: val}, nil
	case *cohort.CollectionDef:
		return collectionFromNative(t, raw)
	case *cohort.EnumDef:
		symbolic, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("enum %s expects a symbolic name, got %T", t.Name, raw)
		}
		e, ok := t.Element(symbolic)
		if !ok {
			return nil, fmt.Errorf("enum %s has no element %q", t.Name, symbolic)
		}
		return cohort.EnumPropertyValue{
			EnumName:    t.Name,
			Ordinal:     e.Ordinal,
			Symbolic:    e.Value,
			Description: e.Description,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", attrType)
	}
}

func collectionFromNative(t *cohort.CollectionDef, raw interface{}) (cohort.InstancePropertyValue, error) {
	switch t.Kind {
	case cohort.CollectionArray:
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s expects a list, got %T", t.TypeName(), raw)
		}
		values := make([]cohort.InstancePropertyValue, 0, len(list))
		for _, elem := range list {
			val, err := primitiveFromNative(t.ArgumentTypes[0], elem)
			if err != nil {
				return nil, err
			}
			values = append(values, cohort.PrimitivePropertyValue{Kind: t.ArgumentTypes[0], Value: val})
		}
		return cohort.ArrayPropertyValue{Values: values}, nil
	case cohort.CollectionMap:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s expects a map, got %T", t.TypeName(), raw)
		}
		valueKind := t.ArgumentTypes[len(t.ArgumentTypes)-1]
		values := make(map[string]cohort.InstancePropertyValue, len(m))
		for k, elem := range m {
			val, err := primitiveFromNative(valueKind, elem)
			if err != nil {
				return nil, err
			}
			values[k] = cohort.PrimitivePropertyValue{Kind: valueKind, Value: val}
		}
		return cohort.MapPropertyValue{Values: values}, nil
	default:
		return nil, fmt.Errorf("unsupported collection %s", t.TypeName())
	}
}

func primitiveFromNative(kind cohort.PrimitiveKind, raw interface{}) (interface{}, error) {
	switch kind {
	case cohort.PrimitiveBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("boolean expected, got %T", raw)
		}
		return b, nil
	case cohort.PrimitiveString, cohort.PrimitiveChar:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s expected, got %T", kind, raw)
		}
		return s, nil
	case cohort.PrimitiveByte, cohort.PrimitiveShort, cohort.PrimitiveInt, cohort.PrimitiveLong:
		i, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expected: %w", kind, err)
		}
		return narrowInt(kind, i)
	case cohort.PrimitiveFloat:
		f, err := toFloat64(raw)
		if err != nil {
			return nil, fmt.Errorf("float expected: %w", err)
		}
		return float32(f), nil
	case cohort.PrimitiveDouble:
		f, err := toFloat64(raw)
		if err != nil {
			return nil, fmt.Errorf("double expected: %w", err)
		}
		return f, nil
	case cohort.PrimitiveDate:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			return time.Parse(time.RFC3339Nano, v)
		}
		ms, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("date expected: %w", err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case cohort.PrimitiveBigInteger:
		if s, ok := raw.(string); ok {
			i, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, fmt.Errorf("invalid biginteger %q", s)
			}
			return i, nil
		}
		i, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("biginteger expected: %w", err)
		}
		return big.NewInt(i), nil
	case cohort.PrimitiveBigDecimal:
		if s, ok := raw.(string); ok {
			f, ok := new(big.Float).SetString(s)
			if !ok {
				return nil, fmt.Errorf("invalid bigdecimal %q", s)
			}
			return f, nil
		}
		f, err := toFloat64(raw)
		if err != nil {
			return nil, fmt.Errorf("bigdecimal expected: %w", err)
		}
		return big.NewFloat(f), nil
	default:
		return nil, fmt.Errorf("unsupported primitive %s", kind)
	}
}

func narrowInt(kind cohort.PrimitiveKind, i int64) (interface{}, error) {
	switch kind {
	case cohort.PrimitiveByte:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return nil, fmt.Errorf("%d overflows byte", i)
		}
		return int8(i), nil
	case cohort.PrimitiveShort:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, fmt.Errorf("%d overflows short", i)
		}
		return int16(i), nil
	case cohort.PrimitiveInt:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows int", i)
		}
		return int32(i), nil
	default:
		return i, nil
	}
}

func toInt64(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		if float32(int64(v)) != v {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int64(v), nil
	case float64:
		if float64(int64(v)) != v {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("got %T", raw)
	}
}

func toFloat64(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("got %T", raw)
	}
}

// ToProtocolProperties converts a native attribute map into a cohort property set.
// Only attributes present in declared are carried; nil values are dropped.
func ToProtocolProperties(attrs map[string]interface{}, declared map[string]cohort.TypeDefAttribute) (*cohort.InstanceProperties, error) {
	props := cohort.NewInstanceProperties()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := attrs[name]
		if raw == nil {
			continue
		}
		attr, ok := declared[name]
		if !ok {
			continue
		}
		v, err := ToProtocolValue(attr.Type, raw)
		if err != nil {
			return nil, cohort.WrapKind(cohort.ErrProperty, "attributes.ToProtocolProperties", name, err)
		}
		props.Set(name, v)
	}
	return props, nil
}

// ValidateProperties checks that every property is declared and that its value has
// the declared shape
func ValidateProperties(op, typeName string, props *cohort.InstanceProperties, declared map[string]cohort.TypeDefAttribute) error {
	for _, name := range props.Names() {
		attr, ok := declared[name]
		if !ok {
			return cohort.Errorf(cohort.ErrProperty, op, typeName, "property %s is not declared on the type", name)
		}
		v, _ := props.Get(name)
		if err := checkValue(attr.Type, v); err != nil {
			return cohort.Errorf(cohort.ErrProperty, op, typeName, "property %s: %v", name, err)
		}
	}
	return nil
}

func checkValue(attrType cohort.AttributeTypeDef, v cohort.InstancePropertyValue) error {
	switch t := attrType.(type) {
	case *cohort.PrimitiveDef:
		pv, ok := v.(cohort.PrimitivePropertyValue)
		if !ok {
			return fmt.Errorf("expected %s, got %s", t.Kind, v.PropertyCategory())
		}
		if pv.Kind != t.Kind {
			return fmt.Errorf("expected %s, got %s", t.Kind, pv.Kind)
		}
		return nil
	case *cohort.EnumDef:
		ev, ok := v.(cohort.EnumPropertyValue)
		if !ok {
			return fmt.Errorf("expected enum %s, got %s", t.Name, v.PropertyCategory())
		}
		if _, ok := t.Element(ev.Symbolic); !ok {
			return fmt.Errorf("enum %s has no element %q", t.Name, ev.Symbolic)
		}
		return nil
	case *cohort.CollectionDef:
		switch t.Kind {
		case cohort.CollectionArray:
			if _, ok := v.(cohort.ArrayPropertyValue); !ok {
				return fmt.Errorf("expected %s, got %s", t.TypeName(), v.PropertyCategory())
			}
		case cohort.CollectionMap:
			if _, ok := v.(cohort.MapPropertyValue); !ok {
				return fmt.Errorf("expected %s, got %s", t.TypeName(), v.PropertyCategory())
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported attribute type %T", attrType)
	}
}
