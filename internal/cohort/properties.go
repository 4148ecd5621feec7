package cohort

import (
	"fmt"
	"sort"
	"time"
)

// PropertyValueCategory identifies the kind of an InstancePropertyValue
type PropertyValueCategory int

const (
	UnknownPropertyCategory PropertyValueCategory = iota
	PrimitiveProperty
	EnumProperty
	ArrayProperty
	MapProperty
)

// String returns the string representation of the category
func (c PropertyValueCategory) String() string {
	switch c {
	case PrimitiveProperty:
		return "PRIMITIVE"
	case EnumProperty:
		return "ENUM"
	case ArrayProperty:
		return "ARRAY"
	case MapProperty:
		return "MAP"
	default:
		return "UNKNOWN"
	}
}

// InstancePropertyValue is one of PrimitivePropertyValue, EnumPropertyValue,
// ArrayPropertyValue or MapPropertyValue
type InstancePropertyValue interface {
	PropertyCategory() PropertyValueCategory
	isPropertyValue()
}

// PrimitivePropertyValue holds a single primitive. Value uses the Go type matching
// Kind: bool, int8 (byte), string (char), int16, int32, int64, float32, float64,
// *big.Int, *big.Float, string, time.Time.
type PrimitivePropertyValue struct {
	Kind  PrimitiveKind `json:"primitiveDefCategory"`
	Value interface{}   `json:"primitiveValue"`
}

// PropertyCategory returns PrimitiveProperty
func (PrimitivePropertyValue) PropertyCategory() PropertyValueCategory { return PrimitiveProperty }

func (PrimitivePropertyValue) isPropertyValue() {}

// String is a shorthand for a string primitive value
func String(s string) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveString, Value: s}
}

// Int is a shorthand for an int primitive value
func Int(i int32) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveInt, Value: i}
}

// Long is a shorthand for a long primitive value
func Long(i int64) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveLong, Value: i}
}

// Bool is a shorthand for a boolean primitive value
func Bool(b bool) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveBoolean, Value: b}
}

// Double is a shorthand for a double primitive value
func Double(f float64) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveDouble, Value: f}
}

// Date is a shorthand for a date primitive value
func Date(t time.Time) PrimitivePropertyValue {
	return PrimitivePropertyValue{Kind: PrimitiveDate, Value: t}
}

// EnumPropertyValue holds one element of an enum
type EnumPropertyValue struct {
	EnumName    string `json:"enumName"`
	Ordinal     int    `json:"ordinal"`
	Symbolic    string `json:"symbolicName"`
	Description string `json:"description,omitempty"`
}

// PropertyCategory returns EnumProperty
func (EnumPropertyValue) PropertyCategory() PropertyValueCategory { return EnumProperty }

func (EnumPropertyValue) isPropertyValue() {}

// ArrayPropertyValue holds an ordered list of values
type ArrayPropertyValue struct {
	Values []InstancePropertyValue `json:"-"`
}

// PropertyCategory returns ArrayProperty
func (ArrayPropertyValue) PropertyCategory() PropertyValueCategory { return ArrayProperty }

func (ArrayPropertyValue) isPropertyValue() {}

// MapPropertyValue holds string-keyed values
type MapPropertyValue struct {
	Values map[string]InstancePropertyValue `json:"-"`
}

// PropertyCategory returns MapProperty
func (MapPropertyValue) PropertyCategory() PropertyValueCategory { return MapProperty }

func (MapPropertyValue) isPropertyValue() {}

// InstanceProperties is the named property set of an instance or classification
type InstanceProperties struct {
	values map[string]InstancePropertyValue
}

// NewInstanceProperties returns an empty property set
func NewInstanceProperties() *InstanceProperties {
	return &InstanceProperties{values: make(map[string]InstancePropertyValue)}
}

// PropertiesOf builds a property set from a map
func PropertiesOf(values map[string]InstancePropertyValue) *InstanceProperties {
	p := NewInstanceProperties()
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Set stores a value under name
func (p *InstanceProperties) Set(name string, value InstancePropertyValue) *InstanceProperties {
	if p.values == nil {
		p.values = make(map[string]InstancePropertyValue)
	}
	p.values[name] = value
	return p
}

// Get returns the named value
func (p *InstanceProperties) Get(name string) (InstancePropertyValue, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[name]
	return v, ok
}

// Remove deletes the named value
func (p *InstanceProperties) Remove(name string) {
	if p != nil {
		delete(p.values, name)
	}
}

// Len returns the number of properties
func (p *InstanceProperties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Names returns the property names in sorted order
func (p *InstanceProperties) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the underlying values
func (p *InstanceProperties) Map() map[string]InstancePropertyValue {
	out := make(map[string]InstancePropertyValue, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy; values are immutable once stored
func (p *InstanceProperties) Clone() *InstanceProperties {
	if p == nil {
		return nil
	}
	return PropertiesOf(p.values)
}

// Merge overlays other onto a copy of p
func (p *InstanceProperties) Merge(other *InstanceProperties) *InstanceProperties {
	out := p.Clone()
	if out == nil {
		out = NewInstanceProperties()
	}
	for _, name := range other.Names() {
		v, _ := other.Get(name)
		out.Set(name, v)
	}
	return out
}

// StringValue returns the value as a string when it is a string or char primitive
func StringValue(v InstancePropertyValue) (string, bool) {
	pv, ok := v.(PrimitivePropertyValue)
	if !ok {
		return "", false
	}
	if pv.Kind != PrimitiveString && pv.Kind != PrimitiveChar {
		return "", false
	}
	s, ok := pv.Value.(string)
	return s, ok
}

// FormatValue renders a property value for messages and logs
func FormatValue(v InstancePropertyValue) string {
	switch pv := v.(type) {
	case PrimitivePropertyValue:
		return fmt.Sprintf("%v", pv.Value)
	case EnumPropertyValue:
		return pv.Symbolic
	case ArrayPropertyValue:
		return fmt.Sprintf("array[%d]", len(pv.Values))
	case MapPropertyValue:
		return fmt.Sprintf("map[%d]", len(pv.Values))
	default:
		return "<nil>"
	}
}
