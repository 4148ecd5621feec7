package cohort

import (
	"fmt"
	"strings"
)

// AttributeTypeDefCategory identifies the kind of an AttributeTypeDef
type AttributeTypeDefCategory int

const (
	UnknownAttributeCategory AttributeTypeDefCategory = iota
	PrimitiveCategory
	CollectionCategory
	EnumCategory
)

// String returns the string representation of the category
func (c AttributeTypeDefCategory) String() string {
	switch c {
	case PrimitiveCategory:
		return "PRIMITIVE"
	case CollectionCategory:
		return "COLLECTION"
	case EnumCategory:
		return "ENUM_DEF"
	default:
		return "UNKNOWN_DEF"
	}
}

// AttributeTypeDef is one of *PrimitiveDef, *CollectionDef or *EnumDef
type AttributeTypeDef interface {
	AttributeCategory() AttributeTypeDefCategory
	TypeName() string
	TypeGUID() string
	isAttributeTypeDef()
}

// PrimitiveKind enumerates the primitive property types
type PrimitiveKind int

const (
	UnknownPrimitive PrimitiveKind = iota
	PrimitiveBoolean
	PrimitiveByte
	PrimitiveChar
	PrimitiveShort
	PrimitiveInt
	PrimitiveLong
	PrimitiveFloat
	PrimitiveDouble
	PrimitiveBigInteger
	PrimitiveBigDecimal
	PrimitiveString
	PrimitiveDate
)

var primitiveNames = map[PrimitiveKind]string{
	PrimitiveBoolean:    "boolean",
	PrimitiveByte:       "byte",
	PrimitiveChar:       "char",
	PrimitiveShort:      "short",
	PrimitiveInt:        "int",
	PrimitiveLong:       "long",
	PrimitiveFloat:      "float",
	PrimitiveDouble:     "double",
	PrimitiveBigInteger: "biginteger",
	PrimitiveBigDecimal: "bigdecimal",
	PrimitiveString:     "string",
	PrimitiveDate:       "date",
}

// String returns the canonical name of the primitive
func (k PrimitiveKind) String() string {
	if name, ok := primitiveNames[k]; ok {
		return name
	}
	return "unknown"
}

// GUID returns the stable identifier of the primitive type
func (k PrimitiveKind) GUID() string {
	return fmt.Sprintf("b34a64b9-554a-42b1-8f8a-7d5c2339f9%02d", int(k))
}

// ParsePrimitiveKind converts a canonical name to a PrimitiveKind
func ParsePrimitiveKind(s string) (PrimitiveKind, error) {
	for kind, name := range primitiveNames {
		if name == s {
			return kind, nil
		}
	}
	return UnknownPrimitive, fmt.Errorf("unknown primitive type: %s", s)
}

// PrimitiveKinds returns every known primitive kind in declaration order
func PrimitiveKinds() []PrimitiveKind {
	kinds := make([]PrimitiveKind, 0, len(primitiveNames))
	for k := PrimitiveBoolean; k <= PrimitiveDate; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// PrimitiveDef describes a primitive attribute type
type PrimitiveDef struct {
	Kind PrimitiveKind `json:"primitiveDefCategory"`
}

// NewPrimitiveDef returns the PrimitiveDef for kind
func NewPrimitiveDef(kind PrimitiveKind) *PrimitiveDef {
	return &PrimitiveDef{Kind: kind}
}

// AttributeCategory returns PrimitiveCategory
func (d *PrimitiveDef) AttributeCategory() AttributeTypeDefCategory { return PrimitiveCategory }

// TypeName returns the canonical primitive name
func (d *PrimitiveDef) TypeName() string { return d.Kind.String() }

// TypeGUID returns the primitive's stable identifier
func (d *PrimitiveDef) TypeGUID() string { return d.Kind.GUID() }

func (*PrimitiveDef) isAttributeTypeDef() {}

// CollectionKind enumerates the collection shapes
type CollectionKind int

const (
	UnknownCollection CollectionKind = iota
	CollectionArray
	CollectionMap
)

// String returns the grammar keyword for the collection kind
func (k CollectionKind) String() string {
	switch k {
	case CollectionArray:
		return "array"
	case CollectionMap:
		return "map"
	default:
		return "unknown"
	}
}

// CollectionDef describes an array or map of primitives
type CollectionDef struct {
	Kind          CollectionKind  `json:"collectionDefCategory"`
	ArgumentTypes []PrimitiveKind `json:"argumentTypes"`
}

// NewArrayDef returns array<elem>
func NewArrayDef(elem PrimitiveKind) *CollectionDef {
	return &CollectionDef{Kind: CollectionArray, ArgumentTypes: []PrimitiveKind{elem}}
}

// NewMapDef returns map<key,value>
func NewMapDef(key, value PrimitiveKind) *CollectionDef {
	return &CollectionDef{Kind: CollectionMap, ArgumentTypes: []PrimitiveKind{key, value}}
}

// AttributeCategory returns CollectionCategory
func (d *CollectionDef) AttributeCategory() AttributeTypeDefCategory { return CollectionCategory }

// TypeName returns the canonical collection name, e.g. array<string> or map<string,int>
func (d *CollectionDef) TypeName() string {
	return FormatCollectionName(d.Kind, d.ArgumentTypes)
}

// TypeGUID returns an identifier derived from the canonical name
func (d *CollectionDef) TypeGUID() string {
	return "collection:" + d.TypeName()
}

func (*CollectionDef) isAttributeTypeDef() {}

// FormatCollectionName renders the canonical collection type name
func FormatCollectionName(kind CollectionKind, args []PrimitiveKind) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", kind, strings.Join(names, ","))
}

// ParseCollectionName parses array<T> or map<K,V>. ok is false when s is not
// collection-shaped at all; err is set when it is collection-shaped but malformed or
// refers to a non-primitive element type.
func ParseCollectionName(s string) (def *CollectionDef, ok bool, err error) {
	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return nil, false, nil
	}

	var kind CollectionKind
	switch s[:open] {
	case "array":
		kind = CollectionArray
	case "map":
		kind = CollectionMap
	default:
		return nil, false, nil
	}

	inner := s[open+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	want := 1
	if kind == CollectionMap {
		want = 2
	}
	if len(parts) != want {
		return nil, true, fmt.Errorf("collection %q expects %d type arguments, got %d", s, want, len(parts))
	}

	args := make([]PrimitiveKind, 0, len(parts))
	for _, p := range parts {
		k, perr := ParsePrimitiveKind(strings.TrimSpace(p))
		if perr != nil {
			return nil, true, fmt.Errorf("collection %q: %w", s, perr)
		}
		args = append(args, k)
	}
	return &CollectionDef{Kind: kind, ArgumentTypes: args}, true, nil
}

// EnumElementDef is one valid value of an enum
type EnumElementDef struct {
	Ordinal     int    `json:"ordinal"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// EnumDef describes an enumerated attribute type
type EnumDef struct {
	GUID        string           `json:"guid"`
	Name        string           `json:"name"`
	Version     int64            `json:"version"`
	VersionName string           `json:"versionName,omitempty"`
	Description string           `json:"description,omitempty"`
	Elements    []EnumElementDef `json:"elementDefs"`
	Default     *EnumElementDef  `json:"defaultValue,omitempty"`
}

// AttributeCategory returns EnumCategory
func (d *EnumDef) AttributeCategory() AttributeTypeDefCategory { return EnumCategory }

// TypeName returns the enum's name
func (d *EnumDef) TypeName() string { return d.Name }

// TypeGUID returns the enum's identifier
func (d *EnumDef) TypeGUID() string { return d.GUID }

func (*EnumDef) isAttributeTypeDef() {}

// Element returns the element with the given symbolic value
func (d *EnumDef) Element(value string) (EnumElementDef, bool) {
	for _, e := range d.Elements {
		if e.Value == value {
			return e, true
		}
	}
	return EnumElementDef{}, false
}

// ElementByOrdinal returns the element with the given ordinal
func (d *EnumDef) ElementByOrdinal(ordinal int) (EnumElementDef, bool) {
	for _, e := range d.Elements {
		if e.Ordinal == ordinal {
			return e, true
		}
	}
	return EnumElementDef{}, false
}

// Clone returns a deep copy
func (d *EnumDef) Clone() *EnumDef {
	c := *d
	c.Elements = append([]EnumElementDef(nil), d.Elements...)
	if d.Default != nil {
		def := *d.Default
		c.Default = &def
	}
	return &c
}
