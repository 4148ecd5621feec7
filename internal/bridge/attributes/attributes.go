// Package attributes translates attribute types, structural attributes, cardinalities
// and property values between the native store's model and the cohort model.
package attributes

import (
	"context"

	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// EnumLookup resolves enums that have already been published to the cohort
type EnumLookup interface {
	GetAttributeTypeDefByName(ctx context.Context, name string) (cohort.AttributeTypeDef, error)
}

// ResolveAttributeType converts a native attribute type name into the cohort attribute
// type it denotes. Primitive and collection names are parsed directly; anything else
// must name an enum that lookup already knows. Other shapes are ErrTypeNotSupported.
func ResolveAttributeType(ctx context.Context, lookup EnumLookup, typeName string) (cohort.AttributeTypeDef, error) {
	const op = "attributes.ResolveAttributeType"

	if kind, err := cohort.ParsePrimitiveKind(typeName); err == nil {
		return cohort.NewPrimitiveDef(kind), nil
	}

	def, ok, err := cohort.ParseCollectionName(typeName)
	if err != nil {
		return nil, cohort.WrapKind(cohort.ErrTypeNotSupported, op, typeName, err)
	}
	if ok {
		return def, nil
	}

	if lookup == nil {
		return nil, cohort.Errorf(cohort.ErrTypeNotSupported, op, typeName, "no enum lookup available")
	}
	found, err := lookup.GetAttributeTypeDefByName(ctx, typeName)
	if err != nil {
		if cohort.IsTypeNotKnown(err) {
			return nil, cohort.Errorf(cohort.ErrTypeNotSupported, op, typeName,
				"not a primitive, a collection of primitives or a published enum")
		}
		return nil, err
	}
	enum, ok := found.(*cohort.EnumDef)
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotSupported, op, typeName, "registered as %s, not an enum",
			found.AttributeCategory())
	}
	return enum, nil
}

// NativeTypeName returns the native attribute type name for a cohort attribute type
func NativeTypeName(def cohort.AttributeTypeDef) (string, error) {
	switch d := def.(type) {
	case *cohort.PrimitiveDef:
		if d.Kind == cohort.UnknownPrimitive {
			return "", cohort.Errorf(cohort.ErrTypeNotSupported, "attributes.NativeTypeName", "", "unknown primitive")
		}
		return d.Kind.String(), nil
	case *cohort.CollectionDef:
		if d.Kind == cohort.UnknownCollection {
			return "", cohort.Errorf(cohort.ErrTypeNotSupported, "attributes.NativeTypeName", "", "unknown collection")
		}
		return d.TypeName(), nil
	case *cohort.EnumDef:
		return d.Name, nil
	default:
		return "", cohort.Errorf(cohort.ErrTypeNotSupported, "attributes.NativeTypeName", "", "attribute type is missing")
	}
}

// ToProtocolCardinality maps the native optional flag and multiplicity onto the cohort
// cardinality. An unset native cardinality is read as optional single.
func ToProtocolCardinality(optional bool, card native.Cardinality) cohort.AttributeCardinality {
	switch card {
	case native.CardinalitySingle:
		if optional {
			return cohort.AtMostOne
		}
		return cohort.OneOnly
	case native.CardinalityList:
		if optional {
			return cohort.AnyNumberOrdered
		}
		return cohort.AtLeastOneOrdered
	case native.CardinalitySet:
		if optional {
			return cohort.AnyNumberUnordered
		}
		return cohort.AtLeastOneUnordered
	default:
		return cohort.AtMostOne
	}
}

// ToNativeCardinality maps a cohort cardinality onto the native optional flag and
// multiplicity. Unrecognised cardinalities are rejected.
func ToNativeCardinality(c cohort.AttributeCardinality) (bool, native.Cardinality, error) {
	switch c {
	case cohort.AtMostOne:
		return true, native.CardinalitySingle, nil
	case cohort.OneOnly:
		return false, native.CardinalitySingle, nil
	case cohort.AtLeastOneOrdered:
		return false, native.CardinalityList, nil
	case cohort.AtLeastOneUnordered:
		return false, native.CardinalitySet, nil
	case cohort.AnyNumberOrdered:
		return true, native.CardinalityList, nil
	case cohort.AnyNumberUnordered:
		return true, native.CardinalitySet, nil
	default:
		return false, native.CardinalityUnset, cohort.Errorf(cohort.ErrInvalidParameter,
			"attributes.ToNativeCardinality", c.String(), "unrecognised attribute cardinality")
	}
}

// ToProtocolEndCardinality maps a native relationship end multiplicity
func ToProtocolEndCardinality(card native.Cardinality) cohort.RelationshipEndCardinality {
	switch card {
	case native.CardinalityList, native.CardinalitySet:
		return cohort.EndAnyNumber
	default:
		return cohort.EndAtMostOne
	}
}

// ToNativeEndCardinality maps a cohort relationship end multiplicity
func ToNativeEndCardinality(card cohort.RelationshipEndCardinality) (native.Cardinality, error) {
	switch card {
	case cohort.EndAtMostOne:
		return native.CardinalitySingle, nil
	case cohort.EndAnyNumber:
		return native.CardinalitySet, nil
	default:
		return native.CardinalityUnset, cohort.Errorf(cohort.ErrInvalidParameter,
			"attributes.ToNativeEndCardinality", card.String(), "unrecognised end cardinality")
	}
}

// ToProtocolPropagation maps the native classification propagation rule
func ToProtocolPropagation(p native.PropagateTags) cohort.ClassificationPropagationRule {
	switch p {
	case native.PropagateOneToTwo:
		return cohort.PropagateOneToTwo
	case native.PropagateTwoToOne:
		return cohort.PropagateTwoToOne
	case native.PropagateBoth:
		return cohort.PropagateBoth
	default:
		return cohort.PropagateNone
	}
}

// ToNativePropagation maps the cohort classification propagation rule
func ToNativePropagation(r cohort.ClassificationPropagationRule) native.PropagateTags {
	switch r {
	case cohort.PropagateOneToTwo:
		return native.PropagateOneToTwo
	case cohort.PropagateTwoToOne:
		return native.PropagateTwoToOne
	case cohort.PropagateBoth:
		return native.PropagateBoth
	default:
		return native.PropagateNone
	}
}

// ToProtocolAttribute converts a native attribute definition
func ToProtocolAttribute(ctx context.Context, lookup EnumLookup, a native.AttributeDef) (cohort.TypeDefAttribute, error) {
	attrType, err := ResolveAttributeType(ctx, lookup, a.TypeName)
	if err != nil {
		return cohort.TypeDefAttribute{}, err
	}
	return cohort.TypeDefAttribute{
		Name:           a.Name,
		Description:    a.Description,
		Type:           attrType,
		Cardinality:    ToProtocolCardinality(a.IsOptional, a.Cardinality),
		ValuesMinCount: a.ValuesMinCount,
		ValuesMaxCount: a.ValuesMaxCount,
		Unique:         a.IsUnique,
		Indexable:      a.IsIndexable,
		DefaultValue:   a.DefaultValue,
	}, nil
}

// ToProtocolAttributes converts every native attribute, failing on the first one
// whose shape cannot be represented
func ToProtocolAttributes(ctx context.Context, lookup EnumLookup, defs []native.AttributeDef) ([]cohort.TypeDefAttribute, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]cohort.TypeDefAttribute, 0, len(defs))
	for _, a := range defs {
		attr, err := ToProtocolAttribute(ctx, lookup, a)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
	}
	return out, nil
}

// ToNativeAttribute converts a cohort attribute definition. Enum-typed attributes
// require the enum to be published already.
func ToNativeAttribute(ctx context.Context, lookup EnumLookup, a cohort.TypeDefAttribute) (native.AttributeDef, error) {
	const op = "attributes.ToNativeAttribute"

	if a.Name == "" {
		return native.AttributeDef{}, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute name is empty")
	}
	typeName, err := NativeTypeName(a.Type)
	if err != nil {
		return native.AttributeDef{}, err
	}
	if enum, ok := a.Type.(*cohort.EnumDef); ok {
		if lookup == nil {
			return native.AttributeDef{}, cohort.Errorf(cohort.ErrTypeNotKnown, op, enum.Name, "enum is not published")
		}
		if _, err := lookup.GetAttributeTypeDefByName(ctx, enum.Name); err != nil {
			if cohort.IsTypeNotKnown(err) {
				return native.AttributeDef{}, cohort.Errorf(cohort.ErrTypeNotKnown, op, enum.Name,
					"enum used by attribute %s is not published", a.Name)
			}
			return native.AttributeDef{}, err
		}
	}
	optional, card, err := ToNativeCardinality(a.Cardinality)
	if err != nil {
		return native.AttributeDef{}, err
	}

	return native.AttributeDef{
		Name:           a.Name,
		TypeName:       typeName,
		IsOptional:     optional,
		Cardinality:    card,
		ValuesMinCount: a.ValuesMinCount,
		ValuesMaxCount: a.ValuesMaxCount,
		IsUnique:       a.Unique,
		IsIndexable:    a.Indexable,
		DefaultValue:   a.DefaultValue,
		Description:    a.Description,
	}, nil
}

// ToNativeAttributes converts every cohort attribute
func ToNativeAttributes(ctx context.Context, lookup EnumLookup, attrs []cohort.TypeDefAttribute) ([]native.AttributeDef, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	out := make([]native.AttributeDef, 0, len(attrs))
	for _, a := range attrs {
		def, err := ToNativeAttribute(ctx, lookup, a)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// ToProtocolEnum converts a native enum type
func ToProtocolEnum(def *native.EnumTypeDef) *cohort.EnumDef {
	enum := &cohort.EnumDef{
		GUID:        def.GUID,
		Name:        def.Name,
		Version:     def.Version,
		VersionName: def.TypeVersion,
		Description: def.Description,
		Elements:    make([]cohort.EnumElementDef, 0, len(def.Elements)),
	}
	for _, e := range def.Elements {
		enum.Elements = append(enum.Elements, cohort.EnumElementDef{
			Ordinal:     e.Ordinal,
			Value:       e.Value,
			Description: e.Description,
		})
	}
	if def.DefaultValue != "" {
		if e, ok := enum.Element(def.DefaultValue); ok {
			enum.Default = &e
		}
	}
	return enum
}

// ToNativeEnum converts a cohort enum
func ToNativeEnum(def *cohort.EnumDef) *native.EnumTypeDef {
	enum := &native.EnumTypeDef{
		TypeHeader: native.TypeHeader{
			GUID:        def.GUID,
			Name:        def.Name,
			Description: def.Description,
			Version:     def.Version,
			TypeVersion: def.VersionName,
		},
		Elements: make([]native.EnumElementDef, 0, len(def.Elements)),
	}
	for _, e := range def.Elements {
		enum.Elements = append(enum.Elements, native.EnumElementDef{
			Value:       e.Value,
			Ordinal:     e.Ordinal,
			Description: e.Description,
		})
	}
	if def.Default != nil {
		enum.DefaultValue = def.Default.Value
	}
	return enum
}
