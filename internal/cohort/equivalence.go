package cohort

import "sort"

// EquivalentTypeDefs reports whether two definitions describe the same structural
// shape: category, name, supertype, attributes (name, type, cardinality) and the
// category-specific fields. Identity, versions, descriptions and audit fields are
// ignored.
func EquivalentTypeDefs(a, b TypeDef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Category() != b.Category() {
		return false
	}
	if !equivalentBase(a.Base(), b.Base()) {
		return false
	}

	switch ad := a.(type) {
	case *EntityDef:
		return true
	case *RelationshipDef:
		bd := b.(*RelationshipDef)
		return ad.Propagation == bd.Propagation &&
			equivalentEnd(ad.EndDef1, bd.EndDef1) &&
			equivalentEnd(ad.EndDef2, bd.EndDef2)
	case *ClassificationDef:
		bd := b.(*ClassificationDef)
		return sameNames(linkNames(ad.ValidEntityDefs), linkNames(bd.ValidEntityDefs))
	default:
		return false
	}
}

func equivalentBase(a, b *TypeDefBase) bool {
	if a.Name != b.Name {
		return false
	}
	if superName(a) != superName(b) {
		return false
	}
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for _, pa := range a.Properties {
		pb, ok := b.Property(pa.Name)
		if !ok {
			return false
		}
		if !EquivalentAttributes(pa, pb) {
			return false
		}
	}
	return true
}

// EquivalentAttributes compares two attribute definitions by name, type and cardinality
func EquivalentAttributes(a, b TypeDefAttribute) bool {
	if a.Name != b.Name || a.Cardinality != b.Cardinality {
		return false
	}
	return EquivalentAttributeTypeDefs(a.Type, b.Type)
}

// EquivalentAttributeTypeDefs compares two attribute types by category and shape
func EquivalentAttributeTypeDefs(a, b AttributeTypeDef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.AttributeCategory() != b.AttributeCategory() {
		return false
	}
	switch ad := a.(type) {
	case *PrimitiveDef:
		return ad.Kind == b.(*PrimitiveDef).Kind
	case *CollectionDef:
		return ad.TypeName() == b.TypeName()
	case *EnumDef:
		bd := b.(*EnumDef)
		if ad.Name != bd.Name || len(ad.Elements) != len(bd.Elements) {
			return false
		}
		for _, e := range ad.Elements {
			other, ok := bd.ElementByOrdinal(e.Ordinal)
			if !ok || other.Value != e.Value {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equivalentEnd(a, b RelationshipEndDef) bool {
	return a.EntityType.Name == b.EntityType.Name &&
		a.AttributeName == b.AttributeName &&
		a.Cardinality == b.Cardinality
}

func superName(b *TypeDefBase) string {
	if b.SuperType == nil {
		return ""
	}
	return b.SuperType.Name
}

func linkNames(links []TypeDefLink) []string {
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Name)
	}
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
