package search

import (
	"sort"

	"github.com/conduit-lang/metabridge/internal/bridge/attributes"
	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// propertyGroup builds the native predicate for a set of match properties. With a
// type the properties must be declared on it; without one each value's own shape
// picks the operator. String values match as substrings, everything else exactly.
func propertyGroup(op string, info *typecatalog.TypeInfo, props *cohort.InstanceProperties,
	criteria cohort.MatchCriteria) (*native.PredicateGroup, error) {
	group := native.NewPredicateGroup(criteria == cohort.MatchAny)
	if props.Len() == 0 {
		return group, nil
	}
	if info != nil {
		if err := attributes.ValidateProperties(op, info.Name(), props, info.Attributes); err != nil {
			return nil, err
		}
	}

	for _, name := range props.Names() {
		v, _ := props.Get(name)
		value, err := attributes.ToNativeValue(v)
		if err != nil {
			return nil, cohort.Errorf(cohort.ErrProperty, op, name, "%v", err)
		}
		operator := native.OpEqual
		if isString(v) {
			operator = native.OpContains
		}
		group.AddCondition(&native.Condition{Attribute: name, Operator: operator, Value: value})
	}
	return group, nil
}

func isString(v cohort.InstancePropertyValue) bool {
	pv, ok := v.(cohort.PrimitivePropertyValue)
	return ok && pv.Kind == cohort.PrimitiveString
}

// textGroup matches text as a substring of any string attribute of the type. It
// returns nil when the type has no string attributes, in which case nothing can match.
func textGroup(info *typecatalog.TypeInfo, text string) *native.PredicateGroup {
	names := make([]string, 0, len(info.Attributes))
	for name, attr := range info.Attributes {
		if p, ok := attr.Type.(*cohort.PrimitiveDef); ok && p.Kind == cohort.PrimitiveString {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	group := native.NewPredicateGroup(true)
	for _, name := range names {
		group.AddCondition(&native.Condition{Attribute: name, Operator: native.OpContains, Value: text})
	}
	return group
}
