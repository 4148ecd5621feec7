package typecatalog

import (
	"context"
	"sort"

	"github.com/conduit-lang/metabridge/internal/bridge/names"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// TypeInfo is a reconciled type with its inherited structure flattened
type TypeInfo struct {
	Def        cohort.TypeDef
	NativeName string
	Ancestors  []cohort.TypeDef
	Attributes map[string]cohort.TypeDefAttribute
}

// Name returns the cohort name of the type
func (t *TypeInfo) Name() string {
	return t.Def.Base().Name
}

// IsTypeOf reports whether the type is name or inherits from it
func (t *TypeInfo) IsTypeOf(name string) bool {
	if t.Def.Base().Name == name {
		return true
	}
	for _, a := range t.Ancestors {
		if a.Base().Name == name {
			return true
		}
	}
	return false
}

// UniqueAttributes returns the names of the attributes flagged unique
func (t *TypeInfo) UniqueAttributes() []string {
	out := make([]string, 0)
	for name, attr := range t.Attributes {
		if attr.Unique {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// InstanceType builds the type section of an instance header
func (t *TypeInfo) InstanceType() *cohort.InstanceType {
	base := t.Def.Base()
	it := &cohort.InstanceType{
		Category:        t.Def.Category(),
		TypeDefGUID:     base.GUID,
		TypeDefName:     base.Name,
		TypeDefVersion:  base.Version,
		ValidStatusList: []cohort.InstanceStatus{cohort.StatusActive, cohort.StatusDeleted},
	}
	for _, a := range t.Ancestors {
		it.TypeDefSuperTypes = append(it.TypeDefSuperTypes, a.Base().Link())
	}
	for name := range t.Attributes {
		it.PropertyNames = append(it.PropertyNames, name)
	}
	sort.Strings(it.PropertyNames)
	return it
}

// TypeInfo resolves a cohort type name to its reconciled definition and ancestry
func (b *Bridge) TypeInfo(ctx context.Context, name string) (*TypeInfo, error) {
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, "typecatalog.TypeInfo", "", "type name is empty")
	}
	return b.typeInfo(ctx, b.newReconciler(), names.ToLocalName(name, ""))
}

// NativeTypeInfo resolves a native type name to its reconciled definition and ancestry
func (b *Bridge) NativeTypeInfo(ctx context.Context, nativeName string) (*TypeInfo, error) {
	if nativeName == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, "typecatalog.NativeTypeInfo", "", "type name is empty")
	}
	return b.typeInfo(ctx, b.newReconciler(), nativeName)
}

// TypeInfoByGUID resolves a cohort type guid to its reconciled definition and ancestry
func (b *Bridge) TypeInfoByGUID(ctx context.Context, guid string) (*TypeInfo, error) {
	if guid == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, "typecatalog.TypeInfoByGUID", "", "type guid is empty")
	}
	localName, err := b.localNameForGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	return b.typeInfo(ctx, b.newReconciler(), localName)
}

func (b *Bridge) typeInfo(ctx context.Context, r *reconciler, localName string) (*TypeInfo, error) {
	def, err := r.resolveTypeDef(ctx, localName)
	if err != nil {
		return nil, err
	}
	ancestors, err := r.ancestors(ctx, def)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]cohort.TypeDefAttribute)
	for i := len(ancestors) - 1; i >= 0; i-- {
		for _, p := range ancestors[i].Base().Properties {
			attrs[p.Name] = p
		}
	}
	for _, p := range def.Base().Properties {
		attrs[p.Name] = p
	}

	return &TypeInfo{
		Def:        def,
		NativeName: localName,
		Ancestors:  ancestors,
		Attributes: attrs,
	}, nil
}

// SubTypeNames returns the native names of the given native type and every type
// that inherits from it
func (b *Bridge) SubTypeNames(ctx context.Context, nativeName string) (map[string]bool, error) {
	all, err := b.store.SearchTypeDefs(ctx, native.SearchFilter{})
	if err != nil {
		return nil, cohort.Wrap("typecatalog.SubTypeNames", nativeName, err)
	}
	return native.SubTypeClosure(all.All(), nativeName), nil
}
