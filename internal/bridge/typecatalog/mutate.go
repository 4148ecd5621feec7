package typecatalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/attributes"
	"github.com/conduit-lang/metabridge/internal/bridge/names"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/registry"
)

// AddTypeDef creates a native type for a cohort definition and publishes it. The
// returned definition carries the stamps the native store assigned.
func (b *Bridge) AddTypeDef(ctx context.Context, userID string, def cohort.TypeDef) (cohort.TypeDef, error) {
	const op = "typecatalog.AddTypeDef"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := validateTypeDef(op, def); err != nil {
		return nil, err
	}
	name := def.Base().Name
	if builtin, ok := names.GUID(name); ok && def.Base().GUID != builtin {
		return nil, cohort.Errorf(cohort.ErrTypeConflict, op, name,
			"name is reserved for the built-in type with guid %s", builtin)
	}
	local := names.ToLocalName(name, def.Base().GUID)

	if _, err := b.store.GetTypeDefByName(ctx, local); err == nil {
		return nil, cohort.Errorf(cohort.ErrTypeConflict, op, name, "type is already defined")
	} else if !native.IsNotFound(err) {
		return nil, cohort.Wrap(op, name, err)
	}

	existing, err := b.registry.GetTypeDefByName(ctx, name)
	switch {
	case err == nil:
		if !registry.Equivalent(existing, def) {
			return nil, cohort.Errorf(cohort.ErrTypeConflict, op, name,
				"registry holds a different definition (guid %s)", existing.Base().GUID)
		}
	case !cohort.IsTypeNotKnown(err):
		return nil, cohort.Wrap(op, name, err)
	}

	cand := def.Clone()
	cand.Base().CreatedBy = userID
	cand.Base().UpdatedBy = userID
	if cand.Base().Version == 0 {
		cand.Base().Version = 1
	}

	nt, err := b.toNative(ctx, cand)
	if err != nil {
		return nil, err
	}
	if _, err := b.store.CreateTypeDefs(ctx, singleTypesDef(nt)); err != nil {
		if native.IsAlreadyExists(err) {
			return nil, cohort.Errorf(cohort.ErrTypeConflict, op, name, "type is already defined")
		}
		return nil, cohort.Wrap(op, name, err)
	}
	if err := b.registry.RegisterTypeDef(ctx, cand); err != nil {
		return nil, err
	}

	b.logger.Info("type added", zap.String("type", name), zap.String("category", def.Category().String()),
		zap.String("user", userID))
	return b.readBack(ctx, op, local)
}

// AddAttributeTypeDef publishes an enum to the native store. Primitives and
// collections need no native definition and are returned unchanged.
func (b *Bridge) AddAttributeTypeDef(ctx context.Context, userID string, def cohort.AttributeTypeDef) (cohort.AttributeTypeDef, error) {
	const op = "typecatalog.AddAttributeTypeDef"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute type is missing")
	}

	enum, ok := def.(*cohort.EnumDef)
	if !ok {
		if _, err := attributes.NativeTypeName(def); err != nil {
			return nil, err
		}
		return def, nil
	}
	if enum.Name == "" || enum.GUID == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, enum.Name, "enum name and guid are required")
	}

	if _, err := b.store.GetTypeDefByName(ctx, enum.Name); err == nil {
		return nil, cohort.Errorf(cohort.ErrTypeConflict, op, enum.Name, "type is already defined")
	} else if !native.IsNotFound(err) {
		return nil, cohort.Wrap(op, enum.Name, err)
	}
	if existing, err := b.registry.GetAttributeTypeDefByName(ctx, enum.Name); err == nil {
		if !cohort.EquivalentAttributeTypeDefs(existing, enum) {
			return nil, cohort.Errorf(cohort.ErrTypeConflict, op, enum.Name, "registry holds a different enum")
		}
	} else if !cohort.IsTypeNotKnown(err) {
		return nil, cohort.Wrap(op, enum.Name, err)
	}

	nt := attributes.ToNativeEnum(enum)
	nt.CreatedBy = userID
	nt.UpdatedBy = userID
	if _, err := b.store.CreateTypeDefs(ctx, singleTypesDef(nt)); err != nil {
		return nil, cohort.Wrap(op, enum.Name, err)
	}
	if err := b.registry.RegisterAttributeTypeDef(ctx, enum); err != nil {
		return nil, err
	}
	out, err := b.newReconciler().resolveEnum(ctx, enum.Name)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyTypeDef reports whether the native store holds a definition equivalent to
// def. Substituted built-in names are never reported as known, so callers add them.
func (b *Bridge) VerifyTypeDef(ctx context.Context, userID string, def cohort.TypeDef) (bool, error) {
	const op = "typecatalog.VerifyTypeDef"
	if err := validateUser(op, userID); err != nil {
		return false, err
	}
	if err := validateTypeDef(op, def); err != nil {
		return false, err
	}
	name := def.Base().Name
	if names.RequiresSubstitution(name) {
		return false, nil
	}

	known, err := b.newReconciler().resolveTypeDef(ctx, names.ToLocalName(name, def.Base().GUID))
	if err != nil {
		if cohort.IsTypeNotKnown(err) || cohort.KindOf(err) == cohort.ErrTypeNotSupported {
			return false, nil
		}
		return false, err
	}
	if !registry.Equivalent(known, def) {
		return false, cohort.Errorf(cohort.ErrTypeConflict, op, name, "native definition differs")
	}
	return true, nil
}

// VerifyAttributeTypeDef reports whether an attribute type is usable. Primitives and
// well-formed collections always are; enums must exist natively with the same shape.
func (b *Bridge) VerifyAttributeTypeDef(ctx context.Context, userID string, def cohort.AttributeTypeDef) (bool, error) {
	const op = "typecatalog.VerifyAttributeTypeDef"
	if err := validateUser(op, userID); err != nil {
		return false, err
	}
	if def == nil {
		return false, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute type is missing")
	}

	enum, ok := def.(*cohort.EnumDef)
	if !ok {
		_, err := attributes.NativeTypeName(def)
		return err == nil, nil
	}
	known, err := b.newReconciler().resolveEnum(ctx, enum.Name)
	if err != nil {
		if cohort.IsTypeNotKnown(err) {
			return false, nil
		}
		return false, err
	}
	if !cohort.EquivalentAttributeTypeDefs(known, enum) {
		return false, cohort.Errorf(cohort.ErrTypeConflict, op, enum.Name, "native enum differs")
	}
	return true, nil
}

// UpdateTypeDef applies a patch to a reconciled copy of the type, writes it through
// to the native store and the registry, and returns the read-back definition
func (b *Bridge) UpdateTypeDef(ctx context.Context, userID string, patch *cohort.TypeDefPatch) (cohort.TypeDef, error) {
	const op = "typecatalog.UpdateTypeDef"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if patch == nil {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "patch is missing")
	}
	if patch.TypeDefGUID == "" && patch.TypeDefName == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "patch names no type")
	}
	if patch.Action == cohort.UnknownPatchAction {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, patch.TypeDefName, "patch action is not set")
	}

	local := names.ToLocalName(patch.TypeDefName, patch.TypeDefGUID)
	if patch.TypeDefName == "" {
		var err error
		if local, err = b.localNameForGUID(ctx, patch.TypeDefGUID); err != nil {
			return nil, err
		}
	}
	r := b.newReconciler()
	current, err := r.resolveTypeDef(ctx, local)
	if err != nil {
		return nil, err
	}
	name := current.Base().Name
	if patch.TypeDefGUID != "" && current.Base().GUID != patch.TypeDefGUID {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, patch.TypeDefGUID, "guid does not match type %s", name)
	}
	if patch.ApplyToVersion != 0 && patch.ApplyToVersion != current.Base().Version {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, name,
			"patch applies to version %d but the type is at version %d", patch.ApplyToVersion, current.Base().Version)
	}

	ancestors, err := r.ancestors(ctx, current)
	if err != nil {
		return nil, err
	}
	inherited := make(map[string]bool)
	for _, a := range ancestors {
		for _, p := range a.Base().Properties {
			inherited[p.Name] = true
		}
	}

	patched := current.Clone()
	if err := applyPatch(op, patched, patch, inherited); err != nil {
		return nil, err
	}
	base := patched.Base()
	base.UpdatedBy = userID
	if patch.UpdateToVersion != 0 {
		base.Version = patch.UpdateToVersion
	} else {
		base.Version++
	}
	if patch.NewVersionName != "" {
		base.VersionName = patch.NewVersionName
	}

	nt, err := b.toNative(ctx, patched)
	if err != nil {
		return nil, err
	}
	nt.Header().Name = local
	if _, err := b.store.UpdateTypeDefs(ctx, singleTypesDef(nt)); err != nil {
		return nil, cohort.Wrap(op, name, err)
	}

	stored, err := b.store.GetTypeDefByName(ctx, local)
	if err != nil {
		return nil, cohort.Wrap(op, name, err)
	}
	applyStamps(base, stored.Header())
	if err := b.registry.UpdateTypeDef(ctx, patched); err != nil {
		return nil, cohort.Wrap(op, name, err)
	}

	b.logger.Info("type updated", zap.String("type", name), zap.String("action", patch.Action.String()),
		zap.Int64("version", base.Version), zap.String("user", userID))
	return patched, nil
}

// DeleteTypeDef removes a native type. Types that still have instances, or that other
// types refer to, are refused with ErrTypeInUse.
func (b *Bridge) DeleteTypeDef(ctx context.Context, userID, guid, name string) error {
	const op = "typecatalog.DeleteTypeDef"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if guid == "" || name == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "type guid and name are required")
	}

	nt, err := b.nativeForDelete(ctx, op, guid, name)
	if err != nil {
		return err
	}
	if err := b.checkInstances(ctx, op, name, nt); err != nil {
		return err
	}
	if err := b.checkReferences(ctx, op, name, nt.Header().Name); err != nil {
		return err
	}
	if err := b.store.DeleteTypeDefs(ctx, singleTypesDef(nt)); err != nil {
		return cohort.Wrap(op, name, err)
	}

	registered, err := b.registry.GetTypeDefByName(ctx, name)
	if err == nil {
		err = b.registry.RemoveTypeDef(ctx, registered.Base().GUID, name)
	}
	if err != nil && !cohort.IsTypeNotKnown(err) {
		return cohort.Wrap(op, name, err)
	}

	b.logger.Info("type deleted", zap.String("type", name), zap.String("user", userID))
	return nil
}

// DeleteAttributeTypeDef removes a native enum that no type uses
func (b *Bridge) DeleteAttributeTypeDef(ctx context.Context, userID, guid, name string) error {
	const op = "typecatalog.DeleteAttributeTypeDef"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if guid == "" || name == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "attribute type guid and name are required")
	}
	if _, err := cohort.ParsePrimitiveKind(name); err == nil {
		return cohort.Errorf(cohort.ErrTypeNotSupported, op, name, "primitive types cannot be deleted")
	}
	if _, ok, _ := cohort.ParseCollectionName(name); ok {
		return cohort.Errorf(cohort.ErrTypeNotSupported, op, name, "collection types cannot be deleted")
	}

	nt, err := b.nativeForDelete(ctx, op, guid, name)
	if err != nil {
		return err
	}
	if nt.Category() != native.CategoryEnum {
		return cohort.Errorf(cohort.ErrTypeNotKnown, op, name, "not an enum")
	}
	if err := b.checkReferences(ctx, op, name, name); err != nil {
		return err
	}
	if err := b.store.DeleteTypeDefs(ctx, singleTypesDef(nt)); err != nil {
		return cohort.Wrap(op, name, err)
	}

	registered, err := b.registry.GetAttributeTypeDefByName(ctx, name)
	if err == nil {
		err = b.registry.RemoveAttributeTypeDef(ctx, registered.TypeGUID(), name)
	}
	if err != nil && !cohort.IsTypeNotKnown(err) {
		return cohort.Wrap(op, name, err)
	}

	b.logger.Info("attribute type deleted", zap.String("type", name), zap.String("user", userID))
	return nil
}

// nativeForDelete finds the native type and checks guid matches one of the
// identities it is known by
func (b *Bridge) nativeForDelete(ctx context.Context, op, guid, name string) (native.TypeDef, error) {
	local := names.ToLocalName(name, guid)
	nt, err := b.store.GetTypeDefByName(ctx, local)
	if err != nil {
		if native.IsNotFound(err) {
			return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, name, "no such type")
		}
		return nil, cohort.Wrap(op, name, err)
	}

	if nt.Header().GUID == guid {
		return nt, nil
	}
	if builtin, ok := names.GUID(name); ok && builtin == guid && names.IsLocalSubstitute(local) {
		return nt, nil
	}
	if published, err := b.registry.GetTypeDefByName(ctx, name); err == nil && published.Base().GUID == guid {
		return nt, nil
	}
	if published, err := b.registry.GetAttributeTypeDefByName(ctx, name); err == nil && published.TypeGUID() == guid {
		return nt, nil
	}
	return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, guid, "guid does not identify type %s", name)
}

func (b *Bridge) checkInstances(ctx context.Context, op, name string, nt native.TypeDef) error {
	local := nt.Header().Name
	var (
		result *native.SearchResult
		err    error
	)
	switch nt.Category() {
	case native.CategoryEntity:
		result, err = b.store.SearchWithQuery(ctx, &native.StructuredQuery{
			Kind: native.SearchEntities, TypeName: local, Limit: 1,
		})
	case native.CategoryRelationship:
		result, err = b.store.SearchWithQuery(ctx, &native.StructuredQuery{
			Kind: native.SearchRelationships, TypeName: local, Limit: 1,
		})
	case native.CategoryClassification:
		result, err = b.store.SearchWithParameters(ctx, &native.SearchParameters{
			Kind: native.SearchEntities, Classification: local, Limit: 1,
		})
	default:
		return nil
	}
	if err != nil {
		return cohort.Wrap(op, name, err)
	}
	if len(result.Entities) > 0 || len(result.Relationships) > 0 {
		return cohort.Errorf(cohort.ErrTypeInUse, op, name, "instances of the type still exist")
	}
	return nil
}

// checkReferences refuses deletion while another native type refers to local
func (b *Bridge) checkReferences(ctx context.Context, op, name, local string) error {
	all, err := b.store.SearchTypeDefs(ctx, native.SearchFilter{})
	if err != nil {
		return cohort.Wrap(op, name, err)
	}
	for _, def := range all.All() {
		if def.Header().Name == local {
			continue
		}
		if refersTo(def, local) {
			return cohort.Errorf(cohort.ErrTypeInUse, op, name, "type %s refers to it", def.Header().Name)
		}
	}
	return nil
}

func refersTo(def native.TypeDef, local string) bool {
	var refs []string
	var attrs []native.AttributeDef
	switch d := def.(type) {
	case *native.EntityTypeDef:
		refs, attrs = d.SuperTypes, d.Attributes
	case *native.ClassificationTypeDef:
		refs = append(append(refs, d.SuperTypes...), d.EntityTypes...)
		attrs = d.Attributes
	case *native.RelationshipTypeDef:
		refs, attrs = []string{d.End1.Type, d.End2.Type}, d.Attributes
	case *native.StructTypeDef:
		attrs = d.Attributes
	}
	for _, r := range refs {
		if r == local {
			return true
		}
	}
	for _, a := range attrs {
		if a.TypeName == local {
			return true
		}
	}
	return false
}

// readBack resolves a freshly written type and overlays the native store's stamps
func (b *Bridge) readBack(ctx context.Context, op, local string) (cohort.TypeDef, error) {
	stored, err := b.store.GetTypeDefByName(ctx, local)
	if err != nil {
		return nil, cohort.Wrap(op, local, err)
	}
	def, err := b.newReconciler().resolveTypeDef(ctx, local)
	if err != nil {
		return nil, err
	}
	out := def.Clone()
	applyStamps(out.Base(), stored.Header())
	return out, nil
}

func applyStamps(base *cohort.TypeDefBase, h *native.TypeHeader) {
	base.Version = h.Version
	base.CreatedBy = h.CreatedBy
	base.UpdatedBy = h.UpdatedBy
	base.CreateTime = h.CreateTime
	base.UpdateTime = h.UpdateTime
	if h.DescriptionGUID != "" {
		base.DescriptionGUID = h.DescriptionGUID
	}
}

func validateTypeDef(op string, def cohort.TypeDef) error {
	if def == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "type definition is missing")
	}
	base := def.Base()
	if base.Name == "" || base.GUID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, base.Name, "type name and guid are required")
	}
	if def.Category() == cohort.UnknownTypeDefCategory {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, base.Name, "type category is not set")
	}
	for _, p := range base.Properties {
		if p.Name == "" || p.Type == nil {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, base.Name, "property definitions need a name and a type")
		}
	}
	if rel, ok := def.(*cohort.RelationshipDef); ok {
		if rel.EndDef1.EntityType.Name == "" || rel.EndDef2.EntityType.Name == "" {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, base.Name, "both relationship ends need an entity type")
		}
	}
	return nil
}
