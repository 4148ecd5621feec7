package instances

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// eligible reports whether a classification may be attached to an entity of the
// given type. The nearest eligibility list in the classification's hierarchy applies;
// none at all means any entity type.
func eligible(classification, entity *typecatalog.TypeInfo) bool {
	links := validEntityDefs(classification.Def)
	for i := 0; len(links) == 0 && i < len(classification.Ancestors); i++ {
		links = validEntityDefs(classification.Ancestors[i])
	}
	if len(links) == 0 {
		return true
	}
	for _, link := range links {
		if entity.IsTypeOf(link.Name) {
			return true
		}
	}
	return false
}

func validEntityDefs(def cohort.TypeDef) []cohort.TypeDefLink {
	if c, ok := def.(*cohort.ClassificationDef); ok {
		return c.ValidEntityDefs
	}
	return nil
}

// classificationType resolves a classification type by name
func (m *Mapper) classificationType(ctx context.Context, op, entityGUID, name string) (*typecatalog.TypeInfo, error) {
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, entityGUID, "classification name is empty")
	}
	info, err := m.types.TypeInfo(ctx, name)
	if err != nil {
		if cohort.IsTypeNotKnown(err) {
			return nil, cohort.WrapKind(cohort.ErrClassification, op, name, err)
		}
		return nil, err
	}
	if info.Def.Category() != cohort.ClassificationDefCategory {
		return nil, cohort.Errorf(cohort.ErrClassification, op, name, "%s is not a classification type", name)
	}
	return info, nil
}

// nativeClassification checks eligibility and properties and builds the native form
func (m *Mapper) nativeClassification(ctx context.Context, op, userID, entityGUID string, entity *typecatalog.TypeInfo,
	name string, props *cohort.InstanceProperties) (native.Classification, error) {
	info, err := m.classificationType(ctx, op, entityGUID, name)
	if err != nil {
		return native.Classification{}, err
	}
	if !eligible(info, entity) {
		return native.Classification{}, cohort.Errorf(cohort.ErrClassification, op, entityGUID,
			"classification %s is not valid for entity type %s", name, entity.Name())
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return native.Classification{}, err
	}
	propagate := false
	if def, ok := info.Def.(*cohort.ClassificationDef); ok {
		propagate = def.Propagatable
	}
	return native.Classification{
		TypeName:   info.NativeName,
		Attributes: attrs,
		EntityGUID: entityGUID,
		Propagate:  propagate,
		Version:    1,
		CreatedBy:  userID,
		UpdatedBy:  userID,
	}, nil
}

func (m *Mapper) nativeClassifications(ctx context.Context, op, userID string, entity *typecatalog.TypeInfo,
	classifications []cohort.Classification) ([]native.Classification, error) {
	if len(classifications) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(classifications))
	out := make([]native.Classification, 0, len(classifications))
	for _, c := range classifications {
		if seen[c.Name] {
			return nil, cohort.Errorf(cohort.ErrClassification, op, c.Name, "classification is listed twice")
		}
		seen[c.Name] = true
		nc, err := m.nativeClassification(ctx, op, userID, "", entity, c.Name, c.Properties)
		if err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, nil
}

// ClassifyEntity attaches a new classification to an entity
func (m *Mapper) ClassifyEntity(ctx context.Context, userID, guid, name string, props *cohort.InstanceProperties) (*cohort.EntityDetail, error) {
	const op = "instances.ClassifyEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "classification name is empty")
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	nc, err := m.nativeClassification(ctx, op, userID, guid, info, name, props)
	if err != nil {
		return nil, err
	}
	if _, ok := e.Classification(nc.TypeName); ok {
		return nil, cohort.Errorf(cohort.ErrClassification, op, guid, "entity is already classified as %s", name)
	}

	if err := m.store.AddClassifications(ctx, guid, []native.Classification{nc}); err != nil {
		return nil, cohort.Wrap(op, guid, err)
	}
	m.logger.Debug("entity classified", zap.String("entity", guid), zap.String("classification", name))
	return m.writeEntity(ctx, op, userID, e)
}

// DeclassifyEntity removes a classification the entity currently carries
func (m *Mapper) DeclassifyEntity(ctx context.Context, userID, guid, name string) (*cohort.EntityDetail, error) {
	const op = "instances.DeclassifyEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "classification name is empty")
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.classificationType(ctx, op, guid, name)
	if err != nil {
		return nil, err
	}
	if _, ok := e.Classification(info.NativeName); !ok {
		return nil, cohort.Errorf(cohort.ErrClassification, op, guid, "entity is not classified as %s", name)
	}

	if err := m.store.DeleteClassification(ctx, guid, info.NativeName); err != nil {
		return nil, cohort.Wrap(op, guid, err)
	}
	m.logger.Debug("entity declassified", zap.String("entity", guid), zap.String("classification", name))
	return m.writeEntity(ctx, op, userID, e)
}

// UpdateEntityClassification replaces the whole property set of a classification the
// entity carries
func (m *Mapper) UpdateEntityClassification(ctx context.Context, userID, guid, name string, props *cohort.InstanceProperties) (*cohort.EntityDetail, error) {
	const op = "instances.UpdateEntityClassification"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "classification name is empty")
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.classificationType(ctx, op, guid, name)
	if err != nil {
		return nil, err
	}
	existing, ok := e.Classification(info.NativeName)
	if !ok {
		return nil, cohort.Errorf(cohort.ErrClassification, op, guid, "entity is not classified as %s", name)
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return nil, err
	}

	existing.Attributes = attrs
	existing.Version++
	existing.UpdatedBy = userID
	if err := m.store.UpdateClassifications(ctx, guid, []native.Classification{existing}); err != nil {
		return nil, cohort.Wrap(op, guid, err)
	}
	return m.writeEntity(ctx, op, userID, e)
}

// syncClassifications makes the stored classifications of guid match want
func (m *Mapper) syncClassifications(ctx context.Context, op, guid string, want []native.Classification) error {
	current, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(want))
	var add, update []native.Classification
	for _, c := range want {
		keep[c.TypeName] = true
		if _, ok := current.Classification(c.TypeName); ok {
			update = append(update, c)
		} else {
			add = append(add, c)
		}
	}
	for _, c := range current.Classifications {
		if !keep[c.TypeName] {
			if err := m.store.DeleteClassification(ctx, guid, c.TypeName); err != nil {
				return cohort.Wrap(op, guid, err)
			}
		}
	}
	if len(update) > 0 {
		if err := m.store.UpdateClassifications(ctx, guid, update); err != nil {
			return cohort.Wrap(op, guid, err)
		}
	}
	if len(add) > 0 {
		if err := m.store.AddClassifications(ctx, guid, add); err != nil {
			return cohort.Wrap(op, guid, err)
		}
	}
	return nil
}
