package instances

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// SaveEntityCopy stores a reference copy of an entity homed elsewhere, keeping the
// caller's guid, version and audit fields. An existing copy is replaced.
func (m *Mapper) SaveEntityCopy(ctx context.Context, userID string, entity *cohort.EntityDetail) error {
	const op = "instances.SaveEntityCopy"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if entity == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "entity is missing")
	}
	if err := requireGUID(op, "entity", entity.GUID); err != nil {
		return err
	}
	if entity.Type == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, entity.GUID, "entity has no type")
	}
	if m.IsLocal(entity.MetadataCollectionID) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, entity.GUID, "entity is homed in this repository")
	}

	info, err := m.resolveType(ctx, op, entity.Type.TypeDefGUID, entity.Type.TypeDefName, cohort.EntityDefCategory)
	if err != nil {
		return err
	}
	status, err := ToNativeStatus(op, entity.GUID, entity.Status)
	if err != nil {
		return err
	}
	attrs, err := nativeProperties(op, info, entity.Properties)
	if err != nil {
		return err
	}
	classifications, err := m.nativeClassifications(ctx, op, userID, info, entity.Classifications)
	if err != nil {
		return err
	}
	for i := range classifications {
		classifications[i].EntityGUID = entity.GUID
		if src := entity.Classifications[i]; src.Version > 0 {
			classifications[i].Version = src.Version
			classifications[i].CreatedBy = src.CreatedBy
			classifications[i].UpdatedBy = src.UpdatedBy
		}
	}

	version := entity.Version
	if version == 0 {
		version = 1
	}
	_, err = m.store.CreateOrUpdateEntity(ctx, &native.Entity{
		GUID:         entity.GUID,
		TypeName:     info.NativeName,
		Attributes:   attrs,
		Status:       status,
		Version:      version,
		HomeID:       entity.MetadataCollectionID,
		ReplicatedBy: entity.ReplicatedBy,
		Provenance:   int(entity.Provenance),
		CreatedBy:    entity.CreatedBy,
		UpdatedBy:    entity.UpdatedBy,
		CreateTime:   entity.CreateTime,
		UpdateTime:   entity.UpdateTime,
	})
	if err != nil {
		return cohort.Wrap(op, entity.GUID, err)
	}
	if err := m.syncClassifications(ctx, op, entity.GUID, classifications); err != nil {
		return err
	}
	m.logger.Debug("entity reference copy saved", zap.String("entity", entity.GUID),
		zap.String("home", entity.MetadataCollectionID))
	return nil
}

// SaveRelationshipCopy stores a reference copy of a relationship homed elsewhere.
// Both ends must already be stored, as full entities or proxies. An existing copy is
// updated in place.
func (m *Mapper) SaveRelationshipCopy(ctx context.Context, userID string, rel *cohort.Relationship) error {
	const op = "instances.SaveRelationshipCopy"
	info, status, attrs, err := m.prepareRelationshipCopy(ctx, op, userID, rel)
	if err != nil {
		return err
	}
	end1, err := m.relationshipEnd(ctx, op, info, 1, rel.EntityOneProxy.GUID)
	if err != nil {
		return err
	}
	end2, err := m.relationshipEnd(ctx, op, info, 2, rel.EntityTwoProxy.GUID)
	if err != nil {
		return err
	}

	version := rel.Version
	if version == 0 {
		version = 1
	}
	stored := &native.Relationship{
		GUID:         rel.GUID,
		TypeName:     info.NativeName,
		End1:         end1,
		End2:         end2,
		Attributes:   attrs,
		Status:       status,
		Version:      version,
		HomeID:       rel.MetadataCollectionID,
		ReplicatedBy: rel.ReplicatedBy,
		Provenance:   int(rel.Provenance),
		CreatedBy:    rel.CreatedBy,
		UpdatedBy:    rel.UpdatedBy,
		CreateTime:   rel.CreateTime,
		UpdateTime:   rel.UpdateTime,
	}

	exists, err := m.RelationshipExists(ctx, rel.GUID)
	if err != nil {
		return err
	}
	if exists {
		_, err = m.store.UpdateRelationship(ctx, stored)
	} else {
		_, err = m.store.CreateRelationship(ctx, stored)
	}
	if err != nil {
		return cohort.Wrap(op, rel.GUID, err)
	}
	m.logger.Debug("relationship reference copy saved", zap.String("relationship", rel.GUID),
		zap.String("home", rel.MetadataCollectionID), zap.Bool("updated", exists))
	return nil
}

// CheckRelationshipCopy validates a relationship reference copy without storing
// anything. An end that is not stored yet must carry a proxy whose type fits that
// end of the relationship type.
func (m *Mapper) CheckRelationshipCopy(ctx context.Context, userID string, rel *cohort.Relationship) error {
	const op = "instances.CheckRelationshipCopy"
	info, _, _, err := m.prepareRelationshipCopy(ctx, op, userID, rel)
	if err != nil {
		return err
	}

	for end, proxy := range []*cohort.EntityProxy{rel.EntityOneProxy, rel.EntityTwoProxy} {
		exists, err := m.EntityExists(ctx, proxy.GUID)
		if err != nil {
			return err
		}
		if exists {
			if _, err := m.relationshipEnd(ctx, op, info, end+1, proxy.GUID); err != nil {
				return err
			}
			continue
		}

		if proxy.Type == nil {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, proxy.GUID, "proxy has no type")
		}
		endInfo, err := m.resolveType(ctx, op, proxy.Type.TypeDefGUID, proxy.Type.TypeDefName, cohort.EntityDefCategory)
		if err != nil {
			return err
		}
		if want := endTypeName(info, end+1); !endInfo.IsTypeOf(want) {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, proxy.GUID,
				"end %d of %s must be a %s, not a %s", end+1, info.Name(), want, endInfo.Name())
		}
		if _, err := nativeProperties(op, endInfo, proxy.UniqueProperties); err != nil {
			return err
		}
	}
	return nil
}

// prepareRelationshipCopy resolves the type, status and properties of a relationship
// copy
func (m *Mapper) prepareRelationshipCopy(ctx context.Context, op, userID string,
	rel *cohort.Relationship) (*typecatalog.TypeInfo, native.Status, map[string]interface{}, error) {
	if err := validateUser(op, userID); err != nil {
		return nil, 0, nil, err
	}
	if err := validateRelationshipCopy(op, rel); err != nil {
		return nil, 0, nil, err
	}
	if m.IsLocal(rel.MetadataCollectionID) {
		return nil, 0, nil, cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship is homed in this repository")
	}

	info, err := m.resolveType(ctx, op, rel.Type.TypeDefGUID, rel.Type.TypeDefName, cohort.RelationshipDefCategory)
	if err != nil {
		return nil, 0, nil, err
	}
	status, err := ToNativeStatus(op, rel.GUID, rel.Status)
	if err != nil {
		return nil, 0, nil, err
	}
	attrs, err := nativeProperties(op, info, rel.Properties)
	if err != nil {
		return nil, 0, nil, err
	}
	return info, status, attrs, nil
}

func validateRelationshipCopy(op string, rel *cohort.Relationship) error {
	if rel == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "relationship is missing")
	}
	if err := requireGUID(op, "relationship", rel.GUID); err != nil {
		return err
	}
	if rel.Type == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship has no type")
	}
	if rel.EntityOneProxy == nil || rel.EntityTwoProxy == nil ||
		rel.EntityOneProxy.GUID == "" || rel.EntityTwoProxy.GUID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship needs both end proxies")
	}
	return nil
}

// PurgeEntityCopy removes a reference copy regardless of delete mode
func (m *Mapper) PurgeEntityCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	const op = "instances.PurgeEntityCopy"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return err
	}
	if homeID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "home collection id is empty")
	}

	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return err
	}
	if m.IsLocal(e.HomeID) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "entity is homed in this repository")
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return err
	}
	return m.purgeEntity(ctx, op, guid)
}

// PurgeRelationshipCopy removes a relationship reference copy regardless of delete mode
func (m *Mapper) PurgeRelationshipCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	const op = "instances.PurgeRelationshipCopy"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return err
	}
	if homeID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "home collection id is empty")
	}

	r, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return err
	}
	if m.IsLocal(r.HomeID) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "relationship is homed in this repository")
	}
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return err
	}
	return m.purgeRelationship(ctx, op, guid)
}
