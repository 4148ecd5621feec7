package instances

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/attributes"
	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// IsRelationshipKnown returns the relationship with the given guid, or nil when it is
// not stored
func (m *Mapper) IsRelationshipKnown(ctx context.Context, userID, guid string) (*cohort.Relationship, error) {
	const op = "instances.IsRelationshipKnown"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	r, err := m.store.GetRelationship(ctx, guid)
	if err != nil {
		if native.IsNotFound(err) {
			return nil, nil
		}
		return nil, cohort.Wrap(op, guid, err)
	}
	return m.Relationship(ctx, r)
}

// RelationshipExists reports whether a relationship, deleted or not, is stored under guid
func (m *Mapper) RelationshipExists(ctx context.Context, guid string) (bool, error) {
	_, err := m.store.GetRelationship(ctx, guid)
	if err == nil {
		return true, nil
	}
	if native.IsNotFound(err) {
		return false, nil
	}
	return false, cohort.Wrap("instances.RelationshipExists", guid, err)
}

// GetRelationship returns a relationship with proxies for both ends
func (m *Mapper) GetRelationship(ctx context.Context, userID, guid string) (*cohort.Relationship, error) {
	const op = "instances.GetRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	r, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	return m.Relationship(ctx, r)
}

// AddRelationship creates a locally homed relationship between two stored entities
func (m *Mapper) AddRelationship(ctx context.Context, userID, typeGUID string, props *cohort.InstanceProperties,
	entityOneGUID, entityTwoGUID string, status cohort.InstanceStatus) (*cohort.Relationship, error) {
	const op = "instances.AddRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship type", typeGUID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity one", entityOneGUID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity two", entityTwoGUID); err != nil {
		return nil, err
	}

	info, err := m.resolveType(ctx, op, typeGUID, "", cohort.RelationshipDefCategory)
	if err != nil {
		return nil, err
	}
	nativeStatus, err := initialStatus(op, info.Name(), status)
	if err != nil {
		return nil, err
	}
	end1, err := m.relationshipEnd(ctx, op, info, 1, entityOneGUID)
	if err != nil {
		return nil, err
	}
	end2, err := m.relationshipEnd(ctx, op, info, 2, entityTwoGUID)
	if err != nil {
		return nil, err
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return nil, err
	}

	created, err := m.store.CreateRelationship(ctx, &native.Relationship{
		TypeName:   info.NativeName,
		End1:       end1,
		End2:       end2,
		Attributes: attrs,
		Status:     nativeStatus,
		Version:    1,
		HomeID:     m.collectionID,
		Provenance: int(cohort.ProvenanceLocalCohort),
		CreatedBy:  userID,
		UpdatedBy:  userID,
	})
	if err != nil {
		return nil, cohort.Wrap(op, info.Name(), err)
	}
	m.logger.Debug("relationship added", zap.String("relationship", created.GUID), zap.String("type", info.Name()))
	return m.readRelationship(ctx, op, created.GUID)
}

// endTypeName returns the entity type name required at end 1 or 2 of a relationship type
func endTypeName(rel *typecatalog.TypeInfo, end int) string {
	def := rel.Def.(*cohort.RelationshipDef)
	if end == 2 {
		return def.EndDef2.EntityType.Name
	}
	return def.EndDef1.EntityType.Name
}

// relationshipEnd loads the entity for one end and checks it fits the end definition
func (m *Mapper) relationshipEnd(ctx context.Context, op string, rel *typecatalog.TypeInfo, end int, guid string) (native.ObjectID, error) {
	want := endTypeName(rel, end)
	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return native.ObjectID{}, err
	}
	if e.Status == native.StatusDeleted {
		return native.ObjectID{}, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "entity is deleted")
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return native.ObjectID{}, err
	}
	if !info.IsTypeOf(want) {
		return native.ObjectID{}, cohort.Errorf(cohort.ErrInvalidParameter, op, guid,
			"end %d of %s must be a %s, not a %s", end, rel.Name(), want, info.Name())
	}
	return objectID(e, info), nil
}

// UpdateRelationshipStatus changes the status of an active relationship
func (m *Mapper) UpdateRelationshipStatus(ctx context.Context, userID, guid string, status cohort.InstanceStatus) (*cohort.Relationship, error) {
	const op = "instances.UpdateRelationshipStatus"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	if status == cohort.StatusDeleted || status == cohort.StatusUnknown {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "status %s cannot be set directly", status)
	}
	nativeStatus, err := ToNativeStatus(op, guid, status)
	if err != nil {
		return nil, err
	}

	r, err := m.liveRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	r.Status = nativeStatus
	return m.writeRelationship(ctx, op, userID, r)
}

// UpdateRelationshipProperties replaces the property set of an active relationship
func (m *Mapper) UpdateRelationshipProperties(ctx context.Context, userID, guid string, props *cohort.InstanceProperties) (*cohort.Relationship, error) {
	const op = "instances.UpdateRelationshipProperties"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}

	r, err := m.liveRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return nil, err
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return nil, err
	}
	r.Attributes = attrs
	return m.writeRelationship(ctx, op, userID, r)
}

// DeleteRelationship soft-deletes a relationship. It fails with ErrNotSupported in
// hard-delete mode without touching the store.
func (m *Mapper) DeleteRelationship(ctx context.Context, userID, typeGUID, typeName, guid string) (*cohort.Relationship, error) {
	const op = "instances.DeleteRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	if typeGUID == "" && typeName == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "relationship type is not named")
	}
	if m.deleteMode == HardDelete {
		return nil, cohort.Errorf(cohort.ErrNotSupported, op, guid, "soft delete is disabled; purge instead")
	}

	r, err := m.liveRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return nil, err
	}

	r.Status = native.StatusDeleted
	deleted, err := m.writeRelationship(ctx, op, userID, r)
	if err != nil {
		return nil, err
	}
	deleted.StatusOnDelete = cohort.StatusActive
	return deleted, nil
}

// PurgeRelationship removes a relationship. In soft-delete mode it must already be
// deleted.
func (m *Mapper) PurgeRelationship(ctx context.Context, userID, typeGUID, typeName, guid string) error {
	const op = "instances.PurgeRelationship"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return err
	}
	if typeGUID == "" && typeName == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "relationship type is not named")
	}

	r, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return err
	}
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return err
	}
	if m.deleteMode == SoftDelete && r.Status != native.StatusDeleted {
		return cohort.Errorf(cohort.ErrInstanceNotDeleted, op, guid, "relationship must be deleted before it is purged")
	}
	return m.purgeRelationship(ctx, op, guid)
}

func (m *Mapper) purgeRelationship(ctx context.Context, op, guid string) error {
	if err := m.store.PurgeRelationship(ctx, guid); err != nil {
		if native.IsNotFound(err) {
			return cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "no such relationship")
		}
		return cohort.Wrap(op, guid, err)
	}
	m.logger.Debug("relationship purged", zap.String("relationship", guid))
	return nil
}

// RestoreRelationship returns a soft-deleted relationship to active
func (m *Mapper) RestoreRelationship(ctx context.Context, userID, guid string) (*cohort.Relationship, error) {
	const op = "instances.RestoreRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	if m.deleteMode == HardDelete {
		return nil, cohort.Errorf(cohort.ErrNotSupported, op, guid, "restore needs soft delete")
	}

	r, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if r.Status != native.StatusDeleted {
		return nil, cohort.Errorf(cohort.ErrInstanceNotDeleted, op, guid, "relationship is not deleted")
	}
	r.Status = native.StatusActive
	return m.writeRelationship(ctx, op, userID, r)
}

// ReTypeRelationship moves a relationship to another relationship type. Its
// properties and both ends must fit the new type.
func (m *Mapper) ReTypeRelationship(ctx context.Context, userID, guid string, current, next cohort.TypeDefLink) (*cohort.Relationship, error) {
	const op = "instances.ReTypeRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}

	r, err := m.liveRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	from, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, current.GUID, current.Name, from); err != nil {
		return nil, err
	}
	to, err := m.resolveType(ctx, op, next.GUID, next.Name, cohort.RelationshipDefCategory)
	if err != nil {
		return nil, err
	}

	props, err := attributes.ToProtocolProperties(r.Attributes, from.Attributes)
	if err != nil {
		return nil, err
	}
	if _, err := nativeProperties(op, to, props); err != nil {
		return nil, err
	}
	if _, err := m.relationshipEnd(ctx, op, to, 1, r.End1.GUID); err != nil {
		return nil, err
	}
	if _, err := m.relationshipEnd(ctx, op, to, 2, r.End2.GUID); err != nil {
		return nil, err
	}

	r.TypeName = to.NativeName
	m.logger.Info("relationship retyped", zap.String("relationship", guid), zap.String("from", from.Name()), zap.String("to", to.Name()))
	return m.writeRelationship(ctx, op, userID, r)
}

// ReHomeRelationship transfers ownership of a relationship to another collection,
// recording the caller as the replicator
func (m *Mapper) ReHomeRelationship(ctx context.Context, userID, guid, typeGUID, typeName, homeID, newHomeID string) (*cohort.Relationship, error) {
	const op = "instances.ReHomeRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "relationship", guid); err != nil {
		return nil, err
	}
	if newHomeID == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "new home collection id is empty")
	}

	r, err := m.liveRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return nil, err
	}
	if homeID != "" && m.header(info, relationshipStamp(r)).MetadataCollectionID != homeID {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "relationship is not homed in %s", homeID)
	}

	r.HomeID = newHomeID
	r.ReplicatedBy = userID
	return m.writeRelationship(ctx, op, userID, r)
}

// ReIdentifyRelationship is not supported; the guid is the native storage key
func (m *Mapper) ReIdentifyRelationship(ctx context.Context, userID, typeGUID, typeName, guid, newGUID string) (*cohort.Relationship, error) {
	const op = "instances.ReIdentifyRelationship"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	return nil, cohort.Errorf(cohort.ErrNotImplemented, op, guid, "relationship guids cannot be changed")
}

// UndoRelationshipUpdate is not supported; the native store keeps no history
func (m *Mapper) UndoRelationshipUpdate(ctx context.Context, userID, guid string) (*cohort.Relationship, error) {
	const op = "instances.UndoRelationshipUpdate"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	return nil, cohort.Errorf(cohort.ErrNotImplemented, op, guid, "relationship history is not kept")
}

func (m *Mapper) writeRelationship(ctx context.Context, op, userID string, r *native.Relationship) (*cohort.Relationship, error) {
	r.Version++
	r.UpdatedBy = userID
	r.UpdateTime = time.Time{}
	if _, err := m.store.UpdateRelationship(ctx, r); err != nil {
		if native.IsNotFound(err) {
			return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, r.GUID, "no such relationship")
		}
		return nil, cohort.Wrap(op, r.GUID, err)
	}
	return m.readRelationship(ctx, op, r.GUID)
}

func (m *Mapper) readRelationship(ctx context.Context, op, guid string) (*cohort.Relationship, error) {
	stored, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	return m.Relationship(ctx, stored)
}

