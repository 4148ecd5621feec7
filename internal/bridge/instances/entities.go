package instances

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// IsEntityKnown returns the entity with the given guid, or nil when it is not stored.
// Proxies are returned with only their unique properties populated.
func (m *Mapper) IsEntityKnown(ctx context.Context, userID, guid string) (*cohort.EntityDetail, error) {
	const op = "instances.IsEntityKnown"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}

	e, err := m.store.GetEntity(ctx, guid)
	if err != nil {
		if native.IsNotFound(err) {
			return nil, nil
		}
		return nil, cohort.Wrap(op, guid, err)
	}
	if e.IsProxy {
		proxy, err := m.EntityProxy(ctx, e)
		if err != nil {
			return nil, err
		}
		return &cohort.EntityDetail{EntitySummary: proxy.EntitySummary, Properties: proxy.UniqueProperties}, nil
	}
	return m.EntityDetail(ctx, e)
}

// EntityExists reports whether any entity, proxy or deleted, is stored under guid
func (m *Mapper) EntityExists(ctx context.Context, guid string) (bool, error) {
	_, err := m.store.GetEntity(ctx, guid)
	if err == nil {
		return true, nil
	}
	if native.IsNotFound(err) {
		return false, nil
	}
	return false, cohort.Wrap("instances.EntityExists", guid, err)
}

// GetEntitySummary returns the header and classifications of an entity
func (m *Mapper) GetEntitySummary(ctx context.Context, userID, guid string) (*cohort.EntitySummary, error) {
	const op = "instances.GetEntitySummary"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	return m.EntitySummary(ctx, e)
}

// GetEntityDetail returns a fully populated entity. Proxies fail with ErrEntityProxyOnly.
func (m *Mapper) GetEntityDetail(ctx context.Context, userID, guid string) (*cohort.EntityDetail, error) {
	const op = "instances.GetEntityDetail"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if e.IsProxy {
		return nil, cohort.Errorf(cohort.ErrEntityProxyOnly, op, guid, "only a proxy is stored for this entity")
	}
	return m.EntityDetail(ctx, e)
}

// AddEntity creates a locally homed entity. Initial classifications are attached in a
// second call once the entity has its guid; if that call fails the entity is kept
// and the failure is reported.
func (m *Mapper) AddEntity(ctx context.Context, userID, typeGUID string, props *cohort.InstanceProperties,
	classifications []cohort.Classification, status cohort.InstanceStatus) (*cohort.EntityDetail, error) {
	const op = "instances.AddEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity type", typeGUID); err != nil {
		return nil, err
	}

	info, err := m.resolveType(ctx, op, typeGUID, "", cohort.EntityDefCategory)
	if err != nil {
		return nil, err
	}
	nativeStatus, err := initialStatus(op, info.Name(), status)
	if err != nil {
		return nil, err
	}
	nativeClassifications, err := m.nativeClassifications(ctx, op, userID, info, classifications)
	if err != nil {
		return nil, err
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return nil, err
	}

	created, err := m.store.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   info.NativeName,
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

	if len(nativeClassifications) > 0 {
		if err := m.store.AddClassifications(ctx, created.GUID, nativeClassifications); err != nil {
			m.logger.Error("entity created but its classifications could not be attached",
				zap.String("entity", created.GUID), zap.String("type", info.Name()), zap.Error(err))
			return nil, cohort.WrapKind(cohort.ErrRepository, op, created.GUID, err)
		}
	}

	m.logger.Debug("entity added", zap.String("entity", created.GUID), zap.String("type", info.Name()))
	return m.readEntity(ctx, op, created.GUID)
}

// AddEntityProxy stores a proxy for an entity homed elsewhere. An entity already
// stored under the proxy's guid is left untouched.
func (m *Mapper) AddEntityProxy(ctx context.Context, userID string, proxy *cohort.EntityProxy) error {
	const op = "instances.AddEntityProxy"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if proxy == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "proxy is missing")
	}
	if err := requireGUID(op, "entity", proxy.GUID); err != nil {
		return err
	}
	if proxy.Type == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, proxy.GUID, "proxy has no type")
	}

	exists, err := m.EntityExists(ctx, proxy.GUID)
	if err != nil || exists {
		return err
	}

	info, err := m.resolveType(ctx, op, proxy.Type.TypeDefGUID, proxy.Type.TypeDefName, cohort.EntityDefCategory)
	if err != nil {
		return err
	}
	attrs, err := nativeProperties(op, info, proxy.UniqueProperties)
	if err != nil {
		return err
	}
	version := proxy.Version
	if version == 0 {
		version = 1
	}
	_, err = m.store.CreateOrUpdateEntity(ctx, &native.Entity{
		GUID:         proxy.GUID,
		TypeName:     info.NativeName,
		Attributes:   attrs,
		Status:       native.StatusActive,
		Version:      version,
		HomeID:       proxy.MetadataCollectionID,
		ReplicatedBy: proxy.ReplicatedBy,
		Provenance:   int(proxy.Provenance),
		IsProxy:      true,
		CreatedBy:    userID,
		UpdatedBy:    userID,
	})
	if err != nil {
		return cohort.Wrap(op, proxy.GUID, err)
	}
	m.logger.Debug("entity proxy added", zap.String("entity", proxy.GUID), zap.String("home", proxy.MetadataCollectionID))
	return nil
}

// UpdateEntityStatus changes the status of an active entity
func (m *Mapper) UpdateEntityStatus(ctx context.Context, userID, guid string, status cohort.InstanceStatus) (*cohort.EntityDetail, error) {
	const op = "instances.UpdateEntityStatus"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if status == cohort.StatusDeleted || status == cohort.StatusUnknown {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "status %s cannot be set directly", status)
	}
	nativeStatus, err := ToNativeStatus(op, guid, status)
	if err != nil {
		return nil, err
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	e.Status = nativeStatus
	return m.writeEntity(ctx, op, userID, e)
}

// UpdateEntityProperties replaces the property set of an active entity
func (m *Mapper) UpdateEntityProperties(ctx context.Context, userID, guid string, props *cohort.InstanceProperties) (*cohort.EntityDetail, error) {
	const op = "instances.UpdateEntityProperties"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	attrs, err := nativeProperties(op, info, props)
	if err != nil {
		return nil, err
	}
	e.Attributes = attrs
	return m.writeEntity(ctx, op, userID, e)
}

// DeleteEntity soft-deletes an entity. It fails with ErrNotSupported in hard-delete
// mode without touching the store.
func (m *Mapper) DeleteEntity(ctx context.Context, userID, typeGUID, typeName, guid string) (*cohort.EntityDetail, error) {
	const op = "instances.DeleteEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if typeGUID == "" && typeName == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "entity type is not named")
	}
	if m.deleteMode == HardDelete {
		return nil, cohort.Errorf(cohort.ErrNotSupported, op, guid, "soft delete is disabled; purge instead")
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return nil, err
	}

	e.Status = native.StatusDeleted
	deleted, err := m.writeEntity(ctx, op, userID, e)
	if err != nil {
		return nil, err
	}
	deleted.StatusOnDelete = cohort.StatusActive
	m.logger.Debug("entity deleted", zap.String("entity", guid), zap.String("type", info.Name()))
	return deleted, nil
}

// PurgeEntity removes an entity and the relationships attached to it. In soft-delete
// mode the entity must already be deleted.
func (m *Mapper) PurgeEntity(ctx context.Context, userID, typeGUID, typeName, guid string) error {
	const op = "instances.PurgeEntity"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return err
	}
	if typeGUID == "" && typeName == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "entity type is not named")
	}

	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return err
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return err
	}
	if m.deleteMode == SoftDelete && e.Status != native.StatusDeleted {
		return cohort.Errorf(cohort.ErrInstanceNotDeleted, op, guid, "entity must be deleted before it is purged")
	}
	return m.purgeEntity(ctx, op, guid)
}

func (m *Mapper) purgeEntity(ctx context.Context, op, guid string) error {
	rels, err := m.store.RelationshipsForEntity(ctx, guid)
	if err != nil && !native.IsNotFound(err) {
		return cohort.Wrap(op, guid, err)
	}
	for _, r := range rels {
		if err := m.store.PurgeRelationship(ctx, r.GUID); err != nil && !native.IsNotFound(err) {
			return cohort.Wrap(op, r.GUID, err)
		}
	}
	if err := m.store.PurgeEntity(ctx, guid); err != nil {
		if native.IsNotFound(err) {
			return cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "no such entity")
		}
		return cohort.Wrap(op, guid, err)
	}
	m.logger.Debug("entity purged", zap.String("entity", guid), zap.Int("relationships", len(rels)))
	return nil
}

// RestoreEntity returns a soft-deleted entity to active
func (m *Mapper) RestoreEntity(ctx context.Context, userID, guid string) (*cohort.EntityDetail, error) {
	const op = "instances.RestoreEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if m.deleteMode == HardDelete {
		return nil, cohort.Errorf(cohort.ErrNotSupported, op, guid, "restore needs soft delete")
	}

	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if e.Status != native.StatusDeleted {
		return nil, cohort.Errorf(cohort.ErrInstanceNotDeleted, op, guid, "entity is not deleted")
	}
	e.Status = native.StatusActive
	return m.writeEntity(ctx, op, userID, e)
}

// ReTypeEntity moves an entity to another entity type. Its properties and
// classifications must remain valid under the new type.
func (m *Mapper) ReTypeEntity(ctx context.Context, userID, guid string, current, next cohort.TypeDefLink) (*cohort.EntityDetail, error) {
	const op = "instances.ReTypeEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}

	e, err := m.liveEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	from, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, current.GUID, current.Name, from); err != nil {
		return nil, err
	}
	to, err := m.resolveType(ctx, op, next.GUID, next.Name, cohort.EntityDefCategory)
	if err != nil {
		return nil, err
	}

	props, err := m.EntityDetail(ctx, e)
	if err != nil {
		return nil, err
	}
	if _, err := nativeProperties(op, to, props.Properties); err != nil {
		return nil, err
	}
	for _, c := range e.Classifications {
		cinfo, err := m.types.NativeTypeInfo(ctx, c.TypeName)
		if err != nil {
			return nil, err
		}
		if !eligible(cinfo, to) {
			return nil, cohort.Errorf(cohort.ErrClassification, op, guid,
				"classification %s is not valid for %s", cinfo.Name(), to.Name())
		}
	}

	e.TypeName = to.NativeName
	m.logger.Info("entity retyped", zap.String("entity", guid), zap.String("from", from.Name()), zap.String("to", to.Name()))
	return m.writeEntity(ctx, op, userID, e)
}

// ReHomeEntity transfers ownership of an entity to another collection, recording the
// caller as the replicator
func (m *Mapper) ReHomeEntity(ctx context.Context, userID, guid, typeGUID, typeName, homeID, newHomeID string) (*cohort.EntityDetail, error) {
	const op = "instances.ReHomeEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := requireGUID(op, "entity", guid); err != nil {
		return nil, err
	}
	if newHomeID == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "new home collection id is empty")
	}

	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if e.Status == native.StatusDeleted {
		return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "entity is deleted")
	}
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	if err := checkType(op, guid, typeGUID, typeName, info); err != nil {
		return nil, err
	}
	if homeID != "" && m.header(info, entityStamp(e)).MetadataCollectionID != homeID {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "entity is not homed in %s", homeID)
	}

	e.HomeID = newHomeID
	e.ReplicatedBy = userID
	return m.writeEntity(ctx, op, userID, e)
}

// ReIdentifyEntity is not supported; the guid is the native storage key
func (m *Mapper) ReIdentifyEntity(ctx context.Context, userID, typeGUID, typeName, guid, newGUID string) (*cohort.EntityDetail, error) {
	const op = "instances.ReIdentifyEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	return nil, cohort.Errorf(cohort.ErrNotImplemented, op, guid, "entity guids cannot be changed")
}

// UndoEntityUpdate is not supported; the native store keeps no history
func (m *Mapper) UndoEntityUpdate(ctx context.Context, userID, guid string) (*cohort.EntityDetail, error) {
	const op = "instances.UndoEntityUpdate"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	return nil, cohort.Errorf(cohort.ErrNotImplemented, op, guid, "entity history is not kept")
}

// writeEntity bumps the version, writes the entity back and reads it again
func (m *Mapper) writeEntity(ctx context.Context, op, userID string, e *native.Entity) (*cohort.EntityDetail, error) {
	e.Version++
	e.UpdatedBy = userID
	e.UpdateTime = time.Time{}
	if _, err := m.store.CreateOrUpdateEntity(ctx, e); err != nil {
		return nil, cohort.Wrap(op, e.GUID, err)
	}
	return m.readEntity(ctx, op, e.GUID)
}

func (m *Mapper) readEntity(ctx context.Context, op, guid string) (*cohort.EntityDetail, error) {
	stored, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	return m.EntityDetail(ctx, stored)
}
