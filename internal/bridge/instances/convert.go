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

// stamp is the identity and audit part shared by native entities and relationships
type stamp struct {
	guid         string
	home         string
	replicatedBy string
	provenance   int
	version      int64
	status       native.Status
	createdBy    string
	updatedBy    string
	created      time.Time
	updated      time.Time
}

func entityStamp(e *native.Entity) stamp {
	return stamp{
		guid: e.GUID, home: e.HomeID, replicatedBy: e.ReplicatedBy, provenance: e.Provenance,
		version: e.Version, status: e.Status, createdBy: e.CreatedBy, updatedBy: e.UpdatedBy,
		created: e.CreateTime, updated: e.UpdateTime,
	}
}

func relationshipStamp(r *native.Relationship) stamp {
	return stamp{
		guid: r.GUID, home: r.HomeID, replicatedBy: r.ReplicatedBy, provenance: r.Provenance,
		version: r.Version, status: r.Status, createdBy: r.CreatedBy, updatedBy: r.UpdatedBy,
		created: r.CreateTime, updated: r.UpdateTime,
	}
}

func (m *Mapper) header(info *typecatalog.TypeInfo, s stamp) cohort.InstanceHeader {
	h := cohort.InstanceHeader{
		Type:                 info.InstanceType(),
		GUID:                 s.guid,
		MetadataCollectionID: s.home,
		Provenance:           cohort.InstanceProvenance(s.provenance),
		ReplicatedBy:         s.replicatedBy,
		Version:              s.version,
		Status:               ToProtocolStatus(s.status),
		CreatedBy:            s.createdBy,
		UpdatedBy:            s.updatedBy,
		CreateTime:           s.created,
		UpdateTime:           s.updated,
	}
	if m.IsLocal(s.home) {
		h.MetadataCollectionID = m.collectionID
		h.MetadataCollectionName = m.collectionName
	}
	if h.Provenance == cohort.ProvenanceUnknown {
		h.Provenance = cohort.ProvenanceLocalCohort
	}
	return h
}

// EntitySummary converts a native entity to its cohort summary
func (m *Mapper) EntitySummary(ctx context.Context, e *native.Entity) (*cohort.EntitySummary, error) {
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	return m.summary(ctx, e, info)
}

func (m *Mapper) summary(ctx context.Context, e *native.Entity, info *typecatalog.TypeInfo) (*cohort.EntitySummary, error) {
	classifications, err := m.classifications(ctx, e)
	if err != nil {
		return nil, err
	}
	return &cohort.EntitySummary{
		InstanceHeader:  m.header(info, entityStamp(e)),
		Classifications: classifications,
	}, nil
}

// EntityDetail converts a native entity to a fully populated cohort entity
func (m *Mapper) EntityDetail(ctx context.Context, e *native.Entity) (*cohort.EntityDetail, error) {
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	summary, err := m.summary(ctx, e, info)
	if err != nil {
		return nil, err
	}
	props, err := attributes.ToProtocolProperties(e.Attributes, info.Attributes)
	if err != nil {
		return nil, err
	}
	return &cohort.EntityDetail{EntitySummary: *summary, Properties: props}, nil
}

// EntityProxy converts a native entity to a proxy carrying only its unique properties
func (m *Mapper) EntityProxy(ctx context.Context, e *native.Entity) (*cohort.EntityProxy, error) {
	info, err := m.types.NativeTypeInfo(ctx, e.TypeName)
	if err != nil {
		return nil, err
	}
	summary, err := m.summary(ctx, e, info)
	if err != nil {
		return nil, err
	}
	unique, err := uniqueProperties(info, e.Attributes)
	if err != nil {
		return nil, err
	}
	return &cohort.EntityProxy{EntitySummary: *summary, UniqueProperties: unique}, nil
}

func uniqueProperties(info *typecatalog.TypeInfo, attrs map[string]interface{}) (*cohort.InstanceProperties, error) {
	out := cohort.NewInstanceProperties()
	for _, name := range info.UniqueAttributes() {
		raw, ok := attrs[name]
		if !ok || raw == nil {
			continue
		}
		v, err := attributes.ToProtocolValue(info.Attributes[name].Type, raw)
		if err != nil {
			return nil, cohort.WrapKind(cohort.ErrProperty, "instances.uniqueProperties", name, err)
		}
		out.Set(name, v)
	}
	return out, nil
}

func (m *Mapper) classifications(ctx context.Context, e *native.Entity) ([]cohort.Classification, error) {
	if len(e.Classifications) == 0 {
		return nil, nil
	}
	out := make([]cohort.Classification, 0, len(e.Classifications))
	for _, c := range e.Classifications {
		info, err := m.types.NativeTypeInfo(ctx, c.TypeName)
		if err != nil {
			if cohort.KindOf(err) == cohort.ErrRepository {
				return nil, err
			}
			m.logger.Warn("dropping classification with unpublished type",
				zap.String("entity", e.GUID), zap.String("classification", c.TypeName), zap.Error(err))
			continue
		}
		props, err := attributes.ToProtocolProperties(c.Attributes, info.Attributes)
		if err != nil {
			return nil, err
		}
		cl := cohort.Classification{
			Name:                 info.Name(),
			Type:                 info.InstanceType(),
			Properties:           props,
			Origin:               cohort.ClassificationAssigned,
			Status:               cohort.StatusActive,
			Version:              c.Version,
			MetadataCollectionID: m.header(info, entityStamp(e)).MetadataCollectionID,
			CreatedBy:            c.CreatedBy,
			UpdatedBy:            c.UpdatedBy,
			CreateTime:           c.CreateTime,
			UpdateTime:           c.UpdateTime,
		}
		if c.Propagated {
			cl.Origin = cohort.ClassificationPropagated
			cl.OriginGUID = c.EntityGUID
		}
		out = append(out, cl)
	}
	return out, nil
}

// Relationship converts a native relationship. Ends that are not stored locally are
// described from the identity the relationship carries for them.
func (m *Mapper) Relationship(ctx context.Context, r *native.Relationship) (*cohort.Relationship, error) {
	const op = "instances.Relationship"
	info, err := m.types.NativeTypeInfo(ctx, r.TypeName)
	if err != nil {
		return nil, err
	}
	def, ok := info.Def.(*cohort.RelationshipDef)
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, r.TypeName, "not a relationship type")
	}
	props, err := attributes.ToProtocolProperties(r.Attributes, info.Attributes)
	if err != nil {
		return nil, err
	}
	one, err := m.endProxy(ctx, r.End1)
	if err != nil {
		return nil, err
	}
	two, err := m.endProxy(ctx, r.End2)
	if err != nil {
		return nil, err
	}
	return &cohort.Relationship{
		InstanceHeader:        m.header(info, relationshipStamp(r)),
		Properties:            props,
		EntityOneProxy:        one,
		EntityTwoProxy:        two,
		EntityOnePropertyName: def.EndDef1.AttributeName,
		EntityTwoPropertyName: def.EndDef2.AttributeName,
	}, nil
}

func (m *Mapper) endProxy(ctx context.Context, end native.ObjectID) (*cohort.EntityProxy, error) {
	e, err := m.store.GetEntity(ctx, end.GUID)
	if err == nil {
		return m.EntityProxy(ctx, e)
	}
	if !native.IsNotFound(err) {
		return nil, cohort.Wrap("instances.endProxy", end.GUID, err)
	}

	info, err := m.types.NativeTypeInfo(ctx, end.TypeName)
	if err != nil {
		return nil, err
	}
	unique, err := uniqueProperties(info, end.UniqueAttributes)
	if err != nil {
		return nil, err
	}
	return &cohort.EntityProxy{
		EntitySummary: cohort.EntitySummary{InstanceHeader: cohort.InstanceHeader{
			Type:   info.InstanceType(),
			GUID:   end.GUID,
			Status: cohort.StatusActive,
		}},
		UniqueProperties: unique,
	}, nil
}

// objectID describes a stored entity as a relationship end
func objectID(e *native.Entity, info *typecatalog.TypeInfo) native.ObjectID {
	oid := native.ObjectID{GUID: e.GUID, TypeName: e.TypeName}
	for _, name := range info.UniqueAttributes() {
		if v, ok := e.Attributes[name]; ok && v != nil {
			if oid.UniqueAttributes == nil {
				oid.UniqueAttributes = make(map[string]interface{})
			}
			oid.UniqueAttributes[name] = v
		}
	}
	return oid
}

// nativeProperties validates props against the type and converts them
func nativeProperties(op string, info *typecatalog.TypeInfo, props *cohort.InstanceProperties) (map[string]interface{}, error) {
	if err := attributes.ValidateProperties(op, info.Name(), props, info.Attributes); err != nil {
		return nil, err
	}
	attrs, err := attributes.ToNativeProperties(props)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}
