// Package federation keeps reference copies of instances homed in other
// repositories of the cohort and announces refreshed local instances.
package federation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/events"
)

// Synchronizer stores reference copies through the instance mapper and publishes
// refresh events
type Synchronizer struct {
	mapper    *instances.Mapper
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a synchronizer. A nil publisher records events in memory only.
func New(mapper *instances.Mapper, publisher events.Publisher, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewRecorder()
	}
	return &Synchronizer{
		mapper:    mapper,
		publisher: publisher,
		logger:    logger.Named("federation"),
		now:       time.Now,
	}
}

func validateUser(op, userID string) error {
	if userID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "user id is empty")
	}
	return nil
}

// SaveEntityReferenceCopy stores a copy of an entity homed in another repository
func (s *Synchronizer) SaveEntityReferenceCopy(ctx context.Context, userID string, entity *cohort.EntityDetail) error {
	return s.mapper.SaveEntityCopy(ctx, userID, entity)
}

// SaveRelationshipReferenceCopy stores a copy of a relationship homed in another
// repository. Ends that are not stored locally are first stored as proxies.
func (s *Synchronizer) SaveRelationshipReferenceCopy(ctx context.Context, userID string, rel *cohort.Relationship) error {
	const op = "federation.SaveRelationshipReferenceCopy"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if rel == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "relationship is missing")
	}
	if rel.GUID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "relationship guid is empty")
	}
	if rel.EntityOneProxy == nil || rel.EntityTwoProxy == nil {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship needs both end proxies")
	}
	if s.mapper.IsLocal(rel.MetadataCollectionID) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship is homed in this repository")
	}

	if err := s.mapper.CheckRelationshipCopy(ctx, userID, rel); err != nil {
		return err
	}

	var missing []*cohort.EntityProxy
	for _, end := range []*cohort.EntityProxy{rel.EntityOneProxy, rel.EntityTwoProxy} {
		proxy, err := s.missingProxy(ctx, op, rel, end)
		if err != nil {
			return err
		}
		if proxy != nil {
			missing = append(missing, proxy)
		}
	}
	for _, proxy := range missing {
		if err := s.mapper.AddEntityProxy(ctx, userID, proxy); err != nil {
			return err
		}
		s.logger.Debug("stored proxy for relationship end", zap.String("relationship", rel.GUID),
			zap.String("entity", proxy.GUID), zap.String("home", proxy.MetadataCollectionID))
	}
	return s.mapper.SaveRelationshipCopy(ctx, userID, rel)
}

// missingProxy returns the proxy to store for a relationship end, or nil when the
// entity is already known
func (s *Synchronizer) missingProxy(ctx context.Context, op string, rel *cohort.Relationship, end *cohort.EntityProxy) (*cohort.EntityProxy, error) {
	if end.GUID == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, rel.GUID, "relationship end has no guid")
	}
	exists, err := s.mapper.EntityExists(ctx, end.GUID)
	if err != nil || exists {
		return nil, err
	}

	proxy := *end
	if proxy.MetadataCollectionID == "" {
		proxy.MetadataCollectionID = rel.MetadataCollectionID
	}
	if s.mapper.IsLocal(proxy.MetadataCollectionID) {
		return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, end.GUID, "relationship end is homed here but not stored")
	}
	return &proxy, nil
}

// SaveInstanceReferenceCopies stores a batch of reference copies, entities first so
// that relationships can find their ends. It stops at the first failure.
func (s *Synchronizer) SaveInstanceReferenceCopies(ctx context.Context, userID string,
	entities []*cohort.EntityDetail, relationships []*cohort.Relationship) error {
	const op = "federation.SaveInstanceReferenceCopies"
	if err := validateUser(op, userID); err != nil {
		return err
	}
	for _, e := range entities {
		if err := s.SaveEntityReferenceCopy(ctx, userID, e); err != nil {
			return err
		}
	}
	for _, r := range relationships {
		if err := s.SaveRelationshipReferenceCopy(ctx, userID, r); err != nil {
			return err
		}
	}
	s.logger.Debug("reference copies saved", zap.Int("entities", len(entities)), zap.Int("relationships", len(relationships)))
	return nil
}

// PurgeEntityReferenceCopy removes a stored copy of a foreign entity
func (s *Synchronizer) PurgeEntityReferenceCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	return s.mapper.PurgeEntityCopy(ctx, userID, guid, typeGUID, typeName, homeID)
}

// PurgeRelationshipReferenceCopy removes a stored copy of a foreign relationship
func (s *Synchronizer) PurgeRelationshipReferenceCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	return s.mapper.PurgeRelationshipCopy(ctx, userID, guid, typeGUID, typeName, homeID)
}

// RefreshEntityReferenceCopy re-announces a local entity to the cohort. A request
// naming another repository as home is ignored.
func (s *Synchronizer) RefreshEntityReferenceCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	const op = "federation.RefreshEntityReferenceCopy"
	if err := validateRefresh(op, userID, guid, homeID); err != nil {
		return err
	}
	if homeID != s.mapper.CollectionID() {
		s.logger.Debug("refresh request is for another repository", zap.String("entity", guid), zap.String("home", homeID))
		return nil
	}

	entity, err := s.mapper.GetEntityDetail(ctx, userID, guid)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, entity.Type); err != nil {
		return err
	}
	return s.publish(ctx, op, guid, events.Event{
		Kind:   events.EntityRefreshed,
		UserID: userID,
		Entity: entity,
	})
}

// RefreshRelationshipReferenceCopy re-announces a local relationship to the cohort. A
// request naming another repository as home is ignored.
func (s *Synchronizer) RefreshRelationshipReferenceCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error {
	const op = "federation.RefreshRelationshipReferenceCopy"
	if err := validateRefresh(op, userID, guid, homeID); err != nil {
		return err
	}
	if homeID != s.mapper.CollectionID() {
		s.logger.Debug("refresh request is for another repository", zap.String("relationship", guid), zap.String("home", homeID))
		return nil
	}

	rel, err := s.mapper.GetRelationship(ctx, userID, guid)
	if err != nil {
		return err
	}
	if err := checkType(op, guid, typeGUID, typeName, rel.Type); err != nil {
		return err
	}
	return s.publish(ctx, op, guid, events.Event{
		Kind:         events.RelationshipRefreshed,
		UserID:       userID,
		Relationship: rel,
	})
}

func (s *Synchronizer) publish(ctx context.Context, op, guid string, event events.Event) error {
	event.CollectionID = s.mapper.CollectionID()
	event.Time = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		return cohort.WrapKind(cohort.ErrRepository, op, guid, err)
	}
	s.logger.Info("reference copy refreshed", zap.String("kind", string(event.Kind)), zap.String("instance", guid))
	return nil
}

func validateRefresh(op, userID, guid, homeID string) error {
	if err := validateUser(op, userID); err != nil {
		return err
	}
	if guid == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "instance guid is empty")
	}
	if homeID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "home collection id is empty")
	}
	return nil
}

func checkType(op, guid, typeGUID, typeName string, t *cohort.InstanceType) error {
	if typeName != "" && !t.IsTypeOf(typeName) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "instance is not a %s", typeName)
	}
	if typeGUID == "" || (t != nil && t.TypeDefGUID == typeGUID) {
		return nil
	}
	if t != nil {
		for _, st := range t.TypeDefSuperTypes {
			if st.GUID == typeGUID {
				return nil
			}
		}
	}
	return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "instance is not of type guid %s", typeGUID)
}
