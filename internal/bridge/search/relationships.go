package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// FindRelationshipsByProperty returns the relationships whose properties match props
func (s *Searcher) FindRelationshipsByProperty(ctx context.Context, userID, relationshipTypeGUID string,
	props *cohort.InstanceProperties, criteria cohort.MatchCriteria, opts cohort.SearchOptions) ([]*cohort.Relationship, error) {
	const op = "search.FindRelationshipsByProperty"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := validateCriteria(op, criteria); err != nil {
		return nil, err
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	info, err := s.resolveType(ctx, op, relationshipTypeGUID, cohort.RelationshipDefCategory)
	if err != nil {
		return nil, err
	}
	where, err := propertyGroup(op, info, props, criteria)
	if err != nil {
		return nil, err
	}
	return s.findRelationships(ctx, op, info, where, "", opts)
}

// FindRelationshipsByPropertyValue returns the relationships with a string property
// containing text
func (s *Searcher) FindRelationshipsByPropertyValue(ctx context.Context, userID, relationshipTypeGUID, text string,
	opts cohort.SearchOptions) ([]*cohort.Relationship, error) {
	const op = "search.FindRelationshipsByPropertyValue"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "search text is empty")
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	info, err := s.resolveType(ctx, op, relationshipTypeGUID, cohort.RelationshipDefCategory)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return s.findRelationships(ctx, op, nil, nil, text, opts)
	}
	where := textGroup(info, text)
	if where == nil {
		return nil, nil
	}
	return s.findRelationships(ctx, op, info, where, "", opts)
}

func (s *Searcher) findRelationships(ctx context.Context, op string, info *typecatalog.TypeInfo,
	where *native.PredicateGroup, text string, opts cohort.SearchOptions) ([]*cohort.Relationship, error) {
	var (
		result *native.SearchResult
		err    error
		scope  string
	)
	if info != nil {
		scope = info.Name()
		result, err = s.store.SearchWithQuery(ctx, &native.StructuredQuery{
			Kind:            native.SearchRelationships,
			TypeName:        info.NativeName,
			IncludeSubTypes: true,
			Where:           where,
			ExcludeDeleted:  excludeDeleted(opts),
		})
	} else {
		result, err = s.store.SearchWithParameters(ctx, &native.SearchParameters{
			Kind:           native.SearchRelationships,
			Query:          text,
			Where:          where,
			ExcludeDeleted: excludeDeleted(opts),
		})
	}
	if err != nil {
		return nil, cohort.Wrap(op, scope, err)
	}

	out, err := s.relationshipPage(ctx, result.Relationships, nil, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("relationship search",
		zap.String("op", op),
		zap.String("type", scope),
		zap.Stringer("where", where),
		zap.Int("native", len(result.Relationships)),
		zap.Int("returned", len(out)))
	return out, nil
}

// GetRelationshipsForEntity returns the relationships attached to an entity,
// optionally limited to one relationship type and its subtypes
func (s *Searcher) GetRelationshipsForEntity(ctx context.Context, userID, entityGUID, relationshipTypeGUID string,
	opts cohort.SearchOptions) ([]*cohort.Relationship, error) {
	const op = "search.GetRelationshipsForEntity"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if entityGUID == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "entity guid is empty")
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	info, err := s.resolveType(ctx, op, relationshipTypeGUID, cohort.RelationshipDefCategory)
	if err != nil {
		return nil, err
	}
	var typeNames map[string]bool
	if info != nil {
		if typeNames, err = s.types.SubTypeNames(ctx, info.NativeName); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.GetEntity(ctx, entityGUID); err != nil {
		if native.IsNotFound(err) {
			return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, entityGUID, "no such entity")
		}
		return nil, cohort.Wrap(op, entityGUID, err)
	}
	rels, err := s.store.RelationshipsForEntity(ctx, entityGUID)
	if err != nil && !native.IsNotFound(err) {
		return nil, cohort.Wrap(op, entityGUID, err)
	}
	return s.relationshipPage(ctx, rels, typeNames, opts)
}

// relationshipPage filters, orders, converts and pages native relationships
func (s *Searcher) relationshipPage(ctx context.Context, rels []*native.Relationship, typeNames map[string]bool,
	opts cohort.SearchOptions) ([]*cohort.Relationship, error) {
	kept := make([]*native.Relationship, 0, len(rels))
	for _, r := range rels {
		if typeNames != nil && !typeNames[r.TypeName] {
			continue
		}
		if !opts.AllowsStatus(instances.ToProtocolStatus(r.Status)) {
			continue
		}
		kept = append(kept, r)
	}
	sequence(kept, relationshipKey, opts.SequencingOrder)

	out := make([]*cohort.Relationship, 0, len(kept))
	for _, r := range kept {
		rel, err := s.convert.Relationship(ctx, r)
		if err != nil {
			if unpublished(err) {
				s.logger.Debug("skipping relationship of unpublished type", zap.String("relationship", r.GUID),
					zap.String("type", r.TypeName), zap.Error(err))
				continue
			}
			return nil, err
		}
		out = append(out, rel)
	}
	return Paginate(out, opts.FromOffset, opts.PageSize), nil
}
