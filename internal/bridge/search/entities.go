package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// entityQuery is a translated entity search
type entityQuery struct {
	info            *typecatalog.TypeInfo
	where           *native.PredicateGroup
	text            string
	classifications []string
	match           func(e *native.Entity) bool
}

// FindEntitiesByProperty returns the entities whose properties match props. With an
// entity type guid only that type and its subtypes are searched.
func (s *Searcher) FindEntitiesByProperty(ctx context.Context, userID, entityTypeGUID string,
	props *cohort.InstanceProperties, criteria cohort.MatchCriteria, opts cohort.SearchOptions) ([]*cohort.EntityDetail, error) {
	const op = "search.FindEntitiesByProperty"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if err := validateCriteria(op, criteria); err != nil {
		return nil, err
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	info, err := s.resolveType(ctx, op, entityTypeGUID, cohort.EntityDefCategory)
	if err != nil {
		return nil, err
	}
	where, err := propertyGroup(op, info, props, criteria)
	if err != nil {
		return nil, err
	}
	classifications, err := s.classificationNames(ctx, op, opts.LimitClassifications)
	if err != nil {
		return nil, err
	}
	return s.findEntities(ctx, op, entityQuery{info: info, where: where, classifications: classifications}, opts)
}

// FindEntitiesByPropertyValue returns the entities with a string property containing
// text
func (s *Searcher) FindEntitiesByPropertyValue(ctx context.Context, userID, entityTypeGUID, text string,
	opts cohort.SearchOptions) ([]*cohort.EntityDetail, error) {
	const op = "search.FindEntitiesByPropertyValue"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "search text is empty")
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	info, err := s.resolveType(ctx, op, entityTypeGUID, cohort.EntityDefCategory)
	if err != nil {
		return nil, err
	}
	classifications, err := s.classificationNames(ctx, op, opts.LimitClassifications)
	if err != nil {
		return nil, err
	}
	q := entityQuery{info: info, classifications: classifications}
	if info == nil {
		q.text = text
	} else if q.where = textGroup(info, text); q.where == nil {
		return nil, nil
	}
	return s.findEntities(ctx, op, q, opts)
}

// FindEntitiesByClassification returns the entities carrying the named
// classification whose classification properties match props
func (s *Searcher) FindEntitiesByClassification(ctx context.Context, userID, entityTypeGUID, classificationName string,
	props *cohort.InstanceProperties, criteria cohort.MatchCriteria, opts cohort.SearchOptions) ([]*cohort.EntityDetail, error) {
	const op = "search.FindEntitiesByClassification"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if classificationName == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "classification name is empty")
	}
	if err := validateCriteria(op, criteria); err != nil {
		return nil, err
	}
	if err := validateOptions(op, opts); err != nil {
		return nil, err
	}

	classification, err := s.classificationType(ctx, op, classificationName)
	if err != nil {
		return nil, err
	}
	info, err := s.resolveType(ctx, op, entityTypeGUID, cohort.EntityDefCategory)
	if err != nil {
		return nil, err
	}
	classificationWhere, err := propertyGroup(op, classification, props, criteria)
	if err != nil {
		return nil, err
	}
	limits, err := s.classificationNames(ctx, op, opts.LimitClassifications)
	if err != nil {
		return nil, err
	}

	classifications := []string{classification.NativeName}
	for _, name := range limits {
		if name != classification.NativeName {
			classifications = append(classifications, name)
		}
	}
	return s.findEntities(ctx, op, entityQuery{
		info:            info,
		classifications: classifications,
		match: func(e *native.Entity) bool {
			c, ok := e.Classification(classification.NativeName)
			return ok && classificationWhere.Evaluate(c.Attributes)
		},
	}, opts)
}

func (s *Searcher) findEntities(ctx context.Context, op string, q entityQuery, opts cohort.SearchOptions) ([]*cohort.EntityDetail, error) {
	pushdown := ""
	if len(q.classifications) == 1 {
		pushdown = q.classifications[0]
	}

	var (
		result *native.SearchResult
		err    error
		scope  string
	)
	if q.info != nil {
		scope = q.info.Name()
		result, err = s.store.SearchWithQuery(ctx, &native.StructuredQuery{
			Kind:            native.SearchEntities,
			TypeName:        q.info.NativeName,
			IncludeSubTypes: true,
			Where:           q.where,
			Classification:  pushdown,
			ExcludeDeleted:  excludeDeleted(opts),
		})
	} else {
		result, err = s.store.SearchWithParameters(ctx, &native.SearchParameters{
			Kind:           native.SearchEntities,
			Classification: pushdown,
			Query:          q.text,
			Where:          q.where,
			ExcludeDeleted: excludeDeleted(opts),
		})
	}
	if err != nil {
		return nil, cohort.Wrap(op, scope, err)
	}

	kept := make([]*native.Entity, 0, len(result.Entities))
	for _, e := range result.Entities {
		if keepEntity(e, q, opts) {
			kept = append(kept, e)
		}
	}
	sequence(kept, entityKey, opts.SequencingOrder)

	out := make([]*cohort.EntityDetail, 0, len(kept))
	for _, e := range kept {
		detail, err := s.convert.EntityDetail(ctx, e)
		if err != nil {
			if unpublished(err) {
				s.logger.Debug("skipping entity of unpublished type", zap.String("entity", e.GUID),
					zap.String("type", e.TypeName), zap.Error(err))
				continue
			}
			return nil, err
		}
		out = append(out, detail)
	}

	s.logger.Debug("entity search",
		zap.String("op", op),
		zap.String("type", scope),
		zap.Stringer("where", q.where),
		zap.Int("native", len(result.Entities)),
		zap.Int("matched", len(out)))
	return Paginate(out, opts.FromOffset, opts.PageSize), nil
}

// keepEntity applies the filters the native query cannot express
func keepEntity(e *native.Entity, q entityQuery, opts cohort.SearchOptions) bool {
	if e.IsProxy {
		return false
	}
	if !opts.AllowsStatus(instances.ToProtocolStatus(e.Status)) {
		return false
	}
	for _, name := range q.classifications {
		if _, ok := e.Classification(name); !ok {
			return false
		}
	}
	return q.match == nil || q.match(e)
}

// unpublished reports whether a conversion failed because the instance's type has no
// cohort form
func unpublished(err error) bool {
	switch cohort.KindOf(err) {
	case cohort.ErrTypeNotKnown, cohort.ErrTypeConflict, cohort.ErrTypeNotSupported:
		return true
	}
	return false
}
