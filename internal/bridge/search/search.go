// Package search translates cohort find requests into native discovery queries.
//
// A request naming a type runs as a structured query scoped to that type and its
// subtypes; one without a type falls back to the native parameterised search. Either
// way the native query is issued without an offset or limit. Proxy exclusion, status
// and classification filters run on the full result, and the caller's page is cut
// only after them.
package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// Store is the native side the searcher reads from
type Store interface {
	native.DiscoveryService
	GetEntity(ctx context.Context, guid string) (*native.Entity, error)
	RelationshipsForEntity(ctx context.Context, entityGUID string) ([]*native.Relationship, error)
}

// TypeResolver resolves cohort and native type names to reconciled type information
type TypeResolver interface {
	TypeInfo(ctx context.Context, name string) (*typecatalog.TypeInfo, error)
	TypeInfoByGUID(ctx context.Context, guid string) (*typecatalog.TypeInfo, error)
	NativeTypeInfo(ctx context.Context, nativeName string) (*typecatalog.TypeInfo, error)
	SubTypeNames(ctx context.Context, nativeName string) (map[string]bool, error)
}

// Converter turns native instances into their cohort form
type Converter interface {
	EntityDetail(ctx context.Context, e *native.Entity) (*cohort.EntityDetail, error)
	Relationship(ctx context.Context, r *native.Relationship) (*cohort.Relationship, error)
}

// Searcher runs the find operations of the metadata collection
type Searcher struct {
	store   Store
	types   TypeResolver
	convert Converter
	logger  *zap.Logger
}

// New creates a searcher
func New(store Store, types TypeResolver, convert Converter, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:   store,
		types:   types,
		convert: convert,
		logger:  logger.Named("search"),
	}
}

func validateUser(op, userID string) error {
	if userID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "user id is empty")
	}
	return nil
}

// validateOptions rejects paging and sequencing requests that cannot be honoured
func validateOptions(op string, opts cohort.SearchOptions) error {
	if opts.FromOffset < 0 {
		return cohort.Errorf(cohort.ErrPaging, op, "", "offset %d is negative", opts.FromOffset)
	}
	if opts.PageSize < 0 {
		return cohort.Errorf(cohort.ErrPaging, op, "", "page size %d is negative", opts.PageSize)
	}
	if opts.AsOfTime != nil {
		return cohort.Errorf(cohort.ErrNotImplemented, op, "", "historical queries are not supported")
	}
	switch opts.SequencingOrder {
	case cohort.SequencePropertyAscending, cohort.SequencePropertyDescending:
		return cohort.Errorf(cohort.ErrNotImplemented, op, "", "sequencing by property is not supported")
	}
	if opts.SequencingProperty != "" {
		return cohort.Errorf(cohort.ErrNotImplemented, op, "", "sequencing by property is not supported")
	}
	return nil
}

func validateCriteria(op string, criteria cohort.MatchCriteria) error {
	switch criteria {
	case cohort.MatchAll, cohort.MatchAny:
		return nil
	case cohort.MatchNone:
		return cohort.Errorf(cohort.ErrNotImplemented, op, "", "match criteria NONE is not supported")
	default:
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "unknown match criteria %d", criteria)
	}
}

// resolveType returns nil when no type guid is given
func (s *Searcher) resolveType(ctx context.Context, op, guid string, category cohort.TypeDefCategory) (*typecatalog.TypeInfo, error) {
	if guid == "" {
		return nil, nil
	}
	info, err := s.types.TypeInfoByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if info.Def.Category() != category {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "%s is a %s, not a %s",
			info.Name(), info.Def.Category(), category)
	}
	return info, nil
}

// classificationNames maps cohort classification names to their native names
func (s *Searcher) classificationNames(ctx context.Context, op string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		info, err := s.classificationType(ctx, op, name)
		if err != nil {
			return nil, err
		}
		out = append(out, info.NativeName)
	}
	return out, nil
}

func (s *Searcher) classificationType(ctx context.Context, op, name string) (*typecatalog.TypeInfo, error) {
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "classification name is empty")
	}
	info, err := s.types.TypeInfo(ctx, name)
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

// excludeDeleted reports whether deleted instances can be dropped by the native query
func excludeDeleted(opts cohort.SearchOptions) bool {
	return !opts.AllowsStatus(cohort.StatusDeleted)
}
