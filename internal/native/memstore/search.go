package memstore

import (
	"context"
	"fmt"

	"github.com/conduit-lang/metabridge/internal/native"
)

// SearchWithQuery runs a type-scoped structured query
func (s *Store) SearchWithQuery(ctx context.Context, query *native.StructuredQuery) (*native.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.types[query.TypeName]; !ok {
		return nil, fmt.Errorf("type %s: %w", query.TypeName, native.ErrNotFound)
	}
	typeNames := map[string]bool{query.TypeName: true}
	if query.IncludeSubTypes {
		typeNames = s.withSubTypes(query.TypeName)
	}

	match := func(typeName string, status native.Status, attrs map[string]interface{}) bool {
		if !typeNames[typeName] {
			return false
		}
		if query.ExcludeDeleted && status == native.StatusDeleted {
			return false
		}
		return query.Where.Evaluate(attrs)
	}

	return s.collect(query.Kind, query.Classification, query.Offset, query.Limit, match), nil
}

// SearchWithParameters runs an attribute and full-text search across all instances
func (s *Store) SearchWithParameters(ctx context.Context, params *native.SearchParameters) (*native.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var typeNames map[string]bool
	if params.TypeName != "" {
		if _, ok := s.types[params.TypeName]; !ok {
			return nil, fmt.Errorf("type %s: %w", params.TypeName, native.ErrNotFound)
		}
		typeNames = s.withSubTypes(params.TypeName)
	}

	match := func(typeName string, status native.Status, attrs map[string]interface{}) bool {
		if typeNames != nil && !typeNames[typeName] {
			return false
		}
		if params.ExcludeDeleted && status == native.StatusDeleted {
			return false
		}
		if !native.ContainsText(attrs, params.Query) {
			return false
		}
		return params.Where.Evaluate(attrs)
	}

	return s.collect(params.Kind, params.Classification, params.Offset, params.Limit, match), nil
}

type matcher func(typeName string, status native.Status, attrs map[string]interface{}) bool

func (s *Store) collect(kind native.SearchKind, classification string, offset, limit int, match matcher) *native.SearchResult {
	result := &native.SearchResult{}

	if kind == native.SearchRelationships {
		rels := make([]*native.Relationship, 0)
		for _, r := range s.relationships {
			if match(r.TypeName, r.Status, r.Attributes) {
				rels = append(rels, r)
			}
		}
		native.SortRelationships(rels)
		start, end := native.Window(len(rels), offset, limit)
		for _, r := range rels[start:end] {
			result.Relationships = append(result.Relationships, r.Clone())
		}
		return result
	}

	entities := make([]*native.Entity, 0)
	for _, e := range s.entities {
		if classification != "" {
			if _, ok := e.Classification(classification); !ok {
				continue
			}
		}
		if match(e.TypeName, e.Status, e.Attributes) {
			entities = append(entities, e)
		}
	}
	native.SortEntities(entities)
	start, end := native.Window(len(entities), offset, limit)
	for _, e := range entities[start:end] {
		result.Entities = append(result.Entities, e.Clone())
	}
	return result
}

// withSubTypes returns name and every type that inherits from it
func (s *Store) withSubTypes(name string) map[string]bool {
	defs := make([]native.TypeDef, 0, len(s.types))
	for _, def := range s.types {
		defs = append(defs, def)
	}
	return native.SubTypeClosure(defs, name)
}
