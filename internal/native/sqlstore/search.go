package sqlstore

import (
	"context"
	"fmt"

	"github.com/conduit-lang/metabridge/internal/native"
)

// SearchWithQuery runs a type-scoped structured query. Attribute predicates are
// evaluated over the decoded documents.
func (s *Store) SearchWithQuery(ctx context.Context, query *native.StructuredQuery) (*native.SearchResult, error) {
	defs, err := s.loadTypeDefs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if !hasType(defs, query.TypeName) {
		return nil, fmt.Errorf("type %s: %w", query.TypeName, native.ErrNotFound)
	}
	typeNames := map[string]bool{query.TypeName: true}
	if query.IncludeSubTypes {
		typeNames = native.SubTypeClosure(defs, query.TypeName)
	}

	f := filter{
		typeNames:      typeNames,
		classification: query.Classification,
		excludeDeleted: query.ExcludeDeleted,
		where:          query.Where,
	}
	return s.collect(ctx, query.Kind, f, query.Offset, query.Limit)
}

// SearchWithParameters runs an attribute and full-text search across all instances
func (s *Store) SearchWithParameters(ctx context.Context, params *native.SearchParameters) (*native.SearchResult, error) {
	f := filter{
		classification: params.Classification,
		excludeDeleted: params.ExcludeDeleted,
		where:          params.Where,
		text:           params.Query,
	}
	if params.TypeName != "" {
		defs, err := s.loadTypeDefs(ctx, s.db)
		if err != nil {
			return nil, err
		}
		if !hasType(defs, params.TypeName) {
			return nil, fmt.Errorf("type %s: %w", params.TypeName, native.ErrNotFound)
		}
		f.typeNames = native.SubTypeClosure(defs, params.TypeName)
	}
	return s.collect(ctx, params.Kind, f, params.Offset, params.Limit)
}

type filter struct {
	typeNames      map[string]bool
	classification string
	excludeDeleted bool
	where          *native.PredicateGroup
	text           string
}

func (f filter) matches(typeName string, status native.Status, attrs map[string]interface{}) bool {
	if f.typeNames != nil && !f.typeNames[typeName] {
		return false
	}
	if f.excludeDeleted && status == native.StatusDeleted {
		return false
	}
	if !native.ContainsText(attrs, f.text) {
		return false
	}
	return f.where.Evaluate(attrs)
}

func (s *Store) collect(ctx context.Context, kind native.SearchKind, f filter, offset, limit int) (*native.SearchResult, error) {
	table := "mb_entities"
	if kind == native.SearchRelationships {
		table = "mb_relationships"
	}
	rows, err := s.query(ctx, s.db, `SELECT body FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &native.SearchResult{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		if kind == native.SearchRelationships {
			r, err := decodeRelationship(body)
			if err != nil {
				return nil, err
			}
			if f.matches(r.TypeName, r.Status, r.Attributes) {
				result.Relationships = append(result.Relationships, r)
			}
			continue
		}
		e, err := decodeEntity(body)
		if err != nil {
			return nil, err
		}
		if f.classification != "" {
			if _, ok := e.Classification(f.classification); !ok {
				continue
			}
		}
		if f.matches(e.TypeName, e.Status, e.Attributes) {
			result.Entities = append(result.Entities, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	native.SortEntities(result.Entities)
	native.SortRelationships(result.Relationships)
	start, end := native.Window(len(result.Entities), offset, limit)
	result.Entities = result.Entities[start:end]
	start, end = native.Window(len(result.Relationships), offset, limit)
	result.Relationships = result.Relationships[start:end]
	return result, nil
}

func hasType(defs []native.TypeDef, name string) bool {
	for _, def := range defs {
		if def.Header().Name == name {
			return true
		}
	}
	return false
}
